package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/fieldops/scheduler/internal/domain"
)

// GetPreferences reads a user's notification preferences. Absent preferences
// return nil without error; the dispatcher then allows no channels.
func (s *Store) GetPreferences(ctx context.Context, userID string) (*domain.Preferences, error) {
	data, err := s.client.Get(ctx, PreferencesKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get preferences for %s: %w", userID, err)
	}

	var prefs domain.Preferences
	if err := json.Unmarshal(data, &prefs); err != nil {
		return nil, fmt.Errorf("unmarshal preferences for %s: %w", userID, err)
	}
	return &prefs, nil
}

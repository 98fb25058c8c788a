package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fieldops/scheduler/internal/domain"
)

// ClaimNotification inserts the initial processing entry for a notification
// id, first-writer-wins. The entry expires after the retention window. When
// the claim is lost, the pre-existing entry is returned so the dispatcher can
// distinguish a terminal duplicate from a retry after failure.
func (s *Store) ClaimNotification(ctx context.Context, entry *domain.DispatchEntry) (bool, *domain.DispatchEntry, error) {
	data, err := json.Marshal(entry)
	if err != nil {
		return false, nil, fmt.Errorf("marshal dispatch entry: %w", err)
	}

	created, err := s.client.SetNX(ctx, DispatchLogKey(entry.NotificationID), data, s.retention).Result()
	if err != nil {
		return false, nil, fmt.Errorf("claim notification %s: %w", entry.NotificationID, err)
	}
	if created {
		return true, nil, nil
	}

	existing, err := s.GetDispatchEntry(ctx, entry.NotificationID)
	if err != nil {
		return false, nil, err
	}
	return false, existing, nil
}

// GetDispatchEntry reads one dispatch log entry. Returns nil without error
// when the entry does not exist (expired or never claimed).
func (s *Store) GetDispatchEntry(ctx context.Context, notificationID string) (*domain.DispatchEntry, error) {
	data, err := s.client.Get(ctx, DispatchLogKey(notificationID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get dispatch entry %s: %w", notificationID, err)
	}

	var entry domain.DispatchEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("unmarshal dispatch entry %s: %w", notificationID, err)
	}
	return &entry, nil
}

// RecordOutcome settles the entry to sent or skipped, incrementing attempts
// and recording provider message ids and the send timestamp.
func (s *Store) RecordOutcome(ctx context.Context, notificationID string, status domain.DispatchStatus, provider map[string]string) error {
	return s.updateEntry(ctx, notificationID, func(e *domain.DispatchEntry) {
		e.Status = status
		e.Attempts++
		e.SentAt = time.Now().UTC()
		if len(provider) > 0 {
			if e.Provider == nil {
				e.Provider = map[string]string{}
			}
			for k, v := range provider {
				e.Provider[k] = v
			}
		}
	})
}

// RecordFailure marks the entry failed with the error text, incrementing
// attempts. A plain update: redeliveries after failure must not be blocked by
// the existing entry the way first-sight claims are.
func (s *Store) RecordFailure(ctx context.Context, notificationID string, sendErr error) error {
	return s.updateEntry(ctx, notificationID, func(e *domain.DispatchEntry) {
		e.Status = domain.DispatchFailed
		e.Attempts++
		e.LastError = sendErr.Error()
	})
}

// updateEntry is a read-modify-write on one entry, preserving the remaining
// retention TTL. Not conditional: mutate is applied to whatever is stored.
func (s *Store) updateEntry(ctx context.Context, notificationID string, mutate func(*domain.DispatchEntry)) error {
	entry, err := s.GetDispatchEntry(ctx, notificationID)
	if err != nil {
		return err
	}
	if entry == nil {
		return fmt.Errorf("dispatch entry %s vanished before update", notificationID)
	}

	mutate(entry)

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal dispatch entry %s: %w", notificationID, err)
	}
	if err := s.client.Set(ctx, DispatchLogKey(notificationID), data, redis.KeepTTL).Err(); err != nil {
		return fmt.Errorf("update dispatch entry %s: %w", notificationID, err)
	}
	return nil
}

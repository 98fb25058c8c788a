package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fieldops/scheduler/internal/apperr"
	"github.com/fieldops/scheduler/internal/domain"
)

// Store handles Redis operations for appointments, the dispatch log and
// preferences.
type Store struct {
	client    *redis.Client
	retention time.Duration // dispatch log entry TTL
}

// NewStore creates a new Redis store. retention bounds the lifetime of
// dispatch log entries.
func NewStore(client *redis.Client, retention time.Duration) *Store {
	return &Store{
		client:    client,
		retention: retention,
	}
}

// createScript writes the uniqueness marker and the appointment record as one
// atomic unit, preconditioned on both keys being absent. Returns 1 on success
// and 0 when either precondition fails; in the failure case nothing is
// written. This conditional write is the sole mechanism preventing
// double-booking across concurrent requests and instances.
var createScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
if redis.call("EXISTS", KEYS[2]) == 1 then
  return 0
end
redis.call("SET", KEYS[1], ARGV[1])
redis.call("SET", KEYS[2], ARGV[2])
return 1
`)

// uniquenessMarker is the synthetic entry guarding one appointment slot.
type uniquenessMarker struct {
	Type             string    `json:"type"`
	RefAppointmentID string    `json:"ref_appointment_id"`
	CreatedAt        time.Time `json:"created_at"`
}

// CreateAppointment performs the atomic create-if-absent transaction. A
// precondition failure surfaces as apperr.Conflict; only this store-level
// signal is used to report a duplicate, never a pre-read.
func (s *Store) CreateAppointment(ctx context.Context, appt *domain.Appointment) error {
	record, err := json.Marshal(appt)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "Failed to create appointment",
			fmt.Errorf("marshal appointment: %w", err))
	}

	marker, err := json.Marshal(uniquenessMarker{
		Type:             "uniqueness_marker",
		RefAppointmentID: appt.ID,
		CreatedAt:        appt.CreatedAt,
	})
	if err != nil {
		return apperr.Wrap(apperr.Internal, "Failed to create appointment",
			fmt.Errorf("marshal marker: %w", err))
	}

	fingerprint := domain.Fingerprint(appt.ClientID, appt.ServiceID, appt.ScheduledAt, appt.Location)
	keys := []string{MarkerKey(fingerprint), AppointmentKey(appt.ID)}

	created, err := createScript.Run(ctx, s.client, keys, marker, record).Int()
	if err != nil {
		return apperr.Wrap(apperr.Internal, "Failed to create appointment", err)
	}
	if created == 0 {
		return apperr.New(apperr.Conflict,
			"Appointment already exists for this client, service, and time slot")
	}
	return nil
}

// GetAppointment retrieves an appointment record by id.
func (s *Store) GetAppointment(ctx context.Context, id string) (*domain.Appointment, error) {
	data, err := s.client.Get(ctx, AppointmentKey(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, apperr.New(apperr.NotFound, "Appointment not found").
				WithDetail("appointment_id", id)
		}
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}

	var appt domain.Appointment
	if err := json.Unmarshal(data, &appt); err != nil {
		return nil, fmt.Errorf("failed to unmarshal appointment: %w", err)
	}
	return &appt, nil
}

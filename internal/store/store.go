// Package store declares the persistence capabilities consumed by the
// creation orchestrator and the notification dispatcher, so both stay
// testable with fakes. internal/store/redis provides the implementation.
package store

import (
	"context"

	"github.com/fieldops/scheduler/internal/domain"
)

// AppointmentCreator performs the atomic create-if-absent write: uniqueness
// marker and appointment record as one unit, both or neither.
type AppointmentCreator interface {
	CreateAppointment(ctx context.Context, appt *domain.Appointment) error
}

// DispatchLog is the conditional-write ledger that makes notification
// delivery idempotent and records per-attempt outcomes.
type DispatchLog interface {
	// ClaimNotification attempts the first-writer-wins insert of entry. When
	// the claim is lost it returns the pre-existing entry (nil if it expired
	// in between) so the caller can decide whether the duplicate is terminal.
	ClaimNotification(ctx context.Context, entry *domain.DispatchEntry) (bool, *domain.DispatchEntry, error)

	// RecordOutcome increments attempts and settles the entry to sent or
	// skipped, storing provider message ids and the send timestamp.
	RecordOutcome(ctx context.Context, notificationID string, status domain.DispatchStatus, provider map[string]string) error

	// RecordFailure increments attempts and marks the entry failed with the
	// error text. Deliberately a plain update, not a conditional create, so a
	// redelivery after failure is not blocked by the existing entry.
	RecordFailure(ctx context.Context, notificationID string, sendErr error) error
}

// PreferenceSource reads a user's notification preferences. A nil result
// with nil error means no preferences exist (no channels allowed).
type PreferenceSource interface {
	GetPreferences(ctx context.Context, userID string) (*domain.Preferences, error)
}

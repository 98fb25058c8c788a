package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/fieldops/scheduler/internal/apperr"
)

// AppointmentStatus is the lifecycle state of an appointment. Transitions
// beyond "scheduled" are owned by collaborators outside this service.
type AppointmentStatus string

const (
	StatusScheduled  AppointmentStatus = "scheduled"
	StatusInProgress AppointmentStatus = "in_progress"
	StatusCompleted  AppointmentStatus = "completed"
	StatusCancelled  AppointmentStatus = "cancelled"
)

// WeatherRiskUnknown is the initial weather-risk tag on every new appointment.
// The weather refresh job (a separate collaborator) rewrites it later.
const WeatherRiskUnknown = "unknown"

// MaxNotesLen is the maximum allowed length of free-text notes, in characters.
const MaxNotesLen = 1024

// Appointment is the persisted appointment record.
type Appointment struct {
	ID            string            `json:"appointment_id"`
	ClientID      string            `json:"client_id"`
	ServiceID     string            `json:"service_id"`
	ScheduledAt   time.Time         `json:"scheduled_at"`
	DatePK        string            `json:"date_pk"` // YYYYMMDD of the UTC schedule, for by-day listing
	Location      string            `json:"location"`
	Status        AppointmentStatus `json:"status"`
	Notes         string            `json:"notes"`
	WeatherRisk   string            `json:"weather_risk"`
	CorrelationID string            `json:"correlation_id"`
	CreatedAt     time.Time         `json:"created_at"`
}

// NewAppointmentID generates an opaque appointment id of the form "apt_<32 hex>".
func NewAppointmentID() string {
	return "apt_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// ISO renders an instant in the canonical wire form used in fingerprints,
// responses and persisted records: UTC, RFC 3339 seconds precision.
func ISO(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// DatePK derives the denormalized by-day partition key from a UTC instant.
func DatePK(t time.Time) string {
	return t.UTC().Format("20060102")
}

// Fingerprint derives the deterministic uniqueness key for an appointment
// slot. At most one non-cancelled appointment may exist per fingerprint.
func Fingerprint(clientID, serviceID string, scheduledAt time.Time, location string) string {
	return fmt.Sprintf("%s#%s#%s#%s", clientID, serviceID, ISO(scheduledAt), location)
}

// scheduledAtLayouts are tried in order. Offset-less forms are interpreted as
// UTC rather than rejected.
var scheduledAtLayouts = []struct {
	layout string
	naive  bool // no zone offset in the layout -> treat as UTC
}{
	{time.RFC3339Nano, false},
	{time.RFC3339, false},
	{"2006-01-02T15:04:05.999999999", true},
	{"2006-01-02T15:04:05", true},
	{"2006-01-02T15:04", true},
	{"2006-01-02", true},
}

// ParseScheduledAt parses an ISO-8601 datetime, with or without a zone
// offset, and normalizes it to UTC.
func ParseScheduledAt(value string) (time.Time, error) {
	for _, l := range scheduledAtLayouts {
		t, err := time.Parse(l.layout, value)
		if err != nil {
			continue
		}
		if l.naive {
			t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
		}
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("invalid ISO-8601 datetime: %q", value)
}

// CreateAppointmentRequest is the inbound creation payload.
type CreateAppointmentRequest struct {
	ClientID    string `json:"client_id"`
	ServiceID   string `json:"service_id"`
	ScheduledAt string `json:"scheduled_at"`
	Location    string `json:"location"`
	Notes       string `json:"notes"`
}

// Validate checks the payload in order: required fields (all missing names
// reported at once), scheduled_at parseability, notes bound. It returns the
// UTC-normalized schedule instant used by all subsequent processing.
func (r *CreateAppointmentRequest) Validate() (time.Time, *apperr.Error) {
	var missing []string
	if r.ClientID == "" {
		missing = append(missing, "client_id")
	}
	if r.ServiceID == "" {
		missing = append(missing, "service_id")
	}
	if r.ScheduledAt == "" {
		missing = append(missing, "scheduled_at")
	}
	if r.Location == "" {
		missing = append(missing, "location")
	}
	if len(missing) > 0 {
		return time.Time{}, apperr.New(apperr.Validation, "Missing required fields").
			WithDetail("fields", missing)
	}

	scheduledAt, err := ParseScheduledAt(r.ScheduledAt)
	if err != nil {
		return time.Time{}, apperr.New(apperr.Validation, "scheduled_at must be valid ISO-8601 datetime")
	}

	if utf8.RuneCountInString(r.Notes) > MaxNotesLen {
		return time.Time{}, apperr.New(apperr.Validation, "notes must not exceed 1024 characters")
	}

	return scheduledAt, nil
}

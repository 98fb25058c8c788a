package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Channel is an outbound notification channel.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
	ChannelPush  Channel = "push"
)

// AllChannels lists channels in the order the dispatcher attempts them.
var AllChannels = []Channel{ChannelEmail, ChannelSMS, ChannelPush}

// DefaultNotificationType is assumed when a queue message omits the type.
const DefaultNotificationType = "appointment.reminder"

// DispatchStatus is the lifecycle state of a dispatch log entry.
type DispatchStatus string

const (
	DispatchProcessing DispatchStatus = "processing"
	DispatchSent       DispatchStatus = "sent"
	DispatchSkipped    DispatchStatus = "skipped"
	DispatchFailed     DispatchStatus = "failed"
)

// sentAtSentinel is persisted in sent_at until a send actually succeeds.
var sentAtSentinel = time.Unix(0, 0).UTC()

// NotificationMessage is the queue message consumed by the dispatcher. The
// queue delivers at-least-once, possibly duplicated and reordered.
type NotificationMessage struct {
	NotificationID string            `json:"notification_id,omitempty"`
	UserID         string            `json:"user_id"`
	Type           string            `json:"type,omitempty"`
	CorrelationID  string            `json:"correlation_id,omitempty"`
	Variables      map[string]string `json:"variables,omitempty"`
	Email          string            `json:"email,omitempty"`
	PhoneE164      string            `json:"phone_e164,omitempty"`
}

// NewNotificationID generates a notification id of the form "ntf_<32 hex>",
// used when the producer did not supply one.
func NewNotificationID() string {
	return "ntf_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// DispatchEntry is the idempotency/audit record for one notification id.
// Exactly one entry exists per id; it transitions processing -> sent/skipped/
// failed and accumulates attempts monotonically.
type DispatchEntry struct {
	NotificationID string            `json:"notification_id"`
	UserID         string            `json:"user_id"`
	Type           string            `json:"type"`
	Status         DispatchStatus    `json:"status"`
	Attempts       int               `json:"attempts"`
	CorrelationID  string            `json:"correlation_id"`
	CreatedAt      time.Time         `json:"created_at"`
	SentAt         time.Time         `json:"sent_at"`
	LastError      string            `json:"last_error,omitempty"`
	Provider       map[string]string `json:"provider"`
}

// NewDispatchEntry builds the initial processing-state entry claimed on first
// sight of a notification id.
func NewDispatchEntry(notificationID, userID, notifType, correlationID string, now time.Time) *DispatchEntry {
	return &DispatchEntry{
		NotificationID: notificationID,
		UserID:         userID,
		Type:           notifType,
		Status:         DispatchProcessing,
		Attempts:       0,
		CorrelationID:  correlationID,
		CreatedAt:      now.UTC(),
		SentAt:         sentAtSentinel,
		Provider:       map[string]string{},
	}
}

// Preferences holds a user's channel toggles and per-notification-type
// overrides. Read-only from this service's perspective.
type Preferences struct {
	Channels map[Channel]bool            `json:"channels"`
	Types    map[string]map[Channel]bool `json:"types"`
	Locale   string                      `json:"locale,omitempty"`
}

// AllowedChannels computes (globally-enabled channels) minus channels the
// user overrode off for this notification type. A nil receiver (absent
// preferences) allows nothing.
func (p *Preferences) AllowedChannels(notifType string) []Channel {
	if p == nil {
		return nil
	}
	var overrides map[Channel]bool
	if p.Types != nil {
		overrides = p.Types[notifType]
	}

	var allowed []Channel
	for _, ch := range AllChannels {
		if !p.Channels[ch] {
			continue
		}
		if overrides != nil {
			if enabled, ok := overrides[ch]; ok && !enabled {
				continue
			}
		}
		allowed = append(allowed, ch)
	}
	return allowed
}

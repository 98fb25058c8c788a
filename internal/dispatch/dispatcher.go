// Package dispatch consumes notification queue messages and sends through
// the user's allowed channels, at most once successfully per notification id.
// Idempotency over at-least-once delivery comes from the dispatch log's
// first-writer-wins claim, not from the queue.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fieldops/scheduler/internal/correlation"
	"github.com/fieldops/scheduler/internal/domain"
	"github.com/fieldops/scheduler/internal/logger"
	"github.com/fieldops/scheduler/internal/store"
)

// Dispatcher handles one queue message at a time. A nil return from Handle
// lets the transport commit the message (success, duplicate, or an
// unrecoverable payload); an error return leaves it uncommitted so the queue
// redelivers.
type Dispatcher struct {
	logger    logger.Logger
	dlog      store.DispatchLog
	prefs     store.PreferenceSource
	templates TemplateSource
	senders   map[domain.Channel]Sender
	now       func() time.Time
}

func NewDispatcher(
	log logger.Logger,
	dlog store.DispatchLog,
	prefs store.PreferenceSource,
	templates TemplateSource,
	senders map[domain.Channel]Sender,
) *Dispatcher {
	return &Dispatcher{
		logger:    log,
		dlog:      dlog,
		prefs:     prefs,
		templates: templates,
		senders:   senders,
		now:       time.Now,
	}
}

// Handle processes one raw queue message end to end.
func (d *Dispatcher) Handle(ctx context.Context, raw []byte) error {
	var msg domain.NotificationMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		// Malformed payloads cannot be fixed by redelivery: drop.
		d.logger.Warn("dropping malformed notification message", logger.Error(err))
		return nil
	}

	if msg.UserID == "" {
		d.logger.Warn("dropping notification message without user_id")
		return nil
	}

	notifID := msg.NotificationID
	if notifID == "" {
		notifID = domain.NewNotificationID()
	}
	notifType := msg.Type
	if notifType == "" {
		notifType = domain.DefaultNotificationType
	}
	correlationID := correlation.OrNew(msg.CorrelationID)

	log := d.logger.With(
		logger.String("correlation_id", correlationID),
		logger.String("notification_id", notifID),
		logger.String("user_id", msg.UserID),
		logger.String("type", notifType))

	entry := domain.NewDispatchEntry(notifID, msg.UserID, notifType, correlationID, d.now())
	created, existing, err := d.dlog.ClaimNotification(ctx, entry)
	if err != nil {
		return fmt.Errorf("claim notification: %w", err)
	}
	if !created {
		// A failed entry is non-terminal: the previous delivery raised after
		// recording the failure, so this redelivery retries the send.
		if existing == nil || existing.Status != domain.DispatchFailed {
			log.Info("duplicate notification delivery, skipping")
			return nil
		}
		log.Info("retrying previously failed notification",
			logger.Int("attempts", existing.Attempts))
	}

	prefs, err := d.prefs.GetPreferences(ctx, msg.UserID)
	if err != nil {
		d.recordFailure(ctx, log, notifID, err)
		return fmt.Errorf("resolve preferences: %w", err)
	}
	allowed := prefs.AllowedChannels(notifType)

	locale := ""
	if prefs != nil {
		locale = prefs.Locale
	}
	tpl := d.templates.Resolve(notifType, locale).Render(msg.Variables)

	contacts := map[domain.Channel]string{
		domain.ChannelEmail: msg.Email,
		domain.ChannelSMS:   msg.PhoneE164,
		// push carries no contact data in the message payload
	}

	provider := map[string]string{}
	sentAny := false
	for _, ch := range allowed {
		to := contacts[ch]
		if to == "" {
			continue
		}
		sender, ok := d.senders[ch]
		if !ok {
			continue
		}

		providerID, err := sender.Send(ctx, to, tpl.Subject, tpl.Body)
		if err != nil {
			d.recordFailure(ctx, log, notifID, err)
			log.Error("channel send failed",
				logger.String("channel", string(ch)),
				logger.Error(err))
			return fmt.Errorf("send via %s: %w", ch, err)
		}
		provider[string(ch)+"_msg_id"] = providerID
		sentAny = true
		log.Info("channel send succeeded",
			logger.String("channel", string(ch)),
			logger.String("provider_id", providerID))
	}

	status := domain.DispatchSkipped
	if sentAny {
		status = domain.DispatchSent
	}
	if err := d.dlog.RecordOutcome(ctx, notifID, status, provider); err != nil {
		return fmt.Errorf("record outcome: %w", err)
	}

	log.Info("notification processed",
		logger.String("status", string(status)),
		logger.Int("channels_sent", len(provider)))
	return nil
}

// recordFailure persists the failed state before the error is re-raised to
// the transport. Best effort: the re-raise happens regardless.
func (d *Dispatcher) recordFailure(ctx context.Context, log logger.Logger, notifID string, cause error) {
	if err := d.dlog.RecordFailure(ctx, notifID, cause); err != nil {
		log.Error("failed to record dispatch failure", logger.Error(err))
	}
}

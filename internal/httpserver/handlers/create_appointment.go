package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/fieldops/scheduler/internal/apperr"
	"github.com/fieldops/scheduler/internal/correlation"
	"github.com/fieldops/scheduler/internal/domain"
	"github.com/fieldops/scheduler/internal/httpserver/deps"
	"github.com/fieldops/scheduler/internal/logger"
	"github.com/fieldops/scheduler/internal/upstream"
)

// CreateAppointment is the creation orchestrator: payload validation, the two
// upstream existence checks run concurrently, then the atomic create-if-absent
// write. Payload validation happens before any network or store call.
func CreateAppointment(d deps.Deps) http.HandlerFunc {
	timeNow := d.TimeNow
	if timeNow == nil {
		timeNow = time.Now
	}
	newID := d.NewAppointmentID
	if newID == nil {
		newID = domain.NewAppointmentID
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		correlationID := correlation.FromContext(ctx)
		log := d.Logger.With(logger.String("correlation_id", correlationID))

		var req domain.CreateAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			log.Warn("invalid JSON in create appointment request", logger.Error(err))
			writeError(w, correlationID, apperr.New(apperr.Validation, "Invalid JSON body"))
			return
		}

		scheduledAt, verr := req.Validate()
		if verr != nil {
			log.Warn("create appointment payload rejected", logger.String("reason", verr.Message))
			writeError(w, correlationID, verr)
			return
		}

		// Client and service existence checks run concurrently; both results
		// are awaited before deciding. Worst outcome wins: either failure
		// short-circuits the creation with its own classification.
		clientCh := make(chan upstream.Outcome, 1)
		serviceCh := make(chan upstream.Outcome, 1)
		go func() { clientCh <- d.ClientLookup.Validate(ctx, req.ClientID, correlationID) }()
		go func() { serviceCh <- d.ServiceLookup.Validate(ctx, req.ServiceID, correlationID) }()
		clientOutcome := <-clientCh
		serviceOutcome := <-serviceCh

		if !clientOutcome.Exists {
			writeError(w, correlationID, clientOutcome.Err)
			return
		}
		if !serviceOutcome.Exists {
			writeError(w, correlationID, serviceOutcome.Err)
			return
		}

		appt := &domain.Appointment{
			ID:            newID(),
			ClientID:      req.ClientID,
			ServiceID:     req.ServiceID,
			ScheduledAt:   scheduledAt,
			DatePK:        domain.DatePK(scheduledAt),
			Location:      req.Location,
			Status:        domain.StatusScheduled,
			Notes:         req.Notes,
			WeatherRisk:   domain.WeatherRiskUnknown,
			CorrelationID: correlationID,
			CreatedAt:     timeNow().UTC(),
		}

		if err := d.Appointments.CreateAppointment(ctx, appt); err != nil {
			ae := apperr.From(err)
			if ae.Kind == apperr.Conflict {
				log.Warn("duplicate appointment detected",
					logger.String("client_id", req.ClientID),
					logger.String("service_id", req.ServiceID),
					logger.String("scheduled_at", domain.ISO(scheduledAt)))
				writeError(w, correlationID, ae)
				return
			}
			// Infrastructure fault: full detail in logs, generic message out.
			log.Error("failed to create appointment", logger.Error(err))
			writeError(w, correlationID, apperr.New(apperr.Internal, "Failed to create appointment"))
			return
		}

		log.Info("appointment created",
			logger.String("appointment_id", appt.ID),
			logger.String("client_id", appt.ClientID),
			logger.String("service_id", appt.ServiceID),
			logger.String("scheduled_at", domain.ISO(appt.ScheduledAt)))

		writeJSON(w, http.StatusCreated, correlationID, map[string]any{
			"appointment_id": appt.ID,
			"status":         string(appt.Status),
			"scheduled_at":   domain.ISO(appt.ScheduledAt),
			"location":       appt.Location,
		})
	}
}

package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fieldops/scheduler/internal/apperr"
	"github.com/fieldops/scheduler/internal/correlation"
	"github.com/fieldops/scheduler/internal/domain"
	"github.com/fieldops/scheduler/internal/httpserver/deps"
	"github.com/fieldops/scheduler/internal/httpserver/mw"
	"github.com/fieldops/scheduler/internal/logger"
	"github.com/fieldops/scheduler/internal/upstream"
)

// fakeLookup counts calls and returns a fixed outcome.
type fakeLookup struct {
	mu      sync.Mutex
	calls   int
	outcome upstream.Outcome
}

func (f *fakeLookup) Validate(ctx context.Context, id, correlationID string) upstream.Outcome {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.outcome
}

func (f *fakeLookup) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func existsOutcome() upstream.Outcome {
	return upstream.Outcome{Exists: true, Data: map[string]any{"id": "x"}}
}

// fakeCreator emulates the store's create-if-absent semantics over an
// in-memory fingerprint set.
type fakeCreator struct {
	mu      sync.Mutex
	calls   int
	err     error
	created map[string]bool
}

func newFakeCreator() *fakeCreator {
	return &fakeCreator{created: map[string]bool{}}
}

func (f *fakeCreator) CreateAppointment(ctx context.Context, appt *domain.Appointment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return f.err
	}
	fp := domain.Fingerprint(appt.ClientID, appt.ServiceID, appt.ScheduledAt, appt.Location)
	if f.created[fp] {
		return apperr.New(apperr.Conflict, "Appointment already exists for this client, service, and time slot")
	}
	f.created[fp] = true
	return nil
}

func (f *fakeCreator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type handlerEnv struct {
	handler  http.Handler
	clients  *fakeLookup
	services *fakeLookup
	creator  *fakeCreator
}

func newHandlerEnv() *handlerEnv {
	clients := &fakeLookup{outcome: existsOutcome()}
	services := &fakeLookup{outcome: existsOutcome()}
	creator := newFakeCreator()

	d := deps.Deps{
		Logger:        logger.New("error", false),
		StartTime:     time.Now(),
		TimeNow:       time.Now,
		Appointments:  creator,
		ClientLookup:  clients,
		ServiceLookup: services,
	}

	return &handlerEnv{
		handler:  mw.Correlation(CreateAppointment(d)),
		clients:  clients,
		services: services,
		creator:  creator,
	}
}

func (e *handlerEnv) post(t *testing.T, body string, headers map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/appointments", strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	var decoded map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("response body is not JSON: %v (%s)", err, rec.Body.String())
	}
	return rec, decoded
}

const validBody = `{"client_id":"cli_1","service_id":"svc_1","scheduled_at":"2026-03-15T10:00:00Z","location":"SW1A 2AA","notes":"gate code 1234"}`

func TestCreateAppointmentSuccess(t *testing.T) {
	env := newHandlerEnv()
	rec, body := env.post(t, validBody, nil)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (body %v)", rec.Code, body)
	}
	if body["status"] != "scheduled" {
		t.Errorf("status field = %v, want scheduled", body["status"])
	}
	if body["scheduled_at"] != "2026-03-15T10:00:00Z" {
		t.Errorf("scheduled_at = %v, want UTC ISO form", body["scheduled_at"])
	}
	if body["location"] != "SW1A 2AA" {
		t.Errorf("location = %v, want SW1A 2AA", body["location"])
	}
	id, _ := body["appointment_id"].(string)
	if !strings.HasPrefix(id, "apt_") {
		t.Errorf("appointment_id = %q, want apt_ prefix", id)
	}
	if env.clients.callCount() != 1 || env.services.callCount() != 1 {
		t.Errorf("lookup calls = %d/%d, want 1/1", env.clients.callCount(), env.services.callCount())
	}
}

func TestCreateAppointmentMissingFields(t *testing.T) {
	env := newHandlerEnv()
	rec, body := env.post(t, `{"notes":"hi"}`, nil)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	fields, _ := body["fields"].([]any)
	want := []string{"client_id", "service_id", "scheduled_at", "location"}
	if len(fields) != len(want) {
		t.Fatalf("fields = %v, want all of %v enumerated", fields, want)
	}
	for i, f := range want {
		if fields[i] != f {
			t.Errorf("fields[%d] = %v, want %v", i, fields[i], f)
		}
	}
	// Fail fast: no upstream call, no store write.
	if env.clients.callCount() != 0 || env.services.callCount() != 0 {
		t.Errorf("lookup calls = %d/%d, want 0/0", env.clients.callCount(), env.services.callCount())
	}
	if env.creator.callCount() != 0 {
		t.Errorf("store calls = %d, want 0", env.creator.callCount())
	}
}

func TestCreateAppointmentBadDateMakesNoUpstreamCalls(t *testing.T) {
	env := newHandlerEnv()
	rec, _ := env.post(t, `{"client_id":"cli_1","service_id":"svc_1","scheduled_at":"not-a-date","location":"SW1A 2AA"}`, nil)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if env.clients.callCount() != 0 || env.services.callCount() != 0 {
		t.Errorf("lookup calls = %d/%d, want 0/0", env.clients.callCount(), env.services.callCount())
	}
}

func TestCreateAppointmentInvalidJSON(t *testing.T) {
	env := newHandlerEnv()
	rec, body := env.post(t, `{"client_id":`, nil)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if body["error"] != "Invalid JSON body" {
		t.Errorf("error = %v, want Invalid JSON body", body["error"])
	}
}

func TestCreateAppointmentUpstreamClassification(t *testing.T) {
	tests := []struct {
		name       string
		client     upstream.Outcome
		service    upstream.Outcome
		wantStatus int
		wantError  string
	}{
		{
			name:       "client not found",
			client:     upstream.Outcome{Err: apperr.New(apperr.NotFound, "Client not found").WithDetail("client_id", "cli_1")},
			service:    existsOutcome(),
			wantStatus: http.StatusNotFound,
			wantError:  "Client not found",
		},
		{
			name:       "service not found",
			client:     existsOutcome(),
			service:    upstream.Outcome{Err: apperr.New(apperr.NotFound, "Service not found").WithDetail("service_id", "svc_1")},
			wantStatus: http.StatusNotFound,
			wantError:  "Service not found",
		},
		{
			name:       "client lookup timeout",
			client:     upstream.Outcome{Err: apperr.New(apperr.Unavailable, "Service timeout").WithDetail("details", "user service did not respond in time")},
			service:    existsOutcome(),
			wantStatus: http.StatusServiceUnavailable,
			wantError:  "Service timeout",
		},
		{
			name:       "both fail, client classification wins",
			client:     upstream.Outcome{Err: apperr.New(apperr.NotFound, "Client not found")},
			service:    upstream.Outcome{Err: apperr.New(apperr.Unavailable, "Service timeout")},
			wantStatus: http.StatusNotFound,
			wantError:  "Client not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newHandlerEnv()
			env.clients.outcome = tt.client
			env.services.outcome = tt.service

			rec, body := env.post(t, validBody, nil)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %v)", rec.Code, tt.wantStatus, body)
			}
			if body["error"] != tt.wantError {
				t.Errorf("error = %v, want %q (upstream payload propagated)", body["error"], tt.wantError)
			}
			// Both lookups are awaited even when one fails.
			if env.clients.callCount() != 1 || env.services.callCount() != 1 {
				t.Errorf("lookup calls = %d/%d, want 1/1", env.clients.callCount(), env.services.callCount())
			}
			// No store write on validation failure.
			if env.creator.callCount() != 0 {
				t.Errorf("store calls = %d, want 0", env.creator.callCount())
			}
		})
	}
}

func TestCreateAppointmentDuplicate(t *testing.T) {
	env := newHandlerEnv()

	rec, _ := env.post(t, validBody, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("first create status = %d, want 201", rec.Code)
	}

	rec, body := env.post(t, validBody, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("second create status = %d, want 409", rec.Code)
	}
	if msg, _ := body["error"].(string); !strings.Contains(msg, "already exists") {
		t.Errorf("error = %v, want duplicate-appointment message", body["error"])
	}
}

func TestCreateAppointmentStoreFailure(t *testing.T) {
	env := newHandlerEnv()
	env.creator.err = apperr.Wrap(apperr.Internal, "Failed to create appointment", context.DeadlineExceeded)

	rec, body := env.post(t, validBody, nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	// Generic message only; detail stays in logs.
	if body["error"] != "Failed to create appointment" {
		t.Errorf("error = %v, want generic message", body["error"])
	}
}

func TestCreateAppointmentCorrelationRoundTrip(t *testing.T) {
	t.Run("supplied id echoed in header and body", func(t *testing.T) {
		env := newHandlerEnv()
		rec, body := env.post(t, validBody, map[string]string{correlation.Header: "cor-supplied-42"})

		if got := rec.Header().Get(correlation.Header); got != "cor-supplied-42" {
			t.Errorf("header = %q, want cor-supplied-42", got)
		}
		if body["correlation_id"] != "cor-supplied-42" {
			t.Errorf("body correlation_id = %v, want cor-supplied-42", body["correlation_id"])
		}
	})

	t.Run("generated id consistent between header and body", func(t *testing.T) {
		env := newHandlerEnv()
		rec, body := env.post(t, validBody, nil)

		header := rec.Header().Get(correlation.Header)
		if !strings.HasPrefix(header, correlation.IDPrefix) {
			t.Fatalf("header = %q, want generated %q prefix", header, correlation.IDPrefix)
		}
		if body["correlation_id"] != header {
			t.Errorf("body correlation_id = %v, want header value %q", body["correlation_id"], header)
		}
	})
}

func TestCreateAppointmentConcurrentDuplicates(t *testing.T) {
	env := newHandlerEnv()

	const n = 16
	codes := make(chan int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodPost, "/appointments", strings.NewReader(validBody))
			rec := httptest.NewRecorder()
			env.handler.ServeHTTP(rec, req)
			codes <- rec.Code
		}()
	}
	wg.Wait()
	close(codes)

	var created, conflicts int
	for code := range codes {
		switch code {
		case http.StatusCreated:
			created++
		case http.StatusConflict:
			conflicts++
		default:
			t.Errorf("unexpected status %d", code)
		}
	}
	if created != 1 {
		t.Errorf("created = %d, want exactly 1", created)
	}
	if conflicts != n-1 {
		t.Errorf("conflicts = %d, want %d", conflicts, n-1)
	}
}

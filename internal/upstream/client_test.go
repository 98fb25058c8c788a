package upstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fieldops/scheduler/internal/apperr"
	"github.com/fieldops/scheduler/internal/correlation"
	"github.com/fieldops/scheduler/internal/logger"
)

func newTestClient(t *testing.T, baseURL string, timeout time.Duration) *Client {
	t.Helper()
	return NewClient("client", "user service", baseURL, ClientDetailPath, timeout, logger.New("error", false))
}

func TestValidateExists(t *testing.T) {
	var gotPath, gotCorrelation string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotCorrelation = r.Header.Get(correlation.Header)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "cli_1", "name": "Ada"})
	}))
	defer ts.Close()

	c := newTestClient(t, ts.URL, time.Second)
	outcome := c.Validate(context.Background(), "cli_1", "cor-test")

	if !outcome.Exists {
		t.Fatalf("Validate() exists = false, err = %v", outcome.Err)
	}
	if outcome.Data["name"] != "Ada" {
		t.Errorf("payload name = %v, want Ada", outcome.Data["name"])
	}
	if gotPath != "/api/v1/clients/cli_1" {
		t.Errorf("path = %q, want /api/v1/clients/cli_1", gotPath)
	}
	if gotCorrelation != "cor-test" {
		t.Errorf("correlation header = %q, want cor-test", gotCorrelation)
	}
}

func TestValidateClassification(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		wantKind apperr.Kind
	}{
		{name: "404 maps to not found", status: http.StatusNotFound, wantKind: apperr.NotFound},
		{name: "500 maps to unavailable", status: http.StatusInternalServerError, wantKind: apperr.Unavailable},
		{name: "502 maps to unavailable", status: http.StatusBadGateway, wantKind: apperr.Unavailable},
		{name: "403 maps to unavailable", status: http.StatusForbidden, wantKind: apperr.Unavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer ts.Close()

			outcome := newTestClient(t, ts.URL, time.Second).Validate(context.Background(), "cli_1", "cor-test")
			if outcome.Exists {
				t.Fatal("Validate() exists = true, want false")
			}
			if outcome.Err == nil || outcome.Err.Kind != tt.wantKind {
				t.Errorf("err = %v, want kind %v", outcome.Err, tt.wantKind)
			}
		})
	}
}

func TestValidateTimeoutIsUnavailable(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer ts.Close()

	outcome := newTestClient(t, ts.URL, 20*time.Millisecond).Validate(context.Background(), "cli_1", "cor-test")
	if outcome.Exists {
		t.Fatal("Validate() exists = true, want false on timeout")
	}
	if outcome.Err == nil || outcome.Err.Kind != apperr.Unavailable {
		t.Errorf("err = %v, want Unavailable", outcome.Err)
	}
	if outcome.Err.Message != "Service timeout" {
		t.Errorf("message = %q, want Service timeout", outcome.Err.Message)
	}
}

func TestValidateTransportFailureIsUnavailable(t *testing.T) {
	// Point at a closed server.
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	ts.Close()

	outcome := newTestClient(t, ts.URL, time.Second).Validate(context.Background(), "cli_1", "cor-test")
	if outcome.Exists {
		t.Fatal("Validate() exists = true, want false on transport failure")
	}
	if outcome.Err == nil || outcome.Err.Kind != apperr.Unavailable {
		t.Errorf("err = %v, want Unavailable", outcome.Err)
	}
}

func TestValidateNotFoundPayload(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	outcome := newTestClient(t, ts.URL, time.Second).Validate(context.Background(), "cli_missing", "cor-test")
	if outcome.Err == nil {
		t.Fatal("Validate() err = nil")
	}
	if outcome.Err.Message != "Client not found" {
		t.Errorf("message = %q, want Client not found", outcome.Err.Message)
	}
	if outcome.Err.Details["client_id"] != "cli_missing" {
		t.Errorf("details[client_id] = %v, want cli_missing", outcome.Err.Details["client_id"])
	}
}

package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/fieldops/scheduler/internal/apperr"
	"github.com/fieldops/scheduler/internal/correlation"
)

// writeJSON writes the standard response envelope: the correlation id goes
// into both a header and the body, alongside the payload fields.
func writeJSON(w http.ResponseWriter, status int, correlationID string, body map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set(correlation.Header, correlationID)
	w.WriteHeader(status)

	envelope := make(map[string]any, len(body)+1)
	for k, v := range body {
		envelope[k] = v
	}
	envelope["correlation_id"] = correlationID

	_ = json.NewEncoder(w).Encode(envelope)
}

// writeError renders a classified error with its mapped status code.
func writeError(w http.ResponseWriter, correlationID string, err *apperr.Error) {
	writeJSON(w, err.HTTPStatus(), correlationID, err.Body())
}

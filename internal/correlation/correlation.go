// Package correlation carries an opaque request token across the call chain
// (HTTP handler -> upstream lookups -> store writes -> log lines) so every
// side effect of one request can be tied together in the logs.
package correlation

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// Header is the HTTP header used to receive and return correlation ids.
const Header = "X-Correlation-Id"

// IDPrefix is prepended to every generated correlation id.
const IDPrefix = "cor-"

type ctxKey struct{}

// NewID generates a fresh correlation id of the form "cor-<32 hex chars>".
func NewID() string {
	return IDPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// FromRequest extracts the correlation id from the request header, generating
// one if the caller did not supply it.
func FromRequest(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(Header)); id != "" {
		return id
	}
	return NewID()
}

// WithContext stores the correlation id in the context.
func WithContext(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the correlation id stored in the context, or "" if absent.
func FromContext(ctx context.Context) string {
	if id, ok := ctx.Value(ctxKey{}).(string); ok {
		return id
	}
	return ""
}

// OrNew returns id unchanged when set, otherwise a freshly generated one.
func OrNew(id string) string {
	if strings.TrimSpace(id) != "" {
		return id
	}
	return NewID()
}

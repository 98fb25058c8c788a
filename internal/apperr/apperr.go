// Package apperr defines the error taxonomy shared by the creation pipeline
// and the notification dispatcher. Every failure a caller can act on is one of
// five kinds, each with a fixed HTTP mapping.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for propagation and HTTP mapping.
type Kind int

const (
	// Validation: malformed or missing input. 400, never retried.
	Validation Kind = iota
	// NotFound: a referenced entity is absent upstream. 404, not retried here.
	NotFound
	// Unavailable: timeout/5xx/transport failure from a dependency. 503, safe
	// for the external caller to retry.
	Unavailable
	// Conflict: duplicate creation. 409, a legitimate business conflict.
	Conflict
	// Internal: store failure unrelated to the above. 500.
	Internal
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case NotFound:
		return "not_found"
	case Unavailable:
		return "unavailable"
	case Conflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Error is a classified error with an optional machine-readable payload that
// is rendered verbatim into the response body alongside the message.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]any
	cause   error
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// WithDetail attaches one payload field and returns the error for chaining.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any, 2)
	}
	e.Details[key] = value
	return e
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// HTTPStatus maps the kind to its response status code.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case Validation:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	case Unavailable:
		return http.StatusServiceUnavailable
	case Conflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Body renders the error as a response payload: {"error": message, <details>}.
func (e *Error) Body() map[string]any {
	body := make(map[string]any, len(e.Details)+1)
	body["error"] = e.Message
	for k, v := range e.Details {
		body[k] = v
	}
	return body
}

// From extracts an *Error from an error chain, classifying unknown errors as
// Internal so callers always get a usable status mapping.
func From(err error) *Error {
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return Wrap(Internal, "Internal error", err)
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Kind == kind
}

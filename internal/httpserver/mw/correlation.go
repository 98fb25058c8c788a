package mw

import (
	"net/http"

	"github.com/fieldops/scheduler/internal/correlation"
)

// Correlation extracts the correlation id from the request header (or
// generates one) and stores it in the request context. The response header is
// set here so even panics recovered downstream still carry the id.
func Correlation(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := correlation.FromRequest(r)
		w.Header().Set(correlation.Header, id)
		next.ServeHTTP(w, r.WithContext(correlation.WithContext(r.Context(), id)))
	})
}

// Package upstream validates entity references against the lookup services.
// One bounded-timeout call per entity, no retries: retry policy on the create
// path is fail-fast by design.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fieldops/scheduler/internal/apperr"
	"github.com/fieldops/scheduler/internal/correlation"
	"github.com/fieldops/scheduler/internal/logger"
	"github.com/fieldops/scheduler/internal/utils"
)

// Fixed lookup paths on the upstream services.
const (
	ClientDetailPath  = "/api/v1/clients/"
	ServiceDetailPath = "/api/v1/services/"
)

// Outcome is the result of one existence check. When Exists is false, Err
// carries the classification the orchestrator propagates: NotFound for a 404,
// Unavailable for everything else.
type Outcome struct {
	Exists bool
	Data   map[string]any
	Err    *apperr.Error
}

// Lookup is the capability consumed by the creation orchestrator, one
// instance per upstream entity kind.
type Lookup interface {
	Validate(ctx context.Context, id, correlationID string) Outcome
}

// Client performs existence lookups against one upstream service.
type Client struct {
	kind    string // "client" | "service", used in error payloads and logs
	display string // capitalized kind for user-facing messages
	service string // human name of the upstream dependency, ex: "user service"
	baseURL string
	path    string
	http    *http.Client
	logger  logger.Logger
}

// NewClient builds a lookup client. timeout bounds every call; the caller
// context can only shorten it further.
func NewClient(kind, service, baseURL, path string, timeout time.Duration, log logger.Logger) *Client {
	return &Client{
		kind:    kind,
		display: strings.ToUpper(kind[:1]) + kind[1:],
		service: service,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		path:    path,
		http:    &http.Client{Timeout: timeout},
		logger:  log,
	}
}

// Validate checks whether the entity exists upstream, propagating the
// correlation id as a header. 200 -> exists with payload; 404 -> NotFound;
// any other status, timeout or transport failure -> Unavailable.
func (c *Client) Validate(ctx context.Context, id, correlationID string) Outcome {
	url := c.baseURL + c.path + id
	log := c.logger.With(
		logger.String("correlation_id", correlationID),
		logger.String(c.kind+"_id", id))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return Outcome{Err: apperr.Wrap(apperr.Unavailable, "Failed to verify "+c.kind, err).
			WithDetail("details", c.display+" lookup request could not be built")}
	}
	req.Header.Set(correlation.Header, correlationID)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		if isTimeout(err) {
			log.Error("upstream lookup timed out",
				logger.String("url", url),
				logger.Duration("elapsed", elapsed))
			return Outcome{Err: apperr.Wrap(apperr.Unavailable, "Service timeout", err).
				WithDetail("details", c.service+" did not respond in time")}
		}
		log.Error("upstream lookup failed",
			logger.String("url", url),
			logger.Duration("elapsed", elapsed),
			logger.Error(err))
		return Outcome{Err: apperr.Wrap(apperr.Unavailable, "Failed to verify "+c.kind, err).
			WithDetail("details", c.service+" is unreachable")}
	}
	defer utils.Close(resp.Body)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		log.Warn("entity not found upstream",
			logger.Int("status", resp.StatusCode),
			logger.Duration("elapsed", elapsed))
		return Outcome{Err: apperr.New(apperr.NotFound, c.display+" not found").
			WithDetail(c.kind+"_id", id)}

	case resp.StatusCode != http.StatusOK:
		log.Error("upstream returned error status",
			logger.Int("status", resp.StatusCode),
			logger.Duration("elapsed", elapsed))
		return Outcome{Err: apperr.New(apperr.Unavailable, "Failed to verify "+c.kind).
			WithDetail("details", fmt.Sprintf("%s returned status %d", c.service, resp.StatusCode))}
	}

	var data map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		log.Error("upstream returned unparseable body",
			logger.Int("status", resp.StatusCode),
			logger.Error(err))
		return Outcome{Err: apperr.Wrap(apperr.Unavailable, "Failed to verify "+c.kind, err).
			WithDetail("details", c.service+" returned an invalid body")}
	}

	log.Info("entity validated upstream",
		logger.Int("status", resp.StatusCode),
		logger.Duration("elapsed", elapsed))
	return Outcome{Exists: true, Data: data}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}

// Package channels implements the concrete channel senders behind the
// dispatch.Sender interface. Each one posts to its provider's HTTP API with a
// bounded timeout and returns the provider-assigned message id.
package channels

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/fieldops/scheduler/internal/utils"
)

// EmailSender delivers through an HTTP email provider.
type EmailSender struct {
	endpoint string
	from     string
	http     *http.Client
}

func NewEmailSender(endpoint, from string, timeout time.Duration) *EmailSender {
	return &EmailSender{
		endpoint: endpoint,
		from:     from,
		http:     &http.Client{Timeout: timeout},
	}
}

type emailRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func (s *EmailSender) Send(ctx context.Context, to, subject, body string) (string, error) {
	payload, err := json.Marshal(emailRequest{
		From:    s.from,
		To:      to,
		Subject: subject,
		Body:    body,
	})
	if err != nil {
		return "", fmt.Errorf("marshal email request: %w", err)
	}

	return postToProvider(ctx, s.http, s.endpoint, payload, "email")
}

// providerResponse is the minimal shape all providers return.
type providerResponse struct {
	MessageID string `json:"message_id"`
}

func postToProvider(ctx context.Context, client *http.Client, endpoint string, payload []byte, channel string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build %s provider request: %w", channel, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s provider request failed: %w", channel, err)
	}
	defer utils.Close(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%s provider returned status %d", channel, resp.StatusCode)
	}

	var out providerResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode %s provider response: %w", channel, err)
	}
	if out.MessageID == "" {
		return "", fmt.Errorf("%s provider returned no message id", channel)
	}
	return out.MessageID, nil
}

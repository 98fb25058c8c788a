package channels

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// SMSSender delivers through an HTTP SMS provider.
type SMSSender struct {
	endpoint string
	senderID string
	http     *http.Client
}

func NewSMSSender(endpoint, senderID string, timeout time.Duration) *SMSSender {
	return &SMSSender{
		endpoint: endpoint,
		senderID: senderID,
		http:     &http.Client{Timeout: timeout},
	}
}

type smsRequest struct {
	SenderID string `json:"sender_id"`
	To       string `json:"to"` // E.164 phone number
	Message  string `json:"message"`
}

// Send posts the SMS to the provider. The subject is ignored: SMS carries
// only the body.
func (s *SMSSender) Send(ctx context.Context, to, _ string, body string) (string, error) {
	payload, err := json.Marshal(smsRequest{
		SenderID: s.senderID,
		To:       to,
		Message:  body,
	})
	if err != nil {
		return "", fmt.Errorf("marshal sms request: %w", err)
	}

	return postToProvider(ctx, s.http, s.endpoint, payload, "sms")
}

package dispatch

import "context"

// Sender delivers one message through one channel and returns the
// provider-assigned message id. Implementations live in dispatch/channels.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) (providerID string, err error)
}

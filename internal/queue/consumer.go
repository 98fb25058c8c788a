// Package queue consumes notification messages from Kafka. Delivery is
// at-least-once: a message's offset is committed only after the handler
// returns nil. Kafka group commits are a watermark, not per-message acks, so
// a failed message is retried in place with backoff instead of skipped:
// committing any later message on the partition would advance the watermark
// past the failure and silently drop it. Deduplication is the dispatcher's
// job, not the queue's.
package queue

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/fieldops/scheduler/internal/logger"
)

// Handler processes one raw message. A nil return commits the offset; an
// error return keeps the message as the partition head until it succeeds.
type Handler func(ctx context.Context, value []byte) error

// Default retry backoff bounds, exponential between them.
const (
	defaultMinBackoff = time.Second
	defaultMaxBackoff = 30 * time.Second
)

// Options configures the consumer.
type Options struct {
	Brokers []string
	GroupID string
	Topic   string

	// Backoff bounds for handler retries and fetch failures.
	// Zero values use the defaults.
	MinBackoff time.Duration
	MaxBackoff time.Duration
}

// messageReader is the slice of *kafka.Reader the consume loop needs,
// extracted so the loop is testable without a broker.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer runs a single-message-at-a-time consume loop over one topic.
type Consumer struct {
	reader     messageReader
	handle     Handler
	logger     logger.Logger
	minBackoff time.Duration
	maxBackoff time.Duration
	done       chan struct{}
}

// NewConsumer creates a consumer in the given group. Messages are processed
// sequentially and in order within a partition; a failing message blocks its
// partition until it is handled.
func NewConsumer(opts Options, handle Handler, log logger.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  opts.Brokers,
		GroupID:  opts.GroupID,
		Topic:    opts.Topic,
		MinBytes: 1e3,
		MaxBytes: 10e6,
		MaxWait:  time.Second,
	})

	minBackoff := opts.MinBackoff
	if minBackoff <= 0 {
		minBackoff = defaultMinBackoff
	}
	maxBackoff := opts.MaxBackoff
	if maxBackoff <= 0 {
		maxBackoff = defaultMaxBackoff
	}

	return &Consumer{
		reader:     reader,
		handle:     handle,
		logger:     log,
		minBackoff: minBackoff,
		maxBackoff: maxBackoff,
		done:       make(chan struct{}),
	}
}

// Start launches the consume loop.
func (c *Consumer) Start(ctx context.Context) {
	go c.run(ctx)
}

func (c *Consumer) run(ctx context.Context) {
	defer close(c.done)

	fetchWait := c.minBackoff
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
				c.logger.Info("queue consumer stopping")
				return
			}
			// Transient fetch failure: back off and keep consuming rather
			// than leaving the service up with a dead consumer.
			c.logger.Error("failed to fetch queue message, backing off",
				logger.Duration("wait", fetchWait),
				logger.Error(err))
			if !sleep(ctx, fetchWait) {
				return
			}
			fetchWait = nextWait(fetchWait, c.maxBackoff)
			continue
		}
		fetchWait = c.minBackoff

		if !c.handleWithRetry(ctx, msg) {
			return
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Error("failed to commit queue offset",
				logger.String("topic", msg.Topic),
				logger.Int("partition", msg.Partition),
				logger.Error(err))
		}
	}
}

// handleWithRetry redelivers the same message to the handler until it
// returns nil. The commit watermark never moves past a failed message, at
// the cost of head-of-line blocking on its partition. Returns false when the
// context ends mid-retry.
func (c *Consumer) handleWithRetry(ctx context.Context, msg kafka.Message) bool {
	wait := c.minBackoff
	for attempt := 1; ; attempt++ {
		err := c.handle(ctx, msg.Value)
		if err == nil {
			return true
		}

		c.logger.Error("message handling failed, retrying",
			logger.String("topic", msg.Topic),
			logger.Int("partition", msg.Partition),
			logger.Int("attempt", attempt),
			logger.Duration("wait", wait),
			logger.Error(err))

		if !sleep(ctx, wait) {
			return false
		}
		wait = nextWait(wait, c.maxBackoff)
	}
}

// Stop closes the reader and waits for the loop to exit.
func (c *Consumer) Stop() error {
	err := c.reader.Close()
	<-c.done
	return err
}

// sleep waits for d unless the context ends first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func nextWait(cur, max time.Duration) time.Duration {
	next := cur * 2
	if next > max {
		return max
	}
	return next
}

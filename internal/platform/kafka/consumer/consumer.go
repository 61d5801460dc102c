// Package consumer wraps a franz-go group consumer behind a small handler
// interface.
//
// Delivery is at-least-once (auto-committed group offsets), so handlers must
// be idempotent; the audit ingest absorbs replays via the event-ID conflict
// clause. A handler error leaves the message for redelivery; handlers that
// want to skip a message log and return nil.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Message is one consumed record.
type Message struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
	Timestamp time.Time
}

// Handler processes consumed messages.
type Handler interface {
	Handle(ctx context.Context, msg *Message) error
}

// Config holds group consumer settings.
type Config struct {
	Brokers []string
	Group   string
	Topics  []string
}

// Consumer polls a consumer group and dispatches records to the handler.
type Consumer struct {
	client  *kgo.Client
	handler Handler
	logger  *slog.Logger
}

// New builds a group consumer and verifies broker connectivity.
func New(ctx context.Context, cfg Config, handler Handler, logger *slog.Logger) (*Consumer, error) {
	if cfg.Group == "" {
		return nil, fmt.Errorf("consumer group is required")
	}
	if len(cfg.Topics) == 0 {
		return nil, fmt.Errorf("at least one topic is required")
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumerGroup(cfg.Group),
		kgo.ConsumeTopics(cfg.Topics...),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer client: %w", err)
	}
	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("kafka ping: %w", err)
	}

	return &Consumer{
		client:  client,
		handler: handler,
		logger:  logger,
	}, nil
}

// Run polls until ctx is cancelled or the client is closed. A cancelled
// context is a clean shutdown and returns nil.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return nil
		}

		fetches.EachError(func(topic string, partition int32, err error) {
			if errors.Is(err, context.Canceled) {
				return
			}
			c.logger.ErrorContext(ctx, "kafka fetch error",
				"topic", topic,
				"partition", partition,
				"error", err,
			)
		})

		fetches.EachRecord(func(record *kgo.Record) {
			msg := &Message{
				Topic:     record.Topic,
				Partition: record.Partition,
				Offset:    record.Offset,
				Key:       record.Key,
				Value:     record.Value,
				Timestamp: record.Timestamp,
			}
			if err := c.handler.Handle(ctx, msg); err != nil {
				c.logger.ErrorContext(ctx, "message handling failed, will redeliver",
					"topic", msg.Topic,
					"partition", msg.Partition,
					"offset", msg.Offset,
					"error", err,
				)
			}
		})
	}
}

// Close releases the client; Run returns after the current poll.
func (c *Consumer) Close() {
	c.client.Close()
}

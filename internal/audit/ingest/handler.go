package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"custodia/internal/platform/kafka/consumer"
	audit "custodia/pkg/platform/audit"
)

// Handler materializes foreign audit events into the audit store.
//
// Malformed messages are logged and committed — a bad payload must never
// block the partition. Store failures are returned so the message is
// redelivered; AppendWithID makes the replay harmless.
type Handler struct {
	store   audit.Store
	logger  *slog.Logger
	metrics *Metrics
}

// Option configures the Handler.
type Option func(*Handler)

// WithMetrics sets the metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

// NewHandler creates an ingest handler over the audit store.
func NewHandler(store audit.Store, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		store:  store,
		logger: logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle decodes one foreign audit event and appends it idempotently.
func (h *Handler) Handle(ctx context.Context, msg *consumer.Message) error {
	event, err := audit.UnmarshalWire(msg.Value)
	if err != nil {
		h.logger.ErrorContext(ctx, "skipping malformed audit event",
			"topic", msg.Topic,
			"key", string(msg.Key),
			"error", err,
		)
		if h.metrics != nil {
			h.metrics.IncSkipped("malformed")
		}
		return nil
	}

	if event.Action == "" {
		h.logger.ErrorContext(ctx, "skipping audit event without action",
			"topic", msg.Topic,
			"event_id", event.ID,
		)
		if h.metrics != nil {
			h.metrics.IncSkipped("missing_action")
		}
		return nil
	}

	if err := h.store.AppendWithID(ctx, event); err != nil {
		h.logger.ErrorContext(ctx, "failed to store ingested audit event",
			"event_id", event.ID,
			"action", event.Action,
			"error", err,
		)
		return fmt.Errorf("store ingested audit event: %w", err)
	}

	if h.metrics != nil {
		h.metrics.IncIngested(string(event.Category))
	}
	h.logger.DebugContext(ctx, "ingested audit event",
		"event_id", event.ID,
		"action", event.Action,
		"category", string(event.Category),
	)
	return nil
}

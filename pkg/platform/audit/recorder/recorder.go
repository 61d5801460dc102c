// Package recorder provides the fail-closed audit writer for regulatory
// events.
//
// Record emits compliance events with synchronous, fail-closed semantics:
// the caller blocks until the audit store write succeeds, and if it fails the
// calling operation MUST fail. RecordSecurity emits security events
// best-effort: persistence failure is logged and counted, never surfaced.
//
// Use Record for: erasure_requested, erasure_tier_changed, erasure_* decisions,
// subject_* side effects, erasure_backfilled.
package recorder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	id "custodia/pkg/domain"
	audit "custodia/pkg/platform/audit"
	"custodia/pkg/requestcontext"
)

// Forwarder fans a stored event out to external sinks (SIEM relay). The call
// must never block and never fail the caller.
type Forwarder interface {
	Forward(event audit.Event)
}

// Recorder is the single write path into the audit store.
type Recorder struct {
	store     audit.Store
	logger    *slog.Logger
	metrics   *Metrics
	forwarder Forwarder
}

// Option configures the Recorder.
type Option func(*Recorder)

// WithLogger sets a logger for error reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Recorder) {
		r.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(r *Recorder) {
		r.metrics = m
	}
}

// WithForwarder sets the SIEM relay. Events are forwarded only after the
// store append succeeded, so the relay never sees an event the trail lost.
func WithForwarder(f Forwarder) Option {
	return func(r *Recorder) {
		r.forwarder = f
	}
}

// New creates a recorder over the audit store.
func New(store audit.Store, opts ...Option) *Recorder {
	r := &Recorder{
		store: store,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record synchronously writes a compliance event to the audit store.
// Returns an error if persistence fails - the caller MUST fail its operation.
//
// This is a fail-closed operation: if the audit trail cannot be written,
// the erasure action must not be reported as done.
func (r *Recorder) Record(ctx context.Context, event audit.ComplianceEvent) error {
	start := time.Now()

	// Validate required fields
	if event.Action == "" {
		return fmt.Errorf("compliance event requires Action")
	}
	if event.ErasureRequestID == "" && event.SubjectID == "" {
		return fmt.Errorf("compliance event requires a subject or an erasure request")
	}

	// Request-scoped time keeps batch operations and tests consistent.
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}

	stored := event.ToEvent()
	stored.ID = id.NewEventID()

	// Synchronous write - this is the critical path
	if err := r.store.Append(ctx, stored); err != nil {
		if r.metrics != nil {
			r.metrics.IncPersistFailures()
		}
		if r.logger != nil {
			r.logger.ErrorContext(ctx, "CRITICAL: compliance audit failed",
				"action", event.Action,
				"erasure_request_id", event.ErasureRequestID,
				"subject_id", event.SubjectID,
				"error", err,
			)
		}
		return fmt.Errorf("compliance audit persistence failed: %w", err)
	}

	if r.metrics != nil {
		r.metrics.ObservePersistDuration(time.Since(start).Seconds())
		r.metrics.IncEventsEmitted(string(audit.CategoryCompliance))
	}

	r.forward(stored)
	return nil
}

// RecordSecurity writes a security event best-effort. A failed write is
// logged and counted but never fails the guarded operation: locking admins
// out because the audit database blinked would be worse than a gap in the
// security trail.
func (r *Recorder) RecordSecurity(ctx context.Context, event audit.SecurityEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.Severity == "" {
		event.Severity = audit.SeverityInfo
	}

	stored := event.ToEvent()
	stored.ID = id.NewEventID()

	if err := r.store.Append(ctx, stored); err != nil {
		if r.metrics != nil {
			r.metrics.IncPersistFailures()
		}
		if r.logger != nil {
			r.logger.WarnContext(ctx, "security audit write failed",
				"action", event.Action,
				"subject", event.Subject,
				"error", err,
			)
		}
		return
	}

	if r.metrics != nil {
		r.metrics.IncEventsEmitted(string(audit.CategorySecurity))
	}

	r.forward(stored)
}

func (r *Recorder) forward(event audit.Event) {
	if r.forwarder == nil {
		return
	}
	r.forwarder.Forward(event)
}

// Close is a no-op for the synchronous recorder.
func (r *Recorder) Close() error {
	return nil
}

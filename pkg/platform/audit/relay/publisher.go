// Package relay fans stored audit events out to the SIEM Kafka topic.
//
// The relay is strictly best-effort: Forward never blocks and never fails the
// caller. Events queue in a bounded ring buffer and a background flusher
// publishes them in batches; a circuit breaker limits publish attempts during
// a sustained broker outage, and drops are counted rather than retried
// forever. The durable copy of every event is already in the audit store
// before it reaches the relay.
package relay

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	audit "custodia/pkg/platform/audit"
	"custodia/pkg/platform/circuit"
)

// Sink publishes one encoded event. The Kafka producer implements it; tests
// substitute fakes.
type Sink interface {
	Publish(ctx context.Context, key, value []byte) error
}

// Publisher buffers events and relays them in the background.
type Publisher struct {
	sink    Sink
	buffer  *RingBuffer
	breaker *circuit.Breaker
	sampler *Sampler
	logger  *slog.Logger
	metrics *Metrics

	flushInterval time.Duration
	batchSize     int

	cancel context.CancelFunc
	group  *errgroup.Group
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithLogger sets a logger for drop and breaker reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) { p.logger = logger }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(p *Publisher) { p.metrics = m }
}

// WithBufferCapacity bounds the number of events awaiting relay.
func WithBufferCapacity(n int) Option {
	return func(p *Publisher) { p.buffer = NewRingBuffer(n) }
}

// WithFlushInterval sets how often the flusher drains the buffer.
func WithFlushInterval(d time.Duration) Option {
	return func(p *Publisher) {
		if d > 0 {
			p.flushInterval = d
		}
	}
}

// WithBatchSize caps how many events one flush publishes.
func WithBatchSize(n int) Option {
	return func(p *Publisher) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

// WithSampler samples operations-category events before they enter the
// buffer. Compliance and security events bypass it.
func WithSampler(s *Sampler) Option {
	return func(p *Publisher) { p.sampler = s }
}

// WithBreaker substitutes the circuit breaker (tests tighten thresholds).
func WithBreaker(b *circuit.Breaker) Option {
	return func(p *Publisher) { p.breaker = b }
}

// New builds a relay and starts its background flusher.
func New(sink Sink, opts ...Option) *Publisher {
	p := &Publisher{
		sink:          sink,
		buffer:        NewRingBuffer(0),
		breaker:       circuit.New("audit-relay", circuit.WithFailureThreshold(5), circuit.WithSuccessThreshold(2)),
		flushInterval: 250 * time.Millisecond,
		batchSize:     256,
	}
	for _, opt := range opts {
		opt(p)
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.group, ctx = errgroup.WithContext(ctx)
	p.group.Go(func() error {
		p.run(ctx)
		return nil
	})
	return p
}

// Forward queues an event for relay. Never blocks, never errors; on buffer
// pressure the oldest queued event is dropped and counted.
func (p *Publisher) Forward(event audit.Event) {
	if event.Category == audit.CategoryOperations && p.sampler != nil {
		if !p.sampler.ShouldSample(event.Action) {
			if p.metrics != nil {
				p.metrics.IncSampledOut()
			}
			return
		}
	}

	before := p.buffer.Dropped()
	p.buffer.Enqueue(event)
	if d := p.buffer.Dropped() - before; d > 0 && p.metrics != nil {
		p.metrics.AddDropped(float64(d), "buffer_full")
	}
}

// run drains the buffer on a fixed interval until the context ends.
func (p *Publisher) run(ctx context.Context) {
	ticker := time.NewTicker(p.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.flush(ctx)
		}
	}
}

// flush publishes one batch. While the circuit is open only the first event
// of the batch is attempted, so a dead broker sees one probe per interval
// instead of the full stream; the probe's outcome feeds the breaker and
// eventually closes it again.
func (p *Publisher) flush(ctx context.Context) int {
	batch := p.buffer.DequeueBatch(p.batchSize)
	attempted := false
	for _, event := range batch {
		if p.breaker.IsOpen() && attempted {
			p.drop(event, "circuit_open")
			continue
		}
		attempted = true
		p.publish(ctx, event)
	}
	return len(batch)
}

func (p *Publisher) publish(ctx context.Context, event audit.Event) {
	value, err := audit.MarshalWire(event)
	if err != nil {
		// Encoding faults are ours, not the broker's; keep them off the breaker.
		p.drop(event, "encode_failed")
		return
	}

	if err := p.sink.Publish(ctx, []byte(event.ID.String()), value); err != nil {
		p.drop(event, "publish_failed")
		if _, change := p.breaker.RecordFailure(); change.Opened {
			if p.logger != nil {
				p.logger.Warn("audit relay circuit opened",
					"breaker", p.breaker.Name(),
					"error", err,
				)
			}
			if p.metrics != nil {
				p.metrics.IncBreakerOpened()
			}
		}
		return
	}

	if _, change := p.breaker.RecordSuccess(); change.Closed && p.logger != nil {
		p.logger.Info("audit relay circuit closed", "breaker", p.breaker.Name())
	}
	if p.metrics != nil {
		p.metrics.IncForwarded(string(event.Category))
	}
}

func (p *Publisher) drop(event audit.Event, reason string) {
	if p.metrics != nil {
		p.metrics.AddDropped(1, reason)
	}
	if p.logger != nil {
		p.logger.Warn("audit relay dropped event",
			"action", event.Action,
			"category", string(event.Category),
			"reason", reason,
		)
	}
}

// Close stops the flusher and drains whatever the buffer still holds, with a
// bounded grace period so shutdown cannot hang on a dead broker.
func (p *Publisher) Close() error {
	p.cancel()
	_ = p.group.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		if ctx.Err() != nil {
			if n := p.buffer.Len(); n > 0 && p.metrics != nil {
				p.metrics.AddDropped(float64(n), "shutdown")
			}
			return ctx.Err()
		}
		if p.flush(ctx) == 0 {
			return nil
		}
	}
}

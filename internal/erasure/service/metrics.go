package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the erasure engine's Prometheus collectors. All methods are
// nil-safe so tests can run without a registry.
type Metrics struct {
	Created        *prometheus.CounterVec
	Decided        *prometheus.CounterVec
	CodeCollisions prometheus.Counter
	BackfillRuns   prometheus.Counter
}

// NewMetrics creates and registers the engine collectors on the default
// registry.
func NewMetrics() *Metrics {
	return &Metrics{
		Created: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "custodia_erasure_requests_created_total",
			Help: "Erasure requests opened, by tier.",
		}, []string{"tier"}),
		Decided: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "custodia_erasure_requests_decided_total",
			Help: "Erasure requests decided, by outcome and tier.",
		}, []string{"outcome", "tier"}),
		CodeCollisions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "custodia_erasure_code_collisions_total",
			Help: "Erasure-code assignment collisions observed (including retried ones).",
		}),
		BackfillRuns: promauto.NewCounter(prometheus.CounterOpts{
			Name: "custodia_erasure_backfill_runs_total",
			Help: "Historical backfill batch runs completed.",
		}),
	}
}

// IncCreated records one opened request.
func (m *Metrics) IncCreated(tier string) {
	if m == nil {
		return
	}
	m.Created.WithLabelValues(tier).Inc()
}

// IncDecided records one decided request.
func (m *Metrics) IncDecided(outcome, tier string) {
	if m == nil {
		return
	}
	m.Decided.WithLabelValues(outcome, tier).Inc()
}

// IncCodeCollision records one code-assignment collision.
func (m *Metrics) IncCodeCollision() {
	if m == nil {
		return
	}
	m.CodeCollisions.Inc()
}

// IncBackfillRun records one completed backfill batch.
func (m *Metrics) IncBackfillRun() {
	if m == nil {
		return
	}
	m.BackfillRuns.Inc()
}

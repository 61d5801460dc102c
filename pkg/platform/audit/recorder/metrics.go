package recorder

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	EventsEmitted   *prometheus.CounterVec
	PersistFailures prometheus.Counter
	PersistDuration prometheus.Histogram
}

func NewMetrics() *Metrics {
	return &Metrics{
		EventsEmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "custodia_audit_events_emitted_total",
			Help: "Total number of audit events written to the audit store",
		}, []string{"category"}),
		PersistFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "custodia_audit_persist_failures_total",
			Help: "Total number of failed audit store writes",
		}),
		PersistDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "custodia_audit_persist_duration_seconds",
			Help:    "Latency of synchronous audit store writes",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) IncEventsEmitted(category string) {
	m.EventsEmitted.WithLabelValues(category).Inc()
}

func (m *Metrics) IncPersistFailures() {
	m.PersistFailures.Inc()
}

func (m *Metrics) ObservePersistDuration(seconds float64) {
	m.PersistDuration.Observe(seconds)
}

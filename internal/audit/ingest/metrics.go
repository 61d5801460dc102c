package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes ingest health.
type Metrics struct {
	Ingested *prometheus.CounterVec
	Skipped  *prometheus.CounterVec
}

// NewMetrics registers the ingest collectors on the default registry.
func NewMetrics() *Metrics {
	return &Metrics{
		Ingested: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "custodia_audit_ingest_events_total",
			Help: "Foreign audit events materialized into the audit store, by category.",
		}, []string{"category"}),
		Skipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "custodia_audit_ingest_skipped_total",
			Help: "Foreign audit events skipped without storing, by reason.",
		}, []string{"reason"}),
	}
}

func (m *Metrics) IncIngested(category string) {
	if m == nil {
		return
	}
	m.Ingested.WithLabelValues(category).Inc()
}

func (m *Metrics) IncSkipped(reason string) {
	if m == nil {
		return
	}
	m.Skipped.WithLabelValues(reason).Inc()
}

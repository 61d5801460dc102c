package relay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes relay health. Dropped events are the number to alert on:
// the durable audit trail is unaffected, but the SIEM view has gaps.
type Metrics struct {
	Forwarded     *prometheus.CounterVec
	Dropped       *prometheus.CounterVec
	SampledOut    prometheus.Counter
	BreakerOpened prometheus.Counter
}

// NewMetrics registers the relay collectors on the default registry.
func NewMetrics() *Metrics {
	return &Metrics{
		Forwarded: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "custodia_audit_relay_forwarded_total",
			Help: "Audit events successfully published to the SIEM topic.",
		}, []string{"category"}),
		Dropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "custodia_audit_relay_dropped_total",
			Help: "Audit events dropped by the relay, by reason.",
		}, []string{"reason"}),
		SampledOut: promauto.NewCounter(prometheus.CounterOpts{
			Name: "custodia_audit_relay_sampled_out_total",
			Help: "Operations events excluded by the sampler before buffering.",
		}),
		BreakerOpened: promauto.NewCounter(prometheus.CounterOpts{
			Name: "custodia_audit_relay_breaker_opened_total",
			Help: "Times the relay circuit breaker opened.",
		}),
	}
}

func (m *Metrics) IncForwarded(category string) {
	if m == nil {
		return
	}
	m.Forwarded.WithLabelValues(category).Inc()
}

func (m *Metrics) AddDropped(n float64, reason string) {
	if m == nil {
		return
	}
	m.Dropped.WithLabelValues(reason).Add(n)
}

func (m *Metrics) IncSampledOut() {
	if m == nil {
		return
	}
	m.SampledOut.Inc()
}

func (m *Metrics) IncBreakerOpened() {
	if m == nil {
		return
	}
	m.BreakerOpened.Inc()
}

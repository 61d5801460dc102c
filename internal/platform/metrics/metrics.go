// Package metrics holds the process-level Prometheus collectors. Module
// metrics (erasure decisions, audit appends, relay drops) live with their
// modules; this package carries the HTTP surface and startup counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the shared Prometheus collectors.
type Metrics struct {
	HTTPRequests  *prometheus.CounterVec
	HTTPLatency   *prometheus.HistogramVec
	CheckFindings *prometheus.CounterVec
}

// New creates and registers the shared collectors on the default registry.
func New() *Metrics {
	return &Metrics{
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "custodia_http_requests_total",
			Help: "HTTP requests served, by route, method and status class.",
		}, []string{"route", "method", "status"}),
		HTTPLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "custodia_http_request_duration_seconds",
			Help:    "HTTP request latency by route and method.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		CheckFindings: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "custodia_startup_check_findings_total",
			Help: "Startup invariant findings observed, by check and severity.",
		}, []string{"check", "severity"}),
	}
}

// ObserveRequest records one served request.
func (m *Metrics) ObserveRequest(route, method, status string, seconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, method, status).Inc()
	m.HTTPLatency.WithLabelValues(route, method).Observe(seconds)
}

// ObserveFinding records one startup check finding.
func (m *Metrics) ObserveFinding(check, severity string) {
	if m == nil {
		return
	}
	m.CheckFindings.WithLabelValues(check, severity).Inc()
}

// Package metrics exposes Prometheus instrumentation for delivery and
// sweep activity.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	sendsTotal    *prometheus.CounterVec
	sweepRuns     *prometheus.CounterVec
	sweepDuration *prometheus.HistogramVec
	trackingHits  prometheus.Counter
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
}

// New creates and registers all collectors on a fresh registry
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		sendsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lazydraft_sends_total",
			Help: "Outbound delivery attempts by outcome",
		}, []string{"outcome"}),
		sweepRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lazydraft_sweep_runs_total",
			Help: "Sweep executions by kind",
		}, []string{"kind"}),
		sweepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lazydraft_sweep_duration_seconds",
			Help:    "Sweep execution time by kind",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
		trackingHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lazydraft_tracking_hits_total",
			Help: "Tracking pixel requests received",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lazydraft_http_requests_total",
			Help: "HTTP requests by method, path and status",
		}, []string{"method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lazydraft_http_request_duration_seconds",
			Help:    "HTTP request latency by method and path",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}

	registry.MustRegister(
		m.sendsTotal,
		m.sweepRuns,
		m.sweepDuration,
		m.trackingHits,
		m.httpRequests,
		m.httpDuration,
	)

	return m
}

// ObserveSend records one delivery attempt outcome ("sent" or "failed")
func (m *Metrics) ObserveSend(outcome string) {
	m.sendsTotal.WithLabelValues(outcome).Inc()
}

// ObserveSweep records one sweep run of the given kind
func (m *Metrics) ObserveSweep(kind string, d time.Duration) {
	m.sweepRuns.WithLabelValues(kind).Inc()
	m.sweepDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// ObserveTrackingHit records one tracking pixel request
func (m *Metrics) ObserveTrackingHit() {
	m.trackingHits.Inc()
}

// ObserveHTTP records one finished HTTP request
func (m *Metrics) ObserveHTTP(method, path, status string, d time.Duration) {
	m.httpRequests.WithLabelValues(method, path, status).Inc()
	m.httpDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

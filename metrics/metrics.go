// Package metrics provides Prometheus metrics for the game builder.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	RequestsTotal      *prometheus.CounterVec
	RequestDuration    *prometheus.HistogramVec
	GenerationAttempts prometheus.Histogram
	GenerationsTotal   *prometheus.CounterVec
	VersionOpsTotal    *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates and registers all metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gamesmith_requests_total",
				Help: "Total number of API requests by route and status.",
			},
			[]string{"route", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gamesmith_request_duration_seconds",
				Help:    "Request processing duration by route.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		GenerationAttempts: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "gamesmith_generation_attempts",
				Help:    "Retry-loop iterations consumed per generation request.",
				Buckets: []float64{1, 2, 3, 4, 5},
			},
		),
		GenerationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gamesmith_generations_total",
				Help: "Total generation requests by outcome.",
			},
			[]string{"outcome"},
		),
		VersionOpsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gamesmith_version_ops_total",
				Help: "Total version-store operations by op and result.",
			},
			[]string{"op", "result"},
		),
		registry: reg,
	}

	reg.MustRegister(m.RequestsTotal)
	reg.MustRegister(m.RequestDuration)
	reg.MustRegister(m.GenerationAttempts)
	reg.MustRegister(m.GenerationsTotal)
	reg.MustRegister(m.VersionOpsTotal)

	return m
}

// Handler returns an http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordRequest increments the request counter.
func (m *Metrics) RecordRequest(route, status string) {
	m.RequestsTotal.WithLabelValues(route, status).Inc()
}

// RecordGeneration records one finished retry loop.
func (m *Metrics) RecordGeneration(outcome string, attempts int) {
	m.GenerationsTotal.WithLabelValues(outcome).Inc()
	m.GenerationAttempts.Observe(float64(attempts))
}

// RecordVersionOp increments the version-operation counter.
func (m *Metrics) RecordVersionOp(op, result string) {
	m.VersionOpsTotal.WithLabelValues(op, result).Inc()
}

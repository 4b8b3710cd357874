// Package metrics provides Prometheus metrics for the dispatch engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oppilot/oppilot/pkg/config"
	"github.com/oppilot/oppilot/pkg/dispatch"
)

// Metrics tracks dispatch engine observations. It implements
// dispatch.Metrics.
//
// Metrics:
//   - oppilot_dispatches_total: dispatches by resolution reason and outcome
//   - oppilot_attempts_total: candidate attempts by provider and status
//   - oppilot_attempt_latency_seconds: successful attempt latency
type Metrics struct {
	registry *prometheus.Registry

	dispatches *prometheus.CounterVec
	attempts   *prometheus.CounterVec
	latency    *prometheus.HistogramVec
}

// New creates and registers the dispatch metrics.
func New(cfg config.MetricsConfig) *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		dispatches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "dispatches_total",
				Help:      "Total dispatches by resolution reason and outcome",
			},
			[]string{"reason", "outcome"},
		),

		attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "attempts_total",
				Help:      "Total candidate attempts by provider and status",
			},
			[]string{"provider", "status"},
		),

		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Name:      "attempt_latency_seconds",
				Help:      "Successful attempt latency in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"provider"},
		),
	}

	registry.MustRegister(
		m.dispatches,
		m.attempts,
		m.latency,
	)

	return m
}

// ObserveDispatch implements dispatch.Metrics.
func (m *Metrics) ObserveDispatch(reason dispatch.Reason, success bool) {
	outcome := "success"
	if !success {
		outcome = "exhausted"
	}
	m.dispatches.WithLabelValues(string(reason), outcome).Inc()
}

// ObserveAttempt implements dispatch.Metrics.
func (m *Metrics) ObserveAttempt(provider string, status dispatch.AttemptStatus, latency time.Duration) {
	m.attempts.WithLabelValues(provider, string(status)).Inc()
	if status == dispatch.AttemptSuccess {
		m.latency.WithLabelValues(provider).Observe(latency.Seconds())
	}
}

// Handler returns the HTTP handler serving the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

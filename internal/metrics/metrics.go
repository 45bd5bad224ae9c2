// Package metrics exposes Prometheus instrumentation for the safety
// control path.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the safety sequence instruments. Each unit controller owns
// its own registry so embedding in tests never double-registers collectors.
type Metrics struct {
	registry *prometheus.Registry

	TriggersTotal    *prometheus.CounterVec
	ResetsTotal      *prometheus.CounterVec
	BusyRejected     prometheus.Counter
	SequenceDuration prometheus.Histogram
}

// New creates a metrics set backed by a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	triggers := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gvc_emergency_triggers_total",
		Help: "Emergency stop sequences by outcome.",
	}, []string{"outcome"})
	resets := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gvc_resets_total",
		Help: "Recovery sequences by outcome.",
	}, []string{"outcome"})
	busy := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gvc_trigger_busy_rejected_total",
		Help: "Triggers rejected because a sequence is in flight or unresolved.",
	})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "gvc_sequence_duration_seconds",
		Help:    "Wall time of emergency stop and recovery sequences.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
	})

	reg.MustRegister(triggers, resets, busy, duration)

	return &Metrics{
		registry:         reg,
		TriggersTotal:    triggers,
		ResetsTotal:      resets,
		BusyRejected:     busy,
		SequenceDuration: duration,
	}
}

// Handler returns the HTTP handler serving this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

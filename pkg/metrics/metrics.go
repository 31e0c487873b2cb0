// Package metrics exposes Prometheus instrumentation for the probe
// pipeline. Collectors are registered on the default registry and served by
// the /metrics endpoint.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ankalabs/pulse/dao/model"
)

var (
	ProbesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pulse_probes_total",
		Help: "Probe executions by outcome.",
	}, []string{"outcome"})

	ProbeLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pulse_probe_latency_seconds",
		Help:    "Wall-clock probe latency, including timeouts.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	})

	AlertsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pulse_alerts_total",
		Help: "Alert notification attempts by channel and result.",
	}, []string{"channel", "result"})

	AlertsSuppressed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pulse_alerts_suppressed_total",
		Help: "Failures that produced no alert because of the cooldown window.",
	})
)

// ObserveProbe records one probe execution.
func ObserveProbe(success bool, latencyMs int64) {
	outcome := "down"
	if success {
		outcome = "up"
	}
	ProbesTotal.WithLabelValues(outcome).Inc()
	ProbeLatency.Observe(float64(latencyMs) / 1000)
}

// ObserveAlert records one notification attempt.
func ObserveAlert(channel model.AlertChannel, success bool) {
	result := "failed"
	if success {
		result = "sent"
	}
	AlertsTotal.WithLabelValues(channel.String(), result).Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

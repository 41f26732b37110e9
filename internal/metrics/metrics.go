// Package metrics exposes Prometheus instrumentation for the control
// loop. Collectors are registered on the default registry; serve them
// with promhttp.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsTotal counts cluster events consumed, by event type.
	EventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "healer_events_total",
		Help: "Cluster events consumed by the control loop.",
	}, []string{"type"})

	// AlertsTotal counts alerts raised, by detector and severity.
	AlertsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "healer_alerts_total",
		Help: "Alerts raised by detectors.",
	}, []string{"detector", "severity"})

	// RemediationsTotal counts remediation attempts, by diagnosis
	// category and outcome.
	RemediationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "healer_remediations_total",
		Help: "Remediation attempts by diagnosis category and outcome.",
	}, []string{"category", "outcome"})

	// TasksByState tracks the current batch composition.
	TasksByState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "healer_tasks",
		Help: "Tasks in the monitored batch, by health state.",
	}, []string{"state"})

	// BatchProgress is batch completion in percent.
	BatchProgress = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "healer_batch_progress_percent",
		Help: "Batch completion percentage.",
	})

	// HealthCheckDuration observes health sweep latency.
	HealthCheckDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "healer_health_check_duration_seconds",
		Help:    "Duration of periodic batch health sweeps.",
		Buckets: prometheus.DefBuckets,
	})
)

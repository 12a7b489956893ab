// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TriggersArmed = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sailboat_triggers_armed",
		Help: "Number of triggers currently armed in the scheduling engine.",
	})

	TriggerFires = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sailboat_trigger_fires_total",
		Help: "Trigger fires by trigger mode.",
	}, []string{"mode"})

	Executions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sailboat_executions_total",
		Help: "Completed executions by result.",
	}, []string{"result"})

	ExecutionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sailboat_execution_duration_seconds",
		Help:    "Wall-clock duration of worker processes.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 14),
	})

	Alerts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sailboat_alerts_total",
		Help: "Alert deliveries by result.",
	}, []string{"result"})
)

// Package metrics exposes Prometheus collectors for the processing
// pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the pipeline's collectors. Create one per process and
// share it between the scheduler and the dispatcher.
type Metrics struct {
	TaskExecutions   *prometheus.CounterVec   // outcome: completed | retried | skipped
	StageDuration    *prometheus.HistogramVec // seconds per execution attempt
	EventsDispatched *prometheus.CounterVec
	TerminalFailures prometheus.Counter
	TasksDue         prometheus.Gauge
}

// New registers the pipeline collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TaskExecutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dreamlog",
			Subsystem: "pipeline",
			Name:      "task_executions_total",
			Help:      "Task execution attempts by kind and outcome.",
		}, []string{"kind", "outcome"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dreamlog",
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Wall time of stage execution attempts.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"kind"}),
		EventsDispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dreamlog",
			Subsystem: "pipeline",
			Name:      "events_dispatched_total",
			Help:      "Outbox events relayed by kind.",
		}, []string{"kind"}),
		TerminalFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dreamlog",
			Subsystem: "pipeline",
			Name:      "terminal_failures_total",
			Help:      "Entries that exhausted the retry budget.",
		}),
		TasksDue: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dreamlog",
			Subsystem: "pipeline",
			Name:      "tasks_due",
			Help:      "Due tasks seen in the last poll cycle.",
		}),
	}
	reg.MustRegister(
		m.TaskExecutions,
		m.StageDuration,
		m.EventsDispatched,
		m.TerminalFailures,
		m.TasksDue,
	)
	return m
}

// Package metrics defines the Prometheus collectors exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the engine's Prometheus collectors so they can be
// injected into services and registered once.
type Metrics struct {
	// PollsTotal counts poll requests, labeled by outcome
	// (assigned, no_task, error).
	PollsTotal *prometheus.CounterVec

	// TasksTerminatedTotal counts task terminal transitions,
	// labeled by status (completed, failed).
	TasksTerminatedTotal *prometheus.CounterVec

	// JobsProcessedTotal counts job runner outcomes, labeled by job type and
	// outcome (completed, retrying, failed, skipped).
	JobsProcessedTotal *prometheus.CounterVec

	// JobDuration observes handler execution time in seconds, labeled by job type.
	JobDuration *prometheus.HistogramVec

	// CascadeJobsEnqueuedTotal counts jobs enqueued by the cascade trigger,
	// labeled by job type.
	CascadeJobsEnqueuedTotal *prometheus.CounterVec
}

// New creates and registers the collectors on the given registerer.
// Pass prometheus.DefaultRegisterer in production; tests use a fresh
// prometheus.NewRegistry to avoid duplicate registration.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		PollsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "conductor",
			Name:      "polls_total",
			Help:      "Number of task poll requests by outcome.",
		}, []string{"outcome"}),

		TasksTerminatedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "conductor",
			Name:      "tasks_terminated_total",
			Help:      "Number of task terminal transitions by status.",
		}, []string{"status"}),

		JobsProcessedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "conductor",
			Name:      "jobs_processed_total",
			Help:      "Number of background jobs processed by type and outcome.",
		}, []string{"type", "outcome"}),

		JobDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "conductor",
			Name:      "job_duration_seconds",
			Help:      "Background job handler execution time in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"type"}),

		CascadeJobsEnqueuedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "conductor",
			Name:      "cascade_jobs_enqueued_total",
			Help:      "Number of follow-up jobs enqueued by the cascade trigger.",
		}, []string{"type"}),
	}
}

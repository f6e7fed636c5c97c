package jobs

import (
	"context"
	"log/slog"

	"github.com/conductor-hq/conductor/internal/domain"
	"github.com/conductor-hq/conductor/internal/events"
	"github.com/conductor-hq/conductor/internal/platform/metrics"
	"github.com/conductor-hq/conductor/internal/store"
)

// Cascade thresholds. A detect-patterns job fires whenever a completion
// lands the project's completed count exactly on a multiple of
// patternInterval; a review-suggestions job fires once the project has
// accumulated at least reviewThreshold pending suggestions.
const (
	patternInterval = 5
	reviewThreshold = 10
)

// Trigger reacts to task completions by requesting follow-up analysis jobs.
// All of its work is best-effort: a failure to count or to emit is logged
// and swallowed, never surfaced to the completing agent.
type Trigger struct {
	tasks       store.TaskStore
	suggestions store.SuggestionStore
	emitter     events.EventEmitter
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

// NewTrigger creates the cascade trigger. metrics may be nil.
func NewTrigger(
	tasks store.TaskStore,
	suggestions store.SuggestionStore,
	emitter events.EventEmitter,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Trigger {
	// ALLOW-PANIC: Constructor enforces required dependency.
	if tasks == nil {
		panic("task store cannot be nil")
	}
	// ALLOW-PANIC: Constructor enforces required dependency.
	if suggestions == nil {
		panic("suggestion store cannot be nil")
	}
	// ALLOW-PANIC: Constructor enforces required dependency.
	if emitter == nil {
		panic("event emitter cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Trigger{
		tasks:       tasks,
		suggestions: suggestions,
		emitter:     emitter,
		metrics:     m,
		logger:      logger.With(slog.String("component", "cascade_trigger")),
	}
}

// TaskCompleted requests follow-up jobs for a freshly completed task:
// always an analysis of the task itself, plus pattern detection and
// suggestion review when the project's counters cross their thresholds.
func (t *Trigger) TaskCompleted(ctx context.Context, task *domain.Task) {
	log := t.logger.With(
		slog.String("task_id", task.ID.String()),
		slog.String("project_id", task.ProjectID.String()),
	)

	t.request(ctx, log, domain.JobTypeAnalyzeCompletedTask, AnalyzeTaskPayload{TaskID: task.ID})

	completed, err := t.tasks.CountByProjectAndStatus(ctx, task.ProjectID, domain.TaskStatusCompleted)
	if err != nil {
		log.WarnContext(ctx, "cascade: failed to count completed tasks", slog.String("error", err.Error()))
	} else if completed > 0 && completed%patternInterval == 0 {
		t.request(ctx, log, domain.JobTypeDetectPatterns, ProjectPayload{ProjectID: task.ProjectID})
	}

	pending, err := t.suggestions.CountByProjectAndStatus(ctx, task.ProjectID, domain.SuggestionStatusPending)
	if err != nil {
		log.WarnContext(ctx, "cascade: failed to count pending suggestions", slog.String("error", err.Error()))
	} else if pending >= reviewThreshold {
		t.request(ctx, log, domain.JobTypeReviewSuggestions, ProjectPayload{ProjectID: task.ProjectID})
	}
}

func (t *Trigger) request(ctx context.Context, log *slog.Logger, jobType string, payload interface{}) {
	event, err := events.NewJobRequestEvent(jobType, payload)
	if err != nil {
		log.WarnContext(ctx, "cascade: failed to build job request",
			slog.String("job_type", jobType),
			slog.String("error", err.Error()),
		)
		return
	}

	if err := t.emitter.EmitEvent(ctx, event); err != nil {
		log.WarnContext(ctx, "cascade: failed to emit job request",
			slog.String("job_type", jobType),
			slog.String("error", err.Error()),
		)
		return
	}

	log.DebugContext(ctx, "cascade: job requested", slog.String("job_type", jobType))
	if t.metrics != nil {
		t.metrics.CascadeJobsEnqueuedTotal.WithLabelValues(jobType).Inc()
	}
}

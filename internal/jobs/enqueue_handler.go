package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/conductor-hq/conductor/internal/domain"
	"github.com/conductor-hq/conductor/internal/events"
	"github.com/conductor-hq/conductor/internal/store"
)

// EnqueueHandler subscribes to job request events and persists them as
// pending background job rows for the runner to pick up.
type EnqueueHandler struct {
	jobs   store.JobStore
	logger *slog.Logger
}

// NewEnqueueHandler creates an event handler backed by the given job store.
func NewEnqueueHandler(jobs store.JobStore, logger *slog.Logger) *EnqueueHandler {
	// ALLOW-PANIC: Constructor enforces required dependency.
	if jobs == nil {
		panic("jobs store cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &EnqueueHandler{
		jobs:   jobs,
		logger: logger.With(slog.String("component", "job_enqueue_handler")),
	}
}

var _ events.EventHandler = (*EnqueueHandler)(nil)

// HandleEvent converts a job request event into a persisted background job.
func (h *EnqueueHandler) HandleEvent(ctx context.Context, event *events.JobRequestEvent) error {
	job, err := domain.NewBackgroundJob(event.Type, event.Payload, event.ScheduledAt)
	if err != nil {
		return fmt.Errorf("building job from event %s: %w", event.ID, err)
	}

	if err := h.jobs.Enqueue(ctx, job); err != nil {
		return fmt.Errorf("enqueueing job %s: %w", job.ID, err)
	}

	h.logger.InfoContext(ctx, "background job enqueued",
		slog.String("job_id", job.ID.String()),
		slog.String("job_type", job.Type),
	)
	return nil
}

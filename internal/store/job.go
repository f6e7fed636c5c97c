package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/conductor-hq/conductor/internal/domain"
)

// JobStore defines the persistence operations for background jobs.
//
// MarkRunning is a conditional claim analogous to task assignment: no two
// runner invocations may process the same job concurrently, so the
// pending/retrying -> running transition must check the prior status and
// report ErrAlreadyClaimed when it affects zero rows.
type JobStore interface {
	// Enqueue saves a new background job.
	// Returns validation errors from the domain BackgroundJob if data is invalid.
	Enqueue(ctx context.Context, job *domain.BackgroundJob) error

	// GetByID retrieves a job by its unique ID.
	// Returns ErrJobNotFound if the job does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.BackgroundJob, error)

	// ListDue returns jobs eligible for execution at the given instant:
	// status pending or retrying, scheduled_at <= now, and next_retry_at
	// null or <= now. Ordered by scheduled_at ascending, capped at limit.
	ListDue(ctx context.Context, now time.Time, limit int) ([]*domain.BackgroundJob, error)

	// MarkRunning atomically transitions a job from pending or retrying to
	// running. Returns ErrAlreadyClaimed if the job is no longer in a
	// claimable status.
	MarkRunning(ctx context.Context, jobID uuid.UUID) error

	// MarkCompleted records a successful terminal outcome with the handler result.
	MarkCompleted(ctx context.Context, jobID uuid.UUID, result json.RawMessage, completedAt time.Time) error

	// MarkRetrying records a recoverable failure: the new attempt count, the
	// failure message, and the earliest time of the next attempt.
	MarkRetrying(ctx context.Context, jobID uuid.UUID, attempts int, errorMessage string, nextRetryAt time.Time) error

	// MarkFailed records a terminal failure after the retry budget is exhausted.
	MarkFailed(ctx context.Context, jobID uuid.UUID, attempts int, errorMessage string, completedAt time.Time) error

	// WithTx returns a new JobStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) JobStore
}

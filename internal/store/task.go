package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/conductor-hq/conductor/internal/domain"
)

// TaskStore defines the persistence operations for tasks.
//
// Claim, Complete and Fail are conditional single-row updates: they succeed
// only if the row is still in the expected status at write time, returning
// ErrAlreadyClaimed (Claim) or ErrUpdateFailed (Complete/Fail) when a
// concurrent caller got there first. A plain read-then-write is unsafe under
// concurrent pollers and would double-assign tasks.
type TaskStore interface {
	// Create saves a new task.
	// Returns validation errors from the domain Task if data is invalid.
	Create(ctx context.Context, task *domain.Task) error

	// GetByID retrieves a task by its unique ID.
	// Returns ErrTaskNotFound if the task does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error)

	// ListPending returns pending tasks ordered by priority descending and
	// creation time ascending, capped at limit. This is the candidate scan
	// order for assignment; a zero limit applies a store default.
	ListPending(ctx context.Context, limit int) ([]*domain.Task, error)

	// GetStatuses returns the current status of each of the given tasks.
	// IDs that do not exist are absent from the result map. The snapshot is
	// not serialized with concurrent writes; callers re-validate at claim time.
	GetStatuses(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]domain.TaskStatus, error)

	// Claim atomically transitions a task from pending to assigned, setting
	// the assigned agent and start time. Returns ErrAlreadyClaimed if the
	// task is no longer pending, ErrTaskNotFound if it does not exist.
	Claim(ctx context.Context, taskID, agentID uuid.UUID, startedAt time.Time) (*domain.Task, error)

	// Complete atomically transitions a task from assigned or in_progress to
	// completed, recording the output payload. Returns ErrUpdateFailed if the
	// task left the permitted statuses concurrently.
	Complete(ctx context.Context, taskID uuid.UUID, output json.RawMessage, completedAt time.Time) (*domain.Task, error)

	// Fail atomically transitions a task from assigned or in_progress to
	// failed, recording the error message. Returns ErrUpdateFailed if the
	// task left the permitted statuses concurrently.
	Fail(ctx context.Context, taskID uuid.UUID, errorMessage string, completedAt time.Time) (*domain.Task, error)

	// CountByProjectAndStatus returns the number of tasks in the project
	// with the given status. Used by the cascade trigger thresholds.
	CountByProjectAndStatus(ctx context.Context, projectID uuid.UUID, status domain.TaskStatus) (int, error)

	// WithTx returns a new TaskStore instance that uses the provided transaction.
	// The transaction should be created and managed by the caller.
	WithTx(tx *sql.Tx) TaskStore
}

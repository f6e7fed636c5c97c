package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/conductor-hq/conductor/internal/domain"
	"github.com/conductor-hq/conductor/internal/platform/logger"
	"github.com/conductor-hq/conductor/internal/store"
)

// defaultPendingScanLimit bounds ListPending when the caller passes zero.
const defaultPendingScanLimit = 50

// taskColumns is the column list shared by all task queries so every scan
// sees the same shape.
const taskColumns = `id, project_id, title, description, status, priority,
		dependencies, required_capabilities, assigned_agent_id,
		input_data, output_data, error_message,
		created_at, updated_at, started_at, completed_at`

// PostgresTaskStore implements the store.TaskStore interface
// using a PostgreSQL database as the storage backend.
type PostgresTaskStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresTaskStore creates a new PostgreSQL implementation of the TaskStore interface.
// It accepts a database connection or transaction that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresTaskStore(db store.DBTX, logger *slog.Logger) *PostgresTaskStore {
	if db == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresTaskStore{
		db:     db,
		logger: logger.With(slog.String("component", "task_store")),
	}
}

// Ensure PostgresTaskStore implements store.TaskStore interface
var _ store.TaskStore = (*PostgresTaskStore)(nil)

// WithTx returns a new TaskStore instance that uses the provided transaction.
func (s *PostgresTaskStore) WithTx(tx *sql.Tx) store.TaskStore {
	return &PostgresTaskStore{
		db:     tx,
		logger: s.logger,
	}
}

// Create implements store.TaskStore.Create
// It saves a new task to the database, handling domain validation.
func (s *PostgresTaskStore) Create(ctx context.Context, task *domain.Task) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := task.Validate(); err != nil {
		log.Warn("task validation failed during create",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()))
		return err
	}

	deps, err := json.Marshal(task.Dependencies)
	if err != nil {
		return fmt.Errorf("failed to marshal dependencies: %w", err)
	}

	caps, err := json.Marshal(task.RequiredCapabilities)
	if err != nil {
		return fmt.Errorf("failed to marshal required capabilities: %w", err)
	}

	query := `
		INSERT INTO tasks (id, project_id, title, description, status, priority,
			dependencies, required_capabilities, input_data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err = s.db.ExecContext(
		ctx,
		query,
		task.ID,
		task.ProjectID,
		task.Title,
		task.Description,
		task.Status,
		task.Priority,
		deps,
		caps,
		nullableJSON(task.InputData),
		task.CreatedAt,
		task.UpdatedAt,
	)

	if err != nil {
		log.Error("failed to create task",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()))
		return MapError(err)
	}

	log.Info("task created",
		slog.String("task_id", task.ID.String()),
		slog.String("project_id", task.ProjectID.String()),
		slog.Int("priority", task.Priority))
	return nil
}

// GetByID implements store.TaskStore.GetByID
// Returns store.ErrTaskNotFound if the task does not exist.
func (s *PostgresTaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`

	task, err := scanTask(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("task not found", slog.String("task_id", id.String()))
			return nil, store.ErrTaskNotFound
		}
		log.Error("failed to get task by ID",
			slog.String("error", err.Error()),
			slog.String("task_id", id.String()))
		return nil, MapError(err)
	}

	return task, nil
}

// ListPending implements store.TaskStore.ListPending
// Candidates are ordered by priority descending, then creation time ascending
// so older tasks of equal priority are scanned first.
func (s *PostgresTaskStore) ListPending(ctx context.Context, limit int) ([]*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if limit <= 0 {
		limit = defaultPendingScanLimit
	}

	query := `
		SELECT ` + taskColumns + `
		FROM tasks
		WHERE status = $1
		ORDER BY priority DESC, created_at ASC
		LIMIT $2
	`

	rows, err := s.db.QueryContext(ctx, query, domain.TaskStatusPending, limit)
	if err != nil {
		log.Error("failed to list pending tasks", slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var tasks []*domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			log.Error("failed to scan task row", slog.String("error", err.Error()))
			return nil, MapError(err)
		}
		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		log.Error("error iterating task rows", slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	return tasks, nil
}

// GetStatuses implements store.TaskStore.GetStatuses
// IDs that do not exist are simply absent from the result map.
func (s *PostgresTaskStore) GetStatuses(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]domain.TaskStatus, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	statuses := make(map[uuid.UUID]domain.TaskStatus, len(ids))
	if len(ids) == 0 {
		return statuses, nil
	}

	// Placeholders are expanded per ID; the stdlib pgx driver does not bind
	// Go slices to = ANY($1).
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}

	query := `SELECT id, status FROM tasks WHERE id IN (` + strings.Join(placeholders, ", ") + `)`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query dependency statuses", slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var id uuid.UUID
		var status domain.TaskStatus
		if err := rows.Scan(&id, &status); err != nil {
			log.Error("failed to scan status row", slog.String("error", err.Error()))
			return nil, MapError(err)
		}
		statuses[id] = status
	}

	if err := rows.Err(); err != nil {
		log.Error("error iterating status rows", slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	return statuses, nil
}

// Claim implements store.TaskStore.Claim
// The transition is a single conditional update: it succeeds only if the
// task is still pending at write time. Zero affected rows means a concurrent
// poller claimed the task first (store.ErrAlreadyClaimed) or the task does
// not exist (store.ErrTaskNotFound).
func (s *PostgresTaskStore) Claim(ctx context.Context, taskID, agentID uuid.UUID, startedAt time.Time) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE tasks
		SET status = $1, assigned_agent_id = $2, started_at = $3, updated_at = $3
		WHERE id = $4 AND status = $5
		RETURNING ` + taskColumns

	task, err := scanTask(s.db.QueryRowContext(ctx, query,
		domain.TaskStatusAssigned,
		agentID,
		startedAt.UTC(),
		taskID,
		domain.TaskStatusPending,
	))

	if err == nil {
		log.Info("task claimed",
			slog.String("task_id", taskID.String()),
			slog.String("agent_id", agentID.String()))
		return task, nil
	}

	if !errors.Is(err, sql.ErrNoRows) {
		log.Error("failed to claim task",
			slog.String("error", err.Error()),
			slog.String("task_id", taskID.String()))
		return nil, MapError(err)
	}

	// Zero rows: distinguish a lost race from a missing task.
	if _, getErr := s.GetByID(ctx, taskID); getErr != nil {
		return nil, getErr
	}

	log.Debug("task claimed by concurrent poller",
		slog.String("task_id", taskID.String()),
		slog.String("agent_id", agentID.String()))
	return nil, store.NewStoreError("task", "claim", "claimed by a concurrent poller", store.ErrAlreadyClaimed)
}

// Complete implements store.TaskStore.Complete
// The update is conditioned on the task still being assigned or in_progress.
func (s *PostgresTaskStore) Complete(ctx context.Context, taskID uuid.UUID, output json.RawMessage, completedAt time.Time) (*domain.Task, error) {
	return s.terminate(ctx, taskID, domain.TaskStatusCompleted, output, "", completedAt)
}

// Fail implements store.TaskStore.Fail
// The update is conditioned on the task still being assigned or in_progress.
func (s *PostgresTaskStore) Fail(ctx context.Context, taskID uuid.UUID, errorMessage string, completedAt time.Time) (*domain.Task, error) {
	return s.terminate(ctx, taskID, domain.TaskStatusFailed, nil, errorMessage, completedAt)
}

// terminate applies the shared conditional terminal transition for Complete and Fail.
func (s *PostgresTaskStore) terminate(
	ctx context.Context,
	taskID uuid.UUID,
	status domain.TaskStatus,
	output json.RawMessage,
	errorMessage string,
	completedAt time.Time,
) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	// error_message is NOT NULL DEFAULT '' in the schema; the completed
	// branch binds the empty string, never NULL.
	query := `
		UPDATE tasks
		SET status = $1, output_data = $2, error_message = $3,
			completed_at = $4, updated_at = $4
		WHERE id = $5 AND status IN ($6, $7)
		RETURNING ` + taskColumns

	task, err := scanTask(s.db.QueryRowContext(ctx, query,
		status,
		nullableJSON(output),
		errorMessage,
		completedAt.UTC(),
		taskID,
		domain.TaskStatusAssigned,
		domain.TaskStatusInProgress,
	))

	if err == nil {
		log.Info("task terminated",
			slog.String("task_id", taskID.String()),
			slog.String("status", string(status)))
		return task, nil
	}

	if !errors.Is(err, sql.ErrNoRows) {
		log.Error("failed to terminate task",
			slog.String("error", err.Error()),
			slog.String("task_id", taskID.String()),
			slog.String("status", string(status)))
		return nil, MapError(err)
	}

	if _, getErr := s.GetByID(ctx, taskID); getErr != nil {
		return nil, getErr
	}

	log.Warn("task terminal transition lost to concurrent update",
		slog.String("task_id", taskID.String()),
		slog.String("status", string(status)))
	return nil, store.NewStoreError("task", "terminate", "terminal transition lost to a concurrent update", store.ErrUpdateFailed)
}

// CountByProjectAndStatus implements store.TaskStore.CountByProjectAndStatus
func (s *PostgresTaskStore) CountByProjectAndStatus(ctx context.Context, projectID uuid.UUID, status domain.TaskStatus) (int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT COUNT(*) FROM tasks WHERE project_id = $1 AND status = $2`

	var count int
	if err := s.db.QueryRowContext(ctx, query, projectID, status).Scan(&count); err != nil {
		log.Error("failed to count tasks",
			slog.String("error", err.Error()),
			slog.String("project_id", projectID.String()),
			slog.String("status", string(status)))
		return 0, MapError(err)
	}

	return count, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scanning.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanTask reads one task row in taskColumns order.
func scanTask(row rowScanner) (*domain.Task, error) {
	var task domain.Task
	var deps, caps []byte
	var assignedAgentID uuid.NullUUID
	var inputData, outputData []byte
	var startedAt, completedAt sql.NullTime

	// description and error_message are NOT NULL columns; scan them directly.
	err := row.Scan(
		&task.ID,
		&task.ProjectID,
		&task.Title,
		&task.Description,
		&task.Status,
		&task.Priority,
		&deps,
		&caps,
		&assignedAgentID,
		&inputData,
		&outputData,
		&task.ErrorMessage,
		&task.CreatedAt,
		&task.UpdatedAt,
		&startedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(deps) > 0 {
		if err := json.Unmarshal(deps, &task.Dependencies); err != nil {
			return nil, fmt.Errorf("failed to unmarshal dependencies: %w", err)
		}
	}
	if len(caps) > 0 {
		if err := json.Unmarshal(caps, &task.RequiredCapabilities); err != nil {
			return nil, fmt.Errorf("failed to unmarshal required capabilities: %w", err)
		}
	}

	if assignedAgentID.Valid {
		id := assignedAgentID.UUID
		task.AssignedAgentID = &id
	}
	if len(inputData) > 0 {
		task.InputData = json.RawMessage(inputData)
	}
	if len(outputData) > 0 {
		task.OutputData = json.RawMessage(outputData)
	}
	if startedAt.Valid {
		t := startedAt.Time
		task.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		task.CompletedAt = &t
	}

	return &task, nil
}

// nullableJSON maps an empty payload to SQL NULL.
func nullableJSON(data json.RawMessage) any {
	if len(data) == 0 {
		return nil
	}
	return []byte(data)
}

package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/conductor-hq/conductor/internal/domain"
	"github.com/conductor-hq/conductor/internal/platform/logger"
	"github.com/conductor-hq/conductor/internal/store"
)

// defaultDueBatchLimit bounds ListDue when the caller passes zero.
const defaultDueBatchLimit = 10

// jobColumns is the column list shared by all job queries.
const jobColumns = `id, type, payload, status, attempts, max_attempts,
		scheduled_at, next_retry_at, result, error_message,
		created_at, updated_at, completed_at`

// PostgresJobStore implements the store.JobStore interface
// using a PostgreSQL database as the storage backend.
type PostgresJobStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresJobStore creates a new PostgreSQL implementation of the JobStore interface.
// It accepts a database connection or transaction that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresJobStore(db store.DBTX, logger *slog.Logger) *PostgresJobStore {
	if db == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresJobStore{
		db:     db,
		logger: logger.With(slog.String("component", "job_store")),
	}
}

// Ensure PostgresJobStore implements store.JobStore interface
var _ store.JobStore = (*PostgresJobStore)(nil)

// WithTx returns a new JobStore instance that uses the provided transaction.
func (s *PostgresJobStore) WithTx(tx *sql.Tx) store.JobStore {
	return &PostgresJobStore{
		db:     tx,
		logger: s.logger,
	}
}

// Enqueue implements store.JobStore.Enqueue
func (s *PostgresJobStore) Enqueue(ctx context.Context, job *domain.BackgroundJob) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := job.Validate(); err != nil {
		log.Warn("job validation failed during enqueue",
			slog.String("error", err.Error()),
			slog.String("job_id", job.ID.String()))
		return err
	}

	query := `
		INSERT INTO background_jobs (id, type, payload, status, attempts, max_attempts,
			scheduled_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.db.ExecContext(
		ctx,
		query,
		job.ID,
		job.Type,
		nullableJSON(job.Payload),
		job.Status,
		job.Attempts,
		job.MaxAttempts,
		job.ScheduledAt,
		job.CreatedAt,
		job.UpdatedAt,
	)

	if err != nil {
		log.Error("failed to enqueue job",
			slog.String("error", err.Error()),
			slog.String("job_id", job.ID.String()),
			slog.String("job_type", job.Type))
		return MapError(err)
	}

	log.Info("job enqueued",
		slog.String("job_id", job.ID.String()),
		slog.String("job_type", job.Type),
		slog.Time("scheduled_at", job.ScheduledAt))
	return nil
}

// GetByID implements store.JobStore.GetByID
// Returns store.ErrJobNotFound if the job does not exist.
func (s *PostgresJobStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.BackgroundJob, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + jobColumns + ` FROM background_jobs WHERE id = $1`

	job, err := scanJob(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("job not found", slog.String("job_id", id.String()))
			return nil, store.ErrJobNotFound
		}
		log.Error("failed to get job by ID",
			slog.String("error", err.Error()),
			slog.String("job_id", id.String()))
		return nil, MapError(err)
	}

	return job, nil
}

// ListDue implements store.JobStore.ListDue
func (s *PostgresJobStore) ListDue(ctx context.Context, now time.Time, limit int) ([]*domain.BackgroundJob, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if limit <= 0 {
		limit = defaultDueBatchLimit
	}

	query := `
		SELECT ` + jobColumns + `
		FROM background_jobs
		WHERE status IN ($1, $2)
			AND scheduled_at <= $3
			AND (next_retry_at IS NULL OR next_retry_at <= $3)
		ORDER BY scheduled_at ASC
		LIMIT $4
	`

	rows, err := s.db.QueryContext(ctx, query,
		domain.JobStatusPending,
		domain.JobStatusRetrying,
		now.UTC(),
		limit,
	)
	if err != nil {
		log.Error("failed to list due jobs", slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var jobs []*domain.BackgroundJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			log.Error("failed to scan job row", slog.String("error", err.Error()))
			return nil, MapError(err)
		}
		jobs = append(jobs, job)
	}

	if err := rows.Err(); err != nil {
		log.Error("error iterating job rows", slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	return jobs, nil
}

// MarkRunning implements store.JobStore.MarkRunning
// The transition is conditioned on the job still being pending or retrying,
// so overlapping runner invocations cannot process the same job twice.
func (s *PostgresJobStore) MarkRunning(ctx context.Context, jobID uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE background_jobs
		SET status = $1, updated_at = $2
		WHERE id = $3 AND status IN ($4, $5)
	`

	result, err := s.db.ExecContext(ctx, query,
		domain.JobStatusRunning,
		time.Now().UTC(),
		jobID,
		domain.JobStatusPending,
		domain.JobStatusRetrying,
	)
	if err != nil {
		log.Error("failed to mark job running",
			slog.String("error", err.Error()),
			slog.String("job_id", jobID.String()))
		return MapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return MapError(err)
	}

	if rowsAffected == 0 {
		log.Debug("job claimed by concurrent runner",
			slog.String("job_id", jobID.String()))
		return store.NewStoreError("job", "mark_running", "claimed by a concurrent runner", store.ErrAlreadyClaimed)
	}

	return nil
}

// MarkCompleted implements store.JobStore.MarkCompleted
func (s *PostgresJobStore) MarkCompleted(ctx context.Context, jobID uuid.UUID, result json.RawMessage, completedAt time.Time) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE background_jobs
		SET status = $1, result = $2, next_retry_at = NULL,
			completed_at = $3, updated_at = $3
		WHERE id = $4
	`

	if err := s.execExpectingRow(ctx, query,
		domain.JobStatusCompleted,
		nullableJSON(result),
		completedAt.UTC(),
		jobID,
	); err != nil {
		return err
	}

	log.Info("job completed", slog.String("job_id", jobID.String()))
	return nil
}

// MarkRetrying implements store.JobStore.MarkRetrying
func (s *PostgresJobStore) MarkRetrying(ctx context.Context, jobID uuid.UUID, attempts int, errorMessage string, nextRetryAt time.Time) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE background_jobs
		SET status = $1, attempts = $2, error_message = $3,
			next_retry_at = $4, updated_at = $5
		WHERE id = $6
	`

	if err := s.execExpectingRow(ctx, query,
		domain.JobStatusRetrying,
		attempts,
		errorMessage,
		nextRetryAt.UTC(),
		time.Now().UTC(),
		jobID,
	); err != nil {
		return err
	}

	log.Info("job scheduled for retry",
		slog.String("job_id", jobID.String()),
		slog.Int("attempts", attempts),
		slog.Time("next_retry_at", nextRetryAt))
	return nil
}

// MarkFailed implements store.JobStore.MarkFailed
func (s *PostgresJobStore) MarkFailed(ctx context.Context, jobID uuid.UUID, attempts int, errorMessage string, completedAt time.Time) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE background_jobs
		SET status = $1, attempts = $2, error_message = $3, next_retry_at = NULL,
			completed_at = $4, updated_at = $4
		WHERE id = $5
	`

	if err := s.execExpectingRow(ctx, query,
		domain.JobStatusFailed,
		attempts,
		errorMessage,
		completedAt.UTC(),
		jobID,
	); err != nil {
		return err
	}

	log.Warn("job failed terminally",
		slog.String("job_id", jobID.String()),
		slog.Int("attempts", attempts))
	return nil
}

// execExpectingRow runs an update that must affect exactly one row,
// mapping zero affected rows to store.ErrJobNotFound.
func (s *PostgresJobStore) execExpectingRow(ctx context.Context, query string, args ...any) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return MapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return MapError(err)
	}

	if rowsAffected == 0 {
		return store.ErrJobNotFound
	}

	return nil
}

// scanJob reads one job row in jobColumns order.
func scanJob(row rowScanner) (*domain.BackgroundJob, error) {
	var job domain.BackgroundJob
	var payload, result []byte
	var nextRetryAt, completedAt sql.NullTime

	err := row.Scan(
		&job.ID,
		&job.Type,
		&payload,
		&job.Status,
		&job.Attempts,
		&job.MaxAttempts,
		&job.ScheduledAt,
		&nextRetryAt,
		&result,
		&job.ErrorMessage,
		&job.CreatedAt,
		&job.UpdatedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(payload) > 0 {
		job.Payload = json.RawMessage(payload)
	}
	if len(result) > 0 {
		job.Result = json.RawMessage(result)
	}
	if nextRetryAt.Valid {
		t := nextRetryAt.Time
		job.NextRetryAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		job.CompletedAt = &t
	}

	return &job, nil
}

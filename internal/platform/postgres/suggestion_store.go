package postgres

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/conductor-hq/conductor/internal/domain"
	"github.com/conductor-hq/conductor/internal/platform/logger"
	"github.com/conductor-hq/conductor/internal/store"
)

// defaultSuggestionListLimit bounds ListByProjectAndStatus when the caller passes zero.
const defaultSuggestionListLimit = 100

// PostgresSuggestionStore implements the store.SuggestionStore interface
// using a PostgreSQL database as the storage backend.
type PostgresSuggestionStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresSuggestionStore creates a new PostgreSQL implementation of the
// SuggestionStore interface. If logger is nil, a default logger will be used.
func NewPostgresSuggestionStore(db store.DBTX, logger *slog.Logger) *PostgresSuggestionStore {
	if db == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresSuggestionStore{
		db:     db,
		logger: logger.With(slog.String("component", "suggestion_store")),
	}
}

// Ensure PostgresSuggestionStore implements store.SuggestionStore interface
var _ store.SuggestionStore = (*PostgresSuggestionStore)(nil)

// WithTx returns a new SuggestionStore instance that uses the provided transaction.
func (s *PostgresSuggestionStore) WithTx(tx *sql.Tx) store.SuggestionStore {
	return &PostgresSuggestionStore{
		db:     tx,
		logger: s.logger,
	}
}

// CreateBatch implements store.SuggestionStore.CreateBatch
// On a plain connection the batch runs inside its own transaction so a
// mid-batch failure leaves no partial rows. Inside WithTx the caller
// already owns the transaction.
func (s *PostgresSuggestionStore) CreateBatch(ctx context.Context, suggestions []*domain.Suggestion) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if len(suggestions) == 0 {
		return nil
	}

	if db, ok := s.db.(*sql.DB); ok {
		return store.RunInTransaction(ctx, db, func(ctx context.Context, tx *sql.Tx) error {
			return s.WithTx(tx).CreateBatch(ctx, suggestions)
		})
	}

	query := `
		INSERT INTO suggestions (id, project_id, task_id, content, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	for _, suggestion := range suggestions {
		if err := suggestion.Validate(); err != nil {
			log.Warn("suggestion validation failed during create",
				slog.String("error", err.Error()),
				slog.String("suggestion_id", suggestion.ID.String()))
			return err
		}

		var taskID any
		if suggestion.TaskID != nil {
			taskID = *suggestion.TaskID
		}

		_, err := s.db.ExecContext(
			ctx,
			query,
			suggestion.ID,
			suggestion.ProjectID,
			taskID,
			suggestion.Content,
			suggestion.Status,
			suggestion.CreatedAt,
			suggestion.UpdatedAt,
		)
		if err != nil {
			log.Error("failed to create suggestion",
				slog.String("error", err.Error()),
				slog.String("suggestion_id", suggestion.ID.String()))
			return MapError(err)
		}
	}

	log.Info("suggestions created",
		slog.Int("count", len(suggestions)),
		slog.String("project_id", suggestions[0].ProjectID.String()))
	return nil
}

// ListByProjectAndStatus implements store.SuggestionStore.ListByProjectAndStatus
func (s *PostgresSuggestionStore) ListByProjectAndStatus(
	ctx context.Context,
	projectID uuid.UUID,
	status domain.SuggestionStatus,
	limit int,
) ([]*domain.Suggestion, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if limit <= 0 {
		limit = defaultSuggestionListLimit
	}

	query := `
		SELECT id, project_id, task_id, content, status, created_at, updated_at
		FROM suggestions
		WHERE project_id = $1 AND status = $2
		ORDER BY created_at ASC
		LIMIT $3
	`

	rows, err := s.db.QueryContext(ctx, query, projectID, status, limit)
	if err != nil {
		log.Error("failed to list suggestions",
			slog.String("error", err.Error()),
			slog.String("project_id", projectID.String()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var suggestions []*domain.Suggestion
	for rows.Next() {
		var suggestion domain.Suggestion
		var taskID uuid.NullUUID

		if err := rows.Scan(
			&suggestion.ID,
			&suggestion.ProjectID,
			&taskID,
			&suggestion.Content,
			&suggestion.Status,
			&suggestion.CreatedAt,
			&suggestion.UpdatedAt,
		); err != nil {
			log.Error("failed to scan suggestion row", slog.String("error", err.Error()))
			return nil, MapError(err)
		}

		if taskID.Valid {
			id := taskID.UUID
			suggestion.TaskID = &id
		}

		suggestions = append(suggestions, &suggestion)
	}

	if err := rows.Err(); err != nil {
		log.Error("error iterating suggestion rows", slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	return suggestions, nil
}

// CountByProjectAndStatus implements store.SuggestionStore.CountByProjectAndStatus
func (s *PostgresSuggestionStore) CountByProjectAndStatus(
	ctx context.Context,
	projectID uuid.UUID,
	status domain.SuggestionStatus,
) (int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT COUNT(*) FROM suggestions WHERE project_id = $1 AND status = $2`

	var count int
	if err := s.db.QueryRowContext(ctx, query, projectID, status).Scan(&count); err != nil {
		log.Error("failed to count suggestions",
			slog.String("error", err.Error()),
			slog.String("project_id", projectID.String()))
		return 0, MapError(err)
	}

	return count, nil
}

// UpdateStatus implements store.SuggestionStore.UpdateStatus
func (s *PostgresSuggestionStore) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.SuggestionStatus) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `UPDATE suggestions SET status = $1, updated_at = $2 WHERE id = $3`

	result, err := s.db.ExecContext(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		log.Error("failed to update suggestion status",
			slog.String("error", err.Error()),
			slog.String("suggestion_id", id.String()))
		return MapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return MapError(err)
	}

	if rowsAffected == 0 {
		return store.ErrSuggestionNotFound
	}

	return nil
}

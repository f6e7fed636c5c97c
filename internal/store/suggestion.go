package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/conductor-hq/conductor/internal/domain"
)

// SuggestionStore defines the persistence operations for AI-generated
// suggestions produced by analysis jobs.
type SuggestionStore interface {
	// CreateBatch saves multiple suggestions. The operation is atomic:
	// either all suggestions are created or none.
	CreateBatch(ctx context.Context, suggestions []*domain.Suggestion) error

	// ListByProjectAndStatus returns the project's suggestions with the
	// given status, ordered by creation time ascending, capped at limit.
	ListByProjectAndStatus(ctx context.Context, projectID uuid.UUID, status domain.SuggestionStatus, limit int) ([]*domain.Suggestion, error)

	// CountByProjectAndStatus returns the number of suggestions in the
	// project with the given status. Used by the review threshold.
	CountByProjectAndStatus(ctx context.Context, projectID uuid.UUID, status domain.SuggestionStatus) (int, error)

	// UpdateStatus sets the review disposition of a suggestion.
	// Returns ErrSuggestionNotFound if the suggestion does not exist.
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.SuggestionStatus) error

	// WithTx returns a new SuggestionStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) SuggestionStore
}

package jobs

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/conductor-hq/conductor/internal/domain"
)

// Common errors returned by Analyzer implementations.
var (
	// ErrAnalysisFailed is returned when analysis fails for any general reason.
	ErrAnalysisFailed = errors.New("analysis failed")

	// ErrInvalidResponse is returned when the model response cannot be parsed
	// or is malformed.
	ErrInvalidResponse = errors.New("invalid response from language model")

	// ErrTransientFailure is returned for temporary errors that might resolve
	// on retry. The job runner's backoff handles these like any other
	// handler failure.
	ErrTransientFailure = errors.New("transient analysis error")
)

// Analyzer is the boundary between the job engine and the external AI
// service that performs the actual analysis. Implementations may be slow or
// remote; callers must not assume bounded latency.
type Analyzer interface {
	// AnalyzeCompletedTask produces improvement suggestions for a single
	// completed task. Returns the suggestion contents.
	AnalyzeCompletedTask(ctx context.Context, task *domain.Task) ([]string, error)

	// DetectPatterns looks across a project's completed work for recurring
	// patterns worth surfacing. Returns the suggestion contents.
	DetectPatterns(ctx context.Context, projectID uuid.UUID) ([]string, error)

	// ReviewSuggestions evaluates accumulated pending suggestions and
	// returns a disposition for each reviewed suggestion ID.
	ReviewSuggestions(ctx context.Context, suggestions []*domain.Suggestion) (map[uuid.UUID]domain.SuggestionStatus, error)
}

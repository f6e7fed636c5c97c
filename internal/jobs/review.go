package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/conductor-hq/conductor/internal/domain"
	"github.com/conductor-hq/conductor/internal/store"
)

// reviewBatchLimit caps how many pending suggestions a single
// review-suggestions job considers.
const reviewBatchLimit = 100

// ReviewSuggestionsHandler handles review-suggestions jobs: it loads the
// project's pending suggestions, asks the analyzer for dispositions, and
// applies them.
type ReviewSuggestionsHandler struct {
	suggestions store.SuggestionStore
	analyzer    Analyzer
	logger      *slog.Logger
}

// NewReviewSuggestionsHandler creates the handler for review-suggestions jobs.
func NewReviewSuggestionsHandler(
	suggestions store.SuggestionStore,
	analyzer Analyzer,
	logger *slog.Logger,
) *ReviewSuggestionsHandler {
	// ALLOW-PANIC: Constructor enforces required dependency.
	if suggestions == nil {
		panic("suggestion store cannot be nil")
	}
	// ALLOW-PANIC: Constructor enforces required dependency.
	if analyzer == nil {
		panic("analyzer cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &ReviewSuggestionsHandler{
		suggestions: suggestions,
		analyzer:    analyzer,
		logger:      logger.With(slog.String("component", "review_suggestions_handler")),
	}
}

var _ Handler = (*ReviewSuggestionsHandler)(nil)

// Execute implements Handler.
func (h *ReviewSuggestionsHandler) Execute(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	var p ProjectPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("decoding payload: %w", err)
	}

	pending, err := h.suggestions.ListByProjectAndStatus(
		ctx, p.ProjectID, domain.SuggestionStatusPending, reviewBatchLimit)
	if err != nil {
		return nil, fmt.Errorf("listing pending suggestions for project %s: %w", p.ProjectID, err)
	}

	if len(pending) == 0 {
		return json.Marshal(map[string]int{"reviewed": 0})
	}

	dispositions, err := h.analyzer.ReviewSuggestions(ctx, pending)
	if err != nil {
		return nil, fmt.Errorf("reviewing suggestions for project %s: %w", p.ProjectID, err)
	}

	reviewed := 0
	for id, status := range dispositions {
		// The reviewer only disposes; it never reverts to pending.
		if status != domain.SuggestionStatusAccepted && status != domain.SuggestionStatusRejected {
			continue
		}
		if err := h.suggestions.UpdateStatus(ctx, id, status); err != nil {
			return nil, fmt.Errorf("updating suggestion %s: %w", id, err)
		}
		reviewed++
	}

	h.logger.InfoContext(ctx, "suggestions reviewed",
		slog.String("project_id", p.ProjectID.String()),
		slog.Int("pending", len(pending)),
		slog.Int("reviewed", reviewed),
	)
	return json.Marshal(map[string]int{"reviewed": reviewed})
}

package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/conductor-hq/conductor/internal/domain"
	"github.com/conductor-hq/conductor/internal/store"
)

// DetectPatternsHandler handles detect-patterns jobs: it asks the analyzer
// for project-wide patterns and stores them as pending suggestions without
// a task association.
type DetectPatternsHandler struct {
	suggestions store.SuggestionStore
	analyzer    Analyzer
	logger      *slog.Logger
}

// NewDetectPatternsHandler creates the handler for detect-patterns jobs.
func NewDetectPatternsHandler(
	suggestions store.SuggestionStore,
	analyzer Analyzer,
	logger *slog.Logger,
) *DetectPatternsHandler {
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

	return &DetectPatternsHandler{
		suggestions: suggestions,
		analyzer:    analyzer,
		logger:      logger.With(slog.String("component", "detect_patterns_handler")),
	}
}

var _ Handler = (*DetectPatternsHandler)(nil)

// Execute implements Handler.
func (h *DetectPatternsHandler) Execute(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	var p ProjectPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("decoding payload: %w", err)
	}

	contents, err := h.analyzer.DetectPatterns(ctx, p.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("detecting patterns for project %s: %w", p.ProjectID, err)
	}

	created := 0
	if len(contents) > 0 {
		suggestions := make([]*domain.Suggestion, 0, len(contents))
		for _, content := range contents {
			suggestion, err := domain.NewSuggestion(p.ProjectID, nil, content)
			if err != nil {
				return nil, fmt.Errorf("building suggestion: %w", err)
			}
			suggestions = append(suggestions, suggestion)
		}
		if err := h.suggestions.CreateBatch(ctx, suggestions); err != nil {
			return nil, fmt.Errorf("saving suggestions: %w", err)
		}
		created = len(suggestions)
	}

	h.logger.InfoContext(ctx, "patterns detected",
		slog.String("project_id", p.ProjectID.String()),
		slog.Int("suggestions", created),
	)
	return json.Marshal(map[string]int{"suggestions_created": created})
}

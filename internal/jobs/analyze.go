package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/conductor-hq/conductor/internal/domain"
	"github.com/conductor-hq/conductor/internal/store"
)

// AnalyzeTaskHandler handles analyze-completed-task jobs: it loads the
// completed task, asks the analyzer for improvement suggestions, and stores
// them as pending suggestions for later review.
type AnalyzeTaskHandler struct {
	tasks       store.TaskStore
	suggestions store.SuggestionStore
	analyzer    Analyzer
	logger      *slog.Logger
}

// NewAnalyzeTaskHandler creates the handler for analyze-completed-task jobs.
func NewAnalyzeTaskHandler(
	tasks store.TaskStore,
	suggestions store.SuggestionStore,
	analyzer Analyzer,
	logger *slog.Logger,
) *AnalyzeTaskHandler {
	// ALLOW-PANIC: Constructor enforces required dependency.
	if tasks == nil {
		panic("task store cannot be nil")
	}
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

	return &AnalyzeTaskHandler{
		tasks:       tasks,
		suggestions: suggestions,
		analyzer:    analyzer,
		logger:      logger.With(slog.String("component", "analyze_task_handler")),
	}
}

var _ Handler = (*AnalyzeTaskHandler)(nil)

// Execute implements Handler.
func (h *AnalyzeTaskHandler) Execute(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	var p AnalyzeTaskPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("decoding payload: %w", err)
	}

	task, err := h.tasks.GetByID(ctx, p.TaskID)
	if err != nil {
		return nil, fmt.Errorf("loading task %s: %w", p.TaskID, err)
	}

	contents, err := h.analyzer.AnalyzeCompletedTask(ctx, task)
	if err != nil {
		return nil, fmt.Errorf("analyzing task %s: %w", task.ID, err)
	}

	created, err := h.storeSuggestions(ctx, task, contents)
	if err != nil {
		return nil, err
	}

	h.logger.InfoContext(ctx, "task analyzed",
		slog.String("task_id", task.ID.String()),
		slog.Int("suggestions", created),
	)
	return json.Marshal(map[string]int{"suggestions_created": created})
}

func (h *AnalyzeTaskHandler) storeSuggestions(ctx context.Context, task *domain.Task, contents []string) (int, error) {
	if len(contents) == 0 {
		return 0, nil
	}

	suggestions := make([]*domain.Suggestion, 0, len(contents))
	for _, content := range contents {
		taskID := task.ID
		suggestion, err := domain.NewSuggestion(task.ProjectID, &taskID, content)
		if err != nil {
			return 0, fmt.Errorf("building suggestion: %w", err)
		}
		suggestions = append(suggestions, suggestion)
	}

	if err := h.suggestions.CreateBatch(ctx, suggestions); err != nil {
		return 0, fmt.Errorf("saving suggestions: %w", err)
	}
	return len(suggestions), nil
}

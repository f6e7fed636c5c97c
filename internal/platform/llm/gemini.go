package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"github.com/conductor-hq/conductor/internal/config"
	"github.com/conductor-hq/conductor/internal/domain"
	"github.com/conductor-hq/conductor/internal/jobs"
)

// DefaultModel is used when config.LLMConfig leaves the model name empty.
const DefaultModel = "gemini-2.0-flash"

// GeminiAnalyzer implements jobs.Analyzer using the Gemini API.
type GeminiAnalyzer struct {
	logger *slog.Logger
	client *genai.Client
	model  string
}

// NewGeminiAnalyzer creates an analyzer backed by the Gemini API.
// Returns an error if the API key is missing or the client cannot be built.
func NewGeminiAnalyzer(ctx context.Context, logger *slog.Logger, cfg config.LLMConfig) (*GeminiAnalyzer, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.GeminiAPIKey == "" {
		return nil, errors.New("gemini API key cannot be empty")
	}

	model := cfg.ModelName
	if model == "" {
		model = DefaultModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	return &GeminiAnalyzer{
		logger: logger.With(slog.String("component", "gemini_analyzer")),
		client: client,
		model:  model,
	}, nil
}

var _ jobs.Analyzer = (*GeminiAnalyzer)(nil)

// analysisResponse is the JSON schema the analysis prompts request.
type analysisResponse struct {
	Suggestions []string `json:"suggestions"`
}

// reviewResponse is the JSON schema the review prompt requests.
type reviewResponse struct {
	Decisions []reviewDecision `json:"decisions"`
}

type reviewDecision struct {
	ID     uuid.UUID `json:"id"`
	Status string    `json:"status"`
}

// AnalyzeCompletedTask implements jobs.Analyzer.
func (a *GeminiAnalyzer) AnalyzeCompletedTask(ctx context.Context, task *domain.Task) ([]string, error) {
	var prompt strings.Builder
	prompt.WriteString("You are reviewing a completed task from an autonomous agent workflow.\n")
	prompt.WriteString("Propose concrete improvements for similar future tasks.\n\n")
	fmt.Fprintf(&prompt, "Task title: %s\n", task.Title)
	if task.Description != "" {
		fmt.Fprintf(&prompt, "Task description: %s\n", task.Description)
	}
	if len(task.InputData) > 0 {
		fmt.Fprintf(&prompt, "Task input: %s\n", task.InputData)
	}
	if len(task.OutputData) > 0 {
		fmt.Fprintf(&prompt, "Task output: %s\n", task.OutputData)
	}
	prompt.WriteString("\nRespond with JSON only: {\"suggestions\": [\"...\"]}. ")
	prompt.WriteString("Return an empty array when nothing is worth suggesting.")

	var parsed analysisResponse
	if err := a.generate(ctx, prompt.String(), &parsed); err != nil {
		return nil, err
	}
	return parsed.Suggestions, nil
}

// DetectPatterns implements jobs.Analyzer.
func (a *GeminiAnalyzer) DetectPatterns(ctx context.Context, projectID uuid.UUID) ([]string, error) {
	var prompt strings.Builder
	prompt.WriteString("You are reviewing the recent completed work of an agent project ")
	fmt.Fprintf(&prompt, "(project %s).\n", projectID)
	prompt.WriteString("Identify recurring patterns across tasks worth surfacing to the operators: ")
	prompt.WriteString("repeated failure causes, duplicated work, and common bottlenecks.\n\n")
	prompt.WriteString("Respond with JSON only: {\"suggestions\": [\"...\"]}. ")
	prompt.WriteString("Return an empty array when no pattern stands out.")

	var parsed analysisResponse
	if err := a.generate(ctx, prompt.String(), &parsed); err != nil {
		return nil, err
	}
	return parsed.Suggestions, nil
}

// ReviewSuggestions implements jobs.Analyzer.
func (a *GeminiAnalyzer) ReviewSuggestions(ctx context.Context, suggestions []*domain.Suggestion) (map[uuid.UUID]domain.SuggestionStatus, error) {
	if len(suggestions) == 0 {
		return nil, nil
	}

	var prompt strings.Builder
	prompt.WriteString("You are triaging improvement suggestions accumulated by an agent workflow.\n")
	prompt.WriteString("Accept suggestions that are specific and actionable; reject duplicates and vague ones.\n\n")
	for _, suggestion := range suggestions {
		fmt.Fprintf(&prompt, "- id=%s: %s\n", suggestion.ID, suggestion.Content)
	}
	prompt.WriteString("\nRespond with JSON only: ")
	prompt.WriteString(`{"decisions": [{"id": "<uuid>", "status": "accepted"|"rejected"}]}.`)

	var parsed reviewResponse
	if err := a.generate(ctx, prompt.String(), &parsed); err != nil {
		return nil, err
	}

	known := make(map[uuid.UUID]bool, len(suggestions))
	for _, suggestion := range suggestions {
		known[suggestion.ID] = true
	}

	dispositions := make(map[uuid.UUID]domain.SuggestionStatus, len(parsed.Decisions))
	for _, decision := range parsed.Decisions {
		if !known[decision.ID] {
			a.logger.WarnContext(ctx, "review decision for unknown suggestion, skipping",
				slog.String("suggestion_id", decision.ID.String()))
			continue
		}
		switch domain.SuggestionStatus(decision.Status) {
		case domain.SuggestionStatusAccepted, domain.SuggestionStatusRejected:
			dispositions[decision.ID] = domain.SuggestionStatus(decision.Status)
		default:
			return nil, fmt.Errorf("%w: unexpected status %q", jobs.ErrInvalidResponse, decision.Status)
		}
	}
	return dispositions, nil
}

// generate sends the prompt and decodes the JSON response into out.
// API failures are transient; unparseable output is permanent.
func (a *GeminiAnalyzer) generate(ctx context.Context, prompt string, out interface{}) error {
	a.logger.DebugContext(ctx, "calling gemini",
		slog.String("model", a.model),
		slog.Int("prompt_length", len(prompt)),
	)

	resp, err := a.client.Models.GenerateContent(ctx, a.model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("%w: %v", jobs.ErrTransientFailure, err)
	}

	text := resp.Text()
	if text == "" {
		return fmt.Errorf("%w: empty response", jobs.ErrInvalidResponse)
	}

	if err := json.Unmarshal([]byte(text), out); err != nil {
		return fmt.Errorf("%w: %v", jobs.ErrInvalidResponse, err)
	}
	return nil
}

package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// SuggestionStatus represents the review state of an AI-generated suggestion
type SuggestionStatus string

// Possible suggestion status values
const (
	SuggestionStatusPending  SuggestionStatus = "pending"
	SuggestionStatusAccepted SuggestionStatus = "accepted"
	SuggestionStatusRejected SuggestionStatus = "rejected"
)

// Common validation errors for Suggestion
var (
	ErrEmptySuggestionID        = errors.New("suggestion ID cannot be empty")
	ErrEmptySuggestionProjectID = errors.New("suggestion project ID cannot be empty")
	ErrEmptySuggestionContent   = errors.New("suggestion content cannot be empty")
	ErrInvalidSuggestionStatus  = errors.New("invalid suggestion status")
)

// Suggestion represents a single improvement proposal produced by an
// analysis job. Suggestions accumulate in pending status until a
// review-suggestions job disposes of them.
type Suggestion struct {
	ID        uuid.UUID        `json:"id"`
	ProjectID uuid.UUID        `json:"project_id"`
	TaskID    *uuid.UUID       `json:"task_id,omitempty"`
	Content   string           `json:"content"`
	Status    SuggestionStatus `json:"status"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// NewSuggestion creates a new pending Suggestion for the given project.
// taskID may be nil for project-level suggestions (e.g. detected patterns).
// Returns an error if validation fails.
func NewSuggestion(projectID uuid.UUID, taskID *uuid.UUID, content string) (*Suggestion, error) {
	now := time.Now().UTC()
	suggestion := &Suggestion{
		ID:        uuid.New(),
		ProjectID: projectID,
		TaskID:    taskID,
		Content:   content,
		Status:    SuggestionStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := suggestion.Validate(); err != nil {
		return nil, err
	}

	return suggestion, nil
}

// Validate checks if the Suggestion has valid data.
func (s *Suggestion) Validate() error {
	if s.ID == uuid.Nil {
		return ErrEmptySuggestionID
	}

	if s.ProjectID == uuid.Nil {
		return ErrEmptySuggestionProjectID
	}

	if s.Content == "" {
		return ErrEmptySuggestionContent
	}

	if !isValidSuggestionStatus(s.Status) {
		return ErrInvalidSuggestionStatus
	}

	return nil
}

// isValidSuggestionStatus checks if the given status is a valid SuggestionStatus.
func isValidSuggestionStatus(status SuggestionStatus) bool {
	switch status {
	case SuggestionStatusPending, SuggestionStatusAccepted, SuggestionStatusRejected:
		return true
	default:
		return false
	}
}

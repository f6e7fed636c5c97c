package domain

import (
	"encoding/json"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the lifecycle state of a background job
type JobStatus string

// Possible background job status values
const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusRetrying  JobStatus = "retrying"
)

// Background job type identifiers. Each selects a registered handler.
const (
	JobTypeAnalyzeCompletedTask = "analyze-completed-task"
	JobTypeDetectPatterns       = "detect-patterns"
	JobTypeReviewSuggestions    = "review-suggestions"
)

// DefaultMaxAttempts is the retry budget applied to jobs enqueued without
// an explicit max_attempts.
const DefaultMaxAttempts = 3

// Common validation errors for BackgroundJob
var (
	ErrEmptyJobID          = errors.New("job ID cannot be empty")
	ErrEmptyJobType        = errors.New("job type cannot be empty")
	ErrInvalidMaxAttempts  = errors.New("job max attempts must be positive")
	ErrNegativeJobAttempts = errors.New("job attempts cannot be negative")
)

// BackgroundJob represents a retryable, typed, asynchronous unit of deferred
// work. Jobs are enqueued by the cascade trigger or directly by API callers,
// picked up by the job runner once due, and terminate as completed or failed
// after exhausting their retry budget.
type BackgroundJob struct {
	ID           uuid.UUID       `json:"id"`
	Type         string          `json:"type"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	Status       JobStatus       `json:"status"`
	Attempts     int             `json:"attempts"`
	MaxAttempts  int             `json:"max_attempts"`
	ScheduledAt  time.Time       `json:"scheduled_at"`
	NextRetryAt  *time.Time      `json:"next_retry_at,omitempty"`
	Result       json.RawMessage `json:"result,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
}

// NewBackgroundJob creates a new pending job of the given type, due at
// scheduledAt. A zero scheduledAt means the job is due immediately.
// Returns an error if validation fails.
func NewBackgroundJob(jobType string, payload json.RawMessage, scheduledAt time.Time) (*BackgroundJob, error) {
	now := time.Now().UTC()
	if scheduledAt.IsZero() {
		scheduledAt = now
	}

	job := &BackgroundJob{
		ID:          uuid.New(),
		Type:        jobType,
		Payload:     payload,
		Status:      JobStatusPending,
		Attempts:    0,
		MaxAttempts: DefaultMaxAttempts,
		ScheduledAt: scheduledAt.UTC(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := job.Validate(); err != nil {
		return nil, err
	}

	return job, nil
}

// Validate checks if the BackgroundJob has valid data.
func (j *BackgroundJob) Validate() error {
	if j.ID == uuid.Nil {
		return ErrEmptyJobID
	}

	if j.Type == "" {
		return ErrEmptyJobType
	}

	if !isValidJobStatus(j.Status) {
		return ErrInvalidJobStatus
	}

	if j.MaxAttempts <= 0 {
		return ErrInvalidMaxAttempts
	}

	if j.Attempts < 0 {
		return ErrNegativeJobAttempts
	}

	return nil
}

// IsDue reports whether the job is eligible for execution at the given
// instant: it must be pending or retrying, past its scheduled time, and
// past its retry hold-off if one is set.
func (j *BackgroundJob) IsDue(now time.Time) bool {
	if j.Status != JobStatusPending && j.Status != JobStatusRetrying {
		return false
	}

	if j.ScheduledAt.After(now) {
		return false
	}

	if j.NextRetryAt != nil && j.NextRetryAt.After(now) {
		return false
	}

	return true
}

// RetryBackoff returns the delay before the next execution attempt given
// the number of attempts already consumed. The delay grows as 2^attempts
// minutes, so the first retry waits ~2 minutes and the second ~4.
func RetryBackoff(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	return time.Duration(math.Pow(2, float64(attempts))) * time.Minute
}

// isValidJobStatus checks if the given status is a valid JobStatus.
func isValidJobStatus(status JobStatus) bool {
	switch status {
	case JobStatusPending, JobStatusRunning, JobStatusCompleted,
		JobStatusFailed, JobStatusRetrying:
		return true
	default:
		return false
	}
}

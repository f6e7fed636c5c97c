package domain

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the lifecycle state of a task
type TaskStatus string

// Possible task status values
const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusAssigned   TaskStatus = "assigned"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

// Common validation errors for Task
var (
	ErrEmptyTaskID        = errors.New("task ID cannot be empty")
	ErrEmptyTaskProjectID = errors.New("task project ID cannot be empty")
	ErrEmptyTaskTitle     = errors.New("task title cannot be empty")
	ErrSelfDependency     = errors.New("task cannot depend on itself")
)

// Task represents a unit of work created within a project and claimed by
// exactly one agent. It carries capability and dependency prerequisites
// that gate assignment, and a terminal payload set when the owning agent
// reports completion or failure.
type Task struct {
	ID                   uuid.UUID       `json:"id"`
	ProjectID            uuid.UUID       `json:"project_id"`
	Title                string          `json:"title"`
	Description          string          `json:"description,omitempty"`
	Status               TaskStatus      `json:"status"`
	Priority             int             `json:"priority"`
	Dependencies         []uuid.UUID     `json:"dependencies,omitempty"`
	RequiredCapabilities []string        `json:"required_capabilities,omitempty"`
	AssignedAgentID      *uuid.UUID      `json:"assigned_agent_id,omitempty"`
	InputData            json.RawMessage `json:"input_data,omitempty"`
	OutputData           json.RawMessage `json:"output_data,omitempty"`
	ErrorMessage         string          `json:"error_message,omitempty"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
	StartedAt            *time.Time      `json:"started_at,omitempty"`
	CompletedAt          *time.Time      `json:"completed_at,omitempty"`
}

// NewTask creates a new pending Task in the given project.
// It generates a new UUID for the task ID and sets the creation/update
// timestamps. Returns an error if validation fails.
func NewTask(projectID uuid.UUID, title string, priority int) (*Task, error) {
	now := time.Now().UTC()
	task := &Task{
		ID:        uuid.New(),
		ProjectID: projectID,
		Title:     title,
		Status:    TaskStatusPending,
		Priority:  priority,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}

	return task, nil
}

// Validate checks if the Task has valid data.
// Returns an error if any field fails validation.
func (t *Task) Validate() error {
	if t.ID == uuid.Nil {
		return ErrEmptyTaskID
	}

	if t.ProjectID == uuid.Nil {
		return ErrEmptyTaskProjectID
	}

	if t.Title == "" {
		return ErrEmptyTaskTitle
	}

	if !isValidTaskStatus(t.Status) {
		return ErrInvalidTaskStatus
	}

	for _, dep := range t.Dependencies {
		if dep == t.ID {
			return ErrSelfDependency
		}
	}

	return nil
}

// IsTerminal reports whether the task is in a terminal status from which
// no further transitions are permitted.
func (t *Task) IsTerminal() bool {
	switch t.Status {
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// CanTerminate reports whether the task may transition to completed or
// failed. Only assigned and in_progress tasks can be terminated by their
// owning agent.
func (t *Task) CanTerminate() bool {
	return t.Status == TaskStatusAssigned || t.Status == TaskStatusInProgress
}

// IsOwnedBy reports whether the task is currently assigned to the given agent.
func (t *Task) IsOwnedBy(agentID uuid.UUID) bool {
	return t.AssignedAgentID != nil && *t.AssignedAgentID == agentID
}

// isValidTaskStatus checks if the given status is a valid TaskStatus.
func isValidTaskStatus(status TaskStatus) bool {
	switch status {
	case TaskStatusPending, TaskStatusAssigned, TaskStatusInProgress,
		TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

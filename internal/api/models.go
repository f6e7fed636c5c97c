package api

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/conductor-hq/conductor/internal/domain"
)

// CreateTaskRequest is the request body for creating a task.
type CreateTaskRequest struct {
	ProjectID            uuid.UUID       `json:"project_id"            validate:"required"`
	Title                string          `json:"title"                 validate:"required,max=500"`
	Description          string          `json:"description"           validate:"max=10000"`
	Priority             int             `json:"priority"`
	Dependencies         []uuid.UUID     `json:"dependencies"`
	RequiredCapabilities []string        `json:"required_capabilities"`
	InputData            json.RawMessage `json:"input_data"`
}

// PollTaskRequest is the request body for polling the next available task.
// AgentID is optional: when present it must match the authenticated agent.
type PollTaskRequest struct {
	AgentID      uuid.UUID `json:"agent_id"`
	Capabilities []string  `json:"capabilities"`
}

// CompleteTaskRequest is the request body for reporting task completion.
type CompleteTaskRequest struct {
	AgentID    uuid.UUID       `json:"agent_id"`
	OutputData json.RawMessage `json:"output_data"`
}

// FailTaskRequest is the request body for reporting task failure.
type FailTaskRequest struct {
	AgentID      uuid.UUID `json:"agent_id"`
	ErrorMessage string    `json:"error_message" validate:"required,max=10000"`
}

// EnqueueJobRequest is the request body for enqueueing a background job.
type EnqueueJobRequest struct {
	Type        string          `json:"type"         validate:"required,max=200"`
	Payload     json.RawMessage `json:"payload"`
	ScheduledAt *time.Time      `json:"scheduled_at"`
	MaxAttempts int             `json:"max_attempts" validate:"gte=0,lte=10"`
}

// RunJobsRequest is the request body for a manual job runner pass.
type RunJobsRequest struct {
	BatchLimit int `json:"batch_limit" validate:"gte=0,lte=1000"`
}

// RunJobsResponse reports the outcome of a manual job runner pass.
type RunJobsResponse struct {
	ProcessedCount int `json:"processed_count"`
}

// RegisterAgentRequest is the request body for registering a new agent.
type RegisterAgentRequest struct {
	Name         string   `json:"name"         validate:"required,max=200"`
	Capabilities []string `json:"capabilities" validate:"max=50,dive,max=100"`
}

// RegisterAgentResponse returns the new agent together with its one-time
// API key and an access token. The key is never shown again.
type RegisterAgentResponse struct {
	Agent  *domain.Agent `json:"agent"`
	APIKey string        `json:"api_key"`
	Token  string        `json:"token"`
}

// AgentTokenRequest exchanges an agent's API key for a fresh access token.
type AgentTokenRequest struct {
	AgentID uuid.UUID `json:"agent_id" validate:"required"`
	APIKey  string    `json:"api_key"  validate:"required"`
}

// AgentTokenResponse carries a freshly issued access token.
type AgentTokenResponse struct {
	Token string `json:"token"`
}

// HeartbeatRequest is the request body for an agent status report.
type HeartbeatRequest struct {
	AgentID uuid.UUID `json:"agent_id"`
	Status  string    `json:"status" validate:"required,oneof=idle active busy offline error"`
}

package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// AgentStatus represents the reported operational state of an agent.
// It is informational and does not gate assignment.
type AgentStatus string

// Possible agent status values
const (
	AgentStatusIdle    AgentStatus = "idle"
	AgentStatusActive  AgentStatus = "active"
	AgentStatusBusy    AgentStatus = "busy"
	AgentStatusOffline AgentStatus = "offline"
	AgentStatusError   AgentStatus = "error"
)

// Common validation errors for Agent
var (
	ErrEmptyAgentID   = errors.New("agent ID cannot be empty")
	ErrEmptyAgentName = errors.New("agent name cannot be empty")
)

// Agent represents a worker identity with declared capability tags.
// Capabilities are advertised at registration and used only for matching
// against task requirements.
type Agent struct {
	ID              uuid.UUID   `json:"id"`
	Name            string      `json:"name"`
	Capabilities    []string    `json:"capabilities"`
	Status          AgentStatus `json:"status"`
	APIKeyHash      string      `json:"-"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
	LastHeartbeatAt *time.Time  `json:"last_heartbeat_at,omitempty"`
}

// NewAgent creates a new idle Agent with the given name and capabilities.
// Returns an error if validation fails.
func NewAgent(name string, capabilities []string) (*Agent, error) {
	now := time.Now().UTC()
	agent := &Agent{
		ID:           uuid.New(),
		Name:         name,
		Capabilities: capabilities,
		Status:       AgentStatusIdle,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := agent.Validate(); err != nil {
		return nil, err
	}

	return agent, nil
}

// Validate checks if the Agent has valid data.
func (a *Agent) Validate() error {
	if a.ID == uuid.Nil {
		return ErrEmptyAgentID
	}

	if a.Name == "" {
		return ErrEmptyAgentName
	}

	if !isValidAgentStatus(a.Status) {
		return ErrInvalidAgentStatus
	}

	return nil
}

// HasCapabilities reports whether the agent advertises every capability in
// required. An empty required set always matches.
func (a *Agent) HasCapabilities(required []string) bool {
	return HasCapabilities(a.Capabilities, required)
}

// HasCapabilities reports whether required is a subset of available.
// An empty required set always matches.
func HasCapabilities(available, required []string) bool {
	if len(required) == 0 {
		return true
	}

	set := make(map[string]struct{}, len(available))
	for _, cap := range available {
		set[cap] = struct{}{}
	}

	for _, req := range required {
		if _, ok := set[req]; !ok {
			return false
		}
	}

	return true
}

// isValidAgentStatus checks if the given status is a valid AgentStatus.
func isValidAgentStatus(status AgentStatus) bool {
	switch status {
	case AgentStatusIdle, AgentStatusActive, AgentStatusBusy,
		AgentStatusOffline, AgentStatusError:
		return true
	default:
		return false
	}
}

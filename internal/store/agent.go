package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/conductor-hq/conductor/internal/domain"
)

// AgentStore defines the persistence operations for agents.
type AgentStore interface {
	// Create saves a new agent.
	// Returns ErrAgentNameExists if the name is already registered.
	Create(ctx context.Context, agent *domain.Agent) error

	// GetByID retrieves an agent by its unique ID.
	// Returns ErrAgentNotFound if the agent does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Agent, error)

	// UpdateHeartbeat records the agent's reported status and heartbeat time.
	// Returns ErrAgentNotFound if the agent does not exist.
	UpdateHeartbeat(ctx context.Context, id uuid.UUID, status domain.AgentStatus, at time.Time) error

	// WithTx returns a new AgentStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) AgentStore
}

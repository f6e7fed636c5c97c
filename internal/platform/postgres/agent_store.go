package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/conductor-hq/conductor/internal/domain"
	"github.com/conductor-hq/conductor/internal/platform/logger"
	"github.com/conductor-hq/conductor/internal/store"
)

// PostgresAgentStore implements the store.AgentStore interface
// using a PostgreSQL database as the storage backend.
type PostgresAgentStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresAgentStore creates a new PostgreSQL implementation of the AgentStore interface.
// If logger is nil, a default logger will be used.
func NewPostgresAgentStore(db store.DBTX, logger *slog.Logger) *PostgresAgentStore {
	if db == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresAgentStore{
		db:     db,
		logger: logger.With(slog.String("component", "agent_store")),
	}
}

// Ensure PostgresAgentStore implements store.AgentStore interface
var _ store.AgentStore = (*PostgresAgentStore)(nil)

// WithTx returns a new AgentStore instance that uses the provided transaction.
func (s *PostgresAgentStore) WithTx(tx *sql.Tx) store.AgentStore {
	return &PostgresAgentStore{
		db:     tx,
		logger: s.logger,
	}
}

// Create implements store.AgentStore.Create
// Returns store.ErrAgentNameExists if the name is already registered.
func (s *PostgresAgentStore) Create(ctx context.Context, agent *domain.Agent) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := agent.Validate(); err != nil {
		log.Warn("agent validation failed during create",
			slog.String("error", err.Error()),
			slog.String("agent_id", agent.ID.String()))
		return err
	}

	caps, err := json.Marshal(agent.Capabilities)
	if err != nil {
		return fmt.Errorf("failed to marshal capabilities: %w", err)
	}

	query := `
		INSERT INTO agents (id, name, capabilities, status, api_key_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = s.db.ExecContext(
		ctx,
		query,
		agent.ID,
		agent.Name,
		caps,
		agent.Status,
		agent.APIKeyHash,
		agent.CreatedAt,
		agent.UpdatedAt,
	)

	if err != nil {
		if IsUniqueViolation(err) {
			log.Warn("agent name already registered",
				slog.String("agent_name", agent.Name))
			return store.ErrAgentNameExists
		}

		log.Error("failed to create agent",
			slog.String("error", err.Error()),
			slog.String("agent_id", agent.ID.String()))
		return MapError(err)
	}

	log.Info("agent registered",
		slog.String("agent_id", agent.ID.String()),
		slog.String("agent_name", agent.Name))
	return nil
}

// GetByID implements store.AgentStore.GetByID
// Returns store.ErrAgentNotFound if the agent does not exist.
func (s *PostgresAgentStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Agent, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, name, capabilities, status, api_key_hash,
			created_at, updated_at, last_heartbeat_at
		FROM agents
		WHERE id = $1
	`

	var agent domain.Agent
	var caps []byte
	var lastHeartbeatAt sql.NullTime

	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&agent.ID,
		&agent.Name,
		&caps,
		&agent.Status,
		&agent.APIKeyHash,
		&agent.CreatedAt,
		&agent.UpdatedAt,
		&lastHeartbeatAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("agent not found", slog.String("agent_id", id.String()))
			return nil, store.ErrAgentNotFound
		}
		log.Error("failed to get agent by ID",
			slog.String("error", err.Error()),
			slog.String("agent_id", id.String()))
		return nil, MapError(err)
	}

	if len(caps) > 0 {
		if err := json.Unmarshal(caps, &agent.Capabilities); err != nil {
			return nil, fmt.Errorf("failed to unmarshal capabilities: %w", err)
		}
	}
	if lastHeartbeatAt.Valid {
		t := lastHeartbeatAt.Time
		agent.LastHeartbeatAt = &t
	}

	return &agent, nil
}

// UpdateHeartbeat implements store.AgentStore.UpdateHeartbeat
func (s *PostgresAgentStore) UpdateHeartbeat(ctx context.Context, id uuid.UUID, status domain.AgentStatus, at time.Time) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE agents
		SET status = $1, last_heartbeat_at = $2, updated_at = $2
		WHERE id = $3
	`

	result, err := s.db.ExecContext(ctx, query, status, at.UTC(), id)
	if err != nil {
		log.Error("failed to update agent heartbeat",
			slog.String("error", err.Error()),
			slog.String("agent_id", id.String()))
		return MapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return MapError(err)
	}

	if rowsAffected == 0 {
		return store.ErrAgentNotFound
	}

	log.Debug("agent heartbeat recorded",
		slog.String("agent_id", id.String()),
		slog.String("status", string(status)))
	return nil
}

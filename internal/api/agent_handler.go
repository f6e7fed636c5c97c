package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/conductor-hq/conductor/internal/api/shared"
	"github.com/conductor-hq/conductor/internal/auth"
	"github.com/conductor-hq/conductor/internal/domain"
	"github.com/conductor-hq/conductor/internal/platform/logger"
	"github.com/conductor-hq/conductor/internal/store"
)

// AgentHandler serves agent registration, token exchange, and heartbeats.
type AgentHandler struct {
	agents store.AgentStore
	tokens auth.TokenService
	hasher auth.APIKeyHasher
	logger *slog.Logger
}

// NewAgentHandler creates a new AgentHandler with the given dependencies.
func NewAgentHandler(
	agents store.AgentStore,
	tokens auth.TokenService,
	hasher auth.APIKeyHasher,
	log *slog.Logger,
) *AgentHandler {
	// ALLOW-PANIC: Constructor enforces required dependency.
	if agents == nil {
		panic("agent store cannot be nil")
	}
	// ALLOW-PANIC: Constructor enforces required dependency.
	if tokens == nil {
		panic("token service cannot be nil")
	}
	// ALLOW-PANIC: Constructor enforces required dependency.
	if hasher == nil {
		panic("API key hasher cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}

	return &AgentHandler{
		agents: agents,
		tokens: tokens,
		hasher: hasher,
		logger: log.With(slog.String("component", "agent_handler")),
	}
}

// Register handles POST /api/agents/register. The response carries the
// agent's API key exactly once; only its bcrypt hash is stored.
func (h *AgentHandler) Register(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var req RegisterAgentRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	agent, err := domain.NewAgent(req.Name, req.Capabilities)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid agent data", err)
		return
	}

	apiKey, err := auth.GenerateAPIKey()
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError, "Failed to register agent", err)
		return
	}
	agent.APIKeyHash, err = h.hasher.Hash(apiKey)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError, "Failed to register agent", err)
		return
	}

	if err := h.agents.Create(r.Context(), agent); err != nil {
		status := MapErrorToStatusCode(err)
		shared.RespondWithErrorAndLog(w, r, status, GetSafeErrorMessage(err), err)
		return
	}

	token, err := h.tokens.GenerateToken(r.Context(), agent.ID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError, "Failed to issue token", err)
		return
	}

	log.Info("agent registered",
		"agent_id", agent.ID,
		"name", agent.Name,
		"capabilities", agent.Capabilities)
	shared.RespondWithJSON(w, r, http.StatusCreated, RegisterAgentResponse{
		Agent:  agent,
		APIKey: apiKey,
		Token:  token,
	})
}

// Token handles POST /api/agents/token: exchanging an API key for a fresh
// access token after the previous one expires.
func (h *AgentHandler) Token(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var req AgentTokenRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	agent, err := h.agents.GetByID(r.Context(), req.AgentID)
	if err != nil {
		// A wrong agent ID and a wrong key look the same to the caller.
		shared.RespondWithErrorAndLog(w, r, http.StatusUnauthorized, "Invalid credentials", err)
		return
	}
	if err := h.hasher.Compare(agent.APIKeyHash, req.APIKey); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusUnauthorized, "Invalid credentials", err)
		return
	}

	token, err := h.tokens.GenerateToken(r.Context(), agent.ID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError, "Failed to issue token", err)
		return
	}

	log.Info("agent token issued", "agent_id", agent.ID)
	shared.RespondWithJSON(w, r, http.StatusOK, AgentTokenResponse{Token: token})
}

// Heartbeat handles POST /api/agents/heartbeat. The authenticated agent
// reports its operational status; the report is informational and never
// gates assignment.
func (h *AgentHandler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	agentID, ok := authenticatedAgent(w, r)
	if !ok {
		return
	}

	var req HeartbeatRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}
	if !agentMatches(w, r, req.AgentID, agentID) {
		return
	}

	now := time.Now().UTC()
	if err := h.agents.UpdateHeartbeat(r.Context(), agentID, domain.AgentStatus(req.Status), now); err != nil {
		status := MapErrorToStatusCode(err)
		shared.RespondWithErrorAndLog(w, r, status, GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conductor-hq/conductor/internal/api/shared"
	"github.com/conductor-hq/conductor/internal/domain"
)

func TestRegisterEndpoint(t *testing.T) {
	t.Parallel()

	t.Run("returns agent, api key, and token", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		rec := env.do(t, http.MethodPost, "/api/agents/register", "", RegisterAgentRequest{
			Name:         "worker-1",
			Capabilities: []string{"coding", "review"},
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var resp RegisterAgentResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.NotNil(t, resp.Agent)
		assert.Equal(t, "worker-1", resp.Agent.Name)
		assert.Equal(t, []string{"coding", "review"}, resp.Agent.Capabilities)
		assert.Len(t, resp.APIKey, 64)
		assert.NotEmpty(t, resp.Token)
		// Only the hash is stored; the key itself never is.
		assert.Empty(t, resp.Agent.APIKeyHash)

		claims, err := env.tokens.ValidateToken(context.Background(), resp.Token)
		require.NoError(t, err)
		assert.Equal(t, resp.Agent.ID, claims.AgentID)
	})

	t.Run("duplicate name is 409", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		env.registeredAgent(t, "worker-1", nil)

		rec := env.do(t, http.MethodPost, "/api/agents/register", "", RegisterAgentRequest{
			Name: "worker-1",
		})
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("missing name is 400", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		rec := env.do(t, http.MethodPost, "/api/agents/register", "", RegisterAgentRequest{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestTokenEndpoint(t *testing.T) {
	t.Parallel()

	register := func(t *testing.T, env *testEnv) (uuid.UUID, string) {
		t.Helper()
		rec := env.do(t, http.MethodPost, "/api/agents/register", "", RegisterAgentRequest{
			Name: "worker-1",
		})
		require.Equal(t, http.StatusCreated, rec.Code)

		var resp RegisterAgentResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		return resp.Agent.ID, resp.APIKey
	}

	t.Run("exchanges a valid api key for a token", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		agentID, apiKey := register(t, env)

		rec := env.do(t, http.MethodPost, "/api/agents/token", "", AgentTokenRequest{
			AgentID: agentID,
			APIKey:  apiKey,
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp AgentTokenResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		claims, err := env.tokens.ValidateToken(context.Background(), resp.Token)
		require.NoError(t, err)
		assert.Equal(t, agentID, claims.AgentID)
	})

	t.Run("wrong key and unknown agent are indistinguishable", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		agentID, _ := register(t, env)

		wrongKey := env.do(t, http.MethodPost, "/api/agents/token", "", AgentTokenRequest{
			AgentID: agentID,
			APIKey:  "definitely-not-the-key",
		})
		unknownAgent := env.do(t, http.MethodPost, "/api/agents/token", "", AgentTokenRequest{
			AgentID: uuid.New(),
			APIKey:  "definitely-not-the-key",
		})

		assert.Equal(t, http.StatusUnauthorized, wrongKey.Code)
		assert.Equal(t, http.StatusUnauthorized, unknownAgent.Code)

		// Trace IDs differ per request, so only the error text is compared.
		var wrongKeyResp, unknownAgentResp shared.ErrorResponse
		require.NoError(t, json.Unmarshal(wrongKey.Body.Bytes(), &wrongKeyResp))
		require.NoError(t, json.Unmarshal(unknownAgent.Body.Bytes(), &unknownAgentResp))
		assert.Equal(t, wrongKeyResp.Error, unknownAgentResp.Error)
	})
}

func TestHeartbeatEndpoint(t *testing.T) {
	t.Parallel()

	t.Run("updates the agent status", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		agentID, token := env.registeredAgent(t, "worker-1", nil)

		rec := env.do(t, http.MethodPost, "/api/agents/heartbeat", token, HeartbeatRequest{
			Status: "busy",
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		agent, err := env.agents.GetByID(context.Background(), agentID)
		require.NoError(t, err)
		assert.Equal(t, domain.AgentStatusBusy, agent.Status)
		assert.NotNil(t, agent.LastHeartbeatAt)
	})

	t.Run("rejects an unknown status", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		_, token := env.registeredAgent(t, "worker-1", nil)

		rec := env.do(t, http.MethodPost, "/api/agents/heartbeat", token, HeartbeatRequest{
			Status: "sleeping",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("body agent_id must match the token", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		_, token := env.registeredAgent(t, "worker-1", nil)

		rec := env.do(t, http.MethodPost, "/api/agents/heartbeat", token, HeartbeatRequest{
			AgentID: uuid.New(),
			Status:  "idle",
		})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

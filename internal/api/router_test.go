package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/conductor-hq/conductor/internal/api/middleware"
	"github.com/conductor-hq/conductor/internal/assignment"
	"github.com/conductor-hq/conductor/internal/auth"
	"github.com/conductor-hq/conductor/internal/config"
	"github.com/conductor-hq/conductor/internal/jobs"
)

// testEnv wires the handlers over in-memory stores and a real token
// service, mirroring the production router.
type testEnv struct {
	router http.Handler
	tasks  *mockTaskStore
	agents *mockAgentStore
	jobs   *mockJobStore
	tokens auth.TokenService
	hasher auth.APIKeyHasher

	registry *jobs.Registry
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	tokens, err := auth.NewTokenService(config.AuthConfig{
		JWTSecret:     "0123456789abcdef0123456789abcdef",
		TokenLifetime: 60,
	})
	require.NoError(t, err)

	env := &testEnv{
		tasks:    newMockTaskStore(),
		agents:   newMockAgentStore(),
		jobs:     newMockJobStore(),
		tokens:   tokens,
		hasher:   auth.NewBcryptHasher(4),
		registry: jobs.NewRegistry(),
	}

	service := assignment.NewService(env.tasks, nil, nil, assignment.Config{ScanLimit: 50}, testLogger())
	runner := jobs.NewRunner(env.jobs, env.registry, nil, jobs.RunnerConfig{BatchLimit: 20}, testLogger())

	agentHandler := NewAgentHandler(env.agents, env.tokens, env.hasher, testLogger())
	taskHandler := NewTaskHandler(service, env.tasks, testLogger())
	jobHandler := NewJobHandler(env.jobs, runner, testLogger())
	authMiddleware := middleware.NewAuthMiddleware(env.tokens)

	r := chi.NewRouter()
	r.Use(middleware.TraceID)
	r.Route("/api", func(r chi.Router) {
		r.Post("/agents/register", agentHandler.Register)
		r.Post("/agents/token", agentHandler.Token)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)

			r.Post("/agents/heartbeat", agentHandler.Heartbeat)

			r.Post("/tasks", taskHandler.Create)
			r.Get("/tasks/{id}", taskHandler.Get)
			r.Post("/tasks/poll", taskHandler.Poll)
			r.Post("/tasks/{id}/complete", taskHandler.Complete)
			r.Post("/tasks/{id}/fail", taskHandler.Fail)

			r.Post("/jobs", jobHandler.Enqueue)
			r.Get("/jobs/{id}", jobHandler.Get)
			r.Post("/jobs/run", jobHandler.Run)
		})
	})

	env.router = r
	return env
}

// registeredAgent registers an agent through the API and returns its ID
// and bearer token.
func (env *testEnv) registeredAgent(t *testing.T, name string, capabilities []string) (uuid.UUID, string) {
	t.Helper()

	rec := env.do(t, http.MethodPost, "/api/agents/register", "", RegisterAgentRequest{
		Name:         name,
		Capabilities: capabilities,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp RegisterAgentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Agent.ID, resp.Token
}

// do performs a request against the test router. A non-nil body is JSON
// encoded; a non-empty token becomes a bearer Authorization header.
func (env *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req = req.WithContext(context.Background())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

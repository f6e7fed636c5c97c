package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/conductor-hq/conductor/internal/api/middleware"
	"github.com/conductor-hq/conductor/internal/api/shared"
	"github.com/conductor-hq/conductor/internal/assignment"
	"github.com/conductor-hq/conductor/internal/domain"
	"github.com/conductor-hq/conductor/internal/platform/logger"
	"github.com/conductor-hq/conductor/internal/store"
)

// TaskHandler serves the task lifecycle endpoints: creation, polling,
// and the terminal complete/fail transitions.
type TaskHandler struct {
	service *assignment.Service
	tasks   store.TaskStore
	logger  *slog.Logger
}

// NewTaskHandler creates a new TaskHandler with the given dependencies.
func NewTaskHandler(service *assignment.Service, tasks store.TaskStore, log *slog.Logger) *TaskHandler {
	// ALLOW-PANIC: Constructor enforces required dependency.
	if service == nil {
		panic("assignment service cannot be nil")
	}
	// ALLOW-PANIC: Constructor enforces required dependency.
	if tasks == nil {
		panic("task store cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}

	return &TaskHandler{
		service: service,
		tasks:   tasks,
		logger:  log.With(slog.String("component", "task_handler")),
	}
}

// Create handles POST /api/tasks.
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var req CreateTaskRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	task, err := domain.NewTask(req.ProjectID, req.Title, req.Priority)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid task data", err)
		return
	}
	task.Description = req.Description
	task.Dependencies = req.Dependencies
	task.RequiredCapabilities = req.RequiredCapabilities
	task.InputData = req.InputData
	if err := task.Validate(); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid task data", err)
		return
	}

	if err := h.tasks.Create(r.Context(), task); err != nil {
		status := MapErrorToStatusCode(err)
		shared.RespondWithErrorAndLog(w, r, status, GetSafeErrorMessage(err), err)
		return
	}

	log.Info("task created",
		"task_id", task.ID,
		"project_id", task.ProjectID,
		"priority", task.Priority)
	shared.RespondWithJSON(w, r, http.StatusCreated, task)
}

// Get handles GET /api/tasks/{id}.
func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	taskID, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	task, err := h.tasks.GetByID(r.Context(), taskID)
	if err != nil {
		status := MapErrorToStatusCode(err)
		shared.RespondWithErrorAndLog(w, r, status, GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, task)
}

// Poll handles POST /api/tasks/poll. It assigns the best eligible pending
// task to the calling agent, or responds 204 when nothing matches.
func (h *TaskHandler) Poll(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	agentID, ok := authenticatedAgent(w, r)
	if !ok {
		return
	}

	var req PollTaskRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if !agentMatches(w, r, req.AgentID, agentID) {
		return
	}

	task, err := h.service.PollNext(r.Context(), agentID, req.Capabilities)
	if err != nil {
		if errors.Is(err, assignment.ErrNoTaskAvailable) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		status := MapErrorToStatusCode(err)
		shared.RespondWithErrorAndLog(w, r, status, GetSafeErrorMessage(err), err)
		return
	}

	log.Info("task assigned",
		"task_id", task.ID,
		"agent_id", agentID)
	shared.RespondWithJSON(w, r, http.StatusOK, task)
}

// Complete handles POST /api/tasks/{id}/complete.
func (h *TaskHandler) Complete(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	taskID, ok := parseIDParam(w, r)
	if !ok {
		return
	}
	agentID, ok := authenticatedAgent(w, r)
	if !ok {
		return
	}

	var req CompleteTaskRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if !agentMatches(w, r, req.AgentID, agentID) {
		return
	}

	task, err := h.service.Complete(r.Context(), taskID, agentID, req.OutputData)
	if err != nil {
		status := MapErrorToStatusCode(err)
		shared.RespondWithErrorAndLog(w, r, status, GetSafeErrorMessage(err), err)
		return
	}

	log.Info("task completed",
		"task_id", task.ID,
		"agent_id", agentID)
	shared.RespondWithJSON(w, r, http.StatusOK, task)
}

// Fail handles POST /api/tasks/{id}/fail.
func (h *TaskHandler) Fail(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	taskID, ok := parseIDParam(w, r)
	if !ok {
		return
	}
	agentID, ok := authenticatedAgent(w, r)
	if !ok {
		return
	}

	var req FailTaskRequest
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

	task, err := h.service.Fail(r.Context(), taskID, agentID, req.ErrorMessage)
	if err != nil {
		status := MapErrorToStatusCode(err)
		shared.RespondWithErrorAndLog(w, r, status, GetSafeErrorMessage(err), err)
		return
	}

	log.Info("task failed",
		"task_id", task.ID,
		"agent_id", agentID)
	shared.RespondWithJSON(w, r, http.StatusOK, task)
}

// parseIDParam extracts and parses the {id} route parameter.
// Writes a 400 response and returns false when the parameter is not a UUID.
func parseIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid ID format")
		return uuid.Nil, false
	}
	return id, true
}

// authenticatedAgent extracts the agent identity set by the auth middleware.
// Writes a 401 response and returns false when it is missing.
func authenticatedAgent(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	agentID, ok := middleware.GetAgentID(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
		return uuid.Nil, false
	}
	return agentID, true
}

// agentMatches rejects requests whose body names a different agent than the
// token. The body field exists for wire compatibility; the token is
// authoritative. Writes a 403 response and returns false on mismatch.
func agentMatches(w http.ResponseWriter, r *http.Request, claimed, authenticated uuid.UUID) bool {
	if claimed != uuid.Nil && claimed != authenticated {
		shared.RespondWithError(w, r, http.StatusForbidden, "Agent ID does not match the authenticated agent")
		return false
	}
	return true
}

package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/conductor-hq/conductor/internal/api/shared"
	"github.com/conductor-hq/conductor/internal/domain"
	"github.com/conductor-hq/conductor/internal/jobs"
	"github.com/conductor-hq/conductor/internal/platform/logger"
	"github.com/conductor-hq/conductor/internal/store"
)

// JobHandler serves the background job endpoints: direct enqueueing,
// inspection, and manual runner passes.
type JobHandler struct {
	jobs   store.JobStore
	runner *jobs.Runner
	logger *slog.Logger
}

// NewJobHandler creates a new JobHandler with the given dependencies.
func NewJobHandler(jobStore store.JobStore, runner *jobs.Runner, log *slog.Logger) *JobHandler {
	// ALLOW-PANIC: Constructor enforces required dependency.
	if jobStore == nil {
		panic("job store cannot be nil")
	}
	// ALLOW-PANIC: Constructor enforces required dependency.
	if runner == nil {
		panic("job runner cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}

	return &JobHandler{
		jobs:   jobStore,
		runner: runner,
		logger: log.With(slog.String("component", "job_handler")),
	}
}

// Enqueue handles POST /api/jobs.
func (h *JobHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var req EnqueueJobRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	scheduledAt := time.Time{}
	if req.ScheduledAt != nil {
		scheduledAt = *req.ScheduledAt
	}

	job, err := domain.NewBackgroundJob(req.Type, req.Payload, scheduledAt)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid job data", err)
		return
	}
	if req.MaxAttempts > 0 {
		job.MaxAttempts = req.MaxAttempts
	}

	if err := h.jobs.Enqueue(r.Context(), job); err != nil {
		status := MapErrorToStatusCode(err)
		shared.RespondWithErrorAndLog(w, r, status, GetSafeErrorMessage(err), err)
		return
	}

	log.Info("job enqueued",
		"job_id", job.ID,
		"job_type", job.Type)
	shared.RespondWithJSON(w, r, http.StatusCreated, job)
}

// Get handles GET /api/jobs/{id}.
func (h *JobHandler) Get(w http.ResponseWriter, r *http.Request) {
	jobID, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	job, err := h.jobs.GetByID(r.Context(), jobID)
	if err != nil {
		status := MapErrorToStatusCode(err)
		shared.RespondWithErrorAndLog(w, r, status, GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, job)
}

// Run handles POST /api/jobs/run: one manual drain pass of due jobs.
// The cron schedule performs the same pass automatically; this endpoint
// exists for operators and tests.
func (h *JobHandler) Run(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	// The body is optional; an empty body means default batch limit.
	var req RunJobsRequest
	if r.ContentLength > 0 {
		if err := shared.DecodeJSON(r, &req); err != nil {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
			return
		}
		if err := shared.ValidateRequest(req); err != nil {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request: "+err.Error())
			return
		}
	}

	processed, err := h.runner.ProcessDueJobs(r.Context(), req.BatchLimit)
	if err != nil {
		status := MapErrorToStatusCode(err)
		shared.RespondWithErrorAndLog(w, r, status, "Failed to process due jobs", err)
		return
	}

	log.Info("manual job runner pass finished", "processed_count", processed)
	shared.RespondWithJSON(w, r, http.StatusOK, RunJobsResponse{ProcessedCount: processed})
}

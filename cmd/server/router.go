package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/conductor-hq/conductor/internal/api"
	apimiddleware "github.com/conductor-hq/conductor/internal/api/middleware"
)

// setupRouter creates and configures the application router with all
// routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(apimiddleware.TraceID)

	agentHandler := api.NewAgentHandler(app.agentStore, app.tokenService, app.keyHasher, app.logger)
	taskHandler := api.NewTaskHandler(app.assignmentService, app.taskStore, app.logger)
	jobHandler := api.NewJobHandler(app.jobStore, app.runner, app.logger)
	authMiddleware := apimiddleware.NewAuthMiddleware(app.tokenService)

	r.Route("/api", func(r chi.Router) {
		// Agent credential endpoints (public)
		r.Post("/agents/register", agentHandler.Register)
		r.Post("/agents/token", agentHandler.Token)

		// Protected routes
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

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("failed to write health check response", "error", err)
		}
	})

	return r
}

package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/conductor-hq/conductor/internal/assignment"
	"github.com/conductor-hq/conductor/internal/auth"
	"github.com/conductor-hq/conductor/internal/config"
	"github.com/conductor-hq/conductor/internal/domain"
	"github.com/conductor-hq/conductor/internal/events"
	"github.com/conductor-hq/conductor/internal/jobs"
	"github.com/conductor-hq/conductor/internal/platform/llm"
	"github.com/conductor-hq/conductor/internal/platform/logger"
	"github.com/conductor-hq/conductor/internal/platform/metrics"
	"github.com/conductor-hq/conductor/internal/platform/postgres"
	"github.com/conductor-hq/conductor/internal/store"
)

// application holds the assembled dependencies of the running server.
type application struct {
	config  *config.Config
	logger  *slog.Logger
	db      *sql.DB
	metrics *metrics.Metrics

	taskStore       store.TaskStore
	jobStore        store.JobStore
	agentStore      store.AgentStore
	suggestionStore store.SuggestionStore

	tokenService auth.TokenService
	keyHasher    auth.APIKeyHasher

	assignmentService *assignment.Service
	runner            *jobs.Runner
}

// newApplication loads configuration and wires every component together.
func newApplication() (*application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	log, err := logger.Setup(cfg.Server.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("setting up logger: %w", err)
	}

	db, err := setupDatabase(cfg, log)
	if err != nil {
		return nil, err
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	taskStore := postgres.NewPostgresTaskStore(db, log)
	jobStore := postgres.NewPostgresJobStore(db, log)
	agentStore := postgres.NewPostgresAgentStore(db, log)
	suggestionStore := postgres.NewPostgresSuggestionStore(db, log)

	tokenService, err := auth.NewTokenService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("creating token service: %w", err)
	}
	keyHasher := auth.NewBcryptHasher(cfg.Auth.BcryptCost)

	// The cascade flows through the in-process event bus into persisted jobs.
	emitter := events.NewInMemoryEventEmitter(log)
	emitter.RegisterHandler(jobs.NewEnqueueHandler(jobStore, log))
	trigger := jobs.NewTrigger(taskStore, suggestionStore, emitter, m, log)

	assignmentService := assignment.NewService(
		taskStore,
		trigger,
		m,
		assignment.Config{ScanLimit: cfg.Jobs.PollScanLimit},
		log,
	)

	registry := jobs.NewRegistry()
	if cfg.LLM.GeminiAPIKey != "" {
		analyzer, err := llm.NewGeminiAnalyzer(context.Background(), log, cfg.LLM)
		if err != nil {
			return nil, fmt.Errorf("creating analyzer: %w", err)
		}
		registry.Register(domain.JobTypeAnalyzeCompletedTask,
			jobs.NewAnalyzeTaskHandler(taskStore, suggestionStore, analyzer, log))
		registry.Register(domain.JobTypeDetectPatterns,
			jobs.NewDetectPatternsHandler(suggestionStore, analyzer, log))
		registry.Register(domain.JobTypeReviewSuggestions,
			jobs.NewReviewSuggestionsHandler(suggestionStore, analyzer, log))
	} else {
		log.Warn("no LLM API key configured, analysis job handlers not registered")
	}

	runner := jobs.NewRunner(jobStore, registry, m,
		jobs.RunnerConfig{BatchLimit: cfg.Jobs.BatchLimit}, log)

	return &application{
		config:            cfg,
		logger:            log,
		db:                db,
		metrics:           m,
		taskStore:         taskStore,
		jobStore:          jobStore,
		agentStore:        agentStore,
		suggestionStore:   suggestionStore,
		tokenService:      tokenService,
		keyHasher:         keyHasher,
		assignmentService: assignmentService,
		runner:            runner,
	}, nil
}

// run applies startup migrations when configured and serves until the
// context is cancelled or a shutdown signal arrives.
func (app *application) run(ctx context.Context) error {
	if app.config.Database.AutoMigrate {
		if err := app.migrateUp(); err != nil {
			return err
		}
	}
	return app.startHTTPServer(ctx, app.setupRouter())
}

// cleanup releases resources held by the application.
func (app *application) cleanup() {
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("failed to close database connection", "error", err)
		}
	}
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
)

// startHTTPServer starts the HTTP server and the cron schedule for the job
// runner, then blocks until a shutdown signal or context cancellation.
func (app *application) startHTTPServer(ctx context.Context, router http.Handler) error {
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", app.config.Server.Port),
		Handler: router,
	}

	serverCtx, cancelServer := context.WithCancel(ctx)
	defer cancelServer()

	scheduler, err := app.startJobSchedule(serverCtx)
	if err != nil {
		return err
	}

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		app.logger.Info("starting server", "port", app.config.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			app.logger.Error("server failed", "error", err)
			cancelServer()
		}
	}()

	select {
	case <-shutdownCh:
		app.logger.Info("shutting down server...")
	case <-serverCtx.Done():
		app.logger.Info("server context canceled, shutting down...")
	}

	// Stop scheduling new runner passes and wait for running ones.
	<-scheduler.Stop().Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		app.logger.Error("server shutdown failed", "error", err)
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	app.logger.Info("server shutdown completed")
	return nil
}

// startJobSchedule starts the cron schedule that drains due background jobs.
func (app *application) startJobSchedule(ctx context.Context) (*cron.Cron, error) {
	scheduler := cron.New()

	_, err := scheduler.AddFunc(app.config.Jobs.Schedule, func() {
		processed, err := app.runner.ProcessDueJobs(ctx, 0)
		if err != nil {
			app.logger.Error("job runner pass failed", "error", err)
			return
		}
		if processed > 0 {
			app.logger.Info("job runner pass finished", "processed_count", processed)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid job schedule %q: %w", app.config.Jobs.Schedule, err)
	}

	scheduler.Start()
	app.logger.Info("job runner scheduled", "schedule", app.config.Jobs.Schedule)
	return scheduler, nil
}

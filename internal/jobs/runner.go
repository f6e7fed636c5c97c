package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/conductor-hq/conductor/internal/domain"
	"github.com/conductor-hq/conductor/internal/platform/metrics"
	"github.com/conductor-hq/conductor/internal/store"
)

// RunnerConfig holds tunables for the job runner.
type RunnerConfig struct {
	// BatchLimit caps how many due jobs a single ProcessDueJobs pass claims.
	BatchLimit int
}

// DefaultBatchLimit is used when RunnerConfig.BatchLimit is not positive.
const DefaultBatchLimit = 20

// Runner drains due background jobs. Each pass lists due jobs, claims each
// one with a conditional status update, and executes its handler in its own
// goroutine so one slow or panicking job cannot stall the rest of the batch.
type Runner struct {
	jobs     store.JobStore
	registry *Registry
	metrics  *metrics.Metrics
	config   RunnerConfig
	logger   *slog.Logger
	clock    func() time.Time
}

// NewRunner creates a job runner over the given store and handler registry.
// metrics may be nil when collection is not wired (tests).
func NewRunner(
	jobs store.JobStore,
	registry *Registry,
	m *metrics.Metrics,
	config RunnerConfig,
	logger *slog.Logger,
) *Runner {
	// ALLOW-PANIC: Constructor enforces required dependency.
	if jobs == nil {
		panic("jobs store cannot be nil")
	}
	// ALLOW-PANIC: Constructor enforces required dependency.
	if registry == nil {
		panic("handler registry cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if config.BatchLimit <= 0 {
		config.BatchLimit = DefaultBatchLimit
	}

	return &Runner{
		jobs:     jobs,
		registry: registry,
		metrics:  m,
		config:   config,
		logger:   logger.With(slog.String("component", "job_runner")),
		clock:    func() time.Time { return time.Now().UTC() },
	}
}

// ProcessDueJobs executes one drain pass: it lists jobs due at the current
// instant and runs each one concurrently. A batchLimit of zero or less uses
// the configured default. It returns the number of jobs this pass claimed
// and executed. Individual job failures are recorded on the job rows, not
// returned; only a listing failure produces an error.
func (r *Runner) ProcessDueJobs(ctx context.Context, batchLimit int) (int, error) {
	now := r.clock()
	if batchLimit <= 0 {
		batchLimit = r.config.BatchLimit
	}

	due, err := r.jobs.ListDue(ctx, now, batchLimit)
	if err != nil {
		return 0, fmt.Errorf("listing due jobs: %w", err)
	}
	if len(due) == 0 {
		return 0, nil
	}

	r.logger.DebugContext(ctx, "processing due jobs", slog.Int("count", len(due)))

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		processed int
	)
	for _, job := range due {
		wg.Add(1)
		go func(job *domain.BackgroundJob) {
			defer wg.Done()
			if r.processOne(ctx, job) {
				mu.Lock()
				processed++
				mu.Unlock()
			}
		}(job)
	}
	wg.Wait()

	return processed, nil
}

// processOne claims and executes a single job. Returns false when the claim
// was lost to a concurrent runner pass.
func (r *Runner) processOne(ctx context.Context, job *domain.BackgroundJob) bool {
	log := r.logger.With(
		slog.String("job_id", job.ID.String()),
		slog.String("job_type", job.Type),
		slog.Int("attempt", job.Attempts+1),
	)

	if err := r.jobs.MarkRunning(ctx, job.ID); err != nil {
		if errors.Is(err, store.ErrAlreadyClaimed) {
			log.DebugContext(ctx, "job claimed by another runner, skipping")
			r.countOutcome(job.Type, "skipped")
			return false
		}
		log.ErrorContext(ctx, "failed to claim job", slog.String("error", err.Error()))
		return false
	}

	started := r.clock()
	result, err := r.execute(ctx, job)
	if r.metrics != nil {
		r.metrics.JobDuration.WithLabelValues(job.Type).Observe(r.clock().Sub(started).Seconds())
	}

	if err != nil {
		r.recordFailure(ctx, log, job, err)
		return true
	}

	if markErr := r.jobs.MarkCompleted(ctx, job.ID, result, r.clock()); markErr != nil {
		log.ErrorContext(ctx, "failed to mark job completed", slog.String("error", markErr.Error()))
		return true
	}

	log.InfoContext(ctx, "job completed")
	r.countOutcome(job.Type, "completed")
	return true
}

// execute dispatches the job to its handler, converting a missing handler
// and handler panics into ordinary failures so they consume an attempt.
func (r *Runner) execute(ctx context.Context, job *domain.BackgroundJob) (result json.RawMessage, err error) {
	handler, err := r.registry.Get(job.Type)
	if err != nil {
		return nil, err
	}

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("handler panicked: %v", rec)
		}
	}()

	return handler.Execute(ctx, job.Payload)
}

// recordFailure consumes one attempt and either schedules a retry with
// exponential backoff or marks the job terminally failed.
func (r *Runner) recordFailure(ctx context.Context, log *slog.Logger, job *domain.BackgroundJob, execErr error) {
	attempts := job.Attempts + 1
	now := r.clock()

	if attempts < job.MaxAttempts {
		nextRetryAt := now.Add(domain.RetryBackoff(attempts))
		if err := r.jobs.MarkRetrying(ctx, job.ID, attempts, execErr.Error(), nextRetryAt); err != nil {
			log.ErrorContext(ctx, "failed to mark job retrying", slog.String("error", err.Error()))
			return
		}
		log.WarnContext(ctx, "job failed, retry scheduled",
			slog.String("error", execErr.Error()),
			slog.Time("next_retry_at", nextRetryAt),
		)
		r.countOutcome(job.Type, "retrying")
		return
	}

	if err := r.jobs.MarkFailed(ctx, job.ID, attempts, execErr.Error(), now); err != nil {
		log.ErrorContext(ctx, "failed to mark job failed", slog.String("error", err.Error()))
		return
	}
	log.ErrorContext(ctx, "job failed permanently",
		slog.String("error", execErr.Error()),
		slog.Int("attempts", attempts),
	)
	r.countOutcome(job.Type, "failed")
}

func (r *Runner) countOutcome(jobType, outcome string) {
	if r.metrics != nil {
		r.metrics.JobsProcessedTotal.WithLabelValues(jobType, outcome).Inc()
	}
}

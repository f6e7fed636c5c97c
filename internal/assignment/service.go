package assignment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/conductor-hq/conductor/internal/domain"
	"github.com/conductor-hq/conductor/internal/platform/logger"
	"github.com/conductor-hq/conductor/internal/platform/metrics"
	"github.com/conductor-hq/conductor/internal/store"
)

// CompletionObserver is notified synchronously whenever a task transitions
// to completed. Implementations must be best-effort: observation failures
// are logged by the implementation and never surfaced to the completing
// caller.
type CompletionObserver interface {
	TaskCompleted(ctx context.Context, task *domain.Task)
}

// Config holds tunables for the assignment service.
type Config struct {
	// ScanLimit caps how many pending candidates one poll request scans.
	ScanLimit int
}

// Service implements the assignment protocol over the task store.
type Service struct {
	tasks    store.TaskStore
	observer CompletionObserver
	metrics  *metrics.Metrics
	config   Config
	logger   *slog.Logger
}

// NewService creates a new assignment Service.
// The observer may be nil when no cascade is wired (e.g. some tests).
func NewService(
	tasks store.TaskStore,
	observer CompletionObserver,
	m *metrics.Metrics,
	config Config,
	logger *slog.Logger,
) *Service {
	if tasks == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("task store cannot be nil for assignment.Service")
	}
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for assignment.Service")
	}

	return &Service{
		tasks:    tasks,
		observer: observer,
		metrics:  m,
		config:   config,
		logger:   logger.With(slog.String("component", "assignment_service")),
	}
}

// PollNext claims the next eligible task for the given agent.
//
// Candidates are scanned in priority-descending, created-at-ascending order.
// Eligibility is evaluated against a snapshot of dependency statuses; the
// claim itself is a conditional update, so a candidate claimed by a
// concurrent poller between snapshot and claim is simply skipped and the
// scan continues. Returns ErrNoTaskAvailable when nothing is eligible.
func (s *Service) PollNext(ctx context.Context, agentID uuid.UUID, capabilities []string) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	candidates, err := s.tasks.ListPending(ctx, s.config.ScanLimit)
	if err != nil {
		s.countPoll("error")
		return nil, fmt.Errorf("failed to list pending tasks: %w", err)
	}

	for _, candidate := range candidates {
		// Capability mismatches are cheap to reject before fetching
		// dependency statuses.
		if !domain.HasCapabilities(capabilities, candidate.RequiredCapabilities) {
			continue
		}

		var depStatuses map[uuid.UUID]domain.TaskStatus
		if len(candidate.Dependencies) > 0 {
			depStatuses, err = s.tasks.GetStatuses(ctx, candidate.Dependencies)
			if err != nil {
				s.countPoll("error")
				return nil, fmt.Errorf("failed to fetch dependency statuses: %w", err)
			}
		}

		if !IsEligible(candidate, capabilities, depStatuses) {
			continue
		}

		task, err := s.tasks.Claim(ctx, candidate.ID, agentID, time.Now().UTC())
		if errors.Is(err, store.ErrAlreadyClaimed) || errors.Is(err, store.ErrTaskNotFound) {
			// Lost the race to a concurrent poller; keep scanning.
			continue
		}
		if err != nil {
			s.countPoll("error")
			return nil, fmt.Errorf("failed to claim task: %w", err)
		}

		log.Info("task assigned",
			slog.String("task_id", task.ID.String()),
			slog.String("agent_id", agentID.String()),
			slog.Int("priority", task.Priority))
		s.countPoll("assigned")
		return task, nil
	}

	log.Debug("no eligible task for agent",
		slog.String("agent_id", agentID.String()),
		slog.Int("candidates_scanned", len(candidates)))
	s.countPoll("no_task")
	return nil, ErrNoTaskAvailable
}

// Complete applies the assigned/in_progress -> completed transition for the
// owning agent and synchronously notifies the completion observer.
//
// Returns store.ErrTaskNotFound for unknown tasks, domain.ErrNotAssigned on
// an ownership mismatch, and domain.ErrInvalidState when the task is not in
// a terminable status.
func (s *Service) Complete(ctx context.Context, taskID, agentID uuid.UUID, output json.RawMessage) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if err := checkOwnedTransition(task, agentID); err != nil {
		return nil, err
	}

	updated, err := s.tasks.Complete(ctx, taskID, output, time.Now().UTC())
	if errors.Is(err, store.ErrUpdateFailed) {
		// The task left the permitted statuses between check and write.
		return nil, fmt.Errorf("%w: task %s is no longer terminable", domain.ErrInvalidState, taskID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to complete task: %w", err)
	}

	log.Info("task completed",
		slog.String("task_id", taskID.String()),
		slog.String("agent_id", agentID.String()))
	if s.metrics != nil {
		s.metrics.TasksTerminatedTotal.WithLabelValues(string(domain.TaskStatusCompleted)).Inc()
	}

	// Cascade observation is best-effort and must never fail the completion.
	if s.observer != nil {
		s.observer.TaskCompleted(ctx, updated)
	}

	return updated, nil
}

// Fail applies the assigned/in_progress -> failed transition for the owning
// agent. Failed tasks are terminal; retry is a new task created upstream.
func (s *Service) Fail(ctx context.Context, taskID, agentID uuid.UUID, errorMessage string) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if err := checkOwnedTransition(task, agentID); err != nil {
		return nil, err
	}

	updated, err := s.tasks.Fail(ctx, taskID, errorMessage, time.Now().UTC())
	if errors.Is(err, store.ErrUpdateFailed) {
		return nil, fmt.Errorf("%w: task %s is no longer terminable", domain.ErrInvalidState, taskID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fail task: %w", err)
	}

	log.Info("task failed",
		slog.String("task_id", taskID.String()),
		slog.String("agent_id", agentID.String()),
		slog.String("reason", errorMessage))
	if s.metrics != nil {
		s.metrics.TasksTerminatedTotal.WithLabelValues(string(domain.TaskStatusFailed)).Inc()
	}

	return updated, nil
}

// checkOwnedTransition enforces the ownership and state preconditions shared
// by Complete and Fail. Ownership is checked before state so an agent that
// never held the task gets NotAssigned, not InvalidState.
func checkOwnedTransition(task *domain.Task, agentID uuid.UUID) error {
	if !task.IsOwnedBy(agentID) {
		return fmt.Errorf("%w: task %s is not assigned to agent %s",
			domain.ErrNotAssigned, task.ID, agentID)
	}

	if !task.CanTerminate() {
		return fmt.Errorf("%w: task %s has status %s",
			domain.ErrInvalidState, task.ID, task.Status)
	}

	return nil
}

func (s *Service) countPoll(outcome string) {
	if s.metrics != nil {
		s.metrics.PollsTotal.WithLabelValues(outcome).Inc()
	}
}

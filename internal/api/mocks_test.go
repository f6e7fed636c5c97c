package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/conductor-hq/conductor/internal/domain"
	"github.com/conductor-hq/conductor/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

// mockTaskStore mirrors the conditional update semantics of the PostgreSQL
// task store, in memory.
type mockTaskStore struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*domain.Task
}

func newMockTaskStore() *mockTaskStore {
	return &mockTaskStore{tasks: make(map[uuid.UUID]*domain.Task)}
}

var _ store.TaskStore = (*mockTaskStore)(nil)

func (m *mockTaskStore) Create(_ context.Context, task *domain.Task) error {
	if err := task.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *task
	m.tasks[task.ID] = &copied
	return nil
}

func (m *mockTaskStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	copied := *task
	return &copied, nil
}

func (m *mockTaskStore) ListPending(_ context.Context, limit int) ([]*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var pending []*domain.Task
	for _, task := range m.tasks {
		if task.Status == domain.TaskStatusPending {
			copied := *task
			pending = append(pending, &copied)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		if pending[i].Priority != pending[j].Priority {
			return pending[i].Priority > pending[j].Priority
		}
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

func (m *mockTaskStore) GetStatuses(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]domain.TaskStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	statuses := make(map[uuid.UUID]domain.TaskStatus, len(ids))
	for _, id := range ids {
		if task, ok := m.tasks[id]; ok {
			statuses[id] = task.Status
		}
	}
	return statuses, nil
}

func (m *mockTaskStore) Claim(_ context.Context, taskID, agentID uuid.UUID, startedAt time.Time) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, ok := m.tasks[taskID]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	if task.Status != domain.TaskStatusPending {
		return nil, store.ErrAlreadyClaimed
	}

	task.Status = domain.TaskStatusAssigned
	agent := agentID
	task.AssignedAgentID = &agent
	started := startedAt
	task.StartedAt = &started
	task.UpdatedAt = startedAt

	copied := *task
	return &copied, nil
}

func (m *mockTaskStore) Complete(_ context.Context, taskID uuid.UUID, output json.RawMessage, completedAt time.Time) (*domain.Task, error) {
	return m.terminate(taskID, domain.TaskStatusCompleted, output, "", completedAt)
}

func (m *mockTaskStore) Fail(_ context.Context, taskID uuid.UUID, errorMessage string, completedAt time.Time) (*domain.Task, error) {
	return m.terminate(taskID, domain.TaskStatusFailed, nil, errorMessage, completedAt)
}

func (m *mockTaskStore) terminate(
	taskID uuid.UUID,
	status domain.TaskStatus,
	output json.RawMessage,
	errorMessage string,
	completedAt time.Time,
) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, ok := m.tasks[taskID]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	if !task.CanTerminate() {
		return nil, store.ErrUpdateFailed
	}

	task.Status = status
	task.OutputData = output
	task.ErrorMessage = errorMessage
	done := completedAt
	task.CompletedAt = &done
	task.UpdatedAt = completedAt

	copied := *task
	return &copied, nil
}

func (m *mockTaskStore) CountByProjectAndStatus(_ context.Context, projectID uuid.UUID, status domain.TaskStatus) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, task := range m.tasks {
		if task.ProjectID == projectID && task.Status == status {
			count++
		}
	}
	return count, nil
}

func (m *mockTaskStore) WithTx(_ *sql.Tx) store.TaskStore {
	return m
}

// mockAgentStore is an in-memory store.AgentStore.
type mockAgentStore struct {
	mu     sync.Mutex
	agents map[uuid.UUID]*domain.Agent
}

func newMockAgentStore() *mockAgentStore {
	return &mockAgentStore{agents: make(map[uuid.UUID]*domain.Agent)}
}

var _ store.AgentStore = (*mockAgentStore)(nil)

func (m *mockAgentStore) Create(_ context.Context, agent *domain.Agent) error {
	if err := agent.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.agents {
		if existing.Name == agent.Name {
			return store.ErrAgentNameExists
		}
	}
	copied := *agent
	m.agents[agent.ID] = &copied
	return nil
}

func (m *mockAgentStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	agent, ok := m.agents[id]
	if !ok {
		return nil, store.ErrAgentNotFound
	}
	copied := *agent
	return &copied, nil
}

func (m *mockAgentStore) UpdateHeartbeat(_ context.Context, id uuid.UUID, status domain.AgentStatus, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	agent, ok := m.agents[id]
	if !ok {
		return store.ErrAgentNotFound
	}
	agent.Status = status
	heartbeat := at
	agent.LastHeartbeatAt = &heartbeat
	agent.UpdatedAt = at
	return nil
}

func (m *mockAgentStore) WithTx(_ *sql.Tx) store.AgentStore {
	return m
}

// mockJobStore is an in-memory store.JobStore.
type mockJobStore struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*domain.BackgroundJob
}

func newMockJobStore() *mockJobStore {
	return &mockJobStore{jobs: make(map[uuid.UUID]*domain.BackgroundJob)}
}

var _ store.JobStore = (*mockJobStore)(nil)

func (m *mockJobStore) Enqueue(_ context.Context, job *domain.BackgroundJob) error {
	if err := job.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *job
	m.jobs[job.ID] = &copied
	return nil
}

func (m *mockJobStore) GetByID(_ context.Context, id uuid.UUID) (*domain.BackgroundJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, store.ErrJobNotFound
	}
	copied := *job
	return &copied, nil
}

func (m *mockJobStore) ListDue(_ context.Context, now time.Time, limit int) ([]*domain.BackgroundJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var due []*domain.BackgroundJob
	for _, job := range m.jobs {
		if job.IsDue(now) {
			copied := *job
			due = append(due, &copied)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		return due[i].ScheduledAt.Before(due[j].ScheduledAt)
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (m *mockJobStore) MarkRunning(_ context.Context, jobID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[jobID]
	if !ok {
		return store.ErrJobNotFound
	}
	if job.Status != domain.JobStatusPending && job.Status != domain.JobStatusRetrying {
		return store.ErrAlreadyClaimed
	}
	job.Status = domain.JobStatusRunning
	return nil
}

func (m *mockJobStore) MarkCompleted(_ context.Context, jobID uuid.UUID, result json.RawMessage, completedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[jobID]
	if !ok {
		return store.ErrJobNotFound
	}
	job.Status = domain.JobStatusCompleted
	job.Result = result
	done := completedAt
	job.CompletedAt = &done
	return nil
}

func (m *mockJobStore) MarkRetrying(_ context.Context, jobID uuid.UUID, attempts int, errorMessage string, nextRetryAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[jobID]
	if !ok {
		return store.ErrJobNotFound
	}
	job.Status = domain.JobStatusRetrying
	job.Attempts = attempts
	job.ErrorMessage = errorMessage
	retry := nextRetryAt
	job.NextRetryAt = &retry
	return nil
}

func (m *mockJobStore) MarkFailed(_ context.Context, jobID uuid.UUID, attempts int, errorMessage string, completedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[jobID]
	if !ok {
		return store.ErrJobNotFound
	}
	job.Status = domain.JobStatusFailed
	job.Attempts = attempts
	job.ErrorMessage = errorMessage
	done := completedAt
	job.CompletedAt = &done
	return nil
}

func (m *mockJobStore) WithTx(_ *sql.Tx) store.JobStore {
	return m
}

package assignment

import (
	"context"
	"database/sql"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/conductor-hq/conductor/internal/domain"
	"github.com/conductor-hq/conductor/internal/store"
)

// mockTaskStore is an in-memory store.TaskStore with the same conditional
// update semantics as the PostgreSQL implementation. Individual methods can
// be overridden via the Fn fields.
type mockTaskStore struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*domain.Task

	ListPendingFn func(ctx context.Context, limit int) ([]*domain.Task, error)
	ClaimFn       func(ctx context.Context, taskID, agentID uuid.UUID, startedAt time.Time) (*domain.Task, error)
}

func newMockTaskStore() *mockTaskStore {
	return &mockTaskStore{tasks: make(map[uuid.UUID]*domain.Task)}
}

var _ store.TaskStore = (*mockTaskStore)(nil)

func (m *mockTaskStore) add(task *domain.Task) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *task
	m.tasks[task.ID] = &copied
}

func (m *mockTaskStore) Create(_ context.Context, task *domain.Task) error {
	if err := task.Validate(); err != nil {
		return err
	}
	m.add(task)
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

func (m *mockTaskStore) ListPending(ctx context.Context, limit int) ([]*domain.Task, error) {
	if m.ListPendingFn != nil {
		return m.ListPendingFn(ctx, limit)
	}

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

func (m *mockTaskStore) Claim(ctx context.Context, taskID, agentID uuid.UUID, startedAt time.Time) (*domain.Task, error) {
	if m.ClaimFn != nil {
		return m.ClaimFn(ctx, taskID, agentID, startedAt)
	}
	return m.claim(taskID, agentID, startedAt)
}

// claim is the default conditional claim, callable from ClaimFn overrides.
func (m *mockTaskStore) claim(taskID, agentID uuid.UUID, startedAt time.Time) (*domain.Task, error) {
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

// recordingObserver records completed tasks passed to the observer.
type recordingObserver struct {
	mu    sync.Mutex
	tasks []*domain.Task
}

func (o *recordingObserver) TaskCompleted(_ context.Context, task *domain.Task) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.tasks = append(o.tasks, task)
}

func (o *recordingObserver) completed() []*domain.Task {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]*domain.Task(nil), o.tasks...)
}

package jobs

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
	"github.com/conductor-hq/conductor/internal/events"
	"github.com/conductor-hq/conductor/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

// mockJobStore is an in-memory store.JobStore with the same conditional
// claim semantics as the PostgreSQL implementation. Individual methods can
// be overridden via the Fn fields.
type mockJobStore struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*domain.BackgroundJob

	ListDueFn     func(ctx context.Context, now time.Time, limit int) ([]*domain.BackgroundJob, error)
	MarkRunningFn func(ctx context.Context, jobID uuid.UUID) error
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

func (m *mockJobStore) ListDue(ctx context.Context, now time.Time, limit int) ([]*domain.BackgroundJob, error) {
	if m.ListDueFn != nil {
		return m.ListDueFn(ctx, now, limit)
	}

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

func (m *mockJobStore) MarkRunning(ctx context.Context, jobID uuid.UUID) error {
	if m.MarkRunningFn != nil {
		return m.MarkRunningFn(ctx, jobID)
	}
	return m.markRunning(jobID)
}

// markRunning is the default conditional claim, callable from
// MarkRunningFn overrides.
func (m *mockJobStore) markRunning(jobID uuid.UUID) error {
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
	job.UpdatedAt = time.Now().UTC()
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
	job.UpdatedAt = completedAt
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
	job.UpdatedAt = time.Now().UTC()
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
	job.UpdatedAt = completedAt
	return nil
}

func (m *mockJobStore) WithTx(_ *sql.Tx) store.JobStore {
	return m
}

// mockSuggestionStore is an in-memory store.SuggestionStore.
type mockSuggestionStore struct {
	mu          sync.Mutex
	suggestions map[uuid.UUID]*domain.Suggestion

	CountFn func(ctx context.Context, projectID uuid.UUID, status domain.SuggestionStatus) (int, error)
}

func newMockSuggestionStore() *mockSuggestionStore {
	return &mockSuggestionStore{suggestions: make(map[uuid.UUID]*domain.Suggestion)}
}

var _ store.SuggestionStore = (*mockSuggestionStore)(nil)

func (m *mockSuggestionStore) CreateBatch(_ context.Context, suggestions []*domain.Suggestion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, suggestion := range suggestions {
		if err := suggestion.Validate(); err != nil {
			return err
		}
	}
	for _, suggestion := range suggestions {
		copied := *suggestion
		m.suggestions[suggestion.ID] = &copied
	}
	return nil
}

func (m *mockSuggestionStore) ListByProjectAndStatus(
	_ context.Context,
	projectID uuid.UUID,
	status domain.SuggestionStatus,
	limit int,
) ([]*domain.Suggestion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []*domain.Suggestion
	for _, suggestion := range m.suggestions {
		if suggestion.ProjectID == projectID && suggestion.Status == status {
			copied := *suggestion
			matched = append(matched, &copied)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (m *mockSuggestionStore) CountByProjectAndStatus(
	ctx context.Context,
	projectID uuid.UUID,
	status domain.SuggestionStatus,
) (int, error) {
	if m.CountFn != nil {
		return m.CountFn(ctx, projectID, status)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, suggestion := range m.suggestions {
		if suggestion.ProjectID == projectID && suggestion.Status == status {
			count++
		}
	}
	return count, nil
}

func (m *mockSuggestionStore) UpdateStatus(_ context.Context, id uuid.UUID, status domain.SuggestionStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	suggestion, ok := m.suggestions[id]
	if !ok {
		return store.ErrSuggestionNotFound
	}
	suggestion.Status = status
	suggestion.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *mockSuggestionStore) WithTx(_ *sql.Tx) store.SuggestionStore {
	return m
}

// mockTaskStore implements only the TaskStore methods the jobs package
// exercises; the rest return zero values.
type mockTaskStore struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*domain.Task

	CountFn func(ctx context.Context, projectID uuid.UUID, status domain.TaskStatus) (int, error)
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

func (m *mockTaskStore) ListPending(_ context.Context, _ int) ([]*domain.Task, error) {
	return nil, nil
}

func (m *mockTaskStore) GetStatuses(_ context.Context, _ []uuid.UUID) (map[uuid.UUID]domain.TaskStatus, error) {
	return nil, nil
}

func (m *mockTaskStore) Claim(_ context.Context, _, _ uuid.UUID, _ time.Time) (*domain.Task, error) {
	return nil, store.ErrTaskNotFound
}

func (m *mockTaskStore) Complete(_ context.Context, _ uuid.UUID, _ json.RawMessage, _ time.Time) (*domain.Task, error) {
	return nil, store.ErrTaskNotFound
}

func (m *mockTaskStore) Fail(_ context.Context, _ uuid.UUID, _ string, _ time.Time) (*domain.Task, error) {
	return nil, store.ErrTaskNotFound
}

func (m *mockTaskStore) CountByProjectAndStatus(ctx context.Context, projectID uuid.UUID, status domain.TaskStatus) (int, error) {
	if m.CountFn != nil {
		return m.CountFn(ctx, projectID, status)
	}

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

// stubAnalyzer returns canned responses.
type stubAnalyzer struct {
	AnalyzeFn func(ctx context.Context, task *domain.Task) ([]string, error)
	DetectFn  func(ctx context.Context, projectID uuid.UUID) ([]string, error)
	ReviewFn  func(ctx context.Context, suggestions []*domain.Suggestion) (map[uuid.UUID]domain.SuggestionStatus, error)
}

var _ Analyzer = (*stubAnalyzer)(nil)

func (s *stubAnalyzer) AnalyzeCompletedTask(ctx context.Context, task *domain.Task) ([]string, error) {
	if s.AnalyzeFn != nil {
		return s.AnalyzeFn(ctx, task)
	}
	return nil, nil
}

func (s *stubAnalyzer) DetectPatterns(ctx context.Context, projectID uuid.UUID) ([]string, error) {
	if s.DetectFn != nil {
		return s.DetectFn(ctx, projectID)
	}
	return nil, nil
}

func (s *stubAnalyzer) ReviewSuggestions(ctx context.Context, suggestions []*domain.Suggestion) (map[uuid.UUID]domain.SuggestionStatus, error) {
	if s.ReviewFn != nil {
		return s.ReviewFn(ctx, suggestions)
	}
	return nil, nil
}

// capturingEmitter records emitted events instead of dispatching them.
type capturingEmitter struct {
	mu      sync.Mutex
	events  []*events.JobRequestEvent
	EmitErr error
}

var _ events.EventEmitter = (*capturingEmitter)(nil)

func (c *capturingEmitter) EmitEvent(_ context.Context, event *events.JobRequestEvent) error {
	if c.EmitErr != nil {
		return c.EmitErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

func (c *capturingEmitter) emitted() []*events.JobRequestEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*events.JobRequestEvent(nil), c.events...)
}

func (c *capturingEmitter) emittedTypes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	types := make([]string, 0, len(c.events))
	for _, event := range c.events {
		types = append(types, event.Type)
	}
	return types
}

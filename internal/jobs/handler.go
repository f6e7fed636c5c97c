package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Handler executes one background job type. The payload is passed verbatim
// from the job row; the returned result is stored on the job on success.
// A returned error marks the attempt as failed and drives the retry logic.
type Handler interface {
	Execute(ctx context.Context, payload json.RawMessage) (json.RawMessage, error)
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, payload json.RawMessage) (json.RawMessage, error)

// Execute implements Handler.
func (f HandlerFunc) Execute(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	return f(ctx, payload)
}

// Registry maps job type tags to their handlers. Registration happens at
// startup; lookups are safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty handler registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register binds a handler to a job type. Registering the same type twice
// replaces the previous handler.
func (r *Registry) Register(jobType string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[jobType] = handler
}

// Get returns the handler for the given job type, or an error if no handler
// is registered. An unknown type is a handler failure, not a silent no-op:
// it counts toward the job's attempts.
func (r *Registry) Get(jobType string) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handler, ok := r.handlers[jobType]
	if !ok {
		return nil, fmt.Errorf("no handler registered for job type %q", jobType)
	}
	return handler, nil
}

// Types returns the registered job types, sorted for stable logging.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.handlers))
	for jobType := range r.handlers {
		types = append(types, jobType)
	}
	sort.Strings(types)
	return types
}

// AnalyzeTaskPayload is the payload schema for analyze-completed-task jobs.
type AnalyzeTaskPayload struct {
	TaskID uuid.UUID `json:"task_id"`
}

// ProjectPayload is the payload schema for detect-patterns and
// review-suggestions jobs.
type ProjectPayload struct {
	ProjectID uuid.UUID `json:"project_id"`
}

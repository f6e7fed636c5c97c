package assignment

import (
	"github.com/google/uuid"

	"github.com/conductor-hq/conductor/internal/domain"
)

// IsEligible decides whether a task is assignable to a worker given the
// worker's capabilities and a snapshot of dependency statuses.
//
// A task is eligible when it is still pending, its required capabilities
// are a subset of the agent's (an empty requirement matches any worker),
// and every dependency has reached completed. A dependency missing from
// the snapshot counts as not completed.
//
// The function is pure and safe to call against a stale snapshot; callers
// re-validate atomically at claim time.
func IsEligible(
	task *domain.Task,
	agentCapabilities []string,
	dependencyStatuses map[uuid.UUID]domain.TaskStatus,
) bool {
	if task.Status != domain.TaskStatusPending {
		return false
	}

	if !domain.HasCapabilities(agentCapabilities, task.RequiredCapabilities) {
		return false
	}

	for _, dep := range task.Dependencies {
		if dependencyStatuses[dep] != domain.TaskStatusCompleted {
			return false
		}
	}

	return true
}

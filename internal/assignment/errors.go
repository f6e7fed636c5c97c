package assignment

import "errors"

// Common error types for the assignment service.
var (
	// ErrNoTaskAvailable indicates that no pending task is eligible for the
	// polling agent. This is an explicit "no task" result, distinct from an
	// error; callers are expected to poll again later.
	ErrNoTaskAvailable = errors.New("no eligible task available")
)

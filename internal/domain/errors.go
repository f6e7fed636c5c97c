package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidID is returned when an ID is malformed or invalid.
	ErrInvalidID = errors.New("invalid ID")

	// ErrNotAssigned is returned when an agent attempts to complete or fail
	// a task it does not own.
	ErrNotAssigned = errors.New("task not assigned to agent")

	// ErrInvalidState is returned when a state transition is attempted from
	// a status that does not permit it.
	ErrInvalidState = errors.New("invalid state for transition")

	// ErrInvalidTaskStatus is returned when a task status is not valid.
	ErrInvalidTaskStatus = errors.New("invalid task status")

	// ErrInvalidJobStatus is returned when a background job status is not valid.
	ErrInvalidJobStatus = errors.New("invalid job status")

	// ErrInvalidAgentStatus is returned when an agent status is not valid.
	ErrInvalidAgentStatus = errors.New("invalid agent status")
)

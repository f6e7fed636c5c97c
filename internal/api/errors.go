package api

import (
	"errors"
	"net/http"

	"github.com/conductor-hq/conductor/internal/assignment"
	"github.com/conductor-hq/conductor/internal/auth"
	"github.com/conductor-hq/conductor/internal/domain"
	"github.com/conductor-hq/conductor/internal/store"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	// Authentication errors
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrMissingToken),
		errors.Is(err, auth.ErrInvalidAPIKey):
		return http.StatusUnauthorized

	// Authorization errors
	case errors.Is(err, domain.ErrNotAssigned):
		return http.StatusForbidden

	// Not found errors (covers the entity-specific variants)
	case store.IsNotFoundError(err):
		return http.StatusNotFound

	// Conflict errors
	case errors.Is(err, domain.ErrInvalidState),
		errors.Is(err, store.ErrAlreadyClaimed),
		store.IsDuplicateError(err):
		return http.StatusConflict

	// Bad request errors
	case errors.Is(err, store.ErrInvalidEntity):
		return http.StatusBadRequest

	// Special cases
	case errors.Is(err, assignment.ErrNoTaskAvailable):
		return http.StatusNoContent

	// Default: internal server error
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. This prevents leaking sensitive internal details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	// Authentication errors
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrMissingToken):
		return "Invalid token"

	case errors.Is(err, auth.ErrInvalidAPIKey):
		return "Invalid API key"

	// Authorization errors
	case errors.Is(err, domain.ErrNotAssigned):
		return "Task is not assigned to this agent"

	// Not found errors
	case errors.Is(err, store.ErrTaskNotFound):
		return "Task not found"

	case errors.Is(err, store.ErrJobNotFound):
		return "Job not found"

	case errors.Is(err, store.ErrAgentNotFound):
		return "Agent not found"

	case errors.Is(err, store.ErrSuggestionNotFound):
		return "Suggestion not found"

	// Conflict errors
	case errors.Is(err, domain.ErrInvalidState):
		return "Task is not in a state that allows this transition"

	case errors.Is(err, store.ErrAlreadyClaimed):
		return "Already claimed"

	case errors.Is(err, store.ErrAgentNameExists):
		return "Agent name already registered"

	// Bad request errors
	case errors.Is(err, store.ErrInvalidEntity):
		return "Invalid entity data"

	// Default case for unknown errors
	default:
		return "An unexpected error occurred"
	}
}

// Package logger provides structured logging functionality for the application,
// including slog setup from configuration and context propagation helpers.
package logger

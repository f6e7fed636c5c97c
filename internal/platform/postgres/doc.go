// Package postgres provides PostgreSQL-backed implementations of the
// store interfaces. All state transitions are single-row conditional
// updates; the affected-row count tells callers whether they won the race.
package postgres

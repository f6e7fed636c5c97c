// Package store defines the persistence interfaces consumed by the
// assignment and job services, along with shared store errors and
// transaction helpers. Implementations live in platform-specific packages.
package store

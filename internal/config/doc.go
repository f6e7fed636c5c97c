// Package config defines the application configuration structure and
// loading logic. Configuration is read from environment variables with the
// CONDUCTOR_ prefix and an optional config file, then validated.
package config

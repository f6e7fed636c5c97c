package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load reads configuration from environment variables and an optional
// config file. Environment variables take precedence over values from the
// config file. Returns a populated Config struct or an error if
// loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()

	// Defaults keep a development instance runnable with only the database
	// URL and JWT secret supplied.
	v.SetDefault("server.port", 8080)
	// Empty defaults register the keys so AutomaticEnv can populate them
	// during Unmarshal.
	v.SetDefault("database.url", "")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("llm.gemini_api_key", "")
	v.SetDefault("server.log_level", "info")
	v.SetDefault("database.auto_migrate", false)
	v.SetDefault("auth.token_lifetime", 60)
	v.SetDefault("auth.bcrypt_cost", 10)
	v.SetDefault("jobs.batch_limit", 10)
	v.SetDefault("jobs.schedule", "@every 1m")
	v.SetDefault("jobs.poll_scan_limit", 50)
	v.SetDefault("llm.model_name", "gemini-2.0-flash")

	// Optional config file: ./config.yaml or /etc/conductor/config.yaml.
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/conductor")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No config file is fine; environment variables may carry everything.
	}

	// Environment variables with the CONDUCTOR_ prefix override file values,
	// e.g. CONDUCTOR_DATABASE_URL maps to database.url.
	v.SetEnvPrefix("CONDUCTOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

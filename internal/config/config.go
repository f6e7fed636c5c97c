package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Auth     AuthConfig     `mapstructure:"auth"     validate:"required"`
	Jobs     JobsConfig     `mapstructure:"jobs"     validate:"required"`
	LLM      LLMConfig      `mapstructure:"llm"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required"`
	// AutoMigrate runs embedded goose migrations on startup when true.
	AutoMigrate bool `mapstructure:"auto_migrate"`
}

// AuthConfig contains all authentication-related settings for agent tokens.
type AuthConfig struct {
	JWTSecret      string `mapstructure:"jwt_secret"       validate:"required,min=32"`
	TokenLifetime  int    `mapstructure:"token_lifetime"   validate:"required,gt=0"` // minutes
	BcryptCost     int    `mapstructure:"bcrypt_cost"      validate:"gte=0,lte=31"`
}

// JobsConfig contains settings for the background job runner.
type JobsConfig struct {
	// BatchLimit caps how many due jobs one runner invocation processes.
	BatchLimit int `mapstructure:"batch_limit" validate:"required,gt=0"`
	// Schedule is the cron expression on which due jobs are processed.
	Schedule string `mapstructure:"schedule" validate:"required"`
	// PollScanLimit caps how many pending tasks one poll request scans.
	PollScanLimit int `mapstructure:"poll_scan_limit" validate:"required,gt=0"`
}

// LLMConfig contains all LLM integration related settings.
// Optional: when the API key is empty the server runs without analysis
// handlers wired to a live model (tests use stubs).
type LLMConfig struct {
	GeminiAPIKey string `mapstructure:"gemini_api_key"`
	ModelName    string `mapstructure:"model_name"`
}

package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth" validate:"required"`
	LLM      LLMConfig      `mapstructure:"llm" validate:"required"`
	Worker   WorkerConfig   `mapstructure:"worker" validate:"required"`
	Chunking ChunkingConfig `mapstructure:"chunking" validate:"required"`
	Storage  StorageConfig  `mapstructure:"storage"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel        string        `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	LogFormat       string        `mapstructure:"log_format" validate:"required,oneof=json text"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// DatabaseConfig contains all database-related configuration settings.
// An empty URL selects the in-memory job store.
type DatabaseConfig struct {
	URL             string        `mapstructure:"url" validate:"omitempty,url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"gte=1"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// AuthConfig contains all authentication and authorization settings.
type AuthConfig struct {
	JWTSecret            string `mapstructure:"jwt_secret" validate:"required,min=32"`
	TokenLifetimeMinutes int    `mapstructure:"token_lifetime_minutes" validate:"gt=0"`
}

// LLMConfig selects the text-generation provider and carries its credentials.
// Only the key of the selected provider is required.
type LLMConfig struct {
	Provider           string `mapstructure:"provider" validate:"required,oneof=gemini openai anthropic"`
	Model              string `mapstructure:"model"`
	BaseURL            string `mapstructure:"base_url" validate:"omitempty,url"`
	GeminiAPIKey       string `mapstructure:"gemini_api_key" validate:"required_if=Provider gemini"`
	OpenAIAPIKey       string `mapstructure:"openai_api_key" validate:"required_if=Provider openai"`
	AnthropicAPIKey    string `mapstructure:"anthropic_api_key" validate:"required_if=Provider anthropic"`
	TranscriptionModel string `mapstructure:"transcription_model"`
}

// WorkerConfig controls the job worker pool, the external call limits and
// the stale job reaper.
type WorkerConfig struct {
	ID                string        `mapstructure:"id"`
	Embedded          bool          `mapstructure:"embedded"`
	PollInterval      time.Duration `mapstructure:"poll_interval" validate:"gt=0"`
	Concurrency       int           `mapstructure:"concurrency" validate:"gte=1,lte=64"`
	MaxInFlightCalls  int           `mapstructure:"max_in_flight_calls" validate:"gte=1"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" validate:"gte=0"`
	CallTimeout       time.Duration `mapstructure:"call_timeout" validate:"gt=0"`
	RetryBaseDelay    time.Duration `mapstructure:"retry_base_delay" validate:"gte=0"`
	RetryJitter       float64       `mapstructure:"retry_jitter" validate:"gte=0,lte=1"`
	MaxRetries        int           `mapstructure:"max_retries" validate:"gte=0"`
	StuckJobAge       time.Duration `mapstructure:"stuck_job_age" validate:"gt=0"`
	ExtractTimeout    time.Duration `mapstructure:"extract_timeout" validate:"gt=0"`
	ReaperSchedule    string        `mapstructure:"reaper_schedule" validate:"required"`
}

// ChunkingConfig controls how source text is split before generation.
type ChunkingConfig struct {
	MaxWords int `mapstructure:"max_words" validate:"gte=50,lte=5000"`
}

// StorageConfig locates uploaded files referenced by file and video jobs.
type StorageConfig struct {
	Root string `mapstructure:"root"`
}

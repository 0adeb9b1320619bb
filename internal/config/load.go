package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// defaults lists every configuration key with its default value. Registering
// every key lets viper resolve SCRY_* environment variables during Unmarshal.
var defaults = map[string]any{
	"server.port":             8080,
	"server.log_level":        "info",
	"server.log_format":       "json",
	"server.shutdown_timeout": "15s",

	"database.url":               "",
	"database.max_open_conns":    25,
	"database.max_idle_conns":    25,
	"database.conn_max_lifetime": "5m",

	"auth.jwt_secret":             "",
	"auth.token_lifetime_minutes": 60,

	"llm.provider":            "gemini",
	"llm.model":               "",
	"llm.base_url":            "",
	"llm.gemini_api_key":      "",
	"llm.openai_api_key":      "",
	"llm.anthropic_api_key":   "",
	"llm.transcription_model": "whisper-1",

	"worker.id":                  "",
	"worker.embedded":            true,
	"worker.poll_interval":       "5s",
	"worker.concurrency":         3,
	"worker.max_in_flight_calls": 8,
	"worker.requests_per_second": 0,
	"worker.call_timeout":        "60s",
	"worker.retry_base_delay":    "1s",
	"worker.retry_jitter":        0,
	"worker.max_retries":         3,
	"worker.stuck_job_age":       "10m",
	"worker.extract_timeout":     "5m",
	"worker.reaper_schedule":     "@every 1m",

	"chunking.max_words": 800,

	"storage.root": "./data/uploads",
}

// Load configuration from environment variables and optionally config files.
// A .env file in the working directory is applied first without overriding
// variables that are already set. Environment variables take precedence over
// values from config.yaml. Returns a populated Config struct or an error if
// loading or validation fails.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("SCRY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks struct tags and the cross-field rules the tags cannot
// express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("config validation failed: max_idle_conns (%d) exceeds max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}
	if c.Worker.CallTimeout >= c.Worker.StuckJobAge {
		return fmt.Errorf("config validation failed: worker.call_timeout (%s) must be shorter than worker.stuck_job_age (%s)",
			c.Worker.CallTimeout, c.Worker.StuckJobAge)
	}
	return nil
}

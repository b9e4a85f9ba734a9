package config

import (
	"time"
)

// Config represents the complete configuration for the castnote CLI.
// It provides type-safe access to all configuration values with validation.
type Config struct {
	API     APIConfig     `koanf:"api"     validate:"required"`
	Stream  StreamConfig  `koanf:"stream"  validate:"required"`
	Ledger  LedgerConfig  `koanf:"ledger"  validate:"required"`
	Batch   BatchConfig   `koanf:"batch"`
	Poll    PollConfig    `koanf:"poll"`
	Spikes  SpikesConfig  `koanf:"spikes"`
	Runtime RuntimeConfig `koanf:"runtime"`
}

// APIConfig contains remote API connection configuration.
type APIConfig struct {
	BaseURL string          `koanf:"base_url" validate:"required,url" env:"API_BASE_URL"`
	Token   SensitiveString `koanf:"token"                            env:"API_TOKEN"    sensitive:"true"`
	Timeout time.Duration   `koanf:"timeout"                          env:"API_TIMEOUT"`
}

// StreamConfig controls the event-stream session behavior.
type StreamConfig struct {
	Enabled     bool          `koanf:"enabled"      env:"STREAM_ENABLED"`
	IdleTimeout time.Duration `koanf:"idle_timeout" env:"STREAM_IDLE_TIMEOUT" validate:"min=1s"`
}

// LedgerConfig controls where job records are persisted.
type LedgerConfig struct {
	Dir string `koanf:"dir" env:"LEDGER_DIR" validate:"required"`
}

// BatchConfig controls the batch submission worker pool.
type BatchConfig struct {
	Concurrency int `koanf:"concurrency" env:"BATCH_CONCURRENCY" validate:"min=1"`
}

// PollConfig controls transcript-readiness polling.
type PollConfig struct {
	Interval    time.Duration `koanf:"interval"     env:"POLL_INTERVAL"     validate:"min=100ms"`
	MaxAttempts int           `koanf:"max_attempts" env:"POLL_MAX_ATTEMPTS" validate:"min=1"`
}

// SpikesConfig selects which content artifacts are generated per job.
type SpikesConfig struct {
	Kinds    []string `koanf:"kinds"    env:"SPIKES_KINDS"    validate:"min=1,dive,required"`
	Language string   `koanf:"language" env:"SPIKES_LANGUAGE" validate:"required"`
}

// RuntimeConfig contains runtime behavior configuration.
type RuntimeConfig struct {
	Environment string `koanf:"environment" validate:"oneof=development staging production" env:"RUNTIME_ENVIRONMENT"`
	LogLevel    string `koanf:"log_level"   validate:"oneof=debug info warn error"          env:"RUNTIME_LOG_LEVEL"`
}

// Default returns a Config with default values for development.
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: "https://api.castnote.dev/v1",
			Timeout: 30 * time.Second,
		},
		Stream: StreamConfig{
			Enabled:     true,
			IdleTimeout: 30 * time.Second,
		},
		Ledger: LedgerConfig{
			Dir: defaultLedgerDir(),
		},
		Batch: BatchConfig{
			Concurrency: 3,
		},
		Poll: PollConfig{
			Interval:    5 * time.Second,
			MaxAttempts: 120,
		},
		Spikes: SpikesConfig{
			Kinds:    []string{"summary", "show_notes", "chapters"},
			Language: "en",
		},
		Runtime: RuntimeConfig{
			Environment: "development",
			LogLevel:    "info",
		},
	}
}

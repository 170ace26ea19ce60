// Package config defines the top-level configuration for the execution
// service and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by AINEX_* environment variables.
type Config struct {
	Wallet       WalletConfig       `toml:"wallet"`
	Bundler      BundlerConfig      `toml:"bundler"`
	Breaker      BreakerConfig      `toml:"breaker"`
	Recovery     RecoveryConfig     `toml:"recovery"`
	Orchestrator OrchestratorConfig `toml:"orchestrator"`
	Pipeline     PipelineConfig     `toml:"pipeline"`
	Postgres     PostgresConfig     `toml:"postgres"`
	Redis        RedisConfig        `toml:"redis"`
	S3           S3Config           `toml:"s3"`
	Server       ServerConfig       `toml:"server"`
	Notify       NotifyConfig       `toml:"notify"`
	Mode         string             `toml:"mode"`
	LogLevel     string             `toml:"log_level"`
}

// WalletConfig holds the submission wallet credentials.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// BundlerConfig holds the ERC-4337 bundler endpoints and chain parameters.
type BundlerConfig struct {
	RPCURL            string `toml:"rpc_url"`
	AlternativeRPCURL string `toml:"alternative_rpc_url"`
	EntryPoint        string `toml:"entry_point"`
	Paymaster         string `toml:"paymaster"`
	ChainID           int64  `toml:"chain_id"`
}

// BreakerConfig holds the circuit breaker thresholds.
type BreakerConfig struct {
	DailyLossLimitETH      float64  `toml:"daily_loss_limit_eth"`
	MaxConsecutiveFailures int      `toml:"max_consecutive_failures"`
	FailureThresholdPct    float64  `toml:"failure_threshold_pct"`
	RecoveryTimeout        duration `toml:"recovery_timeout"`
	EventCapacity          int      `toml:"event_capacity"`
}

// RecoveryConfig holds the retry engine parameters.
type RecoveryConfig struct {
	MaxRetries  int      `toml:"max_retries"`
	BackoffBase float64  `toml:"backoff_base"`
	BackoffMax  duration `toml:"backoff_max"`
}

// OrchestratorConfig holds execution timing parameters.
type OrchestratorConfig struct {
	ConfirmationTimeout duration `toml:"confirmation_timeout"`
	PollInterval        duration `toml:"poll_interval"`
	MaxRetries          int      `toml:"max_retries"`
}

// PipelineConfig holds the plan consumer and archival parameters.
type PipelineConfig struct {
	Concurrency          int    `toml:"concurrency"`
	ArchiveRetentionDays int    `toml:"archive_retention_days"`
	ArchiveCron          string `toml:"archive_cron"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled         bool     `toml:"enabled"`
	Port            int      `toml:"port"`
	CORSOrigins     []string `toml:"cors_origins"`
	APIKey          string   `toml:"api_key"`
	RateLimit       int      `toml:"rate_limit"`
	RateLimitWindow duration `toml:"rate_limit_window"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Bundler: BundlerConfig{
			RPCURL:     "http://localhost:4337",
			EntryPoint: "0x0000000071727De22E5E9d8BAf0edAc6f37da032",
			ChainID:    1,
		},
		Breaker: BreakerConfig{
			DailyLossLimitETH:      1.0,
			MaxConsecutiveFailures: 5,
			FailureThresholdPct:    10.0,
			RecoveryTimeout:        duration{5 * time.Minute},
			EventCapacity:          1000,
		},
		Recovery: RecoveryConfig{
			MaxRetries:  5,
			BackoffBase: 2.0,
			BackoffMax:  duration{2 * time.Minute},
		},
		Orchestrator: OrchestratorConfig{
			ConfirmationTimeout: duration{5 * time.Minute},
			PollInterval:        duration{2 * time.Second},
			MaxRetries:          3,
		},
		Pipeline: PipelineConfig{
			Concurrency:          6,
			ArchiveRetentionDays: 90,
			ArchiveCron:          "0 3 1 * *",
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "postgres",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "ainex-data",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Server: ServerConfig{
			Enabled:         true,
			Port:            8000,
			CORSOrigins:     []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:       0,
			RateLimitWindow: duration{time.Second},
		},
		Notify: NotifyConfig{
			Events: []string{"circuit_tripped", "circuit_recovered", "manual_review"},
		},
		Mode:     "execute",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"execute": true,
	"monitor": true,
	"server":  true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Mode
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: execute, monitor, server)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Wallet - a key source is mandatory in execute mode.
	if strings.ToLower(c.Mode) == "execute" {
		if c.Wallet.PrivateKey == "" && c.Wallet.EncryptedKeyPath == "" {
			errs = append(errs, "wallet: either private_key or encrypted_key_path must be set for mode "+c.Mode)
		}
		if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
			errs = append(errs, "wallet: key_password is required when encrypted_key_path is set")
		}
	}

	// Bundler
	if c.Bundler.RPCURL == "" {
		errs = append(errs, "bundler: rpc_url must not be empty")
	}
	if c.Bundler.EntryPoint == "" {
		errs = append(errs, "bundler: entry_point must not be empty")
	}
	if c.Bundler.ChainID <= 0 {
		errs = append(errs, "bundler: chain_id must be positive")
	}

	// Breaker
	if c.Breaker.DailyLossLimitETH <= 0 {
		errs = append(errs, "breaker: daily_loss_limit_eth must be > 0")
	}
	if c.Breaker.MaxConsecutiveFailures < 1 {
		errs = append(errs, "breaker: max_consecutive_failures must be >= 1")
	}
	if c.Breaker.RecoveryTimeout.Duration <= 0 {
		errs = append(errs, "breaker: recovery_timeout must be > 0")
	}
	if c.Breaker.EventCapacity < 1 {
		errs = append(errs, "breaker: event_capacity must be >= 1")
	}

	// Recovery
	if c.Recovery.MaxRetries < 0 {
		errs = append(errs, "recovery: max_retries must be >= 0")
	}
	if c.Recovery.BackoffBase <= 1 {
		errs = append(errs, "recovery: backoff_base must be > 1")
	}
	if c.Recovery.BackoffMax.Duration <= 0 {
		errs = append(errs, "recovery: backoff_max must be > 0")
	}

	// Orchestrator
	if c.Orchestrator.ConfirmationTimeout.Duration <= 0 {
		errs = append(errs, "orchestrator: confirmation_timeout must be > 0")
	}
	if c.Orchestrator.PollInterval.Duration <= 0 {
		errs = append(errs, "orchestrator: poll_interval must be > 0")
	}

	// Pipeline
	if c.Pipeline.Concurrency < 1 {
		errs = append(errs, "pipeline: concurrency must be >= 1")
	}
	if c.Pipeline.ArchiveRetentionDays < 1 {
		errs = append(errs, "pipeline: archive_retention_days must be >= 1")
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3
	if c.S3.Endpoint == "" {
		errs = append(errs, "s3: endpoint must not be empty")
	}
	if c.S3.Bucket == "" {
		errs = append(errs, "s3: bucket must not be empty")
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

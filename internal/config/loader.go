package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies AINEX_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known AINEX_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Wallet ──
	setStr(&cfg.Wallet.PrivateKey, "AINEX_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.EncryptedKeyPath, "AINEX_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "AINEX_WALLET_KEY_PASSWORD")

	// ── Bundler ──
	setStr(&cfg.Bundler.RPCURL, "AINEX_BUNDLER_RPC_URL")
	setStr(&cfg.Bundler.AlternativeRPCURL, "AINEX_BUNDLER_ALTERNATIVE_RPC_URL")
	setStr(&cfg.Bundler.EntryPoint, "AINEX_BUNDLER_ENTRY_POINT")
	setStr(&cfg.Bundler.Paymaster, "AINEX_BUNDLER_PAYMASTER")
	setInt64(&cfg.Bundler.ChainID, "AINEX_BUNDLER_CHAIN_ID")

	// ── Breaker ──
	setFloat64(&cfg.Breaker.DailyLossLimitETH, "AINEX_BREAKER_DAILY_LOSS_LIMIT_ETH")
	setInt(&cfg.Breaker.MaxConsecutiveFailures, "AINEX_BREAKER_MAX_CONSECUTIVE_FAILURES")
	setFloat64(&cfg.Breaker.FailureThresholdPct, "AINEX_BREAKER_FAILURE_THRESHOLD_PCT")
	setDuration(&cfg.Breaker.RecoveryTimeout, "AINEX_BREAKER_RECOVERY_TIMEOUT")
	setInt(&cfg.Breaker.EventCapacity, "AINEX_BREAKER_EVENT_CAPACITY")

	// ── Recovery ──
	setInt(&cfg.Recovery.MaxRetries, "AINEX_RECOVERY_MAX_RETRIES")
	setFloat64(&cfg.Recovery.BackoffBase, "AINEX_RECOVERY_BACKOFF_BASE")
	setDuration(&cfg.Recovery.BackoffMax, "AINEX_RECOVERY_BACKOFF_MAX")

	// ── Orchestrator ──
	setDuration(&cfg.Orchestrator.ConfirmationTimeout, "AINEX_ORCHESTRATOR_CONFIRMATION_TIMEOUT")
	setDuration(&cfg.Orchestrator.PollInterval, "AINEX_ORCHESTRATOR_POLL_INTERVAL")
	setInt(&cfg.Orchestrator.MaxRetries, "AINEX_ORCHESTRATOR_MAX_RETRIES")

	// ── Pipeline ──
	setInt(&cfg.Pipeline.Concurrency, "AINEX_PIPELINE_CONCURRENCY")
	setInt(&cfg.Pipeline.ArchiveRetentionDays, "AINEX_PIPELINE_ARCHIVE_RETENTION_DAYS")
	setStr(&cfg.Pipeline.ArchiveCron, "AINEX_PIPELINE_ARCHIVE_CRON")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "AINEX_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "AINEX_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "AINEX_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "AINEX_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "AINEX_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "AINEX_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "AINEX_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "AINEX_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "AINEX_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "AINEX_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "AINEX_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "AINEX_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "AINEX_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "AINEX_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "AINEX_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "AINEX_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "AINEX_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "AINEX_S3_REGION")
	setStr(&cfg.S3.Bucket, "AINEX_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "AINEX_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "AINEX_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "AINEX_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "AINEX_S3_FORCE_PATH_STYLE")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "AINEX_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "AINEX_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "AINEX_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "AINEX_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "AINEX_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateLimitWindow, "AINEX_SERVER_RATE_LIMIT_WINDOW")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "AINEX_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "AINEX_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "AINEX_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "AINEX_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "AINEX_MODE")
	setStr(&cfg.LogLevel, "AINEX_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	cfg.Wallet.PrivateKey = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

	assert.NoError(t, cfg.Validate())
}

// Non-execute modes run without a wallet.
func TestValidate_WalletOptionalOutsideExecute(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "monitor"
	assert.NoError(t, cfg.Validate())

	cfg.Mode = "server"
	assert.NoError(t, cfg.Validate())
}

func TestValidate_ExecuteRequiresKeySource(t *testing.T) {
	cfg := Defaults()
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "private_key or encrypted_key_path")

	cfg.Wallet.EncryptedKeyPath = "/etc/ainex/key.json"
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "key_password is required")

	cfg.Wallet.KeyPassword = "pw"
	assert.NoError(t, cfg.Validate())
}

// Validate reports every problem, not just the first one.
func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "turbo"
	cfg.Bundler.RPCURL = ""
	cfg.Breaker.DailyLossLimitETH = -1
	cfg.Recovery.BackoffBase = 1.0
	cfg.Redis.Addr = ""

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, `unknown mode "turbo"`)
	assert.Contains(t, msg, "bundler: rpc_url")
	assert.Contains(t, msg, "daily_loss_limit_eth")
	assert.Contains(t, msg, "backoff_base")
	assert.Contains(t, msg, "redis: addr")
}

func TestValidate_DSNSkipsHostFields(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "server"
	cfg.Postgres.DSN = "postgres://user:pw@db:5432/ainex"
	cfg.Postgres.Host = ""
	cfg.Postgres.Port = 0
	cfg.Postgres.Database = ""

	assert.NoError(t, cfg.Validate())
}

func TestDurationUnmarshalText(t *testing.T) {
	var d duration
	require.NoError(t, d.UnmarshalText([]byte("90s")))
	assert.Equal(t, 90*time.Second, d.Duration)

	require.NoError(t, d.UnmarshalText([]byte("5m")))
	assert.Equal(t, 5*time.Minute, d.Duration)

	assert.Error(t, d.UnmarshalText([]byte("soon")))

	text, err := duration{30 * time.Second}.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "30s", string(text))
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode = "monitor"
log_level = "debug"

[breaker]
daily_loss_limit_eth = 0.5
recovery_timeout = "10m"

[bundler]
rpc_url = "http://bundler:4337"
chain_id = 137
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "monitor", cfg.Mode)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 0.5, cfg.Breaker.DailyLossLimitETH)
	assert.Equal(t, 10*time.Minute, cfg.Breaker.RecoveryTimeout.Duration)
	assert.Equal(t, "http://bundler:4337", cfg.Bundler.RPCURL)
	assert.Equal(t, int64(137), cfg.Bundler.ChainID)

	// Unspecified sections keep their defaults.
	assert.Equal(t, 5, cfg.Breaker.MaxConsecutiveFailures)
	assert.Equal(t, "0 3 1 * *", cfg.Pipeline.ArchiveCron)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("AINEX_MODE", "server")
	t.Setenv("AINEX_BREAKER_DAILY_LOSS_LIMIT_ETH", "2.5")
	t.Setenv("AINEX_BREAKER_RECOVERY_TIMEOUT", "90s")
	t.Setenv("AINEX_REDIS_TLS_ENABLED", "true")
	t.Setenv("AINEX_BUNDLER_CHAIN_ID", "8453")
	t.Setenv("AINEX_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg := Defaults()
	applyEnvOverrides(&cfg)

	assert.Equal(t, "server", cfg.Mode)
	assert.Equal(t, 2.5, cfg.Breaker.DailyLossLimitETH)
	assert.Equal(t, 90*time.Second, cfg.Breaker.RecoveryTimeout.Duration)
	assert.True(t, cfg.Redis.TLSEnabled)
	assert.Equal(t, int64(8453), cfg.Bundler.ChainID)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
}

// Malformed numeric env values are ignored rather than zeroing the field.
func TestEnvOverrides_MalformedValuesIgnored(t *testing.T) {
	t.Setenv("AINEX_BREAKER_MAX_CONSECUTIVE_FAILURES", "lots")
	t.Setenv("AINEX_BREAKER_RECOVERY_TIMEOUT", "eventually")

	cfg := Defaults()
	applyEnvOverrides(&cfg)

	assert.Equal(t, 5, cfg.Breaker.MaxConsecutiveFailures)
	assert.Equal(t, 5*time.Minute, cfg.Breaker.RecoveryTimeout.Duration)
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Wallet.PrivateKey = "secret-key"
	cfg.Postgres.Password = "pg-pass"
	cfg.Postgres.DSN = "postgres://user:pw@db/ainex"
	cfg.Redis.Password = "redis-pass"
	cfg.S3.AccessKey = "AKIA"
	cfg.S3.SecretKey = "s3-secret"
	cfg.Server.APIKey = "api-key"
	cfg.Notify.TelegramToken = "tg-token"
	cfg.Notify.DiscordWebhookURL = "https://discord/webhook"

	red := RedactedConfig(&cfg)

	for _, got := range []string{
		red.Wallet.PrivateKey,
		red.Postgres.Password,
		red.Postgres.DSN,
		red.Redis.Password,
		red.S3.AccessKey,
		red.S3.SecretKey,
		red.Server.APIKey,
		red.Notify.TelegramToken,
		red.Notify.DiscordWebhookURL,
	} {
		assert.Equal(t, redacted, got)
	}

	// Empty secrets stay empty so the output shows which are unset.
	assert.Empty(t, red.Wallet.KeyPassword)

	// The original is untouched.
	assert.Equal(t, "secret-key", cfg.Wallet.PrivateKey)

	// Slice mutations on the copy do not leak back.
	red.Notify.Events[0] = "mutated"
	assert.Equal(t, "circuit_tripped", cfg.Notify.Events[0])
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	cfg := Defaults()
	cfg.Account.Token = "a1-token"
	return cfg
}

func TestDefaultsValidateWithToken(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())

	s := cfg.Trading.Settings()
	assert.Equal(t, 0.35, s.ProfitTarget)
	assert.Equal(t, 0.35, s.Stake)
	assert.Equal(t, 75.0, s.MinProbability)
	assert.Equal(t, 3.0, s.VaultThreshold)
	assert.Equal(t, 500*time.Millisecond, cfg.Trading.TickInterval.Duration)
	assert.Equal(t, 2500*time.Millisecond, cfg.Trading.TradeInterval.Duration)
	assert.Equal(t, 3, cfg.Trading.MaxPositions)
}

func TestValidateRequiresTokenForTrading(t *testing.T) {
	cfg := Defaults()
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "either token or encrypted_token_path")

	cfg.Mode = "archive"
	assert.NoError(t, cfg.Validate())
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	cfg := validConfig()
	cfg.Mode = "yolo"
	cfg.Trading.Stake = 0
	cfg.Trading.MaxPositions = 0
	cfg.Redis.Addr = ""

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "config validation failed")
	assert.Contains(t, msg, `unknown mode "yolo"`)
	assert.Contains(t, msg, "trading: profit_target and stake")
	assert.Contains(t, msg, "trading: max_positions")
	assert.Contains(t, msg, "redis: addr")
}

func TestValidateEncryptedTokenNeedsPassword(t *testing.T) {
	cfg := Defaults()
	cfg.Account.EncryptedTokenPath = "/etc/vaultbot/token.enc"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token_password")

	cfg.Account.TokenPassword = "pw"
	assert.NoError(t, cfg.Validate())
}

func TestValidateArchiveCron(t *testing.T) {
	cfg := validConfig()
	cfg.Archive.Enabled = true
	cfg.Archive.Cron = "@daily"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "archive: cron")
}

func TestLoadMergesFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vaultbot.toml")
	body := `
mode = "monitor"

[account]
id = "CR123"
token = "file-token"

[trading]
stake = 1.5
tick_interval = "250ms"

[server]
port = 9090
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	t.Setenv("VAULTBOT_ACCOUNT_TOKEN", "env-token")
	t.Setenv("VAULTBOT_TRADING_VAULT_THRESHOLD", "5")
	t.Setenv("VAULTBOT_TRADING_TRADE_INTERVAL", "1s")
	t.Setenv("VAULTBOT_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "monitor", cfg.Mode)
	assert.Equal(t, "CR123", cfg.Account.ID)
	assert.Equal(t, "env-token", cfg.Account.Token)
	assert.Equal(t, 1.5, cfg.Trading.Stake)
	assert.Equal(t, 0.35, cfg.Trading.ProfitTarget)
	assert.Equal(t, 5.0, cfg.Trading.VaultThreshold)
	assert.Equal(t, 250*time.Millisecond, cfg.Trading.TickInterval.Duration)
	assert.Equal(t, time.Second, cfg.Trading.TradeInterval.Duration)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.NoError(t, cfg.Validate())
}

func TestLoadBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("mode = "), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestRedactedConfig(t *testing.T) {
	cfg := validConfig()
	cfg.Supabase.Password = "pg"
	cfg.Server.APIKey = "key"
	cfg.Notify.TelegramToken = ""

	out := RedactedConfig(&cfg)
	assert.Equal(t, redacted, out.Account.Token)
	assert.Equal(t, redacted, out.Supabase.Password)
	assert.Equal(t, redacted, out.Server.APIKey)
	assert.Empty(t, out.Notify.TelegramToken)

	out.Notify.Events[0] = "changed"
	assert.Equal(t, "vault_sweep", cfg.Notify.Events[0])
	assert.Equal(t, "a1-token", cfg.Account.Token)
}

func TestRedactDSN(t *testing.T) {
	assert.Equal(t, "", redactDSN(""))
	assert.Equal(t, "postgres://bot:%2A%2A%2A@db:5432/vault", redactDSN("postgres://bot:secret@db:5432/vault"))
	assert.Equal(t, "postgres://db:5432/vault", redactDSN("postgres://db:5432/vault"))
	assert.Equal(t, redacted, redactDSN("host=db password=secret"))
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path (skipped when empty), merges it on top of the
// built-in defaults, applies VAULTBOT_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known VAULTBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Deriv ──
	setStr(&cfg.Deriv.WsURL, "VAULTBOT_DERIV_WS_URL")
	setStr(&cfg.Deriv.Currency, "VAULTBOT_DERIV_CURRENCY")

	// ── Account ──
	setStr(&cfg.Account.ID, "VAULTBOT_ACCOUNT_ID")
	setStr(&cfg.Account.Token, "VAULTBOT_ACCOUNT_TOKEN")
	setStr(&cfg.Account.EncryptedTokenPath, "VAULTBOT_ACCOUNT_ENCRYPTED_TOKEN_PATH")
	setStr(&cfg.Account.TokenPassword, "VAULTBOT_ACCOUNT_TOKEN_PASSWORD")

	// ── Trading ──
	setFloat64(&cfg.Trading.ProfitTarget, "VAULTBOT_TRADING_PROFIT_TARGET")
	setFloat64(&cfg.Trading.Stake, "VAULTBOT_TRADING_STAKE")
	setFloat64(&cfg.Trading.MinProbability, "VAULTBOT_TRADING_MIN_PROBABILITY")
	setFloat64(&cfg.Trading.VaultThreshold, "VAULTBOT_TRADING_VAULT_THRESHOLD")
	setDuration(&cfg.Trading.TickInterval, "VAULTBOT_TRADING_TICK_INTERVAL")
	setDuration(&cfg.Trading.TradeInterval, "VAULTBOT_TRADING_TRADE_INTERVAL")
	setInt(&cfg.Trading.MaxPositions, "VAULTBOT_TRADING_MAX_POSITIONS")
	setBool(&cfg.Trading.AutoStart, "VAULTBOT_TRADING_AUTO_START")
	setDuration(&cfg.Trading.SettingsRefresh, "VAULTBOT_TRADING_SETTINGS_REFRESH")

	// ── Supabase ──
	setStr(&cfg.Supabase.DSN, "VAULTBOT_SUPABASE_DSN")
	setStr(&cfg.Supabase.DSN, "VAULTBOT_SUPABASE_URL") // compatibility alias
	setStr(&cfg.Supabase.Host, "VAULTBOT_SUPABASE_HOST")
	setInt(&cfg.Supabase.Port, "VAULTBOT_SUPABASE_PORT")
	setStr(&cfg.Supabase.Database, "VAULTBOT_SUPABASE_DATABASE")
	setStr(&cfg.Supabase.User, "VAULTBOT_SUPABASE_USER")
	setStr(&cfg.Supabase.Password, "VAULTBOT_SUPABASE_PASSWORD")
	setStr(&cfg.Supabase.SSLMode, "VAULTBOT_SUPABASE_SSL_MODE")
	setInt(&cfg.Supabase.PoolMaxConns, "VAULTBOT_SUPABASE_POOL_MAX_CONNS")
	setInt(&cfg.Supabase.PoolMinConns, "VAULTBOT_SUPABASE_POOL_MIN_CONNS")
	setBool(&cfg.Supabase.RunMigrations, "VAULTBOT_SUPABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "VAULTBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "VAULTBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "VAULTBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "VAULTBOT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "VAULTBOT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "VAULTBOT_REDIS_TLS_ENABLED")
	setStr(&cfg.Redis.KeyPrefix, "VAULTBOT_REDIS_KEY_PREFIX")
	setDuration(&cfg.Redis.LockTTL, "VAULTBOT_REDIS_LOCK_TTL")
	setDuration(&cfg.Redis.SettingsCacheTTL, "VAULTBOT_REDIS_SETTINGS_CACHE_TTL")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "VAULTBOT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "VAULTBOT_S3_REGION")
	setStr(&cfg.S3.Bucket, "VAULTBOT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "VAULTBOT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "VAULTBOT_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "VAULTBOT_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "VAULTBOT_S3_FORCE_PATH_STYLE")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "VAULTBOT_ARCHIVE_ENABLED")
	setInt(&cfg.Archive.RetentionDays, "VAULTBOT_ARCHIVE_RETENTION_DAYS")
	setStr(&cfg.Archive.Cron, "VAULTBOT_ARCHIVE_CRON")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "VAULTBOT_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "VAULTBOT_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "VAULTBOT_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "VAULTBOT_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "VAULTBOT_SERVER_RATE_LIMIT")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "VAULTBOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "VAULTBOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "VAULTBOT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "VAULTBOT_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "VAULTBOT_MODE")
	setStr(&cfg.LogLevel, "VAULTBOT_LOG_LEVEL")
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

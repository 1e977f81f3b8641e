// Package config defines the top-level configuration for vaultbot and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/alanyoungcy/vaultbot/internal/domain"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by VAULTBOT_* environment variables.
type Config struct {
	Deriv    DerivConfig    `toml:"deriv"`
	Account  AccountConfig  `toml:"account"`
	Trading  TradingConfig  `toml:"trading"`
	Supabase SupabaseConfig `toml:"supabase"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Archive  ArchiveConfig  `toml:"archive"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// DerivConfig holds the broker websocket endpoint.
type DerivConfig struct {
	WsURL    string `toml:"ws_url"`
	Currency string `toml:"currency"`
}

// AccountConfig identifies the trading account and its API token. The token
// may be given in clear or as an encrypted file produced by -encrypt-token.
type AccountConfig struct {
	ID                 string `toml:"id"`
	Token              string `toml:"token"`
	EncryptedTokenPath string `toml:"encrypted_token_path"`
	TokenPassword      string `toml:"token_password"`
}

// TradingConfig holds the engine cadence and the default trading settings.
// The four settings fields are used until the account saves its own.
type TradingConfig struct {
	ProfitTarget    float64  `toml:"profit_target"`
	Stake           float64  `toml:"stake"`
	MinProbability  float64  `toml:"min_probability"`
	VaultThreshold  float64  `toml:"vault_threshold"`
	TickInterval    duration `toml:"tick_interval"`
	TradeInterval   duration `toml:"trade_interval"`
	MaxPositions    int      `toml:"max_positions"`
	AutoStart       bool     `toml:"auto_start"`
	SettingsRefresh duration `toml:"settings_refresh"`
}

// Settings returns the configured default trading settings.
func (t TradingConfig) Settings() domain.Settings {
	return domain.Settings{
		ProfitTarget:   t.ProfitTarget,
		Stake:          t.Stake,
		MinProbability: t.MinProbability,
		VaultThreshold: t.VaultThreshold,
	}
}

// SupabaseConfig holds PostgreSQL / Supabase connection parameters.
type SupabaseConfig struct {
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
	Addr             string   `toml:"addr"`
	Password         string   `toml:"password"`
	DB               int      `toml:"db"`
	PoolSize         int      `toml:"pool_size"`
	MaxRetries       int      `toml:"max_retries"`
	TLSEnabled       bool     `toml:"tls_enabled"`
	KeyPrefix        string   `toml:"key_prefix"`
	LockTTL          duration `toml:"lock_ttl"`
	SettingsCacheTTL duration `toml:"settings_cache_ttl"`
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

// ArchiveConfig controls the cold-storage export of old ledger rows.
type ArchiveConfig struct {
	Enabled       bool   `toml:"enabled"`
	RetentionDays int    `toml:"retention_days"`
	Cron          string `toml:"cron"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "500ms", "30s").
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

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
	// RateLimit is the number of API requests allowed per client per minute.
	// Zero disables limiting.
	RateLimit int `toml:"rate_limit"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Deriv: DerivConfig{
			WsURL:    "wss://ws.binaryws.com/websockets/v3?app_id=1089",
			Currency: "USD",
		},
		Account: AccountConfig{
			ID: "default",
		},
		Trading: TradingConfig{
			ProfitTarget:    0.35,
			Stake:           0.35,
			MinProbability:  75,
			VaultThreshold:  3,
			TickInterval:    duration{500 * time.Millisecond},
			TradeInterval:   duration{2500 * time.Millisecond},
			MaxPositions:    3,
			AutoStart:       true,
			SettingsRefresh: duration{30 * time.Second},
		},
		Supabase: SupabaseConfig{
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
			Addr:             "localhost:6379",
			PoolSize:         20,
			MaxRetries:       3,
			LockTTL:          duration{30 * time.Second},
			SettingsCacheTTL: duration{5 * time.Minute},
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "vaultbot-data",
			ForcePathStyle: true,
		},
		Archive: ArchiveConfig{
			Enabled:       false,
			RetentionDays: 90,
			Cron:          "0 3 1 * *",
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:   120,
		},
		Notify: NotifyConfig{
			Events: []string{"vault_sweep", "panic", "auth_failed", "disconnected"},
		},
		Mode:     ModeTrade,
		LogLevel: "info",
	}
}

// Operating modes.
const (
	ModeTrade   = "trade"
	ModeMonitor = "monitor"
	ModeArchive = "archive"
)

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	ModeTrade:   true,
	ModeMonitor: true,
	ModeArchive: true,
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

	mode := strings.ToLower(c.Mode)
	if !validModes[mode] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: trade, monitor, archive)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Account: a token source is needed whenever the engine connects.
	if c.Account.ID == "" {
		errs = append(errs, "account: id must not be empty")
	}
	if mode == ModeTrade || mode == ModeMonitor {
		if c.Account.Token == "" && c.Account.EncryptedTokenPath == "" {
			errs = append(errs, "account: either token or encrypted_token_path must be set for mode "+c.Mode)
		}
		if c.Account.EncryptedTokenPath != "" && c.Account.TokenPassword == "" {
			errs = append(errs, "account: token_password is required when encrypted_token_path is set")
		}
		if c.Deriv.WsURL == "" {
			errs = append(errs, "deriv: ws_url must not be empty")
		}
	}
	if c.Deriv.Currency == "" {
		errs = append(errs, "deriv: currency must not be empty")
	}

	// Trading
	if err := c.Trading.Settings().Validate(); err != nil {
		errs = append(errs, "trading: profit_target and stake must be > 0, min_probability 0-100, vault_threshold >= 1")
	}
	if c.Trading.TickInterval.Duration <= 0 {
		errs = append(errs, "trading: tick_interval must be > 0")
	}
	if c.Trading.TradeInterval.Duration < 0 {
		errs = append(errs, "trading: trade_interval must be >= 0")
	}
	if c.Trading.MaxPositions < 1 {
		errs = append(errs, "trading: max_positions must be >= 1")
	}
	if c.Trading.SettingsRefresh.Duration <= 0 {
		errs = append(errs, "trading: settings_refresh must be > 0")
	}

	// Supabase
	if strings.TrimSpace(c.Supabase.DSN) == "" {
		if c.Supabase.Host == "" {
			errs = append(errs, "supabase: host must not be empty (or set supabase.dsn)")
		}
		if c.Supabase.Port <= 0 || c.Supabase.Port > 65535 {
			errs = append(errs, fmt.Sprintf("supabase: port must be 1-65535, got %d", c.Supabase.Port))
		}
		if c.Supabase.Database == "" {
			errs = append(errs, "supabase: database must not be empty")
		}
	}
	if c.Supabase.PoolMaxConns < 1 {
		errs = append(errs, "supabase: pool_max_conns must be >= 1")
	}
	if c.Supabase.PoolMinConns < 0 {
		errs = append(errs, "supabase: pool_min_conns must be >= 0")
	}
	if c.Supabase.PoolMinConns > c.Supabase.PoolMaxConns {
		errs = append(errs, "supabase: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}
	if c.Redis.LockTTL.Duration < time.Second {
		errs = append(errs, "redis: lock_ttl must be >= 1s")
	}

	// Archive
	if c.Archive.Enabled || mode == ModeArchive {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.Archive.RetentionDays < 1 {
			errs = append(errs, "archive: retention_days must be >= 1")
		}
		if len(strings.Fields(c.Archive.Cron)) != 5 {
			errs = append(errs, fmt.Sprintf("archive: cron must have 5 fields, got %q", c.Archive.Cron))
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimit < 0 {
			errs = append(errs, "server: rate_limit must be >= 0")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

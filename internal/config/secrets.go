package config

import (
	"net/url"
	"slices"
)

const redacted = "***"

// RedactedConfig returns a copy of cfg that is safe to log. Secrets become
// "***" and a DSN keeps its host but loses its password.
func RedactedConfig(cfg *Config) Config {
	out := *cfg

	redact(
		&out.Account.Token,
		&out.Account.TokenPassword,
		&out.Supabase.Password,
		&out.Redis.Password,
		&out.S3.AccessKey,
		&out.S3.SecretKey,
		&out.Server.APIKey,
		&out.Notify.TelegramToken,
		&out.Notify.DiscordWebhookURL,
	)
	out.Supabase.DSN = redactDSN(cfg.Supabase.DSN)

	out.Notify.Events = slices.Clone(cfg.Notify.Events)
	out.Server.CORSOrigins = slices.Clone(cfg.Server.CORSOrigins)
	return out
}

func redact(fields ...*string) {
	for _, s := range fields {
		if *s != "" {
			*s = redacted
		}
	}
}

// redactDSN masks the password of a URL-form DSN. Anything it cannot parse
// is fully redacted.
func redactDSN(dsn string) string {
	if dsn == "" {
		return ""
	}
	u, err := url.Parse(dsn)
	if err != nil || u.Scheme == "" {
		return redacted
	}
	if u.User == nil {
		return dsn
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), redacted)
	}
	return u.String()
}

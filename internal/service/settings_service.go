package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/alanyoungcy/vaultbot/internal/domain"
)

// settingsChanged is published on domain.ChannelSettings after an update.
type settingsChanged struct {
	AccountID string          `json:"account_id"`
	Settings  domain.Settings `json:"settings"`
}

// SettingsService serves the live trading settings. Reads are lock-free;
// the value is reloaded from Redis, then Postgres, then the configured
// defaults on an interval and whenever another instance announces a change.
type SettingsService struct {
	accountID string
	store     domain.SettingsStore
	cache     domain.SettingsCache
	bus       domain.SignalBus
	audit     domain.AuditStore
	defaults  domain.Settings
	cacheTTL  time.Duration
	refresh   time.Duration
	current   atomic.Pointer[domain.Settings]
	logger    *slog.Logger
}

// SettingsConfig holds SettingsService parameters.
type SettingsConfig struct {
	AccountID string
	Defaults  domain.Settings
	CacheTTL  time.Duration
	Refresh   time.Duration
}

// NewSettingsService creates a SettingsService primed with the defaults.
func NewSettingsService(
	cfg SettingsConfig,
	store domain.SettingsStore,
	cache domain.SettingsCache,
	bus domain.SignalBus,
	audit domain.AuditStore,
	logger *slog.Logger,
) *SettingsService {
	if cfg.Refresh <= 0 {
		cfg.Refresh = 30 * time.Second
	}
	s := &SettingsService{
		accountID: cfg.AccountID,
		store:     store,
		cache:     cache,
		bus:       bus,
		audit:     audit,
		defaults:  cfg.Defaults,
		cacheTTL:  cfg.CacheTTL,
		refresh:   cfg.Refresh,
		logger:    logger.With(slog.String("component", "settings")),
	}
	d := cfg.Defaults
	s.current.Store(&d)
	return s
}

// Current returns the last loaded settings.
func (s *SettingsService) Current() domain.Settings {
	return *s.current.Load()
}

// Load refreshes the current settings. On error the previous value is kept.
func (s *SettingsService) Load(ctx context.Context) error {
	if cached, err := s.cache.Get(ctx, s.accountID); err == nil {
		s.set(cached)
		return nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		s.logger.WarnContext(ctx, "settings cache read failed", slog.String("error", err.Error()))
	}

	stored, err := s.store.Get(ctx, s.accountID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		s.set(s.defaults)
		return nil
	case err != nil:
		return fmt.Errorf("settings: load: %w", err)
	}

	if err := s.cache.Set(ctx, s.accountID, stored, s.cacheTTL); err != nil {
		s.logger.WarnContext(ctx, "settings cache write failed", slog.String("error", err.Error()))
	}
	s.set(stored)
	return nil
}

// Update validates and persists new settings, then tells every instance to
// reload.
func (s *SettingsService) Update(ctx context.Context, next domain.Settings) error {
	if err := next.Validate(); err != nil {
		return err
	}
	prev := s.Current()

	if err := s.store.Upsert(ctx, s.accountID, next); err != nil {
		return fmt.Errorf("settings: update: %w", err)
	}
	if err := s.cache.Invalidate(ctx, s.accountID); err != nil {
		s.logger.WarnContext(ctx, "settings cache invalidate failed", slog.String("error", err.Error()))
	}
	s.set(next)

	payload, _ := json.Marshal(settingsChanged{AccountID: s.accountID, Settings: next})
	if err := s.bus.Publish(ctx, domain.ChannelSettings, payload); err != nil {
		s.logger.WarnContext(ctx, "settings publish failed", slog.String("error", err.Error()))
	}
	if err := s.audit.Log(ctx, "settings_updated", map[string]any{
		"account_id": s.accountID,
		"before":     prev,
		"after":      next,
	}); err != nil {
		s.logger.WarnContext(ctx, "settings audit failed", slog.String("error", err.Error()))
	}
	return nil
}

// Run reloads on the refresh interval and on change notifications until ctx
// is cancelled.
func (s *SettingsService) Run(ctx context.Context) error {
	changes, err := s.bus.Subscribe(ctx, domain.ChannelSettings)
	if err != nil {
		return fmt.Errorf("settings: subscribe: %w", err)
	}

	ticker := time.NewTicker(s.refresh)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.reload(ctx)
		case raw, ok := <-changes:
			if !ok {
				return nil
			}
			var msg settingsChanged
			if err := json.Unmarshal(raw, &msg); err == nil && msg.AccountID != "" && msg.AccountID != s.accountID {
				continue
			}
			s.reload(ctx)
		}
	}
}

func (s *SettingsService) reload(ctx context.Context) {
	if err := s.Load(ctx); err != nil {
		s.logger.WarnContext(ctx, "settings reload failed", slog.String("error", err.Error()))
	}
}

func (s *SettingsService) set(v domain.Settings) {
	if v.Validate() != nil {
		s.logger.Warn("ignoring invalid stored settings", slog.Any("settings", v))
		return
	}
	prev := s.current.Swap(&v)
	if prev == nil || *prev != v {
		s.logger.Info("settings applied",
			slog.Float64("profit_target", v.ProfitTarget),
			slog.Float64("stake", v.Stake),
			slog.Float64("min_probability", v.MinProbability),
			slog.Float64("vault_threshold", v.VaultThreshold),
		)
	}
}

// Package app wires stores, caches, the archive, services and the trading
// engine together and runs the configured mode.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/alanyoungcy/vaultbot/internal/config"
)

// App owns the configuration and the resources opened by Wire.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	closeOnce sync.Once
	cleanup   func()
}

type modeFunc func(*App, context.Context, *Dependencies) error

var modes = map[string]modeFunc{
	config.ModeTrade:   (*App).TradeMode,
	config.ModeMonitor: (*App).MonitorMode,
	config.ModeArchive: (*App).ArchiveMode,
}

// New creates an App.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run wires dependencies and blocks in the selected mode until ctx is
// cancelled or the mode returns.
func (a *App) Run(ctx context.Context) error {
	mode := strings.ToLower(a.cfg.Mode)
	run, ok := modes[mode]
	if !ok {
		return fmt.Errorf("app: unsupported mode %q", a.cfg.Mode)
	}
	a.logger.InfoContext(ctx, "starting application",
		slog.String("mode", mode),
		slog.String("account", a.cfg.Account.ID),
		slog.String("log_level", a.cfg.LogLevel),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.cleanup = cleanup
	return run(a, ctx, deps)
}

// Close releases everything Wire opened. Only the first call has effect.
func (a *App) Close() {
	a.closeOnce.Do(func() {
		a.logger.Info("shutting down application")
		if a.cleanup != nil {
			a.cleanup()
		}
	})
}

package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/vaultbot/internal/crypto"
	"github.com/alanyoungcy/vaultbot/internal/domain"
	"github.com/alanyoungcy/vaultbot/internal/engine"
	"github.com/alanyoungcy/vaultbot/internal/pipeline"
	"github.com/alanyoungcy/vaultbot/internal/platform/deriv"
	"github.com/alanyoungcy/vaultbot/internal/server"
	"github.com/alanyoungcy/vaultbot/internal/server/handler"
	"github.com/alanyoungcy/vaultbot/internal/server/ws"
	"github.com/alanyoungcy/vaultbot/internal/service"
)

// TradeMode connects, authorizes and starts trading once the session is
// authorized (when trading.auto_start is set).
func (a *App) TradeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting trade mode")
	return a.runEngine(ctx, deps, a.cfg.Trading.AutoStart)
}

// MonitorMode connects and authorizes but only trades when started through
// the API.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode")
	return a.runEngine(ctx, deps, false)
}

// ArchiveMode runs one archive pass and returns.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting archive mode")
	if deps.Archiver == nil {
		return errors.New("archive mode: s3 archiver not configured")
	}
	res, err := pipeline.NewArchiver(deps.Archiver, a.cfg.Archive.RetentionDays, a.logger).Run(ctx)
	if err != nil {
		return fmt.Errorf("archive mode: %w", err)
	}
	a.logger.InfoContext(ctx, "archive pass complete",
		slog.Time("cutoff", res.Cutoff),
		slog.Int64("trades", res.Trades),
		slog.Int64("vault_sweeps", res.VaultSweeps),
	)
	return nil
}

// engineLockKey names the single-instance lock for an account.
func engineLockKey(accountID string) string {
	return "engine:" + accountID
}

// derivDialer opens broker sessions against url.
func derivDialer(url string) engine.Dialer {
	return engine.DialFunc(func(ctx context.Context, h deriv.Handler) (engine.Transport, error) {
		c, err := deriv.Dial(ctx, url, h)
		if err != nil {
			return nil, err
		}
		return c, nil
	})
}

func (a *App) runEngine(ctx context.Context, deps *Dependencies, autoStart bool) error {
	acct := a.cfg.Account.ID
	lockTTL := a.cfg.Redis.LockTTL.Duration

	// One engine per account across every instance sharing Redis.
	lock, err := deps.LockManager.Acquire(ctx, engineLockKey(acct), lockTTL)
	if err != nil {
		return fmt.Errorf("app: acquire engine lock for %s: %w", acct, err)
	}
	defer lock.Release()

	token, err := crypto.LoadToken(crypto.TokenConfig{
		RawToken:           a.cfg.Account.Token,
		EncryptedTokenPath: a.cfg.Account.EncryptedTokenPath,
		Password:           a.cfg.Account.TokenPassword,
	})
	if err != nil {
		return fmt.Errorf("app: load token: %w", err)
	}

	recorder := service.NewRecorder(acct, deps.TradeStore, deps.VaultStore, deps.AuditStore, service.DefaultQueueSize, a.logger)
	initialVault, err := recorder.LoadVaultTotal(ctx)
	if err != nil {
		return fmt.Errorf("app: %w", err)
	}

	settings := service.NewSettingsService(service.SettingsConfig{
		AccountID: acct,
		Defaults:  a.cfg.Trading.Settings(),
		CacheTTL:  a.cfg.Redis.SettingsCacheTTL.Duration,
		Refresh:   a.cfg.Trading.SettingsRefresh.Duration,
	}, deps.SettingsStore, deps.SettingsCache, deps.SignalBus, deps.AuditStore, a.logger)
	if err := settings.Load(ctx); err != nil {
		a.logger.WarnContext(ctx, "settings load failed, using configured defaults", slog.String("error", err.Error()))
	}

	router := service.NewEventRouter(deps.SignalBus, deps.Notifier, a.logger)

	eng := engine.New(engine.Config{
		Token:         token,
		Currency:      a.cfg.Deriv.Currency,
		TickInterval:  a.cfg.Trading.TickInterval.Duration,
		TradeInterval: a.cfg.Trading.TradeInterval.Duration,
		MaxPositions:  a.cfg.Trading.MaxPositions,
		AutoStart:     autoStart,
		InitialVault:  initialVault,
	}, engine.Deps{
		Dialer:   derivDialer(a.cfg.Deriv.WsURL),
		Settings: settings,
		Recorder: recorder,
		Sink:     router,
	}, a.logger)
	recorder.OnFailure(func(msg string) {
		eng.Log(domain.SeverityError, msg)
	})

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		ticker := time.NewTicker(lockTTL / 3)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if err := lock.Refresh(ctx, lockTTL); err != nil {
					if ctx.Err() != nil {
						return nil
					}
					return fmt.Errorf("app: engine lock lost: %w", err)
				}
			}
		}
	})

	g.Go(func() error { return ignoreCanceled(recorder.Run(ctx)) })
	g.Go(func() error { return ignoreCanceled(settings.Run(ctx)) })
	g.Go(func() error { return ignoreCanceled(router.Run(ctx)) })

	if a.cfg.Archive.Enabled && deps.Archiver != nil {
		archiver := pipeline.NewArchiver(deps.Archiver, a.cfg.Archive.RetentionDays, a.logger)
		g.Go(func() error { return ignoreCanceled(archiver.RunCron(ctx, a.cfg.Archive.Cron)) })
	}

	// A failed connect is reported in the activity log; the operator retries
	// through POST /api/engine/connect.
	g.Go(func() error {
		if err := eng.Connect(ctx); err != nil {
			a.logger.WarnContext(ctx, "initial connect failed", slog.String("error", err.Error()))
		}
		<-ctx.Done()
		eng.Disconnect()
		return nil
	})

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, eng, settings)
	}

	return g.Wait()
}

func (a *App) startHTTPServer(
	ctx context.Context,
	g *errgroup.Group,
	deps *Dependencies,
	eng *engine.Engine,
	settings *service.SettingsService,
) {
	hub := ws.NewHub(deps.SignalBus, eng, a.logger)
	g.Go(func() error { return ignoreCanceled(hub.Run(ctx)) })

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
	}, server.Handlers{
		Health:   handler.NewHealthHandler(deps.HealthChecks, a.logger),
		Engine:   handler.NewEngineHandler(eng, a.cfg.Mode, a.logger),
		Ledger:   handler.NewLedgerHandler(a.cfg.Account.ID, deps.TradeStore, deps.VaultStore, a.logger).WithArchive(deps.ArchiveLister),
		Settings: handler.NewSettingsHandler(settings, a.logger),
	}, hub, deps.RateLimiter, a.logger)

	g.Go(srv.Start)

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

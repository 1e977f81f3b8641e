// Package pipeline runs the background ledger jobs: the cold-storage archive
// pass on a cron schedule.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/vaultbot/internal/domain"
)

// ArchiveResult reports how many rows one pass moved to cold storage.
type ArchiveResult struct {
	Cutoff      time.Time
	Trades      int64
	VaultSweeps int64
}

// Archiver moves settled trades and vault sweeps older than the retention
// window from Postgres to S3.
type Archiver struct {
	blobArchiver  domain.Archiver
	retentionDays int
	now           func() time.Time
	logger        *slog.Logger
}

// NewArchiver creates a new Archiver.
func NewArchiver(blobArchiver domain.Archiver, retentionDays int, logger *slog.Logger) *Archiver {
	return &Archiver{
		blobArchiver:  blobArchiver,
		retentionDays: retentionDays,
		now:           time.Now,
		logger:        logger.With(slog.String("component", "archive_job")),
	}
}

// Run executes a single archive pass.
func (a *Archiver) Run(ctx context.Context) (ArchiveResult, error) {
	res := ArchiveResult{
		Cutoff: a.now().UTC().Add(-time.Duration(a.retentionDays) * 24 * time.Hour),
	}
	a.logger.InfoContext(ctx, "starting archive run",
		slog.Time("cutoff", res.Cutoff),
		slog.Int("retention_days", a.retentionDays),
	)

	var err error
	res.Trades, err = a.blobArchiver.ArchiveTrades(ctx, res.Cutoff)
	if err != nil {
		return res, fmt.Errorf("pipeline: archive trades before %v: %w", res.Cutoff, err)
	}

	res.VaultSweeps, err = a.blobArchiver.ArchiveVaultSweeps(ctx, res.Cutoff)
	if err != nil {
		return res, fmt.Errorf("pipeline: archive vault sweeps before %v: %w", res.Cutoff, err)
	}

	a.logger.InfoContext(ctx, "archive run complete",
		slog.Int64("trades_archived", res.Trades),
		slog.Int64("vault_sweeps_archived", res.VaultSweeps),
	)
	return res, nil
}

// RunCron runs the archiver on a 5-field cron schedule until ctx is
// cancelled. Example: "0 3 1 * *" runs at 03:00 UTC on the 1st of every month.
func (a *Archiver) RunCron(ctx context.Context, cronExpr string) error {
	sched, err := parseCron(cronExpr)
	if err != nil {
		return fmt.Errorf("pipeline: parse cron %q: %w", cronExpr, err)
	}
	a.logger.InfoContext(ctx, "archiver cron started", slog.String("cron", cronExpr))

	for {
		next, err := sched.next(a.now().UTC())
		if err != nil {
			return fmt.Errorf("pipeline: %w", err)
		}

		wait := next.Sub(a.now())
		a.logger.InfoContext(ctx, "archiver waiting for next cron trigger",
			slog.Time("next_run", next),
			slog.Duration("wait", wait),
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			a.logger.Info("archiver cron stopped")
			return ctx.Err()
		case <-timer.C:
			if _, err := a.Run(ctx); err != nil {
				a.logger.ErrorContext(ctx, "archive run failed", slog.String("error", err.Error()))
			}
		}
	}
}

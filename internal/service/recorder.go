// Package service holds the collaborators that connect the trading engine to
// durable storage, live settings and outbound event delivery.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/vaultbot/internal/domain"
	"github.com/alanyoungcy/vaultbot/internal/metrics"
)

const (
	// DefaultQueueSize bounds the number of pending persistence writes.
	DefaultQueueSize = 256
	// writeTimeout bounds one database write.
	writeTimeout = 5 * time.Second
	// writeAttempts is how many times a write is tried before it is reported.
	writeAttempts = 3
)

type recordKind string

const (
	kindTrade recordKind = "trade"
	kindVault recordKind = "vault_sweep"
)

type record struct {
	kind  recordKind
	trade domain.TradeRecord
	sweep domain.VaultSweep
}

// Recorder persists settlements and vault sweeps off the engine's critical
// path. The engine enqueues without blocking; a background worker writes to
// Postgres with retries and reports failures through the audit log and the
// failure callback.
type Recorder struct {
	accountID string
	trades    domain.TradeStore
	vault     domain.VaultStore
	audit     domain.AuditStore
	queue     chan record
	onFailure func(msg string)
	backoff   time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

// NewRecorder creates a Recorder for one account.
func NewRecorder(
	accountID string,
	trades domain.TradeStore,
	vault domain.VaultStore,
	audit domain.AuditStore,
	queueSize int,
	logger *slog.Logger,
) *Recorder {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Recorder{
		accountID: accountID,
		trades:    trades,
		vault:     vault,
		audit:     audit,
		queue:     make(chan record, queueSize),
		onFailure: func(string) {},
		backoff:   200 * time.Millisecond,
		now:       time.Now,
		logger:    logger.With(slog.String("component", "recorder")),
	}
}

// OnFailure registers fn to receive a human-readable message whenever a
// write is finally given up on. Call before Run.
func (r *Recorder) OnFailure(fn func(msg string)) {
	if fn != nil {
		r.onFailure = fn
	}
}

// RecordTrade enqueues a settled contract. It returns domain.ErrQueueFull
// instead of blocking.
func (r *Recorder) RecordTrade(rec domain.TradeRecord) error {
	rec.AccountID = r.accountID
	return r.enqueue(record{kind: kindTrade, trade: rec})
}

// RecordVaultSweep enqueues a vault sweep.
func (r *Recorder) RecordVaultSweep(amount float64, note string) error {
	return r.enqueue(record{kind: kindVault, sweep: domain.VaultSweep{
		AccountID: r.accountID,
		Amount:    amount,
		Note:      note,
		CreatedAt: r.now().UTC(),
	}})
}

func (r *Recorder) enqueue(rec record) error {
	select {
	case r.queue <- rec:
		return nil
	default:
		metrics.PersistFailures.WithLabelValues(string(rec.kind)).Inc()
		return domain.ErrQueueFull
	}
}

// LoadVaultTotal returns the durable vault balance for the account, used to
// seed the engine at startup.
func (r *Recorder) LoadVaultTotal(ctx context.Context) (float64, error) {
	total, err := r.vault.Total(ctx, r.accountID)
	if err != nil {
		return 0, fmt.Errorf("recorder: load vault total: %w", err)
	}
	return total, nil
}

// Run writes queued records until ctx is cancelled, then drains what is
// already buffered.
func (r *Recorder) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "recorder started")
	defer r.logger.Info("recorder stopped")

	for {
		select {
		case <-ctx.Done():
			r.drain()
			return ctx.Err()
		case rec := <-r.queue:
			r.write(ctx, rec)
		}
	}
}

func (r *Recorder) drain() {
	for {
		select {
		case rec := <-r.queue:
			// Short-lived context so shutdown cannot hang on the database.
			ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
			r.write(ctx, rec)
			cancel()
		default:
			return
		}
	}
}

func (r *Recorder) write(ctx context.Context, rec record) {
	var err error
	for attempt := 1; attempt <= writeAttempts; attempt++ {
		if err = r.insert(ctx, rec); err == nil {
			return
		}
		if ctx.Err() != nil || attempt == writeAttempts {
			break
		}
		r.logger.WarnContext(ctx, "persist failed, retrying",
			slog.String("kind", string(rec.kind)),
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()),
		)
		select {
		case <-ctx.Done():
		case <-time.After(r.backoff * time.Duration(attempt)):
		}
	}
	r.fail(rec, err)
}

func (r *Recorder) insert(ctx context.Context, rec record) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	switch rec.kind {
	case kindTrade:
		return r.trades.Insert(ctx, rec.trade)
	case kindVault:
		return r.vault.Insert(ctx, rec.sweep)
	default:
		return errors.New("unknown record kind")
	}
}

func (r *Recorder) fail(rec record, err error) {
	metrics.PersistFailures.WithLabelValues(string(rec.kind)).Inc()

	var msg string
	detail := map[string]any{"kind": string(rec.kind), "error": err.Error()}
	switch rec.kind {
	case kindTrade:
		msg = fmt.Sprintf("Failed to save trade #%d: %v", rec.trade.ContractID, err)
		detail["contract_id"] = rec.trade.ContractID
		detail["profit"] = rec.trade.Profit
	case kindVault:
		msg = fmt.Sprintf("Failed to save vault sweep $%.2f: %v", rec.sweep.Amount, err)
		detail["amount"] = rec.sweep.Amount
	}

	r.logger.Error("persist failed", slog.String("kind", string(rec.kind)), slog.String("error", err.Error()))
	r.onFailure(msg)

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if auditErr := r.audit.Log(ctx, "persist_failed", detail); auditErr != nil {
		r.logger.Warn("recorder: audit log failed", slog.String("error", auditErr.Error()))
	}
}

// Package engine is the trading core: one broker session, request
// correlation, the per-contract execution pipeline, the portfolio ledger,
// the vault sweep and the scheduler that paces new trades. All state is
// owned by Engine and mutated under its single mutex.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/vaultbot/internal/domain"
	"github.com/alanyoungcy/vaultbot/internal/platform/deriv"
)

// Transport is an open broker session.
type Transport interface {
	Send(req deriv.Request) error
	Close() error
}

// Dialer opens broker sessions. Inbound frames and the close notification of
// the returned transport are delivered to h.
type Dialer interface {
	Dial(ctx context.Context, h deriv.Handler) (Transport, error)
}

// DialFunc adapts a function to Dialer.
type DialFunc func(ctx context.Context, h deriv.Handler) (Transport, error)

// Dial implements Dialer.
func (f DialFunc) Dial(ctx context.Context, h deriv.Handler) (Transport, error) { return f(ctx, h) }

// Recorder durably stores settlements and sweeps. Calls must not block; an
// error means the write was not accepted.
type Recorder interface {
	RecordTrade(rec domain.TradeRecord) error
	RecordVaultSweep(amount float64, note string) error
}

type nopRecorder struct{}

func (nopRecorder) RecordTrade(domain.TradeRecord) error   { return nil }
func (nopRecorder) RecordVaultSweep(float64, string) error { return nil }

// SettingsProvider returns the live trading settings.
type SettingsProvider interface {
	Current() domain.Settings
}

// StaticSettings is a SettingsProvider that never changes.
type StaticSettings domain.Settings

// Current implements SettingsProvider.
func (s StaticSettings) Current() domain.Settings { return domain.Settings(s) }

// Config holds engine parameters that do not change at runtime.
type Config struct {
	Token         string
	Currency      string
	TickInterval  time.Duration
	TradeInterval time.Duration
	MaxPositions  int
	AutoStart     bool
	InitialVault  float64
}

// Deps are the engine's collaborators. Only Dialer is required.
type Deps struct {
	Dialer   Dialer
	Settings SettingsProvider
	Recorder Recorder
	Source   SignalSource
	Sink     domain.EventSink
	Clock    func() time.Time
}

// Engine owns all mutable trading state.
type Engine struct {
	mu sync.Mutex

	cfg      Config
	dialer   Dialer
	settings SettingsProvider
	recorder Recorder
	source   SignalSource
	sink     domain.EventSink
	now      func() time.Time
	logger   *slog.Logger

	phase    domain.Phase
	conn     Transport
	gen      uint64
	balance  float64
	currency string

	corr        *Correlator
	filter      *InstrumentFilter
	instruments []domain.Instrument
	ledger      *Ledger
	vault       *Vault
	activity    *ActivityLog
	gate        Gate
	sched       *Scheduler

	running       bool
	lastTrade     time.Time
	currentSignal *domain.Signal
}

// New builds a disconnected engine.
func New(cfg Config, deps Deps, logger *slog.Logger) *Engine {
	if cfg.Currency == "" {
		cfg.Currency = "USD"
	}
	if cfg.TradeInterval <= 0 {
		cfg.TradeInterval = DefaultTradeInterval
	}
	if cfg.MaxPositions <= 0 {
		cfg.MaxPositions = DefaultMaxPositions
	}

	e := &Engine{
		cfg:      cfg,
		dialer:   deps.Dialer,
		settings: deps.Settings,
		recorder: deps.Recorder,
		source:   deps.Source,
		sink:     deps.Sink,
		now:      deps.Clock,
		logger:   logger.With(slog.String("component", "engine")),
		phase:    domain.PhaseDisconnected,
		currency: cfg.Currency,
		corr:     NewCorrelator(),
		filter:   NewInstrumentFilter(),
		ledger:   NewLedger(),
		vault:    NewVault(cfg.InitialVault),
		gate:     Gate{TradeInterval: cfg.TradeInterval, MaxPositions: cfg.MaxPositions},
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.settings == nil {
		e.settings = StaticSettings(domain.DefaultSettings())
	}
	if e.recorder == nil {
		e.recorder = nopRecorder{}
	}
	if e.source == nil {
		e.source = NewRandomSource(uint64(time.Now().UnixNano()))
	}
	e.activity = NewActivityLog(e.logger, e.now, func(entry domain.LogEntry) {
		e.emit(domain.EventActivity, entry)
	})
	e.sched = NewScheduler(cfg.TickInterval, e.onTick)
	return e
}

// Start begins scheduling trades. It requires an authorized session.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.startLocked()
}

func (e *Engine) startLocked() error {
	if e.phase != domain.PhaseAuthorized {
		e.activity.Add(domain.SeverityError, "Cannot start: Not authorized")
		return domain.ErrNotAuthorized
	}
	if e.running {
		return nil
	}
	e.running = true
	e.sched.Start()
	e.activity.Add(domain.SeveritySystem, "Trading engine started")
	e.emitStatus()
	return nil
}

// Stop halts the scheduler. Contracts already purchased keep being monitored.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopLocked() {
		e.activity.Add(domain.SeveritySystem, "Trading engine stopped")
		e.emitStatus()
	}
}

func (e *Engine) stopLocked() bool {
	if !e.running {
		return false
	}
	e.running = false
	e.sched.Stop()
	return true
}

// Panic stops the scheduler, sells every live contract at market and clears
// the position set without waiting for confirmation.
func (e *Engine) Panic() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.activity.Add(domain.SeverityError, "PANIC CLOSE INITIATED")
	e.stopLocked()

	ids := e.ledger.ClearPositions()
	for _, id := range ids {
		_ = e.sendLocked(deriv.NewSell(id), &Intent{Kind: IntentSell, ContractID: id})
	}
	e.syncGauges()
	e.emit(domain.EventPanic, map[string]any{"contracts": ids})
	e.emitStatus()
}

// Log appends an entry to the activity log on behalf of a collaborator, such
// as a persistence failure reported after the fact.
func (e *Engine) Log(sev domain.Severity, msg string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.activity.Add(sev, msg)
}

// Running reports whether the scheduler is active.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Phase returns the session phase.
func (e *Engine) Phase() domain.Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase
}

// Snapshot returns a consistent copy of the engine state for observers.
func (e *Engine) Snapshot() domain.EngineSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	wins, losses, cur, best := e.ledger.Counters()
	snap := domain.EngineSnapshot{
		Phase:         e.phase,
		Running:       e.running,
		Balance:       e.balance,
		Currency:      e.currency,
		RunningProfit: e.vault.RunningProfit(),
		VaultBalance:  e.vault.Balance(),
		Wins:          wins,
		Losses:        losses,
		CurrentStreak: cur,
		BestStreak:    best,
		PendingOpens:  e.corr.PendingOpens(),
		Instruments:   append([]domain.Instrument(nil), e.instruments...),
		Positions:     e.ledger.Positions(),
		Assets:        e.ledger.Assets(),
		History:       e.ledger.History(),
		Timeline:      e.ledger.Timeline(),
		Activity:      e.activity.Entries(),
		LastTradeAt:   e.lastTrade,
		Settings:      e.settings.Current(),
	}
	if e.currentSignal != nil {
		sig := *e.currentSignal
		snap.CurrentSignal = &sig
	}
	return snap
}

func (e *Engine) emit(kind domain.EventKind, payload any) {
	if e.sink == nil {
		return
	}
	e.sink.Emit(domain.Event{Kind: kind, Timestamp: e.now(), Payload: payload})
}

func (e *Engine) emitStatus() {
	e.emit(domain.EventPhase, map[string]any{
		"phase":   e.phase,
		"running": e.running,
	})
}

package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/vaultbot/internal/domain"
)

// EngineControl is the subset of the trading engine the HTTP surface drives.
type EngineControl interface {
	Connect(ctx context.Context) error
	Disconnect()
	Start() error
	Stop()
	Panic()
	Snapshot() domain.EngineSnapshot
}

// EngineHandler serves engine state and the operator controls.
type EngineHandler struct {
	engine    EngineControl
	mode      string
	startedAt time.Time
	logger    *slog.Logger
}

// NewEngineHandler creates an EngineHandler.
func NewEngineHandler(engine EngineControl, mode string, logger *slog.Logger) *EngineHandler {
	return &EngineHandler{
		engine:    engine,
		mode:      mode,
		startedAt: time.Now().UTC(),
		logger:    logger,
	}
}

type statusResponse struct {
	Mode          string               `json:"mode"`
	Phase         domain.Phase         `json:"phase"`
	Running       bool                 `json:"running"`
	Balance       float64              `json:"balance"`
	Currency      string               `json:"currency"`
	RunningProfit float64              `json:"running_profit"`
	VaultBalance  float64              `json:"vault_balance"`
	Wins          int                  `json:"wins"`
	Losses        int                  `json:"losses"`
	WinRate       float64              `json:"win_rate"`
	CurrentStreak int                  `json:"current_streak"`
	BestStreak    int                  `json:"best_streak"`
	OpenPositions int                  `json:"open_positions"`
	PendingOpens  int                  `json:"pending_opens"`
	CurrentSignal *domain.Signal       `json:"current_signal,omitempty"`
	LastTradeAt   time.Time            `json:"last_trade_at"`
	Settings      domain.Settings      `json:"settings"`
	Timeline      []domain.ProfitPoint `json:"timeline"`
	UptimeSeconds int64                `json:"uptime_seconds"`
}

// GetStatus returns the session phase, counters and profit timeline.
// GET /api/status
func (h *EngineHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	snap := h.engine.Snapshot()
	var winRate float64
	if total := snap.Wins + snap.Losses; total > 0 {
		winRate = float64(snap.Wins) / float64(total)
	}
	writeJSON(w, http.StatusOK, statusResponse{
		Mode:          h.mode,
		Phase:         snap.Phase,
		Running:       snap.Running,
		Balance:       snap.Balance,
		Currency:      snap.Currency,
		RunningProfit: snap.RunningProfit,
		VaultBalance:  snap.VaultBalance,
		Wins:          snap.Wins,
		Losses:        snap.Losses,
		WinRate:       winRate,
		CurrentStreak: snap.CurrentStreak,
		BestStreak:    snap.BestStreak,
		OpenPositions: len(snap.Positions),
		PendingOpens:  snap.PendingOpens,
		CurrentSignal: snap.CurrentSignal,
		LastTradeAt:   snap.LastTradeAt,
		Settings:      snap.Settings,
		Timeline:      nonNil(snap.Timeline),
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
	})
}

// ListPositions returns the live contracts.
// GET /api/positions
func (h *EngineHandler) ListPositions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"positions": nonNil(h.engine.Snapshot().Positions)})
}

// ListAssets returns per-instrument performance and the tradable instruments.
// GET /api/assets
func (h *EngineHandler) ListAssets(w http.ResponseWriter, r *http.Request) {
	snap := h.engine.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"assets":      nonNil(snap.Assets),
		"instruments": nonNil(snap.Instruments),
	})
}

// ListActivity returns the activity log, newest first.
// GET /api/activity
func (h *EngineHandler) ListActivity(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"activity": nonNil(h.engine.Snapshot().Activity)})
}

// ListHistory returns the in-memory settlement history of this session.
// GET /api/history
func (h *EngineHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"history": nonNil(h.engine.Snapshot().History)})
}

// Connect opens the broker session.
// POST /api/engine/connect
func (h *EngineHandler) Connect(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()
	if err := h.engine.Connect(ctx); err != nil {
		h.logger.ErrorContext(r.Context(), "handler: connect failed", slog.String("error", err.Error()))
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	h.writeState(w)
}

// Disconnect closes the broker session.
// POST /api/engine/disconnect
func (h *EngineHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	h.engine.Disconnect()
	h.writeState(w)
}

// Start enables the trade scheduler.
// POST /api/engine/start
func (h *EngineHandler) Start(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Start(); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrNotAuthorized) {
			status = http.StatusConflict
		}
		writeError(w, status, err.Error())
		return
	}
	h.writeState(w)
}

// Stop disables the trade scheduler.
// POST /api/engine/stop
func (h *EngineHandler) Stop(w http.ResponseWriter, r *http.Request) {
	h.engine.Stop()
	h.writeState(w)
}

// Panic sells every open contract and stops trading.
// POST /api/engine/panic
func (h *EngineHandler) Panic(w http.ResponseWriter, r *http.Request) {
	h.logger.WarnContext(r.Context(), "handler: panic close requested", slog.String("remote_addr", r.RemoteAddr))
	h.engine.Panic()
	h.writeState(w)
}

func (h *EngineHandler) writeState(w http.ResponseWriter) {
	snap := h.engine.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"phase":          snap.Phase,
		"running":        snap.Running,
		"open_positions": len(snap.Positions),
	})
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

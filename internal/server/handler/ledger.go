package handler

import (
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/vaultbot/internal/domain"
)

// LedgerHandler serves durable trade history and vault sweeps.
type LedgerHandler struct {
	accountID string
	trades    domain.TradeStore
	vault     domain.VaultStore
	archive   domain.BlobLister
	logger    *slog.Logger
}

// NewLedgerHandler creates a LedgerHandler for one account.
func NewLedgerHandler(accountID string, trades domain.TradeStore, vault domain.VaultStore, logger *slog.Logger) *LedgerHandler {
	return &LedgerHandler{
		accountID: accountID,
		trades:    trades,
		vault:     vault,
		logger:    logger,
	}
}

// WithArchive enables GET /api/archive.
func (h *LedgerHandler) WithArchive(l domain.BlobLister) *LedgerHandler {
	h.archive = l
	return h
}

// ListTrades returns settled trades, newest first.
// GET /api/trades?limit=50&offset=0
func (h *LedgerHandler) ListTrades(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)
	trades, err := h.trades.List(r.Context(), h.accountID, opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list trades failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list trades")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"trades": nonNil(trades),
		"limit":  opts.Limit,
		"offset": opts.Offset,
	})
}

// GetVault returns the durable vault total and the most recent sweeps.
// GET /api/vault?limit=50
func (h *LedgerHandler) GetVault(w http.ResponseWriter, r *http.Request) {
	total, err := h.vault.Total(r.Context(), h.accountID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: vault total failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to load vault")
		return
	}
	sweeps, err := h.vault.List(r.Context(), h.accountID, parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list sweeps failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to load vault")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total":  total,
		"sweeps": nonNil(sweeps),
	})
}

// ListArchive lists the monthly archive files in object storage.
// GET /api/archive?kind=trades
func (h *LedgerHandler) ListArchive(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		writeError(w, http.StatusServiceUnavailable, "archive not configured")
		return
	}

	prefix := "archive/"
	switch kind := r.URL.Query().Get("kind"); kind {
	case "":
	case "trades", "vault_locks":
		prefix += kind + "/"
	default:
		writeError(w, http.StatusBadRequest, "kind must be trades or vault_locks")
		return
	}

	files, err := h.archive.List(r.Context(), prefix)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list archive failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list archive")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": nonNil(files)})
}

package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// TradeStore persists settled trade history.
type TradeStore interface {
	Insert(ctx context.Context, rec TradeRecord) error
	List(ctx context.Context, accountID string, opts ListOpts) ([]TradeRecord, error)
	ListBefore(ctx context.Context, before time.Time, limit int) ([]TradeRecord, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// VaultStore persists vault sweeps.
type VaultStore interface {
	Insert(ctx context.Context, sweep VaultSweep) error
	Total(ctx context.Context, accountID string) (float64, error)
	List(ctx context.Context, accountID string, opts ListOpts) ([]VaultSweep, error)
	ListBefore(ctx context.Context, before time.Time, limit int) ([]VaultSweep, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// SettingsStore persists per-account trading settings. Get returns
// ErrNotFound when the account has never saved settings.
type SettingsStore interface {
	Get(ctx context.Context, accountID string) (Settings, error)
	Upsert(ctx context.Context, accountID string, s Settings) error
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64          `json:"id"`
	Event     string         `json:"event"`
	Detail    map[string]any `json:"detail"`
	CreatedAt time.Time      `json:"created_at"`
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}

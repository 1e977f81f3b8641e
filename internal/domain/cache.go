package domain

import (
	"context"
	"time"
)

// SettingsCache provides fast access to the last saved settings.
type SettingsCache interface {
	Get(ctx context.Context, accountID string) (Settings, error)
	Set(ctx context.Context, accountID string, s Settings, ttl time.Duration) error
	Invalidate(ctx context.Context, accountID string) error
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// Lock is a held distributed lock.
type Lock interface {
	Refresh(ctx context.Context, ttl time.Duration) error
	Release()
}

// LockManager provides distributed locking. Acquire returns ErrLockHeld when
// another holder owns the key.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lock, error)
}

// StreamMessage represents a single entry from a Redis stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub and durable streams.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}

// Bus channels and streams.
const (
	ChannelActivity = "ch:activity"
	ChannelTrade    = "ch:trade"
	ChannelVault    = "ch:vault"
	ChannelStatus   = "ch:status"
	ChannelSettings = "ch:settings"
	StreamLedger    = "stream:ledger"
)

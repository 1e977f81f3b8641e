package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/vaultbot/internal/domain"
)

// SettingsCache implements domain.SettingsCache with one JSON string key per
// account.
type SettingsCache struct {
	c *Client
}

// NewSettingsCache creates a SettingsCache backed by the given Client.
func NewSettingsCache(c *Client) *SettingsCache {
	return &SettingsCache{c: c}
}

func (sc *SettingsCache) key(accountID string) string {
	return sc.c.Key("settings", accountID)
}

// Get returns the cached settings, or domain.ErrNotFound on a miss.
func (sc *SettingsCache) Get(ctx context.Context, accountID string) (domain.Settings, error) {
	raw, err := sc.c.rdb.Get(ctx, sc.key(accountID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Settings{}, domain.ErrNotFound
		}
		return domain.Settings{}, fmt.Errorf("redis: get settings %s: %w", accountID, err)
	}

	var s domain.Settings
	if err := json.Unmarshal(raw, &s); err != nil {
		return domain.Settings{}, fmt.Errorf("redis: decode settings %s: %w", accountID, err)
	}
	return s, nil
}

// Set caches settings for ttl. A zero ttl keeps the key until invalidated.
func (sc *SettingsCache) Set(ctx context.Context, accountID string, s domain.Settings, ttl time.Duration) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("redis: encode settings %s: %w", accountID, err)
	}
	if err := sc.c.rdb.Set(ctx, sc.key(accountID), raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set settings %s: %w", accountID, err)
	}
	return nil
}

// Invalidate drops the cached settings.
func (sc *SettingsCache) Invalidate(ctx context.Context, accountID string) error {
	if err := sc.c.rdb.Del(ctx, sc.key(accountID)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate settings %s: %w", accountID, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.SettingsCache = (*SettingsCache)(nil)

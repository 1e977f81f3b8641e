package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/vaultbot/internal/domain"
)

// SettingsStore implements domain.SettingsStore using PostgreSQL.
type SettingsStore struct {
	pool *pgxpool.Pool
}

var _ domain.SettingsStore = (*SettingsStore)(nil)

// NewSettingsStore creates a new SettingsStore backed by the given connection pool.
func NewSettingsStore(pool *pgxpool.Pool) *SettingsStore {
	return &SettingsStore{pool: pool}
}

// Get retrieves the saved settings for an account.
func (s *SettingsStore) Get(ctx context.Context, accountID string) (domain.Settings, error) {
	const query = `
		SELECT profit_target, stake, min_probability, vault_threshold
		FROM user_settings WHERE account_id = $1`

	var out domain.Settings
	err := s.pool.QueryRow(ctx, query, accountID).Scan(
		&out.ProfitTarget, &out.Stake, &out.MinProbability, &out.VaultThreshold,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Settings{}, domain.ErrNotFound
		}
		return domain.Settings{}, fmt.Errorf("postgres: get settings %s: %w", accountID, err)
	}
	return out, nil
}

// Upsert inserts or replaces the settings for an account.
func (s *SettingsStore) Upsert(ctx context.Context, accountID string, in domain.Settings) error {
	const query = `
		INSERT INTO user_settings (account_id, profit_target, stake, min_probability, vault_threshold, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (account_id) DO UPDATE SET
			profit_target   = EXCLUDED.profit_target,
			stake           = EXCLUDED.stake,
			min_probability = EXCLUDED.min_probability,
			vault_threshold = EXCLUDED.vault_threshold,
			updated_at      = NOW()`

	_, err := s.pool.Exec(ctx, query, accountID, in.ProfitTarget, in.Stake, in.MinProbability, in.VaultThreshold)
	if err != nil {
		return fmt.Errorf("postgres: upsert settings %s: %w", accountID, err)
	}
	return nil
}

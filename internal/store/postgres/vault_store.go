package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/vaultbot/internal/domain"
)

// VaultStore implements domain.VaultStore using PostgreSQL.
type VaultStore struct {
	pool *pgxpool.Pool
}

var _ domain.VaultStore = (*VaultStore)(nil)

// NewVaultStore creates a new VaultStore backed by the given connection pool.
func NewVaultStore(pool *pgxpool.Pool) *VaultStore {
	return &VaultStore{pool: pool}
}

const vaultSelectCols = `id, account_id, amount, note, created_at`

func scanVaultRows(rows pgx.Rows) ([]domain.VaultSweep, error) {
	var sweeps []domain.VaultSweep
	for rows.Next() {
		var v domain.VaultSweep
		if err := rows.Scan(&v.ID, &v.AccountID, &v.Amount, &v.Note, &v.CreatedAt); err != nil {
			return nil, err
		}
		sweeps = append(sweeps, v)
	}
	return sweeps, rows.Err()
}

// Insert appends a vault sweep. A zero CreatedAt defaults to NOW().
func (s *VaultStore) Insert(ctx context.Context, sweep domain.VaultSweep) error {
	const query = `
		INSERT INTO vault_locks (account_id, amount, note, created_at)
		VALUES ($1, $2, $3, COALESCE($4, NOW()))`

	var createdAt *time.Time
	if !sweep.CreatedAt.IsZero() {
		createdAt = &sweep.CreatedAt
	}
	if _, err := s.pool.Exec(ctx, query, sweep.AccountID, sweep.Amount, sweep.Note, createdAt); err != nil {
		return fmt.Errorf("postgres: insert vault sweep: %w", err)
	}
	return nil
}

// Total returns the sum of every sweep recorded for the account.
func (s *VaultStore) Total(ctx context.Context, accountID string) (float64, error) {
	var total float64
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM vault_locks WHERE account_id = $1`,
		accountID,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("postgres: vault total: %w", err)
	}
	return total, nil
}

// List returns an account's sweeps, newest first.
func (s *VaultStore) List(ctx context.Context, accountID string, opts domain.ListOpts) ([]domain.VaultSweep, error) {
	query, args := listQuery(
		`SELECT `+vaultSelectCols+` FROM vault_locks WHERE account_id = $1`,
		[]any{accountID}, "created_at", opts,
	)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list vault sweeps: %w", err)
	}
	defer rows.Close()

	sweeps, err := scanVaultRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan vault sweeps: %w", err)
	}
	return sweeps, nil
}

// ListBefore returns up to limit sweeps created before the given time, oldest first.
func (s *VaultStore) ListBefore(ctx context.Context, before time.Time, limit int) ([]domain.VaultSweep, error) {
	query := `SELECT ` + vaultSelectCols + ` FROM vault_locks WHERE created_at < $1 ORDER BY created_at ASC`
	args := []any{before}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list vault sweeps before: %w", err)
	}
	defer rows.Close()
	return scanVaultRows(rows)
}

// DeleteBefore removes sweeps created before the given time.
func (s *VaultStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM vault_locks WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete vault sweeps before: %w", err)
	}
	return tag.RowsAffected(), nil
}

package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/vaultbot/internal/domain"
)

// TradeStore implements domain.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *pgxpool.Pool
}

var _ domain.TradeStore = (*TradeStore)(nil)

// NewTradeStore creates a new TradeStore backed by the given connection pool.
func NewTradeStore(pool *pgxpool.Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

const tradeSelectCols = `id, account_id, contract_id, timestamp, instrument,
	direction, stake, payout, profit, result`

func scanTradeRows(rows pgx.Rows) ([]domain.TradeRecord, error) {
	var trades []domain.TradeRecord
	for rows.Next() {
		var (
			t         domain.TradeRecord
			id        uuid.UUID
			direction string
			result    string
		)
		if err := rows.Scan(
			&id, &t.AccountID, &t.ContractID, &t.Timestamp, &t.Instrument,
			&direction, &t.Stake, &t.Payout, &t.Profit, &result,
		); err != nil {
			return nil, err
		}
		t.ID = id.String()
		t.Direction = domain.Direction(direction)
		t.Result = domain.TradeResult(result)
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// Insert writes one settled contract. A second insert for the same account
// and contract is silently skipped via ON CONFLICT DO NOTHING.
func (s *TradeStore) Insert(ctx context.Context, rec domain.TradeRecord) error {
	id, err := uuid.Parse(rec.ID)
	if err != nil {
		id = uuid.New()
	}

	const query = `
		INSERT INTO trade_history (
			id, account_id, contract_id, timestamp, instrument,
			direction, stake, payout, profit, result
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (account_id, contract_id) DO NOTHING`

	_, err = s.pool.Exec(ctx, query,
		id, rec.AccountID, rec.ContractID, rec.Timestamp, rec.Instrument,
		string(rec.Direction), rec.Stake, rec.Payout, rec.Profit, string(rec.Result),
	)
	if err != nil {
		return fmt.Errorf("postgres: insert trade %d: %w", rec.ContractID, err)
	}
	return nil
}

// List returns an account's trades, newest first, with pagination and
// optional time filtering.
func (s *TradeStore) List(ctx context.Context, accountID string, opts domain.ListOpts) ([]domain.TradeRecord, error) {
	query, args := listQuery(
		`SELECT `+tradeSelectCols+` FROM trade_history WHERE account_id = $1`,
		[]any{accountID}, "timestamp", opts,
	)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades: %w", err)
	}
	defer rows.Close()

	trades, err := scanTradeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan trades: %w", err)
	}
	return trades, nil
}

// ListBefore returns up to limit trades with timestamp strictly before the
// given time, oldest first (for archiving). A limit <= 0 returns all rows.
func (s *TradeStore) ListBefore(ctx context.Context, before time.Time, limit int) ([]domain.TradeRecord, error) {
	query := `SELECT ` + tradeSelectCols + ` FROM trade_history WHERE timestamp < $1 ORDER BY timestamp ASC`
	args := []any{before}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades before: %w", err)
	}
	defer rows.Close()
	return scanTradeRows(rows)
}

// DeleteBefore deletes all trades with timestamp before the given time. Returns the number deleted.
func (s *TradeStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM trade_history WHERE timestamp < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete trades before: %w", err)
	}
	return tag.RowsAffected(), nil
}

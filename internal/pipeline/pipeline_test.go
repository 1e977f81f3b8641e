package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextCronTime(t *testing.T) {
	base := time.Date(2026, 10, 19, 14, 7, 30, 0, time.UTC)

	cases := []struct {
		expr string
		want time.Time
	}{
		{"* * * * *", time.Date(2026, 10, 19, 14, 8, 0, 0, time.UTC)},
		{"0 3 1 * *", time.Date(2026, 11, 1, 3, 0, 0, 0, time.UTC)},
		{"*/15 * * * *", time.Date(2026, 10, 19, 14, 15, 0, 0, time.UTC)},
		{"0 9-17 * * 1-5", time.Date(2026, 10, 19, 15, 0, 0, 0, time.UTC)},
		{"30 2 * * 0", time.Date(2026, 10, 25, 2, 30, 0, 0, time.UTC)},
		{"0,30 14 19 10 *", time.Date(2026, 10, 19, 14, 30, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		t.Run(tc.expr, func(t *testing.T) {
			got, err := nextCronTime(tc.expr, base)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseCronRejectsBadInput(t *testing.T) {
	for _, expr := range []string{"", "* * * *", "61 * * * *", "* * 0 * *", "*/0 * * * *", "5-1 * * * *", "x * * * *"} {
		_, err := parseCron(expr)
		assert.Error(t, err, expr)
	}
}

type fakeBlobArchiver struct {
	cutoffs []time.Time
	trades  int64
	sweeps  int64
	failOn  string
}

func (f *fakeBlobArchiver) ArchiveTrades(_ context.Context, before time.Time) (int64, error) {
	f.cutoffs = append(f.cutoffs, before)
	if f.failOn == "trades" {
		return 0, errors.New("boom")
	}
	return f.trades, nil
}

func (f *fakeBlobArchiver) ArchiveVaultSweeps(_ context.Context, before time.Time) (int64, error) {
	f.cutoffs = append(f.cutoffs, before)
	if f.failOn == "vault" {
		return 0, errors.New("boom")
	}
	return f.sweeps, nil
}

func TestArchiverRunUsesRetentionCutoff(t *testing.T) {
	blob := &fakeBlobArchiver{trades: 12, sweeps: 2}
	a := NewArchiver(blob, 90, slog.Default())
	now := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return now }

	res, err := a.Run(context.Background())
	require.NoError(t, err)

	want := now.Add(-90 * 24 * time.Hour)
	assert.Equal(t, want, res.Cutoff)
	assert.Equal(t, int64(12), res.Trades)
	assert.Equal(t, int64(2), res.VaultSweeps)
	assert.Equal(t, []time.Time{want, want}, blob.cutoffs)
}

func TestArchiverRunStopsOnTradeFailure(t *testing.T) {
	blob := &fakeBlobArchiver{failOn: "trades"}
	a := NewArchiver(blob, 30, slog.Default())

	_, err := a.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "archive trades")
	assert.Len(t, blob.cutoffs, 1)
}

func TestRunCronStopsOnCancel(t *testing.T) {
	a := NewArchiver(&fakeBlobArchiver{}, 30, slog.Default())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := a.RunCron(ctx, "0 3 1 * *")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunCronRejectsBadExpression(t *testing.T) {
	a := NewArchiver(&fakeBlobArchiver{}, 30, slog.Default())
	err := a.RunCron(context.Background(), "bad")
	require.Error(t, err)
	assert.NotErrorIs(t, err, context.Canceled)
}

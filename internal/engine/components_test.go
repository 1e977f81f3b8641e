package engine

import (
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alanyoungcy/vaultbot/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRing_EvictsOldestFirst(t *testing.T) {
	r := NewRing[int](3)
	_, ok := r.Last()
	assert.False(t, ok)

	for i := 1; i <= 5; i++ {
		r.Push(i)
	}
	assert.Equal(t, 3, r.Len())
	assert.Equal(t, []int{3, 4, 5}, r.Items())
	last, ok := r.Last()
	require.True(t, ok)
	assert.Equal(t, 5, last)
}

func TestCorrelator_IDsStrictlyIncreasing(t *testing.T) {
	c := NewCorrelator()
	prev := int64(0)
	for i := 0; i < 1000; i++ {
		id := c.NextID()
		require.Greater(t, id, prev)
		prev = id
	}
	assert.Equal(t, int64(1000), prev)

	c.Reset()
	assert.Equal(t, int64(1), c.NextID())
}

func TestCorrelator_TrackResolveFlush(t *testing.T) {
	c := NewCorrelator()
	require.NoError(t, c.Track(7, Intent{Kind: IntentProposal, Instrument: "R_100", Direction: domain.DirectionCall}))
	require.Error(t, c.Track(7, Intent{Kind: IntentProposal}))
	require.NoError(t, c.Track(8, Intent{Kind: IntentBuy}))
	require.NoError(t, c.Track(9, Intent{Kind: IntentSell, ContractID: 101}))
	assert.Equal(t, 2, c.PendingOpens())

	in, ok := c.Resolve(7)
	require.True(t, ok)
	assert.Equal(t, "R_100", in.Instrument)
	_, ok = c.Resolve(7)
	assert.False(t, ok)

	flushed := c.Flush()
	require.Len(t, flushed, 2)
	assert.Equal(t, int64(8), flushed[0].ReqID)
	assert.Equal(t, int64(9), flushed[1].ReqID)
	assert.Zero(t, c.Len())
}

func TestInstrumentFilter(t *testing.T) {
	f := NewInstrumentFilter()
	open := func(sym string) domain.Instrument {
		return domain.Instrument{Symbol: sym, ExchangeIsOpen: true}
	}

	for _, sym := range []string{"R_10", "R_100", "1HZ100V", "RDBULL", "RDBEAR", "BOOM1000", "CRASH500"} {
		assert.True(t, f.Admit(open(sym)), sym)
	}
	for _, sym := range []string{"frxEURUSD", "cryBTCUSD", "JD10", "WLDAUD", "stpRNG"} {
		assert.False(t, f.Admit(open(sym)), sym)
	}

	closed := domain.Instrument{Symbol: "R_100", ExchangeIsOpen: false}
	suspended := domain.Instrument{Symbol: "R_100", ExchangeIsOpen: true, TradingSuspended: true}
	assert.False(t, f.Admit(closed))
	assert.False(t, f.Admit(suspended))

	got := f.AdmitAll([]domain.Instrument{open("frxEURUSD"), open("R_50"), suspended, open("BOOM500")})
	require.Len(t, got, 2)
	assert.Equal(t, "R_50", got[0].Symbol)
	assert.Equal(t, "BOOM500", got[1].Symbol)
}

func TestRandomSource(t *testing.T) {
	s := NewRandomSource(42)
	_, ok := s.Generate(nil)
	assert.False(t, ok)

	insts := []domain.Instrument{{Symbol: "R_10"}, {Symbol: "R_25"}}
	seen := map[domain.Direction]bool{}
	for i := 0; i < 500; i++ {
		sig, ok := s.Generate(insts)
		require.True(t, ok)
		assert.GreaterOrEqual(t, sig.Confidence, 70.0)
		assert.Less(t, sig.Confidence, 95.0)
		assert.Contains(t, []string{"R_10", "R_25"}, sig.Instrument)
		assert.Contains(t, rationales, sig.Rationale)
		seen[sig.Direction] = true
	}
	assert.True(t, seen[domain.DirectionCall])
	assert.True(t, seen[domain.DirectionPut])
}

func TestActivityLog_Bounded(t *testing.T) {
	var emitted int
	a := NewActivityLog(slog.New(slog.NewJSONHandler(io.Discard, nil)), time.Now, func(domain.LogEntry) { emitted++ })

	for i := 0; i < 250; i++ {
		a.Add(domain.SeveritySystem, fmt.Sprintf("entry %d", i))
	}
	entries := a.Entries()
	require.Len(t, entries, ActivityCapacity)
	assert.Equal(t, "entry 50", entries[0].Message)
	assert.Equal(t, "entry 249", entries[len(entries)-1].Message)
	assert.Equal(t, 250, emitted)
	assert.NotEqual(t, entries[0].ID, entries[1].ID)
}

func TestVault_SweepProperty(t *testing.T) {
	profits := []float64{0.4, -0.35, 1.2, 2.5, -0.35, 0.9, 3.1, 0.01, -1.0, 4.75}
	threshold := 3.0

	v := NewVault(10)
	running := decimal.Zero
	vault := decimal.NewFromInt(10)
	for _, p := range profits {
		next := running.Add(decimal.NewFromFloat(p))
		wantSwept := decimal.Zero
		if next.GreaterThanOrEqual(decimal.NewFromFloat(threshold)) {
			wantSwept = next.Floor()
			vault = vault.Add(wantSwept)
			next = next.Sub(wantSwept)
		}
		running = next

		swept, _ := v.Apply(p, threshold)
		assert.True(t, swept.Equal(wantSwept), "profit %v", p)
		assert.InDelta(t, running.InexactFloat64(), v.RunningProfit(), 1e-9)
		assert.InDelta(t, vault.InexactFloat64(), v.Balance(), 1e-9)
		assert.Less(t, v.RunningProfit(), threshold)
	}
}

func TestVault_Scenario(t *testing.T) {
	v := NewVault(0)
	swept, before := v.Apply(1.50, 3)
	assert.True(t, swept.IsZero())
	assert.InDelta(t, 1.50, before.InexactFloat64(), 1e-9)

	swept, before = v.Apply(2.00, 3)
	assert.True(t, swept.Equal(decimal.NewFromInt(3)))
	assert.InDelta(t, 3.50, before.InexactFloat64(), 1e-9)
	assert.InDelta(t, 0.50, v.RunningProfit(), 1e-9)
	assert.InDelta(t, 3.0, v.Balance(), 1e-9)
}

func TestLedger_SettleExactlyOnce(t *testing.T) {
	l := NewLedger()
	require.NoError(t, l.Open(domain.Position{ContractID: 1, Instrument: "R_100", Direction: domain.DirectionPut, Stake: 1}))
	assert.ErrorIs(t, l.Open(domain.Position{ContractID: 1}), domain.ErrDuplicateContract)
	l.Subscribe(1)

	rec, err := l.Settle(Settlement{ContractID: 1, Underlying: "R_100", ContractType: "PUT", Profit: -1, Payout: 0})
	require.NoError(t, err)
	assert.Equal(t, domain.TradeResultLoss, rec.Result)
	assert.Equal(t, domain.DirectionPut, rec.Direction)
	assert.InDelta(t, 1.0, rec.Stake, 1e-9)
	assert.Zero(t, l.OpenCount())
	assert.False(t, l.Subscribed(1))

	_, err = l.Settle(Settlement{ContractID: 1})
	assert.ErrorIs(t, err, domain.ErrUnknownContract)
	assert.Len(t, l.History(), 1)
}

func TestLedger_SeedAssetsReplacesPlaceholderName(t *testing.T) {
	l := NewLedger()
	l.Subscribe(7)
	_, err := l.Settle(Settlement{ContractID: 7, Underlying: "R_50", ContractType: "PUT", Profit: -0.35, BuyPrice: 0.35})
	require.NoError(t, err)

	a, _ := l.Asset("R_50")
	assert.Equal(t, "R_50", a.DisplayName)

	l.SeedAssets([]domain.Instrument{
		{Symbol: "R_50", DisplayName: "Volatility 50 Index"},
		{Symbol: "R_75"},
	})
	a, _ = l.Asset("R_50")
	assert.Equal(t, "Volatility 50 Index", a.DisplayName)
	assert.Equal(t, 1, a.Losses)

	l.SeedAssets([]domain.Instrument{{Symbol: "R_50", DisplayName: "Renamed"}})
	a, _ = l.Asset("R_50")
	assert.Equal(t, "Volatility 50 Index", a.DisplayName)

	b, ok := l.Asset("R_75")
	require.True(t, ok)
	assert.Equal(t, "R_75", b.DisplayName)
}

func TestLedger_WinRateInvariant(t *testing.T) {
	l := NewLedger()
	l.SeedAssets([]domain.Instrument{{Symbol: "R_100", DisplayName: "Volatility 100 Index"}})
	a, ok := l.Asset("R_100")
	require.True(t, ok)
	assert.Equal(t, "Volatility 100 Index", a.DisplayName)
	assert.Zero(t, a.WinRate)

	outcomes := []bool{true, false, true, true, false, true}
	wins := 0
	for i, won := range outcomes {
		id := int64(i + 1)
		l.Subscribe(id)
		profit := -0.35
		if won {
			profit = 0.3
			wins++
		}
		_, err := l.Settle(Settlement{ContractID: id, Underlying: "R_100", ContractType: "CALL", Won: won, Profit: profit, BuyPrice: 0.35})
		require.NoError(t, err)

		a, _ := l.Asset("R_100")
		assert.Equal(t, i+1, a.Wins+a.Losses)
		assert.InDelta(t, float64(wins)/float64(i+1), a.WinRate, 1e-9)
	}
	_, _, cur, best := l.Counters()
	assert.Equal(t, 1, cur)
	assert.Equal(t, 2, best)
}

func TestLedger_StakeFallsBackToPayoutMinusProfit(t *testing.T) {
	l := NewLedger()
	l.Subscribe(5)
	rec, err := l.Settle(Settlement{ContractID: 5, Underlying: "BOOM500", ContractType: "CALLE", Won: true, Profit: 0.3, Payout: 0.65})
	require.NoError(t, err)
	assert.InDelta(t, 0.35, rec.Stake, 1e-9)
	assert.Equal(t, domain.DirectionCall, rec.Direction)
	assert.Equal(t, "BOOM500", rec.Instrument)
}

func TestLedger_HistoryBounded(t *testing.T) {
	l := NewLedger()
	for i := 1; i <= 150; i++ {
		l.Subscribe(int64(i))
		_, err := l.Settle(Settlement{ContractID: int64(i), Underlying: "R_10", Won: true, Profit: 0.1})
		require.NoError(t, err)
		l.RecordProfit(time.Unix(int64(i), 0), float64(i))
	}
	h := l.History()
	require.Len(t, h, historyCapacity)
	assert.Equal(t, int64(51), h[0].ContractID)
	assert.Len(t, l.Timeline(), timelineCapacity)
}

func TestGate(t *testing.T) {
	g := Gate{TradeInterval: 2500 * time.Millisecond, MaxPositions: 3}
	now := time.Now()

	assert.True(t, g.Allow(now, time.Time{}, 1, 0))
	assert.False(t, g.Allow(now, now.Add(-time.Second), 1, 0))
	assert.True(t, g.Allow(now, now.Add(-2500*time.Millisecond), 1, 0))
	assert.False(t, g.Allow(now, time.Time{}, 0, 0))
	assert.False(t, g.Allow(now, time.Time{}, 5, 3))
	assert.True(t, g.Allow(now, time.Time{}, 5, 2))
}

func TestScheduler_TicksUntilStopped(t *testing.T) {
	var ticks atomic.Int32
	s := NewScheduler(5*time.Millisecond, func() { ticks.Add(1) })

	require.True(t, s.Start())
	assert.False(t, s.Start())
	assert.Eventually(t, func() bool { return ticks.Load() >= 3 }, time.Second, time.Millisecond)

	s.Stop()
	assert.False(t, s.Running())
	time.Sleep(20 * time.Millisecond)
	n := ticks.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, n, ticks.Load())
}

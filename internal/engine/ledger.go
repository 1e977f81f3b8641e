package engine

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/alanyoungcy/vaultbot/internal/domain"
	"github.com/google/uuid"
)

const (
	historyCapacity  = 100
	timelineCapacity = 100
)

// Settlement is the terminal state of a contract as seen on its update
// stream.
type Settlement struct {
	ContractID   int64
	Underlying   string
	ContractType string
	Won          bool
	Profit       float64
	Payout       float64
	BuyPrice     float64
	At           time.Time
}

// Ledger is the in-memory portfolio: open positions, the contract
// subscription set and performance aggregates. It is not safe for concurrent
// use; the engine serialises access.
type Ledger struct {
	positions  map[int64]*domain.Position
	subscribed map[int64]struct{}

	assets   map[string]*domain.AssetPerformance
	history  *Ring[domain.TradeRecord]
	timeline *Ring[domain.ProfitPoint]

	wins, losses  int
	currentStreak int
	bestStreak    int
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		positions:  make(map[int64]*domain.Position),
		subscribed: make(map[int64]struct{}),
		assets:     make(map[string]*domain.AssetPerformance),
		history:    NewRing[domain.TradeRecord](historyCapacity),
		timeline:   NewRing[domain.ProfitPoint](timelineCapacity),
	}
}

// Open records a purchased contract.
func (l *Ledger) Open(p domain.Position) error {
	if _, ok := l.positions[p.ContractID]; ok {
		return fmt.Errorf("engine: open contract %d: %w", p.ContractID, domain.ErrDuplicateContract)
	}
	p.Status = domain.PositionStatusOpen
	l.positions[p.ContractID] = &p
	return nil
}

// Position returns the live position for a contract.
func (l *Ledger) Position(id int64) (*domain.Position, bool) {
	p, ok := l.positions[id]
	return p, ok
}

// OpenCount returns the number of live positions.
func (l *Ledger) OpenCount() int { return len(l.positions) }

// Positions returns copies of the live positions ordered by contract id.
func (l *Ledger) Positions() []domain.Position {
	out := make([]domain.Position, 0, len(l.positions))
	for _, p := range l.positions {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ContractID < out[j].ContractID })
	return out
}

// ClearPositions drops every live position and returns their contract ids in
// order. Subscriptions are kept so that late settlements are still recorded.
func (l *Ledger) ClearPositions() []int64 {
	ids := make([]int64, 0, len(l.positions))
	for id := range l.positions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	clear(l.positions)
	return ids
}

// Subscribe marks a contract as streaming updates.
func (l *Ledger) Subscribe(id int64) { l.subscribed[id] = struct{}{} }

// Subscribed reports whether updates for id are expected.
func (l *Ledger) Subscribed(id int64) bool {
	_, ok := l.subscribed[id]
	return ok
}

// ClearSubscriptions forgets every subscription; used when the session ends.
func (l *Ledger) ClearSubscriptions() { clear(l.subscribed) }

// SeedAssets creates empty aggregates for newly tradeable instruments and
// replaces symbol placeholders with the broker's display name.
func (l *Ledger) SeedAssets(instruments []domain.Instrument) {
	for _, inst := range instruments {
		a := l.asset(inst.Symbol)
		if inst.DisplayName != "" && a.DisplayName == a.Instrument {
			a.DisplayName = inst.DisplayName
		}
	}
}

// asset returns the aggregate for symbol, creating it with the symbol as a
// placeholder display name.
func (l *Ledger) asset(symbol string) *domain.AssetPerformance {
	a, ok := l.assets[symbol]
	if !ok {
		a = &domain.AssetPerformance{Instrument: symbol, DisplayName: symbol}
		l.assets[symbol] = a
	}
	return a
}

// Settle applies a terminal update exactly once: it removes the contract from
// both the position and subscription sets, appends a history entry and
// updates the aggregates. Settling a contract that is not subscribed returns
// domain.ErrUnknownContract and changes nothing.
func (l *Ledger) Settle(s Settlement) (domain.TradeRecord, error) {
	if !l.Subscribed(s.ContractID) {
		return domain.TradeRecord{}, fmt.Errorf("engine: settle contract %d: %w", s.ContractID, domain.ErrUnknownContract)
	}

	instrument := s.Underlying
	dir := directionOf(s.ContractType)
	stake := s.BuyPrice
	if p, ok := l.positions[s.ContractID]; ok {
		if p.Instrument != "" {
			instrument = p.Instrument
		}
		if p.Direction != "" {
			dir = p.Direction
		}
		if stake <= 0 {
			stake = p.Stake
		}
	}
	if stake <= 0 {
		stake = s.Payout - s.Profit
	}

	result := domain.TradeResultLoss
	if s.Won {
		result = domain.TradeResultWin
	}
	rec := domain.TradeRecord{
		ID:         uuid.NewString(),
		Timestamp:  s.At,
		Instrument: instrument,
		Direction:  dir,
		Stake:      stake,
		Payout:     s.Payout,
		Profit:     s.Profit,
		Result:     result,
		ContractID: s.ContractID,
	}

	delete(l.positions, s.ContractID)
	delete(l.subscribed, s.ContractID)

	l.history.Push(rec)

	a := l.asset(instrument)
	if s.Won {
		a.Wins++
		l.wins++
		l.currentStreak++
		if l.currentStreak > l.bestStreak {
			l.bestStreak = l.currentStreak
		}
	} else {
		a.Losses++
		l.losses++
		l.currentStreak = 0
	}
	a.TotalProfit += s.Profit
	a.WinRate = float64(a.Wins) / float64(a.Wins+a.Losses)

	return rec, nil
}

// RecordProfit appends a point to the running profit timeline.
func (l *Ledger) RecordProfit(at time.Time, runningProfit float64) {
	l.timeline.Push(domain.ProfitPoint{Time: at, Profit: runningProfit})
}

// Assets returns copies of the aggregates ordered by instrument.
func (l *Ledger) Assets() []domain.AssetPerformance {
	out := make([]domain.AssetPerformance, 0, len(l.assets))
	for _, a := range l.assets {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Instrument < out[j].Instrument })
	return out
}

// Asset returns the aggregate for one instrument.
func (l *Ledger) Asset(symbol string) (domain.AssetPerformance, bool) {
	a, ok := l.assets[symbol]
	if !ok {
		return domain.AssetPerformance{}, false
	}
	return *a, true
}

// History returns the retained trade history, oldest first.
func (l *Ledger) History() []domain.TradeRecord { return l.history.Items() }

// Timeline returns the retained profit timeline, oldest first.
func (l *Ledger) Timeline() []domain.ProfitPoint { return l.timeline.Items() }

// Counters returns wins, losses, the current streak and the best streak.
func (l *Ledger) Counters() (wins, losses, current, best int) {
	return l.wins, l.losses, l.currentStreak, l.bestStreak
}

func directionOf(contractType string) domain.Direction {
	if strings.Contains(strings.ToUpper(contractType), "CALL") {
		return domain.DirectionCall
	}
	return domain.DirectionPut
}

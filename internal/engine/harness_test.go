package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alanyoungcy/vaultbot/internal/domain"
	"github.com/alanyoungcy/vaultbot/internal/platform/deriv"
	"github.com/stretchr/testify/require"
)

type fakeTransport struct {
	mu      sync.Mutex
	sent    []deriv.Request
	sendErr error
	closed  bool
}

func (f *fakeTransport) Send(req deriv.Request) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, req)
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

type fakeDialer struct {
	mu       sync.Mutex
	conns    []*fakeTransport
	handlers []deriv.Handler
	err      error
	sendErr  error
}

func (d *fakeDialer) Dial(_ context.Context, h deriv.Handler) (Transport, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	c := &fakeTransport{sendErr: d.sendErr}
	d.conns = append(d.conns, c)
	d.handlers = append(d.handlers, h)
	return c, nil
}

func (d *fakeDialer) dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}

type fakeRecorder struct {
	trades []domain.TradeRecord
	sweeps []float64
	notes  []string
	err    error
}

func (r *fakeRecorder) RecordTrade(rec domain.TradeRecord) error {
	if r.err != nil {
		return r.err
	}
	r.trades = append(r.trades, rec)
	return nil
}

func (r *fakeRecorder) RecordVaultSweep(amount float64, note string) error {
	if r.err != nil {
		return r.err
	}
	r.sweeps = append(r.sweeps, amount)
	r.notes = append(r.notes, note)
	return nil
}

type mutableSettings struct {
	mu sync.Mutex
	s  domain.Settings
}

func (m *mutableSettings) Current() domain.Settings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s
}

func (m *mutableSettings) set(fn func(*domain.Settings)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(&m.s)
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type eventLog struct {
	events []domain.Event
}

func (l *eventLog) Emit(ev domain.Event) { l.events = append(l.events, ev) }

func (l *eventLog) kinds(kind domain.EventKind) []domain.Event {
	var out []domain.Event
	for _, ev := range l.events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

type harness struct {
	t        *testing.T
	e        *Engine
	dialer   *fakeDialer
	recorder *fakeRecorder
	settings *mutableSettings
	clock    *fakeClock
	events   *eventLog
	signal   domain.Signal
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		t:        t,
		dialer:   &fakeDialer{},
		recorder: &fakeRecorder{},
		settings: &mutableSettings{s: domain.DefaultSettings()},
		clock:    &fakeClock{t: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)},
		events:   &eventLog{},
		signal: domain.Signal{
			Instrument: "R_100",
			Direction:  domain.DirectionCall,
			Confidence: 90,
			Rationale:  "test",
		},
	}
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	h.e = New(Config{
		Token:         "tok",
		TickInterval:  time.Hour,
		TradeInterval: 2500 * time.Millisecond,
		MaxPositions:  3,
	}, Deps{
		Dialer:   h.dialer,
		Settings: h.settings,
		Recorder: h.recorder,
		Source: SignalFunc(func(inst []domain.Instrument) (domain.Signal, bool) {
			if len(inst) == 0 {
				return domain.Signal{}, false
			}
			return h.signal, true
		}),
		Sink:  h.events,
		Clock: h.clock.now,
	}, logger)
	return h
}

func (h *harness) conn() *fakeTransport {
	h.dialer.mu.Lock()
	defer h.dialer.mu.Unlock()
	require.NotEmpty(h.t, h.dialer.conns)
	return h.dialer.conns[len(h.dialer.conns)-1]
}

func (h *harness) handler() deriv.Handler {
	h.dialer.mu.Lock()
	defer h.dialer.mu.Unlock()
	require.NotEmpty(h.t, h.dialer.handlers)
	return h.dialer.handlers[len(h.dialer.handlers)-1]
}

func (h *harness) feed(format string, args ...any) {
	h.handler().OnMessage([]byte(fmt.Sprintf(format, args...)))
}

// connect dials, authorizes and loads R_100, R_50 and a closed forex pair.
func (h *harness) connect() {
	h.t.Helper()
	require.NoError(h.t, h.e.Connect(context.Background()))
	h.feed(`{"msg_type":"authorize","req_id":1,"authorize":{"loginid":"CR1","balance":1000,"currency":"USD"}}`)
	h.feed(`{"msg_type":"active_symbols","req_id":3,"active_symbols":[
		{"symbol":"R_100","display_name":"Volatility 100 Index","exchange_is_open":1,"is_trading_suspended":0},
		{"symbol":"R_50","display_name":"Volatility 50 Index","exchange_is_open":1,"is_trading_suspended":0},
		{"symbol":"frxEURUSD","display_name":"EUR/USD","exchange_is_open":1,"is_trading_suspended":0}
	]}`)
	require.Equal(h.t, domain.PhaseAuthorized, h.e.Phase())
}

func (h *harness) start() {
	h.t.Helper()
	require.NoError(h.t, h.e.Start())
	h.t.Cleanup(h.e.Stop)
}

func (h *harness) tick() {
	h.e.onTick()
}

func sentOf[T deriv.Request](c *fakeTransport) []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []T
	for _, r := range c.sent {
		if v, ok := r.(T); ok {
			out = append(out, v)
		}
	}
	return out
}

// open drives one trade from tick to an open, subscribed position and returns
// the contract id.
func (h *harness) open(contractID int64) {
	h.t.Helper()
	h.clock.advance(3 * time.Second)
	h.tick()
	props := sentOf[*deriv.ProposalRequest](h.conn())
	require.NotEmpty(h.t, props)
	p := props[len(props)-1]

	h.feed(`{"msg_type":"proposal","req_id":%d,"proposal":{"id":"p-%d","ask_price":0.35,"payout":0.68}}`, p.ReqID, contractID)
	buys := sentOf[*deriv.BuyRequest](h.conn())
	require.NotEmpty(h.t, buys)
	b := buys[len(buys)-1]

	h.feed(`{"msg_type":"buy","req_id":%d,"buy":{"contract_id":%d,"buy_price":0.35,"payout":0.68,"balance_after":999.65}}`, b.ReqID, contractID)
}

func (h *harness) settle(contractID int64, status string, profit float64) {
	h.feed(`{"msg_type":"proposal_open_contract","proposal_open_contract":{"contract_id":%d,"underlying":"R_100","contract_type":"CALL","status":%q,"is_sold":1,"profit":%g,"payout":0.68,"buy_price":0.35}}`,
		contractID, status, profit)
}

func countSeverity(entries []domain.LogEntry, sev domain.Severity) int {
	n := 0
	for _, e := range entries {
		if e.Severity == sev {
			n++
		}
	}
	return n
}

func hasMessage(entries []domain.LogEntry, substr string) bool {
	for _, e := range entries {
		if strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}

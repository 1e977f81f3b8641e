package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/alanyoungcy/vaultbot/internal/domain"
)

var errBoom = errors.New("boom")

type fakeTradeStore struct {
	mu       sync.Mutex
	inserted []domain.TradeRecord
	fails    int
}

func (s *fakeTradeStore) Insert(_ context.Context, rec domain.TradeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fails > 0 {
		s.fails--
		return errBoom
	}
	s.inserted = append(s.inserted, rec)
	return nil
}

func (s *fakeTradeStore) List(context.Context, string, domain.ListOpts) ([]domain.TradeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.TradeRecord(nil), s.inserted...), nil
}

func (s *fakeTradeStore) ListBefore(context.Context, time.Time, int) ([]domain.TradeRecord, error) {
	return nil, nil
}

func (s *fakeTradeStore) DeleteBefore(context.Context, time.Time) (int64, error) { return 0, nil }

func (s *fakeTradeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inserted)
}

type fakeVaultStore struct {
	mu     sync.Mutex
	sweeps []domain.VaultSweep
	total  float64
	fail   bool
}

func (s *fakeVaultStore) Insert(_ context.Context, v domain.VaultSweep) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errBoom
	}
	s.sweeps = append(s.sweeps, v)
	return nil
}

func (s *fakeVaultStore) Total(context.Context, string) (float64, error) { return s.total, nil }

func (s *fakeVaultStore) List(context.Context, string, domain.ListOpts) ([]domain.VaultSweep, error) {
	return nil, nil
}

func (s *fakeVaultStore) ListBefore(context.Context, time.Time, int) ([]domain.VaultSweep, error) {
	return nil, nil
}

func (s *fakeVaultStore) DeleteBefore(context.Context, time.Time) (int64, error) { return 0, nil }

type fakeAudit struct {
	mu     sync.Mutex
	events []string
}

func (a *fakeAudit) Log(_ context.Context, event string, _ map[string]any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, event)
	return nil
}

func (a *fakeAudit) List(context.Context, domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, nil
}

func (a *fakeAudit) all() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.events...)
}

type fakeSettingsStore struct {
	saved   map[string]domain.Settings
	getErr  error
	upserts int
}

func (s *fakeSettingsStore) Get(_ context.Context, acct string) (domain.Settings, error) {
	if s.getErr != nil {
		return domain.Settings{}, s.getErr
	}
	v, ok := s.saved[acct]
	if !ok {
		return domain.Settings{}, domain.ErrNotFound
	}
	return v, nil
}

func (s *fakeSettingsStore) Upsert(_ context.Context, acct string, v domain.Settings) error {
	if s.saved == nil {
		s.saved = map[string]domain.Settings{}
	}
	s.saved[acct] = v
	s.upserts++
	return nil
}

type fakeSettingsCache struct {
	entries     map[string]domain.Settings
	invalidated int
}

func (c *fakeSettingsCache) Get(_ context.Context, acct string) (domain.Settings, error) {
	v, ok := c.entries[acct]
	if !ok {
		return domain.Settings{}, domain.ErrNotFound
	}
	return v, nil
}

func (c *fakeSettingsCache) Set(_ context.Context, acct string, v domain.Settings, _ time.Duration) error {
	if c.entries == nil {
		c.entries = map[string]domain.Settings{}
	}
	c.entries[acct] = v
	return nil
}

func (c *fakeSettingsCache) Invalidate(_ context.Context, acct string) error {
	delete(c.entries, acct)
	c.invalidated++
	return nil
}

type published struct {
	channel string
	payload []byte
}

type fakeBus struct {
	mu        sync.Mutex
	published []published
	streamed  []published
	subs      map[string]chan []byte
}

func newFakeBus() *fakeBus {
	return &fakeBus{subs: map[string]chan []byte{}}
}

func (b *fakeBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, published{channel, payload})
	return nil
}

func (b *fakeBus) Subscribe(_ context.Context, channel string) (<-chan []byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan []byte, 8)
	b.subs[channel] = ch
	return ch, nil
}

func (b *fakeBus) StreamAppend(_ context.Context, stream string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.streamed = append(b.streamed, published{stream, payload})
	return nil
}

func (b *fakeBus) StreamRead(context.Context, string, string, int) ([]domain.StreamMessage, error) {
	return nil, nil
}

func (b *fakeBus) channels() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.published))
	for _, p := range b.published {
		out = append(out, p.channel)
	}
	return out
}

func (b *fakeBus) streamCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.streamed)
}

func (b *fakeBus) sub(channel string) chan []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.subs[channel]
}

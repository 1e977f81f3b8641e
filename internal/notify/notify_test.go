package notify

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/vaultbot/internal/domain"
)

type recordingSender struct {
	name   string
	err    error
	titles []string
}

func (r *recordingSender) Send(_ context.Context, title, _ string) error {
	r.titles = append(r.titles, title)
	return r.err
}

func (r *recordingSender) Name() string { return r.name }

func TestNotifierFiltersEvents(t *testing.T) {
	s := &recordingSender{name: "rec"}
	n := NewNotifier([]Sender{s}, []string{"vault_sweep", " panic "}, slog.Default())

	ctx := context.Background()
	require.NoError(t, n.NotifyEvent(ctx, domain.Event{Kind: domain.EventVaultSweep, Payload: domain.VaultSweep{Amount: 3}}))
	require.NoError(t, n.NotifyEvent(ctx, domain.Event{Kind: domain.EventActivity, Payload: domain.LogEntry{Message: "x"}}))
	require.NoError(t, n.NotifyEvent(ctx, domain.Event{Kind: domain.EventPanic, Payload: map[string]any{"contracts": []int64{1}}}))

	assert.Equal(t, []string{"Vault secured", "PANIC close executed"}, s.titles)
	assert.True(t, n.Enabled("panic"))
	assert.False(t, n.Enabled("trade"))
}

func TestNotifierEmptyFilterAllowsAll(t *testing.T) {
	s := &recordingSender{name: "rec"}
	n := NewNotifier([]Sender{s}, nil, slog.Default())
	require.NoError(t, n.Notify(context.Background(), "anything", "t", "m"))
	assert.Len(t, s.titles, 1)
}

func TestNotifierWithoutSendersIsDisabled(t *testing.T) {
	n := NewNotifier(nil, nil, slog.Default())
	assert.False(t, n.Enabled("panic"))
	assert.NoError(t, n.NotifyEvent(context.Background(), domain.Event{Kind: domain.EventPanic}))
}

func TestNotifierCollectsSenderErrors(t *testing.T) {
	bad := &recordingSender{name: "bad", err: errors.New("down")}
	good := &recordingSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, slog.Default())

	err := n.Notify(context.Background(), "panic", "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad: down")
	assert.Len(t, good.titles, 1)
}

func TestFormat(t *testing.T) {
	ts := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

	title, msg := Format(domain.Event{Kind: domain.EventTrade, Timestamp: ts, Payload: domain.TradeRecord{
		ContractID: 42, Instrument: "R_100", Direction: domain.DirectionCall, Profit: -0.35, Result: domain.TradeResultLoss,
	}})
	assert.Equal(t, "Contract LOST", title)
	assert.Contains(t, msg, "#42 R_100 CALL | P/L: -0.35")

	title, msg = Format(domain.Event{Kind: domain.EventDisconnected, Timestamp: ts, Payload: map[string]any{"reason": "eof"}})
	assert.Equal(t, "Broker connection lost", title)
	assert.Contains(t, msg, "reason: eof")

	title, msg = Format(domain.Event{Kind: domain.EventAuthFailed, Timestamp: ts, Payload: errors.New("InvalidToken")})
	assert.Equal(t, "Authorization failed", title)
	assert.Contains(t, msg, "InvalidToken")
}

func TestTelegramSender(t *testing.T) {
	var got map[string]string
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewTelegramSender("tok", "chat-1")
	s.baseURL = srv.URL
	require.NoError(t, s.Send(context.Background(), "Vault secured", "$3.00"))

	assert.Equal(t, "/bottok/sendMessage", path)
	assert.Equal(t, "chat-1", got["chat_id"])
	assert.Equal(t, "*Vault secured*\n$3.00", got["text"])
}

func TestDiscordSenderStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	err := NewDiscordSender(srv.URL).Send(context.Background(), "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 429")
}

package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alanyoungcy/vaultbot/internal/domain"
	"github.com/alanyoungcy/vaultbot/internal/platform/deriv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_ConnectAuthorizesAndDiscovers(t *testing.T) {
	h := newHarness(t)
	h.connect()

	auth := sentOf[*deriv.AuthorizeRequest](h.conn())
	require.Len(t, auth, 1)
	assert.Equal(t, "tok", auth[0].Authorize)
	assert.Equal(t, int64(1), auth[0].ReqID)

	bal := sentOf[*deriv.BalanceRequest](h.conn())
	require.Len(t, bal, 1)
	assert.Equal(t, 1, bal[0].Subscribe)
	assert.Equal(t, int64(2), bal[0].ReqID)

	syms := sentOf[*deriv.ActiveSymbolsRequest](h.conn())
	require.Len(t, syms, 1)
	assert.Equal(t, "brief", syms[0].ActiveSymbols)

	snap := h.e.Snapshot()
	assert.Equal(t, domain.PhaseAuthorized, snap.Phase)
	assert.InDelta(t, 1000, snap.Balance, 1e-9)
	require.Len(t, snap.Instruments, 2)
	assert.Equal(t, "R_100", snap.Instruments[0].Symbol)
	assert.Len(t, snap.Assets, 2)
	assert.True(t, hasMessage(snap.Activity, "Loaded 2 tradeable symbols"))
}

func TestSession_ConnectTwiceIsIgnored(t *testing.T) {
	h := newHarness(t)
	h.connect()
	require.NoError(t, h.e.Connect(context.Background()))
	assert.Equal(t, 1, h.dialer.dials())
	assert.True(t, hasMessage(h.e.Snapshot().Activity, "Already connected"))
}

func TestSession_AuthorizeSendFailureResets(t *testing.T) {
	h := newHarness(t)
	h.dialer.sendErr = errors.New("broken pipe")

	err := h.e.Connect(context.Background())
	require.Error(t, err)
	assert.Equal(t, domain.PhaseDisconnected, h.e.Phase())
	assert.True(t, h.conn().closed)
	assert.True(t, hasMessage(h.e.Snapshot().Activity, "Send failed"))

	h.dialer.sendErr = nil
	require.NoError(t, h.e.Connect(context.Background()))
	assert.Equal(t, 2, h.dialer.dials())
	assert.Equal(t, domain.PhaseConnected, h.e.Phase())
}

func TestSession_DialFailure(t *testing.T) {
	h := newHarness(t)
	h.dialer.err = errors.New("refused")

	err := h.e.Connect(context.Background())
	require.Error(t, err)
	assert.Equal(t, domain.PhaseDisconnected, h.e.Phase())
	assert.True(t, hasMessage(h.e.Snapshot().Activity, "Connection failed"))
}

func TestSession_AuthFailureBlocksStart(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.e.Connect(context.Background()))
	h.feed(`{"msg_type":"authorize","req_id":1,"error":{"code":"InvalidToken","message":"The token is invalid."}}`)

	assert.Equal(t, domain.PhaseConnected, h.e.Phase())
	assert.ErrorIs(t, h.e.Start(), domain.ErrNotAuthorized)
	assert.False(t, h.e.Running())

	snap := h.e.Snapshot()
	assert.True(t, hasMessage(snap.Activity, "Auth failed: The token is invalid."))
	assert.True(t, hasMessage(snap.Activity, "Cannot start: Not authorized"))
	assert.Len(t, h.events.kinds(domain.EventAuthFailed), 1)
}

func TestSession_StartStop(t *testing.T) {
	h := newHarness(t)
	h.connect()

	require.NoError(t, h.e.Start())
	require.NoError(t, h.e.Start())
	assert.True(t, h.e.Running())
	assert.True(t, h.e.sched.Running())

	h.e.Stop()
	assert.False(t, h.e.Running())
	assert.False(t, h.e.sched.Running())
}

func TestSession_TransportLossFlushesPendingAndKeepsPositions(t *testing.T) {
	h := newHarness(t)
	h.settings.set(func(s *domain.Settings) { s.ProfitTarget = 100 })
	h.connect()
	h.start()
	h.open(101)

	h.clock.advance(5 * time.Second)
	h.tick()
	require.Equal(t, 1, h.e.Snapshot().PendingOpens)

	old := h.handler()
	old.OnClose(errors.New("read: connection reset"))

	snap := h.e.Snapshot()
	assert.Equal(t, domain.PhaseDisconnected, snap.Phase)
	assert.False(t, snap.Running)
	assert.False(t, h.e.sched.Running())
	assert.Zero(t, snap.PendingOpens)
	require.Len(t, snap.Positions, 1)
	assert.True(t, hasMessage(snap.Activity, "Abandoned proposal request"))
	assert.True(t, hasMessage(snap.Activity, "Connection lost"))
	assert.Len(t, h.events.kinds(domain.EventDisconnected), 1)

	// Frames from the dead connection are ignored.
	old.OnMessage([]byte(`{"msg_type":"balance","balance":{"balance":1,"currency":"USD"}}`))
	assert.InDelta(t, 999.65, h.e.Snapshot().Balance, 1e-9)

	// Reconnect: identifiers restart and open contracts are re-subscribed.
	h.connect()
	assert.Equal(t, 2, h.dialer.dials())
	assert.Equal(t, int64(1), sentOf[*deriv.AuthorizeRequest](h.conn())[0].ReqID)
	subs := sentOf[*deriv.ContractSubscribeRequest](h.conn())
	require.Len(t, subs, 1)
	assert.Equal(t, int64(101), subs[0].ContractID)

	h.settle(101, "won", 0.3)
	assert.Len(t, h.e.Snapshot().History, 1)
}

func TestSession_DisconnectClosesAndIgnoresLateClose(t *testing.T) {
	h := newHarness(t)
	h.connect()
	h.start()
	conn := h.conn()
	handler := h.handler()

	h.e.Disconnect()
	assert.True(t, conn.closed)
	assert.Equal(t, domain.PhaseDisconnected, h.e.Phase())
	assert.False(t, h.e.Running())

	n := len(h.events.kinds(domain.EventDisconnected))
	handler.OnClose(nil)
	assert.Len(t, h.events.kinds(domain.EventDisconnected), n)

	h.e.Disconnect()
	assert.Len(t, h.events.kinds(domain.EventDisconnected), n)
}

func TestSession_SendWithoutConnection(t *testing.T) {
	h := newHarness(t)
	h.e.mu.Lock()
	err := h.e.sendLocked(deriv.NewBalanceSubscribe(), nil)
	h.e.mu.Unlock()
	assert.ErrorIs(t, err, domain.ErrNotConnected)
}

func TestSession_AutoStart(t *testing.T) {
	h := newHarness(t)
	h.e.cfg.AutoStart = true
	h.connect()
	t.Cleanup(h.e.Stop)
	assert.True(t, h.e.Running())
}

package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/vaultbot/internal/domain"
	"github.com/alanyoungcy/vaultbot/internal/metrics"
	"github.com/alanyoungcy/vaultbot/internal/platform/deriv"
)

// session binds transport callbacks to the connection generation that
// created them, so callbacks from a replaced connection are ignored.
type session struct {
	e   *Engine
	gen uint64
}

func (s *session) OnMessage(raw []byte) { s.e.handleMessage(s.gen, raw) }
func (s *session) OnClose(err error)    { s.e.handleClose(s.gen, err) }

// Connect opens the broker session and authenticates. Calling Connect while a
// session exists is logged and ignored.
func (e *Engine) Connect(ctx context.Context) error {
	e.mu.Lock()
	if e.phase != domain.PhaseDisconnected {
		e.logger.InfoContext(ctx, "connect ignored", slog.String("phase", string(e.phase)))
		e.activity.Add(domain.SeveritySystem, "Already connected")
		e.mu.Unlock()
		return nil
	}
	e.gen++
	gen := e.gen
	e.phase = domain.PhaseConnecting
	e.activity.Add(domain.SeveritySystem, "Initializing WebSocket connection...")
	e.emitStatus()
	e.mu.Unlock()

	conn, err := e.dialer.Dial(ctx, &session{e: e, gen: gen})

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.gen != gen {
		// Disconnected or closed while dialing.
		if err == nil {
			_ = conn.Close()
		}
		return fmt.Errorf("engine: connect: %w", domain.ErrNotConnected)
	}
	if err != nil {
		e.phase = domain.PhaseDisconnected
		e.activity.Add(domain.SeverityError, fmt.Sprintf("Connection failed: %v", err))
		e.emitStatus()
		return fmt.Errorf("engine: connect: %w", err)
	}

	e.conn = conn
	e.phase = domain.PhaseConnected
	e.corr.Reset()
	metrics.WSConnected.Set(1)
	e.activity.Add(domain.SeveritySystem, "WebSocket connected. Authenticating...")
	e.emitStatus()

	if err := e.sendLocked(deriv.NewAuthorize(e.cfg.Token), nil); err != nil {
		e.gen++
		e.resetSessionLocked()
		if cerr := conn.Close(); cerr != nil {
			e.logger.Warn("close transport", slog.String("error", cerr.Error()))
		}
		e.activity.Add(domain.SeveritySystem, "WebSocket disconnected")
		e.emitStatus()
		return fmt.Errorf("engine: connect: authorize: %w", err)
	}
	_ = e.sendLocked(deriv.NewBalanceSubscribe(), nil)
	return nil
}

// Disconnect closes the session and stops the scheduler.
func (e *Engine) Disconnect() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.phase == domain.PhaseDisconnected {
		return
	}
	conn := e.conn
	e.gen++
	e.resetSessionLocked()
	if conn != nil {
		if err := conn.Close(); err != nil {
			e.logger.Warn("close transport", slog.String("error", err.Error()))
		}
	}
	e.activity.Add(domain.SeveritySystem, "WebSocket disconnected")
	e.emit(domain.EventDisconnected, map[string]any{"reason": "requested"})
	e.emitStatus()
}

func (e *Engine) handleClose(gen uint64, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if gen != e.gen {
		return
	}
	e.gen++
	e.resetSessionLocked()

	if err != nil {
		e.activity.Add(domain.SeverityError, fmt.Sprintf("Connection lost: %v", err))
	}
	e.activity.Add(domain.SeveritySystem, "WebSocket disconnected")

	reason := "closed"
	if err != nil {
		reason = err.Error()
	}
	e.emit(domain.EventDisconnected, map[string]any{"reason": reason})
	e.emitStatus()
}

// resetSessionLocked returns to the disconnected phase. Pending requests can
// never be answered on a new socket, so they are flushed and each is logged;
// server-side subscriptions died with the socket. Positions are kept and
// re-subscribed after the next authorization.
func (e *Engine) resetSessionLocked() {
	e.conn = nil
	e.phase = domain.PhaseDisconnected
	e.stopLocked()

	for _, p := range e.corr.Flush() {
		e.activity.Add(domain.SeverityError, abandonedMessage(p))
	}
	e.ledger.ClearSubscriptions()
	metrics.WSConnected.Set(0)
	e.syncGauges()
}

func abandonedMessage(p Pending) string {
	switch p.Kind {
	case IntentSell:
		return fmt.Sprintf("Abandoned sell request #%d for contract #%d", p.ReqID, p.ContractID)
	default:
		return fmt.Sprintf("Abandoned %s request #%d: %s %s", p.Kind, p.ReqID, p.Instrument, p.Direction)
	}
}

// sendLocked stamps req with the next identifier, tracks intent when given
// and writes it. A failed write untracks the request and is logged.
func (e *Engine) sendLocked(req deriv.Request, intent *Intent) error {
	if e.conn == nil {
		err := fmt.Errorf("engine: send: %w", domain.ErrNotConnected)
		e.activity.Add(domain.SeverityError, fmt.Sprintf("Send failed: %v", err))
		return err
	}

	id := e.corr.NextID()
	req.SetReqID(id)
	if intent != nil {
		intent.SentAt = e.now()
		if err := e.corr.Track(id, *intent); err != nil {
			return err
		}
	}

	if err := e.conn.Send(req); err != nil {
		e.corr.Resolve(id)
		e.activity.Add(domain.SeverityError, fmt.Sprintf("Send failed: %v", err))
		e.syncGauges()
		return fmt.Errorf("engine: send: %w", err)
	}

	kind := "control"
	if intent != nil {
		kind = string(intent.Kind)
	}
	metrics.RequestsSent.WithLabelValues(kind).Inc()
	e.syncGauges()
	return nil
}

func (e *Engine) syncGauges() {
	metrics.OpenPositions.Set(float64(e.ledger.OpenCount()))
	metrics.PendingRequests.Set(float64(e.corr.Len()))
	metrics.RunningProfit.Set(e.vault.RunningProfit())
	metrics.VaultBalance.Set(e.vault.Balance())
}

func (e *Engine) handleMessage(gen uint64, raw []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if gen != e.gen {
		metrics.MessagesDropped.WithLabelValues("stale").Inc()
		return
	}

	msg, err := deriv.Decode(raw)
	if err != nil {
		reason := "malformed"
		if errors.Is(err, domain.ErrUnknownMessage) {
			reason = "unknown"
		}
		metrics.MessagesDropped.WithLabelValues(reason).Inc()
		e.dropMalformedLocked(err)
		return
	}

	switch m := msg.(type) {
	case *deriv.AuthorizeResponse:
		metrics.MessagesReceived.WithLabelValues("authorize").Inc()
		e.onAuthorize(m)
	case *deriv.BalanceResponse:
		metrics.MessagesReceived.WithLabelValues("balance").Inc()
		e.onBalance(m)
	case *deriv.ActiveSymbolsResponse:
		metrics.MessagesReceived.WithLabelValues("active_symbols").Inc()
		e.onActiveSymbols(m)
	case *deriv.ProposalResponse:
		metrics.MessagesReceived.WithLabelValues("proposal").Inc()
		e.onProposal(m)
	case *deriv.BuyResponse:
		metrics.MessagesReceived.WithLabelValues("buy").Inc()
		e.onBuy(m)
	case *deriv.ContractUpdate:
		metrics.MessagesReceived.WithLabelValues("proposal_open_contract").Inc()
		e.onContractUpdate(m)
	case *deriv.SellResponse:
		metrics.MessagesReceived.WithLabelValues("sell").Inc()
		e.onSell(m)
	}
}

// dropMalformedLocked logs an undecodable frame. When the frame answered a
// tracked request, that request is released so the attempt cannot hold a
// concurrency slot forever.
func (e *Engine) dropMalformedLocked(err error) {
	var me *deriv.MalformedError
	if errors.As(err, &me) && me.Header.ReqID != 0 {
		if in, ok := e.corr.Resolve(me.Header.ReqID); ok {
			e.syncGauges()
			e.activity.Add(domain.SeverityError, fmt.Sprintf("Malformed %s response: req_id %d (%s request dropped)",
				me.Header.MsgType, me.Header.ReqID, in.Kind))
			return
		}
	}
	e.activity.Add(domain.SeverityError, fmt.Sprintf("Parse error: %v", err))
}

func (e *Engine) onAuthorize(m *deriv.AuthorizeResponse) {
	if apiErr := m.Err(); apiErr != nil {
		e.activity.Add(domain.SeverityError, fmt.Sprintf("Auth failed: %s", apiErr.Message))
		e.emit(domain.EventAuthFailed, apiErr)
		return
	}

	e.phase = domain.PhaseAuthorized
	e.balance = m.Balance
	if m.Currency != "" {
		e.currency = m.Currency
	}
	e.activity.Add(domain.SeveritySystem,
		fmt.Sprintf("Authorized: %s | Balance: $%.2f", m.LoginID, m.Balance))
	e.emitStatus()

	_ = e.sendLocked(deriv.NewActiveSymbols(), nil)

	for _, p := range e.ledger.Positions() {
		if err := e.sendLocked(deriv.NewContractSubscribe(p.ContractID), nil); err == nil {
			e.ledger.Subscribe(p.ContractID)
		}
	}

	if e.cfg.AutoStart {
		_ = e.startLocked()
	}
}

func (e *Engine) onBalance(m *deriv.BalanceResponse) {
	if apiErr := m.Err(); apiErr != nil {
		e.activity.Add(domain.SeverityError, fmt.Sprintf("Balance error: %s", apiErr.Message))
		return
	}
	e.balance = m.Balance
	if m.Currency != "" {
		e.currency = m.Currency
	}
}

func (e *Engine) onActiveSymbols(m *deriv.ActiveSymbolsResponse) {
	if apiErr := m.Err(); apiErr != nil {
		e.activity.Add(domain.SeverityError, fmt.Sprintf("Instrument discovery failed: %s", apiErr.Message))
		return
	}
	e.instruments = e.filter.AdmitAll(m.Symbols)
	e.ledger.SeedAssets(e.instruments)
	e.activity.Add(domain.SeveritySystem, fmt.Sprintf("Loaded %d tradeable symbols", len(e.instruments)))
}

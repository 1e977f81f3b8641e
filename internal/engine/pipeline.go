package engine

import (
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/vaultbot/internal/domain"
	"github.com/alanyoungcy/vaultbot/internal/metrics"
	"github.com/alanyoungcy/vaultbot/internal/platform/deriv"
)

// onTick runs on every scheduler tick. Settings are re-read each time so
// changes apply from the next tick.
func (e *Engine) onTick() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tickLocked()
}

func (e *Engine) tickLocked() {
	if !e.running || e.phase != domain.PhaseAuthorized {
		return
	}
	now := e.now()
	open := e.ledger.OpenCount() + e.corr.PendingOpens()
	if !e.gate.Allow(now, e.lastTrade, len(e.instruments), open) {
		return
	}

	sig, ok := e.source.Generate(e.instruments)
	if !ok {
		return
	}
	e.currentSignal = &sig

	settings := e.settings.Current()
	if sig.Confidence < settings.MinProbability {
		e.logger.Debug("signal below threshold",
			slog.String("instrument", sig.Instrument),
			slog.Float64("confidence", sig.Confidence),
			slog.Float64("min_probability", settings.MinProbability),
		)
		return
	}

	e.activity.Add(domain.SeveritySignal, fmt.Sprintf("Signal: %s %s @ %.0f%% - %s",
		sig.Direction, sig.Instrument, sig.Confidence, sig.Rationale))

	req := deriv.NewProposal(sig.Instrument, string(sig.Direction), e.currency, settings.Stake)
	intent := &Intent{
		Kind:       IntentProposal,
		Instrument: sig.Instrument,
		Direction:  sig.Direction,
		Stake:      settings.Stake,
	}
	if err := e.sendLocked(req, intent); err != nil {
		return
	}
	e.lastTrade = now
}

// resolveLocked matches a response to its pending request. Responses nobody
// is waiting for are logged and dropped.
func (e *Engine) resolveLocked(msgType string, reqID int64, want IntentKind) (Intent, bool) {
	in, ok := e.corr.Resolve(reqID)
	e.syncGauges()
	if !ok {
		metrics.MessagesDropped.WithLabelValues("uncorrelated").Inc()
		e.activity.Add(domain.SeverityError, fmt.Sprintf("Unexpected %s response: req_id %d", msgType, reqID))
		return Intent{}, false
	}
	if in.Kind != want {
		metrics.MessagesDropped.WithLabelValues("uncorrelated").Inc()
		e.activity.Add(domain.SeverityError,
			fmt.Sprintf("Unexpected %s response: req_id %d was a %s request", msgType, reqID, in.Kind))
		return Intent{}, false
	}
	return in, true
}

func (e *Engine) onProposal(m *deriv.ProposalResponse) {
	in, ok := e.resolveLocked("proposal", m.RequestID(), IntentProposal)
	if !ok {
		return
	}
	if apiErr := m.Err(); apiErr != nil {
		e.activity.Add(domain.SeverityError, fmt.Sprintf("Proposal error: %s", apiErr.Message))
		return
	}

	e.activity.Add(domain.SeverityTrade, fmt.Sprintf("Proposal received: %s %s @ $%.2f",
		in.Instrument, in.Direction, m.AskPrice))

	_ = e.sendLocked(deriv.NewBuy(m.ProposalID, m.AskPrice), &Intent{
		Kind:       IntentBuy,
		Instrument: in.Instrument,
		Direction:  in.Direction,
		Stake:      m.AskPrice,
	})
}

func (e *Engine) onBuy(m *deriv.BuyResponse) {
	in, ok := e.corr.Peek(m.RequestID())
	if ok && in.Kind == IntentBuy {
		e.corr.Resolve(m.RequestID())
	} else {
		// Another kind's request under this id stays pending.
		ok = false
		metrics.MessagesDropped.WithLabelValues("uncorrelated").Inc()
		e.activity.Add(domain.SeverityError, fmt.Sprintf("Unexpected buy response: req_id %d", m.RequestID()))
	}
	e.syncGauges()
	if apiErr := m.Err(); apiErr != nil {
		e.activity.Add(domain.SeverityError, fmt.Sprintf("Buy error: %s", apiErr.Message))
		return
	}
	if !ok {
		// Unmatched purchases are still tracked.
		in = Intent{Kind: IntentBuy}
	}

	stake := m.BuyPrice
	if stake <= 0 {
		stake = in.Stake
	}
	pos := domain.Position{
		ContractID: m.ContractID,
		Instrument: in.Instrument,
		Direction:  in.Direction,
		Stake:      stake,
		Payout:     m.Payout,
		OpenedAt:   e.now(),
		UpdatedAt:  e.now(),
	}
	if err := e.ledger.Open(pos); err != nil {
		e.activity.Add(domain.SeverityError, err.Error())
		e.syncGauges()
		return
	}
	e.balance = m.BalanceAfter
	e.activity.Add(domain.SeverityTrade, fmt.Sprintf("Contract purchased: #%d | Cost: $%.2f", m.ContractID, m.BuyPrice))

	if err := e.sendLocked(deriv.NewContractSubscribe(m.ContractID), nil); err == nil {
		e.ledger.Subscribe(m.ContractID)
	}
	e.syncGauges()
}

func (e *Engine) onContractUpdate(u *deriv.ContractUpdate) {
	if apiErr := u.Err(); apiErr != nil {
		e.activity.Add(domain.SeverityError, fmt.Sprintf("Contract update error: %s", apiErr.Message))
		return
	}
	if !e.ledger.Subscribed(u.ContractID) {
		// Already settled, or never ours.
		metrics.MessagesDropped.WithLabelValues("unsubscribed").Inc()
		e.logger.Debug("contract update ignored", slog.Int64("contract_id", u.ContractID))
		return
	}

	if u.Terminal() {
		e.settleLocked(u)
		return
	}

	pos, ok := e.ledger.Position(u.ContractID)
	if !ok {
		return
	}
	pos.Profit = u.Profit
	pos.EntrySpot = u.EntrySpot
	pos.CurrentSpot = u.CurrentSpot
	pos.UpdatedAt = e.now()
	if pos.Instrument == "" {
		pos.Instrument = u.Underlying
	}
	if pos.Direction == "" && u.ContractType != "" {
		pos.Direction = directionOf(u.ContractType)
	}

	settings := e.settings.Current()
	if u.Profit >= settings.ProfitTarget && u.IsValidToSell && !pos.ExitRequested {
		pos.ExitRequested = true
		metrics.FastExits.Inc()
		e.activity.Add(domain.SeverityTrade, fmt.Sprintf("Fast-collect triggered: #%d @ +$%.2f", u.ContractID, u.Profit))
		_ = e.sendLocked(deriv.NewSell(u.ContractID), &Intent{
			Kind:       IntentSell,
			Instrument: pos.Instrument,
			Direction:  pos.Direction,
			ContractID: u.ContractID,
		})
	}
}

// settleLocked applies a terminal update: ledger, vault and persistence in one
// critical section.
func (e *Engine) settleLocked(u *deriv.ContractUpdate) {
	now := e.now()
	rec, err := e.ledger.Settle(Settlement{
		ContractID:   u.ContractID,
		Underlying:   u.Underlying,
		ContractType: u.ContractType,
		Won:          u.Won(),
		Profit:       u.Profit,
		Payout:       u.Payout,
		BuyPrice:     u.BuyPrice,
		At:           now,
	})
	if err != nil {
		e.logger.Debug("settlement ignored", slog.String("error", err.Error()))
		return
	}

	settings := e.settings.Current()
	swept, before := e.vault.Apply(rec.Profit, settings.VaultThreshold)
	e.ledger.RecordProfit(now, before.InexactFloat64())

	metrics.Settlements.WithLabelValues(string(rec.Result)).Inc()
	if err := e.recorder.RecordTrade(rec); err != nil {
		e.activity.Add(domain.SeverityError, fmt.Sprintf("Failed to record trade #%d: %v", rec.ContractID, err))
	}
	e.emit(domain.EventTrade, rec)

	if swept.IsPositive() {
		amount := swept.InexactFloat64()
		metrics.VaultSweeps.Inc()
		e.activity.Add(domain.SeverityVault,
			fmt.Sprintf("Vault secured: $%.2f | Total vault: $%.2f", amount, e.vault.Balance()))
		if err := e.recorder.RecordVaultSweep(amount, VaultNote); err != nil {
			e.activity.Add(domain.SeverityError, fmt.Sprintf("Failed to record vault sweep: %v", err))
		}
		e.emit(domain.EventVaultSweep, domain.VaultSweep{Amount: amount, Note: VaultNote, CreatedAt: now})
	}

	outcome, sign := "LOST", ""
	if rec.Result == domain.TradeResultWin {
		outcome = "WON"
	}
	if rec.Profit >= 0 {
		sign = "+"
	}
	e.activity.Add(domain.SeverityTrade,
		fmt.Sprintf("Contract %s: #%d | P/L: %s$%.2f", outcome, rec.ContractID, sign, rec.Profit))
	e.syncGauges()
}

func (e *Engine) onSell(m *deriv.SellResponse) {
	in, ok := e.resolveLocked("sell", m.RequestID(), IntentSell)
	if !ok {
		return
	}
	if apiErr := m.Err(); apiErr != nil {
		e.activity.Add(domain.SeverityError, fmt.Sprintf("Sell error: #%d: %s", in.ContractID, apiErr.Message))
		return
	}
	e.balance = m.BalanceAfter
	e.activity.Add(domain.SeverityTrade, fmt.Sprintf("Contract sold: #%d | Received: $%.2f", m.ContractID, m.SoldFor))
}

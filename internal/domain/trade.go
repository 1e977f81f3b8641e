package domain

import "time"

// TradeResult is the outcome of a settled contract.
type TradeResult string

const (
	TradeResultWin  TradeResult = "win"
	TradeResultLoss TradeResult = "loss"
)

// TradeRecord is the immutable history entry written once per settled
// contract.
type TradeRecord struct {
	ID         string      `json:"id"`
	Timestamp  time.Time   `json:"timestamp"`
	Instrument string      `json:"instrument"`
	Direction  Direction   `json:"direction"`
	Stake      float64     `json:"stake"`
	Payout     float64     `json:"payout"`
	Profit     float64     `json:"profit"`
	Result     TradeResult `json:"result"`
	ContractID int64       `json:"contract_id"`
	AccountID  string      `json:"account_id,omitempty"`
}

// AssetPerformance aggregates settled contracts for one instrument.
type AssetPerformance struct {
	Instrument  string  `json:"instrument"`
	DisplayName string  `json:"display_name"`
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
	TotalProfit float64 `json:"total_profit"`
	WinRate     float64 `json:"win_rate"` // wins / (wins + losses)
}

// ProfitPoint is one sample of the running profit timeline.
type ProfitPoint struct {
	Time   time.Time `json:"time"`
	Profit float64   `json:"profit"`
}

// VaultSweep is a durable record of profit moved into the vault.
type VaultSweep struct {
	ID        int64     `json:"id"`
	AccountID string    `json:"account_id"`
	Amount    float64   `json:"amount"`
	Note      string    `json:"note"`
	CreatedAt time.Time `json:"created_at"`
}

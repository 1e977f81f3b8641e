package domain

import "time"

// Phase is the connection session phase.
type Phase string

const (
	PhaseDisconnected Phase = "disconnected"
	PhaseConnecting   Phase = "connecting"
	PhaseConnected    Phase = "connected"
	PhaseAuthorized   Phase = "authorized"
)

// EngineSnapshot is a consistent, copied view of the engine state for
// read-only observers.
type EngineSnapshot struct {
	Phase         Phase              `json:"phase"`
	Running       bool               `json:"running"`
	Balance       float64            `json:"balance"`
	Currency      string             `json:"currency"`
	RunningProfit float64            `json:"running_profit"`
	VaultBalance  float64            `json:"vault_balance"`
	Wins          int                `json:"wins"`
	Losses        int                `json:"losses"`
	CurrentStreak int                `json:"current_streak"`
	BestStreak    int                `json:"best_streak"`
	PendingOpens  int                `json:"pending_opens"`
	Instruments   []Instrument       `json:"instruments"`
	Positions     []Position         `json:"positions"`
	Assets        []AssetPerformance `json:"assets"`
	History       []TradeRecord      `json:"history"`
	Timeline      []ProfitPoint      `json:"timeline"`
	Activity      []LogEntry         `json:"activity"`
	CurrentSignal *Signal            `json:"current_signal,omitempty"`
	LastTradeAt   time.Time          `json:"last_trade_at"`
	Settings      Settings           `json:"settings"`
}

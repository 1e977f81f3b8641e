package domain

import "time"

// PositionStatus tracks the lifecycle of an active contract.
type PositionStatus string

const (
	PositionStatusOpen PositionStatus = "open"
)

// Position is a purchased contract that has not settled yet.
type Position struct {
	ContractID    int64          `json:"contract_id"`
	Instrument    string         `json:"instrument"`
	Direction     Direction      `json:"direction"`
	Stake         float64        `json:"stake"`
	Payout        float64        `json:"payout"`
	Status        PositionStatus `json:"status"`
	Profit        float64        `json:"profit"`
	EntrySpot     float64        `json:"entry_spot"`
	CurrentSpot   float64        `json:"current_spot"`
	ExitRequested bool           `json:"exit_requested"`
	OpenedAt      time.Time      `json:"opened_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

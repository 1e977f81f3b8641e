package domain

// Direction is the side of a binary contract.
type Direction string

const (
	DirectionCall Direction = "CALL"
	DirectionPut  Direction = "PUT"
)

// Signal is a candidate trade produced by a signal source. It is consumed
// immediately by the execution pipeline or discarded; it is never persisted.
type Signal struct {
	Instrument string    `json:"instrument"`
	Direction  Direction `json:"direction"`
	Confidence float64   `json:"confidence"` // 0-100
	Rationale  string    `json:"rationale"`
}

// Settings are the live-reloadable trading parameters.
type Settings struct {
	ProfitTarget   float64 `json:"profit_target"`   // fast-exit trigger, dollars
	Stake          float64 `json:"stake"`           // dollars per trade
	MinProbability float64 `json:"min_probability"` // 0-100, signal admission threshold
	VaultThreshold float64 `json:"vault_threshold"` // dollars, sweep trigger
}

// DefaultSettings are used until the account saves its own.
func DefaultSettings() Settings {
	return Settings{
		ProfitTarget:   0.35,
		Stake:          0.35,
		MinProbability: 75,
		VaultThreshold: 3,
	}
}

// Validate returns ErrInvalidSettings when any field is out of range.
func (s Settings) Validate() error {
	switch {
	case s.ProfitTarget <= 0:
		return ErrInvalidSettings
	case s.Stake <= 0:
		return ErrInvalidSettings
	case s.MinProbability < 0 || s.MinProbability > 100:
		return ErrInvalidSettings
	case s.VaultThreshold < 1:
		// Sweeps move whole dollars; a sub-dollar threshold could never
		// bring running profit back under it.
		return ErrInvalidSettings
	}
	return nil
}

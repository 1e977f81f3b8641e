package engine

import "github.com/shopspring/decimal"

// VaultNote annotates automatic sweeps.
const VaultNote = "Auto-locked from profit threshold"

// Vault holds realised running profit and the swept vault balance. Whenever a
// settlement leaves running profit at or above the threshold, the whole-dollar
// part moves into the vault.
type Vault struct {
	running decimal.Decimal
	balance decimal.Decimal
}

// NewVault returns a vault starting at the persisted total.
func NewVault(initial float64) *Vault {
	return &Vault{balance: decimal.NewFromFloat(initial)}
}

// Apply adds one settlement's profit and sweeps if the threshold is reached.
// It returns the swept amount (zero when nothing moved) and the running
// profit as it stood before the sweep.
func (v *Vault) Apply(profit, threshold float64) (swept, before decimal.Decimal) {
	v.running = v.running.Add(decimal.NewFromFloat(profit))
	before = v.running
	if v.running.LessThan(decimal.NewFromFloat(threshold)) {
		return decimal.Zero, before
	}
	swept = v.running.Floor()
	if !swept.IsPositive() {
		return decimal.Zero, before
	}
	v.balance = v.balance.Add(swept)
	v.running = v.running.Sub(swept)
	return swept, before
}

// RunningProfit returns the unswept profit.
func (v *Vault) RunningProfit() float64 { return v.running.InexactFloat64() }

// Balance returns the vault balance.
func (v *Vault) Balance() float64 { return v.balance.InexactFloat64() }

package engine

import (
	"math/rand/v2"

	"github.com/alanyoungcy/vaultbot/internal/domain"
)

// SignalSource proposes a trade from the admitted instruments, or nothing.
type SignalSource interface {
	Generate(instruments []domain.Instrument) (domain.Signal, bool)
}

var rationales = []string{
	"Momentum divergence detected",
	"Mean reversion signal",
	"Trend continuation pattern",
	"Volatility breakout imminent",
	"Support level bounce expected",
	"Resistance rejection forming",
}

// RandomSource is a placeholder source: uniform instrument, uniform direction
// and an integer confidence in [70, 95). It is not safe for concurrent use.
type RandomSource struct {
	rng *rand.Rand
}

// NewRandomSource returns a RandomSource seeded from seed.
func NewRandomSource(seed uint64) *RandomSource {
	return &RandomSource{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Generate implements SignalSource.
func (s *RandomSource) Generate(instruments []domain.Instrument) (domain.Signal, bool) {
	if len(instruments) == 0 {
		return domain.Signal{}, false
	}
	inst := instruments[s.rng.IntN(len(instruments))]
	dir := domain.DirectionCall
	if s.rng.IntN(2) == 1 {
		dir = domain.DirectionPut
	}
	return domain.Signal{
		Instrument: inst.Symbol,
		Direction:  dir,
		Confidence: float64(70 + s.rng.IntN(25)),
		Rationale:  rationales[s.rng.IntN(len(rationales))],
	}, true
}

// SignalFunc adapts a function to SignalSource.
type SignalFunc func(instruments []domain.Instrument) (domain.Signal, bool)

// Generate implements SignalSource.
func (f SignalFunc) Generate(instruments []domain.Instrument) (domain.Signal, bool) {
	return f(instruments)
}

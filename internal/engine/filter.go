package engine

import (
	"regexp"

	"github.com/alanyoungcy/vaultbot/internal/domain"
)

// supportedFamilies matches continuous volatility indices, their 1-second
// variants, bull/bear daily reset indices and boom/crash indices.
var supportedFamilies = []*regexp.Regexp{
	regexp.MustCompile(`^(R_|1HZ|RDBULL|RDBEAR)`),
	regexp.MustCompile(`^(BOOM|CRASH)`),
}

// InstrumentFilter admits synthetic indices that are open for trading.
type InstrumentFilter struct {
	families []*regexp.Regexp
}

// NewInstrumentFilter returns a filter over the supported index families.
func NewInstrumentFilter() *InstrumentFilter {
	return &InstrumentFilter{families: supportedFamilies}
}

// Admit reports whether inst may be traded.
func (f *InstrumentFilter) Admit(inst domain.Instrument) bool {
	if !inst.Tradeable() {
		return false
	}
	for _, re := range f.families {
		if re.MatchString(inst.Symbol) {
			return true
		}
	}
	return false
}

// AdmitAll returns the admitted subset of all, preserving order.
func (f *InstrumentFilter) AdmitAll(all []domain.Instrument) []domain.Instrument {
	out := make([]domain.Instrument, 0, len(all))
	for _, inst := range all {
		if f.Admit(inst) {
			out = append(out, inst)
		}
	}
	return out
}

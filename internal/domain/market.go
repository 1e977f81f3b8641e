package domain

// Instrument is a tradeable symbol as reported by instrument discovery.
type Instrument struct {
	Symbol           string `json:"symbol"`
	DisplayName      string `json:"display_name"`
	Market           string `json:"market"`
	Submarket        string `json:"submarket"`
	ExchangeIsOpen   bool   `json:"exchange_is_open"`
	TradingSuspended bool   `json:"trading_suspended"`
}

// Tradeable reports whether the venue currently accepts orders for the
// instrument.
func (i Instrument) Tradeable() bool {
	return i.ExchangeIsOpen && !i.TradingSuspended
}

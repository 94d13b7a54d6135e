package types

// AccountSnapshot is the account state supplied by the broker collaborator.
// It is a read-only input; the core never mutates it.
type AccountSnapshot struct {
	// PortfolioValue is the total value of cash plus open positions
	PortfolioValue float64 `json:"portfolio_value" yaml:"portfolio_value"`
	// Cash is the available cash balance
	Cash float64 `json:"cash" yaml:"cash"`
	// Equity is the current equity
	Equity float64 `json:"equity" yaml:"equity"`
	// LastEquity is the equity at the previous close, used for daily P&L
	LastEquity float64 `json:"last_equity" yaml:"last_equity"`
}

// DailyPnL returns today's profit or loss relative to the previous close.
func (a AccountSnapshot) DailyPnL() float64 {
	return a.PortfolioValue - a.LastEquity
}

// Position is a read-only snapshot of one open broker position.
type Position struct {
	// Symbol is the ticker of the position
	Symbol string `json:"symbol" yaml:"symbol"`
	// Quantity is the signed share count, negative for shorts
	Quantity float64 `json:"quantity" yaml:"quantity"`
	// AvgEntryPrice is the average cost basis per share
	AvgEntryPrice float64 `json:"avg_entry_price" yaml:"avg_entry_price"`
	// CurrentPrice is the latest known market price
	CurrentPrice float64 `json:"current_price" yaml:"current_price"`
	// UnrealizedPnL is the open profit or loss of the position
	UnrealizedPnL float64 `json:"unrealized_pnl" yaml:"unrealized_pnl"`
}

// IsLong reports whether the position quantity is positive.
func (p Position) IsLong() bool {
	return p.Quantity > 0
}

// MarketValue returns the absolute dollar exposure of the position.
func (p Position) MarketValue() float64 {
	v := p.Quantity * p.CurrentPrice
	if v < 0 {
		return -v
	}

	return v
}

package types

// RiskLevel is the ordinal severity attached to a validated trade or
// portfolio state.
type RiskLevel string

const (
	RiskLevelLow      RiskLevel = "LOW"
	RiskLevelMedium   RiskLevel = "MEDIUM"
	RiskLevelHigh     RiskLevel = "HIGH"
	RiskLevelCritical RiskLevel = "CRITICAL"
)

// RiskLimits is the risk manager configuration. It is immutable after load;
// updates replace the whole struct.
type RiskLimits struct {
	// MaxPositionSize is the maximum dollar size of a single position
	MaxPositionSize float64 `json:"max_position_size" yaml:"max_position_size" validate:"required,gt=0"`
	// MaxPortfolioRisk is the fraction of portfolio value risked per trade
	MaxPortfolioRisk float64 `json:"max_portfolio_risk" yaml:"max_portfolio_risk" validate:"required,gt=0,lte=1"`
	// MaxDailyLoss is the maximum tolerated daily loss as a fraction of portfolio value
	MaxDailyLoss float64 `json:"max_daily_loss" yaml:"max_daily_loss" validate:"required,gt=0,lte=1"`
	// MaxPositions is the maximum number of open positions
	MaxPositions int `json:"max_positions" yaml:"max_positions" validate:"required,gt=0"`
	// MaxCorrelation is the maximum tolerated correlation proxy for a new buy
	MaxCorrelation float64 `json:"max_correlation" yaml:"max_correlation" validate:"required,gt=0,lte=1"`
	// StopLossPct is the stop-loss distance as a fraction of entry price
	StopLossPct float64 `json:"stop_loss_pct" yaml:"stop_loss_pct" validate:"required,gt=0,lt=1"`
	// TakeProfitPct is the take-profit distance as a fraction of entry price
	TakeProfitPct float64 `json:"take_profit_pct" yaml:"take_profit_pct" validate:"required,gt=0"`
	// MaxSectorExposure is the maximum fraction of portfolio value in one sector
	MaxSectorExposure float64 `json:"max_sector_exposure" yaml:"max_sector_exposure" validate:"required,gt=0,lte=1"`
	// MaxSinglePositionPct is the maximum fraction of portfolio value in one position
	MaxSinglePositionPct float64 `json:"max_single_position_pct" yaml:"max_single_position_pct" validate:"required,gt=0,lte=1"`
}

// TradeAssessment is the structured outcome of a trade validation.
// Denial is not an error: it carries a reason and a risk level.
type TradeAssessment struct {
	// Approved reports whether the trade passed every risk check
	Approved bool `json:"approved" yaml:"approved"`
	// Reason is the human readable explanation, naming the first violated rule on denial
	Reason string `json:"reason" yaml:"reason"`
	// Level is the risk severity of the decision
	Level RiskLevel `json:"level" yaml:"level"`
}

// PositionSize is the outcome of risk based position sizing.
type PositionSize struct {
	// Shares is the number of shares to trade, at least 1
	Shares int64 `json:"shares" yaml:"shares"`
	// DollarAmount is the dollar value of the sized position
	DollarAmount float64 `json:"dollar_amount" yaml:"dollar_amount"`
}

// PortfolioRisk aggregates portfolio level risk measures.
type PortfolioRisk struct {
	// TotalExposure is the summed absolute dollar exposure of open positions
	TotalExposure float64 `json:"total_exposure" yaml:"total_exposure"`
	// ValueAtRisk is the simplified 95% confidence one day VaR
	ValueAtRisk float64 `json:"value_at_risk" yaml:"value_at_risk"`
	// Drawdown is the current drawdown as a fraction of equity
	Drawdown float64 `json:"drawdown" yaml:"drawdown"`
	// DailyPnL is today's profit or loss in dollars
	DailyPnL float64 `json:"daily_pnl" yaml:"daily_pnl"`
	// Level is the overall risk severity
	Level RiskLevel `json:"level" yaml:"level"`
	// Reason explains the assigned level
	Reason string `json:"reason" yaml:"reason"`
}

// Package risk gates trading decisions: ordered trade validation, risk based
// position sizing, stop and take-profit triggers and portfolio level
// assessment.
package risk

import (
	"fmt"
	"sync/atomic"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-signals/internal/logger"
	"github.com/rxtech-lab/argo-signals/internal/types"
	"github.com/rxtech-lab/argo-signals/pkg/errors"
)

// Approval level thresholds: trade value above these fractions of portfolio
// value raises the approved trade's reported risk level.
const (
	highTradeFraction   = 0.10
	mediumTradeFraction = 0.05
)

// Correlation proxy levels derived from same-sector open position counts.
const (
	correlationHigh = 0.8
	correlationMid  = 0.5
	correlationLow  = 0.2
)

// varConfidenceFactor is the 95% one-sided normal quantile used by the
// simplified value-at-risk estimate.
const varConfidenceFactor = 1.65

// Manager validates trades against the configured limits. Validation is
// stateless; the emergency stop flag and the limits pointer are the only
// mutable state and both are safe for concurrent access.
type Manager struct {
	logger  *logger.Logger
	sectors SectorLookup

	limits        atomic.Pointer[types.RiskLimits]
	emergencyStop atomic.Bool
}

// NewManager validates the limits and builds a manager. A nil sector lookup
// treats every symbol as sector-unknown.
func NewManager(limits types.RiskLimits, sectors SectorLookup, log *logger.Logger) (*Manager, error) {
	if err := validateLimits(limits); err != nil {
		return nil, err
	}

	if sectors == nil {
		sectors = NewStaticSectorLookup(nil)
	}

	m := &Manager{ //nolint:exhaustruct
		logger:  log,
		sectors: sectors,
	}
	m.limits.Store(&limits)

	return m, nil
}

func validateLimits(limits types.RiskLimits) error {
	validate := validator.New()
	if err := validate.Struct(limits); err != nil {
		return errors.Wrap(errors.ErrCodeRiskLimitsInvalid, "invalid risk limits", err)
	}

	return nil
}

// Limits returns the current limits.
func (m *Manager) Limits() types.RiskLimits {
	return *m.limits.Load()
}

// SetLimits validates and atomically replaces the limits. Validations in
// flight see either the old or the new set.
func (m *Manager) SetLimits(limits types.RiskLimits) error {
	if err := validateLimits(limits); err != nil {
		return err
	}

	m.limits.Store(&limits)
	m.logger.Info("risk limits replaced",
		zap.Float64("max_position_size", limits.MaxPositionSize),
		zap.Float64("max_daily_loss", limits.MaxDailyLoss),
		zap.Int("max_positions", limits.MaxPositions),
	)

	return nil
}

// EnableEmergencyStop makes every subsequent validation deny immediately.
func (m *Manager) EnableEmergencyStop() {
	m.emergencyStop.Store(true)
	m.logger.Warn("emergency stop enabled")
}

// DisableEmergencyStop lifts the emergency stop.
func (m *Manager) DisableEmergencyStop() {
	m.emergencyStop.Store(false)
	m.logger.Info("emergency stop disabled")
}

// EmergencyStopEnabled reports the current flag state.
func (m *Manager) EmergencyStopEnabled() bool {
	return m.emergencyStop.Load()
}

// ValidateTrade checks the proposed trade against every limit in a fixed
// order; the first violated rule is the reported reason. Sell-side trades
// skip the buy-only exposure checks.
func (m *Manager) ValidateTrade(
	symbol string,
	side types.PurchaseType,
	quantity, price float64,
	account types.AccountSnapshot,
	positions []types.Position,
) types.TradeAssessment {
	limits := m.Limits()
	tradeValue := quantity * price

	if m.emergencyStop.Load() {
		return deny("emergency stop active", types.RiskLevelCritical)
	}

	if account.DailyPnL() < -(account.PortfolioValue * limits.MaxDailyLoss) {
		reason := fmt.Sprintf("daily loss %.2f exceeds limit %.2f",
			-account.DailyPnL(), account.PortfolioValue*limits.MaxDailyLoss)

		return deny(reason, types.RiskLevelCritical)
	}

	if side == types.PurchaseTypeBuy {
		if assessment, ok := m.validateBuy(symbol, tradeValue, account, positions, limits); !ok {
			return assessment
		}
	}

	return approve(tradeValue, account.PortfolioValue, len(positions), limits)
}

// validateBuy runs the buy-only checks 3-8. The boolean is false when the
// trade was denied.
func (m *Manager) validateBuy(
	symbol string,
	tradeValue float64,
	account types.AccountSnapshot,
	positions []types.Position,
	limits types.RiskLimits,
) (types.TradeAssessment, bool) {
	if tradeValue > limits.MaxPositionSize {
		reason := fmt.Sprintf("trade value %.2f exceeds max position size %.2f", tradeValue, limits.MaxPositionSize)

		return deny(reason, types.RiskLevelHigh), false
	}

	if tradeValue > limits.MaxSinglePositionPct*account.PortfolioValue {
		reason := fmt.Sprintf("trade value %.2f exceeds %.0f%% of portfolio",
			tradeValue, limits.MaxSinglePositionPct*100)

		return deny(reason, types.RiskLevelHigh), false
	}

	if len(positions) >= limits.MaxPositions && !holdsPosition(positions, symbol) {
		reason := fmt.Sprintf("already at maximum of %d open positions", limits.MaxPositions)

		return deny(reason, types.RiskLevelMedium), false
	}

	if tradeValue > account.Cash {
		reason := fmt.Sprintf("trade value %.2f exceeds available cash %.2f", tradeValue, account.Cash)

		return deny(reason, types.RiskLevelMedium), false
	}

	sector := m.sectors.SectorOf(symbol)
	if sector != "" {
		sameSector := 0
		sectorExposure := 0.0

		for _, position := range positions {
			if m.sectors.SectorOf(position.Symbol) == sector {
				sameSector++
				sectorExposure += position.MarketValue()
			}
		}

		if account.PortfolioValue > 0 &&
			(sectorExposure+tradeValue)/account.PortfolioValue > limits.MaxSectorExposure {
			reason := fmt.Sprintf("sector %s exposure would exceed %.0f%% of portfolio",
				sector, limits.MaxSectorExposure*100)

			return deny(reason, types.RiskLevelMedium), false
		}

		correlation := correlationProxy(sameSector)
		if correlation > limits.MaxCorrelation {
			reason := fmt.Sprintf("correlation proxy %.1f exceeds limit %.2f across %d %s positions",
				correlation, limits.MaxCorrelation, sameSector, sector)

			return deny(reason, types.RiskLevelMedium), false
		}
	}

	return types.TradeAssessment{}, true //nolint:exhaustruct
}

// correlationProxy maps a same-sector open position count to a coarse
// correlation estimate.
func correlationProxy(sameSector int) float64 {
	switch {
	case sameSector >= 3:
		return correlationHigh
	case sameSector >= 1:
		return correlationMid
	default:
		return correlationLow
	}
}

func holdsPosition(positions []types.Position, symbol string) bool {
	for _, position := range positions {
		if position.Symbol == symbol {
			return true
		}
	}

	return false
}

func deny(reason string, level types.RiskLevel) types.TradeAssessment {
	return types.TradeAssessment{Approved: false, Reason: reason, Level: level}
}

// approve grades an accepted trade from its size relative to the portfolio
// and from position-count headroom.
func approve(tradeValue, portfolioValue float64, openPositions int, limits types.RiskLimits) types.TradeAssessment {
	level := types.RiskLevelLow
	reason := "trade within limits"

	fraction := 0.0
	if portfolioValue > 0 {
		fraction = tradeValue / portfolioValue
	}

	switch {
	case fraction > highTradeFraction:
		level = types.RiskLevelHigh
		reason = fmt.Sprintf("large trade, %.1f%% of portfolio", fraction*100)
	case fraction > mediumTradeFraction:
		level = types.RiskLevelMedium
		reason = fmt.Sprintf("moderate trade, %.1f%% of portfolio", fraction*100)
	case openPositions >= limits.MaxPositions-1:
		level = types.RiskLevelMedium
		reason = fmt.Sprintf("near position limit, %d of %d open", openPositions, limits.MaxPositions)
	}

	return types.TradeAssessment{Approved: true, Reason: reason, Level: level}
}

// CalculatePositionSize sizes a position from the distance to the stop and
// the configured per-trade risk budget, scaled by signal confidence and
// capped by the dollar and percentage position limits. Never returns fewer
// than one share.
func (m *Manager) CalculatePositionSize(
	entryPrice, stopLossPrice float64,
	account types.AccountSnapshot,
	confidence float64,
) (types.PositionSize, error) {
	if entryPrice <= 0 {
		return types.PositionSize{}, errors.Newf(errors.ErrCodeInvalidParameter, //nolint:exhaustruct
			"entry price must be positive, got %f", entryPrice)
	}

	riskPerShare := decimal.NewFromFloat(entryPrice).Sub(decimal.NewFromFloat(stopLossPrice)).Abs()
	if riskPerShare.IsZero() {
		return types.PositionSize{}, errors.New(errors.ErrCodeInvalidParameter, //nolint:exhaustruct
			"entry and stop loss price must differ")
	}

	limits := m.Limits()

	portfolio := decimal.NewFromFloat(account.PortfolioValue)
	entry := decimal.NewFromFloat(entryPrice)

	shares := portfolio.
		Mul(decimal.NewFromFloat(limits.MaxPortfolioRisk)).
		Div(riskPerShare).
		Mul(decimal.NewFromFloat(confidence))

	dollarCap := decimal.NewFromFloat(limits.MaxPositionSize).Div(entry)
	if shares.GreaterThan(dollarCap) {
		shares = dollarCap
	}

	percentCap := portfolio.Mul(decimal.NewFromFloat(limits.MaxSinglePositionPct)).Div(entry)
	if shares.GreaterThan(percentCap) {
		shares = percentCap
	}

	wholeShares := shares.Floor().IntPart()
	if wholeShares < 1 {
		wholeShares = 1
	}

	dollarAmount, _ := entry.Mul(decimal.NewFromInt(wholeShares)).Float64()

	return types.PositionSize{Shares: wholeShares, DollarAmount: dollarAmount}, nil
}

// ShouldTriggerStopLoss reports whether the position breached its stop-loss
// price, direction aware for longs and shorts.
func (m *Manager) ShouldTriggerStopLoss(position types.Position) (bool, string) {
	limits := m.Limits()

	if position.IsLong() {
		trigger := position.AvgEntryPrice * (1 - limits.StopLossPct)
		if position.CurrentPrice <= trigger {
			return true, fmt.Sprintf("price %.2f at or below stop loss %.2f", position.CurrentPrice, trigger)
		}

		return false, ""
	}

	trigger := position.AvgEntryPrice * (1 + limits.StopLossPct)
	if position.CurrentPrice >= trigger {
		return true, fmt.Sprintf("price %.2f at or above stop loss %.2f", position.CurrentPrice, trigger)
	}

	return false, ""
}

// ShouldTriggerTakeProfit reports whether the position reached its
// take-profit price.
func (m *Manager) ShouldTriggerTakeProfit(position types.Position) (bool, string) {
	limits := m.Limits()

	if position.IsLong() {
		trigger := position.AvgEntryPrice * (1 + limits.TakeProfitPct)
		if position.CurrentPrice >= trigger {
			return true, fmt.Sprintf("price %.2f at or above take profit %.2f", position.CurrentPrice, trigger)
		}

		return false, ""
	}

	trigger := position.AvgEntryPrice * (1 - limits.TakeProfitPct)
	if position.CurrentPrice <= trigger {
		return true, fmt.Sprintf("price %.2f at or below take profit %.2f", position.CurrentPrice, trigger)
	}

	return false, ""
}

// AssessPortfolioRisk aggregates exposure, a simplified 95% confidence VaR,
// drawdown and daily P&L into one portfolio level view.
func (m *Manager) AssessPortfolioRisk(account types.AccountSnapshot, positions []types.Position) types.PortfolioRisk {
	limits := m.Limits()

	totalExposure := 0.0
	for _, position := range positions {
		totalExposure += position.MarketValue()
	}

	valueAtRisk := varConfidenceFactor * totalExposure * limits.StopLossPct

	drawdown := 0.0
	if account.LastEquity > 0 && account.Equity < account.LastEquity {
		drawdown = (account.LastEquity - account.Equity) / account.LastEquity
	}

	dailyPnL := account.DailyPnL()

	level := types.RiskLevelLow
	reason := "portfolio within limits"

	switch {
	case dailyPnL < -(account.PortfolioValue * limits.MaxDailyLoss):
		level = types.RiskLevelCritical
		reason = "daily loss limit breached"
	case drawdown > limits.MaxDailyLoss:
		level = types.RiskLevelHigh
		reason = fmt.Sprintf("drawdown %.1f%% above daily loss limit", drawdown*100)
	case dailyPnL < -(account.PortfolioValue * limits.MaxDailyLoss / 2):
		level = types.RiskLevelMedium
		reason = "daily loss above half the limit"
	}

	return types.PortfolioRisk{
		TotalExposure: totalExposure,
		ValueAtRisk:   valueAtRisk,
		Drawdown:      drawdown,
		DailyPnL:      dailyPnL,
		Level:         level,
		Reason:        reason,
	}
}

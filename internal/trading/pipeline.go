// Package trading wires the streaming, strategy, and risk layers into one
// decision pipeline: completed bars flow into per-symbol history buffers,
// each bar triggers exit checks and a fresh analysis, and approved decisions
// leave as order intents.
package trading

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-signals/internal/engine"
	"github.com/rxtech-lab/argo-signals/internal/logger"
	"github.com/rxtech-lab/argo-signals/internal/risk"
	tradingprovider "github.com/rxtech-lab/argo-signals/internal/trading/provider"
	"github.com/rxtech-lab/argo-signals/internal/types"
	"github.com/rxtech-lab/argo-signals/pkg/errors"
	"github.com/rxtech-lab/argo-signals/pkg/marketdata"
)

// BarSource is the slice of the stream manager the pipeline needs: a bar
// handler registration and bar subscriptions.
type BarSource interface {
	OnBar(handler func(types.BarEvent))
	Subscribe(streamType types.StreamType, symbols ...string) error
}

// Config holds the pipeline settings.
type Config struct {
	// Symbols are the tickers to subscribe and analyze
	Symbols []string `json:"symbols" yaml:"symbols" validate:"required,min=1,dive,required"`
	// HistoryDepth caps each symbol's bar buffer
	HistoryDepth int `json:"history_depth" yaml:"history_depth" validate:"required,gt=0"`
	// SeedLookback is how far back historical seeding reaches
	SeedLookback time.Duration `json:"seed_lookback" yaml:"seed_lookback" validate:"gte=0"`
	// SeedMultiplier and SeedTimespan set the seeded bar resolution
	SeedMultiplier int                 `json:"seed_multiplier" yaml:"seed_multiplier" validate:"required,gt=0"`
	SeedTimespan   marketdata.Timespan `json:"seed_timespan" yaml:"seed_timespan"`
	// BarBufferSize is the capacity of the internal bar queue
	BarBufferSize int `json:"bar_buffer_size" yaml:"bar_buffer_size" validate:"required,gt=0"`
}

// DefaultConfig returns pipeline settings for one-minute bars with a day of
// seeded history.
func DefaultConfig(symbols ...string) Config {
	return Config{
		Symbols:        symbols,
		HistoryDepth:   1000,
		SeedLookback:   24 * time.Hour,
		SeedMultiplier: 1,
		SeedTimespan:   marketdata.TimespanMinute,
		BarBufferSize:  256,
	}
}

// Pipeline consumes completed bars and produces order intents. Bars are
// processed by a single worker so per-symbol arrival order is preserved.
type Pipeline struct {
	config    Config
	logger    *logger.Logger
	engine    *engine.Engine
	risk      *risk.Manager
	accounts  tradingprovider.AccountProvider
	execution tradingprovider.ExecutionProvider

	mu     sync.RWMutex
	series map[string]*types.BarSeries

	barCh    chan types.BarEvent
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	barsProcessed  atomic.Int64
	barsDropped    atomic.Int64
	intentsPlaced  atomic.Int64
	analysisErrors atomic.Int64
}

var _ tradingprovider.PriceSource = (*Pipeline)(nil)

// New validates the config and assembles a pipeline.
func New(
	config Config,
	eng *engine.Engine,
	riskManager *risk.Manager,
	accounts tradingprovider.AccountProvider,
	execution tradingprovider.ExecutionProvider,
	log *logger.Logger,
) (*Pipeline, error) {
	if config.SeedTimespan != "" && !config.SeedTimespan.Valid() {
		return nil, errors.Newf(errors.ErrCodeInvalidTimespan, "invalid seed timespan %q", config.SeedTimespan)
	}

	if err := validator.New().Struct(config); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid pipeline config", err)
	}

	series := make(map[string]*types.BarSeries, len(config.Symbols))
	for _, symbol := range config.Symbols {
		series[symbol] = types.NewBarSeries(nil)
	}

	return &Pipeline{ //nolint:exhaustruct
		config:    config,
		logger:    log,
		engine:    eng,
		risk:      riskManager,
		accounts:  accounts,
		execution: execution,
		series:    series,
		barCh:     make(chan types.BarEvent, config.BarBufferSize),
		done:      make(chan struct{}),
	}, nil
}

// Seed fills the bar buffers from a historical provider before streaming
// starts, so strategies have enough lookback on the first live bar.
func (p *Pipeline) Seed(ctx context.Context, provider marketdata.Provider) error {
	if p.config.SeedLookback <= 0 {
		return nil
	}

	end := time.Now().UTC()
	start := end.Add(-p.config.SeedLookback)

	for _, symbol := range p.config.Symbols {
		bars, err := provider.GetBars(ctx, symbol, start, end, p.config.SeedMultiplier, p.config.SeedTimespan)
		if err != nil {
			return errors.Wrapf(errors.ErrCodeHistoricalDataFailed, err, "seeding %s failed", symbol)
		}

		p.mu.Lock()

		for _, bar := range bars {
			p.series[symbol].Append(bar)
		}

		p.series[symbol].Trim(p.config.HistoryDepth)
		p.mu.Unlock()

		p.logger.Info("seeded history",
			zap.String("symbol", symbol),
			zap.Int("bars", len(bars)),
		)
	}

	return nil
}

// Start registers the bar handler, subscribes the configured symbols, and
// launches the processing worker.
func (p *Pipeline) Start(ctx context.Context, source BarSource) error {
	source.OnBar(p.enqueue)

	if err := source.Subscribe(types.StreamTypeBars, p.config.Symbols...); err != nil {
		return err
	}

	p.wg.Add(1)

	go p.run(ctx)

	return nil
}

// Stop drains the worker and blocks until it exits.
func (p *Pipeline) Stop() {
	p.stopOnce.Do(func() {
		close(p.done)
	})
	p.wg.Wait()
}

// LastPrice returns the latest buffered close for a symbol.
func (p *Pipeline) LastPrice(symbol string) (float64, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	series, ok := p.series[symbol]
	if !ok {
		return 0, false
	}

	last, ok := series.Last()
	if !ok {
		return 0, false
	}

	return last.Close, true
}

// Stats reports processing counters.
func (p *Pipeline) Stats() PipelineStats {
	return PipelineStats{
		BarsProcessed:  p.barsProcessed.Load(),
		BarsDropped:    p.barsDropped.Load(),
		IntentsPlaced:  p.intentsPlaced.Load(),
		AnalysisErrors: p.analysisErrors.Load(),
	}
}

// PipelineStats is a snapshot of the pipeline counters.
type PipelineStats struct {
	BarsProcessed  int64 `json:"bars_processed"`
	BarsDropped    int64 `json:"bars_dropped"`
	IntentsPlaced  int64 `json:"intents_placed"`
	AnalysisErrors int64 `json:"analysis_errors"`
}

// enqueue runs on the stream dispatch goroutine and must not block.
func (p *Pipeline) enqueue(event types.BarEvent) {
	select {
	case p.barCh <- event:
	default:
		p.barsDropped.Add(1)
	}
}

func (p *Pipeline) run(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.done:
			return
		case event := <-p.barCh:
			p.handleBar(ctx, event.Bar)
		}
	}
}

// handleBar is the per-bar decision cycle: update history, check open
// position exits, then analyze for a new entry. Account state is fetched at
// most once per cycle.
func (p *Pipeline) handleBar(ctx context.Context, bar types.Bar) {
	series := p.appendBar(bar)
	if series == nil {
		return
	}

	p.barsProcessed.Add(1)

	account, err := p.accounts.GetAccount(ctx)
	if err != nil {
		p.analysisErrors.Add(1)
		p.logger.Warn("account fetch failed", zap.String("symbol", bar.Symbol), zap.Error(err))

		return
	}

	positions, err := p.accounts.GetPositions(ctx)
	if err != nil {
		p.analysisErrors.Add(1)
		p.logger.Warn("positions fetch failed", zap.String("symbol", bar.Symbol), zap.Error(err))

		return
	}

	positions = p.markPositions(positions)

	if exited := p.checkExits(ctx, bar, series, account, positions); exited {
		return
	}

	p.analyzeEntry(ctx, bar, series, account, positions)
}

func (p *Pipeline) appendBar(bar types.Bar) *types.BarSeries {
	p.mu.Lock()
	defer p.mu.Unlock()

	series, ok := p.series[bar.Symbol]
	if !ok {
		return nil
	}

	series.Append(bar)
	series.Trim(p.config.HistoryDepth)

	return series
}

// markPositions refreshes position marks from the bar buffers; account APIs
// without marks (spot balances) arrive here with stale or zero prices.
func (p *Pipeline) markPositions(positions []types.Position) []types.Position {
	for i, position := range positions {
		price, ok := p.LastPrice(position.Symbol)
		if !ok {
			continue
		}

		positions[i].CurrentPrice = price
		positions[i].UnrealizedPnL = (price - position.AvgEntryPrice) * position.Quantity
	}

	return positions
}

// checkExits closes the symbol's open position when a stop-loss,
// take-profit, or strategy exit condition fires. Returns true when an exit
// intent was emitted; entry analysis is skipped for that bar.
func (p *Pipeline) checkExits(
	ctx context.Context,
	bar types.Bar,
	series *types.BarSeries,
	account types.AccountSnapshot,
	positions []types.Position,
) bool {
	position, ok := findPosition(positions, bar.Symbol)
	if !ok {
		return false
	}

	reason, triggered := p.exitReason(series, position)
	if !triggered {
		return false
	}

	return p.placeExit(ctx, bar, position, reason, account, positions)
}

func (p *Pipeline) exitReason(series *types.BarSeries, position types.Position) (string, bool) {
	if triggered, reason := p.risk.ShouldTriggerStopLoss(position); triggered {
		return reason, true
	}

	if triggered, reason := p.risk.ShouldTriggerTakeProfit(position); triggered {
		return reason, true
	}

	entry := entrySignal(position)
	for _, strat := range p.engine.Strategies() {
		if exit, reason := strat.ShouldExitPosition(series, entry); exit {
			return reason, true
		}
	}

	return "", false
}

func (p *Pipeline) placeExit(
	ctx context.Context,
	bar types.Bar,
	position types.Position,
	reason string,
	account types.AccountSnapshot,
	positions []types.Position,
) bool {
	side := types.PurchaseTypeSell
	if !position.IsLong() {
		side = types.PurchaseTypeBuy
	}

	quantity := position.Quantity
	if quantity < 0 {
		quantity = -quantity
	}

	assessment := p.risk.ValidateTrade(bar.Symbol, side, quantity, bar.Close, account, positions)
	if !assessment.Approved {
		p.logger.Warn("exit denied",
			zap.String("symbol", bar.Symbol),
			zap.String("reason", assessment.Reason),
		)

		return false
	}

	intent := types.OrderIntent{
		ID:         uuid.NewString(),
		Symbol:     bar.Symbol,
		Side:       side,
		Quantity:   quantity,
		Price:      bar.Close,
		TakeProfit: optional.None[float64](),
		StopLoss:   optional.None[float64](),
		Reason:     reason,
		Strategy:   "exit",
		Time:       bar.Time,
	}

	return p.place(ctx, intent)
}

// analyzeEntry runs the strategy engine and routes an actionable decision
// through the risk gate into an order intent.
func (p *Pipeline) analyzeEntry(
	ctx context.Context,
	bar types.Bar,
	series *types.BarSeries,
	account types.AccountSnapshot,
	positions []types.Position,
) {
	decision, err := p.engine.AnalyzeSymbol(ctx, bar.Symbol, series)
	if err != nil {
		p.analysisErrors.Add(1)
		p.logger.Warn("analysis failed", zap.String("symbol", bar.Symbol), zap.Error(err))

		return
	}

	if decision.IsNone() {
		return
	}

	combined := decision.Unwrap()
	if combined.Direction == types.DirectionNeutral {
		return
	}

	side := types.PurchaseTypeBuy
	if combined.Direction.IsSell() {
		side = types.PurchaseTypeSell
	}

	if side == types.PurchaseTypeSell {
		if _, ok := findPosition(positions, bar.Symbol); !ok {
			// Nothing to sell; short entries are out of scope.
			return
		}
	}

	quantity, stopLoss, takeProfit, err := p.sizeEntry(side, combined, account, positions, bar)
	if err != nil {
		p.analysisErrors.Add(1)
		p.logger.Warn("sizing failed", zap.String("symbol", bar.Symbol), zap.Error(err))

		return
	}

	assessment := p.risk.ValidateTrade(bar.Symbol, side, quantity, bar.Close, account, positions)
	if !assessment.Approved {
		p.logger.Info("trade denied",
			zap.String("symbol", bar.Symbol),
			zap.String("side", string(side)),
			zap.String("reason", assessment.Reason),
			zap.String("level", string(assessment.Level)),
		)

		return
	}

	intent := types.OrderIntent{
		ID:         uuid.NewString(),
		Symbol:     bar.Symbol,
		Side:       side,
		Quantity:   quantity,
		Price:      bar.Close,
		TakeProfit: takeProfit,
		StopLoss:   stopLoss,
		Reason:     combined.Reason,
		Strategy:   string(combined.Method),
		Time:       combined.Time,
	}

	p.place(ctx, intent)
}

func (p *Pipeline) sizeEntry(
	side types.PurchaseType,
	combined types.CombinedSignal,
	account types.AccountSnapshot,
	positions []types.Position,
	bar types.Bar,
) (float64, optional.Option[float64], optional.Option[float64], error) {
	limits := p.risk.Limits()

	if side == types.PurchaseTypeSell {
		position, _ := findPosition(positions, bar.Symbol)

		quantity := position.Quantity
		if quantity < 0 {
			quantity = -quantity
		}

		return quantity, optional.None[float64](), optional.None[float64](), nil
	}

	stopPrice := bar.Close * (1 - limits.StopLossPct)
	takePrice := bar.Close * (1 + limits.TakeProfitPct)

	size, err := p.risk.CalculatePositionSize(bar.Close, stopPrice, account, combined.Confidence)
	if err != nil {
		return 0, optional.None[float64](), optional.None[float64](), err
	}

	quantity := float64(size.Shares)
	if combined.SizeMultiplier > 0 {
		quantity = float64(int64(quantity * combined.SizeMultiplier))
		if quantity < 1 {
			quantity = 1
		}
	}

	return quantity, optional.Some(stopPrice), optional.Some(takePrice), nil
}

func (p *Pipeline) place(ctx context.Context, intent types.OrderIntent) bool {
	if err := p.execution.PlaceOrder(ctx, intent); err != nil {
		p.logger.Error("order placement failed",
			zap.String("symbol", intent.Symbol),
			zap.String("side", string(intent.Side)),
			zap.Error(err),
		)

		return false
	}

	p.intentsPlaced.Add(1)
	p.logger.Info("order intent placed",
		zap.String("id", intent.ID),
		zap.String("symbol", intent.Symbol),
		zap.String("side", string(intent.Side)),
		zap.Float64("quantity", intent.Quantity),
		zap.Float64("price", intent.Price),
		zap.String("reason", intent.Reason),
	)

	return true
}

func findPosition(positions []types.Position, symbol string) (types.Position, bool) {
	for _, position := range positions {
		if position.Symbol == symbol {
			return position, true
		}
	}

	return types.Position{}, false //nolint:exhaustruct
}

// entrySignal reconstructs the entry-side signal for strategy exit checks
// from broker position state.
func entrySignal(position types.Position) types.Signal {
	direction := types.DirectionBuy
	if !position.IsLong() {
		direction = types.DirectionSell
	}

	return types.Signal{ //nolint:exhaustruct
		Symbol:    position.Symbol,
		Direction: direction,
		Price:     position.AvgEntryPrice,
	}
}

// Package engine combines the signals of multiple strategies into one
// trading decision per symbol, with cooldown tracking and configurable
// aggregation.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-signals/internal/logger"
	"github.com/rxtech-lab/argo-signals/internal/strategy"
	"github.com/rxtech-lab/argo-signals/internal/types"
	"github.com/rxtech-lab/argo-signals/pkg/errors"
)

// Config controls aggregation, filtering and cooldown behavior.
type Config struct {
	// Method selects how per-strategy signals are merged
	Method types.AggregationMethod `json:"method" yaml:"method" validate:"required"`
	// MinAgreementThreshold is the consensus agreement floor in [0,1]
	MinAgreementThreshold float64 `json:"min_agreement_threshold" yaml:"min_agreement_threshold" validate:"gte=0,lte=1"`
	// SignalTimeout is the per-symbol cooldown window
	SignalTimeout time.Duration `json:"signal_timeout" yaml:"signal_timeout" validate:"required,gt=0"`
	// MaxSignalsPerSymbol caps combined signals inside one cooldown window
	MaxSignalsPerSymbol int `json:"max_signals_per_symbol" yaml:"max_signals_per_symbol" validate:"required,gt=0"`
	// MinConfidence drops per-strategy signals below the named strategy's floor
	MinConfidence map[string]float64 `json:"min_confidence" yaml:"min_confidence" validate:"dive,gte=0,lte=1"`
	// Weights are the per-strategy aggregation weights, default 1.0
	Weights map[string]float64 `json:"weights" yaml:"weights" validate:"dive,gte=0"`
	// VolumeFilter drops signals whose volume ratio is below 1.0
	VolumeFilter bool `json:"volume_filter" yaml:"volume_filter"`
	// TrendFilter downgrades STRONG signals one step when the trend is neutral
	TrendFilter bool `json:"trend_filter" yaml:"trend_filter"`
}

// DefaultConfig returns the canonical engine configuration.
func DefaultConfig() Config {
	return Config{
		Method:                types.AggregationWeightedAverage,
		MinAgreementThreshold: 0.6,
		SignalTimeout:         15 * time.Minute,
		MaxSignalsPerSymbol:   1,
		MinConfidence:         map[string]float64{},
		Weights:               map[string]float64{},
		VolumeFilter:          false,
		TrendFilter:           false,
	}
}

// Engine fans analysis out over the configured strategies in parallel and
// merges the surviving signals into a single decision. Safe for concurrent
// use across symbols.
type Engine struct {
	config     Config
	strategies []strategy.Strategy
	logger     *logger.Logger
	cache      *signalCache

	weightsMu sync.RWMutex
	weights   map[string]float64
}

// New validates the configuration and builds an engine over the given
// strategy set.
func New(config Config, strategies []strategy.Strategy, log *logger.Logger) (*Engine, error) {
	if !config.Method.Valid() {
		return nil, errors.Newf(errors.ErrCodeUnknownAggregation, "unknown aggregation method %q", config.Method)
	}

	validate := validator.New()
	if err := validate.Struct(config); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid engine config", err)
	}

	seen := make(map[string]bool, len(strategies))
	for _, s := range strategies {
		if seen[s.Name()] {
			return nil, errors.Newf(errors.ErrCodeDuplicateStrategy, "duplicate strategy %q", s.Name())
		}

		seen[s.Name()] = true
	}

	weights := make(map[string]float64, len(config.Weights))
	for name, weight := range config.Weights {
		weights[name] = weight
	}

	return &Engine{
		config:     config,
		strategies: strategies,
		logger:     log,
		cache:      newSignalCache(),
		weightsMu:  sync.RWMutex{},
		weights:    weights,
	}, nil
}

// Strategies returns the configured strategy set. The slice is shared and
// must not be mutated.
func (e *Engine) Strategies() []strategy.Strategy {
	return e.strategies
}

// SetWeights atomically replaces the whole strategy weight map. Analyses in
// flight see either the old or the new set, never a mix.
func (e *Engine) SetWeights(weights map[string]float64) {
	next := make(map[string]float64, len(weights))
	for name, weight := range weights {
		next[name] = weight
	}

	e.weightsMu.Lock()
	e.weights = next
	e.weightsMu.Unlock()
}

func (e *Engine) snapshotWeights() map[string]float64 {
	e.weightsMu.RLock()
	defer e.weightsMu.RUnlock()

	return e.weights
}

// LatestSignal returns the most recent non-expired combined signal for the
// symbol, if one exists.
func (e *Engine) LatestSignal(symbol string) (types.CombinedSignal, bool) {
	return e.cache.latest(symbol, time.Now(), e.config.SignalTimeout)
}

// AnalyzeSymbol runs every strategy over the series in parallel, filters the
// results and merges them into one combined signal. Returns None while the
// symbol is cooling down or when no strategy produced a usable signal.
func (e *Engine) AnalyzeSymbol(ctx context.Context, symbol string, series *types.BarSeries) (optional.Option[types.CombinedSignal], error) {
	none := optional.None[types.CombinedSignal]()

	if err := ctx.Err(); err != nil {
		return none, err
	}

	now := time.Now()

	if e.cache.activeCount(symbol, now, e.config.SignalTimeout) >= e.config.MaxSignalsPerSymbol {
		return none, nil
	}

	signals := e.fanOut(symbol, series)

	signals = e.filter(signals)
	if len(signals) == 0 {
		return none, nil
	}

	price := 0.0

	if series != nil {
		if last, ok := series.Last(); ok {
			price = last.Close
		}
	}

	combined := e.combine(symbol, signals, price, now)
	e.cache.record(symbol, combined, now, e.config.SignalTimeout)

	e.logger.Info("combined signal emitted",
		zap.String("symbol", symbol),
		zap.String("direction", combined.Direction.String()),
		zap.Float64("confidence", combined.Confidence),
		zap.String("method", string(combined.Method)),
		zap.Int("contributors", len(combined.Contributions)),
	)

	return optional.Some(combined), nil
}

// fanOut evaluates every strategy concurrently. A failing strategy is
// logged and contributes no signal.
func (e *Engine) fanOut(symbol string, series *types.BarSeries) []types.Signal {
	results := make([]optional.Option[types.Signal], len(e.strategies))

	var wg sync.WaitGroup

	for i, s := range e.strategies {
		wg.Add(1)

		go func(i int, s strategy.Strategy) {
			defer wg.Done()

			result, err := s.Analyze(symbol, series)
			if err != nil {
				e.logger.Warn("strategy analysis failed",
					zap.String("strategy", s.Name()),
					zap.String("symbol", symbol),
					zap.Error(err),
				)

				results[i] = optional.None[types.Signal]()

				return
			}

			results[i] = result
		}(i, s)
	}

	wg.Wait()

	signals := make([]types.Signal, 0, len(results))

	for _, result := range results {
		if result.IsSome() {
			signals = append(signals, result.Unwrap())
		}
	}

	return signals
}

// filter applies the per-strategy confidence floor and the optional volume
// and trend filters.
func (e *Engine) filter(signals []types.Signal) []types.Signal {
	kept := make([]types.Signal, 0, len(signals))

	for _, signal := range signals {
		if floor, ok := e.config.MinConfidence[signal.Strategy]; ok && signal.Confidence < floor {
			continue
		}

		if e.config.VolumeFilter {
			if ratio, ok := signal.Indicators["volume_ratio"]; ok && ratio < 1.0 {
				continue
			}
		}

		if e.config.TrendFilter {
			signal = downgradeOnNeutralTrend(signal)
		}

		kept = append(kept, signal)
	}

	return kept
}

// downgradeOnNeutralTrend steps a STRONG signal down one level when the
// strategy reported no trend.
func downgradeOnNeutralTrend(signal types.Signal) types.Signal {
	trend, ok := signal.Indicators["trend"]
	if !ok || trend != 0 {
		return signal
	}

	switch signal.Direction {
	case types.DirectionStrongBuy:
		signal.Direction = types.DirectionBuy
	case types.DirectionStrongSell:
		signal.Direction = types.DirectionSell
	}

	return signal
}

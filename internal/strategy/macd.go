package strategy

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/moznion/go-optional"

	"github.com/rxtech-lab/argo-signals/internal/indicator"
	"github.com/rxtech-lab/argo-signals/internal/types"
	"github.com/rxtech-lab/argo-signals/pkg/errors"
)

const MACDStrategyName = "macd"

// MACDConfig configures the MACD strategy.
type MACDConfig struct {
	// FastPeriod is the fast EMA period of the MACD line
	FastPeriod int `json:"fast_period" yaml:"fast_period" validate:"required,gt=0"`
	// SlowPeriod is the slow EMA period of the MACD line
	SlowPeriod int `json:"slow_period" yaml:"slow_period" validate:"required,gtfield=FastPeriod"`
	// SignalPeriod is the EMA period of the signal line
	SignalPeriod int `json:"signal_period" yaml:"signal_period" validate:"required,gt=0"`
	// TrendShortPeriod is the short moving average period of the trend filter
	TrendShortPeriod int `json:"trend_short_period" yaml:"trend_short_period" validate:"required,gt=0"`
	// TrendLongPeriod is the long moving average period of the trend filter
	TrendLongPeriod int `json:"trend_long_period" yaml:"trend_long_period" validate:"required,gtfield=TrendShortPeriod"`
	// VolumePeriod is the trailing window of the volume baseline
	VolumePeriod int `json:"volume_period" yaml:"volume_period" validate:"required,gt=0"`
	// MinVolumeRatio is the minimum currentVolume/baseline ratio for the volume confirmation
	MinVolumeRatio float64 `json:"min_volume_ratio" yaml:"min_volume_ratio" validate:"required,gt=0"`
	// DivergenceLookback is the window for price/MACD-line divergence detection, 0 disables it
	DivergenceLookback int `json:"divergence_lookback" yaml:"divergence_lookback" validate:"gte=0"`
}

// DefaultMACDConfig returns the canonical MACD strategy configuration.
func DefaultMACDConfig() MACDConfig {
	return MACDConfig{
		FastPeriod:         12,
		SlowPeriod:         26,
		SignalPeriod:       9,
		TrendShortPeriod:   20,
		TrendLongPeriod:    50,
		VolumePeriod:       20,
		MinVolumeRatio:     1.5,
		DivergenceLookback: 20,
	}
}

// MACDStrategy signals on line/signal crossovers and histogram sign flips,
// refined by trend, volume and divergence confirmations.
type MACDStrategy struct {
	config       MACDConfig
	requiredBars int
}

var _ Strategy = (*MACDStrategy)(nil)

// NewMACDStrategy validates the configuration and builds the strategy.
func NewMACDStrategy(config MACDConfig) (*MACDStrategy, error) {
	validate := validator.New()
	if err := validate.Struct(config); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStrategyConfigError, "invalid MACD strategy config", err)
	}

	// The histogram needs slowPeriod-1 bars for the line plus signalPeriod
	// defined line values, and a crossover needs one more bar.
	required := config.SlowPeriod + config.SignalPeriod
	for _, candidate := range []int{config.TrendLongPeriod, config.VolumePeriod + 1, config.DivergenceLookback} {
		if candidate > required {
			required = candidate
		}
	}

	return &MACDStrategy{config: config, requiredBars: required}, nil
}

func (s *MACDStrategy) Name() string {
	return MACDStrategyName
}

func (s *MACDStrategy) Info() Info {
	return Info{Name: MACDStrategyName, RequiredBars: s.requiredBars}
}

// Analyze emits a buy signal on a bullish crossover or histogram flip and a
// sell signal on the bearish counterparts.
func (s *MACDStrategy) Analyze(symbol string, series *types.BarSeries) (optional.Option[types.Signal], error) {
	none := optional.None[types.Signal]()

	if series == nil || series.Len() < s.requiredBars {
		return none, nil
	}

	closes := series.Closes()

	result, err := indicator.MACDSeries(closes, s.config.FastPeriod, s.config.SlowPeriod, s.config.SignalPeriod)
	if err != nil {
		return none, err
	}

	last := len(closes) - 1

	trigger := result.CrossedAt(last)
	triggerName := "crossover"

	if trigger == indicator.CrossoverNone {
		trigger = result.HistogramFlippedAt(last)
		triggerName = "histogram flip"
	}

	if trigger == indicator.CrossoverNone {
		return none, nil
	}

	base := types.DirectionBuy
	if trigger == indicator.CrossoverBearish {
		base = types.DirectionSell
	}

	volumes := series.Volumes()
	trend := trendFromSMAPair(closes, s.config.TrendShortPeriod, s.config.TrendLongPeriod)

	ratio, hasRatio := volumeRatio(volumes, s.config.VolumePeriod)
	volumeOK := hasRatio && ratio >= s.config.MinVolumeRatio

	divergence := detectDivergence(closes, result.Line, s.config.DivergenceLookback)

	confirmations := countConfirmations(base.IsBuy(), trend, volumeOK, divergence)
	direction, confidence, multiplier := escalate(base, confirmations)

	lastBar, _ := series.Last()

	signal := types.Signal{
		Symbol:     symbol,
		Direction:  direction,
		Price:      lastBar.Close,
		Confidence: confidence,
		Time:       lastBar.Time,
		Indicators: map[string]float64{
			"macd_line":      result.Line[last],
			"macd_signal":    result.Signal[last],
			"macd_histogram": result.Histogram[last],
			"volume_ratio":   ratio,
			"trend":          TrendScore(trend),
		},
		Reason:         fmt.Sprintf("%s MACD %s, %d confirmations", trigger, triggerName, confirmations),
		SizeMultiplier: multiplier,
		Strategy:       MACDStrategyName,
	}

	return optional.Some(signal), nil
}

// ShouldExitPosition advises closing a long on a bearish crossover and a
// short on a bullish one.
func (s *MACDStrategy) ShouldExitPosition(series *types.BarSeries, entry types.Signal) (bool, string) {
	if series == nil {
		return false, ""
	}

	closes := series.Closes()

	result, err := indicator.MACDSeries(closes, s.config.FastPeriod, s.config.SlowPeriod, s.config.SignalPeriod)
	if err != nil {
		return false, ""
	}

	last := len(closes) - 1
	crossed := result.CrossedAt(last)

	if entry.Direction.IsBuy() && crossed == indicator.CrossoverBearish {
		return true, "bearish MACD crossover against long position"
	}

	if entry.Direction.IsSell() && crossed == indicator.CrossoverBullish {
		return true, "bullish MACD crossover against short position"
	}

	return false, ""
}

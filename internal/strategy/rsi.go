package strategy

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/moznion/go-optional"

	"github.com/rxtech-lab/argo-signals/internal/indicator"
	"github.com/rxtech-lab/argo-signals/internal/types"
	"github.com/rxtech-lab/argo-signals/pkg/errors"
)

const RSIStrategyName = "rsi"

// RSIConfig configures the RSI strategy.
type RSIConfig struct {
	// Period is the RSI lookback period
	Period int `json:"period" yaml:"period" validate:"required,gt=1"`
	// Oversold is the RSI level below which a buy setup triggers
	Oversold float64 `json:"oversold" yaml:"oversold" validate:"required,gt=0,lt=100"`
	// Overbought is the RSI level above which a sell setup triggers
	Overbought float64 `json:"overbought" yaml:"overbought" validate:"required,gt=0,lt=100,gtfield=Oversold"`
	// TrendShortPeriod is the short moving average period of the trend filter
	TrendShortPeriod int `json:"trend_short_period" yaml:"trend_short_period" validate:"required,gt=0"`
	// TrendLongPeriod is the long moving average period of the trend filter
	TrendLongPeriod int `json:"trend_long_period" yaml:"trend_long_period" validate:"required,gtfield=TrendShortPeriod"`
	// VolumePeriod is the trailing window of the volume baseline
	VolumePeriod int `json:"volume_period" yaml:"volume_period" validate:"required,gt=0"`
	// MinVolumeRatio is the minimum currentVolume/baseline ratio for the volume confirmation
	MinVolumeRatio float64 `json:"min_volume_ratio" yaml:"min_volume_ratio" validate:"required,gt=0"`
	// DivergenceLookback is the window for price/RSI divergence detection, 0 disables it
	DivergenceLookback int `json:"divergence_lookback" yaml:"divergence_lookback" validate:"gte=0"`
}

// DefaultRSIConfig returns the canonical RSI strategy configuration.
func DefaultRSIConfig() RSIConfig {
	return RSIConfig{
		Period:             14,
		Oversold:           indicator.RSIOversoldThreshold,
		Overbought:         indicator.RSIOverboughtThreshold,
		TrendShortPeriod:   20,
		TrendLongPeriod:    50,
		VolumePeriod:       20,
		MinVolumeRatio:     1.5,
		DivergenceLookback: 20,
	}
}

// RSIStrategy signals on oversold/overbought RSI readings refined by trend,
// volume and divergence confirmations.
type RSIStrategy struct {
	config       RSIConfig
	requiredBars int
}

var _ Strategy = (*RSIStrategy)(nil)

// NewRSIStrategy validates the configuration and builds the strategy.
func NewRSIStrategy(config RSIConfig) (*RSIStrategy, error) {
	validate := validator.New()
	if err := validate.Struct(config); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStrategyConfigError, "invalid RSI strategy config", err)
	}

	required := config.Period + 1
	for _, candidate := range []int{config.TrendLongPeriod, config.VolumePeriod + 1, config.DivergenceLookback} {
		if candidate > required {
			required = candidate
		}
	}

	return &RSIStrategy{config: config, requiredBars: required}, nil
}

func (s *RSIStrategy) Name() string {
	return RSIStrategyName
}

func (s *RSIStrategy) Info() Info {
	return Info{Name: RSIStrategyName, RequiredBars: s.requiredBars}
}

// Analyze emits a buy signal on an oversold RSI and a sell signal on an
// overbought one. Trend, volume and divergence confirmations escalate
// strength, confidence and sizing.
func (s *RSIStrategy) Analyze(symbol string, series *types.BarSeries) (optional.Option[types.Signal], error) {
	none := optional.None[types.Signal]()

	if series == nil || series.Len() < s.requiredBars {
		return none, nil
	}

	closes := series.Closes()

	rsiSeries, err := indicator.RSISeries(closes, s.config.Period)
	if err != nil {
		return none, err
	}

	latest := rsiSeries[len(rsiSeries)-1]
	if !indicator.Defined(latest) {
		return none, nil
	}

	var base types.Direction

	switch indicator.ClassifyRSI(latest, s.config.Oversold, s.config.Overbought) {
	case indicator.ConditionOversold:
		base = types.DirectionBuy
	case indicator.ConditionOverbought:
		base = types.DirectionSell
	default:
		return none, nil
	}

	volumes := series.Volumes()
	trend := trendFromSMAPair(closes, s.config.TrendShortPeriod, s.config.TrendLongPeriod)

	ratio, hasRatio := volumeRatio(volumes, s.config.VolumePeriod)
	volumeOK := hasRatio && ratio >= s.config.MinVolumeRatio

	divergence := detectDivergence(closes, rsiSeries, s.config.DivergenceLookback)

	confirmations := countConfirmations(base.IsBuy(), trend, volumeOK, divergence)
	direction, confidence, multiplier := escalate(base, confirmations)

	last, _ := series.Last()

	reason := fmt.Sprintf("RSI %.1f below oversold %.1f, %d confirmations", latest, s.config.Oversold, confirmations)
	if base.IsSell() {
		reason = fmt.Sprintf("RSI %.1f above overbought %.1f, %d confirmations", latest, s.config.Overbought, confirmations)
	}

	signal := types.Signal{
		Symbol:     symbol,
		Direction:  direction,
		Price:      last.Close,
		Confidence: confidence,
		Time:       last.Time,
		Indicators: map[string]float64{
			"rsi":          latest,
			"volume_ratio": ratio,
			"trend":        TrendScore(trend),
		},
		Reason:         reason,
		SizeMultiplier: multiplier,
		Strategy:       RSIStrategyName,
	}

	return optional.Some(signal), nil
}

// ShouldExitPosition advises closing a long once RSI crosses overbought and
// a short once it crosses oversold.
func (s *RSIStrategy) ShouldExitPosition(series *types.BarSeries, entry types.Signal) (bool, string) {
	if series == nil {
		return false, ""
	}

	latest, err := indicator.RSI(series.Closes(), s.config.Period)
	if err != nil {
		return false, ""
	}

	if entry.Direction.IsBuy() && latest > s.config.Overbought {
		return true, fmt.Sprintf("RSI %.1f above overbought %.1f", latest, s.config.Overbought)
	}

	if entry.Direction.IsSell() && latest < s.config.Oversold {
		return true, fmt.Sprintf("RSI %.1f below oversold %.1f", latest, s.config.Oversold)
	}

	return false, ""
}

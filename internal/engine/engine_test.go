package engine

import (
	"context"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/argo-signals/internal/logger"
	"github.com/rxtech-lab/argo-signals/internal/strategy"
	"github.com/rxtech-lab/argo-signals/internal/types"
	"github.com/rxtech-lab/argo-signals/pkg/errors"
)

// stubStrategy returns a canned analysis result.
type stubStrategy struct {
	name   string
	result optional.Option[types.Signal]
	err    error
}

var _ strategy.Strategy = (*stubStrategy)(nil)

func (s *stubStrategy) Name() string { return s.name }

func (s *stubStrategy) Info() strategy.Info {
	return strategy.Info{Name: s.name, RequiredBars: 1}
}

func (s *stubStrategy) Analyze(_ string, _ *types.BarSeries) (optional.Option[types.Signal], error) {
	if s.err != nil {
		return optional.None[types.Signal](), s.err
	}

	return s.result, nil
}

func (s *stubStrategy) ShouldExitPosition(_ *types.BarSeries, _ types.Signal) (bool, string) {
	return false, ""
}

func stub(name string, direction types.Direction, confidence float64, indicators map[string]float64) *stubStrategy {
	return &stubStrategy{
		name: name,
		result: optional.Some(types.Signal{ //nolint:exhaustruct
			Symbol:         "AAPL",
			Direction:      direction,
			Confidence:     confidence,
			Time:           time.Now(),
			Indicators:     indicators,
			SizeMultiplier: 1.0,
			Strategy:       name,
		}),
		err: nil,
	}
}

type EngineTestSuite struct {
	suite.Suite

	ctx context.Context
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineTestSuite))
}

func (s *EngineTestSuite) SetupTest() {
	s.ctx = context.Background()
}

func (s *EngineTestSuite) newEngine(config Config, strategies ...strategy.Strategy) *Engine {
	e, err := New(config, strategies, logger.NewNopLogger())
	s.Require().NoError(err)

	return e
}

func (s *EngineTestSuite) TestUnknownAggregationMethodFailsFast() {
	config := DefaultConfig()
	config.Method = "median"

	_, err := New(config, nil, logger.NewNopLogger())
	s.Require().Error(err)
	s.Equal(errors.ErrCodeUnknownAggregation, errors.GetCode(err))
}

func (s *EngineTestSuite) TestDuplicateStrategyNameFailsFast() {
	_, err := New(DefaultConfig(), []strategy.Strategy{
		stub("rsi", types.DirectionBuy, 0.8, nil),
		stub("rsi", types.DirectionSell, 0.8, nil),
	}, logger.NewNopLogger())
	s.Require().Error(err)
	s.Equal(errors.ErrCodeDuplicateStrategy, errors.GetCode(err))
}

func (s *EngineTestSuite) TestWeightedAverageAgreementIsBuy() {
	e := s.newEngine(DefaultConfig(),
		stub("rsi", types.DirectionBuy, 0.8, nil),
		stub("macd", types.DirectionBuy, 0.8, nil),
	)

	result, err := e.AnalyzeSymbol(s.ctx, "AAPL", nil)
	s.Require().NoError(err)
	s.Require().True(result.IsSome())

	combined := result.Unwrap()
	s.Equal(types.DirectionBuy, combined.Direction)
	s.InDelta(0.8, combined.Confidence, 1e-9)
	s.Len(combined.Contributions, 2)
}

func (s *EngineTestSuite) TestWeightedAverageOppositionIsNeutral() {
	e := s.newEngine(DefaultConfig(),
		stub("rsi", types.DirectionBuy, 0.9, nil),
		stub("macd", types.DirectionSell, 0.9, nil),
	)

	result, err := e.AnalyzeSymbol(s.ctx, "AAPL", nil)
	s.Require().NoError(err)
	s.Require().True(result.IsSome())

	s.Equal(types.DirectionNeutral, result.Unwrap().Direction)
}

func (s *EngineTestSuite) TestWeightedAverageHonorsWeights() {
	config := DefaultConfig()
	config.Weights = map[string]float64{"rsi": 1.0, "macd": 0.0}

	e := s.newEngine(config,
		stub("rsi", types.DirectionBuy, 0.8, nil),
		stub("macd", types.DirectionSell, 0.8, nil),
	)

	result, err := e.AnalyzeSymbol(s.ctx, "AAPL", nil)
	s.Require().NoError(err)
	s.Require().True(result.IsSome())

	s.Equal(types.DirectionBuy, result.Unwrap().Direction)
}

func (s *EngineTestSuite) TestSetWeightsReplacesWholeMap() {
	e := s.newEngine(DefaultConfig(),
		stub("rsi", types.DirectionBuy, 0.8, nil),
		stub("macd", types.DirectionSell, 0.8, nil),
	)

	e.SetWeights(map[string]float64{"rsi": 0.0, "macd": 1.0})

	result, err := e.AnalyzeSymbol(s.ctx, "AAPL", nil)
	s.Require().NoError(err)
	s.Require().True(result.IsSome())

	s.Equal(types.DirectionSell, result.Unwrap().Direction)
}

func (s *EngineTestSuite) TestConsensusBelowThresholdIsNeutral() {
	config := DefaultConfig()
	config.Method = types.AggregationConsensus
	config.MinAgreementThreshold = 0.8

	e := s.newEngine(config,
		stub("rsi", types.DirectionBuy, 0.6, nil),
		stub("macd", types.DirectionSell, 0.4, nil),
	)

	result, err := e.AnalyzeSymbol(s.ctx, "AAPL", nil)
	s.Require().NoError(err)
	s.Require().True(result.IsSome())

	s.Equal(types.DirectionNeutral, result.Unwrap().Direction)
}

func (s *EngineTestSuite) TestConsensusTieResolvesDeterministically() {
	// An exact confidence-sum tie must resolve the same way on every run;
	// the direction closer to neutral (and SELL over BUY on a mirror tie)
	// wins.
	for i := 0; i < 10; i++ {
		config := DefaultConfig()
		config.Method = types.AggregationConsensus
		config.MinAgreementThreshold = 0.5

		e := s.newEngine(config,
			stub("rsi", types.DirectionBuy, 0.8, nil),
			stub("macd", types.DirectionSell, 0.8, nil),
		)

		result, err := e.AnalyzeSymbol(s.ctx, "AAPL", nil)
		s.Require().NoError(err)
		s.Require().True(result.IsSome())

		s.Equal(types.DirectionSell, result.Unwrap().Direction)
	}
}

func (s *EngineTestSuite) TestConsensusAboveThresholdWins() {
	config := DefaultConfig()
	config.Method = types.AggregationConsensus
	config.MinAgreementThreshold = 0.6

	e := s.newEngine(config,
		stub("rsi", types.DirectionBuy, 0.9, nil),
		stub("macd", types.DirectionBuy, 0.8, nil),
		stub("third", types.DirectionSell, 0.3, nil),
	)

	result, err := e.AnalyzeSymbol(s.ctx, "AAPL", nil)
	s.Require().NoError(err)
	s.Require().True(result.IsSome())

	combined := result.Unwrap()
	s.Equal(types.DirectionBuy, combined.Direction)
	s.Len(combined.Contributions, 2)
}

func (s *EngineTestSuite) TestStrongestTakesHighestConfidenceVerbatim() {
	config := DefaultConfig()
	config.Method = types.AggregationStrongest

	e := s.newEngine(config,
		stub("rsi", types.DirectionBuy, 0.7, nil),
		stub("macd", types.DirectionStrongSell, 0.9, nil),
	)

	result, err := e.AnalyzeSymbol(s.ctx, "AAPL", nil)
	s.Require().NoError(err)
	s.Require().True(result.IsSome())

	combined := result.Unwrap()
	s.Equal(types.DirectionStrongSell, combined.Direction)
	s.InDelta(0.9, combined.Confidence, 1e-9)
	s.Len(combined.Contributions, 1)
}

func (s *EngineTestSuite) TestCooldownSuppressesSecondSignal() {
	e := s.newEngine(DefaultConfig(), stub("rsi", types.DirectionBuy, 0.8, nil))

	first, err := e.AnalyzeSymbol(s.ctx, "AAPL", nil)
	s.Require().NoError(err)
	s.True(first.IsSome())

	second, err := e.AnalyzeSymbol(s.ctx, "AAPL", nil)
	s.Require().NoError(err)
	s.True(second.IsNone())
}

func (s *EngineTestSuite) TestCooldownIsPerSymbol() {
	e := s.newEngine(DefaultConfig(), stub("rsi", types.DirectionBuy, 0.8, nil))

	first, err := e.AnalyzeSymbol(s.ctx, "AAPL", nil)
	s.Require().NoError(err)
	s.True(first.IsSome())

	other, err := e.AnalyzeSymbol(s.ctx, "MSFT", nil)
	s.Require().NoError(err)
	s.True(other.IsSome())
}

func (s *EngineTestSuite) TestFailingStrategyIsIsolated() {
	failing := &stubStrategy{
		name:   "broken",
		result: optional.None[types.Signal](),
		err:    errors.New(errors.ErrCodeStrategyRuntimeError, "boom"),
	}

	e := s.newEngine(DefaultConfig(), failing, stub("rsi", types.DirectionBuy, 0.8, nil))

	result, err := e.AnalyzeSymbol(s.ctx, "AAPL", nil)
	s.Require().NoError(err)
	s.Require().True(result.IsSome())

	s.Equal(types.DirectionBuy, result.Unwrap().Direction)
}

func (s *EngineTestSuite) TestMinConfidenceFilter() {
	config := DefaultConfig()
	config.MinConfidence = map[string]float64{"rsi": 0.9}

	e := s.newEngine(config, stub("rsi", types.DirectionBuy, 0.8, nil))

	result, err := e.AnalyzeSymbol(s.ctx, "AAPL", nil)
	s.Require().NoError(err)
	s.True(result.IsNone())
}

func (s *EngineTestSuite) TestVolumeFilterDropsWeakVolume() {
	config := DefaultConfig()
	config.VolumeFilter = true

	e := s.newEngine(config,
		stub("rsi", types.DirectionBuy, 0.8, map[string]float64{"volume_ratio": 0.5}),
	)

	result, err := e.AnalyzeSymbol(s.ctx, "AAPL", nil)
	s.Require().NoError(err)
	s.True(result.IsNone())
}

func (s *EngineTestSuite) TestTrendFilterDowngradesStrongSignal() {
	config := DefaultConfig()
	config.TrendFilter = true

	e := s.newEngine(config,
		stub("rsi", types.DirectionStrongBuy, 0.9, map[string]float64{"trend": 0}),
	)

	result, err := e.AnalyzeSymbol(s.ctx, "AAPL", nil)
	s.Require().NoError(err)
	s.Require().True(result.IsSome())

	s.Equal(types.DirectionBuy, result.Unwrap().Direction)
}

func (s *EngineTestSuite) TestLatestSignalReflectsCache() {
	e := s.newEngine(DefaultConfig(), stub("rsi", types.DirectionBuy, 0.8, nil))

	_, ok := e.LatestSignal("AAPL")
	s.False(ok)

	result, err := e.AnalyzeSymbol(s.ctx, "AAPL", nil)
	s.Require().NoError(err)
	s.Require().True(result.IsSome())

	cached, ok := e.LatestSignal("AAPL")
	s.Require().True(ok)
	s.Equal(result.Unwrap().ID, cached.ID)
}

func (s *EngineTestSuite) TestNoSignalsReturnsNone() {
	none := &stubStrategy{name: "quiet", result: optional.None[types.Signal](), err: nil}

	e := s.newEngine(DefaultConfig(), none)

	result, err := e.AnalyzeSymbol(s.ctx, "AAPL", nil)
	s.Require().NoError(err)
	s.True(result.IsNone())
}

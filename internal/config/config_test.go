package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/argo-signals/internal/types"
	"github.com/rxtech-lab/argo-signals/pkg/errors"
	"github.com/rxtech-lab/argo-signals/pkg/marketdata"
)

const fullConfig = `
stream:
  url: wss://stream.example.com/v2/iex
  key_env: MY_STREAM_KEY
  secret_env: MY_STREAM_SECRET
  auth_timeout: 5s
  reconnect_min_delay: 500ms
  reconnect_max_delay: 30s
  max_reconnect_attempts: 5
  event_buffer_size: 512
engine:
  method: consensus
  min_agreement_threshold: 0.7
  signal_timeout: 10m
  max_signals_per_symbol: 2
  weights:
    rsi: 2.0
strategies:
  rsi:
    period: 21
risk:
  limits:
    max_position_size: 25000
    max_portfolio_risk: 0.01
    max_daily_loss: 0.02
    max_positions: 8
    max_correlation: 0.6
    stop_loss_pct: 0.03
    take_profit_pct: 0.06
    max_sector_exposure: 0.25
    max_single_position_pct: 0.15
  sectors:
    AAPL: technology
    XOM: energy
pipeline:
  symbols: [AAPL, MSFT]
  history_depth: 500
  seed_lookback: 48h
  seed_multiplier: 5
  seed_timespan: minute
  bar_buffer_size: 128
market_data:
  provider: polygon
  api_key_env: POLYGON_API_KEY
execution:
  mode: paper
  paper_capital: 50000
`

type ConfigTestSuite struct {
	suite.Suite
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}

func (s *ConfigTestSuite) TestParseFullDocument() {
	cfg, err := Parse([]byte(fullConfig))
	s.Require().NoError(err)

	s.Equal("wss://stream.example.com/v2/iex", cfg.Stream.URL)
	s.Equal(5*time.Second, cfg.Stream.AuthTimeout.Std())
	s.Equal(500*time.Millisecond, cfg.Stream.ReconnectMinDelay.Std())
	s.Equal(5, cfg.Stream.MaxReconnectAttempts)

	s.Equal(types.AggregationConsensus, cfg.Engine.Method)
	s.InDelta(0.7, cfg.Engine.MinAgreementThreshold, 1e-9)
	s.Equal(10*time.Minute, cfg.Engine.SignalTimeout.Std())
	s.InDelta(2.0, cfg.Engine.Weights["rsi"], 1e-9)

	s.Require().NotNil(cfg.Strategies.RSI)
	s.Equal(21, cfg.Strategies.RSI.Period)
	// Untouched RSI fields keep their defaults.
	s.InDelta(30, cfg.Strategies.RSI.Oversold, 1e-9)

	s.InDelta(25_000, cfg.Risk.Limits.MaxPositionSize, 1e-9)
	s.Equal("technology", cfg.Risk.Sectors["AAPL"])

	s.Equal([]string{"AAPL", "MSFT"}, cfg.Pipeline.Symbols)
	s.Equal(48*time.Hour, cfg.Pipeline.SeedLookback.Std())
	s.Equal(marketdata.TimespanMinute, cfg.Pipeline.SeedTimespan)

	s.Equal("polygon", cfg.MarketData.Provider)
	s.Equal(ExecutionModePaper, cfg.Execution.Mode)
	s.InDelta(50_000, cfg.Execution.PaperCapital, 1e-9)
}

func (s *ConfigTestSuite) TestParseRequiresSymbols() {
	_, err := Parse([]byte("execution:\n  mode: paper\n"))
	s.Require().Error(err)
	s.Equal(errors.ErrCodeInvalidConfiguration, errors.GetCode(err))
}

func (s *ConfigTestSuite) TestParseRejectsUnknownExecutionMode() {
	doc := `
pipeline:
  symbols: [AAPL]
execution:
  mode: alpaca
`

	_, err := Parse([]byte(doc))
	s.Require().Error(err)
	s.Equal(errors.ErrCodeInvalidConfiguration, errors.GetCode(err))
}

func (s *ConfigTestSuite) TestParseRejectsMalformedYAML() {
	_, err := Parse([]byte("pipeline: ["))
	s.Require().Error(err)
	s.Equal(errors.ErrCodeInvalidConfiguration, errors.GetCode(err))
}

func (s *ConfigTestSuite) TestDisableStrategyWithNull() {
	doc := `
pipeline:
  symbols: [AAPL]
strategies:
  macd: null
`

	cfg, err := Parse([]byte(doc))
	s.Require().NoError(err)
	s.Nil(cfg.Strategies.MACD)
	s.NotNil(cfg.Strategies.RSI)

	strategies, err := cfg.BuildStrategies()
	s.Require().NoError(err)
	s.Require().Len(strategies, 1)
	s.Equal("rsi", strategies[0].Name())
}

func (s *ConfigTestSuite) TestBuildStrategiesRequiresOne() {
	cfg, err := Parse([]byte("pipeline:\n  symbols: [AAPL]\nstrategies:\n  rsi: null\n  macd: null\n"))
	s.Require().NoError(err)

	_, err = cfg.BuildStrategies()
	s.Require().Error(err)
	s.Equal(errors.ErrCodeInvalidConfiguration, errors.GetCode(err))
}

func (s *ConfigTestSuite) TestStreamConfigResolvesEnvCredentials() {
	s.T().Setenv("MY_STREAM_KEY", "key-123")
	s.T().Setenv("MY_STREAM_SECRET", "secret-456")

	cfg, err := Parse([]byte(fullConfig))
	s.Require().NoError(err)

	streamConfig := cfg.StreamConfig()
	s.Equal("key-123", streamConfig.Key)
	s.Equal("secret-456", streamConfig.Secret)
	s.Equal(5*time.Second, streamConfig.AuthTimeout)
}

func (s *ConfigTestSuite) TestConfigConversions() {
	cfg, err := Parse([]byte(fullConfig))
	s.Require().NoError(err)

	engineConfig := cfg.EngineConfig()
	s.Equal(types.AggregationConsensus, engineConfig.Method)
	s.Equal(10*time.Minute, engineConfig.SignalTimeout)

	pipelineConfig := cfg.PipelineConfig()
	s.Equal([]string{"AAPL", "MSFT"}, pipelineConfig.Symbols)
	s.Equal(48*time.Hour, pipelineConfig.SeedLookback)
	s.Equal(128, pipelineConfig.BarBufferSize)
}

func (s *ConfigTestSuite) TestLoadFromFile() {
	path := filepath.Join(s.T().TempDir(), "pipeline.yaml")
	s.Require().NoError(os.WriteFile(path, []byte(fullConfig), 0o600))

	cfg, err := Load(path)
	s.Require().NoError(err)
	s.Equal([]string{"AAPL", "MSFT"}, cfg.Pipeline.Symbols)

	_, err = Load(filepath.Join(s.T().TempDir(), "missing.yaml"))
	s.Require().Error(err)
	s.Equal(errors.ErrCodeInvalidConfiguration, errors.GetCode(err))
}

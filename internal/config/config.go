// Package config loads the full pipeline configuration from one YAML
// document. Component defaults apply first; the file overrides them, and
// validation fails fast at load time.
package config

import (
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/rxtech-lab/argo-signals/internal/engine"
	"github.com/rxtech-lab/argo-signals/internal/strategy"
	"github.com/rxtech-lab/argo-signals/internal/stream"
	"github.com/rxtech-lab/argo-signals/internal/trading"
	"github.com/rxtech-lab/argo-signals/internal/types"
	"github.com/rxtech-lab/argo-signals/pkg/errors"
	"github.com/rxtech-lab/argo-signals/pkg/marketdata"
)

// Execution modes accepted in the execution section.
const (
	ExecutionModePaper   = "paper"
	ExecutionModeBinance = "binance"
)

// Config is the whole pipeline configuration.
type Config struct {
	Stream     StreamConfig     `json:"stream" yaml:"stream"`
	Engine     EngineConfig     `json:"engine" yaml:"engine"`
	Strategies StrategiesConfig `json:"strategies" yaml:"strategies"`
	Risk       RiskConfig       `json:"risk" yaml:"risk"`
	Pipeline   PipelineConfig   `json:"pipeline" yaml:"pipeline"`
	MarketData MarketDataConfig `json:"market_data" yaml:"market_data"`
	Execution  ExecutionConfig  `json:"execution" yaml:"execution"`
}

// StreamConfig is the stream section. Credentials name environment
// variables instead of carrying secrets in the file.
type StreamConfig struct {
	URL                  string         `json:"url" yaml:"url" validate:"required"`
	KeyEnv               string         `json:"key_env" yaml:"key_env"`
	SecretEnv            string         `json:"secret_env" yaml:"secret_env"`
	AuthTimeout          types.Duration `json:"auth_timeout" yaml:"auth_timeout"`
	ReconnectMinDelay    types.Duration `json:"reconnect_min_delay" yaml:"reconnect_min_delay"`
	ReconnectMaxDelay    types.Duration `json:"reconnect_max_delay" yaml:"reconnect_max_delay"`
	MaxReconnectAttempts int            `json:"max_reconnect_attempts" yaml:"max_reconnect_attempts" validate:"required,gt=0"`
	EventBufferSize      int            `json:"event_buffer_size" yaml:"event_buffer_size" validate:"required,gt=0"`
}

// EngineConfig is the engine section with file friendly durations.
type EngineConfig struct {
	Method                types.AggregationMethod `json:"method" yaml:"method" validate:"required"`
	MinAgreementThreshold float64                 `json:"min_agreement_threshold" yaml:"min_agreement_threshold" validate:"gte=0,lte=1"`
	SignalTimeout         types.Duration          `json:"signal_timeout" yaml:"signal_timeout"`
	MaxSignalsPerSymbol   int                     `json:"max_signals_per_symbol" yaml:"max_signals_per_symbol" validate:"required,gt=0"`
	MinConfidence         map[string]float64      `json:"min_confidence" yaml:"min_confidence"`
	Weights               map[string]float64      `json:"weights" yaml:"weights"`
	VolumeFilter          bool                    `json:"volume_filter" yaml:"volume_filter"`
	TrendFilter           bool                    `json:"trend_filter" yaml:"trend_filter"`
}

// PipelineConfig is the pipeline section with file friendly durations.
type PipelineConfig struct {
	Symbols        []string            `json:"symbols" yaml:"symbols" validate:"required,min=1,dive,required"`
	HistoryDepth   int                 `json:"history_depth" yaml:"history_depth" validate:"required,gt=0"`
	SeedLookback   types.Duration      `json:"seed_lookback" yaml:"seed_lookback"`
	SeedMultiplier int                 `json:"seed_multiplier" yaml:"seed_multiplier" validate:"required,gt=0"`
	SeedTimespan   marketdata.Timespan `json:"seed_timespan" yaml:"seed_timespan"`
	BarBufferSize  int                 `json:"bar_buffer_size" yaml:"bar_buffer_size" validate:"required,gt=0"`
}

// StrategiesConfig enables and configures the strategy set. A nil section
// leaves that strategy out.
type StrategiesConfig struct {
	RSI  *strategy.RSIConfig  `json:"rsi" yaml:"rsi"`
	MACD *strategy.MACDConfig `json:"macd" yaml:"macd"`
}

// RiskConfig is the risk section: hard limits plus the symbol to sector map
// backing sector exposure and correlation checks.
type RiskConfig struct {
	Limits  types.RiskLimits  `json:"limits" yaml:"limits"`
	Sectors map[string]string `json:"sectors" yaml:"sectors"`
}

// MarketDataConfig selects the historical bar provider used for seeding.
type MarketDataConfig struct {
	Provider  string `json:"provider" yaml:"provider" validate:"required,oneof=polygon binance"`
	APIKeyEnv string `json:"api_key_env" yaml:"api_key_env"`
}

// ExecutionConfig selects the order executor.
type ExecutionConfig struct {
	Mode       string `json:"mode" yaml:"mode" validate:"required,oneof=paper binance"`
	KeyEnv     string `json:"key_env" yaml:"key_env"`
	SecretEnv  string `json:"secret_env" yaml:"secret_env"`
	QuoteAsset string `json:"quote_asset" yaml:"quote_asset"`
	// PaperCapital funds the simulated account in paper mode
	PaperCapital float64 `json:"paper_capital" yaml:"paper_capital" validate:"gte=0"`
}

// Default returns the configuration used when the file leaves a section
// out: weighted-average engine, RSI and MACD with canonical settings,
// paper execution, Binance seeding.
func Default() Config {
	rsi := strategy.DefaultRSIConfig()
	macd := strategy.DefaultMACDConfig()
	streamDefaults := stream.DefaultConfig()

	engineDefaults := engine.DefaultConfig()
	pipelineDefaults := trading.DefaultConfig()

	return Config{
		Stream: StreamConfig{
			URL:                  streamDefaults.URL,
			KeyEnv:               "STREAM_KEY",
			SecretEnv:            "STREAM_SECRET",
			AuthTimeout:          types.Duration(streamDefaults.AuthTimeout),
			ReconnectMinDelay:    types.Duration(streamDefaults.ReconnectMinDelay),
			ReconnectMaxDelay:    types.Duration(streamDefaults.ReconnectMaxDelay),
			MaxReconnectAttempts: streamDefaults.MaxReconnectAttempts,
			EventBufferSize:      streamDefaults.EventBufferSize,
		},
		Engine: EngineConfig{
			Method:                engineDefaults.Method,
			MinAgreementThreshold: engineDefaults.MinAgreementThreshold,
			SignalTimeout:         types.Duration(engineDefaults.SignalTimeout),
			MaxSignalsPerSymbol:   engineDefaults.MaxSignalsPerSymbol,
			MinConfidence:         map[string]float64{},
			Weights:               map[string]float64{},
			VolumeFilter:          engineDefaults.VolumeFilter,
			TrendFilter:           engineDefaults.TrendFilter,
		},
		Strategies: StrategiesConfig{
			RSI:  &rsi,
			MACD: &macd,
		},
		Risk: RiskConfig{
			Limits: types.RiskLimits{
				MaxPositionSize:      50_000,
				MaxPortfolioRisk:     0.02,
				MaxDailyLoss:         0.03,
				MaxPositions:         10,
				MaxCorrelation:       0.7,
				StopLossPct:          0.02,
				TakeProfitPct:        0.05,
				MaxSectorExposure:    0.3,
				MaxSinglePositionPct: 0.2,
			},
			Sectors: map[string]string{},
		},
		Pipeline: PipelineConfig{
			Symbols:        pipelineDefaults.Symbols,
			HistoryDepth:   pipelineDefaults.HistoryDepth,
			SeedLookback:   types.Duration(pipelineDefaults.SeedLookback),
			SeedMultiplier: pipelineDefaults.SeedMultiplier,
			SeedTimespan:   pipelineDefaults.SeedTimespan,
			BarBufferSize:  pipelineDefaults.BarBufferSize,
		},
		MarketData: MarketDataConfig{
			Provider:  marketdata.ProviderNameBinance,
			APIKeyEnv: "MARKET_DATA_API_KEY",
		},
		Execution: ExecutionConfig{
			Mode:         ExecutionModePaper,
			KeyEnv:       "EXECUTION_KEY",
			SecretEnv:    "EXECUTION_SECRET",
			QuoteAsset:   "USDT",
			PaperCapital: 100_000,
		},
	}
}

// Load reads and parses the YAML file at path.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "cannot read config file %s", path) //nolint:exhaustruct
	}

	return Parse(raw)
}

// Parse overlays the document on the defaults and validates the result.
// Component constructors re-validate their own sections; Parse catches the
// top-level mistakes before anything is built.
func Parse(raw []byte) (Config, error) {
	config := Default()

	if err := yaml.Unmarshal(raw, &config); err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidConfiguration, "cannot parse config file", err) //nolint:exhaustruct
	}

	if err := validator.New().Struct(config); err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid configuration", err) //nolint:exhaustruct
	}

	return config, nil
}

// StreamConfig materializes the stream section, resolving credentials from
// the environment.
func (c Config) StreamConfig() stream.Config {
	return stream.Config{
		URL:                  c.Stream.URL,
		Key:                  os.Getenv(c.Stream.KeyEnv),
		Secret:               os.Getenv(c.Stream.SecretEnv),
		AuthTimeout:          c.Stream.AuthTimeout.Std(),
		ReconnectMinDelay:    c.Stream.ReconnectMinDelay.Std(),
		ReconnectMaxDelay:    c.Stream.ReconnectMaxDelay.Std(),
		MaxReconnectAttempts: c.Stream.MaxReconnectAttempts,
		EventBufferSize:      c.Stream.EventBufferSize,
	}
}

// EngineConfig materializes the engine section.
func (c Config) EngineConfig() engine.Config {
	return engine.Config{
		Method:                c.Engine.Method,
		MinAgreementThreshold: c.Engine.MinAgreementThreshold,
		SignalTimeout:         c.Engine.SignalTimeout.Std(),
		MaxSignalsPerSymbol:   c.Engine.MaxSignalsPerSymbol,
		MinConfidence:         c.Engine.MinConfidence,
		Weights:               c.Engine.Weights,
		VolumeFilter:          c.Engine.VolumeFilter,
		TrendFilter:           c.Engine.TrendFilter,
	}
}

// PipelineConfig materializes the pipeline section.
func (c Config) PipelineConfig() trading.Config {
	return trading.Config{
		Symbols:        c.Pipeline.Symbols,
		HistoryDepth:   c.Pipeline.HistoryDepth,
		SeedLookback:   c.Pipeline.SeedLookback.Std(),
		SeedMultiplier: c.Pipeline.SeedMultiplier,
		SeedTimespan:   c.Pipeline.SeedTimespan,
		BarBufferSize:  c.Pipeline.BarBufferSize,
	}
}

// BuildStrategies constructs the enabled strategies.
func (c Config) BuildStrategies() ([]strategy.Strategy, error) {
	strategies := make([]strategy.Strategy, 0, 2)

	if c.Strategies.RSI != nil {
		rsi, err := strategy.NewRSIStrategy(*c.Strategies.RSI)
		if err != nil {
			return nil, err
		}

		strategies = append(strategies, rsi)
	}

	if c.Strategies.MACD != nil {
		macd, err := strategy.NewMACDStrategy(*c.Strategies.MACD)
		if err != nil {
			return nil, err
		}

		strategies = append(strategies, macd)
	}

	if len(strategies) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidConfiguration, "no strategies enabled")
	}

	return strategies, nil
}

// MarketDataProvider builds the seeding provider, resolving the API key
// from the environment.
func (c Config) MarketDataProvider() (marketdata.Provider, error) {
	return marketdata.New(c.MarketData.Provider, os.Getenv(c.MarketData.APIKeyEnv))
}

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rxtech-lab/argo-signals/internal/config"
	"github.com/rxtech-lab/argo-signals/internal/engine"
	"github.com/rxtech-lab/argo-signals/internal/logger"
	"github.com/rxtech-lab/argo-signals/internal/risk"
	"github.com/rxtech-lab/argo-signals/internal/stream"
	"github.com/rxtech-lab/argo-signals/internal/trading"
	tradingprovider "github.com/rxtech-lab/argo-signals/internal/trading/provider"
	"github.com/rxtech-lab/argo-signals/internal/types"
)

func main() {
	configFlag := flag.String("config", "", "Path to pipeline config file (required)")
	symbolsFlag := flag.String("symbols", "", "Comma-separated symbol override")
	paperFlag := flag.Bool("paper", false, "Force paper execution regardless of config")

	flag.Parse()

	if *configFlag == "" {
		fmt.Println("Error: --config flag is required")
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if *symbolsFlag != "" {
		symbols := strings.Split(*symbolsFlag, ",")
		for i := range symbols {
			symbols[i] = strings.TrimSpace(symbols[i])
		}

		cfg.Pipeline.Symbols = symbols
	}

	if *paperFlag {
		cfg.Execution.Mode = config.ExecutionModePaper
	}

	appLogger, err := logger.NewLogger()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer appLogger.Sync() //nolint:errcheck

	strategies, err := cfg.BuildStrategies()
	if err != nil {
		log.Fatalf("Failed to build strategies: %v", err)
	}

	eng, err := engine.New(cfg.EngineConfig(), strategies, appLogger)
	if err != nil {
		log.Fatalf("Failed to create engine: %v", err)
	}

	sectors := risk.NewStaticSectorLookup(cfg.Risk.Sectors)

	riskManager, err := risk.NewManager(cfg.Risk.Limits, sectors, appLogger)
	if err != nil {
		log.Fatalf("Failed to create risk manager: %v", err)
	}

	prices := &tradingprovider.DeferredPriceSource{}

	accounts, execution, err := buildProviders(cfg, prices, appLogger)
	if err != nil {
		log.Fatalf("Failed to create providers: %v", err)
	}

	pipeline, err := trading.New(cfg.PipelineConfig(), eng, riskManager, accounts, execution, appLogger)
	if err != nil {
		log.Fatalf("Failed to create pipeline: %v", err)
	}

	prices.Set(pipeline)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	seedProvider, err := cfg.MarketDataProvider()
	if err != nil {
		log.Fatalf("Failed to create market data provider: %v", err)
	}

	if err := pipeline.Seed(ctx, seedProvider); err != nil {
		log.Fatalf("Failed to seed history: %v", err)
	}

	streamManager, err := stream.NewManager(cfg.StreamConfig(), stream.WebsocketDialer{}, appLogger)
	if err != nil {
		log.Fatalf("Failed to create stream manager: %v", err)
	}

	if err := streamManager.Start(ctx); err != nil {
		log.Fatalf("Failed to start stream: %v", err)
	}

	if err := pipeline.Start(ctx, streamManager); err != nil {
		log.Fatalf("Failed to start pipeline: %v", err)
	}

	fmt.Printf("Pipeline running with %d symbols, execution mode %s\n",
		len(cfg.Pipeline.Symbols), cfg.Execution.Mode)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	fmt.Println("\nReceived interrupt signal, stopping...")
	cancel()
	streamManager.Stop()
	pipeline.Stop()

	stats := pipeline.Stats()
	fmt.Printf("Processed %d bars, placed %d intents\n", stats.BarsProcessed, stats.IntentsPlaced)
}

func buildProviders(
	cfg config.Config,
	prices tradingprovider.PriceSource,
	appLogger *logger.Logger,
) (tradingprovider.AccountProvider, tradingprovider.ExecutionProvider, error) {
	if cfg.Execution.Mode == config.ExecutionModeBinance {
		provider, err := tradingprovider.NewBinanceProvider(
			os.Getenv(cfg.Execution.KeyEnv),
			os.Getenv(cfg.Execution.SecretEnv),
			cfg.Execution.QuoteAsset,
			prices,
		)
		if err != nil {
			return nil, nil, err
		}

		return provider, provider, nil
	}

	accounts := tradingprovider.NewStaticAccountProvider(types.AccountSnapshot{
		PortfolioValue: cfg.Execution.PaperCapital,
		Cash:           cfg.Execution.PaperCapital,
		Equity:         cfg.Execution.PaperCapital,
		LastEquity:     cfg.Execution.PaperCapital,
	}, nil)

	return accounts, tradingprovider.NewPaperExecutionProvider(appLogger), nil
}

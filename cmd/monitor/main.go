package main

import (
	"context"
	"log" // Use standard log only for initial fatal errors before logger is set up

	"pairsTradingBot/config"
	"pairsTradingBot/internal/adapters/binanceclient"
	"pairsTradingBot/internal/adapters/logger"
	"pairsTradingBot/internal/adapters/sqlite"
	"pairsTradingBot/internal/analysis"
	"pairsTradingBot/internal/app"
	"pairsTradingBot/internal/ports"
	"pairsTradingBot/internal/risk"
	"pairsTradingBot/internal/signals"
	"time"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	appLogger := newLogger(cfg)
	appLogger.Info(context.Background(), "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String(), "format": cfg.LogFormat})

	// 3. Initialize Repository (Database Adapter)
	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize database repository")
		log.Fatalf("FATAL: Failed to initialize database repository: %v", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			appLogger.Error(context.Background(), err, "Error closing database repository")
		}
	}()
	appLogger.Info(context.Background(), "Database repository initialized")

	// 4. Initialize Exchange Client (Binance Adapter)
	binanceClient, err := binanceclient.New(binanceclient.Config{
		APIKey:     cfg.Exchange.APIKey,
		SecretKey:  cfg.Exchange.SecretKey,
		UseTestnet: cfg.Exchange.IsTestnet,
		Logger:     appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize Binance client")
		log.Fatalf("FATAL: Failed to initialize Binance client: %v", err)
	}
	appLogger.Info(context.Background(), "Binance client initialized")

	// 5. Initialize Cointegration Analyzer
	analyzer, err := analysis.New(analysis.Config{
		PValueThreshold:     cfg.Cointegration.PValueThreshold,
		PValueExitThreshold: cfg.Cointegration.PValueExitThreshold,
		MinHalfLife:         cfg.Cointegration.MinHalfLife,
		MaxHalfLife:         cfg.Cointegration.MaxHalfLife,
		HedgeRatioDrift:     cfg.Cointegration.HedgeRatioDrift,
		ADFLags:             cfg.Cointegration.ADFLags,
	}, appLogger)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize analyzer")
		log.Fatalf("FATAL: Failed to initialize analyzer: %v", err)
	}

	// 6. Initialize Signal Generator
	generator, err := signals.NewGenerator(signals.Config{
		ZScoreEntry:     cfg.Signal.ZScoreEntry,
		ZScoreExit:      cfg.Signal.ZScoreExit,
		ZScoreStop:      cfg.Signal.ZScoreStop,
		ZScoreWarning:   cfg.Signal.ZScoreWarning,
		ScaleIn:         cfg.Signal.ScaleIn,
		ScaleLevels:     cfg.Signal.ScaleLevels,
		ScaleWeights:    cfg.Signal.ScaleWeights,
		HoldingMult:     cfg.Signal.HoldingMult,
		BarInterval:     cfg.Signal.BarInterval,
		Cooldown:        time.Duration(cfg.Signal.CooldownMinutes) * time.Minute,
		MinLookback:     cfg.Signal.MinLookback,
		BreakdownChecks: cfg.Cointegration.BreakdownChecks,
		BreakdownDecay:  cfg.Cointegration.BreakdownDecay,
	}, appLogger)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize signal generator")
		log.Fatalf("FATAL: Failed to initialize signal generator: %v", err)
	}

	// 7. Initialize Risk Manager
	riskMgr, err := risk.NewManager(risk.Config{
		RiskPerTrade:   cfg.Risk.RiskPerTrade,
		MaxActivePairs: cfg.Risk.MaxActivePairs,
		DailyLossLimit: cfg.Risk.DailyLossLimit,
	}, cfg.Backtest.InitialCapital)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize risk manager")
		log.Fatalf("FATAL: Failed to initialize risk manager: %v", err)
	}

	// 8. Initialize Application Service
	service, err := app.NewMonitoringService(
		cfg,
		appLogger,
		binanceClient,
		analyzer,
		generator,
		riskMgr,
		repo, // PairRepository
		repo, // PairStateRepository
		repo, // SignalRepository
	)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize monitoring service")
		log.Fatalf("FATAL: Failed to initialize monitoring service: %v", err)
	}
	appLogger.Info(context.Background(), "Monitoring service initialized")

	// 9. Start the Service
	if err := service.Start(context.Background()); err != nil {
		appLogger.Error(context.Background(), err, "Monitoring service exited with error")
		log.Fatalf("FATAL: Monitoring service exited with error: %v", err)
	}

	appLogger.Info(context.Background(), "Application finished gracefully.")
}

func newLogger(cfg *config.Config) ports.Logger {
	if cfg.LogFormat == "std" {
		return logger.NewStdLogger(cfg.LogLevel)
	}
	return logger.NewZeroLogger(cfg.LogLevel)
}

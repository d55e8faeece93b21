package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"pairsTradingBot/config"
	"pairsTradingBot/internal/adapters/logger"
	"pairsTradingBot/internal/adapters/sqlite"
	"pairsTradingBot/internal/analysis"
	"pairsTradingBot/internal/backtest"
	"pairsTradingBot/internal/optimization"
	"pairsTradingBot/internal/utils"
)

func main() {
	csv1 := flag.String("csv1", "", "CSV file with klines for the first symbol")
	csv2 := flag.String("csv2", "", "CSV file with klines for the second symbol")
	optimize := flag.Bool("optimize", false, "sweep z-score thresholds instead of a single run")
	saveTrades := flag.Bool("save-trades", false, "persist the trade list to the database")
	flag.Parse()

	if *csv1 == "" || *csv2 == "" {
		log.Fatalf("FATAL: -csv1 and -csv2 are required")
	}

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	appLogger := logger.NewStdLogger(cfg.LogLevel)

	// 2. Load and align the two kline series
	klines1, err := utils.ReadKlinesFromCSV(*csv1)
	if err != nil {
		log.Fatalf("FATAL: Failed to read %s: %v", *csv1, err)
	}
	klines2, err := utils.ReadKlinesFromCSV(*csv2)
	if err != nil {
		log.Fatalf("FATAL: Failed to read %s: %v", *csv2, err)
	}
	if len(klines1) == 0 || len(klines2) == 0 {
		log.Fatalf("FATAL: Empty kline series")
	}
	symbol1, symbol2 := klines1[0].Symbol, klines2[0].Symbol

	series1, series2, times := utils.AlignKlines(klines1, klines2)
	appLogger.Info(context.Background(), "Series aligned", map[string]interface{}{
		"symbol1": symbol1, "symbol2": symbol2, "bars": len(times),
	})

	// 3. Initialize Analyzer and Simulator
	analyzer, err := analysis.New(analysis.Config{
		PValueThreshold:     cfg.Cointegration.PValueThreshold,
		PValueExitThreshold: cfg.Cointegration.PValueExitThreshold,
		MinHalfLife:         cfg.Cointegration.MinHalfLife,
		MaxHalfLife:         cfg.Cointegration.MaxHalfLife,
		HedgeRatioDrift:     cfg.Cointegration.HedgeRatioDrift,
		ADFLags:             cfg.Cointegration.ADFLags,
	}, appLogger)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize analyzer: %v", err)
	}

	sim, err := backtest.NewSimulator(analyzer, appLogger)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize simulator: %v", err)
	}

	params := backtest.Params{
		ZScoreEntry:       cfg.Signal.ZScoreEntry,
		ZScoreExit:        cfg.Signal.ZScoreExit,
		ZScoreStop:        cfg.Signal.ZScoreStop,
		HoldingMult:       cfg.Signal.HoldingMult,
		CointLookbackBars: cfg.Backtest.CointLookbackBars,
		RecalibrationBars: cfg.Backtest.RecalibrationBars,
		InitialCapital:    cfg.Backtest.InitialCapital,
		RiskPerTrade:      cfg.Backtest.RiskPerTrade,
	}

	if *optimize {
		runSweep(sim, appLogger, symbol1, symbol2, series1, series2, times, params)
		return
	}

	// 4. Single backtest run
	result, err := sim.Run(context.Background(), symbol1, symbol2, series1, series2, times, params)
	if err != nil {
		log.Fatalf("FATAL: Backtest failed: %v", err)
	}
	printResult(result)

	if *saveTrades {
		repo, err := sqlite.NewRepository(sqlite.Config{DBPath: cfg.DBPath, Logger: appLogger})
		if err != nil {
			log.Fatalf("FATAL: Failed to initialize database repository: %v", err)
		}
		defer repo.Close()
		for _, trade := range result.Trades {
			if err := repo.SaveTrade(context.Background(), trade); err != nil {
				log.Fatalf("FATAL: Failed to save trade: %v", err)
			}
		}
		fmt.Printf("Saved %d trades to %s\n", len(result.Trades), cfg.DBPath)
	}
}

func runSweep(sim *backtest.Simulator, appLogger *logger.StdLogger, symbol1, symbol2 string, series1, series2 []float64, times []time.Time, params backtest.Params) {
	opt, err := optimization.New(optimization.Config{
		Ranges: []optimization.ParameterRange{
			{Name: "zscore_entry", Min: 1.5, Max: 2.5, Step: 0.25},
			{Name: "zscore_exit", Min: 0.0, Max: 1.0, Step: 0.25},
			{Name: "zscore_stop", Min: 3.0, Max: 4.0, Step: 0.5},
		},
		Base: params,
	}, sim, appLogger)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize optimizer: %v", err)
	}

	results, err := opt.Optimize(context.Background(), symbol1, symbol2, series1, series2, times)
	if err != nil {
		log.Fatalf("FATAL: Sweep failed: %v", err)
	}

	top := results
	if len(top) > 10 {
		top = top[:10]
	}
	fmt.Printf("Top %d of %d parameter sets:\n", len(top), len(results))
	for _, r := range top {
		fmt.Printf("  entry=%.2f exit=%.2f stop=%.2f  score=%.3f  trades=%d  winRate=%.1f%%  totalPnL=%.2f%%  maxDD=%.2f%%\n",
			r.Params.ZScoreEntry, r.Params.ZScoreExit, r.Params.ZScoreStop,
			r.Score, r.Metric.TotalTrades, r.Metric.WinRate*100,
			r.Metric.TotalPnLPercent, r.Metric.MaxDrawdownPercent)
	}
}

func printResult(r *backtest.Result) {
	fmt.Printf("Backtest %s_%s  (%s to %s)\n", r.Symbol1, r.Symbol2,
		r.StartTime.Format("2006-01-02"), r.EndTime.Format("2006-01-02"))
	fmt.Printf("  Trades:         %d (%d wins, %d losses, win rate %.1f%%)\n",
		r.TotalTrades, r.WinningTrades, r.LosingTrades, r.WinRate*100)
	fmt.Printf("  Total PnL:      %.2f%%  (avg %.2f%% per trade)\n", r.TotalPnLPercent, r.AvgPnLPercent)
	fmt.Printf("  Best / worst:   %.2f%% / %.2f%%\n", r.MaxWinPercent, r.MaxLossPercent)
	fmt.Printf("  Profit factor:  %.2f   Expectancy: %.3f\n", r.ProfitFactor, r.Expectancy)
	fmt.Printf("  Max drawdown:   %.2f%%   Final equity: %.2f\n", r.MaxDrawdownPercent, r.FinalEquity)
	fmt.Printf("  Holding bars:   avg %.1f, max %d\n", r.AvgHoldingBars, r.MaxHoldingBars)
	fmt.Printf("  Avg half-life:  %.1f bars over %d cointegrated windows\n", r.AvgHalfLife, r.CointegratedWindows)
	if len(r.ExitCounts) > 0 {
		fmt.Printf("  Exits:")
		for reason, count := range r.ExitCounts {
			fmt.Printf(" %s=%d", reason, count)
		}
		fmt.Println()
	}
}

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"pairsTradingBot/config"
	"pairsTradingBot/internal/adapters/logger"
	"pairsTradingBot/internal/adapters/sqlite"
	"pairsTradingBot/internal/analysis"
	"pairsTradingBot/internal/domain"
	"pairsTradingBot/internal/scanner"
	"pairsTradingBot/internal/utils"
)

func main() {
	symbolsFlag := flag.String("symbols", "", "comma-separated symbols to scan (CSV files must exist in the data dir)")
	dataDir := flag.String("data", "data", "directory holding kline CSV files from the fetch command")
	maxPairs := flag.Int("max-pairs", 0, "cap on candidate pairs, 0 = unlimited")
	validate := flag.Bool("validate", false, "re-test already active pairs instead of scanning for new ones")
	flag.Parse()

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	appLogger := logger.NewStdLogger(cfg.LogLevel)

	// 2. Initialize Repository
	repo, err := sqlite.NewRepository(sqlite.Config{DBPath: cfg.DBPath, Logger: appLogger})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize database repository: %v", err)
	}
	defer repo.Close()

	// 3. Initialize Analyzer and Scanner
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

	scan, err := scanner.New(analyzer, repo, appLogger)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize scanner: %v", err)
	}

	symbols := splitSymbols(*symbolsFlag)
	if len(symbols) == 0 && !*validate {
		log.Fatalf("FATAL: -symbols is required for a scan")
	}
	if len(symbols) == 0 {
		// Validation mode can derive the symbol set from the stored pairs.
		active, err := repo.FindActivePairs(context.Background())
		if err != nil {
			log.Fatalf("FATAL: Failed to load active pairs: %v", err)
		}
		seen := make(map[string]bool)
		for _, p := range active {
			for _, sym := range []string{p.Symbol1, p.Symbol2} {
				if !seen[sym] {
					seen[sym] = true
					symbols = append(symbols, sym)
				}
			}
		}
	}

	// 4. Load close series from CSVs. Series fetched over the same range
	// and interval are aligned bar for bar.
	data := make(map[string][]float64, len(symbols))
	for _, symbol := range symbols {
		matches, err := filepath.Glob(filepath.Join(*dataDir, symbol+"_*.csv"))
		if err != nil || len(matches) == 0 {
			appLogger.Warn(context.Background(), "No CSV file for symbol, skipping", map[string]interface{}{"symbol": symbol})
			continue
		}
		klines, err := utils.ReadKlinesFromCSV(matches[len(matches)-1])
		if err != nil {
			log.Fatalf("FATAL: Failed to read klines for %s: %v", symbol, err)
		}
		data[symbol] = domain.ClosePrices(klines)
	}

	// 5. Run
	if *validate {
		validated, breakdowns, err := scan.ValidateActivePairs(context.Background(), data)
		if err != nil {
			log.Fatalf("FATAL: Validation failed: %v", err)
		}
		fmt.Printf("Validated %d pairs, %d breakdowns\n", validated, breakdowns)
		return
	}

	result, err := scan.ScanUniverse(context.Background(), symbols, data, *maxPairs)
	if err != nil {
		log.Fatalf("FATAL: Scan failed: %v", err)
	}

	fmt.Printf("Scanned %d pairs: %d cointegrated (%d new)\n", result.PairsScanned, result.CointegratedFound, result.NewPairs)
	for _, r := range result.Results {
		fmt.Printf("  %s_%s  p=%.4f  hedge=%.4f  half-life=%.1f bars\n",
			r.Symbol1, r.Symbol2, r.PValue, r.HedgeRatio, r.HalfLife)
	}
}

func splitSymbols(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"pairsTradingBot/config"
	"pairsTradingBot/internal/adapters/binanceclient"
	"pairsTradingBot/internal/adapters/logger"
	"pairsTradingBot/internal/utils"
)

func main() {
	symbolsFlag := flag.String("symbols", "BTCUSDT,ETHUSDT", "comma-separated symbols to fetch")
	interval := flag.String("interval", "1d", "kline interval")
	months := flag.Int("months", 6, "how many months of history to fetch")
	outDir := flag.String("out", "data", "output directory for CSV files")
	flag.Parse()

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	appLogger := logger.NewStdLogger(cfg.LogLevel)
	appLogger.Info(context.Background(), "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String()})

	// 3. Initialize Exchange Client (Binance Adapter)
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

	end := time.Now()
	start := end.AddDate(0, -*months, 0)

	for _, symbol := range strings.Split(*symbolsFlag, ",") {
		symbol = strings.TrimSpace(symbol)
		if symbol == "" {
			continue
		}
		fmt.Printf("Fetching klines for %s %s from %s to %s...\n", symbol, *interval, start.Format("2006-01-02"), end.Format("2006-01-02"))
		klines, err := binanceClient.GetKlines(context.Background(), symbol, *interval, start, end, 0)
		if err != nil {
			appLogger.Error(context.Background(), err, "Error fetching klines", map[string]interface{}{"symbol": symbol})
			log.Fatalf("Error fetching klines for %s: %v", symbol, err)
		}
		appLogger.Info(context.Background(), "Fetched klines", map[string]interface{}{"symbol": symbol, "count": len(klines)})

		filename := fmt.Sprintf("%s/%s_%s_%s_to_%s.csv", *outDir, symbol, *interval, start.Format("20060102"), end.Format("20060102"))
		if err := utils.WriteKlinesToCSV(klines, filename); err != nil {
			appLogger.Error(context.Background(), err, "Error writing CSV", map[string]interface{}{"filename": filename})
			log.Fatalf("Error writing CSV: %v", err)
		}
		appLogger.Info(context.Background(), "Saved to", map[string]interface{}{"filename": filename})
	}
}

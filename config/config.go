package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"pairsTradingBot/internal/adapters/logger" // Import the logger package for LogLevel
	"pairsTradingBot/internal/ports"
)

// CointegrationConfig holds parameters for the cointegration tests.
type CointegrationConfig struct {
	PValueThreshold     float64 // Entry validity threshold (e.g., 0.05)
	PValueExitThreshold float64 // Breakdown threshold (e.g., 0.10)
	BreakdownChecks     int     // Consecutive invalid evaluations before breakdown exit
	BreakdownDecay      int     // 0 = hard reset of the counter on a valid evaluation, >0 = decay by that amount
	MinHalfLife         float64 // Bars
	MaxHalfLife         float64 // Bars
	HedgeRatioDrift     float64 // Relative drift fraction (e.g., 0.20)
	ADFLags             int     // Augmentation lags for the residual unit-root test
	TestMethod          string  // "engle_granger" or "johansen"
	LookbackBars        int     // Trailing bars fetched for live re-evaluation
}

// SignalConfig holds parameters for signal generation.
type SignalConfig struct {
	ZScoreEntry     float64
	ZScoreExit      float64
	ZScoreStop      float64
	ZScoreWarning   float64 // Informational warning threshold, 0 disables
	ScaleIn         bool
	ScaleLevels     []float64 // Ascending z-score thresholds for scale-ins
	ScaleWeights    []float64 // Position weight per scale level
	HoldingMult     float64   // Max holding = half-life * HoldingMult
	CooldownMinutes int       // Entry signal cooldown per pair
	MinLookback     int       // Floor for the z-score lookback window
	BarInterval     time.Duration
}

// BacktestConfig holds default parameters for the backtest simulator.
type BacktestConfig struct {
	CointLookbackBars int // Trailing window for recalibration
	RecalibrationBars int // Bars between recalibrations
	InitialCapital    float64
	RiskPerTrade      float64
}

// RiskConfig holds parameters for the live risk gate.
type RiskConfig struct {
	RiskPerTrade   float64
	MaxActivePairs int
	DailyLossLimit float64
}

// ExchangeConfig holds Binance connection settings.
type ExchangeConfig struct {
	APIKey         string
	SecretKey      string
	IsTestnet      bool
	Interval       string // Kline interval for fetches (e.g., "1d")
	ReconnectDelay time.Duration
}

// Config holds all application configuration.
type Config struct {
	Cointegration CointegrationConfig
	Signal        SignalConfig
	Backtest      BacktestConfig
	Risk          RiskConfig
	Exchange      ExchangeConfig

	// Database
	DBPath string

	// Monitoring loop
	EvaluationInterval time.Duration

	// Logging
	LogLevel  logger.LogLevel
	LogFormat string // "std" or "zerolog"
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var errs []string // Collect validation errors

	// Cointegration parameters
	cfg.Cointegration = CointegrationConfig{
		PValueThreshold:     getEnvAsFloat("PVALUE_THRESHOLD", 0.05),
		PValueExitThreshold: getEnvAsFloat("PVALUE_EXIT_THRESHOLD", 0.10),
		BreakdownChecks:     getEnvAsInt("BREAKDOWN_CHECKS", 3),
		BreakdownDecay:      getEnvAsInt("BREAKDOWN_DECAY", 0),
		MinHalfLife:         getEnvAsFloat("MIN_HALF_LIFE", 5),
		MaxHalfLife:         getEnvAsFloat("MAX_HALF_LIFE", 50),
		HedgeRatioDrift:     getEnvAsFloat("HEDGE_RATIO_DRIFT_THRESHOLD", 0.20),
		ADFLags:             getEnvAsInt("ADF_LAGS", 1),
		TestMethod:          strings.ToLower(getEnv("COINTEGRATION_TEST_METHOD", "engle_granger")),
		LookbackBars:        getEnvAsInt("COINT_LOOKBACK_BARS", 120),
	}
	if cfg.Cointegration.PValueThreshold <= 0 || cfg.Cointegration.PValueThreshold >= 1 {
		errs = append(errs, "PVALUE_THRESHOLD must be between 0 and 1 (exclusive)")
	}
	if cfg.Cointegration.PValueExitThreshold < cfg.Cointegration.PValueThreshold {
		errs = append(errs, "PVALUE_EXIT_THRESHOLD must not be below PVALUE_THRESHOLD")
	}
	if cfg.Cointegration.BreakdownChecks <= 0 {
		errs = append(errs, "BREAKDOWN_CHECKS must be positive")
	}
	if cfg.Cointegration.BreakdownDecay < 0 {
		errs = append(errs, "BREAKDOWN_DECAY cannot be negative")
	}
	if cfg.Cointegration.MinHalfLife <= 0 || cfg.Cointegration.MaxHalfLife <= cfg.Cointegration.MinHalfLife {
		errs = append(errs, "half-life band requires 0 < MIN_HALF_LIFE < MAX_HALF_LIFE")
	}
	if cfg.Cointegration.HedgeRatioDrift <= 0 {
		errs = append(errs, "HEDGE_RATIO_DRIFT_THRESHOLD must be positive")
	}
	if cfg.Cointegration.ADFLags < 0 {
		errs = append(errs, "ADF_LAGS cannot be negative")
	}
	if cfg.Cointegration.TestMethod != "engle_granger" && cfg.Cointegration.TestMethod != "johansen" {
		errs = append(errs, "COINTEGRATION_TEST_METHOD must be 'engle_granger' or 'johansen'")
	}
	if cfg.Cointegration.LookbackBars <= 0 {
		errs = append(errs, "COINT_LOOKBACK_BARS must be positive")
	}

	// Signal parameters
	cfg.Signal = SignalConfig{
		ZScoreEntry:     getEnvAsFloat("ZSCORE_ENTRY", 2.0),
		ZScoreExit:      getEnvAsFloat("ZSCORE_EXIT", 1.0),
		ZScoreStop:      getEnvAsFloat("ZSCORE_STOP", 3.0),
		ZScoreWarning:   getEnvAsFloat("ZSCORE_WARNING", 2.5),
		ScaleIn:         getEnvAsBool("SCALE_IN", true),
		ScaleLevels:     getEnvAsFloatSlice("SCALE_LEVELS", []float64{2.0, 2.5, 3.0}),
		ScaleWeights:    getEnvAsFloatSlice("SCALE_WEIGHTS", []float64{0.4, 0.35, 0.25}),
		HoldingMult:     getEnvAsFloat("MAX_HOLDING_MULTIPLIER", 2.0),
		CooldownMinutes: getEnvAsInt("ALERT_COOLDOWN_MINUTES", 5),
		MinLookback:     getEnvAsInt("ZSCORE_MIN_LOOKBACK", 10),
		BarInterval:     time.Duration(getEnvAsInt("BAR_INTERVAL_HOURS", 24)) * time.Hour,
	}
	if cfg.Signal.ZScoreEntry <= 0 {
		errs = append(errs, "ZSCORE_ENTRY must be positive")
	}
	if cfg.Signal.ZScoreExit >= cfg.Signal.ZScoreEntry {
		errs = append(errs, "ZSCORE_EXIT must be less than ZSCORE_ENTRY")
	}
	if cfg.Signal.ZScoreStop <= cfg.Signal.ZScoreEntry {
		errs = append(errs, "ZSCORE_STOP must be greater than ZSCORE_ENTRY")
	}
	if len(cfg.Signal.ScaleLevels) != len(cfg.Signal.ScaleWeights) {
		errs = append(errs, "SCALE_LEVELS and SCALE_WEIGHTS must have the same length")
	}
	for i := 1; i < len(cfg.Signal.ScaleLevels); i++ {
		if cfg.Signal.ScaleLevels[i] <= cfg.Signal.ScaleLevels[i-1] {
			errs = append(errs, "SCALE_LEVELS must be strictly ascending")
			break
		}
	}
	if cfg.Signal.HoldingMult <= 0 {
		errs = append(errs, "MAX_HOLDING_MULTIPLIER must be positive")
	}
	if cfg.Signal.CooldownMinutes < 0 {
		errs = append(errs, "ALERT_COOLDOWN_MINUTES cannot be negative")
	}
	if cfg.Signal.MinLookback < 2 {
		errs = append(errs, "ZSCORE_MIN_LOOKBACK must be at least 2")
	}

	// Backtest parameters
	cfg.Backtest = BacktestConfig{
		CointLookbackBars: getEnvAsInt("BACKTEST_COINT_LOOKBACK", 120),
		RecalibrationBars: getEnvAsInt("BACKTEST_RECALIBRATION_BARS", 14),
		InitialCapital:    getEnvAsFloat("BACKTEST_INITIAL_CAPITAL", 100000),
		RiskPerTrade:      getEnvAsFloat("BACKTEST_RISK_PER_TRADE", 0.015),
	}
	if cfg.Backtest.CointLookbackBars <= 0 || cfg.Backtest.RecalibrationBars <= 0 {
		errs = append(errs, "backtest lookback and recalibration bars must be positive")
	}
	if cfg.Backtest.InitialCapital <= 0 {
		errs = append(errs, "BACKTEST_INITIAL_CAPITAL must be positive")
	}
	if cfg.Backtest.RiskPerTrade <= 0 || cfg.Backtest.RiskPerTrade >= 1 {
		errs = append(errs, "BACKTEST_RISK_PER_TRADE must be between 0 and 1 (exclusive)")
	}

	// Risk parameters
	cfg.Risk = RiskConfig{
		RiskPerTrade:   getEnvAsFloat("RISK_PER_TRADE", 0.02),
		MaxActivePairs: getEnvAsInt("MAX_ACTIVE_PAIRS", 20),
		DailyLossLimit: getEnvAsFloat("DAILY_LOSS_LIMIT", 0.03),
	}
	if cfg.Risk.MaxActivePairs <= 0 {
		errs = append(errs, "MAX_ACTIVE_PAIRS must be positive")
	}
	if cfg.Risk.DailyLossLimit <= 0 {
		errs = append(errs, "DAILY_LOSS_LIMIT must be positive")
	}

	// Exchange (API keys optional: public kline endpoints need none)
	cfg.Exchange = ExchangeConfig{
		APIKey:         getEnv("BINANCE_API_KEY", ""),
		SecretKey:      getEnv("BINANCE_API_SECRET", ""),
		IsTestnet:      getEnvAsBool("IS_TESTNET", true),
		Interval:       getEnv("KLINE_INTERVAL", "1d"),
		ReconnectDelay: time.Duration(getEnvAsInt("RECONNECT_DELAY_SECONDS", 5)) * time.Second,
	}

	// Database
	cfg.DBPath = getEnv("DB_PATH", "./data/pairs_trading.db")
	if cfg.DBPath == "" {
		errs = append(errs, "DB_PATH must be set")
	}

	// Monitoring loop
	evalMinutes := getEnvAsInt("EVALUATION_INTERVAL_MINUTES", 5)
	if evalMinutes <= 0 {
		errs = append(errs, "EVALUATION_INTERVAL_MINUTES must be positive")
	}
	cfg.EvaluationInterval = time.Duration(evalMinutes) * time.Minute

	// Logging
	cfg.LogLevel = logger.ParseLevel(getEnv("LOG_LEVEL", "INFO"))
	cfg.LogFormat = strings.ToLower(getEnv("LOG_FORMAT", "zerolog"))
	if cfg.LogFormat != "std" && cfg.LogFormat != "zerolog" {
		errs = append(errs, "LOG_FORMAT must be 'std' or 'zerolog'")
	}

	// Combine validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %s", ports.ErrConfiguration, strings.Join(errs, "; "))
	}

	return cfg, nil
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloatSlice(key string, defaultValue []float64) []float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return defaultValue
		}
		out = append(out, v)
	}
	return out
}

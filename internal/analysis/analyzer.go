package analysis

import (
	"context"
	"fmt"
	"math"

	"pairsTradingBot/internal/domain"
	"pairsTradingBot/internal/ports"
)

const (
	// minObservations is the floor for running a cointegration test.
	minObservations = 50
	// minHalfLifeObs is the floor for the OU half-life regression.
	minHalfLifeObs = 20
)

// Config holds parameters for the cointegration analyzer.
type Config struct {
	PValueThreshold     float64 // Validity threshold (e.g., 0.05)
	PValueExitThreshold float64 // Breakdown threshold (e.g., 0.10)
	MinHalfLife         float64 // Bars
	MaxHalfLife         float64 // Bars
	HedgeRatioDrift     float64 // Relative drift fraction for breakdown
	ADFLags             int     // Augmentation lags for the residual test
}

// Analyzer estimates cointegration relationships between price series.
// It is a leaf component: pure in-memory computation, no I/O.
type Analyzer struct {
	cfg    Config
	logger ports.Logger
}

// New creates an analyzer, validating the configuration.
func New(cfg Config, logger ports.Logger) (*Analyzer, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for analyzer")
	}
	if cfg.PValueThreshold <= 0 || cfg.PValueThreshold >= 1 {
		return nil, fmt.Errorf("%w: p-value threshold must be in (0, 1)", ports.ErrConfiguration)
	}
	if cfg.PValueExitThreshold < cfg.PValueThreshold {
		return nil, fmt.Errorf("%w: p-value exit threshold below entry threshold", ports.ErrConfiguration)
	}
	if cfg.MinHalfLife <= 0 || cfg.MaxHalfLife <= cfg.MinHalfLife {
		return nil, fmt.Errorf("%w: half-life band requires 0 < min < max", ports.ErrConfiguration)
	}
	if cfg.HedgeRatioDrift <= 0 {
		return nil, fmt.Errorf("%w: hedge ratio drift threshold must be positive", ports.ErrConfiguration)
	}
	if cfg.ADFLags < 0 {
		return nil, fmt.Errorf("%w: ADF lags cannot be negative", ports.ErrConfiguration)
	}
	return &Analyzer{cfg: cfg, logger: logger}, nil
}

// TestEngleGranger runs the two-step Engle-Granger cointegration test:
// OLS of series1 on series2 for the hedge ratio, then a unit-root test on
// the residual spread. Validity requires the approximate p-value under the
// configured threshold and a half-life inside the configured band.
func (a *Analyzer) TestEngleGranger(ctx context.Context, series1, series2 []float64, symbol1, symbol2 string) (domain.CointegrationResult, error) {
	if err := checkAligned(series1, series2); err != nil {
		return domain.CointegrationResult{}, err
	}
	if len(series1) < minObservations {
		return domain.CointegrationResult{}, fmt.Errorf("%w: %d observations, need %d", ports.ErrInsufficientData, len(series1), minObservations)
	}

	fit, err := olsFit(series1, series2)
	if err != nil {
		return domain.CointegrationResult{}, fmt.Errorf("hedge ratio estimation: %w", err)
	}
	hedgeRatio := fit.Coeffs[1]

	spread := Spread(series1, series2, hedgeRatio)

	adfStat, err := adfTest(spread, a.cfg.ADFLags)
	if err != nil {
		return domain.CointegrationResult{}, fmt.Errorf("residual unit-root test: %w", err)
	}
	pvalue := pValueFromADF(adfStat)

	halfLife, err := a.halfLife(spread)
	if err != nil {
		return domain.CointegrationResult{}, err
	}

	result := domain.CointegrationResult{
		Symbol1:      symbol1,
		Symbol2:      symbol2,
		PValue:       pvalue,
		HedgeRatio:   hedgeRatio,
		HalfLife:     halfLife,
		SpreadMean:   mean(spread),
		SpreadStd:    stdDev(spread),
		TestMethod:   domain.MethodEngleGranger,
		ADFStatistic: adfStat,
	}
	result.IsCointegrated = a.isValid(pvalue, halfLife)
	a.logResult(ctx, result)
	return result, nil
}

// CheckBreakdown reports whether a previously established relationship has
// broken down relative to its last stored estimate. Pure function: callers
// decide how many consecutive breakdowns to tolerate.
func (a *Analyzer) CheckBreakdown(result domain.CointegrationResult, previousHedgeRatio float64) (bool, string) {
	if result.PValue > a.cfg.PValueExitThreshold {
		return true, fmt.Sprintf("p-value breakdown: %.3f", result.PValue)
	}
	if previousHedgeRatio != 0 {
		drift := math.Abs(result.HedgeRatio-previousHedgeRatio) / math.Abs(previousHedgeRatio)
		if drift > a.cfg.HedgeRatioDrift {
			return true, fmt.Sprintf("hedge ratio drift: %.1f%%", drift*100)
		}
	}
	if result.HalfLife < a.cfg.MinHalfLife {
		return true, fmt.Sprintf("half-life too short: %.1f", result.HalfLife)
	}
	if result.HalfLife > a.cfg.MaxHalfLife {
		return true, fmt.Sprintf("half-life too long: %.1f", result.HalfLife)
	}
	return false, ""
}

// halfLife estimates the Ornstein-Uhlenbeck half-life of mean reversion by
// regressing the spread's first difference on its lagged level:
//
//	Δs(t) = α + λ·s(t-1) + ε,  halfLife = -ln(2)/λ
//
// A non-negative λ means no reversion, represented as +Inf.
func (a *Analyzer) halfLife(spread []float64) (float64, error) {
	n := len(spread)
	if n < minHalfLifeObs {
		return 0, fmt.Errorf("%w: %d observations for half-life, need %d", ports.ErrInsufficientData, n, minHalfLifeObs)
	}

	diff := make([]float64, n-1)
	lag := make([]float64, n-1)
	for i := 1; i < n; i++ {
		diff[i-1] = spread[i] - spread[i-1]
		lag[i-1] = spread[i-1]
	}

	fit, err := olsFit(diff, lag)
	if err != nil {
		return 0, fmt.Errorf("half-life estimation: %w", err)
	}
	lambda := fit.Coeffs[1]
	if lambda >= 0 {
		return math.Inf(1), nil // No mean reversion
	}
	return -math.Ln2 / lambda, nil
}

func (a *Analyzer) isValid(pvalue, halfLife float64) bool {
	return pvalue < a.cfg.PValueThreshold &&
		halfLife >= a.cfg.MinHalfLife &&
		halfLife <= a.cfg.MaxHalfLife
}

func (a *Analyzer) logResult(ctx context.Context, result domain.CointegrationResult) {
	a.logger.Debug(ctx, "cointegration test complete", map[string]interface{}{
		"pair":         domain.PairID(result.Symbol1, result.Symbol2),
		"method":       result.TestMethod,
		"pvalue":       result.PValue,
		"hedge_ratio":  result.HedgeRatio,
		"half_life":    result.HalfLife,
		"cointegrated": result.IsCointegrated,
	})
}

// Spread computes series1 - hedgeRatio*series2. Inputs must be aligned.
func Spread(series1, series2 []float64, hedgeRatio float64) []float64 {
	spread := make([]float64, len(series1))
	for i := range series1 {
		spread[i] = series1[i] - hedgeRatio*series2[i]
	}
	return spread
}

func checkAligned(series1, series2 []float64) error {
	if len(series1) != len(series2) {
		return fmt.Errorf("%w: series lengths differ (%d vs %d)", ports.ErrInvalidInput, len(series1), len(series2))
	}
	if len(series1) == 0 {
		return fmt.Errorf("%w: empty series", ports.ErrInvalidInput)
	}
	return nil
}

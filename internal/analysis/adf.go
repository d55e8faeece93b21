package analysis

import (
	"fmt"

	"pairsTradingBot/internal/ports"
)

// Critical values for the residual-based Engle-Granger test with two
// variables and a constant term (MacKinnon), at 1%, 5% and 10%.
var egCriticalValues = [3]float64{-3.90, -3.34, -3.05}

// adfTest runs an augmented Dickey-Fuller regression on series:
//
//	Δy(t) = α + ρ·y(t-1) + Σ φ(j)·Δy(t-j) + ε
//
// and returns the t-statistic of ρ. The more negative the statistic, the
// stronger the evidence against a unit root.
func adfTest(series []float64, lags int) (float64, error) {
	n := len(series)
	if n < lags+minHalfLifeObs {
		return 0, fmt.Errorf("%w: %d observations for ADF with %d lags", ports.ErrInsufficientData, n, lags)
	}

	diff := make([]float64, n-1)
	for i := 1; i < n; i++ {
		diff[i-1] = series[i] - series[i-1]
	}

	// Rows usable after lagging: t runs over [lags+1, n-1] in series terms.
	rows := len(diff) - lags
	y := make([]float64, rows)
	level := make([]float64, rows)
	lagCols := make([][]float64, lags)
	for j := range lagCols {
		lagCols[j] = make([]float64, rows)
	}
	for i := 0; i < rows; i++ {
		t := i + lags
		y[i] = diff[t]
		level[i] = series[t]
		for j := 0; j < lags; j++ {
			lagCols[j][i] = diff[t-1-j]
		}
	}

	regressors := append([][]float64{level}, lagCols...)
	fit, err := olsFit(y, regressors...)
	if err != nil {
		return 0, err
	}
	return fit.TStat(1), nil
}

// pValueFromADF maps an ADF statistic to an approximate p-value by linear
// interpolation over the tabulated critical values, clamped to
// [0.001, 0.95]. Exact MacKinnon surfaces are not needed: callers only
// compare against entry/exit thresholds in the 0.05-0.10 range.
func pValueFromADF(stat float64) float64 {
	crits := egCriticalValues
	switch {
	case stat <= crits[0]:
		return 0.001
	case stat <= crits[1]:
		// Between the 1% and 5% critical values.
		return interp(stat, crits[0], 0.01, crits[1], 0.05)
	case stat <= crits[2]:
		// Between the 5% and 10% critical values.
		return interp(stat, crits[1], 0.05, crits[2], 0.10)
	case stat < 0:
		// Beyond the 10% value the distribution flattens; stretch toward
		// a near-certain unit root at stat = 0.
		return interp(stat, crits[2], 0.10, 0, 0.95)
	default:
		return 0.95
	}
}

func interp(x, x0, y0, x1, y1 float64) float64 {
	return y0 + (x-x0)*(y1-y0)/(x1-x0)
}

package analysis

import (
	"context"
	"fmt"
	"math"

	"pairsTradingBot/internal/domain"
	"pairsTradingBot/internal/ports"
)

// Trace-statistic critical values for the r=0 hypothesis with two series
// and a constant deterministic term (Osterwald-Lenum), at 90/95/99%.
var johansenTraceCrit = [3]float64{13.4294, 15.4943, 19.9349}

// TestJohansen runs the Johansen trace test on the pair. Unlike
// Engle-Granger it is symmetric in the two series and takes the hedge
// ratio from the dominant eigenvector. On numerical failure it falls back
// to Engle-Granger so both methods yield results of identical shape.
func (a *Analyzer) TestJohansen(ctx context.Context, series1, series2 []float64, symbol1, symbol2 string) (domain.CointegrationResult, error) {
	if err := checkAligned(series1, series2); err != nil {
		return domain.CointegrationResult{}, err
	}
	if len(series1) < minObservations {
		return domain.CointegrationResult{}, fmt.Errorf("%w: %d observations, need %d", ports.ErrInsufficientData, len(series1), minObservations)
	}

	traceStat, hedgeRatio, err := johansenTrace(series1, series2)
	if err != nil {
		a.logger.Warn(ctx, "johansen test failed, falling back to engle-granger", map[string]interface{}{
			"pair":  domain.PairID(symbol1, symbol2),
			"error": err.Error(),
		})
		return a.TestEngleGranger(ctx, series1, series2, symbol1, symbol2)
	}

	// Approximate p-value binned from the tabulated critical values.
	var pvalue float64
	switch {
	case traceStat > johansenTraceCrit[2]:
		pvalue = 0.01
	case traceStat > johansenTraceCrit[1]:
		pvalue = 0.05
	case traceStat > johansenTraceCrit[0]:
		pvalue = 0.10
	default:
		pvalue = 0.20
	}

	spread := Spread(series1, series2, hedgeRatio)
	halfLife, err := a.halfLife(spread)
	if err != nil {
		return domain.CointegrationResult{}, err
	}

	result := domain.CointegrationResult{
		Symbol1:    symbol1,
		Symbol2:    symbol2,
		PValue:     pvalue,
		HedgeRatio: hedgeRatio,
		HalfLife:   halfLife,
		SpreadMean: mean(spread),
		SpreadStd:  stdDev(spread),
		TestMethod: domain.MethodJohansen,
	}
	result.IsCointegrated = a.isValid(pvalue, halfLife)
	a.logResult(ctx, result)
	return result, nil
}

// johansenTrace computes the trace statistic for the r=0 hypothesis and the
// hedge ratio from the dominant cointegrating eigenvector, using one lagged
// difference and a constant term (the VECM form Δx = Πx(t-1) + ΓΔx(t-1) + μ + ε).
func johansenTrace(series1, series2 []float64) (traceStat, hedgeRatio float64, err error) {
	n := len(series1)
	// t runs over [2, n-1]: Δx(t), x(t-1) and Δx(t-1) must all exist.
	rows := n - 2
	if rows < minHalfLifeObs {
		return 0, 0, fmt.Errorf("%w: %d usable rows for johansen", ports.ErrInsufficientData, rows)
	}

	d0 := make([][2]float64, rows) // Δx(t)
	lvl := make([][2]float64, rows)
	dl := make([][2]float64, rows) // Δx(t-1)
	for i := 0; i < rows; i++ {
		t := i + 2
		d0[i] = [2]float64{series1[t] - series1[t-1], series2[t] - series2[t-1]}
		lvl[i] = [2]float64{series1[t-1], series2[t-1]}
		dl[i] = [2]float64{series1[t-1] - series1[t-2], series2[t-1] - series2[t-2]}
	}

	// Partial out the lagged difference and constant from both Δx(t) and
	// x(t-1), component by component.
	r0 := make([][2]float64, rows)
	r1 := make([][2]float64, rows)
	for comp := 0; comp < 2; comp++ {
		y0 := make([]float64, rows)
		y1 := make([]float64, rows)
		x1 := make([]float64, rows)
		x2 := make([]float64, rows)
		for i := 0; i < rows; i++ {
			y0[i] = d0[i][comp]
			y1[i] = lvl[i][comp]
			x1[i] = dl[i][0]
			x2[i] = dl[i][1]
		}
		fit0, ferr := olsFit(y0, x1, x2)
		if ferr != nil {
			return 0, 0, ferr
		}
		fit1, ferr := olsFit(y1, x1, x2)
		if ferr != nil {
			return 0, 0, ferr
		}
		for i := 0; i < rows; i++ {
			r0[i][comp] = fit0.Resid[i]
			r1[i][comp] = fit1.Resid[i]
		}
	}

	// Product moment matrices S00, S01, S10, S11 (2x2 each).
	var s00, s01, s11 [2][2]float64
	for i := 0; i < rows; i++ {
		for a := 0; a < 2; a++ {
			for b := 0; b < 2; b++ {
				s00[a][b] += r0[i][a] * r0[i][b]
				s01[a][b] += r0[i][a] * r1[i][b]
				s11[a][b] += r1[i][a] * r1[i][b]
			}
		}
	}
	scale := 1 / float64(rows)
	for a := 0; a < 2; a++ {
		for b := 0; b < 2; b++ {
			s00[a][b] *= scale
			s01[a][b] *= scale
			s11[a][b] *= scale
		}
	}

	s00inv, err := invert2x2(s00)
	if err != nil {
		return 0, 0, err
	}
	s11inv, err := invert2x2(s11)
	if err != nil {
		return 0, 0, err
	}

	// M = S11^-1 * S10 * S00^-1 * S01, whose eigenvalues solve the
	// reduced-rank problem.
	s10 := transpose2x2(s01)
	m := mul2x2(mul2x2(s11inv, s10), mul2x2(s00inv, s01))

	tr := m[0][0] + m[1][1]
	det := m[0][0]*m[1][1] - m[0][1]*m[1][0]
	disc := tr*tr - 4*det
	if disc < 0 {
		return 0, 0, fmt.Errorf("%w: complex eigenvalues in johansen step", ports.ErrEstimationFailed)
	}
	sq := math.Sqrt(disc)
	l1 := (tr + sq) / 2
	l2 := (tr - sq) / 2
	if l1 < l2 {
		l1, l2 = l2, l1
	}
	if l1 <= 0 || l1 >= 1 || l2 < 0 || l2 >= 1 {
		return 0, 0, fmt.Errorf("%w: eigenvalues outside (0,1): %.4f, %.4f", ports.ErrEstimationFailed, l1, l2)
	}

	traceStat = -float64(rows) * (math.Log(1-l1) + math.Log(1-l2))

	// Eigenvector of M for the dominant eigenvalue: (M - λI)v = 0.
	// Pick whichever row gives the numerically larger vector.
	v1 := [2]float64{m[0][1], l1 - m[0][0]}
	v2 := [2]float64{l1 - m[1][1], m[1][0]}
	v := v1
	if math.Hypot(v2[0], v2[1]) > math.Hypot(v1[0], v1[1]) {
		v = v2
	}
	if math.Abs(v[0]) < 1e-12 {
		return 0, 0, fmt.Errorf("%w: degenerate cointegrating vector", ports.ErrEstimationFailed)
	}
	// Cointegrating combination v[0]*s1 + v[1]*s2; spread convention is
	// s1 - h*s2, so h = -v[1]/v[0].
	hedgeRatio = -v[1] / v[0]
	return traceStat, hedgeRatio, nil
}

func invert2x2(m [2][2]float64) ([2][2]float64, error) {
	det := m[0][0]*m[1][1] - m[0][1]*m[1][0]
	if math.Abs(det) < 1e-12 {
		return [2][2]float64{}, fmt.Errorf("%w: singular moment matrix", ports.ErrEstimationFailed)
	}
	inv := [2][2]float64{
		{m[1][1] / det, -m[0][1] / det},
		{-m[1][0] / det, m[0][0] / det},
	}
	return inv, nil
}

func mul2x2(a, b [2][2]float64) [2][2]float64 {
	var out [2][2]float64
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			out[i][j] = a[i][0]*b[0][j] + a[i][1]*b[1][j]
		}
	}
	return out
}

func transpose2x2(m [2][2]float64) [2][2]float64 {
	return [2][2]float64{{m[0][0], m[1][0]}, {m[0][1], m[1][1]}}
}

package analysis

import (
	"fmt"
	"math"

	"pairsTradingBot/internal/ports"
)

// olsResult holds the output of an ordinary least squares fit.
type olsResult struct {
	Coeffs  []float64 // Intercept first, then one coefficient per regressor
	StdErrs []float64 // Standard errors aligned with Coeffs
	Resid   []float64
}

// TStat returns the t-statistic for coefficient i.
func (r olsResult) TStat(i int) float64 {
	if r.StdErrs[i] == 0 {
		return 0
	}
	return r.Coeffs[i] / r.StdErrs[i]
}

// olsFit regresses y on the given regressor columns with an intercept,
// solving the normal equations by Gaussian elimination. The regressor
// count is tiny here (hedge ratio fit, OU fit, ADF with a few lags), so
// no decomposition machinery is warranted.
func olsFit(y []float64, regressors ...[]float64) (olsResult, error) {
	n := len(y)
	k := len(regressors) + 1 // +1 for the intercept
	if n <= k+1 {
		return olsResult{}, fmt.Errorf("%w: %d observations for %d parameters", ports.ErrInsufficientData, n, k)
	}
	for _, col := range regressors {
		if len(col) != n {
			return olsResult{}, fmt.Errorf("%w: regressor length %d does not match %d observations", ports.ErrInvalidInput, len(col), n)
		}
	}

	// Design matrix row i: [1, regressors[0][i], regressors[1][i], ...]
	xtx := make([][]float64, k)
	for i := range xtx {
		xtx[i] = make([]float64, k)
	}
	xty := make([]float64, k)
	row := make([]float64, k)
	for i := 0; i < n; i++ {
		row[0] = 1
		for j, col := range regressors {
			row[j+1] = col[i]
		}
		for a := 0; a < k; a++ {
			for b := 0; b < k; b++ {
				xtx[a][b] += row[a] * row[b]
			}
			xty[a] += row[a] * y[i]
		}
	}

	inv, err := invertMatrix(xtx)
	if err != nil {
		return olsResult{}, err
	}

	coeffs := make([]float64, k)
	for a := 0; a < k; a++ {
		for b := 0; b < k; b++ {
			coeffs[a] += inv[a][b] * xty[b]
		}
	}

	resid := make([]float64, n)
	var rss float64
	for i := 0; i < n; i++ {
		fitted := coeffs[0]
		for j, col := range regressors {
			fitted += coeffs[j+1] * col[i]
		}
		resid[i] = y[i] - fitted
		rss += resid[i] * resid[i]
	}

	sigma2 := rss / float64(n-k)
	stderrs := make([]float64, k)
	for a := 0; a < k; a++ {
		v := sigma2 * inv[a][a]
		if v < 0 || math.IsNaN(v) {
			return olsResult{}, fmt.Errorf("%w: negative coefficient variance", ports.ErrEstimationFailed)
		}
		stderrs[a] = math.Sqrt(v)
	}

	return olsResult{Coeffs: coeffs, StdErrs: stderrs, Resid: resid}, nil
}

// invertMatrix inverts a small square matrix via Gauss-Jordan elimination
// with partial pivoting.
func invertMatrix(m [][]float64) ([][]float64, error) {
	k := len(m)
	aug := make([][]float64, k)
	for i := 0; i < k; i++ {
		aug[i] = make([]float64, 2*k)
		copy(aug[i], m[i])
		aug[i][k+i] = 1
	}

	for col := 0; col < k; col++ {
		pivot := col
		for r := col + 1; r < k; r++ {
			if math.Abs(aug[r][col]) > math.Abs(aug[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(aug[pivot][col]) < 1e-12 {
			return nil, fmt.Errorf("%w: singular design matrix", ports.ErrEstimationFailed)
		}
		aug[col], aug[pivot] = aug[pivot], aug[col]

		p := aug[col][col]
		for c := 0; c < 2*k; c++ {
			aug[col][c] /= p
		}
		for r := 0; r < k; r++ {
			if r == col {
				continue
			}
			f := aug[r][col]
			for c := 0; c < 2*k; c++ {
				aug[r][c] -= f * aug[col][c]
			}
		}
	}

	inv := make([][]float64, k)
	for i := 0; i < k; i++ {
		inv[i] = aug[i][k:]
	}
	return inv, nil
}

// mean returns the arithmetic mean of xs.
func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// stdDev returns the sample standard deviation of xs.
func stdDev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	var ss float64
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}

package analysis

// ZScore standardizes a spread series. With lookback 0 the whole series'
// mean and standard deviation are used (full-history analysis); with a
// positive lookback each point uses a sliding window ending at that point
// (live/backtest signal generation), and points before the window fills
// are 0. A zero standard deviation yields 0, never NaN.
func ZScore(spread []float64, lookback int) []float64 {
	out := make([]float64, len(spread))
	if len(spread) == 0 {
		return out
	}

	if lookback <= 0 {
		m := mean(spread)
		sd := stdDev(spread)
		if sd == 0 {
			return out
		}
		for i, s := range spread {
			out[i] = (s - m) / sd
		}
		return out
	}

	for i := lookback - 1; i < len(spread); i++ {
		window := spread[i-lookback+1 : i+1]
		sd := stdDev(window)
		if sd == 0 {
			continue
		}
		out[i] = (spread[i] - mean(window)) / sd
	}
	return out
}

// CurrentZScore computes the z-score of the latest spread value against a
// trailing window. A lookback longer than the series shrinks to fit; a
// zero standard deviation yields 0.
func CurrentZScore(series1, series2 []float64, hedgeRatio float64, lookback int) float64 {
	spread := Spread(series1, series2, hedgeRatio)
	if len(spread) == 0 {
		return 0
	}
	if lookback <= 0 || lookback > len(spread) {
		lookback = len(spread)
	}
	window := spread[len(spread)-lookback:]
	sd := stdDev(window)
	if sd == 0 {
		return 0
	}
	return (spread[len(spread)-1] - mean(window)) / sd
}

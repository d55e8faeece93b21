package domain

import "math"

// CointegrationResult is the outcome of a cointegration test on a symbol
// pair. Immutable once produced; a recalibration replaces the whole value.
type CointegrationResult struct {
	Symbol1        string
	Symbol2        string
	IsCointegrated bool
	PValue         float64
	HedgeRatio     float64
	HalfLife       float64 // Bars to revert halfway to the mean; +Inf when no reversion
	SpreadMean     float64
	SpreadStd      float64
	TestMethod     TestMethod
	ADFStatistic   float64
}

// HasMeanReversion reports whether the spread showed any mean reversion.
// HalfLife is +Inf when the OU regression slope was non-negative.
func (r CointegrationResult) HasMeanReversion() bool {
	return !math.IsInf(r.HalfLife, 1)
}

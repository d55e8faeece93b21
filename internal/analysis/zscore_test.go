package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestZScore_FullHistory(t *testing.T) {
	// Mean 2, sample std 1.
	got := ZScore([]float64{1, 2, 3}, 0)
	assert.InDeltaSlice(t, []float64{-1, 0, 1}, got, 1e-9)
}

func TestZScore_ZeroStdYieldsZeros(t *testing.T) {
	got := ZScore([]float64{5, 5, 5, 5}, 0)
	assert.Equal(t, []float64{0, 0, 0, 0}, got)

	got = ZScore([]float64{5, 5, 5, 5}, 2)
	assert.Equal(t, []float64{0, 0, 0, 0}, got)
}

func TestZScore_SlidingWindow(t *testing.T) {
	spread := []float64{1, 3, 1, 3}
	got := ZScore(spread, 2)

	// First point precedes a full window.
	assert.Equal(t, 0.0, got[0])
	// Window {1,3}: mean 2, sample std sqrt(2).
	assert.InDelta(t, 0.7071068, got[1], 1e-6)
	assert.InDelta(t, -0.7071068, got[2], 1e-6)
	assert.InDelta(t, 0.7071068, got[3], 1e-6)
}

func TestZScore_Empty(t *testing.T) {
	assert.Empty(t, ZScore(nil, 0))
	assert.Empty(t, ZScore(nil, 5))
}

func TestCurrentZScore(t *testing.T) {
	series2 := []float64{0, 0, 0}
	series1 := []float64{1, 2, 3} // spread equals series1 with hedge ratio 0 applied to zeros

	// Full window {1,2,3}: mean 2, std 1, last value 3.
	got := CurrentZScore(series1, series2, 1, 0)
	assert.InDelta(t, 1.0, got, 1e-9)

	// Oversized lookback shrinks to the series length.
	got = CurrentZScore(series1, series2, 1, 100)
	assert.InDelta(t, 1.0, got, 1e-9)
}

func TestCurrentZScore_ZeroStd(t *testing.T) {
	series1 := []float64{4, 4, 4}
	series2 := []float64{2, 2, 2}
	assert.Equal(t, 0.0, CurrentZScore(series1, series2, 1, 0))
}

func TestCurrentZScore_Empty(t *testing.T) {
	assert.Equal(t, 0.0, CurrentZScore(nil, nil, 1, 10))
}

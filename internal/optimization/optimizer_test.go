package optimization

import (
	"context"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pairsTradingBot/internal/analysis"
	"pairsTradingBot/internal/backtest"
	"pairsTradingBot/internal/ports"
)

type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

func newTestSimulator(t *testing.T) *backtest.Simulator {
	t.Helper()
	analyzer, err := analysis.New(analysis.Config{
		PValueThreshold:     0.05,
		PValueExitThreshold: 0.10,
		MinHalfLife:         0.2,
		MaxHalfLife:         50,
		HedgeRatioDrift:     0.20,
		ADFLags:             1,
	}, &mockLogger{})
	require.NoError(t, err)
	sim, err := backtest.NewSimulator(analyzer, &mockLogger{})
	require.NoError(t, err)
	return sim
}

// fixtureSeries carries one clean mean-reversion cycle after the
// calibration window, so any reasonable threshold grid books one
// profitable trade.
func fixtureSeries(seed int64, n int) (series1, series2 []float64, times []time.Time) {
	rng := rand.New(rand.NewSource(seed))
	series1 = make([]float64, n)
	series2 = make([]float64, n)
	times = make([]time.Time, n)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	x := 100.0
	resid := 0.0
	for i := 0; i < n; i++ {
		if i < 100 {
			x += rng.NormFloat64()
			resid = 0.45*resid + rng.NormFloat64()
			series1[i] = 10 + 2*x + resid
		} else {
			dev := 0.0
			if i == 105 || i == 106 {
				dev = -8
			}
			series1[i] = 10 + 2*x + dev
		}
		series2[i] = x
		times[i] = base.Add(time.Duration(i) * time.Hour)
	}
	return series1, series2, times
}

func baseParams() backtest.Params {
	return backtest.Params{
		ZScoreEntry:       2,
		ZScoreExit:        1.5,
		ZScoreStop:        100,
		HoldingMult:       50,
		CointLookbackBars: 100,
		RecalibrationBars: 1000,
		InitialCapital:    100000,
		RiskPerTrade:      0.02,
	}
}

func TestNew_Validation(t *testing.T) {
	sim := newTestSimulator(t)
	ranges := []ParameterRange{{Name: "zscore_entry", Min: 2, Max: 2, Step: 0.5}}

	_, err := New(Config{Ranges: ranges}, nil, &mockLogger{})
	assert.Error(t, err)
	_, err = New(Config{Ranges: ranges}, sim, nil)
	assert.Error(t, err)
	_, err = New(Config{}, sim, &mockLogger{})
	assert.ErrorIs(t, err, ports.ErrConfiguration)
	_, err = New(Config{Ranges: []ParameterRange{{Name: "zscore_entry", Min: 2, Max: 1, Step: 0.5}}}, sim, &mockLogger{})
	assert.ErrorIs(t, err, ports.ErrConfiguration)
	_, err = New(Config{Ranges: []ParameterRange{{Name: "zscore_entry", Min: 1, Max: 2, Step: 0}}}, sim, &mockLogger{})
	assert.ErrorIs(t, err, ports.ErrConfiguration)
}

func TestOptimize_SinglePointGrid(t *testing.T) {
	sim := newTestSimulator(t)
	opt, err := New(Config{
		Ranges: []ParameterRange{
			{Name: "zscore_entry", Min: 2, Max: 2, Step: 0.5},
			{Name: "zscore_exit", Min: 1.5, Max: 1.5, Step: 0.5},
		},
		Base:    baseParams(),
		Workers: 2,
	}, sim, &mockLogger{})
	require.NoError(t, err)

	s1, s2, times := fixtureSeries(7, 130)
	results, err := opt.Optimize(context.Background(), "ETHUSDT", "BTCUSDT", s1, s2, times)
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.InDelta(t, 2.0, results[0].Params.ZScoreEntry, 1e-9)
	assert.InDelta(t, 1.5, results[0].Params.ZScoreExit, 1e-9)
	assert.Equal(t, 1, results[0].Metric.TotalTrades)
	assert.Greater(t, results[0].Score, 0.0)
}

func TestOptimize_SkipsInvalidCombinations(t *testing.T) {
	sim := newTestSimulator(t)

	// Exit 1.5..2.5 against entry 2: points with exit >= entry must be
	// dropped, not failed.
	opt, err := New(Config{
		Ranges: []ParameterRange{
			{Name: "zscore_exit", Min: 1.5, Max: 2.5, Step: 0.5},
		},
		Base:    baseParams(),
		Workers: 2,
	}, sim, &mockLogger{})
	require.NoError(t, err)

	s1, s2, times := fixtureSeries(7, 130)
	results, err := opt.Optimize(context.Background(), "ETHUSDT", "BTCUSDT", s1, s2, times)
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.InDelta(t, 1.5, results[0].Params.ZScoreExit, 1e-9)
}

func TestOptimize_RanksByScore(t *testing.T) {
	sim := newTestSimulator(t)
	opt, err := New(Config{
		Ranges: []ParameterRange{
			// Entry 20 is unreachable: zero trades, score 0. Entry 2 books
			// the profitable cycle and must rank first.
			{Name: "zscore_entry", Min: 2, Max: 20, Step: 18},
		},
		Base:    baseParams(),
		Workers: 2,
	}, sim, &mockLogger{})
	require.NoError(t, err)

	s1, s2, times := fixtureSeries(7, 130)
	results, err := opt.Optimize(context.Background(), "ETHUSDT", "BTCUSDT", s1, s2, times)
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.InDelta(t, 2.0, results[0].Params.ZScoreEntry, 1e-9)
	assert.Greater(t, results[0].Score, results[1].Score)
	assert.Equal(t, 0, results[1].Metric.TotalTrades)
	assert.Equal(t, 0.0, results[1].Score)
}

func TestDefaultScore(t *testing.T) {
	assert.Equal(t, 0.0, DefaultScore(&backtest.Result{}))

	r := &backtest.Result{TotalTrades: 3, Expectancy: 2.5, MaxDrawdownPercent: 5}
	assert.InDelta(t, 2.0, DefaultScore(r), 1e-9)

	lossless := &backtest.Result{TotalTrades: 1, Expectancy: 1.2}
	assert.False(t, math.IsNaN(DefaultScore(lossless)))
}

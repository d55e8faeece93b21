package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pairsTradingBot/internal/domain"
	"pairsTradingBot/internal/ports"
)

func newTestManager(t *testing.T) (*Manager, *time.Time) {
	t.Helper()
	m, err := NewManager(Config{
		RiskPerTrade:   0.02,
		MaxActivePairs: 2,
		DailyLossLimit: 0.05,
	}, 100000)
	require.NoError(t, err)
	clock := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return clock }
	return m, &clock
}

func entry(pairID string) *domain.Signal {
	return &domain.Signal{Type: domain.OpenLongSpread, PairID: pairID}
}

func exit(pairID string) *domain.Signal {
	return &domain.Signal{Type: domain.CloseLongSpread, PairID: pairID}
}

func TestNewManager_Validation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		capital float64
	}{
		{"zero risk", Config{RiskPerTrade: 0, MaxActivePairs: 2, DailyLossLimit: 0.05}, 100000},
		{"risk above one", Config{RiskPerTrade: 1.5, MaxActivePairs: 2, DailyLossLimit: 0.05}, 100000},
		{"zero max pairs", Config{RiskPerTrade: 0.02, MaxActivePairs: 0, DailyLossLimit: 0.05}, 100000},
		{"zero loss limit", Config{RiskPerTrade: 0.02, MaxActivePairs: 2, DailyLossLimit: 0}, 100000},
		{"zero capital", Config{RiskPerTrade: 0.02, MaxActivePairs: 2, DailyLossLimit: 0.05}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewManager(tt.cfg, tt.capital)
			assert.ErrorIs(t, err, ports.ErrConfiguration)
		})
	}
}

func TestAllowSignal_ActivePairCap(t *testing.T) {
	m, _ := newTestManager(t)

	ok, _ := m.AllowSignal(entry("A_B"))
	assert.True(t, ok)
	m.RecordSignal(entry("A_B"))
	m.RecordSignal(entry("C_D"))
	assert.Equal(t, 2, m.ActivePairCount())

	ok, reason := m.AllowSignal(entry("E_F"))
	assert.False(t, ok)
	assert.Contains(t, reason, "max active pairs")

	// Exits pass even at the cap, and closing frees a slot.
	ok, _ = m.AllowSignal(exit("A_B"))
	assert.True(t, ok)
	m.RecordSignal(exit("A_B"))
	assert.Equal(t, 1, m.ActivePairCount())

	ok, _ = m.AllowSignal(entry("E_F"))
	assert.True(t, ok)
}

func TestAllowSignal_DailyLossLimit(t *testing.T) {
	m, clock := newTestManager(t)

	// Limit is 5% of 100k = 5000.
	m.RecordPnL(-4999)
	ok, _ := m.AllowSignal(entry("A_B"))
	assert.True(t, ok)

	m.RecordPnL(-2)
	ok, reason := m.AllowSignal(entry("A_B"))
	assert.False(t, ok)
	assert.Contains(t, reason, "daily loss limit")

	// Exits are never blocked by the loss limit.
	ok, _ = m.AllowSignal(exit("A_B"))
	assert.True(t, ok)

	// The tally resets at the day boundary.
	*clock = clock.Add(24 * time.Hour)
	ok, _ = m.AllowSignal(entry("A_B"))
	assert.True(t, ok)
}

func TestPositionSize(t *testing.T) {
	m, _ := newTestManager(t)
	weights := []float64{0.5, 0.3, 0.2}

	// Base allocation is capital * risk per trade = 2000.
	assert.InDelta(t, 1000, m.PositionSize(1, weights), 1e-9)
	assert.InDelta(t, 600, m.PositionSize(2, weights), 1e-9)
	assert.InDelta(t, 400, m.PositionSize(3, weights), 1e-9)

	// Out-of-range levels fall back to the full base allocation.
	assert.InDelta(t, 2000, m.PositionSize(0, weights), 1e-9)
	assert.InDelta(t, 2000, m.PositionSize(4, weights), 1e-9)
	assert.InDelta(t, 2000, m.PositionSize(1, nil), 1e-9)
}

func TestRecordSignal_IgnoresNonPositionSignals(t *testing.T) {
	m, _ := newTestManager(t)
	m.RecordSignal(&domain.Signal{Type: domain.Warning, PairID: "A_B"})
	assert.Equal(t, 0, m.ActivePairCount())
}

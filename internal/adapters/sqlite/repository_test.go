package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"pairsTradingBot/internal/domain"
	"pairsTradingBot/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

// setupTestDB creates a temporary database for testing
func setupTestDB(t *testing.T) (*Repository, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "pairs-trading-test-*")
	require.NoError(t, err)

	dbPath := filepath.Join(tmpDir, "test.db")
	repo, err := NewRepository(Config{
		DBPath: dbPath,
		Logger: &mockLogger{},
	})
	require.NoError(t, err)

	cleanup := func() {
		repo.Close()
		os.RemoveAll(tmpDir)
	}

	return repo, cleanup
}

func samplePair() *domain.Pair {
	return &domain.Pair{
		PairID:     "ETHUSDT_BTCUSDT",
		Symbol1:    "ETHUSDT",
		Symbol2:    "BTCUSDT",
		HedgeRatio: 1.52,
		HalfLife:   18.4,
		PValue:     0.012,
		SpreadMean: 10.3,
		SpreadStd:  2.1,
		TestMethod: domain.MethodEngleGranger,
		IsActive:   true,
	}
}

func TestRepository_SaveAndFindPair(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	pair := samplePair()
	require.NoError(t, repo.SavePair(ctx, pair))
	assert.False(t, pair.CreatedAt.IsZero())
	assert.False(t, pair.UpdatedAt.IsZero())

	found, err := repo.FindPair(ctx, pair.PairID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, pair.PairID, found.PairID)
	assert.Equal(t, pair.Symbol1, found.Symbol1)
	assert.Equal(t, pair.Symbol2, found.Symbol2)
	assert.InDelta(t, pair.HedgeRatio, found.HedgeRatio, 1e-9)
	assert.InDelta(t, pair.HalfLife, found.HalfLife, 1e-9)
	assert.InDelta(t, pair.PValue, found.PValue, 1e-9)
	assert.Equal(t, domain.MethodEngleGranger, found.TestMethod)
	assert.True(t, found.IsActive)
}

func TestRepository_FindPairNotFound(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	found, err := repo.FindPair(context.Background(), "NOPE_NOPE")
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestRepository_SavePairUpsert(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	pair := samplePair()
	require.NoError(t, repo.SavePair(ctx, pair))
	created := pair.CreatedAt

	pair.HedgeRatio = 1.61
	pair.PValue = 0.03
	require.NoError(t, repo.SavePair(ctx, pair))

	found, err := repo.FindPair(ctx, pair.PairID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.InDelta(t, 1.61, found.HedgeRatio, 1e-9)
	assert.InDelta(t, 0.03, found.PValue, 1e-9)
	// Upserts never rewrite the creation timestamp.
	assert.Equal(t, created.Unix(), found.CreatedAt.Unix())

	active, err := repo.FindActivePairs(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestRepository_DeactivatePair(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, repo.SavePair(ctx, samplePair()))
	require.NoError(t, repo.DeactivatePair(ctx, "ETHUSDT_BTCUSDT"))

	active, err := repo.FindActivePairs(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	found, err := repo.FindPair(ctx, "ETHUSDT_BTCUSDT")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.False(t, found.IsActive)

	err = repo.DeactivatePair(ctx, "MISSING_PAIR")
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestRepository_SaveAndFindStates(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	entryTime := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	state := &domain.PairState{
		PairID:          "ETHUSDT_BTCUSDT",
		Symbol1:         "ETHUSDT",
		Symbol2:         "BTCUSDT",
		Status:          domain.StatusLongSpread,
		EntryZScore:     -2.3,
		EntryHedgeRatio: 1.52,
		EntryTime:       entryTime,
		EntryPrice1:     3100.5,
		EntryPrice2:     61000.0,
		ScaleLevel:      2,
		HalfLife:        18.4,
		BreakdownCount:  1,
		LastSignalTime:  entryTime.Add(3 * time.Hour),
	}
	require.NoError(t, repo.SaveState(ctx, state))

	states, err := repo.FindStates(ctx)
	require.NoError(t, err)
	require.Len(t, states, 1)
	got := states[0]
	assert.Equal(t, domain.StatusLongSpread, got.Status)
	assert.InDelta(t, -2.3, got.EntryZScore, 1e-9)
	assert.Equal(t, 2, got.ScaleLevel)
	assert.Equal(t, 1, got.BreakdownCount)
	assert.True(t, got.EntryTime.Equal(entryTime))
	assert.True(t, got.LastSignalTime.Equal(entryTime.Add(3*time.Hour)))

	// Upsert replaces the stored state; a flat state round-trips its zero
	// entry time through SQL NULL.
	state.Reset()
	require.NoError(t, repo.SaveState(ctx, state))

	states, err = repo.FindStates(ctx)
	require.NoError(t, err)
	require.Len(t, states, 1)
	assert.Equal(t, domain.StatusFlat, states[0].Status)
	assert.True(t, states[0].EntryTime.IsZero())
}

func TestRepository_SaveAndFindSignals(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	first := &domain.Signal{
		Type:       domain.OpenLongSpread,
		PairID:     "ETHUSDT_BTCUSDT",
		Symbol1:    "ETHUSDT",
		Symbol2:    "BTCUSDT",
		ZScore:     -2.3,
		HedgeRatio: 1.52,
		Price1:     3100.5,
		Price2:     61000.0,
		ScaleLevel: 1,
		Reason:     "z-score -2.30 <= -2.00",
		Timestamp:  base,
	}
	id, err := repo.SaveSignal(ctx, first)
	require.NoError(t, err)
	assert.Greater(t, id, int64(0))
	assert.Equal(t, id, first.ID)

	second := &domain.Signal{
		Type:      domain.CloseLongSpread,
		PairID:    "ETHUSDT_BTCUSDT",
		Symbol1:   "ETHUSDT",
		Symbol2:   "BTCUSDT",
		ZScore:    -0.4,
		Timestamp: base.Add(6 * time.Hour),
	}
	id2, err := repo.SaveSignal(ctx, second)
	require.NoError(t, err)
	assert.Greater(t, id2, id)

	signals, err := repo.FindRecentSignals(ctx, "ETHUSDT_BTCUSDT", 10)
	require.NoError(t, err)
	require.Len(t, signals, 2)
	// Most recent first.
	assert.Equal(t, domain.CloseLongSpread, signals[0].Type)
	assert.Equal(t, domain.OpenLongSpread, signals[1].Type)
	assert.Equal(t, "z-score -2.30 <= -2.00", signals[1].Reason)

	limited, err := repo.FindRecentSignals(ctx, "ETHUSDT_BTCUSDT", 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, domain.CloseLongSpread, limited[0].Type)

	none, err := repo.FindRecentSignals(ctx, "OTHER_PAIR", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRepository_SaveAndFindTrades(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	trade := &domain.SpreadTrade{
		PairID:         "ETHUSDT_BTCUSDT",
		Symbol1:        "ETHUSDT",
		Symbol2:        "BTCUSDT",
		Direction:      domain.StatusLongSpread,
		EntryTime:      base,
		ExitTime:       base.Add(14 * time.Hour),
		EntryZScore:    -2.4,
		ExitZScore:     -0.2,
		EntrySpread:    4.1,
		ExitSpread:     9.8,
		HedgeRatio:     1.52,
		EntrySpreadStd: 2.1,
		PnLSpreadUnits: 5.7,
		PnLPercent:     2.71,
		ExitReason:     domain.ExitTakeProfit,
		HoldingBars:    14,
	}
	require.NoError(t, repo.SaveTrade(ctx, trade))

	later := *trade
	later.EntryTime = base.Add(48 * time.Hour)
	later.ExitTime = base.Add(50 * time.Hour)
	later.ExitReason = domain.ExitStopLoss
	later.PnLPercent = -1.3
	require.NoError(t, repo.SaveTrade(ctx, &later))

	trades, err := repo.FindTradesByPair(ctx, "ETHUSDT_BTCUSDT", 10)
	require.NoError(t, err)
	require.Len(t, trades, 2)
	// Most recent entry first.
	assert.Equal(t, domain.ExitStopLoss, trades[0].ExitReason)
	assert.Equal(t, domain.ExitTakeProfit, trades[1].ExitReason)
	assert.Equal(t, domain.StatusLongSpread, trades[1].Direction)
	assert.InDelta(t, 5.7, trades[1].PnLSpreadUnits, 1e-9)
	assert.Equal(t, 14, trades[1].HoldingBars)
	assert.False(t, trades[1].IsOpen())
}

func TestNewRepository_RequiresLogger(t *testing.T) {
	_, err := NewRepository(Config{DBPath: "ignored.db"})
	assert.Error(t, err)
}

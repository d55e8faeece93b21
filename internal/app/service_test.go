package app

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pairsTradingBot/config"
	"pairsTradingBot/internal/analysis"
	"pairsTradingBot/internal/domain"
	"pairsTradingBot/internal/risk"
	"pairsTradingBot/internal/signals"
)

type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

// mockMarket serves scripted klines per symbol.
type mockMarket struct {
	klines map[string][]*domain.Kline
}

func (m *mockMarket) GetKlines(ctx context.Context, symbol, interval string, startTime, endTime time.Time, limit int) ([]*domain.Kline, error) {
	return m.klines[symbol], nil
}

func (m *mockMarket) GetCurrentPrice(ctx context.Context, symbol string) (float64, error) {
	ks := m.klines[symbol]
	return ks[len(ks)-1].Close, nil
}

func (m *mockMarket) ServerTime(ctx context.Context) (time.Time, error) {
	return time.Now(), nil
}

type memPairRepo struct {
	pairs map[string]*domain.Pair
}

func (r *memPairRepo) SavePair(ctx context.Context, pair *domain.Pair) error {
	cp := *pair
	r.pairs[pair.PairID] = &cp
	return nil
}

func (r *memPairRepo) FindPair(ctx context.Context, pairID string) (*domain.Pair, error) {
	if p, ok := r.pairs[pairID]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (r *memPairRepo) FindActivePairs(ctx context.Context) ([]*domain.Pair, error) {
	var out []*domain.Pair
	for _, p := range r.pairs {
		if p.IsActive {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memPairRepo) DeactivatePair(ctx context.Context, pairID string) error {
	if p, ok := r.pairs[pairID]; ok {
		p.IsActive = false
	}
	return nil
}

type memStateRepo struct {
	states map[string]*domain.PairState
}

func (r *memStateRepo) SaveState(ctx context.Context, state *domain.PairState) error {
	cp := *state
	r.states[state.PairID] = &cp
	return nil
}

func (r *memStateRepo) FindStates(ctx context.Context) ([]*domain.PairState, error) {
	var out []*domain.PairState
	for _, st := range r.states {
		cp := *st
		out = append(out, &cp)
	}
	return out, nil
}

type memSignalRepo struct {
	signals []*domain.Signal
}

func (r *memSignalRepo) SaveSignal(ctx context.Context, sig *domain.Signal) (int64, error) {
	r.signals = append(r.signals, sig)
	return int64(len(r.signals)), nil
}

func (r *memSignalRepo) FindRecentSignals(ctx context.Context, pairID string, limit int) ([]*domain.Signal, error) {
	return nil, nil
}

type testEnv struct {
	svc       *MonitoringService
	generator *signals.Generator
	riskMgr   *risk.Manager
	pairRepo  *memPairRepo
	stateRepo *memStateRepo
	sigRepo   *memSignalRepo
	market    *mockMarket
}

func testAppConfig() *config.Config {
	return &config.Config{
		Cointegration: config.CointegrationConfig{
			PValueThreshold:     0.05,
			PValueExitThreshold: 0.10,
			BreakdownChecks:     1,
			MinHalfLife:         0.2,
			MaxHalfLife:         50,
			HedgeRatioDrift:     0.20,
			ADFLags:             1,
			TestMethod:          "engle_granger",
			LookbackBars:        120,
		},
		Exchange:           config.ExchangeConfig{Interval: "1h"},
		EvaluationInterval: time.Minute,
	}
}

func newTestEnv(t *testing.T, cfg *config.Config, market *mockMarket) *testEnv {
	t.Helper()
	log := &mockLogger{}

	analyzer, err := analysis.New(analysis.Config{
		PValueThreshold:     cfg.Cointegration.PValueThreshold,
		PValueExitThreshold: cfg.Cointegration.PValueExitThreshold,
		MinHalfLife:         cfg.Cointegration.MinHalfLife,
		MaxHalfLife:         cfg.Cointegration.MaxHalfLife,
		HedgeRatioDrift:     cfg.Cointegration.HedgeRatioDrift,
		ADFLags:             cfg.Cointegration.ADFLags,
	}, log)
	require.NoError(t, err)

	generator, err := signals.NewGenerator(signals.Config{
		ZScoreEntry:     1.5,
		ZScoreExit:      0.3,
		ZScoreStop:      2.5,
		HoldingMult:     2,
		BarInterval:     time.Hour,
		Cooldown:        5 * time.Minute,
		MinLookback:     10,
		BreakdownChecks: cfg.Cointegration.BreakdownChecks,
	}, log)
	require.NoError(t, err)

	riskMgr, err := risk.NewManager(risk.Config{
		RiskPerTrade:   0.02,
		MaxActivePairs: 1,
		DailyLossLimit: 0.05,
	}, 100000)
	require.NoError(t, err)

	pairRepo := &memPairRepo{pairs: make(map[string]*domain.Pair)}
	stateRepo := &memStateRepo{states: make(map[string]*domain.PairState)}
	sigRepo := &memSignalRepo{}

	svc, err := NewMonitoringService(cfg, log, market, analyzer, generator, riskMgr, pairRepo, stateRepo, sigRepo)
	require.NoError(t, err)

	return &testEnv{
		svc:       svc,
		generator: generator,
		riskMgr:   riskMgr,
		pairRepo:  pairRepo,
		stateRepo: stateRepo,
		sigRepo:   sigRepo,
		market:    market,
	}
}

// pairKlines builds aligned hourly klines where symbol A tracks symbol B
// with the given hedge ratio. The last ten bars freeze B and script the
// spread as [-2,-1.5,...,1.5,2,last], so the final z-score inside the
// generator's ten-bar window depends on last alone (z(-3) = -1.69).
func pairKlines(seed int64, n int, hedge float64, last float64) map[string][]*domain.Kline {
	rng := rand.New(rand.NewSource(seed))
	base := time.Now().Add(-time.Duration(n) * time.Hour).Truncate(time.Hour)
	w := []float64{-2, -1.5, -1, -0.5, 0, 0.5, 1, 1.5, 2, last}

	a := make([]*domain.Kline, n)
	b := make([]*domain.Kline, n)
	x := 100.0
	resid := 0.0
	for i := 0; i < n; i++ {
		var av float64
		if i < n-10 {
			x += rng.NormFloat64()
			resid = 0.3*resid + rng.NormFloat64()
			av = hedge*x + resid
		} else {
			av = hedge*x + w[i-(n-10)]
		}
		open := base.Add(time.Duration(i) * time.Hour)
		a[i] = &domain.Kline{Symbol: "AUSDT", Interval: "1h", OpenTime: open, CloseTime: open.Add(time.Hour), Close: av}
		b[i] = &domain.Kline{Symbol: "BUSDT", Interval: "1h", OpenTime: open, CloseTime: open.Add(time.Hour), Close: x}
	}
	return map[string][]*domain.Kline{"AUSDT": a, "BUSDT": b}
}

func activePair(hedge float64) *domain.Pair {
	return &domain.Pair{
		PairID:     domain.PairID("AUSDT", "BUSDT"),
		Symbol1:    "AUSDT",
		Symbol2:    "BUSDT",
		HedgeRatio: hedge,
		HalfLife:   2,
		PValue:     0.01,
		TestMethod: domain.MethodEngleGranger,
		IsActive:   true,
	}
}

func TestNewMonitoringService_RequiresDependencies(t *testing.T) {
	env := newTestEnv(t, testAppConfig(), &mockMarket{})
	_, err := NewMonitoringService(nil, &mockLogger{}, env.market, nil, nil, nil, nil, nil, nil)
	assert.Error(t, err)
}

func TestEvaluatePair_EmitsEntrySignal(t *testing.T) {
	market := &mockMarket{klines: pairKlines(3, 120, 2, -3)}
	env := newTestEnv(t, testAppConfig(), market)
	ctx := context.Background()

	pair := activePair(2)
	require.NoError(t, env.pairRepo.SavePair(ctx, pair))

	require.NoError(t, env.svc.evaluatePair(ctx, pair))

	require.Len(t, env.sigRepo.signals, 1)
	sig := env.sigRepo.signals[0]
	assert.Equal(t, domain.OpenLongSpread, sig.Type)
	assert.InDelta(t, -1.685, sig.ZScore, 0.01)

	st := env.generator.State(pair.PairID)
	require.NotNil(t, st)
	assert.Equal(t, domain.StatusLongSpread, st.Status)

	// State and refreshed estimate were persisted.
	assert.Contains(t, env.stateRepo.states, pair.PairID)
	saved, err := env.pairRepo.FindPair(ctx, pair.PairID)
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.True(t, saved.IsActive)
	assert.Equal(t, 1, env.riskMgr.ActivePairCount())
}

func TestEvaluatePair_NoSignalInsideBands(t *testing.T) {
	// Final z-score 0.28, inside every band: nothing to do.
	market := &mockMarket{klines: pairKlines(3, 120, 2, 0.4)}
	env := newTestEnv(t, testAppConfig(), market)
	ctx := context.Background()

	pair := activePair(2)
	require.NoError(t, env.pairRepo.SavePair(ctx, pair))
	require.NoError(t, env.svc.evaluatePair(ctx, pair))

	assert.Empty(t, env.sigRepo.signals)
	st := env.generator.State(pair.PairID)
	require.NotNil(t, st)
	assert.True(t, st.IsFlat())
}

func TestEvaluatePair_RiskGateVetoesEntry(t *testing.T) {
	market := &mockMarket{klines: pairKlines(3, 120, 2, -3)}
	env := newTestEnv(t, testAppConfig(), market)
	ctx := context.Background()

	// Occupy the single allowed slot with another pair.
	env.riskMgr.RecordSignal(&domain.Signal{Type: domain.OpenLongSpread, PairID: "X_Y"})

	pair := activePair(2)
	require.NoError(t, env.pairRepo.SavePair(ctx, pair))
	require.NoError(t, env.svc.evaluatePair(ctx, pair))

	// The entry was rolled back: no signal persisted, state flat again.
	assert.Empty(t, env.sigRepo.signals)
	st := env.generator.State(pair.PairID)
	require.NotNil(t, st)
	assert.True(t, st.IsFlat())
	assert.Equal(t, 1, env.riskMgr.ActivePairCount())
}

func TestEvaluatePair_BreakdownDeactivatesPair(t *testing.T) {
	// Fresh data fits hedge ratio 5 against a stored estimate of 2: the
	// drift check breaks the held position regardless of the new fit's own
	// validity. The scripted final z-score (-1.69) sits between the exit
	// and stop bands so no other exit fires first.
	market := &mockMarket{klines: pairKlines(5, 120, 5, -3)}
	env := newTestEnv(t, testAppConfig(), market)
	ctx := context.Background()

	pair := activePair(2)
	require.NoError(t, env.pairRepo.SavePair(ctx, pair))
	env.generator.Restore(&domain.PairState{
		PairID:          pair.PairID,
		Symbol1:         pair.Symbol1,
		Symbol2:         pair.Symbol2,
		Status:          domain.StatusLongSpread,
		EntryZScore:     -1.8,
		EntryHedgeRatio: 2,
		EntryTime:       time.Now().Add(-20 * time.Minute),
		ScaleLevel:      1,
	})
	env.riskMgr.RecordSignal(&domain.Signal{Type: domain.OpenLongSpread, PairID: pair.PairID})

	require.NoError(t, env.svc.evaluatePair(ctx, pair))

	require.Len(t, env.sigRepo.signals, 1)
	assert.Equal(t, domain.BreakdownExit, env.sigRepo.signals[0].Type)

	saved, err := env.pairRepo.FindPair(ctx, pair.PairID)
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.False(t, saved.IsActive)

	st := env.generator.State(pair.PairID)
	require.NotNil(t, st)
	assert.True(t, st.IsFlat())
	assert.Equal(t, 0, env.riskMgr.ActivePairCount())

	// The persisted state reflects the flat machine.
	assert.Equal(t, domain.StatusFlat, env.stateRepo.states[pair.PairID].Status)
}

func TestEvaluateAllPairs_SkipsFailingPair(t *testing.T) {
	// One pair has no data at all; the other still gets evaluated.
	klines := pairKlines(3, 120, 2, -3)
	market := &mockMarket{klines: klines}
	env := newTestEnv(t, testAppConfig(), market)
	ctx := context.Background()

	require.NoError(t, env.pairRepo.SavePair(ctx, &domain.Pair{
		PairID: "MISSING_PAIR", Symbol1: "MISSING", Symbol2: "PAIR", IsActive: true,
	}))
	require.NoError(t, env.pairRepo.SavePair(ctx, activePair(2)))

	env.svc.evaluateAllPairs(ctx)

	require.Len(t, env.sigRepo.signals, 1)
	assert.Equal(t, domain.OpenLongSpread, env.sigRepo.signals[0].Type)
}

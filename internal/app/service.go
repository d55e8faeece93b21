package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pairsTradingBot/config"
	"pairsTradingBot/internal/analysis"
	"pairsTradingBot/internal/domain"
	"pairsTradingBot/internal/ports"
	"pairsTradingBot/internal/risk"
	"pairsTradingBot/internal/signals"
	"pairsTradingBot/internal/utils"
)

// MonitoringService orchestrates the live monitoring loop: it refreshes
// price data for every active pair, re-runs the cointegration test,
// feeds the result through the signal generator and persists whatever
// comes out. Decisions stay in the analysis and signals packages; this
// service only wires them to the outside world.
type MonitoringService struct {
	cfg       *config.Config
	logger    ports.Logger
	market    ports.MarketDataClient
	analyzer  *analysis.Analyzer
	generator *signals.Generator
	riskMgr   *risk.Manager
	pairRepo  ports.PairRepository
	stateRepo ports.PairStateRepository
	sigRepo   ports.SignalRepository
}

// NewMonitoringService creates a new application service instance.
func NewMonitoringService(
	cfg *config.Config,
	logger ports.Logger,
	market ports.MarketDataClient,
	analyzer *analysis.Analyzer,
	generator *signals.Generator,
	riskMgr *risk.Manager,
	pairRepo ports.PairRepository,
	stateRepo ports.PairStateRepository,
	sigRepo ports.SignalRepository,
) (*MonitoringService, error) {

	if cfg == nil || logger == nil || market == nil || analyzer == nil || generator == nil ||
		riskMgr == nil || pairRepo == nil || stateRepo == nil || sigRepo == nil {
		return nil, fmt.Errorf("missing required dependencies for MonitoringService")
	}

	return &MonitoringService{
		cfg:       cfg,
		logger:    logger,
		market:    market,
		analyzer:  analyzer,
		generator: generator,
		riskMgr:   riskMgr,
		pairRepo:  pairRepo,
		stateRepo: stateRepo,
		sigRepo:   sigRepo,
	}, nil
}

// Start begins the monitoring loop and blocks until the context is
// canceled or a shutdown signal arrives.
func (s *MonitoringService) Start(ctx context.Context) error {
	s.logger.Info(ctx, "Starting Monitoring Service...")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		s.logger.Info(ctx, "Received shutdown signal", map[string]interface{}{"signal": sig.String()})
		cancel()
	}()

	// Check exchange connectivity and clock drift before entering the loop.
	serverTime, err := s.market.ServerTime(ctx)
	if err != nil {
		s.logger.Error(ctx, err, "Failed to reach exchange")
		return fmt.Errorf("failed to reach exchange: %w", err)
	}
	if drift := time.Since(serverTime); drift > time.Minute || drift < -time.Minute {
		s.logger.Warn(ctx, "Large clock drift against exchange", map[string]interface{}{"drift": drift.String()})
	}

	// Restore persisted pair states so open positions survive restarts.
	states, err := s.stateRepo.FindStates(ctx)
	if err != nil {
		s.logger.Error(ctx, err, "Failed to restore pair states")
		return fmt.Errorf("failed to restore pair states: %w", err)
	}
	for _, st := range states {
		s.generator.Restore(st)
	}
	s.logger.Info(ctx, "Pair states restored", map[string]interface{}{"count": len(states)})

	// Evaluate immediately, then on the configured interval.
	s.evaluateAllPairs(ctx)

	ticker := time.NewTicker(s.cfg.EvaluationInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info(ctx, "Monitoring Service stopped.")
			return nil
		case <-ticker.C:
			s.evaluateAllPairs(ctx)
		}
	}
}

// evaluateAllPairs runs one evaluation cycle over every active pair.
// Per-pair failures are logged and skipped so one bad pair cannot stall
// the rest of the cycle.
func (s *MonitoringService) evaluateAllPairs(ctx context.Context) {
	pairs, err := s.pairRepo.FindActivePairs(ctx)
	if err != nil {
		s.logger.Error(ctx, err, "Failed to load active pairs")
		return
	}
	s.logger.Debug(ctx, "Evaluation cycle started", map[string]interface{}{"pairs": len(pairs)})

	for _, pair := range pairs {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if err := s.evaluatePair(ctx, pair); err != nil {
			s.logger.Error(ctx, err, "Pair evaluation failed", map[string]interface{}{"pairID": pair.PairID})
		}
	}
}

// evaluatePair refreshes one pair: fetch fresh klines, re-test the
// relationship, generate at most one signal and persist the outcome.
func (s *MonitoringService) evaluatePair(ctx context.Context, pair *domain.Pair) error {
	klines1, err := s.market.GetKlines(ctx, pair.Symbol1, s.cfg.Exchange.Interval, time.Time{}, time.Time{}, s.cfg.Cointegration.LookbackBars)
	if err != nil {
		return fmt.Errorf("fetching klines for %s: %w", pair.Symbol1, err)
	}
	klines2, err := s.market.GetKlines(ctx, pair.Symbol2, s.cfg.Exchange.Interval, time.Time{}, time.Time{}, s.cfg.Cointegration.LookbackBars)
	if err != nil {
		return fmt.Errorf("fetching klines for %s: %w", pair.Symbol2, err)
	}

	series1, series2, _ := utils.AlignKlines(klines1, klines2)

	result, err := s.runTest(ctx, series1, series2, pair.Symbol1, pair.Symbol2)
	if err != nil {
		// Keep the stored estimate; an estimation failure is not a breakdown.
		return fmt.Errorf("cointegration test for %s: %w", pair.PairID, err)
	}

	// A held position is judged against the looser breakdown criteria
	// (exit p-value threshold plus hedge ratio drift), not the entry
	// threshold, so a marginal p-value does not immediately force an exit.
	if st := s.generator.State(pair.PairID); st != nil && !st.IsFlat() {
		broken, reason := s.analyzer.CheckBreakdown(result, pair.HedgeRatio)
		result.IsCointegrated = !broken
		if broken {
			s.logger.Warn(ctx, "Pair relationship degraded", map[string]interface{}{"pairID": pair.PairID, "reason": reason})
		}
	}

	price1 := series1[len(series1)-1]
	price2 := series2[len(series2)-1]

	sig, err := s.generator.GenerateSignal(ctx, pair.PairID, pair.Symbol1, pair.Symbol2, series1, series2, result, price1, price2)
	if err != nil {
		return fmt.Errorf("generating signal for %s: %w", pair.PairID, err)
	}

	if sig != nil {
		if sig.Type.IsEntry() {
			if allowed, reason := s.riskMgr.AllowSignal(sig); !allowed {
				s.logger.Warn(ctx, "Entry vetoed by risk gate", map[string]interface{}{"pairID": pair.PairID, "reason": reason})
				// Roll the state machine back to flat; the entry never happened.
				if st := s.generator.State(pair.PairID); st != nil {
					st.Reset()
				}
				sig = nil
			}
		}
	}

	if sig != nil {
		s.riskMgr.RecordSignal(sig)
		if _, err := s.sigRepo.SaveSignal(ctx, sig); err != nil {
			s.logger.Error(ctx, err, "Failed to persist signal", map[string]interface{}{"pairID": pair.PairID, "type": sig.Type})
		}
		if sig.Type == domain.BreakdownExit {
			if err := s.pairRepo.DeactivatePair(ctx, pair.PairID); err != nil {
				s.logger.Error(ctx, err, "Failed to deactivate broken pair", map[string]interface{}{"pairID": pair.PairID})
			}
		}
	}

	// Refresh the stored estimate while the relationship holds.
	if result.IsCointegrated {
		pair.HedgeRatio = result.HedgeRatio
		pair.HalfLife = result.HalfLife
		pair.PValue = result.PValue
		pair.SpreadMean = result.SpreadMean
		pair.SpreadStd = result.SpreadStd
		pair.TestMethod = result.TestMethod
		if err := s.pairRepo.SavePair(ctx, pair); err != nil {
			s.logger.Error(ctx, err, "Failed to refresh pair estimate", map[string]interface{}{"pairID": pair.PairID})
		}
	}

	if st := s.generator.State(pair.PairID); st != nil {
		if err := s.stateRepo.SaveState(ctx, st); err != nil {
			s.logger.Error(ctx, err, "Failed to persist pair state", map[string]interface{}{"pairID": pair.PairID})
		}
	}
	return nil
}

// runTest dispatches to the configured cointegration test.
func (s *MonitoringService) runTest(ctx context.Context, series1, series2 []float64, symbol1, symbol2 string) (domain.CointegrationResult, error) {
	if s.cfg.Cointegration.TestMethod == string(domain.MethodJohansen) {
		return s.analyzer.TestJohansen(ctx, series1, series2, symbol1, symbol2)
	}
	return s.analyzer.TestEngleGranger(ctx, series1, series2, symbol1, symbol2)
}

package signals

import (
	"context"
	"fmt"
	"math"
	"time"

	"pairsTradingBot/internal/analysis"
	"pairsTradingBot/internal/domain"
	"pairsTradingBot/internal/ports"
)

// Config holds parameters for signal generation.
type Config struct {
	ZScoreEntry   float64
	ZScoreExit    float64
	ZScoreStop    float64
	ZScoreWarning float64 // 0 disables informational warnings

	ScaleIn      bool
	ScaleLevels  []float64 // Ascending z-score thresholds; entry consumes the first
	ScaleWeights []float64

	HoldingMult float64       // Max holding = half-life * HoldingMult, in bars
	BarInterval time.Duration // Duration of one bar
	Cooldown    time.Duration // Entry signal cooldown per pair
	MinLookback int           // Floor for the z-score lookback window

	BreakdownChecks int // Consecutive invalid evaluations before breakdown exit
	BreakdownDecay  int // 0 = hard counter reset on a valid evaluation
}

// Generator turns z-scores and cointegration verdicts into trading
// signals, holding one mutable PairState per pair. Checks run in strict
// priority order (exit > scale-in > entry) so a position is never flagged
// for entry and exit in the same cycle. Not safe for concurrent
// evaluation of the same pair; the caller serializes per pair.
type Generator struct {
	cfg    Config
	logger ports.Logger
	states map[string]*domain.PairState
	now    func() time.Time
}

// NewGenerator creates a signal generator, validating the configuration.
func NewGenerator(cfg Config, logger ports.Logger) (*Generator, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for signal generator")
	}
	if cfg.ZScoreEntry <= 0 {
		return nil, fmt.Errorf("%w: entry z-score must be positive", ports.ErrConfiguration)
	}
	if cfg.ZScoreExit >= cfg.ZScoreEntry {
		return nil, fmt.Errorf("%w: exit z-score must be below entry z-score", ports.ErrConfiguration)
	}
	if cfg.ZScoreStop <= cfg.ZScoreEntry {
		return nil, fmt.Errorf("%w: stop z-score must be above entry z-score", ports.ErrConfiguration)
	}
	if len(cfg.ScaleLevels) != len(cfg.ScaleWeights) {
		return nil, fmt.Errorf("%w: scale levels and weights must have the same length", ports.ErrConfiguration)
	}
	for i := 1; i < len(cfg.ScaleLevels); i++ {
		if cfg.ScaleLevels[i] <= cfg.ScaleLevels[i-1] {
			return nil, fmt.Errorf("%w: scale levels must be strictly ascending", ports.ErrConfiguration)
		}
	}
	if cfg.HoldingMult <= 0 {
		return nil, fmt.Errorf("%w: holding multiplier must be positive", ports.ErrConfiguration)
	}
	if cfg.BarInterval <= 0 {
		return nil, fmt.Errorf("%w: bar interval must be positive", ports.ErrConfiguration)
	}
	if cfg.Cooldown < 0 {
		return nil, fmt.Errorf("%w: cooldown cannot be negative", ports.ErrConfiguration)
	}
	if cfg.MinLookback < 2 {
		return nil, fmt.Errorf("%w: minimum lookback must be at least 2", ports.ErrConfiguration)
	}
	if cfg.BreakdownChecks <= 0 {
		return nil, fmt.Errorf("%w: breakdown checks must be positive", ports.ErrConfiguration)
	}
	return &Generator{
		cfg:    cfg,
		logger: logger,
		states: make(map[string]*domain.PairState),
		now:    time.Now,
	}, nil
}

// stateFor returns the pair's state, creating it lazily on first
// observation. States are never deleted; exits reset them to flat.
func (g *Generator) stateFor(pairID, symbol1, symbol2 string) *domain.PairState {
	if st, ok := g.states[pairID]; ok {
		return st
	}
	st := &domain.PairState{
		PairID:  pairID,
		Symbol1: symbol1,
		Symbol2: symbol2,
		Status:  domain.StatusFlat,
	}
	g.states[pairID] = st
	return st
}

// Restore installs a state recovered from external storage, replacing any
// in-memory state for the pair.
func (g *Generator) Restore(state *domain.PairState) {
	g.states[state.PairID] = state
}

// State returns the current state for a pair, or nil if the pair has not
// been observed yet.
func (g *Generator) State(pairID string) *domain.PairState {
	return g.states[pairID]
}

// ActivePositions returns all pairs currently holding a position.
func (g *Generator) ActivePositions() []*domain.PairState {
	var out []*domain.PairState
	for _, st := range g.states {
		if !st.IsFlat() {
			out = append(out, st)
		}
	}
	return out
}

// GenerateSignal evaluates one pair against fresh data and the latest
// cointegration verdict, emitting at most one signal and mutating the
// pair's state before returning. A nil signal means no action this cycle.
func (g *Generator) GenerateSignal(ctx context.Context, pairID, symbol1, symbol2 string, series1, series2 []float64, coint domain.CointegrationResult, price1, price2 float64) (*domain.Signal, error) {
	if len(series1) != len(series2) {
		return nil, fmt.Errorf("%w: series lengths differ (%d vs %d)", ports.ErrInvalidInput, len(series1), len(series2))
	}
	if len(series1) == 0 {
		return nil, fmt.Errorf("%w: empty series", ports.ErrInvalidInput)
	}

	state := g.stateFor(pairID, symbol1, symbol2)
	state.HalfLife = coint.HalfLife

	zscore := analysis.CurrentZScore(series1, series2, coint.HedgeRatio, g.lookback(coint))

	sig := g.checkExit(state, zscore, coint)
	if sig == nil {
		sig = g.checkScaleIn(state, zscore)
	}
	if sig == nil {
		sig = g.checkEntry(state, zscore, coint)
	}
	if sig == nil {
		sig = g.checkWarning(state, zscore)
	}
	if sig == nil {
		return nil, nil
	}

	sig.Price1 = price1
	sig.Price2 = price2
	g.apply(state, sig)

	g.logger.Info(ctx, "signal generated", map[string]interface{}{
		"pair":   pairID,
		"type":   sig.Type,
		"zscore": sig.ZScore,
		"reason": sig.Reason,
	})
	return sig, nil
}

// lookback derives the z-score window from the half-life, floored at the
// configured minimum. A non-reverting spread falls back to the minimum.
func (g *Generator) lookback(coint domain.CointegrationResult) int {
	lb := g.cfg.MinLookback
	if coint.HasMeanReversion() {
		if hl := int(coint.HalfLife / 2); hl > lb {
			lb = hl
		}
	}
	return lb
}

// checkExit evaluates exit conditions for a held position, in order:
// stop-loss, time exit, mean-reversion exit, breakdown exit.
func (g *Generator) checkExit(state *domain.PairState, zscore float64, coint domain.CointegrationResult) *domain.Signal {
	if state.IsFlat() {
		return nil
	}
	now := g.now()

	if math.Abs(zscore) >= g.cfg.ZScoreStop {
		return g.newSignal(domain.StopLoss, state, zscore, state.EntryHedgeRatio,
			fmt.Sprintf("stop-loss at z-score %.2f", zscore))
	}

	if !state.EntryTime.IsZero() && !math.IsInf(state.HalfLife, 1) {
		maxHolding := time.Duration(state.HalfLife * g.cfg.HoldingMult * float64(g.cfg.BarInterval))
		if held := now.Sub(state.EntryTime); held > maxHolding {
			return g.newSignal(domain.TimeExit, state, zscore, state.EntryHedgeRatio,
				fmt.Sprintf("max holding time exceeded (%s > %s)", held.Round(time.Minute), maxHolding.Round(time.Minute)))
		}
	}

	switch state.Status {
	case domain.StatusLongSpread:
		if zscore >= -g.cfg.ZScoreExit {
			return g.newSignal(domain.CloseLongSpread, state, zscore, state.EntryHedgeRatio,
				fmt.Sprintf("mean reversion: z-score %.2f", zscore))
		}
	case domain.StatusShortSpread:
		if zscore <= g.cfg.ZScoreExit {
			return g.newSignal(domain.CloseShortSpr, state, zscore, state.EntryHedgeRatio,
				fmt.Sprintf("mean reversion: z-score %.2f", zscore))
		}
	}

	if !coint.IsCointegrated {
		state.BreakdownCount++
		if state.BreakdownCount >= g.cfg.BreakdownChecks {
			return g.newSignal(domain.BreakdownExit, state, zscore, state.EntryHedgeRatio,
				fmt.Sprintf("cointegration breakdown (p-value: %.3f)", coint.PValue))
		}
	} else if g.cfg.BreakdownDecay > 0 {
		state.BreakdownCount -= g.cfg.BreakdownDecay
		if state.BreakdownCount < 0 {
			state.BreakdownCount = 0
		}
	} else {
		state.BreakdownCount = 0
	}

	return nil
}

// checkScaleIn evaluates whether the z-score has moved far enough past the
// next configured level to add to the position.
func (g *Generator) checkScaleIn(state *domain.PairState, zscore float64) *domain.Signal {
	if !g.cfg.ScaleIn || state.IsFlat() || state.ScaleLevel >= len(g.cfg.ScaleLevels) {
		return nil
	}

	threshold := g.cfg.ScaleLevels[state.ScaleLevel]
	nextLevel := state.ScaleLevel + 1

	switch state.Status {
	case domain.StatusLongSpread:
		if zscore <= -threshold {
			sig := g.newSignal(domain.ScaleInLong, state, zscore, state.EntryHedgeRatio,
				fmt.Sprintf("scale-in level %d at z-score %.2f", nextLevel, zscore))
			sig.ScaleLevel = nextLevel
			return sig
		}
	case domain.StatusShortSpread:
		if zscore >= threshold {
			sig := g.newSignal(domain.ScaleInShort, state, zscore, state.EntryHedgeRatio,
				fmt.Sprintf("scale-in level %d at z-score %.2f", nextLevel, zscore))
			sig.ScaleLevel = nextLevel
			return sig
		}
	}
	return nil
}

// checkEntry evaluates entry conditions for a flat pair: the relationship
// must be currently valid, the cooldown must have elapsed and the z-score
// must be past the entry threshold.
func (g *Generator) checkEntry(state *domain.PairState, zscore float64, coint domain.CointegrationResult) *domain.Signal {
	if !state.IsFlat() || !coint.IsCointegrated {
		return nil
	}
	if !state.LastSignalTime.IsZero() && g.now().Sub(state.LastSignalTime) < g.cfg.Cooldown {
		return nil
	}

	switch {
	case zscore <= -g.cfg.ZScoreEntry:
		sig := g.newSignal(domain.OpenLongSpread, state, zscore, coint.HedgeRatio,
			fmt.Sprintf("z-score %.2f <= -%.2f", zscore, g.cfg.ZScoreEntry))
		sig.ScaleLevel = 1
		return sig
	case zscore >= g.cfg.ZScoreEntry:
		sig := g.newSignal(domain.OpenShortSpread, state, zscore, coint.HedgeRatio,
			fmt.Sprintf("z-score %.2f >= %.2f", zscore, g.cfg.ZScoreEntry))
		sig.ScaleLevel = 1
		return sig
	}
	return nil
}

// checkWarning emits an informational signal when a held position's
// z-score approaches the stop threshold. No state change beyond the
// signal timestamp; suppressed within the cooldown window.
func (g *Generator) checkWarning(state *domain.PairState, zscore float64) *domain.Signal {
	if g.cfg.ZScoreWarning <= 0 || state.IsFlat() {
		return nil
	}
	if math.Abs(zscore) < g.cfg.ZScoreWarning {
		return nil
	}
	if !state.LastSignalTime.IsZero() && g.now().Sub(state.LastSignalTime) < g.cfg.Cooldown {
		return nil
	}
	return g.newSignal(domain.Warning, state, zscore, state.EntryHedgeRatio,
		fmt.Sprintf("z-score %.2f approaching stop %.2f", zscore, g.cfg.ZScoreStop))
}

func (g *Generator) newSignal(kind domain.SignalType, state *domain.PairState, zscore, hedgeRatio float64, reason string) *domain.Signal {
	return &domain.Signal{
		Type:       kind,
		PairID:     state.PairID,
		Symbol1:    state.Symbol1,
		Symbol2:    state.Symbol2,
		ZScore:     zscore,
		HedgeRatio: hedgeRatio,
		Timestamp:  g.now(),
		Reason:     reason,
		ScaleLevel: state.ScaleLevel,
		HalfLife:   state.HalfLife,
	}
}

// apply mutates the pair's state to reflect an emitted signal.
func (g *Generator) apply(state *domain.PairState, sig *domain.Signal) {
	switch sig.Type {
	case domain.OpenLongSpread, domain.OpenShortSpread:
		if sig.Type == domain.OpenLongSpread {
			state.Status = domain.StatusLongSpread
		} else {
			state.Status = domain.StatusShortSpread
		}
		state.EntryZScore = sig.ZScore
		state.EntryHedgeRatio = sig.HedgeRatio
		state.EntryTime = sig.Timestamp
		state.EntryPrice1 = sig.Price1
		state.EntryPrice2 = sig.Price2
		state.ScaleLevel = 1

	case domain.ScaleInLong, domain.ScaleInShort:
		state.ScaleLevel = sig.ScaleLevel

	case domain.CloseLongSpread, domain.CloseShortSpr, domain.StopLoss, domain.TimeExit, domain.BreakdownExit:
		state.Reset()
	}

	state.LastSignalTime = sig.Timestamp
}

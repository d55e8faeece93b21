package backtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pairsTradingBot/internal/analysis"
	"pairsTradingBot/internal/domain"
	"pairsTradingBot/internal/ports"
)

// Params holds the knobs for one backtest run. Passing them explicitly
// (rather than reading ambient config) keeps parallel runs with different
// parameter sets independent.
type Params struct {
	ZScoreEntry       float64
	ZScoreExit        float64
	ZScoreStop        float64
	HoldingMult       float64 // Max holding = half-life * HoldingMult, in bars
	CointLookbackBars int     // Trailing window for recalibration
	RecalibrationBars int     // Bars between recalibrations
	InitialCapital    float64
	RiskPerTrade      float64
}

// Validate checks internal consistency of the parameters.
func (p Params) Validate() error {
	if p.ZScoreEntry <= 0 {
		return fmt.Errorf("%w: entry z-score must be positive", ports.ErrConfiguration)
	}
	if p.ZScoreExit >= p.ZScoreEntry {
		return fmt.Errorf("%w: exit z-score must be below entry z-score", ports.ErrConfiguration)
	}
	if p.ZScoreStop <= p.ZScoreEntry {
		return fmt.Errorf("%w: stop z-score must be above entry z-score", ports.ErrConfiguration)
	}
	if p.HoldingMult <= 0 {
		return fmt.Errorf("%w: holding multiplier must be positive", ports.ErrConfiguration)
	}
	if p.CointLookbackBars <= 0 || p.RecalibrationBars <= 0 {
		return fmt.Errorf("%w: lookback and recalibration bars must be positive", ports.ErrConfiguration)
	}
	if p.InitialCapital <= 0 {
		return fmt.Errorf("%w: initial capital must be positive", ports.ErrConfiguration)
	}
	if p.RiskPerTrade <= 0 || p.RiskPerTrade >= 1 {
		return fmt.Errorf("%w: risk per trade must be in (0, 1)", ports.ErrConfiguration)
	}
	return nil
}

// Simulator replays the cointegration analyzer and the entry/exit policy
// bar by bar over an aligned two-series history. One pair per run; runs
// are independent and may execute in parallel.
type Simulator struct {
	analyzer *analysis.Analyzer
	logger   ports.Logger
}

// NewSimulator creates a backtest simulator.
func NewSimulator(analyzer *analysis.Analyzer, logger ports.Logger) (*Simulator, error) {
	if analyzer == nil {
		return nil, fmt.Errorf("analyzer is required for simulator")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for simulator")
	}
	return &Simulator{analyzer: analyzer, logger: logger}, nil
}

// calibration is the relationship state carried between recalibrations.
type calibration struct {
	established bool
	valid       bool
	hedgeRatio  float64
	spreadMean  float64
	spreadStd   float64
	halfLife    float64
}

// Run executes a backtest for one pair over aligned series with bar
// timestamps. Timestamps must be strictly increasing; series must be the
// same length with no gaps the caller hasn't already resolved.
func (s *Simulator) Run(ctx context.Context, symbol1, symbol2 string, series1, series2 []float64, times []time.Time, params Params) (*Result, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if len(series1) != len(series2) || len(series1) != len(times) {
		return nil, fmt.Errorf("%w: series/timestamp lengths differ (%d, %d, %d)",
			ports.ErrInvalidInput, len(series1), len(series2), len(times))
	}
	for i := 1; i < len(times); i++ {
		if !times[i].After(times[i-1]) {
			return nil, fmt.Errorf("%w: timestamps not strictly increasing at index %d", ports.ErrInvalidInput, i)
		}
	}
	lookback := params.CointLookbackBars
	if len(series1) < lookback+2 {
		return nil, fmt.Errorf("%w: %d bars, need more than %d", ports.ErrInsufficientData, len(series1), lookback+1)
	}

	pairID := domain.PairID(symbol1, symbol2)
	s.logger.Info(ctx, "starting backtest", map[string]interface{}{
		"pair": pairID,
		"bars": len(series1),
	})

	var (
		cal          calibration
		currentTrade *domain.SpreadTrade
		trades       []*domain.SpreadTrade
		halfLives    []float64
		cointWindows int

		equity      = params.InitialCapital
		peakEquity  = params.InitialCapital
		maxDrawdown float64
		equityCurve = []float64{equity}

		lastCalibration = -params.RecalibrationBars
		entryIndex      int
	)

	closeAndBook := func(i int, spread, zscore float64, reason domain.ExitReason) {
		closeTrade(currentTrade, times[i], spread, zscore, reason, i-entryIndex, cal.spreadStd)
		trades = append(trades, currentTrade)
		equity += currentTrade.PnLPercent * params.InitialCapital * params.RiskPerTrade
		currentTrade = nil
	}

	for i := lookback; i < len(series1); i++ {
		price1, price2 := series1[i], series2[i]

		// Recalibrate periodically, or immediately while no relationship
		// is established yet.
		if i-lastCalibration >= params.RecalibrationBars || !cal.established {
			result, err := s.analyzer.TestEngleGranger(ctx, series1[i-lookback:i], series2[i-lookback:i], symbol1, symbol2)
			switch {
			case err != nil:
				// Unable to evaluate this window; keep the previous
				// calibration rather than treating it as a breakdown.
				if !errors.Is(err, ports.ErrInsufficientData) && !errors.Is(err, ports.ErrEstimationFailed) {
					return nil, err
				}
				s.logger.Debug(ctx, "recalibration skipped", map[string]interface{}{
					"pair": pairID, "bar": i, "error": err.Error(),
				})
			case result.IsCointegrated:
				cal = calibration{
					established: true,
					valid:       true,
					hedgeRatio:  result.HedgeRatio,
					spreadMean:  result.SpreadMean,
					spreadStd:   result.SpreadStd,
					halfLife:    result.HalfLife,
				}
				cointWindows++
				halfLives = append(halfLives, result.HalfLife)
			default:
				cal.valid = false
				// Validity flipped with a position open: force-close at
				// the current spread under the hedge ratio still in use.
				if currentTrade != nil {
					hr := cal.hedgeRatio
					if !cal.established {
						hr = 1
					}
					closeAndBook(i, price1-hr*price2, 0, domain.ExitBreakdown)
				}
			}
			lastCalibration = i
		}

		if !cal.valid || cal.spreadStd == 0 {
			equityCurve = append(equityCurve, equity)
			continue
		}

		spread := price1 - cal.hedgeRatio*price2
		zscore := (spread - cal.spreadMean) / cal.spreadStd
		maxHoldingBars := int(cal.halfLife * params.HoldingMult)

		if currentTrade == nil {
			switch {
			case zscore <= -params.ZScoreEntry:
				currentTrade = openTrade(pairID, symbol1, symbol2, domain.StatusLongSpread, times[i], zscore, spread, cal)
				entryIndex = i
			case zscore >= params.ZScoreEntry:
				currentTrade = openTrade(pairID, symbol1, symbol2, domain.StatusShortSpread, times[i], zscore, spread, cal)
				entryIndex = i
			}
		} else {
			barsHeld := i - entryIndex
			long := currentTrade.Direction == domain.StatusLongSpread

			switch {
			case long && zscore <= -params.ZScoreStop, !long && zscore >= params.ZScoreStop:
				closeAndBook(i, spread, zscore, domain.ExitStopLoss)
			case barsHeld >= maxHoldingBars:
				closeAndBook(i, spread, zscore, domain.ExitTime)
			case long && zscore >= -params.ZScoreExit, !long && zscore <= params.ZScoreExit:
				closeAndBook(i, spread, zscore, domain.ExitTakeProfit)
			}
		}

		equityCurve = append(equityCurve, equity)
		if equity > peakEquity {
			peakEquity = equity
		}
		if dd := (peakEquity - equity) / peakEquity; dd > maxDrawdown {
			maxDrawdown = dd
		}
	}

	// Force-close anything still open at the final bar.
	if currentTrade != nil {
		last := len(series1) - 1
		closeAndBook(last, series1[last]-cal.hedgeRatio*series2[last], 0, domain.ExitEndOfData)
	}

	result := buildResult(resultInputs{
		PairID:       pairID,
		Symbol1:      symbol1,
		Symbol2:      symbol2,
		StartTime:    times[0],
		EndTime:      times[len(times)-1],
		Params:       params,
		Trades:       trades,
		EquityCurve:  equityCurve,
		FinalEquity:  equity,
		MaxDrawdown:  maxDrawdown,
		HalfLives:    halfLives,
		CointWindows: cointWindows,
	})

	s.logger.Info(ctx, "backtest complete", map[string]interface{}{
		"pair":         pairID,
		"trades":       result.TotalTrades,
		"win_rate":     result.WinRate,
		"max_drawdown": result.MaxDrawdownPercent,
	})
	return result, nil
}

func openTrade(pairID, symbol1, symbol2 string, direction domain.PositionStatus, at time.Time, zscore, spread float64, cal calibration) *domain.SpreadTrade {
	return &domain.SpreadTrade{
		PairID:         pairID,
		Symbol1:        symbol1,
		Symbol2:        symbol2,
		Direction:      direction,
		EntryTime:      at,
		EntryZScore:    zscore,
		EntrySpread:    spread,
		HedgeRatio:     cal.hedgeRatio,
		EntrySpreadStd: cal.spreadStd,
	}
}

// closeTrade finalizes a trade. P&L in spread units is the spread change
// (sign-flipped for short-spread trades); P&L percent divides by the
// spread standard deviation captured at entry so recalibration cannot
// rewrite a past trade's risk denominator.
func closeTrade(trade *domain.SpreadTrade, at time.Time, exitSpread, exitZScore float64, reason domain.ExitReason, holdingBars int, fallbackStd float64) {
	trade.ExitTime = at
	trade.ExitSpread = exitSpread
	trade.ExitZScore = exitZScore
	trade.ExitReason = reason
	trade.HoldingBars = holdingBars

	change := exitSpread - trade.EntrySpread
	if trade.Direction == domain.StatusShortSpread {
		change = -change
	}
	trade.PnLSpreadUnits = change

	refStd := trade.EntrySpreadStd
	if refStd <= 0 {
		refStd = fallbackStd
	}
	if refStd > 0 {
		trade.PnLPercent = change / refStd
	}
}

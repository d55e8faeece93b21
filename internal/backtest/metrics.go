package backtest

import (
	"math"
	"time"

	"pairsTradingBot/internal/domain"
)

// Result holds the trade list, equity curve and summary metrics of one
// backtest run.
type Result struct {
	PairID    string
	Symbol1   string
	Symbol2   string
	StartTime time.Time
	EndTime   time.Time
	Params    Params

	TotalTrades   int
	WinningTrades int
	LosingTrades  int
	WinRate       float64

	TotalPnLPercent float64
	AvgPnLPercent   float64
	MaxWinPercent   float64
	MaxLossPercent  float64
	AvgWin          float64
	AvgLoss         float64
	ProfitFactor    float64 // +Inf when there are no losing trades
	Expectancy      float64

	MaxDrawdownPercent float64
	FinalEquity        float64

	AvgHoldingBars float64
	MaxHoldingBars int
	ExitCounts     map[domain.ExitReason]int

	AvgHalfLife         float64
	CointegratedWindows int

	Trades      []*domain.SpreadTrade
	EquityCurve []float64
}

type resultInputs struct {
	PairID       string
	Symbol1      string
	Symbol2      string
	StartTime    time.Time
	EndTime      time.Time
	Params       Params
	Trades       []*domain.SpreadTrade
	EquityCurve  []float64
	FinalEquity  float64
	MaxDrawdown  float64
	HalfLives    []float64
	CointWindows int
}

// buildResult aggregates per-trade records into summary metrics.
func buildResult(in resultInputs) *Result {
	r := &Result{
		PairID:              in.PairID,
		Symbol1:             in.Symbol1,
		Symbol2:             in.Symbol2,
		StartTime:           in.StartTime,
		EndTime:             in.EndTime,
		Params:              in.Params,
		MaxDrawdownPercent:  in.MaxDrawdown * 100,
		FinalEquity:         in.FinalEquity,
		CointegratedWindows: in.CointWindows,
		ExitCounts:          make(map[domain.ExitReason]int),
		Trades:              in.Trades,
		EquityCurve:         in.EquityCurve,
	}

	if len(in.HalfLives) > 0 {
		var sum float64
		for _, hl := range in.HalfLives {
			sum += hl
		}
		r.AvgHalfLife = sum / float64(len(in.HalfLives))
	}

	if len(in.Trades) == 0 {
		return r
	}

	r.TotalTrades = len(in.Trades)

	var (
		grossProfit, grossLoss float64
		sumPnL                 float64
		sumHolding             int
	)
	r.MaxWinPercent = math.Inf(-1)
	r.MaxLossPercent = math.Inf(1)

	for _, t := range in.Trades {
		pnl := t.PnLPercent * 100
		sumPnL += pnl
		if t.IsWinner() {
			r.WinningTrades++
			grossProfit += pnl
		} else {
			r.LosingTrades++
			grossLoss += -pnl
		}
		if pnl > r.MaxWinPercent {
			r.MaxWinPercent = pnl
		}
		if pnl < r.MaxLossPercent {
			r.MaxLossPercent = pnl
		}
		sumHolding += t.HoldingBars
		if t.HoldingBars > r.MaxHoldingBars {
			r.MaxHoldingBars = t.HoldingBars
		}
		r.ExitCounts[t.ExitReason]++
	}

	r.WinRate = float64(r.WinningTrades) / float64(r.TotalTrades)
	r.TotalPnLPercent = sumPnL
	r.AvgPnLPercent = sumPnL / float64(r.TotalTrades)
	r.AvgHoldingBars = float64(sumHolding) / float64(r.TotalTrades)

	if r.WinningTrades > 0 {
		r.AvgWin = grossProfit / float64(r.WinningTrades)
	}
	if r.LosingTrades > 0 {
		r.AvgLoss = -grossLoss / float64(r.LosingTrades)
	}

	if grossLoss > 0 {
		r.ProfitFactor = grossProfit / grossLoss
	} else {
		r.ProfitFactor = math.Inf(1)
	}

	r.Expectancy = r.WinRate*r.AvgWin + (1-r.WinRate)*r.AvgLoss

	return r
}

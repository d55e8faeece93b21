package domain

import "time"

// SpreadTrade is a simulated backtest trade. EntrySpreadStd is captured at
// entry so later recalibrations cannot change the P&L denominator of a
// trade that is already on the books.
type SpreadTrade struct {
	PairID         string
	Symbol1        string
	Symbol2        string
	Direction      PositionStatus // StatusLongSpread or StatusShortSpread
	EntryTime      time.Time
	ExitTime       time.Time // Zero value while the trade is open
	EntryZScore    float64
	ExitZScore     float64
	EntrySpread    float64
	ExitSpread     float64
	HedgeRatio     float64
	EntrySpreadStd float64
	PnLSpreadUnits float64
	PnLPercent     float64
	ExitReason     ExitReason
	HoldingBars    int
}

// IsOpen reports whether the trade has not been closed yet.
func (t *SpreadTrade) IsOpen() bool {
	return t.ExitTime.IsZero()
}

// IsWinner reports whether the closed trade made money.
func (t *SpreadTrade) IsWinner() bool {
	return !t.IsOpen() && t.PnLPercent > 0
}

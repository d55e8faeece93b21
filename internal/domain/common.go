package domain

import "fmt"

// PositionStatus represents the state of a pair position.
type PositionStatus string

const (
	StatusFlat        PositionStatus = "flat"
	StatusLongSpread  PositionStatus = "long_spread"  // Long symbol1, short symbol2
	StatusShortSpread PositionStatus = "short_spread" // Short symbol1, long symbol2
)

// ExitReason indicates why a backtest trade was closed.
type ExitReason string

const (
	ExitTakeProfit ExitReason = "tp"
	ExitStopLoss   ExitReason = "sl"
	ExitTime       ExitReason = "time"
	ExitBreakdown  ExitReason = "breakdown"
	ExitEndOfData  ExitReason = "end"
)

// TestMethod identifies the cointegration test that produced a result.
type TestMethod string

const (
	MethodEngleGranger TestMethod = "engle_granger"
	MethodJohansen     TestMethod = "johansen"
)

// PairID builds the canonical identifier for a symbol pair.
func PairID(symbol1, symbol2 string) string {
	return fmt.Sprintf("%s_%s", symbol1, symbol2)
}

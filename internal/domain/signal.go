package domain

import "time"

// SignalType is the closed set of actions the state machine can emit.
type SignalType string

const (
	NoSignal        SignalType = "no_signal"
	OpenLongSpread  SignalType = "open_long_spread"
	OpenShortSpread SignalType = "open_short_spread"
	CloseLongSpread SignalType = "close_long_spread"
	CloseShortSpr   SignalType = "close_short_spread"
	Warning         SignalType = "warning"
	StopLoss        SignalType = "stop_loss"
	TimeExit        SignalType = "time_exit"
	BreakdownExit   SignalType = "breakdown_exit"
	ScaleInLong     SignalType = "scale_in_long"
	ScaleInShort    SignalType = "scale_in_short"
)

// IsExit reports whether the signal closes a position.
func (s SignalType) IsExit() bool {
	switch s {
	case CloseLongSpread, CloseShortSpr, StopLoss, TimeExit, BreakdownExit:
		return true
	}
	return false
}

// IsEntry reports whether the signal opens a position.
func (s SignalType) IsEntry() bool {
	return s == OpenLongSpread || s == OpenShortSpread
}

// Signal is an immutable trading decision emitted by the state machine and
// consumed by external persistence/alerting. The core never re-reads one.
type Signal struct {
	ID         int64 // Assigned by the repository on save, 0 before
	Type       SignalType
	PairID     string
	Symbol1    string
	Symbol2    string
	ZScore     float64
	HedgeRatio float64
	Timestamp  time.Time
	Price1     float64 // 0 when current prices were not supplied
	Price2     float64
	Reason     string
	ScaleLevel int
	HalfLife   float64
}

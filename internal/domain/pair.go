package domain

import "time"

// Pair is a monitored symbol pair together with its last stored
// cointegration estimate. Persisted by the repository.
type Pair struct {
	PairID     string
	Symbol1    string
	Symbol2    string
	HedgeRatio float64
	HalfLife   float64
	PValue     float64
	SpreadMean float64
	SpreadStd  float64
	TestMethod TestMethod
	IsActive   bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// PairState is the mutable per-pair state owned by the signal state
// machine. Created lazily on first observation, mutated exclusively by
// signal emission, and reset to flat rather than deleted on close.
type PairState struct {
	PairID          string
	Symbol1         string
	Symbol2         string
	Status          PositionStatus
	EntryZScore     float64
	EntryHedgeRatio float64
	EntryTime       time.Time
	EntryPrice1     float64
	EntryPrice2     float64
	ScaleLevel      int // 0 = no position, increments on each scale-in
	HalfLife        float64
	BreakdownCount  int
	LastSignalTime  time.Time
}

// IsFlat reports whether the pair currently holds no position.
func (p *PairState) IsFlat() bool {
	return p.Status == StatusFlat
}

// Reset returns the state to flat after any exit signal.
func (p *PairState) Reset() {
	p.Status = StatusFlat
	p.ScaleLevel = 0
	p.BreakdownCount = 0
	p.EntryZScore = 0
	p.EntryHedgeRatio = 0
	p.EntryTime = time.Time{}
	p.EntryPrice1 = 0
	p.EntryPrice2 = 0
}

package risk

import (
	"fmt"
	"time"

	"pairsTradingBot/internal/domain"
	"pairsTradingBot/internal/ports"
)

// Config holds parameters for the live risk gate.
type Config struct {
	RiskPerTrade   float64 // Fraction of capital risked per entry
	MaxActivePairs int     // Cap on simultaneously held pairs
	DailyLossLimit float64 // Fraction of capital; entries stop once breached
}

// Manager gates entry signals against portfolio-level limits. It tracks
// realized P&L per day and the number of held pairs; exits always pass.
type Manager struct {
	cfg Config

	activePairs map[string]struct{}
	dailyPnL    float64
	capital     float64
	day         time.Time
	now         func() time.Time
}

// NewManager creates a risk manager for the given capital base.
func NewManager(cfg Config, capital float64) (*Manager, error) {
	if cfg.RiskPerTrade <= 0 || cfg.RiskPerTrade >= 1 {
		return nil, fmt.Errorf("%w: risk per trade must be in (0, 1)", ports.ErrConfiguration)
	}
	if cfg.MaxActivePairs <= 0 {
		return nil, fmt.Errorf("%w: max active pairs must be positive", ports.ErrConfiguration)
	}
	if cfg.DailyLossLimit <= 0 {
		return nil, fmt.Errorf("%w: daily loss limit must be positive", ports.ErrConfiguration)
	}
	if capital <= 0 {
		return nil, fmt.Errorf("%w: capital must be positive", ports.ErrConfiguration)
	}
	return &Manager{
		cfg:         cfg,
		activePairs: make(map[string]struct{}),
		capital:     capital,
		now:         time.Now,
	}, nil
}

// AllowSignal reports whether a signal may be acted on. Exits and
// informational signals always pass; entries are rejected past the
// active-pair cap or the daily loss limit.
func (m *Manager) AllowSignal(sig *domain.Signal) (bool, string) {
	m.rollDay()

	if !sig.Type.IsEntry() {
		return true, ""
	}
	if len(m.activePairs) >= m.cfg.MaxActivePairs {
		return false, fmt.Sprintf("max active pairs reached (%d)", m.cfg.MaxActivePairs)
	}
	if m.dailyPnL <= -m.cfg.DailyLossLimit*m.capital {
		return false, fmt.Sprintf("daily loss limit breached (%.2f)", m.dailyPnL)
	}
	return true, ""
}

// RecordSignal updates held-pair tracking after a signal was acted on.
func (m *Manager) RecordSignal(sig *domain.Signal) {
	switch {
	case sig.Type.IsEntry():
		m.activePairs[sig.PairID] = struct{}{}
	case sig.Type.IsExit():
		delete(m.activePairs, sig.PairID)
	}
}

// RecordPnL books realized P&L against today's tally.
func (m *Manager) RecordPnL(pnl float64) {
	m.rollDay()
	m.dailyPnL += pnl
}

// PositionSize returns the capital to allocate to an entry at the given
// scale level, using the configured per-level weights.
func (m *Manager) PositionSize(scaleLevel int, weights []float64) float64 {
	base := m.capital * m.cfg.RiskPerTrade
	if scaleLevel <= 0 || scaleLevel > len(weights) {
		return base
	}
	return base * weights[scaleLevel-1]
}

// ActivePairCount returns the number of currently held pairs.
func (m *Manager) ActivePairCount() int {
	return len(m.activePairs)
}

func (m *Manager) rollDay() {
	today := m.now().Truncate(24 * time.Hour)
	if !today.Equal(m.day) {
		m.day = today
		m.dailyPnL = 0
	}
}

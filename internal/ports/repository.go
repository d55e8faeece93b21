package ports

import (
	"context"

	"pairsTradingBot/internal/domain"
)

// PairRepository stores and retrieves monitored symbol pairs and their
// latest cointegration estimates.
type PairRepository interface {
	// SavePair inserts or updates a pair by its PairID.
	SavePair(ctx context.Context, pair *domain.Pair) error
	// FindPair retrieves a pair by ID. Returns nil, nil when not found.
	FindPair(ctx context.Context, pairID string) (*domain.Pair, error)
	// FindActivePairs retrieves all pairs currently marked active.
	FindActivePairs(ctx context.Context) ([]*domain.Pair, error)
	// DeactivatePair marks a pair inactive (e.g., after repeated breakdowns).
	DeactivatePair(ctx context.Context, pairID string) error
}

// PairStateRepository persists the mutable per-pair machine state so a
// restarted process can restore it instead of starting flat.
type PairStateRepository interface {
	// SaveState inserts or updates the state for a pair.
	SaveState(ctx context.Context, state *domain.PairState) error
	// FindStates retrieves all persisted pair states.
	FindStates(ctx context.Context) ([]*domain.PairState, error)
}

// SignalRepository stores emitted signals for audit and alerting.
type SignalRepository interface {
	// SaveSignal persists a signal and returns its assigned ID.
	SaveSignal(ctx context.Context, sig *domain.Signal) (int64, error)
	// FindRecentSignals retrieves the most recent signals for a pair, up to a limit.
	FindRecentSignals(ctx context.Context, pairID string, limit int) ([]*domain.Signal, error)
}

// TradeRepository stores closed backtest trades for reporting.
type TradeRepository interface {
	// SaveTrade persists a closed trade.
	SaveTrade(ctx context.Context, trade *domain.SpreadTrade) error
	// FindTradesByPair retrieves trades for a pair ordered by entry time descending.
	FindTradesByPair(ctx context.Context, pairID string, limit int) ([]*domain.SpreadTrade, error)
}

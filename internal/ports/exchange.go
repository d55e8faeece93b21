package ports

import (
	"context"
	"time"

	"pairsTradingBot/internal/domain"
)

// MarketDataClient retrieves historical and current price data. The core
// never talks to an exchange directly; it consumes aligned in-memory
// series produced by this collaborator.
type MarketDataClient interface {
	// GetKlines fetches historical klines for a symbol.
	GetKlines(ctx context.Context, symbol, interval string, startTime, endTime time.Time, limit int) ([]*domain.Kline, error)
	// GetCurrentPrice fetches the latest traded price for a symbol.
	GetCurrentPrice(ctx context.Context, symbol string) (float64, error)
	// ServerTime returns the exchange's notion of now, for clock drift checks.
	ServerTime(ctx context.Context) (time.Time, error)
}

package ports

import (
	"context"
	"time"

	"hedgegraph/internal/domain"
)

// KlineRepository stores klines from completed episodes.
type KlineRepository interface {
	// SaveKlines upserts klines keyed by symbol, interval and open time.
	SaveKlines(ctx context.Context, klines []*domain.Kline) (int, error)
	// FindRange returns stored klines with OpenTime in [from, to), ordered by open time.
	FindRange(ctx context.Context, symbol string, interval domain.Interval, from, to time.Time) ([]*domain.Kline, error)
}

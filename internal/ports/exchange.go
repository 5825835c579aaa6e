package ports

import (
	"context"
	"time"

	"hedgegraph/internal/domain"
)

// KlineFetcher is the page-level fetch capability the loader drives.
// Implementations return at most limit klines with OpenTime >= from, in
// chronological order. An empty result means no more data is available.
type KlineFetcher interface {
	FetchKlines(ctx context.Context, symbol string, interval domain.Interval, from time.Time, limit int) ([]*domain.Kline, error)
}

// SymbolLister lists the symbols a user can select.
type SymbolLister interface {
	ListSymbols(ctx context.Context) ([]string, error)
}

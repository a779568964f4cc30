// Package store persists and retrieves daily bar data. It is the
// price-series provider injected into the backtest engine: bars come
// back ascending by timestamp, ready to replay.
package store

import (
	"context"
	"time"

	"backsim/internal/domain"
)

// BarStore persists and retrieves OHLCV bar data.
type BarStore interface {
	// WriteBars persists a batch of bars to storage.
	WriteBars(ctx context.Context, bars []domain.Bar) error

	// ReadBars returns bars for the given symbol and market within
	// [start, end], ascending by timestamp.
	ReadBars(ctx context.Context, symbol string, market domain.Market, start, end time.Time) ([]domain.Bar, error)

	// ListSymbols returns all distinct symbols available in the given
	// market, sorted.
	ListSymbols(ctx context.Context, market domain.Market) ([]string, error)
}

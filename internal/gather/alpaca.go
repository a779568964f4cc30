package gather

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"backsim/internal/domain"
	"backsim/internal/store"
	"backsim/internal/util"
)

// Compile-time interface check.
var _ Gatherer = (*DailyBarGatherer)(nil)

// fetchAttempts bounds transient-API retries per batch.
const fetchAttempts = 3

// DailyBarGatherer fetches historical daily OHLCV bars for an explicit
// symbol list via the Alpaca market-data API and writes them to a
// BarStore.
type DailyBarGatherer struct {
	client    *marketdata.Client
	store     store.BarStore
	symbols   []string
	batchSize int
	start     time.Time
	log       *slog.Logger
}

// NewDailyBarGatherer creates a gatherer for the given symbols. Bars
// are fetched from startDate (YYYY-MM-DD) up to yesterday.
func NewDailyBarGatherer(apiKey, apiSecret, dataURL string, s store.BarStore, symbols []string, batchSize int, startDate string) (*DailyBarGatherer, error) {
	start, err := time.Parse("2006-01-02", startDate)
	if err != nil {
		return nil, fmt.Errorf("parsing start date %q: %w", startDate, err)
	}
	if batchSize <= 0 {
		batchSize = 200
	}

	opts := marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if dataURL != "" {
		opts.BaseURL = dataURL
	}

	return &DailyBarGatherer{
		client:    marketdata.NewClient(opts),
		store:     s,
		symbols:   symbols,
		batchSize: batchSize,
		start:     start,
		log:       slog.Default().With("gatherer", "daily-bars"),
	}, nil
}

// Name returns the gatherer identifier.
func (g *DailyBarGatherer) Name() string { return "daily-bars" }

// Run fetches daily bars for the configured symbols in batches and
// writes each batch to the store. Batches that keep failing after
// retries are skipped with an error log; the pass continues.
func (g *DailyBarGatherer) Run(ctx context.Context) error {
	end := time.Now().AddDate(0, 0, -1)
	runStart := time.Now()
	var written int

	for i := 0; i < len(g.symbols); i += g.batchSize {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		batch := g.symbols[i:min(i+g.batchSize, len(g.symbols))]

		var bars []domain.Bar
		err := util.Retry(ctx, fetchAttempts, time.Second, func() error {
			var ferr error
			bars, ferr = g.fetchMultiBars(batch, end)
			return ferr
		})
		if err != nil {
			g.log.Error("batch fetch failed", "symbols", batch, "err", err)
			continue
		}
		if len(bars) == 0 {
			continue
		}

		if err := g.store.WriteBars(ctx, bars); err != nil {
			return fmt.Errorf("writing bars: %w", err)
		}
		written += len(bars)
		g.log.Info("batch done", "symbols", len(batch), "bars", len(bars))
	}

	g.log.Info("backfill complete",
		"symbols", len(g.symbols),
		"bars", written,
		"elapsed", time.Since(runStart).Round(time.Second),
	)
	return nil
}

// fetchMultiBars fetches daily bars for multiple symbols in a single
// API call.
func (g *DailyBarGatherer) fetchMultiBars(symbols []string, end time.Time) ([]domain.Bar, error) {
	multiBars, err := g.client.GetMultiBars(symbols, marketdata.GetBarsRequest{
		TimeFrame: marketdata.OneDay,
		Start:     g.start,
		End:       end,
	})
	if err != nil {
		return nil, fmt.Errorf("GetMultiBars: %w", err)
	}

	var bars []domain.Bar
	for symbol, alpacaBars := range multiBars {
		for _, ab := range alpacaBars {
			bars = append(bars, domain.Bar{
				Symbol:     strings.ToUpper(symbol),
				Timestamp:  ab.Timestamp,
				Open:       ab.Open,
				High:       ab.High,
				Low:        ab.Low,
				Close:      ab.Close,
				Volume:     int64(ab.Volume),
				TradeCount: int64(ab.TradeCount),
				VWAP:       ab.VWAP,
			})
		}
	}
	return bars, nil
}

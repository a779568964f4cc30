package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.

	"backsim/internal/domain"
)

// Compile-time interface check.
var _ BarStore = (*SQLiteStore)(nil)

const barsSchema = `
CREATE TABLE IF NOT EXISTS bars (
	symbol      TEXT    NOT NULL,
	market      TEXT    NOT NULL,
	ts          INTEGER NOT NULL,
	open        REAL    NOT NULL,
	high        REAL    NOT NULL,
	low         REAL    NOT NULL,
	close       REAL    NOT NULL,
	volume      INTEGER NOT NULL,
	trade_count INTEGER NOT NULL DEFAULT 0,
	vwap        REAL    NOT NULL DEFAULT 0,
	adj_close   REAL    NOT NULL DEFAULT 0,
	PRIMARY KEY (symbol, market, ts)
);
CREATE INDEX IF NOT EXISTS idx_bars_market ON bars (market, symbol);
`

// SQLiteStore implements BarStore backed by a SQLite database. All bar
// timestamps are stored as Unix milliseconds.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and
// ensures the bars table exists.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	if _, err := db.Exec(barsSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating bars table: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// WriteBars upserts a batch of bars in a single transaction. Bars carry
// no market of their own, so writes default to the US market; use
// WriteBarsForMarket for others.
func (s *SQLiteStore) WriteBars(ctx context.Context, bars []domain.Bar) error {
	return s.WriteBarsForMarket(ctx, bars, domain.MarketUS)
}

// WriteBarsForMarket upserts bars under the given market.
func (s *SQLiteStore) WriteBarsForMarket(ctx context.Context, bars []domain.Bar, market domain.Market) error {
	if len(bars) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO bars (symbol, market, ts, open, high, low, close, volume, trade_count, vwap, adj_close)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (symbol, market, ts) DO UPDATE SET
			open = excluded.open, high = excluded.high, low = excluded.low,
			close = excluded.close, volume = excluded.volume,
			trade_count = excluded.trade_count, vwap = excluded.vwap,
			adj_close = excluded.adj_close`)
	if err != nil {
		return fmt.Errorf("preparing upsert: %w", err)
	}
	defer stmt.Close()

	for _, b := range bars {
		if _, err := stmt.ExecContext(ctx,
			b.Symbol, string(market), b.Timestamp.UnixMilli(),
			b.Open, b.High, b.Low, b.Close,
			b.Volume, b.TradeCount, b.VWAP, b.AdjClose,
		); err != nil {
			return fmt.Errorf("upserting bar %s@%s: %w", b.Symbol, b.Timestamp.Format("2006-01-02"), err)
		}
	}
	return tx.Commit()
}

// ReadBars returns bars for the symbol and time range, ascending by
// timestamp.
func (s *SQLiteStore) ReadBars(ctx context.Context, symbol string, market domain.Market, start, end time.Time) ([]domain.Bar, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, ts, open, high, low, close, volume, trade_count, vwap, adj_close
		FROM bars
		WHERE symbol = ? AND market = ? AND ts BETWEEN ? AND ?
		ORDER BY ts ASC`,
		symbol, string(market), start.UnixMilli(), end.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("querying bars: %w", err)
	}
	defer rows.Close()

	var bars []domain.Bar
	for rows.Next() {
		var b domain.Bar
		var ts int64
		if err := rows.Scan(&b.Symbol, &ts, &b.Open, &b.High, &b.Low, &b.Close,
			&b.Volume, &b.TradeCount, &b.VWAP, &b.AdjClose); err != nil {
			return nil, fmt.Errorf("scanning bar: %w", err)
		}
		b.Timestamp = time.UnixMilli(ts).UTC()
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// ListSymbols returns the distinct symbols stored for the market,
// sorted.
func (s *SQLiteStore) ListSymbols(ctx context.Context, market domain.Market) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT symbol FROM bars WHERE market = ? ORDER BY symbol ASC`, string(market))
	if err != nil {
		return nil, fmt.Errorf("listing symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, err
		}
		symbols = append(symbols, sym)
	}
	return symbols, rows.Err()
}

package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"backsim/internal/domain"
)

func testBars(symbol string, start time.Time, closes ...float64) []domain.Bar {
	bars := make([]domain.Bar, len(closes))
	for i, c := range closes {
		bars[i] = domain.Bar{
			Symbol:    symbol,
			Timestamp: start.AddDate(0, 0, i),
			Open:      c - 1,
			High:      c + 1,
			Low:       c - 2,
			Close:     c,
			Volume:    int64(1000 + i),
			VWAP:      c - 0.5,
		}
	}
	return bars
}

var storeDay = time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)

func checkRoundTrip(t *testing.T, s BarStore) {
	t.Helper()
	ctx := context.Background()

	written := testBars("AAPL", storeDay, 100, 101, 102, 103, 104)
	if err := s.WriteBars(ctx, written); err != nil {
		t.Fatal(err)
	}

	got, err := s.ReadBars(ctx, "AAPL", domain.MarketUS, storeDay, storeDay.AddDate(0, 0, 10))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(written) {
		t.Fatalf("got %d bars, want %d", len(got), len(written))
	}
	for i, b := range got {
		w := written[i]
		if !b.Timestamp.Equal(w.Timestamp) || b.Close != w.Close || b.Volume != w.Volume || b.VWAP != w.VWAP {
			t.Errorf("bar %d = %+v, want %+v", i, b, w)
		}
	}

	// Range filter: middle three bars only.
	got, err = s.ReadBars(ctx, "AAPL", domain.MarketUS, storeDay.AddDate(0, 0, 1), storeDay.AddDate(0, 0, 3))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("ranged read got %d bars, want 3", len(got))
	}
	if got[0].Close != 101 || got[2].Close != 103 {
		t.Errorf("ranged read closes = %v..%v, want 101..103", got[0].Close, got[2].Close)
	}
}

func checkUpsert(t *testing.T, s BarStore) {
	t.Helper()
	ctx := context.Background()

	if err := s.WriteBars(ctx, testBars("MSFT", storeDay, 300, 301)); err != nil {
		t.Fatal(err)
	}
	// Rewrite the second day with a corrected close, add a third.
	revised := testBars("MSFT", storeDay.AddDate(0, 0, 1), 350, 351)
	if err := s.WriteBars(ctx, revised); err != nil {
		t.Fatal(err)
	}

	got, err := s.ReadBars(ctx, "MSFT", domain.MarketUS, storeDay, storeDay.AddDate(0, 0, 5))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d bars after overlapping writes, want 3", len(got))
	}
	wantCloses := []float64{300, 350, 351}
	for i, want := range wantCloses {
		if got[i].Close != want {
			t.Errorf("bar %d close = %v, want %v", i, got[i].Close, want)
		}
	}
}

func checkListSymbols(t *testing.T, s BarStore) {
	t.Helper()
	ctx := context.Background()

	for _, sym := range []string{"NVDA", "AMD", "INTC"} {
		if err := s.WriteBars(ctx, testBars(sym, storeDay, 50)); err != nil {
			t.Fatal(err)
		}
	}

	symbols, err := s.ListSymbols(ctx, domain.MarketUS)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"AMD", "INTC", "NVDA"}
	if len(symbols) != len(want) {
		t.Fatalf("symbols = %v, want %v", symbols, want)
	}
	for i := range want {
		if symbols[i] != want[i] {
			t.Fatalf("symbols = %v, want %v", symbols, want)
		}
	}
}

func TestParquetStore(t *testing.T) {
	s := NewParquetStore(t.TempDir())
	t.Run("roundTrip", func(t *testing.T) { checkRoundTrip(t, s) })
	t.Run("upsert", func(t *testing.T) { checkUpsert(t, s) })
	t.Run("listSymbols", func(t *testing.T) {
		checkListSymbols(t, NewParquetStore(t.TempDir()))
	})
}

func TestParquetStoreYearBoundary(t *testing.T) {
	s := NewParquetStore(t.TempDir())
	ctx := context.Background()

	dec30 := time.Date(2023, 12, 30, 0, 0, 0, 0, time.UTC)
	bars := testBars("TSLA", dec30, 200, 201, 202, 203) // spans 2023 and 2024
	if err := s.WriteBars(ctx, bars); err != nil {
		t.Fatal(err)
	}

	got, err := s.ReadBars(ctx, "TSLA", domain.MarketUS, dec30, dec30.AddDate(0, 0, 3))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 4 {
		t.Fatalf("got %d bars across year files, want 4", len(got))
	}
	for i := 1; i < len(got); i++ {
		if !got[i].Timestamp.After(got[i-1].Timestamp) {
			t.Fatal("bars not ascending across year boundary")
		}
	}
}

func TestParquetStoreMissingSymbol(t *testing.T) {
	s := NewParquetStore(t.TempDir())
	got, err := s.ReadBars(context.Background(), "NONE", domain.MarketUS, storeDay, storeDay.AddDate(0, 0, 1))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("got %d bars for unknown symbol, want 0", len(got))
	}
}

func TestSQLiteStore(t *testing.T) {
	newStore := func(t *testing.T) *SQLiteStore {
		t.Helper()
		s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "bars.db"))
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { s.Close() })
		return s
	}

	t.Run("roundTrip", func(t *testing.T) { checkRoundTrip(t, newStore(t)) })
	t.Run("upsert", func(t *testing.T) { checkUpsert(t, newStore(t)) })
	t.Run("listSymbols", func(t *testing.T) { checkListSymbols(t, newStore(t)) })
}

func TestSQLiteStoreMarketsIsolated(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "bars.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	ctx := context.Background()

	if err := s.WriteBarsForMarket(ctx, testBars("600519", storeDay, 1700), domain.MarketCN); err != nil {
		t.Fatal(err)
	}
	if err := s.WriteBars(ctx, testBars("AAPL", storeDay, 190)); err != nil {
		t.Fatal(err)
	}

	cn, err := s.ListSymbols(ctx, domain.MarketCN)
	if err != nil {
		t.Fatal(err)
	}
	if len(cn) != 1 || cn[0] != "600519" {
		t.Errorf("cn symbols = %v, want [600519]", cn)
	}

	got, err := s.ReadBars(ctx, "AAPL", domain.MarketCN, storeDay, storeDay.AddDate(0, 0, 1))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("us symbol leaked into cn market: %d bars", len(got))
	}
}

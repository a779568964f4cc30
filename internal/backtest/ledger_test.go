package backtest

import (
	"math"
	"testing"
	"time"
)

func TestLedgerBuySellRoundTrip(t *testing.T) {
	const initial = 100_000.0
	l := NewLedger("TEST", initial)

	// Buy then immediately sell the same quantity at the same price:
	// shares restored, cash down by exactly the two commissions.
	l.ApplyBuy(50, 200, 10)
	l.ApplySell(50, 200, 10)

	if l.Shares() != 0 {
		t.Errorf("shares = %d, want 0", l.Shares())
	}
	want := initial - 2*10
	if math.Abs(l.Cash()-want) > 1e-9 {
		t.Errorf("cash = %v, want %v", l.Cash(), want)
	}
}

func TestLedgerAverageCost(t *testing.T) {
	l := NewLedger("TEST", 100_000)

	l.ApplyBuy(100, 10, 0)
	l.ApplyBuy(100, 20, 0)
	if got := l.AvgPrice(); math.Abs(got-15) > 1e-9 {
		t.Errorf("avg price = %v, want 15", got)
	}

	// Selling does not change the average cost of what remains.
	l.ApplySell(150, 18, 0)
	if got := l.AvgPrice(); math.Abs(got-15) > 1e-9 {
		t.Errorf("avg price after partial sell = %v, want 15", got)
	}
	if l.Shares() != 50 {
		t.Errorf("shares = %d, want 50", l.Shares())
	}

	// Closing out removes the position entirely.
	l.ApplySell(50, 18, 0)
	if l.Shares() != 0 || l.AvgPrice() != 0 {
		t.Errorf("after close: shares=%d avg=%v, want 0/0", l.Shares(), l.AvgPrice())
	}
}

func TestLedgerSnapshot(t *testing.T) {
	l := NewLedger("TEST", 10_000)
	ts := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)

	snap := l.Snapshot(ts, 100)
	if snap.Position != nil {
		t.Error("flat ledger snapshot has a position")
	}
	if snap.TotalValue != 10_000 || snap.TotalReturnPct != 0 {
		t.Errorf("flat snapshot = value %v, returnPct %v", snap.TotalValue, snap.TotalReturnPct)
	}

	l.ApplyBuy(40, 100, 0) // cash 6000, 40 shares @ 100
	snap = l.Snapshot(ts, 110)

	if snap.Position == nil {
		t.Fatal("snapshot missing position")
	}
	if snap.Position.MarketValue != 4400 {
		t.Errorf("market value = %v, want 4400", snap.Position.MarketValue)
	}
	if math.Abs(snap.Position.UnrealizedPnL-400) > 1e-9 {
		t.Errorf("unrealized pnl = %v, want 400", snap.Position.UnrealizedPnL)
	}
	if snap.TotalValue != 10_400 {
		t.Errorf("total value = %v, want 10400", snap.TotalValue)
	}
	if math.Abs(snap.TotalReturnPct-4) > 1e-9 {
		t.Errorf("return pct = %v, want 4", snap.TotalReturnPct)
	}
}

package backtest

import (
	"math"
	"testing"
	"time"

	"backsim/internal/domain"
)

func snapSeries(start time.Time, values ...float64) []domain.PortfolioSnapshot {
	snaps := make([]domain.PortfolioSnapshot, len(values))
	for i, v := range values {
		snaps[i] = domain.PortfolioSnapshot{
			Timestamp:  start.AddDate(0, 0, i),
			TotalValue: v,
		}
	}
	return snaps
}

var statsStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestComputeStatsReturns(t *testing.T) {
	snaps := snapSeries(statsStart, 100_000, 105_000, 110_000)

	stats := ComputeStats(100_000, snaps, nil, 365)
	if stats.TotalReturn != 10_000 {
		t.Errorf("total return = %v, want 10000", stats.TotalReturn)
	}
	if math.Abs(stats.TotalReturnPct-10) > 1e-9 {
		t.Errorf("total return pct = %v, want 10", stats.TotalReturnPct)
	}
	// One year: annualized equals the plain return.
	if math.Abs(stats.AnnualizedReturn-0.10) > 1e-9 {
		t.Errorf("annualized = %v, want 0.10", stats.AnnualizedReturn)
	}
}

func TestComputeStatsNoSnapshots(t *testing.T) {
	stats := ComputeStats(100_000, nil, nil, 10)
	if stats.TotalReturn != 0 || stats.TotalReturnPct != 0 {
		t.Errorf("empty run returns = %v/%v, want 0/0", stats.TotalReturn, stats.TotalReturnPct)
	}
	if stats.SharpeRatio != 0 || stats.Volatility != 0 {
		t.Errorf("empty run sharpe/vol = %v/%v, want 0/0", stats.SharpeRatio, stats.Volatility)
	}
	if stats.AvgTradeReturn != 0 {
		t.Errorf("avg trade return = %v, want 0", stats.AvgTradeReturn)
	}
}

func TestMaxDrawdownMonotonic(t *testing.T) {
	snaps := snapSeries(statsStart, 100, 100, 110, 120, 120, 150)
	dd, dur := drawdown(100, snaps)
	if dd != 0 {
		t.Errorf("drawdown = %v, want 0 for non-decreasing series", dd)
	}
	if dur != 0 {
		t.Errorf("drawdown duration = %d, want 0", dur)
	}
}

func TestMaxDrawdownHalveAndRecover(t *testing.T) {
	snaps := snapSeries(statsStart, 1000, 500, 1000)
	dd, dur := drawdown(1000, snaps)
	if math.Abs(dd-0.5) > 1e-9 {
		t.Errorf("drawdown = %v, want 0.5", dd)
	}
	// One day spent below the peak.
	if dur != 1 {
		t.Errorf("drawdown duration = %d, want 1", dur)
	}
}

func TestSharpeZeroVolatility(t *testing.T) {
	// Flat equity: volatility 0, sharpe defined as 0 rather than NaN.
	snaps := snapSeries(statsStart, 100_000, 100_000, 100_000, 100_000)
	stats := ComputeStats(100_000, snaps, nil, 100)

	if stats.Volatility != 0 {
		t.Errorf("volatility = %v, want 0", stats.Volatility)
	}
	if stats.SharpeRatio != 0 {
		t.Errorf("sharpe = %v, want 0", stats.SharpeRatio)
	}
	if math.IsNaN(stats.SharpeRatio) || math.IsInf(stats.SharpeRatio, 0) {
		t.Error("sharpe is not finite")
	}
}

func TestVolatilityPositiveForMovingSeries(t *testing.T) {
	snaps := snapSeries(statsStart, 100_000, 102_000, 99_000, 103_000, 101_000)
	stats := ComputeStats(100_000, snaps, nil, 30)
	if stats.Volatility <= 0 {
		t.Errorf("volatility = %v, want > 0", stats.Volatility)
	}
	if math.IsNaN(stats.SharpeRatio) {
		t.Error("sharpe is NaN")
	}
}

func trade(side domain.TradeSide, qty int64, price float64, day int) domain.Trade {
	return domain.Trade{
		ID:          domain.NewTradeID(),
		Symbol:      "TEST",
		Timestamp:   statsStart.AddDate(0, 0, day),
		Side:        side,
		Quantity:    qty,
		Price:       price,
		GrossAmount: float64(qty) * price,
	}
}

func TestTradeOutcomes(t *testing.T) {
	trades := []domain.Trade{
		trade(domain.TradeSideBuy, 10, 100, 0),  // avg buy 100
		trade(domain.TradeSideSell, 5, 120, 1),  // win, +100
		trade(domain.TradeSideBuy, 10, 110, 2),  // avg buy now 105
		trade(domain.TradeSideSell, 5, 100, 3),  // loss, -25
		trade(domain.TradeSideSell, 10, 130, 4), // win, +250
	}

	winRate, pf := tradeOutcomes(trades)
	if math.Abs(winRate-2.0/3.0) > 1e-9 {
		t.Errorf("win rate = %v, want 2/3", winRate)
	}
	if math.Abs(pf-350.0/25.0) > 1e-9 {
		t.Errorf("profit factor = %v, want 14", pf)
	}
}

func TestTradeOutcomesNoSells(t *testing.T) {
	trades := []domain.Trade{trade(domain.TradeSideBuy, 10, 100, 0)}
	winRate, pf := tradeOutcomes(trades)
	if winRate != 0 || pf != 0 {
		t.Errorf("buy-only outcomes = %v/%v, want 0/0", winRate, pf)
	}
}

func TestAvgTradeReturn(t *testing.T) {
	snaps := snapSeries(statsStart, 100_000, 101_000)
	trades := []domain.Trade{
		trade(domain.TradeSideBuy, 10, 100, 0),
		trade(domain.TradeSideSell, 10, 200, 1),
	}
	stats := ComputeStats(100_000, snaps, trades, 10)
	if stats.TotalTrades != 2 {
		t.Errorf("total trades = %d, want 2", stats.TotalTrades)
	}
	if math.Abs(stats.AvgTradeReturn-500) > 1e-9 {
		t.Errorf("avg trade return = %v, want 500", stats.AvgTradeReturn)
	}
}

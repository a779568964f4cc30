package backtest

import (
	"math"
	"time"

	"backsim/internal/domain"
)

// tradingDaysPerYear annualizes daily return volatility.
const tradingDaysPerYear = 252

// ComputeStats reduces a run's snapshot history and trade list into
// summary performance and risk metrics. days is the calendar span of
// the run. All outputs are finite: a zero-volatility run has a Sharpe
// ratio of 0, and the profit factor of a run with no realized losses is
// its gross gain.
func ComputeStats(initialCash float64, snaps []domain.PortfolioSnapshot, trades []domain.Trade, days int) domain.Stats {
	stats := domain.Stats{TotalTrades: len(trades)}

	final := initialCash
	if len(snaps) > 0 {
		final = snaps[len(snaps)-1].TotalValue
	}
	stats.TotalReturn = final - initialCash
	if initialCash > 0 {
		stats.TotalReturnPct = stats.TotalReturn / initialCash * 100
	}
	if days > 0 && initialCash > 0 && final > 0 {
		stats.AnnualizedReturn = math.Pow(final/initialCash, 365/float64(days)) - 1
	}

	stats.Volatility = annualizedVolatility(snaps)
	if stats.Volatility > 0 {
		stats.SharpeRatio = stats.AnnualizedReturn / stats.Volatility
	}

	stats.MaxDrawdown, stats.MaxDrawdownDurationDays = drawdown(initialCash, snaps)
	stats.WinRate, stats.ProfitFactor = tradeOutcomes(trades)

	if len(trades) > 0 {
		stats.AvgTradeReturn = stats.TotalReturn / float64(len(trades))
	}
	return stats
}

// annualizedVolatility is the sample standard deviation of consecutive
// snapshot-to-snapshot returns, scaled by sqrt(252).
func annualizedVolatility(snaps []domain.PortfolioSnapshot) float64 {
	var returns []float64
	for i := 1; i < len(snaps); i++ {
		prev := snaps[i-1].TotalValue
		if prev == 0 {
			continue
		}
		returns = append(returns, (snaps[i].TotalValue-prev)/prev)
	}
	if len(returns) < 2 {
		return 0
	}

	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	var sq float64
	for _, r := range returns {
		d := r - mean
		sq += d * d
	}
	stdev := math.Sqrt(sq / float64(len(returns)-1))
	return stdev * math.Sqrt(tradingDaysPerYear)
}

// drawdown returns the maximum fractional decline from a running peak
// and the longest stretch, in days, spent below a prior peak. The peak
// is seeded with initial cash so losses before the first snapshot-high
// still count.
func drawdown(initialCash float64, snaps []domain.PortfolioSnapshot) (float64, int) {
	peak := initialCash
	var peakTime time.Time
	if len(snaps) > 0 {
		peakTime = snaps[0].Timestamp
	}
	var maxDD float64
	var maxDur int

	for _, s := range snaps {
		if s.TotalValue >= peak {
			peak = s.TotalValue
			peakTime = s.Timestamp
			continue
		}
		if peak > 0 {
			if dd := (peak - s.TotalValue) / peak; dd > maxDD {
				maxDD = dd
			}
		}
		if dur := int(s.Timestamp.Sub(peakTime).Hours() / 24); dur > maxDur {
			maxDur = dur
		}
	}
	return maxDD, maxDur
}

// tradeOutcomes computes the win rate and profit factor over sell
// trades. The cost basis of a sell is the quantity-weighted average
// price of all buys up to that point: a sell above it is a win, and its
// realized gain or loss feeds the profit factor.
func tradeOutcomes(trades []domain.Trade) (winRate, profitFactor float64) {
	var buyQty int64
	var buyCost float64
	var sells, wins int
	var gains, losses float64

	for _, t := range trades {
		switch t.Side {
		case domain.TradeSideBuy:
			buyQty += t.Quantity
			buyCost += float64(t.Quantity) * t.Price
		case domain.TradeSideSell:
			sells++
			if buyQty == 0 {
				continue
			}
			avgBuy := buyCost / float64(buyQty)
			realized := (t.Price - avgBuy) * float64(t.Quantity)
			if t.Price > avgBuy {
				wins++
			}
			if realized >= 0 {
				gains += realized
			} else {
				losses += -realized
			}
		}
	}

	if sells > 0 {
		winRate = float64(wins) / float64(sells)
	}
	switch {
	case losses > 0:
		profitFactor = gains / losses
	case gains > 0:
		profitFactor = gains
	}
	return winRate, profitFactor
}

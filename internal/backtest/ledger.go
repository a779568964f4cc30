// Package backtest contains the simulation core: the portfolio ledger,
// the bar-by-bar engine that drives a rule strategy over a price
// series, and the statistics reducer over the resulting history.
package backtest

import (
	"time"

	"backsim/internal/domain"
	"backsim/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Account = (*Ledger)(nil)

// position is the single held lot: share count and size-weighted
// average cost.
type position struct {
	qty      int64
	avgPrice float64
}

// Ledger owns the cash balance and the single position of one backtest
// run. It trusts its callers: all affordability checks happen in the
// action executor before ApplyBuy/ApplySell are called. A Ledger is
// created fresh per run and must never be shared across runs.
type Ledger struct {
	symbol      string
	initialCash float64
	cash        float64
	pos         *position
}

// NewLedger creates a ledger holding initialCash and no position.
func NewLedger(symbol string, initialCash float64) *Ledger {
	return &Ledger{
		symbol:      symbol,
		initialCash: initialCash,
		cash:        initialCash,
	}
}

// Cash returns the current cash balance.
func (l *Ledger) Cash() float64 { return l.cash }

// Shares returns the currently held share count, 0 when flat.
func (l *Ledger) Shares() int64 {
	if l.pos == nil {
		return 0
	}
	return l.pos.qty
}

// AvgPrice returns the size-weighted average cost of the position,
// 0 when flat.
func (l *Ledger) AvgPrice() float64 {
	if l.pos == nil {
		return 0
	}
	return l.pos.avgPrice
}

// ApplyBuy deducts the cost plus commission from cash and folds the new
// shares into the position's size-weighted average cost.
func (l *Ledger) ApplyBuy(qty int64, price, commission float64) {
	l.cash -= float64(qty)*price + commission
	if l.pos == nil {
		l.pos = &position{qty: qty, avgPrice: price}
		return
	}
	total := float64(l.pos.qty)*l.pos.avgPrice + float64(qty)*price
	l.pos.qty += qty
	l.pos.avgPrice = total / float64(l.pos.qty)
}

// ApplySell credits the proceeds net of commission to cash and reduces
// the position, removing it entirely at zero quantity.
func (l *Ledger) ApplySell(qty int64, price, commission float64) {
	l.cash += float64(qty)*price - commission
	l.pos.qty -= qty
	if l.pos.qty == 0 {
		l.pos = nil
	}
}

// Snapshot returns the point-in-time portfolio state marked against
// currentPrice.
func (l *Ledger) Snapshot(ts time.Time, currentPrice float64) domain.PortfolioSnapshot {
	snap := domain.PortfolioSnapshot{
		Timestamp: ts,
		Cash:      l.cash,
	}
	total := l.cash
	if l.pos != nil {
		mv := float64(l.pos.qty) * currentPrice
		snap.Position = &domain.PositionView{
			Quantity:      l.pos.qty,
			AvgPrice:      l.pos.avgPrice,
			MarketValue:   mv,
			UnrealizedPnL: (currentPrice - l.pos.avgPrice) * float64(l.pos.qty),
		}
		total += mv
	}
	snap.TotalValue = total
	snap.TotalReturn = total - l.initialCash
	if l.initialCash > 0 {
		snap.TotalReturnPct = snap.TotalReturn / l.initialCash * 100
	}
	return snap
}

// Package domain defines the core data types shared across the backsim
// platform: price bars, simulated trades, portfolio snapshots, and
// backtest statistics.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Market identifies which exchange universe a symbol belongs to.
type Market string

// Supported markets.
const (
	MarketUS Market = "us"
	MarketCN Market = "cn"
)

// Bar is a single daily OHLCV price record for a symbol. Bars are
// immutable and ordered ascending by Timestamp; uniqueness by
// (Symbol, Timestamp) is assumed.
type Bar struct {
	Symbol     string
	Timestamp  time.Time
	Open       float64
	High       float64
	Low        float64
	Close      float64
	Volume     int64
	TradeCount int64
	VWAP       float64
	AdjClose   float64 // 0 when the source provides no adjusted close
}

// PctChange returns the percent change of the bar's close versus the
// previous bar's close. It returns 0 when prev has a zero close.
func (b Bar) PctChange(prev Bar) float64 {
	if prev.Close == 0 {
		return 0
	}
	return (b.Close - prev.Close) / prev.Close * 100
}

// TradeSide is the direction of a simulated trade.
type TradeSide string

// Trade directions.
const (
	TradeSideBuy  TradeSide = "buy"
	TradeSideSell TradeSide = "sell"
)

// Trade is one executed simulated trade. Trades are immutable once
// recorded by the ledger.
type Trade struct {
	ID          string
	Symbol      string
	Timestamp   time.Time
	Side        TradeSide
	Quantity    int64 // whole shares, always >= 1
	Price       float64
	Commission  float64
	GrossAmount float64 // Quantity * Price, before commission
}

// NewTradeID returns a fresh unique trade identifier.
func NewTradeID() string {
	return uuid.NewString()
}

// PositionView is the point-in-time view of the single held position
// inside a PortfolioSnapshot.
type PositionView struct {
	Quantity      int64
	AvgPrice      float64
	MarketValue   float64
	UnrealizedPnL float64
}

// PortfolioSnapshot captures cash, position, and total value at one bar.
type PortfolioSnapshot struct {
	Timestamp      time.Time
	Cash           float64
	Position       *PositionView // nil when no shares are held
	TotalValue     float64
	TotalReturn    float64
	TotalReturnPct float64
}

// Stats summarizes the performance and risk of one backtest run.
type Stats struct {
	TotalReturn             float64
	TotalReturnPct          float64
	AnnualizedReturn        float64
	Volatility              float64
	SharpeRatio             float64
	MaxDrawdown             float64 // fraction of peak, 0.5 == 50%
	MaxDrawdownDurationDays int
	WinRate                 float64 // fraction of winning sells, 0..1
	ProfitFactor            float64
	TotalTrades             int
	AvgTradeReturn          float64
}

package backtest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"backsim/internal/domain"
	"backsim/internal/strategy"
)

// ErrNoData is returned when the requested date range contains no bars.
// The run aborts before any simulation state is created.
var ErrNoData = errors.New("backtest: no bars in requested range")

// snapshotEvery is the cadence, in processed bars, of portfolio
// snapshots. The last bar is always snapshotted.
const snapshotEvery = 5

// Config holds the parameters of one backtest run.
type Config struct {
	Symbol         string
	Start          time.Time
	End            time.Time
	InitialCash    float64
	CommissionRate float64
	SlippageRate   float64
}

// Validate checks the config before a run starts.
func (c Config) Validate() error {
	if c.Symbol == "" {
		return errors.New("backtest: symbol is required")
	}
	if c.InitialCash <= 0 {
		return fmt.Errorf("backtest: initial cash must be positive, got %v", c.InitialCash)
	}
	if c.End.Before(c.Start) {
		return fmt.Errorf("backtest: end %s precedes start %s",
			c.End.Format("2006-01-02"), c.Start.Format("2006-01-02"))
	}
	return nil
}

// RunStatus is the terminal state of a run.
type RunStatus string

// Run outcomes.
const (
	StatusCompleted RunStatus = "completed"
	StatusCancelled RunStatus = "cancelled"
)

// ProgressStatus is the phase reported to the progress callback.
type ProgressStatus string

// Progress phases.
const (
	ProgressPreparing ProgressStatus = "preparing"
	ProgressRunning   ProgressStatus = "running"
	ProgressCompleted ProgressStatus = "completed"
	ProgressError     ProgressStatus = "error"
)

// ProgressFunc observes per-bar progress. It has no effect on control
// flow and may be nil.
type ProgressFunc func(current, total int, date time.Time, status ProgressStatus, msg string)

// Result is the full outcome of one backtest run.
type Result struct {
	Config           Config
	Status           RunStatus
	Trades           []domain.Trade
	PortfolioHistory []domain.PortfolioSnapshot
	Stats            domain.Stats
	StartDate        time.Time
	EndDate          time.Time
	DurationDays     int
	ExecutionTimeMs  int64
}

// Engine replays a price series through a compiled rule strategy,
// mutating a fresh ledger and collecting trades and snapshots.
type Engine struct {
	log        *slog.Logger
	onProgress ProgressFunc
}

// NewEngine creates an Engine logging through the given logger.
func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{log: logger.With("component", "backtest")}
}

// OnProgress registers the progress observer for subsequent runs.
func (e *Engine) OnProgress(fn ProgressFunc) { e.onProgress = fn }

// Run simulates the strategy over the bars within [cfg.Start, cfg.End].
// Bars must be ascending by date. The first in-range bar only seeds the
// previous-bar state; rules evaluate from the second bar on.
// Cancellation is checked once per bar: a cancelled run returns a
// Result with Status cancelled, its history truncated at the point of
// cancellation, and a nil error.
func (e *Engine) Run(ctx context.Context, cfg Config, strat *strategy.Strategy, bars []domain.Bar) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	rules, err := strat.Compile()
	if err != nil {
		return nil, err
	}

	inRange := filterBars(bars, cfg.Start, cfg.End)
	if len(inRange) == 0 {
		e.progress(0, 0, cfg.Start, ProgressError, "no data")
		return nil, fmt.Errorf("%w: %s %s..%s", ErrNoData, cfg.Symbol,
			cfg.Start.Format("2006-01-02"), cfg.End.Format("2006-01-02"))
	}

	started := time.Now()
	ledger := NewLedger(cfg.Symbol, cfg.InitialCash)
	total := len(inRange) - 1
	e.progress(0, total, inRange[0].Timestamp, ProgressPreparing, "")

	res := &Result{
		Config:    cfg,
		Status:    StatusCompleted,
		StartDate: inRange[0].Timestamp,
		EndDate:   inRange[len(inRange)-1].Timestamp,
	}

	if len(inRange) == 1 {
		// Nothing to simulate, but the history still gets one point.
		only := inRange[0]
		res.PortfolioHistory = append(res.PortfolioHistory, ledger.Snapshot(only.Timestamp, only.Close))
	}

	for i := 1; i < len(inRange); i++ {
		if ctx.Err() != nil {
			res.Status = StatusCancelled
			e.log.Info("run cancelled", "symbol", cfg.Symbol, "bar", i, "total", total)
			break
		}

		prev := inRange[i-1]
		cur := inRange[i]
		ec := strategy.ExecContext{
			Symbol:         cfg.Symbol,
			Timestamp:      cur.Timestamp,
			Price:          cur.Close,
			PctChange:      cur.PctChange(prev),
			CommissionRate: cfg.CommissionRate,
			SlippageRate:   cfg.SlippageRate,
		}

		for _, rule := range rules {
			if !strategy.EvalCondition(rule.Condition.Condition, rule.Condition.ConditionParams, cur, &prev) {
				continue
			}
			for _, act := range rule.Actions {
				if trade := strategy.ExecuteAction(act.Action, act.ActionParams, ec, ledger); trade != nil {
					res.Trades = append(res.Trades, *trade)
					e.log.Debug("trade",
						"date", cur.Timestamp.Format("2006-01-02"),
						"side", trade.Side,
						"qty", trade.Quantity,
						"price", trade.Price,
					)
				}
			}
		}

		if i%snapshotEvery == 0 || i == len(inRange)-1 {
			res.PortfolioHistory = append(res.PortfolioHistory, ledger.Snapshot(cur.Timestamp, cur.Close))
		}
		e.progress(i, total, cur.Timestamp, ProgressRunning, "")
	}

	res.DurationDays = durationDays(res.StartDate, res.EndDate)
	res.Stats = ComputeStats(cfg.InitialCash, res.PortfolioHistory, res.Trades, res.DurationDays)
	res.ExecutionTimeMs = time.Since(started).Milliseconds()

	status := ProgressCompleted
	if res.Status == StatusCancelled {
		status = ProgressError
	}
	e.progress(total, total, res.EndDate, status, string(res.Status))

	e.log.Info("run finished",
		"symbol", cfg.Symbol,
		"status", res.Status,
		"bars", len(inRange),
		"trades", len(res.Trades),
		"returnPct", res.Stats.TotalReturnPct,
		"elapsedMs", res.ExecutionTimeMs,
	)
	return res, nil
}

func (e *Engine) progress(current, total int, date time.Time, status ProgressStatus, msg string) {
	if e.onProgress != nil {
		e.onProgress(current, total, date, status, msg)
	}
}

// filterBars returns the bars whose timestamps fall within [start, end].
func filterBars(bars []domain.Bar, start, end time.Time) []domain.Bar {
	var out []domain.Bar
	for _, b := range bars {
		if b.Timestamp.Before(start) || b.Timestamp.After(end) {
			continue
		}
		out = append(out, b)
	}
	return out
}

// durationDays returns the calendar span of the run, at least 1.
func durationDays(start, end time.Time) int {
	d := int(end.Sub(start).Hours() / 24)
	if d < 1 {
		d = 1
	}
	return d
}

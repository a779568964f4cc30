// Command backsim runs a rule-based backtest over stored daily bars and
// prints the resulting performance statistics.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"backsim/internal/backtest"
	"backsim/internal/config"
	"backsim/internal/domain"
	"backsim/internal/flow"
	"backsim/internal/store"
	"backsim/internal/strategy"
	"backsim/internal/util"
)

func main() {
	var (
		strategyPath = flag.String("strategy", "", "path to a YAML rule strategy")
		flowPath     = flag.String("flow", "", "path to a YAML flow strategy (alternative to -strategy)")
		symbol       = flag.String("symbol", "", "symbol to backtest")
		startStr     = flag.String("start", "", "start date (YYYY-MM-DD)")
		endStr       = flag.String("end", "", "end date (YYYY-MM-DD)")
		cash         = flag.Float64("cash", 0, "initial cash (overrides config)")
		storeKind    = flag.String("store", "parquet", "bar store backend: parquet or sqlite")
	)
	flag.Parse()

	cfgPath := "config/backsim.yaml"
	if p := os.Getenv("BACKSIM_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	if *symbol == "" || *startStr == "" || *endStr == "" {
		flag.Usage()
		os.Exit(1)
	}
	if (*strategyPath == "") == (*flowPath == "") {
		log.Fatal("exactly one of -strategy or -flow is required")
	}

	start, err := time.Parse("2006-01-02", *startStr)
	if err != nil {
		log.Fatalf("invalid -start: %v", err)
	}
	end, err := time.Parse("2006-01-02", *endStr)
	if err != nil {
		log.Fatalf("invalid -end: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	barStore, closeStore, err := openStore(*storeKind, cfg)
	if err != nil {
		log.Fatalf("opening %s store: %v", *storeKind, err)
	}
	defer closeStore()

	bars, err := barStore.ReadBars(ctx, *symbol, domain.MarketUS, start, end)
	if err != nil {
		log.Fatalf("reading bars: %v", err)
	}

	runCfg := backtest.Config{
		Symbol:         *symbol,
		Start:          start,
		End:            end,
		InitialCash:    cfg.Backtest.InitialCash,
		CommissionRate: cfg.Backtest.CommissionRate,
		SlippageRate:   cfg.Backtest.SlippageRate,
	}
	if *cash > 0 {
		runCfg.InitialCash = *cash
	}

	if *strategyPath != "" {
		if err := runRules(ctx, logger, runCfg, *strategyPath, bars); err != nil {
			log.Fatal(err)
		}
		return
	}
	if err := runFlow(ctx, logger, runCfg, *flowPath, bars); err != nil {
		log.Fatal(err)
	}
}

// runRules executes the linear rule engine and prints its stats.
func runRules(ctx context.Context, logger *slog.Logger, cfg backtest.Config, path string, bars []domain.Bar) error {
	strat, err := strategy.Load(path)
	if err != nil {
		return fmt.Errorf("loading strategy: %w", err)
	}

	engine := backtest.NewEngine(logger)
	engine.OnProgress(func(current, total int, date time.Time, status backtest.ProgressStatus, _ string) {
		if status == backtest.ProgressRunning && current%50 == 0 {
			logger.Info("progress", "bar", current, "total", total, "date", date.Format("2006-01-02"))
		}
	})

	res, err := engine.Run(ctx, cfg, strat, bars)
	if err != nil {
		return err
	}
	printResult(res)
	return nil
}

// runFlow replays the flow graph bar by bar with a ledger attached and
// prints the final portfolio state.
func runFlow(ctx context.Context, logger *slog.Logger, cfg backtest.Config, path string, bars []domain.Bar) error {
	f, err := flow.Load(path)
	if err != nil {
		return fmt.Errorf("loading flow: %w", err)
	}
	if len(bars) == 0 {
		return backtest.ErrNoData
	}

	ledger := backtest.NewLedger(cfg.Symbol, cfg.InitialCash)
	runner := flow.NewRunner(logger)
	runner.Ledger = ledger
	runner.CommissionRate = cfg.CommissionRate
	runner.SlippageRate = cfg.SlippageRate

	var trades int
	for i := 1; i < len(bars); i++ {
		prev := bars[i-1]
		res, err := runner.Run(ctx, f, bars[i], &prev)
		if err != nil {
			return fmt.Errorf("flow run at %s: %w", bars[i].Timestamp.Format("2006-01-02"), err)
		}
		for _, out := range res.Executed {
			if out.Trade != nil {
				trades++
			}
		}
	}

	last := bars[len(bars)-1]
	snap := ledger.Snapshot(last.Timestamp, last.Close)
	fmt.Printf("Flow:          %s\n", f.Name)
	fmt.Printf("Trades:        %d\n", trades)
	fmt.Printf("Final value:   %.2f\n", snap.TotalValue)
	fmt.Printf("Return:        %.2f (%.2f%%)\n", snap.TotalReturn, snap.TotalReturnPct)
	return nil
}

func printResult(res *backtest.Result) {
	s := res.Stats
	fmt.Printf("Period:        %s .. %s (%d days)\n",
		res.StartDate.Format("2006-01-02"), res.EndDate.Format("2006-01-02"), res.DurationDays)
	fmt.Printf("Status:        %s (%d ms)\n", res.Status, res.ExecutionTimeMs)
	fmt.Printf("Trades:        %d\n", s.TotalTrades)
	fmt.Printf("Total return:  %.2f (%.2f%%)\n", s.TotalReturn, s.TotalReturnPct)
	fmt.Printf("Annualized:    %.2f%%\n", s.AnnualizedReturn*100)
	fmt.Printf("Volatility:    %.2f%%\n", s.Volatility*100)
	fmt.Printf("Sharpe:        %.2f\n", s.SharpeRatio)
	fmt.Printf("Max drawdown:  %.2f%% (%d days)\n", s.MaxDrawdown*100, s.MaxDrawdownDurationDays)
	fmt.Printf("Win rate:      %.1f%%\n", s.WinRate*100)
	fmt.Printf("Profit factor: %.2f\n", s.ProfitFactor)
}

func openStore(kind string, cfg *config.Config) (store.BarStore, func(), error) {
	switch kind {
	case "sqlite":
		s, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	case "parquet":
		return store.NewParquetStore(cfg.Storage.DataDir), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown store kind %q", kind)
	}
}

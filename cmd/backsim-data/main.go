// Command backsim-data backfills daily OHLCV bars from the Alpaca
// market-data API into a local bar store.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"backsim/internal/config"
	"backsim/internal/gather"
	"backsim/internal/store"
)

func main() {
	var (
		symbolsFlag = flag.String("symbols", "", "comma-separated symbols (overrides config)")
		storeKind   = flag.String("store", "parquet", "bar store backend: parquet or sqlite")
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

	// Dual logger: stdout + /tmp log file.
	logFileName := fmt.Sprintf("/tmp/backsim-data-%s.log", time.Now().Format("2006-01-02"))
	logFile, err := os.Create(logFileName)
	if err != nil {
		log.Fatalf("failed to create log file: %v", err)
	}
	defer logFile.Close()

	w := io.MultiWriter(os.Stdout, logFile)
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	symbols := cfg.Gather.Symbols
	if *symbolsFlag != "" {
		symbols = nil
		for _, s := range strings.Split(*symbolsFlag, ",") {
			if s = strings.TrimSpace(s); s != "" {
				symbols = append(symbols, strings.ToUpper(s))
			}
		}
	}
	if len(symbols) == 0 {
		log.Fatal("no symbols configured: set gather.symbols or -symbols")
	}

	var barStore store.BarStore
	switch *storeKind {
	case "sqlite":
		s, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
		if err != nil {
			log.Fatalf("opening sqlite store: %v", err)
		}
		defer s.Close()
		barStore = s
	case "parquet":
		barStore = store.NewParquetStore(cfg.Storage.DataDir)
	default:
		log.Fatalf("unknown store kind %q", *storeKind)
	}

	gatherer, err := gather.NewDailyBarGatherer(
		cfg.Alpaca.APIKey,
		cfg.Alpaca.APISecret,
		cfg.Alpaca.DataURL,
		barStore,
		symbols,
		cfg.Gather.BatchSize,
		cfg.Gather.StartDate,
	)
	if err != nil {
		log.Fatalf("creating gatherer: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := gatherer.Run(ctx); err != nil {
		log.Fatalf("backfill failed: %v", err)
	}
}

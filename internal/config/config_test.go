package config

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleConfig = `
storage:
  data_dir: /var/lib/backsim/data
  sqlite_path: /var/lib/backsim/bars.db
alpaca:
  api_key: file-key
  api_secret: file-secret
  data_url: https://data.alpaca.markets
logging:
  level: info
  format: text
backtest:
  initial_cash: 100000
  commission_rate: 0.001
  slippage_rate: 0.0005
gather:
  start_date: "2020-01-01"
  batch_size: 200
  symbols: [AAPL, MSFT]
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "backsim.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Storage.DataDir != "/var/lib/backsim/data" {
		t.Errorf("data dir = %q", cfg.Storage.DataDir)
	}
	if cfg.Alpaca.APIKey != "file-key" || cfg.Alpaca.APISecret != "file-secret" {
		t.Errorf("alpaca creds = %q/%q", cfg.Alpaca.APIKey, cfg.Alpaca.APISecret)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "text" {
		t.Errorf("logging = %q/%q", cfg.Logging.Level, cfg.Logging.Format)
	}
	if cfg.Backtest.InitialCash != 100000 {
		t.Errorf("initial cash = %v, want 100000", cfg.Backtest.InitialCash)
	}
	if cfg.Backtest.CommissionRate != 0.001 || cfg.Backtest.SlippageRate != 0.0005 {
		t.Errorf("rates = %v/%v", cfg.Backtest.CommissionRate, cfg.Backtest.SlippageRate)
	}
	if cfg.Gather.BatchSize != 200 || len(cfg.Gather.Symbols) != 2 {
		t.Errorf("gather = %+v", cfg.Gather)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("missing config file accepted")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DATA_DIR", "/tmp/override")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("ALPACA_API_KEY", "env-key")

	cfg, err := Load(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Storage.DataDir != "/tmp/override" {
		t.Errorf("data dir = %q, want env override", cfg.Storage.DataDir)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("log level = %q, want debug", cfg.Logging.Level)
	}
	if cfg.Alpaca.APIKey != "env-key" {
		t.Errorf("api key = %q, want env-key", cfg.Alpaca.APIKey)
	}
}

func TestCanonicalAlpacaEnvWins(t *testing.T) {
	t.Setenv("ALPACA_API_KEY", "alias-key")
	t.Setenv("APCA_API_KEY_ID", "canonical-key")
	t.Setenv("APCA_API_SECRET_KEY", "canonical-secret")

	cfg, err := Load(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Alpaca.APIKey != "canonical-key" {
		t.Errorf("api key = %q, want canonical-key", cfg.Alpaca.APIKey)
	}
	if cfg.Alpaca.APISecret != "canonical-secret" {
		t.Errorf("api secret = %q, want canonical-secret", cfg.Alpaca.APISecret)
	}
}

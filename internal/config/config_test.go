package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, yamlContent string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lumen.yaml")
	if err := os.WriteFile(path, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"LUMEN_CONFIG", "LUMEN_DATA_ROOT", "LUMEN_STOCK_DB", "LUMEN_CATALOG",
		"LUMEN_CONCURRENCY", "EASTMONEY_BASE_URL", "EASTMONEY_ADJUST",
		"EASTMONEY_RATE", "EASTMONEY_RETRIES", "EASTMONEY_TIMEOUT",
		"APCA_API_KEY_ID", "APCA_API_SECRET_KEY", "LOG_LEVEL",
	} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadFromFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
storage:
  data_root: "/srv/lumen/data"
  stock_db_path: "/srv/lumen/stock.sqlite"
catalog:
  path: "/srv/lumen/lumen.duckdb"
  threads: 4
  extensions: [parquet, httpfs]
logging:
  level: "debug"
  format: "json"
sources:
  eastmoney:
    adjust: "qfq"
    concurrency: 4
    rate_per_sec: 4
    retries: 3
    timeout_sec: 30
  alpaca:
    api_key: "test-key"
    api_secret: "test-secret"
    feed: "sip"
ingest:
  interval: "1d"
  mode: "incremental"
  start_date: "2010-01-01"
  lookback_days: 3
  batch_size: 32
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Storage.DataRoot != "/srv/lumen/data" {
		t.Errorf("Storage.DataRoot = %q", cfg.Storage.DataRoot)
	}
	if cfg.Catalog.Path != "/srv/lumen/lumen.duckdb" {
		t.Errorf("Catalog.Path = %q", cfg.Catalog.Path)
	}
	if cfg.Catalog.Threads != 4 || len(cfg.Catalog.Extensions) != 2 {
		t.Errorf("Catalog = %+v", cfg.Catalog)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q", cfg.Logging.Level)
	}
	if cfg.Sources.Eastmoney.Adjust != "qfq" || cfg.Sources.Eastmoney.Concurrency != 4 {
		t.Errorf("Eastmoney = %+v", cfg.Sources.Eastmoney)
	}
	if cfg.Sources.Eastmoney.Retries != 3 || cfg.Sources.Eastmoney.TimeoutSec != 30 {
		t.Errorf("Eastmoney = %+v", cfg.Sources.Eastmoney)
	}
	if cfg.Sources.Alpaca.APIKey != "test-key" || cfg.Sources.Alpaca.Feed != "sip" {
		t.Errorf("Alpaca = %+v", cfg.Sources.Alpaca)
	}
	if cfg.Ingest.Mode != "incremental" || cfg.Ingest.BatchSize != 32 {
		t.Errorf("Ingest = %+v", cfg.Ingest)
	}
	if cfg.Ingest.LookbackDays != 3 {
		t.Errorf("Ingest.LookbackDays = %d", cfg.Ingest.LookbackDays)
	}
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") returned error: %v", err)
	}

	if cfg.Storage.DataRoot != "data" {
		t.Errorf("default DataRoot = %q", cfg.Storage.DataRoot)
	}
	if cfg.Sources.Eastmoney.Concurrency != 8 || cfg.Sources.Eastmoney.RatePerSec != 8 {
		t.Errorf("default Eastmoney = %+v", cfg.Sources.Eastmoney)
	}
	if cfg.Sources.Eastmoney.Retries != 2 || cfg.Sources.Eastmoney.TimeoutSec != 20 {
		t.Errorf("default Eastmoney = %+v", cfg.Sources.Eastmoney)
	}
	if cfg.Ingest.Mode != "auto" || cfg.Ingest.BatchSize != 64 {
		t.Errorf("default Ingest = %+v", cfg.Ingest)
	}
}

func TestLoadMissingNamedFile(t *testing.T) {
	clearEnv(t)
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("explicitly named missing file should error")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
storage:
  data_root: "/original/data"
sources:
  eastmoney:
    adjust: "none"
  alpaca:
    api_key: "yaml-key"
    api_secret: "yaml-secret"
`)

	t.Setenv("LUMEN_DATA_ROOT", "/env/data")
	t.Setenv("LUMEN_CONCURRENCY", "2")
	t.Setenv("EASTMONEY_ADJUST", "hfq")
	t.Setenv("EASTMONEY_RATE", "3.5")
	t.Setenv("APCA_API_KEY_ID", "env-key")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Storage.DataRoot != "/env/data" {
		t.Errorf("Storage.DataRoot = %q, want env override", cfg.Storage.DataRoot)
	}
	if cfg.Sources.Eastmoney.Concurrency != 2 {
		t.Errorf("Eastmoney.Concurrency = %d, want 2", cfg.Sources.Eastmoney.Concurrency)
	}
	if cfg.Sources.Eastmoney.Adjust != "hfq" {
		t.Errorf("Eastmoney.Adjust = %q, want hfq", cfg.Sources.Eastmoney.Adjust)
	}
	if cfg.Sources.Eastmoney.RatePerSec != 3.5 {
		t.Errorf("Eastmoney.RatePerSec = %v, want 3.5", cfg.Sources.Eastmoney.RatePerSec)
	}
	if cfg.Sources.Alpaca.APIKey != "env-key" {
		t.Errorf("Alpaca.APIKey = %q, want env override", cfg.Sources.Alpaca.APIKey)
	}
	// api_secret stays from YAML since no env override was set.
	if cfg.Sources.Alpaca.APISecret != "yaml-secret" {
		t.Errorf("Alpaca.APISecret = %q, want yaml value", cfg.Sources.Alpaca.APISecret)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, want warn", cfg.Logging.Level)
	}
}

func TestLoadConfigPathFromEnv(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
storage:
  data_root: "/from/env/config"
`)
	t.Setenv("LUMEN_CONFIG", path)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Storage.DataRoot != "/from/env/config" {
		t.Errorf("Storage.DataRoot = %q, want config named by LUMEN_CONFIG", cfg.Storage.DataRoot)
	}
}

package config

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the lumen pipeline.
type Config struct {
	Storage Storage `yaml:"storage"`
	Catalog Catalog `yaml:"catalog"`
	Logging Logging `yaml:"logging"`
	Sources Sources `yaml:"sources"`
	Ingest  Ingest  `yaml:"ingest"`
}

// Storage holds paths for data persistence.
type Storage struct {
	DataRoot    string `yaml:"data_root"`
	StockDBPath string `yaml:"stock_db_path"`
}

// Catalog configures the embedded analytical database.
type Catalog struct {
	Path       string   `yaml:"path"`
	Threads    int      `yaml:"threads"`
	Extensions []string `yaml:"extensions"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Sources holds per-provider settings and credentials.
type Sources struct {
	Eastmoney Eastmoney `yaml:"eastmoney"`
	Alpaca    Alpaca    `yaml:"alpaca"`
}

// Eastmoney tunes the CN daily-bar provider.
type Eastmoney struct {
	BaseURL     string  `yaml:"base_url"`
	Adjust      string  `yaml:"adjust"` // none | qfq | hfq
	Concurrency int     `yaml:"concurrency"`
	RatePerSec  float64 `yaml:"rate_per_sec"`
	Retries     int     `yaml:"retries"`
	TimeoutSec  int     `yaml:"timeout_sec"`
}

// Alpaca holds credentials and endpoints for the US market-data API.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	BaseURL   string `yaml:"base_url"`
	Feed      string `yaml:"feed"`
}

// Ingest holds run-shape defaults; command-line flags win over these.
type Ingest struct {
	Interval     string `yaml:"interval"`
	Mode         string `yaml:"mode"`
	StartDate    string `yaml:"start_date"` // YYYY-MM-DD
	LookbackDays int    `yaml:"lookback_days"`
	BatchSize    int    `yaml:"batch_size"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Storage: Storage{
			DataRoot:    "data",
			StockDBPath: "data/stock.sqlite",
		},
		Catalog: Catalog{
			Path:       "data/lumen.duckdb",
			Extensions: []string{"parquet"},
		},
		Logging: Logging{Level: "info", Format: "json"},
		Sources: Sources{
			Eastmoney: Eastmoney{
				Adjust:      "none",
				Concurrency: 8,
				RatePerSec:  8,
				Retries:     2,
				TimeoutSec:  20,
			},
			Alpaca: Alpaca{Feed: "iex"},
		},
		Ingest: Ingest{
			Interval:  "1d",
			Mode:      "auto",
			StartDate: "2005-01-01",
			BatchSize: 64,
		},
	}
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration at path, falling back to the LUMEN_CONFIG
// environment variable and then to defaults when no file is named. A named
// file that does not exist is an error; an unnamed one is not. Environment
// overrides are applied last in both cases.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("LUMEN_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LUMEN_DATA_ROOT"); v != "" {
		cfg.Storage.DataRoot = v
	}
	if v := os.Getenv("LUMEN_STOCK_DB"); v != "" {
		cfg.Storage.StockDBPath = v
	}
	if v := os.Getenv("LUMEN_CATALOG"); v != "" {
		cfg.Catalog.Path = v
	}
	if v := os.Getenv("LUMEN_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Sources.Eastmoney.Concurrency = n
		}
	}

	if v := os.Getenv("EASTMONEY_BASE_URL"); v != "" {
		cfg.Sources.Eastmoney.BaseURL = v
	}
	if v := os.Getenv("EASTMONEY_ADJUST"); v != "" {
		cfg.Sources.Eastmoney.Adjust = v
	}
	if v := os.Getenv("EASTMONEY_RATE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.Sources.Eastmoney.RatePerSec = f
		}
	}
	if v := os.Getenv("EASTMONEY_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.Sources.Eastmoney.Retries = n
		}
	}
	if v := os.Getenv("EASTMONEY_TIMEOUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Sources.Eastmoney.TimeoutSec = n
		}
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Canonical Alpaca env vars used by the SDK.
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Sources.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Sources.Alpaca.APISecret = v
	}
}

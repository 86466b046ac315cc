// Ingest daily OHLCVA bars into the Parquet lake and refresh catalog views.
//
// Usage:
//
//	go run cmd/ingest-bars/main.go -universe ALL_A -mode auto
//	go run cmd/ingest-bars/main.go -symbols 000001,600000 -start 2020-01-01
//	go run cmd/ingest-bars/main.go -index 000300 -lookback-days 3 -dry-run
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"lumen/internal/catalog"
	"lumen/internal/config"
	"lumen/internal/ingest"
	"lumen/internal/lake"
	"lumen/internal/planner"
	"lumen/internal/source"
	"lumen/internal/source/alpaca"
	"lumen/internal/source/eastmoney"
	"lumen/internal/universe"
	"lumen/internal/util"
)

func main() {
	var (
		cfgPath  = flag.String("config", "", "config file (default $LUMEN_CONFIG, else built-ins)")
		dbPath   = flag.String("db", "", "catalog database file (overrides config)")
		dataRoot = flag.String("data-root", "", "lake root directory (overrides config)")
		interval = flag.String("interval", "", "bar interval (default from config)")

		symbolsArg = flag.String("symbols", "", "comma-separated symbol list")
		univArg    = flag.String("universe", "", "universe alias: ALL_A | A_SHARE | CN_A")
		indexArg   = flag.String("index", "", "index code, e.g. 000300")
		indArg     = flag.String("industry", "", "industry board name or BK code")
		conceptArg = flag.String("concept", "", "concept board name or BK code")

		sourceArg = flag.String("source", "", "bar source: eastmoney | alpaca (default eastmoney)")

		modeArg  = flag.String("mode", "", "full | incremental | auto (default from config)")
		lookback = flag.Int("lookback-days", -1, "re-fetch this many days before the incremental start")
		startArg = flag.String("start", "", "range start YYYY-MM-DD (default from config)")
		endArg   = flag.String("end", "", "range end YYYY-MM-DD (default today)")
		dryRun   = flag.Bool("dry-run", false, "plan and fetch but write nothing")
	)
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := util.NewLogger(cfg.Logging.Level)
	util.SetDefault(logger)

	if *dbPath == "" {
		*dbPath = cfg.Catalog.Path
	}
	if *dataRoot == "" {
		*dataRoot = cfg.Storage.DataRoot
	}
	if *interval == "" {
		*interval = cfg.Ingest.Interval
	}
	if *modeArg == "" {
		*modeArg = cfg.Ingest.Mode
	}
	if *startArg == "" {
		*startArg = cfg.Ingest.StartDate
	}
	if *lookback < 0 {
		*lookback = cfg.Ingest.LookbackDays
	}

	mode, err := planner.ParseMode(*modeArg)
	if err != nil {
		log.Fatalf("%v", err)
	}
	start, err := time.ParseInLocation("2006-01-02", *startArg, time.UTC)
	if err != nil {
		log.Fatalf("bad -start: %v", err)
	}
	end := time.Now().UTC().Truncate(24 * time.Hour)
	if *endArg != "" {
		if end, err = time.ParseInLocation("2006-01-02", *endArg, time.UTC); err != nil {
			log.Fatalf("bad -end: %v", err)
		}
	}

	sel := universe.Selector{
		Universe: *univArg,
		Index:    *indexArg,
		Industry: *indArg,
		Concept:  *conceptArg,
	}
	if *symbolsArg != "" {
		for _, s := range strings.Split(*symbolsArg, ",") {
			if s = strings.TrimSpace(s); s != "" {
				sel.Symbols = append(sel.Symbols, s)
			}
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	symbols, err := universe.NewClient(universe.Options{Log: logger}).Resolve(ctx, sel)
	if err != nil {
		log.Fatalf("resolving symbols: %v", err)
	}

	em := cfg.Sources.Eastmoney
	pool := source.PoolConfig{
		Concurrency: em.Concurrency,
		RatePerSec:  em.RatePerSec,
		Retries:     em.Retries,
		Timeout:     time.Duration(em.TimeoutSec) * time.Second,
	}
	source.Register(eastmoney.New(eastmoney.Options{
		BaseURL: em.BaseURL,
		Adjust:  em.Adjust,
		Pool:    pool,
	}))
	source.Register(alpaca.New(alpaca.Options{
		APIKey:    cfg.Sources.Alpaca.APIKey,
		APISecret: cfg.Sources.Alpaca.APISecret,
		BaseURL:   cfg.Sources.Alpaca.BaseURL,
		Feed:      cfg.Sources.Alpaca.Feed,
		Pool:      pool,
	}))

	cat, err := catalog.Open(catalog.Options{
		Path:       *dbPath,
		DataRoot:   *dataRoot,
		Threads:    cfg.Catalog.Threads,
		Extensions: cfg.Catalog.Extensions,
	})
	if err != nil {
		log.Fatalf("opening catalog: %v", err)
	}
	defer cat.Close()
	cat.RegisterDataset(catalog.OHLCVASpec{})

	driver := &ingest.Driver{
		Inspector: catalog.NewInspector(cat, *dataRoot),
		Writer:    lake.NewWriter(*dataRoot),
		Catalog:   cat,
		Log:       logger,
	}

	sum, err := driver.Run(ctx, ingest.Options{
		Symbols:      symbols,
		Interval:     *interval,
		Start:        start,
		End:          end,
		Mode:         mode,
		LookbackDays: *lookback,
		DryRun:       *dryRun,
		Policy:       planner.Policy{Primary: *sourceArg, BatchSize: cfg.Ingest.BatchSize},
	})
	if err != nil {
		logger.Error("ingest failed", "err", err)
		os.Exit(1)
	}

	logger.Info("run summary",
		"resolved", sum.Resolved,
		"toFetch", sum.ToFetch,
		"skipped", sum.Skipped,
		"processed", sum.Processed,
		"files", sum.FilesWritten,
		"rows", sum.RowsWritten,
	)
}

// Ensure catalog views exist for a dataset, writing a schema placeholder
// first when the lake is still empty.
//
// Usage:
//
//	go run cmd/ensure-views/main.go [-dataset ohlcva] [-variant 1d] [-drop]
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"lumen/internal/catalog"
	"lumen/internal/config"
	"lumen/internal/util"
)

func main() {
	var (
		cfgPath  = flag.String("config", "", "config file (default $LUMEN_CONFIG, else built-ins)")
		dbPath   = flag.String("db", "", "catalog database file (overrides config)")
		dataRoot = flag.String("data-root", "", "lake root directory (overrides config)")
		dataset  = flag.String("dataset", "ohlcva", "dataset to ensure")
		variant  = flag.String("variant", "", "single variant to ensure (default all)")
		drop     = flag.Bool("drop", false, "drop the dataset's views instead")
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

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

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

	if *drop {
		if err := cat.DropDatasetViews(ctx, *dataset); err != nil {
			logger.Error("dropping views failed", "dataset", *dataset, "err", err)
			os.Exit(1)
		}
		logger.Info("views dropped", "dataset", *dataset)
		return
	}

	var variants []string
	if *variant != "" {
		variants = append(variants, *variant)
	}
	views, err := cat.EnsureViews(ctx, *dataset, variants...)
	if err != nil {
		logger.Error("ensuring views failed", "dataset", *dataset, "err", err)
		os.Exit(1)
	}
	logger.Info("views ready", "dataset", *dataset, "views", views)
}

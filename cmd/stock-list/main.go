// Print the securities master, refreshing it from the live spot table when
// empty or when -update is given.
//
// Usage:
//
//	go run cmd/stock-list/main.go [-update]
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"lumen/internal/config"
	"lumen/internal/stockdb"
	"lumen/internal/universe"
	"lumen/internal/util"
)

func main() {
	var (
		cfgPath = flag.String("config", "", "config file (default $LUMEN_CONFIG, else built-ins)")
		dbPath  = flag.String("db", "", "securities master database file (overrides config)")
		update  = flag.Bool("update", false, "refresh from the spot table before listing")
	)
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := util.NewLogger(cfg.Logging.Level)
	util.SetDefault(logger)

	if *dbPath == "" {
		*dbPath = cfg.Storage.StockDBPath
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db, err := stockdb.Open(*dbPath, universe.NewClient(universe.Options{Log: logger}), logger)
	if err != nil {
		log.Fatalf("opening stock db: %v", err)
	}
	defer db.Close()

	stocks, err := db.ListStocks(ctx, *update)
	if err != nil {
		log.Fatalf("listing stocks: %v", err)
	}

	for _, s := range stocks {
		fmt.Printf("%d\t%s\t%s\n", s.ID, s.Symbol, s.Name)
	}
	logger.Info("stock list complete", "count", len(stocks))
}

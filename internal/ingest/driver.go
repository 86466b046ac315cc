// Package ingest runs end-to-end bar ingestion: plan incremental windows
// against the lake, fetch from a provider, persist Parquet partitions, record
// the manifest, and refresh catalog views.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"lumen/internal/domain"
	"lumen/internal/lake"
	"lumen/internal/planner"
	"lumen/internal/source"
)

// BarWriter persists validated bars into the lake.
type BarWriter interface {
	WriteBars(bars []domain.Bar) ([]lake.WrittenFile, error)
}

// Cataloger is the slice of the catalog the driver needs: manifest
// bookkeeping and view maintenance. A nil catalog disables both.
type Cataloger interface {
	EnsureManifest(ctx context.Context) error
	AppendManifest(ctx context.Context, dataset, filePath string, rows int, extra map[string]any) error
	EnsureViews(ctx context.Context, dataset string, variants ...string) ([]string, error)
}

// Options shape one ingestion run. Symbols are raw user input; the driver
// normalizes them to the primary source's storage form before planning.
type Options struct {
	Symbols      []string
	Dataset      string // default "ohlcva"
	Interval     string // default "1d"
	Start        time.Time
	End          time.Time
	Mode         planner.Mode
	LookbackDays int
	DryRun       bool
	Policy       planner.Policy
}

// Summary is what one run did.
type Summary struct {
	Resolved     int
	Skipped      int
	ToFetch      int
	Groups       int
	Processed    int
	FilesWritten int
	RowsWritten  int
}

// Driver wires the planner, a provider registry, the lake writer, and the
// catalog into one ingestion pipeline.
type Driver struct {
	Inspector planner.LatestDater
	Writer    BarWriter
	Catalog   Cataloger
	// Lookup resolves a provider by name. Defaults to the static registry.
	Lookup func(name string) (source.Source, error)
	Log    *slog.Logger
}

func (d *Driver) lookup(name string) (source.Source, error) {
	if d.Lookup != nil {
		return d.Lookup(name)
	}
	return source.Get(name)
}

// normalizer asks the plan's primary source how it spells storage symbols.
// Sources without a convention of their own (US tickers) get nil, keeping
// symbols verbatim; an unknown source also gets nil and surfaces its error
// when the task runs.
func (d *Driver) normalizer(policy planner.Policy) planner.Normalizer {
	primary := policy.Primary
	if primary == "" {
		primary = "eastmoney"
	}
	src, err := d.lookup(primary)
	if err != nil {
		return nil
	}
	if n, ok := src.(source.SymbolNormalizer); ok {
		return n.NormalizeSymbol
	}
	return nil
}

func (d *Driver) logger() *slog.Logger {
	if d.Log != nil {
		return d.Log
	}
	return slog.Default()
}

// Run executes one ingestion pass. Per-symbol failures never abort the run:
// a symbol that fails or returns nothing is counted as processed once its
// task drains and the run moves on. The catalog views are refreshed at the
// end even when there was nothing to fetch, so downstream readers always see
// a queryable (possibly empty) dataset.
func (d *Driver) Run(ctx context.Context, opts Options) (Summary, error) {
	log := d.logger()

	dataset := opts.Dataset
	if dataset == "" {
		dataset = "ohlcva"
	}
	interval := opts.Interval
	if interval == "" {
		interval = domain.Interval1d
	}
	mode := opts.Mode
	if mode == "" {
		mode = planner.ModeAuto
	}

	groups, skipped := planner.BuildGroups(ctx, d.Inspector, opts.Symbols,
		d.normalizer(opts.Policy), opts.Start, opts.End, mode, opts.LookbackDays)

	sum := Summary{
		Resolved: len(opts.Symbols),
		Skipped:  skipped,
		ToFetch:  groups.Symbols(),
		Groups:   len(groups),
	}

	log.Info("ingest planned",
		"dataset", dataset,
		"interval", interval,
		"mode", string(mode),
		"resolved", sum.Resolved,
		"toFetch", sum.ToFetch,
		"skipped", sum.Skipped,
		"groups", sum.Groups,
	)

	if d.Catalog != nil && !opts.DryRun {
		if err := d.Catalog.EnsureManifest(ctx); err != nil {
			return sum, fmt.Errorf("ensuring manifest: %w", err)
		}
	}

	if sum.ToFetch > 0 {
		if err := d.fetchGroups(ctx, log, dataset, interval, groups, opts, &sum); err != nil {
			return sum, err
		}
	}

	if ctx.Err() != nil {
		return sum, ctx.Err()
	}

	if d.Catalog != nil {
		if _, err := d.Catalog.EnsureViews(ctx, dataset); err != nil {
			return sum, fmt.Errorf("ensuring views: %w", err)
		}
	}

	log.Info("ingest done",
		"processed", sum.Processed,
		"files", sum.FilesWritten,
		"rows", sum.RowsWritten,
		"skipped", sum.Skipped,
	)
	return sum, nil
}

func (d *Driver) fetchGroups(ctx context.Context, log *slog.Logger, dataset, interval string, groups planner.Groups, opts Options, sum *Summary) error {
	starts := make([]time.Time, 0, len(groups))
	for s := range groups {
		starts = append(starts, s)
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i].Before(starts[j]) })

	prog := newProgress(log, sum.ToFetch)

	for _, start := range starts {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		plan := planner.BuildPlan(groups[start], start, opts.End, interval, opts.Policy)
		for _, task := range plan.Tasks {
			if err := d.runTask(ctx, log, dataset, task, opts.DryRun, prog, sum); err != nil {
				return err
			}
		}
	}

	sum.Processed = prog.Count()
	return nil
}

// runTask drains one fetch task. Batches arrive in completion order; every
// symbol of the task is marked processed after the drain so zero-batch and
// failed symbols are counted exactly once too.
func (d *Driver) runTask(ctx context.Context, log *slog.Logger, dataset string, task planner.Task, dryRun bool, prog *progress, sum *Summary) error {
	src, err := d.lookup(task.Source)
	if err != nil {
		return err
	}

	for batch := range src.FetchBars(ctx, task.Request(dataset)) {
		prog.Mark(batch.Symbol)
		if dryRun || len(batch.Bars) == 0 {
			continue
		}

		files, err := d.Writer.WriteBars(batch.Bars)
		if err != nil {
			log.Error("writing bars failed", "symbol", batch.Symbol, "err", err)
			continue
		}
		for _, f := range files {
			sum.FilesWritten++
			sum.RowsWritten += f.Rows
			if d.Catalog == nil {
				continue
			}
			extra := map[string]any{
				"symbol":   batch.Symbol,
				"interval": task.Interval,
				"source":   task.Source,
			}
			if err := d.Catalog.AppendManifest(ctx, dataset, f.Path, f.Rows, extra); err != nil {
				log.Error("appending manifest failed", "path", f.Path, "err", err)
			}
		}
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}
	for _, sym := range task.Symbols {
		prog.Mark(sym)
	}
	return nil
}

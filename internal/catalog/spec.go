package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DatasetSpec describes how to read one logical dataset from the lake:
// its on-disk glob per variant and the view naming rule. Specs are
// registered once at startup and never mutated.
type DatasetSpec interface {
	// Name is the dataset identifier; the dataset owns <dataRoot>/<name>.
	Name() string
	// Variants lists the supported sub-granularities ("1d", ...). Empty
	// means the dataset has no variant dimension.
	Variants() []string
	// Glob returns the read_parquet pattern for one variant rooted at the
	// dataset root. Errors on unsupported variants.
	Glob(variant, datasetRoot string) (string, error)
	// ViewName returns the catalog view name for one variant.
	ViewName(variant string) string
}

// ReadyEnsurer is implemented by specs that can prepare their dataset root
// when no files match the glob yet, typically by writing a zero-row
// placeholder file with the full schema.
type ReadyEnsurer interface {
	EnsureReady(variant, datasetRoot string) error
}

// DefaultViewName is the naming rule specs use unless they override it:
// <name>_<variant>_v, or <name>_v for variant-less datasets.
func DefaultViewName(name, variant string) string {
	if v := strings.TrimSpace(variant); v != "" {
		return fmt.Sprintf("%s_%s_v", name, v)
	}
	return name + "_v"
}

// RegisterDataset adds or replaces a dataset's read rule. Registration
// only records the spec; views are created by EnsureView.
func (c *DB) RegisterDataset(spec DatasetSpec) {
	c.registry[spec.Name()] = spec
}

// Dataset looks up a registered spec. Unknown datasets are a hard error:
// the operator must register the spec before reading.
func (c *DB) Dataset(name string) (DatasetSpec, error) {
	spec, ok := c.registry[name]
	if !ok {
		return nil, fmt.Errorf("dataset %q is not registered", name)
	}
	return spec, nil
}

// Datasets lists the registered dataset names, sorted.
func (c *DB) Datasets() []string {
	names := make([]string, 0, len(c.registry))
	for n := range c.registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// EnsureView creates or replaces the view for (dataset, variant) and
// returns the view name.
//
// For local globs the stable parent directory is created, and when nothing
// matches the glob yet a spec implementing ReadyEnsurer gets a chance to
// self-heal by writing a placeholder, so view creation never fails purely
// due to absence of data. Remote globs skip the local checks. A dataset
// that requires a variant rejects an omitted one, and vice versa.
func (c *DB) EnsureView(ctx context.Context, dataset, variant string) (string, error) {
	spec, err := c.Dataset(dataset)
	if err != nil {
		return "", err
	}

	variants := spec.Variants()
	if len(variants) > 0 && variant == "" {
		return "", fmt.Errorf("dataset %q requires a variant, one of %v", dataset, variants)
	}
	if len(variants) == 0 && variant != "" {
		return "", fmt.Errorf("dataset %q does not take a variant", dataset)
	}

	root, err := c.DatasetRoot(spec.Name())
	if err != nil {
		return "", err
	}
	glob, err := spec.Glob(variant, root)
	if err != nil {
		return "", err
	}
	viewName := spec.ViewName(variant)

	if !IsRemoteURL(glob) {
		if err := os.MkdirAll(GlobRootDir(glob), 0o755); err != nil {
			return "", fmt.Errorf("creating dataset dir: %w", err)
		}
		if ensurer, ok := spec.(ReadyEnsurer); ok && !globHasMatches(glob) {
			if err := ensurer.EnsureReady(variant, root); err != nil {
				c.log.Warn("ensure-ready failed", "dataset", dataset, "variant", variant, "err", err)
			}
			// If the glob still matches nothing, view creation below
			// surfaces the engine error so a misconfigured path is
			// diagnosable.
		}
	}

	create := fmt.Sprintf(
		"CREATE OR REPLACE VIEW %s AS SELECT * FROM read_parquet('%s');",
		QuoteIdent(viewName), SQLLiteral(glob),
	)
	if err := c.Exec(ctx, create); err != nil {
		return "", fmt.Errorf("creating view %s: %w", viewName, err)
	}
	return viewName, nil
}

// EnsureViews creates or replaces views for the given variants, or for all
// of the spec's variants when none are given.
func (c *DB) EnsureViews(ctx context.Context, dataset string, variants ...string) ([]string, error) {
	spec, err := c.Dataset(dataset)
	if err != nil {
		return nil, err
	}
	if len(variants) == 0 {
		variants = spec.Variants()
	}
	if len(variants) == 0 {
		name, err := c.EnsureView(ctx, dataset, "")
		if err != nil {
			return nil, err
		}
		return []string{name}, nil
	}

	created := make([]string, 0, len(variants))
	for _, v := range variants {
		name, err := c.EnsureView(ctx, dataset, v)
		if err != nil {
			return nil, err
		}
		created = append(created, name)
	}
	return created, nil
}

// DropDatasetViews drops every existing view of a registered dataset.
// Unregistered datasets are a no-op.
func (c *DB) DropDatasetViews(ctx context.Context, dataset string) error {
	spec, ok := c.registry[dataset]
	if !ok {
		return nil
	}
	variants := spec.Variants()
	if len(variants) == 0 {
		variants = []string{""}
	}
	for _, v := range variants {
		name := spec.ViewName(v)
		exists, err := c.ViewExists(ctx, name)
		if err != nil {
			return err
		}
		if exists {
			if err := c.Exec(ctx, fmt.Sprintf("DROP VIEW %s;", QuoteIdent(name))); err != nil {
				return err
			}
		}
	}
	return nil
}

// SelectOptions shape the convenience query built by Select.
type SelectOptions struct {
	Columns []string // nil means *
	Where   string   // raw predicate with ? placeholders
	Params  []any
	OrderBy string
	Limit   int // 0 means no limit
}

// Select queries a dataset's view without exposing the view name. The view
// must have been created already.
func (c *DB) Select(ctx context.Context, dataset, variant string, opts SelectOptions) (*sql.Rows, error) {
	spec, err := c.Dataset(dataset)
	if err != nil {
		return nil, err
	}
	viewName := spec.ViewName(variant)

	exists, err := c.ViewExists(ctx, viewName)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("view %s does not exist; run EnsureView first", viewName)
	}

	cols := "*"
	if len(opts.Columns) > 0 {
		cols = strings.Join(opts.Columns, ", ")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", cols, QuoteIdent(viewName))
	if opts.Where != "" {
		fmt.Fprintf(&b, " WHERE %s", opts.Where)
	}
	if opts.OrderBy != "" {
		fmt.Fprintf(&b, " ORDER BY %s", opts.OrderBy)
	}
	if opts.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", opts.Limit)
	}
	return c.Query(ctx, b.String(), opts.Params...)
}

func globHasMatches(glob string) bool {
	matches, err := filepath.Glob(glob)
	return err == nil && len(matches) > 0
}

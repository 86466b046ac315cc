// Package catalog manages the embedded DuckDB catalog: connection setup,
// dataset registration, queryable views over the Parquet lake, and the
// ingestion manifest.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"

	_ "github.com/marcboeker/go-duckdb" // DuckDB database/sql driver.
)

// Options configures a catalog connection.
type Options struct {
	// Path is the DuckDB database file, or ":memory:".
	Path string
	// DataRoot is the lake root directory; each dataset owns
	// <DataRoot>/<name>.
	DataRoot string
	ReadOnly bool
	// Threads sets PRAGMA threads; 0 means NumCPU.
	Threads int
	// Extensions to INSTALL/LOAD. Nil means ("parquet",). Remote lakes
	// additionally need "httpfs".
	Extensions []string
}

// DB is a catalog connection plus the dataset registry.
type DB struct {
	db       *sql.DB
	dataRoot string
	registry map[string]DatasetSpec
	log      *slog.Logger
}

// Open connects to the catalog database, applies runtime pragmas, and loads
// the columnar-format extensions. Extension load failures are logged and
// skipped; a bundled build serves local parquet reads without them.
func Open(opts Options) (*DB, error) {
	path := opts.Path
	if path == "" {
		path = "catalog.duckdb"
	}
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating catalog dir: %w", err)
		}
		if opts.ReadOnly {
			if _, err := os.Stat(path); err != nil {
				return nil, fmt.Errorf("read-only catalog: %w", err)
			}
			dsn = path + "?access_mode=read_only"
		}
	}

	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}

	c := &DB{
		db:       db,
		dataRoot: opts.DataRoot,
		registry: make(map[string]DatasetSpec),
		log:      slog.Default().With("component", "catalog"),
	}

	threads := opts.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA threads=%d;", threads)); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting threads: %w", err)
	}

	exts := opts.Extensions
	if exts == nil {
		exts = []string{"parquet"}
	}
	for _, ext := range exts {
		if _, err := db.Exec(fmt.Sprintf("INSTALL %s; LOAD %s;", ext, ext)); err != nil {
			c.log.Warn("extension load failed", "extension", ext, "err", err)
		}
	}

	return c, nil
}

// Close closes the underlying connection.
func (c *DB) Close() error {
	return c.db.Close()
}

// DataRoot returns the lake root directory.
func (c *DB) DataRoot() string { return c.dataRoot }

// DatasetRoot returns the root directory owned by one dataset:
// <DataRoot>/<name>.
func (c *DB) DatasetRoot(dataset string) (string, error) {
	if c.dataRoot == "" {
		return "", fmt.Errorf("catalog has no data root configured")
	}
	return filepath.Join(c.dataRoot, dataset), nil
}

// Exec runs a statement.
func (c *DB) Exec(ctx context.Context, query string, args ...any) error {
	_, err := c.db.ExecContext(ctx, query, args...)
	return err
}

// Query runs a query and returns the rows.
func (c *DB) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return c.db.QueryContext(ctx, query, args...)
}

// QueryValue runs a single-value query and returns the first column of the
// first row. sql.ErrNoRows surfaces when the result set is empty.
func (c *DB) QueryValue(ctx context.Context, query string, args ...any) (any, error) {
	var v any
	err := c.db.QueryRowContext(ctx, query, args...).Scan(&v)
	return v, err
}

// TableExists reports whether a base table with the given name exists.
func (c *DB) TableExists(ctx context.Context, name string) (bool, error) {
	const q = `
	SELECT 1
	FROM information_schema.tables
	WHERE table_schema IN ('main','temp')
	  AND lower(table_name) = lower(?)
	  AND lower(table_type) = 'base table'
	LIMIT 1;`
	return c.existsQuery(ctx, q, name)
}

// ViewExists reports whether a view with the given name exists.
func (c *DB) ViewExists(ctx context.Context, name string) (bool, error) {
	const q = `
	SELECT 1
	FROM information_schema.views
	WHERE table_schema IN ('main','temp')
	  AND lower(table_name) = lower(?)
	LIMIT 1;`
	return c.existsQuery(ctx, q, name)
}

// ListViews returns the names of all views, sorted.
func (c *DB) ListViews(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, `
	SELECT table_name
	FROM information_schema.views
	WHERE table_schema IN ('main','temp')
	ORDER BY 1;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

func (c *DB) existsQuery(ctx context.Context, query string, args ...any) (bool, error) {
	var one int
	err := c.db.QueryRowContext(ctx, query, args...).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

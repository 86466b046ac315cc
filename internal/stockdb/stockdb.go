// Package stockdb is the securities master: a small SQLite table mapping
// A-share symbols to display names, refreshed from the live spot table.
package stockdb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"lumen/internal/universe"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Lister supplies the current spot table. *universe.Client satisfies it.
type Lister interface {
	Spot(ctx context.Context) ([]universe.Listing, error)
}

// Stock is one row of stock_info.
type Stock struct {
	ID     int64
	Symbol string
	Name   string
}

// DB wraps the securities-master database.
type DB struct {
	db     *sql.DB
	lister Lister
	log    *slog.Logger
}

// Open opens (or creates) the database at dbPath and ensures the schema.
// A directory path gets the default file name appended.
func Open(dbPath string, lister Lister, log *slog.Logger) (*DB, error) {
	if log == nil {
		log = slog.Default()
	}
	if filepath.Ext(dbPath) == "" {
		dbPath = filepath.Join(dbPath, "stock.sqlite")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	schema := `CREATE TABLE IF NOT EXISTS stock_info (
		stock_id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol   TEXT NOT NULL UNIQUE,
		name     TEXT NOT NULL
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating stock_info: %w", err)
	}
	return &DB{db: db, lister: lister, log: log}, nil
}

func (s *DB) Close() error {
	return s.db.Close()
}

// ListStocks returns all known stocks ordered by symbol. When the table is
// empty, or update is set, it first refreshes from the spot table. A refresh
// failure is fatal only when there is nothing to fall back on; otherwise it
// is logged and the stale rows are returned.
func (s *DB) ListStocks(ctx context.Context, update bool) ([]Stock, error) {
	empty, err := s.empty(ctx)
	if err != nil {
		return nil, err
	}

	if update || empty {
		if err := s.refresh(ctx); err != nil {
			if empty {
				return nil, fmt.Errorf("refreshing empty stock_info: %w", err)
			}
			s.log.Warn("stock_info refresh failed, returning existing rows", "err", err)
		}
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT stock_id, symbol, name FROM stock_info ORDER BY symbol")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Stock
	for rows.Next() {
		var st Stock
		if err := rows.Scan(&st.ID, &st.Symbol, &st.Name); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *DB) empty(ctx context.Context) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM stock_info LIMIT 1").Scan(&one)
	switch {
	case err == sql.ErrNoRows:
		return true, nil
	case err != nil:
		return false, err
	default:
		return false, nil
	}
}

// refresh upserts the spot table into stock_info. Duplicate symbols in the
// feed resolve last-wins; blank symbols are dropped.
func (s *DB) refresh(ctx context.Context) error {
	if s.lister == nil {
		return fmt.Errorf("no spot lister configured")
	}
	listings, err := s.lister.Spot(ctx)
	if err != nil {
		return fmt.Errorf("fetching spot table: %w", err)
	}
	if len(listings) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO stock_info (symbol, name) VALUES (?, ?)
		ON CONFLICT(symbol) DO UPDATE SET name = excluded.name`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, l := range listings {
		symbol := strings.TrimSpace(l.Code)
		if symbol == "" {
			continue
		}
		if _, err := stmt.ExecContext(ctx, symbol, strings.TrimSpace(l.Name)); err != nil {
			return fmt.Errorf("upserting %s: %w", symbol, err)
		}
	}
	return tx.Commit()
}

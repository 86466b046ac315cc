package catalog

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// ValueQuerier is the single-value query capability the inspector needs.
// *DB satisfies it; tests substitute a fake.
type ValueQuerier interface {
	QueryValue(ctx context.Context, query string, args ...any) (any, error)
}

// Inspector answers "what is already on disk" questions by querying the
// engine over the symbol's partition glob.
type Inspector struct {
	Q        ValueQuerier
	DataRoot string
}

// NewInspector creates an Inspector reading the ohlcva lake under dataRoot.
func NewInspector(q ValueQuerier, dataRoot string) *Inspector {
	return &Inspector{Q: q, DataRoot: dataRoot}
}

// LatestTradingDay returns the maximum trading_day persisted for one
// storage symbol, in UTC. Any failure — no matching files, a corrupt
// partition, an empty result — reads as "no history" (ok=false), so a
// first-time symbol and a damaged one both plan a full fetch.
func (in *Inspector) LatestTradingDay(ctx context.Context, symbol string) (time.Time, bool) {
	spec := OHLCVASpec{}
	glob, err := spec.Glob("1d", filepath.Join(in.DataRoot, spec.Name()))
	if err != nil {
		return time.Time{}, false
	}
	// Scope the glob to the one symbol partition.
	glob = strings.Replace(glob, "symbol=*", "symbol="+symbol, 1)

	q := fmt.Sprintf("SELECT max(trading_day) FROM read_parquet('%s');", SQLLiteral(glob))
	v, err := in.Q.QueryValue(ctx, q)
	if err != nil || v == nil {
		return time.Time{}, false
	}

	switch t := v.(type) {
	case time.Time:
		return t.UTC(), true
	case string:
		for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02", time.RFC3339} {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed.UTC(), true
			}
		}
	}
	return time.Time{}, false
}

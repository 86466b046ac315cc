// Package source defines the data-provider capability the fetch pipeline
// consumes, the static provider registry, and the shared concurrency
// machinery providers use to fan fetches out per symbol.
package source

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"lumen/internal/domain"
)

// FetchRequest is one unit of work handed to a provider: fetch bars for a
// set of symbols over one range at one interval.
type FetchRequest struct {
	Dataset  string // "ohlcva"
	Interval string // "1d"
	Symbols  []string
	Start    time.Time         // UTC
	End      time.Time         // UTC
	Options  map[string]string // provider pass-through: adjustment etc.
}

// Batch is zero or more validated bars for a single symbol. A provider
// yields one or more batches per symbol and none at all for a symbol that
// had no data or failed permanently.
type Batch struct {
	Symbol string
	Bars   []domain.Bar
}

// Capability declares what a provider can serve for one dataset.
type Capability struct {
	Intervals []string
	TZ        string
}

// Source is the provider capability: produce a lazy sequence of validated
// record batches for a request. The returned channel is closed when the
// request is exhausted; batches arrive in completion order, not symbol
// order.
type Source interface {
	Name() string
	FetchBars(ctx context.Context, req FetchRequest) <-chan Batch
	Capabilities() map[string]Capability
}

// SymbolNormalizer is implemented by providers whose market has a storage
// symbol form differing from common user input (CN exchange suffixes).
// Providers whose tickers are already canonical leave it unimplemented.
type SymbolNormalizer interface {
	NormalizeSymbol(raw string) string
}

// ---------------------------------------------------------------------------
// Static registry
// ---------------------------------------------------------------------------

var (
	regMu    sync.RWMutex
	registry = make(map[string]Source)
)

// Register adds a provider to the static registry, replacing any previous
// registration under the same name. Called from package init or process
// startup.
func Register(src Source) {
	regMu.Lock()
	defer regMu.Unlock()
	registry[src.Name()] = src
}

// Get returns the provider registered under name.
func Get(name string) (Source, error) {
	regMu.RLock()
	defer regMu.RUnlock()
	src, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown source %q", name)
	}
	return src, nil
}

// Names lists the registered provider names, sorted.
func Names() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

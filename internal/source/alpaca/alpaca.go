// Package alpaca adapts the Alpaca market-data API as a bar source for US
// equities. Symbols pass through unchanged; Alpaca tickers are already the
// canonical storage form.
package alpaca

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"lumen/internal/domain"
	"lumen/internal/source"
	"lumen/internal/validate"
)

// Options configures the source.
type Options struct {
	APIKey    string
	APISecret string
	// BaseURL overrides the market-data endpoint.
	BaseURL string
	// Feed selects the data feed ("iex", "sip"); empty uses the account
	// default.
	Feed string
	Pool source.PoolConfig
}

// barGetter is the one SDK call the source depends on; tests fake it.
type barGetter interface {
	GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error)
}

// Source fetches daily bars, one SDK call per symbol, through the shared
// fan-out pool.
type Source struct {
	client barGetter
	feed   string
	pool   source.PoolConfig
	log    *slog.Logger
}

var _ source.Source = (*Source)(nil)

// New creates the alpaca source.
func New(opts Options) *Source {
	clientOpts := marketdata.ClientOpts{
		APIKey:    opts.APIKey,
		APISecret: opts.APISecret,
	}
	if opts.BaseURL != "" {
		clientOpts.BaseURL = opts.BaseURL
	}
	return &Source{
		client: marketdata.NewClient(clientOpts),
		feed:   opts.Feed,
		pool:   opts.Pool,
		log:    slog.Default().With("source", "alpaca"),
	}
}

// Name returns the registry key.
func (s *Source) Name() string { return "alpaca" }

// Capabilities declares daily bars for the ohlcva dataset, in UTC.
func (s *Source) Capabilities() map[string]source.Capability {
	return map[string]source.Capability{
		"ohlcva": {Intervals: []string{domain.Interval1d}, TZ: "UTC"},
	}
}

// FetchBars fans out one fetch per symbol and yields finalized batches in
// completion order.
func (s *Source) FetchBars(ctx context.Context, req source.FetchRequest) <-chan source.Batch {
	if req.Interval != domain.Interval1d {
		out := make(chan source.Batch)
		close(out)
		return out
	}

	return source.FanOut(ctx, s.pool, req.Symbols, func(ctx context.Context, sym string) ([]domain.Bar, error) {
		return s.fetchSymbol(ctx, sym, req.Start, req.End)
	})
}

func (s *Source) fetchSymbol(ctx context.Context, sym string, start, end time.Time) ([]domain.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := s.client.GetBars(sym, marketdata.GetBarsRequest{
		TimeFrame: marketdata.OneDay,
		Start:     start,
		End:       end,
		Feed:      marketdata.Feed(s.feed),
	})
	if err != nil {
		return nil, fmt.Errorf("GetBars %s: %w", sym, err)
	}
	if len(raw) == 0 {
		return nil, nil
	}

	ingestTS := time.Now().UTC()
	bars := make([]domain.Bar, 0, len(raw))
	for _, ab := range raw {
		ts := ab.Timestamp.UTC()
		bars = append(bars, domain.Bar{
			TS:         ts,
			TradingDay: time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC),
			Symbol:     sym,
			Interval:   domain.Interval1d,
			Open:       ab.Open,
			High:       ab.High,
			Low:        ab.Low,
			Close:      ab.Close,
			Volume:     float64(ab.Volume),
			Amount:     domain.NaN(), // provider reports volume/VWAP, not turnover
			Source:     s.Name(),
			IngestTS:   ingestTS,
		})
	}

	clean, _ := validate.Finalize(bars)
	return clean, nil
}

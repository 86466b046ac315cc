package source

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"lumen/internal/domain"
)

// PoolConfig tunes the per-symbol fan-out every provider shares.
type PoolConfig struct {
	// Concurrency bounds the number of in-flight symbol fetches.
	Concurrency int
	// RatePerSec spaces dispatches within each concurrency slot: each
	// worker sleeps 1/RatePerSec before its attempt.
	RatePerSec float64
	// Retries is the number of re-attempts after the first failure.
	Retries int
	// Timeout bounds each individual attempt.
	Timeout time.Duration
	// Buffer is the result channel capacity.
	Buffer int
}

func (c PoolConfig) withDefaults() PoolConfig {
	if c.Concurrency <= 0 {
		c.Concurrency = 8
	}
	if c.RatePerSec <= 0 {
		c.RatePerSec = 8
	}
	if c.Retries < 0 {
		c.Retries = 0
	}
	if c.Timeout <= 0 {
		c.Timeout = 20 * time.Second
	}
	if c.Buffer <= 0 {
		c.Buffer = c.Concurrency
	}
	return c
}

// FetchFunc fetches all bars for one symbol. It runs inside the pool's
// retry/timeout envelope; returning an error triggers a retry, and nil
// bars mean the symbol had no data.
type FetchFunc func(ctx context.Context, symbol string) ([]domain.Bar, error)

// FanOut dispatches one fetch per symbol through a bounded worker pool and
// streams the results in completion order on the returned channel, which
// is closed once every symbol is drained.
//
// Each symbol gets up to 1+Retries attempts with exponential backoff
// between them: min(60s, 2^attempt seconds) plus up to 1s of jitter. A
// symbol that exhausts its retries yields nothing — failure isolation is
// per symbol, so one dead symbol cannot abort its siblings or the run.
func FanOut(ctx context.Context, cfg PoolConfig, symbols []string, fetch FetchFunc) <-chan Batch {
	cfg = cfg.withDefaults()
	out := make(chan Batch, cfg.Buffer)
	sem := make(chan struct{}, cfg.Concurrency)
	pacing := time.Duration(float64(time.Second) / cfg.RatePerSec)

	go func() {
		defer close(out)
		var wg sync.WaitGroup
		defer wg.Wait() // all workers exit before out closes

		for _, sym := range symbols {
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			wg.Add(1)
			go func(sym string) {
				defer wg.Done()
				defer func() { <-sem }()

				bars := fetchWithRetry(ctx, cfg, pacing, sym, fetch)
				if len(bars) == 0 {
					return
				}
				select {
				case out <- Batch{Symbol: sym, Bars: bars}:
				case <-ctx.Done():
				}
			}(sym)
		}
	}()

	return out
}

func fetchWithRetry(ctx context.Context, cfg PoolConfig, pacing time.Duration, symbol string, fetch FetchFunc) []domain.Bar {
	var lastErr error
	for attempt := 0; attempt <= cfg.Retries; attempt++ {
		// Simple rate limiting: fixed spacing per slot before each attempt.
		if !sleepCtx(ctx, pacing) {
			return nil
		}

		attemptCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
		bars, err := fetch(attemptCtx, symbol)
		cancel()
		if err == nil {
			return bars
		}
		lastErr = err

		if attempt < cfg.Retries {
			backoff := time.Duration(1<<uint(attempt)) * time.Second
			if backoff > 60*time.Second {
				backoff = 60 * time.Second
			}
			backoff += time.Duration(rand.Int63n(int64(time.Second)))
			if !sleepCtx(ctx, backoff) {
				return nil
			}
		}
	}

	slog.Debug("symbol fetch exhausted retries", "symbol", symbol, "err", lastErr)
	return nil
}

// sleepCtx sleeps for d or until ctx is done; it reports whether the full
// sleep completed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

package ingest

import (
	"log/slog"
	"sync"
	"time"
)

// progress tracks which symbols have been fully processed during a run.
// Marking is idempotent so a symbol that yields several batches, or is
// swept again after its task drains, is still counted once.
type progress struct {
	log   *slog.Logger
	total int
	every int

	mu    sync.Mutex
	done  map[string]struct{}
	start time.Time
}

func newProgress(log *slog.Logger, total int) *progress {
	every := total / 10
	if every < 1 {
		every = 1
	}
	return &progress{
		log:   log,
		total: total,
		every: every,
		done:  make(map[string]struct{}),
		start: time.Now(),
	}
}

// Mark records a symbol as processed. Repeated marks are no-ops.
func (p *progress) Mark(symbol string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.done[symbol]; ok {
		return
	}
	p.done[symbol] = struct{}{}

	n := len(p.done)
	if n%p.every == 0 || n == p.total {
		p.log.Info("progress",
			"processed", n,
			"total", p.total,
			"elapsed", time.Since(p.start).Round(time.Second),
		)
	}
}

// Count returns how many distinct symbols were marked.
func (p *progress) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.done)
}

// Package planner computes what still needs fetching per symbol and turns
// the result into batched fetch tasks.
package planner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"lumen/internal/source"
)

// Mode selects how the planner treats existing history.
type Mode string

const (
	// ModeFull fetches the whole requested range for every symbol.
	ModeFull Mode = "full"
	// ModeIncremental fetches from the day after the latest persisted
	// trading day, shifted back by the lookback window.
	ModeIncremental Mode = "incremental"
	// ModeAuto behaves like incremental when history exists and like full
	// when it does not.
	ModeAuto Mode = "auto"
)

// ParseMode validates a mode string.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeFull, ModeIncremental, ModeAuto:
		return m, nil
	default:
		return "", fmt.Errorf("unknown mode %q (want full, incremental, or auto)", s)
	}
}

// Normalizer maps a raw user symbol to its storage form. Providers whose
// market has a canonical storage convention supply one; nil leaves symbols
// untouched.
type Normalizer func(raw string) string

// LatestDater answers the latest persisted trading day for a storage
// symbol; ok=false means no usable history.
type LatestDater interface {
	LatestTradingDay(ctx context.Context, symbol string) (time.Time, bool)
}

// Groups maps an effective start date (UTC midnight) to the storage
// symbols that share it, so they can be fetched together.
type Groups map[time.Time][]string

// Symbols returns the total number of grouped symbols.
func (g Groups) Symbols() int {
	n := 0
	for _, syms := range g {
		n += len(syms)
	}
	return n
}

// BuildGroups resolves each symbol's effective fetch start and groups
// symbols sharing one. It returns the groups and the number of symbols
// skipped as already up to date.
//
// Symbols pass through norm first, so history lookups and grouping use the
// storage form the provider writes under; a nil norm keeps symbols verbatim
// (US tickers are already canonical). Every instant is normalized to UTC
// before any comparison; callers may pass whatever zone they like. Per
// symbol: full mode starts at userStart; otherwise the day after the latest
// persisted trading day (userStart when there is no history — incremental
// with no history intentionally matches auto). The start then shifts back
// lookbackDays to absorb late provider revisions, clamps to userStart, and
// a start past userEnd skips the symbol entirely.
func BuildGroups(ctx context.Context, insp LatestDater, symbols []string, norm Normalizer, userStart, userEnd time.Time, mode Mode, lookbackDays int) (Groups, int) {
	userStart = userStart.UTC()
	userEnd = userEnd.UTC()

	groups := make(Groups)
	skipped := 0

	for _, sym := range symbols {
		storeSym := sym
		if norm != nil {
			storeSym = norm(sym)
		}

		start := userStart
		if mode != ModeFull {
			if last, ok := insp.LatestTradingDay(ctx, storeSym); ok {
				start = last.UTC().AddDate(0, 0, 1)
			}
		}

		if lookbackDays > 0 {
			start = start.AddDate(0, 0, -lookbackDays)
		}
		if start.Before(userStart) {
			start = userStart
		}
		if start.After(userEnd) {
			skipped++
			continue
		}

		day := truncateDay(start)
		groups[day] = append(groups[day], storeSym)
	}

	return groups, skipped
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Task is one unit of dispatch: fetch a symbol batch from one source over
// one range.
type Task struct {
	Source   string
	Symbols  []string
	Start    time.Time
	End      time.Time
	Interval string
	Options  map[string]string
}

// Plan is an ordered list of tasks for one symbol group.
type Plan struct {
	Tasks []Task
}

// Policy shapes plan construction.
type Policy struct {
	// Primary is the source every task binds to. Default "eastmoney".
	Primary string
	// BatchSize is the number of symbols per task. Default 64.
	BatchSize int
	// Options are passed through to the source on every task.
	Options map[string]string
}

// BuildPlan slices symbols into fixed-size batches under one source
// policy. Coverage scoring and multi-source failover are future work.
func BuildPlan(symbols []string, start, end time.Time, interval string, policy Policy) Plan {
	primary := policy.Primary
	if primary == "" {
		primary = "eastmoney"
	}
	batch := policy.BatchSize
	if batch <= 0 {
		batch = 64
	}

	var tasks []Task
	for i := 0; i < len(symbols); i += batch {
		j := i + batch
		if j > len(symbols) {
			j = len(symbols)
		}
		tasks = append(tasks, Task{
			Source:   primary,
			Symbols:  symbols[i:j],
			Start:    start,
			End:      end,
			Interval: interval,
			Options:  policy.Options,
		})
	}
	return Plan{Tasks: tasks}
}

// Request converts a task into the provider fetch request.
func (t Task) Request(dataset string) source.FetchRequest {
	return source.FetchRequest{
		Dataset:  dataset,
		Interval: t.Interval,
		Symbols:  t.Symbols,
		Start:    t.Start,
		End:      t.End,
		Options:  t.Options,
	}
}

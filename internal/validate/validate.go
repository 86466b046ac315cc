// Package validate normalizes raw bar batches into the canonical record
// shape: primary-key uniqueness, price/volume sanity, deterministic order.
package validate

import (
	"math"
	"sort"

	"lumen/internal/domain"
)

// Rejection reasons reported by Finalize.
const (
	ReasonBadTimestamp    = "bad_timestamp"
	ReasonBadPrice        = "neg_or_zero_price"
	ReasonHiLo            = "hi_lo_inconsistent"
	ReasonNegVolumeAmount = "neg_volume_amount"
)

// Report maps a rejection reason to the number of rows it removed.
type Report map[string]int

// Dropped returns the total number of rows removed across all filters.
func (r Report) Dropped() int {
	n := 0
	for _, c := range r {
		n += c
	}
	return n
}

// Finalize cleans a raw batch in place of the provider's shape:
//
//  1. rows without a valid event timestamp are dropped,
//  2. rows sharing (symbol, ts, interval) collapse to one, last-seen wins,
//  3. sanity filters remove rows with non-positive prices, high < low, or
//     negative volume/amount (NaN fields are retained — missing is not bad),
//  4. survivors are sorted by (symbol, ts, interval).
//
// Data-quality issues never produce an error; each filter increments a
// counter in the returned report.
func Finalize(bars []domain.Bar) ([]domain.Bar, Report) {
	report := Report{}

	withTS := bars[:0:0]
	for _, b := range bars {
		if b.TS.IsZero() {
			report[ReasonBadTimestamp]++
			continue
		}
		withTS = append(withTS, b)
	}

	deduped := dropPKDuplicates(withTS)

	out := make([]domain.Bar, 0, len(deduped))
	for _, b := range deduped {
		switch {
		case badPrice(b):
			report[ReasonBadPrice]++
		case definitelyLess(b.High, b.Low):
			report[ReasonHiLo]++
		case definitelyNegative(b.Volume) || definitelyNegative(b.Amount):
			report[ReasonNegVolumeAmount]++
		default:
			out = append(out, b)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Symbol != out[j].Symbol {
			return out[i].Symbol < out[j].Symbol
		}
		if !out[i].TS.Equal(out[j].TS) {
			return out[i].TS.Before(out[j].TS)
		}
		return out[i].Interval < out[j].Interval
	})

	return out, report
}

// dropPKDuplicates collapses rows sharing a primary key, keeping the
// last-seen row. Input order is otherwise preserved.
func dropPKDuplicates(bars []domain.Bar) []domain.Bar {
	seen := make(map[domain.Key]int, len(bars))
	out := make([]domain.Bar, 0, len(bars))
	for _, b := range bars {
		k := b.PrimaryKey()
		if i, ok := seen[k]; ok {
			out[i] = b
			continue
		}
		seen[k] = len(out)
		out = append(out, b)
	}
	return out
}

// badPrice reports whether any OHLC field is present and <= 0.
func badPrice(b domain.Bar) bool {
	for _, v := range [...]float64{b.Open, b.High, b.Low, b.Close} {
		if !math.IsNaN(v) && v <= 0 {
			return true
		}
	}
	return false
}

// definitelyLess is a < b with NaN on either side treated as unknown.
func definitelyLess(a, b float64) bool {
	return !math.IsNaN(a) && !math.IsNaN(b) && a < b
}

func definitelyNegative(v float64) bool {
	return !math.IsNaN(v) && v < 0
}

// Package domain defines the canonical record types shared by the
// ingestion pipeline, the file lake, and the catalog.
package domain

import (
	"math"
	"time"
)

// Interval tags supported by the lake. Only daily bars are implemented;
// minute variants are reserved for the partition layout.
const (
	Interval1d = "1d"
)

// Bar is one OHLCVA observation for a symbol at a fixed interval.
//
// TS is the event instant in UTC. TradingDay is the calendar day of the
// observation, stored as UTC midnight. Float fields use NaN as the missing
// marker; the validator decides which missing values disqualify a row.
type Bar struct {
	TS         time.Time
	TradingDay time.Time
	Symbol     string // storage identifier, exchange-suffixed
	Interval   string
	Open       float64
	High       float64
	Low        float64
	Close      float64
	Volume     float64
	Amount     float64
	Source     string
	IngestTS   time.Time
}

// Key identifies a bar uniquely within the lake.
type Key struct {
	Symbol   string
	TS       int64 // Unix ms
	Interval string
}

// PrimaryKey returns the (symbol, ts, interval) identity of the bar.
func (b Bar) PrimaryKey() Key {
	return Key{Symbol: b.Symbol, TS: b.TS.UnixMilli(), Interval: b.Interval}
}

// NaN is the missing-value marker for numeric bar fields.
func NaN() float64 { return math.NaN() }

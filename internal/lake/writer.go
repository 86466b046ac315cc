// Package lake writes canonical bar batches into the partitioned Parquet
// file lake and reads them back.
package lake

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/parquet-go/parquet-go"

	"lumen/internal/domain"
)

// BarRow is the Parquet schema for OHLCVA bar data. Timestamps are Unix ms;
// trading_day is the calendar day at UTC midnight.
type BarRow struct {
	TS         int64   `parquet:"ts,timestamp(millisecond)"`
	TradingDay int64   `parquet:"trading_day,timestamp(millisecond)"`
	Symbol     string  `parquet:"symbol"`
	Interval   string  `parquet:"interval"`
	Open       float64 `parquet:"open"`
	High       float64 `parquet:"high"`
	Low        float64 `parquet:"low"`
	Close      float64 `parquet:"close"`
	Volume     float64 `parquet:"volume"`
	Amount     float64 `parquet:"amount"`
	Source     string  `parquet:"source"`
	IngestTS   int64   `parquet:"ingest_ts,timestamp(millisecond)"`
}

// Writer persists bar batches under <DataRoot>/<Dataset>/<variant>/.
type Writer struct {
	DataRoot string
	Dataset  string
}

// NewWriter creates a Writer for the ohlcva dataset rooted at dataRoot.
func NewWriter(dataRoot string) *Writer {
	return &Writer{DataRoot: dataRoot, Dataset: "ohlcva"}
}

// WrittenFile reports one Parquet file produced by WriteBars.
type WrittenFile struct {
	Path string
	Rows int
}

// WriteBars writes a batch into the lake and returns the files it produced,
// one per touched partition, in deterministic order.
//
// Rows are grouped into (symbol, year, month) partitions derived from the
// trading day. Each group becomes one immutable file named
// part-<start>-<end>-<hash8>.parquet from the group's (symbol, min ts,
// max ts), so re-writing the same logical range overwrites instead of
// accumulating. Files are written to a temporary path in the target
// directory and atomically renamed into place.
func (w *Writer) WriteBars(bars []domain.Bar) ([]WrittenFile, error) {
	if len(bars) == 0 {
		return nil, nil
	}

	type partition struct {
		symbol string
		year   int
		month  int
	}
	groups := make(map[partition][]BarRow)
	for _, b := range bars {
		day := b.TradingDay.UTC()
		k := partition{symbol: b.Symbol, year: day.Year(), month: int(day.Month())}
		groups[k] = append(groups[k], toRow(b))
	}

	// Deterministic write order.
	keys := make([]partition, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.symbol != b.symbol {
			return a.symbol < b.symbol
		}
		if a.year != b.year {
			return a.year < b.year
		}
		return a.month < b.month
	})

	var written []WrittenFile
	for _, k := range keys {
		rows := groups[k]
		interval := rows[0].Interval
		dir := filepath.Join(
			w.DataRoot, w.Dataset, interval,
			fmt.Sprintf("symbol=%s", k.symbol),
			fmt.Sprintf("year=%d", k.year),
			fmt.Sprintf("month=%02d", k.month),
		)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating partition dir: %w", err)
		}

		path := filepath.Join(dir, partFilename(k.symbol, rows))
		if err := writeParquetAtomic(path, rows); err != nil {
			return nil, fmt.Errorf("writing %s/%d-%02d: %w", k.symbol, k.year, k.month, err)
		}
		written = append(written, WrittenFile{Path: path, Rows: len(rows)})
	}
	return written, nil
}

// WriteEmpty writes a zero-row Parquet file with the full bar schema. Used
// as the self-describing placeholder for datasets without data yet.
func WriteEmpty(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return writeParquetAtomic(path, []BarRow{})
}

// ReadBarRows reads every row from one lake file.
func ReadBarRows(path string) ([]BarRow, error) {
	return parquet.ReadFile[BarRow](path)
}

// partFilename derives the idempotent file name from the group's symbol
// and ts range: part-<start>-<end>-<md5[:8]>.parquet.
func partFilename(symbol string, rows []BarRow) string {
	minTS, maxTS := rows[0].TS, rows[0].TS
	for _, r := range rows[1:] {
		if r.TS < minTS {
			minTS = r.TS
		}
		if r.TS > maxTS {
			maxTS = r.TS
		}
	}
	start := time.UnixMilli(minTS).UTC().Format("20060102")
	end := time.UnixMilli(maxTS).UTC().Format("20060102")

	sum := md5.Sum([]byte(fmt.Sprintf("%s-%s-%s", symbol, start, end)))
	return fmt.Sprintf("part-%s-%s-%s.parquet", start, end, hex.EncodeToString(sum[:])[:8])
}

// writeParquetAtomic writes rows to path via a same-directory temp file and
// an atomic rename, so a crash never leaves a partial file at path.
func writeParquetAtomic(path string, rows []BarRow) error {
	tmp := path + ".tmp"
	if err := parquet.WriteFile(tmp, rows); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func toRow(b domain.Bar) BarRow {
	return BarRow{
		TS:         b.TS.UnixMilli(),
		TradingDay: b.TradingDay.UnixMilli(),
		Symbol:     b.Symbol,
		Interval:   b.Interval,
		Open:       b.Open,
		High:       b.High,
		Low:        b.Low,
		Close:      b.Close,
		Volume:     b.Volume,
		Amount:     b.Amount,
		Source:     b.Source,
		IngestTS:   b.IngestTS.UnixMilli(),
	}
}

package validate

import (
	"math"
	"testing"
	"time"

	"lumen/internal/domain"
)

func mkBar(symbol string, day int, close float64) domain.Bar {
	ts := time.Date(2022, 3, day, 0, 0, 0, 0, time.UTC)
	return domain.Bar{
		TS:         ts,
		TradingDay: ts,
		Symbol:     symbol,
		Interval:   domain.Interval1d,
		Open:       close - 1,
		High:       close + 1,
		Low:        close - 2,
		Close:      close,
		Volume:     1000,
		Amount:     1e6,
		Source:     "test",
	}
}

func TestFinalizePKDedupLastWins(t *testing.T) {
	first := mkBar("000001.SZ", 15, 10)
	second := mkBar("000001.SZ", 15, 11) // same PK, different close

	out, _ := Finalize([]domain.Bar{first, second})
	if len(out) != 1 {
		t.Fatalf("got %d rows, want 1", len(out))
	}
	if out[0].Close != 11 {
		t.Errorf("dedup kept close=%v, want last-seen 11", out[0].Close)
	}
}

func TestFinalizeSanityFilters(t *testing.T) {
	good := mkBar("000001.SZ", 1, 10)

	zeroPrice := mkBar("000001.SZ", 2, 10)
	zeroPrice.Open = 0

	inverted := mkBar("000001.SZ", 3, 10)
	inverted.High, inverted.Low = 5, 9

	negVolume := mkBar("000001.SZ", 4, 10)
	negVolume.Volume = -1

	badTS := mkBar("000001.SZ", 5, 10)
	badTS.TS = time.Time{}

	out, report := Finalize([]domain.Bar{good, zeroPrice, inverted, negVolume, badTS})
	if len(out) != 1 {
		t.Fatalf("got %d surviving rows, want 1", len(out))
	}
	if out[0].TradingDay.Day() != 1 {
		t.Errorf("wrong survivor: %v", out[0])
	}

	want := Report{
		ReasonBadPrice:        1,
		ReasonHiLo:            1,
		ReasonNegVolumeAmount: 1,
		ReasonBadTimestamp:    1,
	}
	for reason, n := range want {
		if report[reason] != n {
			t.Errorf("report[%s] = %d, want %d", reason, report[reason], n)
		}
	}
	if report.Dropped() != 4 {
		t.Errorf("Dropped() = %d, want 4", report.Dropped())
	}
}

func TestFinalizeRetainsMissingValues(t *testing.T) {
	// NaN means "missing", which the sanity filters must not treat as bad.
	b := mkBar("600000.SH", 7, 10)
	b.Open = math.NaN()
	b.Volume = math.NaN()

	out, report := Finalize([]domain.Bar{b})
	if len(out) != 1 {
		t.Fatalf("row with missing fields was dropped: %v", report)
	}
}

func TestFinalizeSortsBySymbolThenTS(t *testing.T) {
	bars := []domain.Bar{
		mkBar("600000.SH", 2, 10),
		mkBar("000001.SZ", 3, 10),
		mkBar("000001.SZ", 1, 10),
	}

	out, _ := Finalize(bars)
	if len(out) != 3 {
		t.Fatalf("got %d rows, want 3", len(out))
	}
	if out[0].Symbol != "000001.SZ" || out[0].TradingDay.Day() != 1 {
		t.Errorf("unexpected first row: %+v", out[0])
	}
	if out[2].Symbol != "600000.SH" {
		t.Errorf("unexpected last row: %+v", out[2])
	}
}

func TestFinalizeInvariantHolds(t *testing.T) {
	// Random-ish mixed batch: every survivor must satisfy the invariants.
	var bars []domain.Bar
	for d := 1; d <= 20; d++ {
		b := mkBar("300750.SZ", d, float64(d))
		if d%4 == 0 {
			b.Low = -1
		}
		if d%5 == 0 {
			b.High, b.Low = b.Low, b.High
		}
		bars = append(bars, b)
	}

	out, _ := Finalize(bars)
	for _, b := range out {
		for _, v := range []float64{b.Open, b.High, b.Low, b.Close} {
			if !math.IsNaN(v) && v <= 0 {
				t.Fatalf("survivor has non-positive price: %+v", b)
			}
		}
		if !math.IsNaN(b.High) && !math.IsNaN(b.Low) && b.High < b.Low {
			t.Fatalf("survivor has high < low: %+v", b)
		}
	}
}

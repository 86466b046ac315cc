package domain

import "testing"

func TestNormalizeCNSymbol(t *testing.T) {
	cases := []struct {
		in        string
		wantFetch string
		wantStore string
	}{
		{"000001", "000001", "000001.SZ"},
		{"600000", "600000", "600000.SH"},
		{"300750", "300750", "300750.SZ"},
		{"600000.sh", "600000", "600000.SH"},
		{"000001.SZ", "000001", "000001.SZ"},
		{"000001.XX", "000001", "000001.SZ"}, // unknown exchange defaults to SZ
		{"1", "000001", "000001.SZ"},         // zero-padded
		{"  600519.SH ", "600519", "600519.SH"},
		{"900901", "900901", "900901.SZ"}, // unrecognised leading digit
	}

	for _, c := range cases {
		fetch, store := NormalizeCNSymbol(c.in)
		if fetch != c.wantFetch || store != c.wantStore {
			t.Errorf("NormalizeCNSymbol(%q) = (%q, %q), want (%q, %q)",
				c.in, fetch, store, c.wantFetch, c.wantStore)
		}
	}
}

func TestBarPrimaryKey(t *testing.T) {
	a := Bar{Symbol: "000001.SZ", Interval: Interval1d}
	b := Bar{Symbol: "000001.SZ", Interval: Interval1d}
	if a.PrimaryKey() != b.PrimaryKey() {
		t.Error("identical bars should share a primary key")
	}

	b.Symbol = "600000.SH"
	if a.PrimaryKey() == b.PrimaryKey() {
		t.Error("bars for different symbols should not share a primary key")
	}
}

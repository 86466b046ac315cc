package catalog

import (
	"path/filepath"
	"testing"
)

func TestQuoteIdent(t *testing.T) {
	cases := []struct{ in, want string }{
		{"ohlcva_1d_v", "ohlcva_1d_v"},
		{"with space", `"with space"`},
		{"a.b", `"a.b"`},
		{`od"d`, `"od""d"`},
	}
	for _, c := range cases {
		if got := QuoteIdent(c.in); got != c.want {
			t.Errorf("QuoteIdent(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestSQLLiteral(t *testing.T) {
	if got := SQLLiteral("it's"); got != "it''s" {
		t.Errorf("SQLLiteral = %q", got)
	}
}

func TestIsRemoteURL(t *testing.T) {
	for _, remote := range []string{"s3://bucket/key", "http://host/x", "HTTPS://host/x"} {
		if !IsRemoteURL(remote) {
			t.Errorf("IsRemoteURL(%q) = false, want true", remote)
		}
	}
	for _, local := range []string{"/data/ohlcva", "data/ohlcva", "C:\\data"} {
		if IsRemoteURL(local) {
			t.Errorf("IsRemoteURL(%q) = true, want false", local)
		}
	}
}

func TestGlobRootDir(t *testing.T) {
	glob := filepath.Join("/data", "ohlcva", "1d", "symbol=*", "year=*", "part-*.parquet")
	got := GlobRootDir(glob)
	want := filepath.Join("/data", "ohlcva", "1d")
	if got != want {
		t.Errorf("GlobRootDir(%q) = %q, want %q", glob, got, want)
	}

	// No metacharacters: parent of the whole path.
	if got := GlobRootDir("/data/ohlcva/file.parquet"); got != "/data/ohlcva" {
		t.Errorf("GlobRootDir plain path = %q", got)
	}
}

package catalog

import (
	"path/filepath"
	"strings"
)

// QuoteIdent quotes a SQL identifier when it contains characters that need
// quoting, escaping embedded double quotes.
func QuoteIdent(ident string) string {
	if strings.ContainsAny(ident, " -./\\`\"'") {
		return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
	}
	return ident
}

// SQLLiteral escapes single quotes for use inside a SQL string literal.
func SQLLiteral(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// IsRemoteURL reports whether p points at a remote object store rather
// than the local filesystem.
func IsRemoteURL(p string) bool {
	low := strings.ToLower(p)
	return strings.HasPrefix(low, "s3://") ||
		strings.HasPrefix(low, "http://") ||
		strings.HasPrefix(low, "https://")
}

// GlobRootDir extracts the stable parent directory of a glob pattern: the
// directory of the prefix before the first glob metacharacter. Used for
// cheap existence checks and directory creation.
func GlobRootDir(glob string) string {
	cut := len(glob)
	for _, ch := range []string{"*", "?", "["} {
		if pos := strings.Index(glob, ch); pos != -1 && pos < cut {
			cut = pos
		}
	}
	return filepath.Dir(glob[:cut])
}

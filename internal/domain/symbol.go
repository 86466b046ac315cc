package domain

import "strings"

// NormalizeCNSymbol canonicalizes a China A-share symbol string.
//
// The input may be a bare 6-digit code ("1" is padded to "000001") or a
// code with an exchange suffix in any case ("600000.sh"). It returns the
// fetch code the upstream provider expects (6 digits, no suffix) and the
// storage symbol used in the lake (code plus exchange suffix).
//
// A recognised suffix (SZ/SH) is kept; an unrecognised one is replaced
// with SZ. Without a suffix the exchange is inferred from the leading
// digit: 0 and 3 are Shenzhen, 6 is Shanghai, anything else defaults to
// Shenzhen. The function is total and never fails; malformed input yields
// a best-effort guess.
func NormalizeCNSymbol(sym string) (fetchCode, storageSymbol string) {
	s := strings.ToUpper(strings.TrimSpace(sym))

	if code, exch, ok := strings.Cut(s, "."); ok {
		code = padCode(code)
		if exch != "SZ" && exch != "SH" {
			exch = "SZ"
		}
		return code, code + "." + exch
	}

	code := padCode(s)
	exch := "SZ"
	switch {
	case strings.HasPrefix(code, "0"), strings.HasPrefix(code, "3"):
		exch = "SZ"
	case strings.HasPrefix(code, "6"):
		exch = "SH"
	}
	return code, code + "." + exch
}

// padCode left-pads a code with zeros to 6 characters.
func padCode(code string) string {
	if len(code) >= 6 {
		return code
	}
	return strings.Repeat("0", 6-len(code)) + code
}

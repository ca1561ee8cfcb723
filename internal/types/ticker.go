package types

import (
	"regexp"
	"strings"
)

var tickerPattern = regexp.MustCompile(`^[A-Z0-9_-]{1,16}$`)

// NormalizeTicker upper-cases a raw ticker and reports whether the result
// is well formed: 1-16 characters from [A-Z0-9_-].
func NormalizeTicker(raw string) (string, bool) {
	ticker := strings.ToUpper(strings.TrimSpace(raw))
	return ticker, tickerPattern.MatchString(ticker)
}

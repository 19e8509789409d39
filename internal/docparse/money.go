package docparse

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	millionRe  = regexp.MustCompile(`(?i)(?:M\b|Million)`)
	thousandRe = regexp.MustCompile(`(?i)(?:K\b|Thousand)`)
)

// parseCents converts a captured currency amount to integer cents. The full
// match text is consulted for M/K multiplier suffixes ("$1M", "750 Thousand")
// that sit outside the numeric capture.
func parseCents(amount, fullMatch string) (int64, bool) {
	amount = strings.NewReplacer(",", "", " ", "", "$", "").Replace(amount)
	value, err := strconv.ParseFloat(amount, 64)
	if err != nil {
		return 0, false
	}
	switch {
	case millionRe.MatchString(fullMatch):
		value *= 1_000_000
	case thousandRe.MatchString(fullMatch):
		value *= 1_000
	}
	cents := value * 100
	if math.IsInf(cents, 0) || cents > math.MaxInt64 || cents < 0 {
		return 0, false
	}
	return int64(cents), true
}

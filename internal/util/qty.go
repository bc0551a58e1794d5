package util

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	countPattern     = regexp.MustCompile(`-?\d{1,3}(?:[\s.,]\d{3})+(?:[.,]\d+)?|-?\d+(?:[.,]\d+)?`)
	thousandsDot     = regexp.MustCompile(`^-?\d{1,3}(?:\.\d{3})+$`)
	thousandsComma   = regexp.MustCompile(`^-?\d{1,3}(?:,\d{3})+$`)
	mixedCommaThenDp = regexp.MustCompile(`^-?\d{1,3}(?:,\d{3})+\.\d+$`)
	mixedDotThenDp   = regexp.MustCompile(`^-?\d{1,3}(?:\.\d{3})+,\d+$`)
)

// ParseCount reads an integer quantity out of a spreadsheet cell. Cells coming
// from the portal export may be formatted ("1.234", "1,234", "12.0"); decimals
// are truncated. ok is false when no number is present.
func ParseCount(input string) (int, bool) {
	cell := strings.TrimSpace(strings.ReplaceAll(input, "\u00A0", " "))
	if cell == "" {
		return 0, false
	}
	token := countPattern.FindString(cell)
	if token == "" {
		return 0, false
	}
	parsed, err := strconv.ParseFloat(normalizeNumericToken(token), 64)
	if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
		return 0, false
	}
	return int(math.Trunc(parsed)), true
}

func normalizeNumericToken(token string) string {
	compact := strings.ReplaceAll(token, " ", "")
	switch {
	case thousandsDot.MatchString(compact):
		return strings.ReplaceAll(compact, ".", "")
	case thousandsComma.MatchString(compact):
		return strings.ReplaceAll(compact, ",", "")
	case mixedCommaThenDp.MatchString(compact):
		return strings.ReplaceAll(compact, ",", "")
	case mixedDotThenDp.MatchString(compact):
		return strings.ReplaceAll(strings.ReplaceAll(compact, ".", ""), ",", ".")
	case strings.Contains(compact, ",") && !strings.Contains(compact, "."):
		return strings.ReplaceAll(compact, ",", ".")
	}
	return compact
}

package pipeline

import (
	"regexp"
	"strconv"
	"strings"

	"courierval/internal/connectors"
	"courierval/internal/util"
)

var (
	reContractLine = regexp.MustCompile(`^\d{8,}\s+(?:.*?\s+)?[A-Za-z0-9_-]+\s+(\d+)\s*$`)
	reStatedTotal  = regexp.MustCompile(`(?i)TOTAL[\s:=.\-]*(\d+)`)
	reTotalWord    = regexp.MustCompile(`(?i)TOTAL`)
)

type Totals struct {
	Summed      int
	Stated      int
	SummedFound bool
	StatedFound bool
	Lines       int
}

// Resolved is false when neither a contract line nor a stated total could be
// read from the body.
func (t Totals) Resolved() bool {
	return t.SummedFound || t.StatedFound
}

// ExtractTotals reads the itemized contract lines and the declared total from a
// body. It is best effort: lines that do not look like contract lines are
// skipped and missing values stay at zero.
func ExtractTotals(body string) Totals {
	var out Totals
	for _, line := range util.SplitLines(body) {
		qty, ok := matchContractLine(line)
		if !ok {
			continue
		}
		out.Summed += qty
		out.SummedFound = true
		out.Lines++
	}
	if stated, ok := matchStatedTotal(body); ok {
		out.Stated = stated
		out.StatedFound = true
	}
	return out
}

func matchContractLine(line string) (int, bool) {
	line = strings.TrimSpace(line)
	if line == "" || reTotalWord.MatchString(line) {
		return 0, false
	}
	m := reContractLine.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	return atoi(m[1])
}

func matchStatedTotal(body string) (int, bool) {
	m := reStatedTotal.FindStringSubmatch(body)
	if m == nil {
		return 0, false
	}
	return atoi(m[1])
}

func atoi(digits string) (int, bool) {
	v, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return v, true
}

// BodyFromRaw parses an RFC 822 message and returns its subject and a plain text
// body, falling back to the HTML part when there is no text part.
func BodyFromRaw(raw []byte) (subject, body string, err error) {
	parsed, err := connectors.ParseRaw(raw)
	if err != nil {
		return "", "", err
	}
	return parsed.Subject, parsed.Text, nil
}

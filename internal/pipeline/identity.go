package pipeline

import (
	"regexp"
	"strings"

	"courierval/internal/util"
)

var (
	reLeadingContract = regexp.MustCompile(`^\d{8,}`)
	reClientToken     = regexp.MustCompile(`\b([A-Z][A-Z0-9]*[-_][A-Z0-9_]+)\b`)
	reReplyPrefix     = regexp.MustCompile(`^(?:RE|RES|ENC|FW|FWD|TR)\s*:\s*`)
)

// ResolveClientKey derives the client key from a validation request. Family
// subjects carry the key themselves; everything else takes the first client
// token found on a contract line of the body. An empty key means unresolved.
func ResolveClientKey(subject, body string) string {
	if key, ok := keyFromFamilySubject(subject); ok {
		return key
	}
	key, _ := keyFromBody(body)
	return key
}

func keyFromFamilySubject(subject string) (string, bool) {
	norm := util.Normalize(subject)
	if !strings.Contains(norm, FamilyMarker) {
		return "", false
	}
	norm = stripReplyPrefixes(strings.TrimSpace(norm))
	for _, r := range validationRenderings {
		norm = strings.ReplaceAll(norm, r, "")
	}
	norm = reLooseValidation.ReplaceAllString(norm, "")
	norm = strings.ReplaceAll(norm, CourierToken, "")
	norm = strings.TrimSpace(norm)
	norm = strings.TrimSpace(strings.TrimPrefix(norm, "-"))
	first, _, _ := strings.Cut(norm, " - ")
	first = strings.TrimSpace(first)
	return first, first != ""
}

func stripReplyPrefixes(s string) string {
	for {
		loc := reReplyPrefix.FindStringIndex(s)
		if loc == nil {
			return s
		}
		s = s[loc[1]:]
	}
}

func keyFromBody(body string) (string, bool) {
	for _, line := range util.SplitLines(body) {
		line = strings.TrimSpace(line)
		if !reLeadingContract.MatchString(line) {
			continue
		}
		if m := reClientToken.FindStringSubmatch(line); m != nil {
			return m[1], true
		}
	}
	return "", false
}

package pipeline

import (
	"regexp"
	"strings"

	"courierval/internal"
	"courierval/internal/util"
)

const (
	ValidationKeyword = "VALIDACAO"
	CourierToken      = "CORREIOS"
	FamilyMarker      = "ALELO"
	KitMarker         = "KIT"
)

// Known renderings of the trigger keyword, including the typos seen in the
// wild. Compared after normalization, so accented and plain forms collapse.
var validationRenderings = normalizeAll([]string{
	"VALIDACAO",
	"VALIDAÇÃO",
	"VALDACAO",
	"VALDAÇÃO",
	"VADACAO",
	"VADAÇÃO",
	"VALIDACÃO",
	"VALIDAÇAO",
	"VALI DACAO",
	"VALIDA CAO",
})

// VAL + a short run of D/I/A/C + AO. Bounded so it cannot swallow whole
// sentences; anchored on a word start so AVALIACAO does not qualify.
var reLooseValidation = regexp.MustCompile(`\bVAL[DIAC]{1,6}AO`)

// IsValidationRequest reports whether a subject asks for a delivery
// validation. It errs on the side of accepting: extraction rejects whatever
// does not carry contract lines.
func IsValidationRequest(subject string) bool {
	norm := util.Normalize(subject)
	if norm == "" {
		return false
	}
	for _, r := range validationRenderings {
		if strings.Contains(norm, r) {
			return true
		}
	}
	return reLooseValidation.MatchString(norm)
}

func HasFamilyMarker(texts ...string) bool {
	for _, t := range texts {
		if strings.Contains(util.Normalize(t), FamilyMarker) {
			return true
		}
	}
	return false
}

// HasKitMarker matches KIT anywhere in the normalized text; separators around
// it are optional, so ALELO-KIT, ALELO KIT2 and ALELOKIT all qualify.
func HasKitMarker(text string) bool {
	return strings.Contains(util.Normalize(text), KitMarker)
}

// ClassifyVariant tells plain and kit apart for the ambiguous family. The family
// marker may come from subject or body; the kit marker only counts in the
// subject.
func ClassifyVariant(subject, body string) internal.ClientVariant {
	if !HasFamilyMarker(subject, body) {
		return internal.VariantNone
	}
	if HasKitMarker(subject) {
		return internal.VariantKit
	}
	return internal.VariantPlain
}

// KeyVariant classifies a resolved client key the same way a subject is
// classified.
func KeyVariant(clientKey string) internal.ClientVariant {
	return ClassifyVariant(clientKey, "")
}

func normalizeAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, util.Normalize(v))
	}
	return out
}

package pipeline

import (
	"fmt"

	"courierval/internal"
)

const StageReconcile = "reconcile"

// Reconcile joins the day's records with the portal report. One outcome is
// produced per client key, in the order keys first appear. When a key was
// requested more than once, the latest record decides and the earlier ones
// are reported as duplicates.
func Reconcile(records []internal.EmailRecord, report internal.ExternalReport) ([]internal.ValidationOutcome, []internal.Diagnostic) {
	order := []string{}
	latest := map[string]internal.EmailRecord{}
	dupes := map[string]int{}
	diags := []internal.Diagnostic{}

	for _, rec := range records {
		if prev, seen := latest[rec.ClientKey]; seen {
			dupes[rec.ClientKey]++
			diags = append(diags, internal.Diagnostic{
				Stage:     StageReconcile,
				Level:     internal.LevelWarn,
				Kind:      internal.KindDuplicateKey,
				ClientKey: rec.ClientKey,
				Subject:   prev.Subject,
				Message:   "superseded by a later request for the same client",
			})
		} else {
			order = append(order, rec.ClientKey)
		}
		latest[rec.ClientKey] = rec
	}

	outcomes := make([]internal.ValidationOutcome, 0, len(order))
	for _, key := range order {
		observed, found := report.Lookup(key)
		if !found {
			diags = append(diags, internal.Diagnostic{
				Stage:     StageReconcile,
				Level:     internal.LevelInfo,
				Kind:      internal.KindLookupMiss,
				ClientKey: key,
				Message:   "client missing from report, observed total defaults to 0",
			})
		}
		out := Decide(latest[key], observed)
		out.Duplicates = dupes[key]
		if out.Status == internal.StatusDivergent {
			diags = append(diags, internal.Diagnostic{
				Stage:     StageReconcile,
				Level:     internal.LevelWarn,
				Kind:      internal.KindDivergent,
				ClientKey: key,
				Message:   fmt.Sprintf("stated %d, summed %d, observed %d", out.StatedTotal, out.SummedTotal, out.ObservedTotal),
			})
		}
		outcomes = append(outcomes, out)
	}
	return outcomes, diags
}

// Decide applies the validation priority to a single record: the stated total
// wins when it matches, the summed total is the fallback, anything else
// diverges and displays the stated total.
func Decide(rec internal.EmailRecord, observed int) internal.ValidationOutcome {
	out := internal.ValidationOutcome{
		ClientKey:     rec.ClientKey,
		SummedTotal:   rec.SummedTotal,
		StatedTotal:   rec.StatedTotal,
		ObservedTotal: observed,
	}
	switch {
	case rec.StatedTotal == observed:
		out.Method = internal.MethodStated
		out.DisplayValue = rec.StatedTotal
		out.Status = internal.StatusOK
	case rec.SummedTotal == observed:
		out.Method = internal.MethodSummed
		out.DisplayValue = rec.SummedTotal
		out.Status = internal.StatusOK
	default:
		out.Method = internal.MethodNone
		out.DisplayValue = rec.StatedTotal
		out.Status = internal.StatusDivergent
	}
	return out
}

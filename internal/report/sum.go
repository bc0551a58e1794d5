package report

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"courierval/internal"
	"courierval/internal/util"
)

const (
	deliveredStatus = "ENTREGUE"
	excludedMarker  = ".SD1"
	kitColumnMarker = "_KIT"

	colProduct  = 2 // C
	colContract = 3 // D
	colQuantity = 4 // E
	colStatus   = 6 // G
	minColumns  = colStatus + 1
)

var ErrNarrowSheet = errors.New("report sheet has fewer than 7 columns")

type Sum struct {
	Total    int
	Counted  int
	Skipped  int
	Filtered int
}

// SumDelivered opens a portal export and sums the delivered quantities of its
// first sheet for the given variant.
func SumDelivered(path string, variant internal.ClientVariant) (Sum, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return Sum{}, fmt.Errorf("open report %s: %w", path, err)
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return Sum{}, fmt.Errorf("read report %s: %w", path, err)
	}
	return SumRows(rows, variant)
}

// SumRows applies the delivery filter to a sheet whose first row is the
// header: status column G must read ENTREGUE, contract column D must not carry
// the .SD1 marker, and for the ambiguous family product column C must (kit) or
// must not (plain) carry _KIT. Quantities come from column E; rows whose
// quantity cannot be read are skipped.
func SumRows(rows [][]string, variant internal.ClientVariant) (Sum, error) {
	if len(rows) == 0 {
		return Sum{}, nil
	}
	width := 0
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}
	if width < minColumns {
		return Sum{}, ErrNarrowSheet
	}

	out := Sum{}
	for _, row := range rows[1:] {
		if !strings.EqualFold(strings.TrimSpace(cell(row, colStatus)), deliveredStatus) {
			out.Filtered++
			continue
		}
		if util.ContainsFold(cell(row, colContract), excludedMarker) {
			out.Filtered++
			continue
		}
		isKit := util.ContainsFold(cell(row, colProduct), kitColumnMarker)
		if (variant == internal.VariantKit && !isKit) || (variant == internal.VariantPlain && isKit) {
			out.Filtered++
			continue
		}
		qty, ok := util.ParseCount(cell(row, colQuantity))
		if !ok {
			out.Skipped++
			continue
		}
		out.Total += qty
		out.Counted++
	}
	return out, nil
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

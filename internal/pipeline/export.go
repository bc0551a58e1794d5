package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"courierval/internal"
	"courierval/internal/util"
)

const (
	SheetEmails     = "E-mails"
	SheetReport     = "Relatórios GA"
	SheetValidation = "Validação"
)

var (
	emailHeaders      = []string{"Cliente", "Total_Soma", "Total_Informado", "Subject"}
	reportHeaders     = []string{"Cliente", "Total GA (Entregue)"}
	validationHeaders = []string{"Cliente", "Total_Soma", "Total_Informado", "Total_Exibicao", "Total_GA", "Metodo_Validacao", "Status", "Duplicados"}
)

type Artifacts struct {
	Emails     string
	Report     string
	Validation string
}

func ArtifactPaths(dir string, day time.Time) Artifacts {
	stamp := day.Format("20060102")
	return Artifacts{
		Emails:     filepath.Join(dir, "emails_"+stamp+".xlsx"),
		Report:     filepath.Join(dir, "ga_relatorios_"+stamp+".xlsx"),
		Validation: filepath.Join(dir, "validacao_"+stamp+".xlsx"),
	}
}

func WriteEmailRecords(records []internal.EmailRecord, outputPath string) error {
	rows := make([][]any, 0, len(records))
	for _, r := range records {
		rows = append(rows, []any{r.ClientKey, r.SummedTotal, r.StatedTotal, r.Subject})
	}
	return writeSheet(outputPath, SheetEmails, emailHeaders, rows)
}

// WriteReportTotals writes the observed totals in the given key order. Keys
// missing from the report are written as 0.
func WriteReportTotals(report internal.ExternalReport, keys []string, outputPath string) error {
	rows := make([][]any, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, []any{k, report.Observed(k)})
	}
	return writeSheet(outputPath, SheetReport, reportHeaders, rows)
}

func WriteOutcomes(outcomes []internal.ValidationOutcome, outputPath string) error {
	rows := make([][]any, 0, len(outcomes))
	for _, o := range outcomes {
		rows = append(rows, []any{
			o.ClientKey, o.SummedTotal, o.StatedTotal, o.DisplayValue, o.ObservedTotal,
			string(o.Method), string(o.Status), o.Duplicates,
		})
	}
	return writeSheet(outputPath, SheetValidation, validationHeaders, rows)
}

func writeSheet(outputPath, sheet string, headers []string, rows [][]any) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return err
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
	for i, row := range rows {
		for c, value := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, i+2)
			_ = f.SetCellValue(sheet, cell, value)
		}
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

// ReadEmailRecords loads a previously written e-mails artifact.
func ReadEmailRecords(path string) ([]internal.EmailRecord, error) {
	rows, err := readSheet(path, SheetEmails, emailHeaders)
	if err != nil {
		return nil, err
	}
	out := make([]internal.EmailRecord, 0, len(rows))
	for _, row := range rows {
		key := strings.TrimSpace(cellAt(row, 0))
		if key == "" {
			continue
		}
		summed, _ := util.ParseCount(cellAt(row, 1))
		stated, _ := util.ParseCount(cellAt(row, 2))
		out = append(out, internal.EmailRecord{
			ClientKey:   key,
			SummedTotal: summed,
			StatedTotal: stated,
			Subject:     cellAt(row, 3),
		})
	}
	return out, nil
}

func ReadReportTotals(path string) (internal.ExternalReport, error) {
	rows, err := readSheet(path, SheetReport, reportHeaders)
	if err != nil {
		return nil, err
	}
	out := internal.ExternalReport{}
	for _, row := range rows {
		key := strings.TrimSpace(cellAt(row, 0))
		if key == "" {
			continue
		}
		total, _ := util.ParseCount(cellAt(row, 1))
		out[key] = total
	}
	return out, nil
}

func readSheet(path, sheet string, headers []string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if idx, _ := f.GetSheetIndex(sheet); idx < 0 {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: empty sheet %q", filepath.Base(path), sheet)
	}
	if !strings.EqualFold(strings.TrimSpace(cellAt(rows[0], 0)), headers[0]) {
		return nil, fmt.Errorf("%s: unexpected header %q", filepath.Base(path), cellAt(rows[0], 0))
	}
	return rows[1:], nil
}

func cellAt(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

package main

import (
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"courierval/internal"
	"courierval/internal/storage"
)

var (
	outcomeHeaders = []string{"CLIENT", "EMAIL", "GA", "METHOD", "STATUS", "DUPLICATES"}
	recordHeaders  = []string{"CLIENT", "SUMMED", "STATED", "SUBJECT"}
	runHeaders     = []string{"RUN", "STARTED", "DAY", "STATUS", "RECORDS", "OK", "DIVERGENT", "REPLIED", "DRY RUN", "ERROR"}
)

func writeTable(w io.Writer, headers []string, rows [][]string) error {
	table := tablewriter.NewTable(w)

	cells := make([]any, len(headers))
	for i, h := range headers {
		cells[i] = h
	}
	table.Header(cells...)

	for _, row := range rows {
		data := make([]any, len(row))
		for i, cell := range row {
			data[i] = cell
		}
		if err := table.Append(data...); err != nil {
			return err
		}
	}
	return table.Render()
}

func outcomeRows(outcomes []internal.ValidationOutcome) [][]string {
	rows := make([][]string, 0, len(outcomes))
	for _, o := range outcomes {
		status := "OK"
		if o.Status != internal.StatusOK {
			status = "DIVERGENT"
		}
		rows = append(rows, []string{
			o.ClientKey,
			strconv.Itoa(o.DisplayValue),
			strconv.Itoa(o.ObservedTotal),
			string(o.Method),
			status,
			strconv.Itoa(o.Duplicates),
		})
	}
	return rows
}

func recordRows(records []internal.EmailRecord) [][]string {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{r.ClientKey, strconv.Itoa(r.SummedTotal), strconv.Itoa(r.StatedTotal), r.Subject})
	}
	return rows
}

func runRows(runs []storage.RunRow) [][]string {
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		dry := ""
		if r.DryRun {
			dry = "yes"
		}
		rows = append(rows, []string{
			r.ID,
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			r.Day,
			r.Status,
			strconv.Itoa(r.Counts["records"]),
			strconv.Itoa(r.Counts["ok"]),
			strconv.Itoa(r.Counts["divergent"]),
			strconv.Itoa(r.Counts["replied"]),
			dry,
			r.Error,
		})
	}
	return rows
}

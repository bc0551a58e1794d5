package pipeline

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"courierval/internal"
)

func TestArtifactPaths(t *testing.T) {
	paths := ArtifactPaths("resultados", time.Date(2026, 3, 7, 15, 0, 0, 0, time.UTC))
	assert.Equal(t, filepath.Join("resultados", "emails_20260307.xlsx"), paths.Emails)
	assert.Equal(t, filepath.Join("resultados", "ga_relatorios_20260307.xlsx"), paths.Report)
	assert.Equal(t, filepath.Join("resultados", "validacao_20260307.xlsx"), paths.Validation)
}

func TestEmailRecordsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "emails.xlsx")
	records := []internal.EmailRecord{
		{ClientKey: "CLIENTE_X", SummedTotal: 140, StatedTotal: 150, Subject: "Validação Correios"},
		{ClientKey: "ALELO-KIT", SummedTotal: 12, StatedTotal: 0, Subject: "VALIDACAO ALELO-KIT"},
	}
	require.NoError(t, WriteEmailRecords(records, path))

	got, err := ReadEmailRecords(path)
	require.NoError(t, err)
	assert.Equal(t, records, got)
}

func TestReportTotalsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ga.xlsx")
	report := internal.ExternalReport{"CLIENTE_X": 150}
	require.NoError(t, WriteReportTotals(report, []string{"CLIENTE_X", "MISSING_Y"}, path))

	got, err := ReadReportTotals(path)
	require.NoError(t, err)
	assert.Equal(t, internal.ExternalReport{"CLIENTE_X": 150, "MISSING_Y": 0}, got)
}

func TestWriteOutcomes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "validacao.xlsx")
	outcomes := []internal.ValidationOutcome{
		{ClientKey: "CLIENTE_X", SummedTotal: 140, StatedTotal: 150, ObservedTotal: 150, DisplayValue: 150, Method: internal.MethodStated, Status: internal.StatusOK},
	}
	require.NoError(t, WriteOutcomes(outcomes, path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetValidation)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, validationHeaders, rows[0])
	assert.Equal(t, []string{"CLIENTE_X", "140", "150", "150", "150", "STATED", "OK", "0"}, rows[1])
}

func TestReadEmailRecordsFallsBackToFirstSheet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ga.xlsx")
	require.NoError(t, WriteOutcomes(nil, path))
	rows, err := ReadEmailRecords(path)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

package report

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"courierval/internal"
)

var exportHeader = []string{"Data", "Cliente", "Produto", "Contrato", "Qtd", "Cidade", "Status"}

func exportRows() [][]string {
	return [][]string{
		exportHeader,
		{"15/10", "ALELO", "ALELO_CARTAO", "100001", "10", "SP", "ENTREGUE"},
		{"15/10", "ALELO", "ALELO_KIT", "100002", "4", "SP", "entregue"},
		{"15/10", "ALELO", "ALELO_CARTAO", "100003.SD1", "100", "SP", "ENTREGUE"},
		{"15/10", "ALELO", "ALELO_CARTAO", "100004", "7", "RJ", "DEVOLVIDO"},
		{"15/10", "ALELO", "ALELO_KIT", "100005", "1.000", "RJ", " ENTREGUE "},
		{"15/10", "ALELO", "ALELO_CARTAO", "100006", "n/d", "RJ", "ENTREGUE"},
		{"15/10", "ALELO", "ALELO_CARTAO", "100007"},
	}
}

func TestSumRows(t *testing.T) {
	cases := []struct {
		variant internal.ClientVariant
		total   int
		counted int
	}{
		{variant: internal.VariantNone, total: 1014, counted: 3},
		{variant: internal.VariantPlain, total: 10, counted: 1},
		{variant: internal.VariantKit, total: 1004, counted: 2},
	}
	for _, tc := range cases {
		t.Run(string(tc.variant), func(t *testing.T) {
			got, err := SumRows(exportRows(), tc.variant)
			require.NoError(t, err)
			assert.Equal(t, tc.total, got.Total)
			assert.Equal(t, tc.counted, got.Counted)
		})
	}
}

func TestSumRowsSkipsUnreadableQuantity(t *testing.T) {
	got, err := SumRows(exportRows(), internal.VariantPlain)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Skipped)
}

func TestSumRowsNarrowSheet(t *testing.T) {
	_, err := SumRows([][]string{{"a", "b", "c"}, {"1", "2", "3"}}, internal.VariantNone)
	assert.ErrorIs(t, err, ErrNarrowSheet)

	got, err := SumRows(nil, internal.VariantNone)
	require.NoError(t, err)
	assert.Equal(t, Sum{}, got)
}

func writeExport(t *testing.T, path string, rows [][]string) {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	for r, row := range rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+1)
			require.NoError(t, f.SetCellValue(sheet, cell, v))
		}
	}
	require.NoError(t, f.SaveAs(path))
}

func TestSumDelivered(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.xlsx")
	writeExport(t, path, exportRows())

	got, err := SumDelivered(path, internal.VariantKit)
	require.NoError(t, err)
	assert.Equal(t, 1004, got.Total)

	_, err = SumDelivered(filepath.Join(t.TempDir(), "missing.xlsx"), internal.VariantKit)
	assert.Error(t, err)
}

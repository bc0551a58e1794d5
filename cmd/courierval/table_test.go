package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courierval/internal"
	"courierval/internal/storage"
)

func TestOutcomeRows(t *testing.T) {
	rows := outcomeRows([]internal.ValidationOutcome{
		{ClientKey: "CLIENTE_X", DisplayValue: 150, ObservedTotal: 150, Method: internal.MethodStated, Status: internal.StatusOK},
		{ClientKey: "CLIENTE_Y", DisplayValue: 90, ObservedTotal: 80, Method: internal.MethodNone, Status: internal.StatusDivergent, Duplicates: 1},
	})
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"CLIENTE_X", "150", "150", string(internal.MethodStated), "OK", "0"}, rows[0])
	assert.Equal(t, "DIVERGENT", rows[1][4])
	assert.Equal(t, "1", rows[1][5])
}

func TestRunRows(t *testing.T) {
	rows := runRows([]storage.RunRow{{
		ID:        "run-1",
		Day:       "2026-10-15",
		DryRun:    true,
		Status:    "ok",
		Counts:    map[string]int{"records": 3, "ok": 2, "divergent": 1},
		StartedAt: time.Date(2026, 10, 15, 12, 0, 0, 0, time.Local),
	}})
	require.Len(t, rows, 1)
	assert.Len(t, rows[0], len(runHeaders))
	assert.Equal(t, "run-1", rows[0][0])
	assert.Equal(t, "2026-10-15 12:00", rows[0][1])
	assert.Equal(t, "3", rows[0][4])
	assert.Equal(t, "yes", rows[0][8])
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	err := writeTable(&buf, recordHeaders, recordRows([]internal.EmailRecord{
		{ClientKey: "CLIENTE_X", SummedTotal: 140, StatedTotal: 150, Subject: "Validação Correios"},
	}))
	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, "CLIENTE_X")
	assert.Contains(t, out, "140")
	assert.Contains(t, out, "Validação Correios")
}

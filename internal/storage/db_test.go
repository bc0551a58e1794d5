package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courierval/internal"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "journal", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestRunLifecycle(t *testing.T) {
	db := openTestDB(t)
	day := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)

	require.NoError(t, db.StartRun("run-1", day, false))
	require.NoError(t, db.RecordEmails("run-1", []internal.EmailRecord{
		{ClientKey: "CLIENTE_X", SummedTotal: 150, StatedTotal: 150, Subject: "Validacao", MessageID: "<a@x>", ReceivedAt: day.Add(9 * time.Hour)},
	}, map[string]string{"<a@x>": "/raw/abc.eml"}))
	require.NoError(t, db.RecordOutcomes("run-1", []internal.ValidationOutcome{
		{ClientKey: "CLIENTE_X", SummedTotal: 150, StatedTotal: 150, ObservedTotal: 150, DisplayValue: 150,
			Method: internal.MethodStated, Status: internal.StatusOK},
	}))
	require.NoError(t, db.RecordReplies("run-1", []internal.ReplyAction{
		{ClientKey: "CLIENTE_X", MessageID: "<a@x>", Method: internal.MethodStated, DisplayValue: 150, Observed: 150, Moved: true},
	}))
	require.NoError(t, db.FinishRun("run-1", "ok", "", map[string]int{"records": 1, "replied": 1}))

	runs, err := db.ListRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "2026-10-15", runs[0].Day)
	assert.Equal(t, "ok", runs[0].Status)
	assert.Equal(t, 1, runs[0].Counts["replied"])
	assert.NotNil(t, runs[0].FinishedAt)

	outcomes, err := db.ListOutcomes("run-1")
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, internal.MethodStated, outcomes[0].Method)
	assert.Equal(t, internal.StatusOK, outcomes[0].Status)

	replies, err := db.CountReplies("run-1")
	require.NoError(t, err)
	assert.Equal(t, 1, replies)
}

func TestListRunsNewestFirst(t *testing.T) {
	db := openTestDB(t)
	day := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)
	require.NoError(t, db.StartRun("first", day, true))
	require.NoError(t, db.StartRun("second", day, false))

	runs, err := db.ListRuns(1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "second", runs[0].ID)
	assert.Equal(t, "running", runs[0].Status)
	assert.Nil(t, runs[0].FinishedAt)
}

func TestMetadata(t *testing.T) {
	db := openTestDB(t)
	value, err := db.GetMetadata("last_completed_day")
	require.NoError(t, err)
	assert.Nil(t, value)

	require.NoError(t, db.SetMetadata("last_completed_day", "2026-10-14"))
	require.NoError(t, db.SetMetadata("last_completed_day", "2026-10-15"))
	value, err = db.GetMetadata("last_completed_day")
	require.NoError(t, err)
	require.NotNil(t, value)
	assert.Equal(t, "2026-10-15", *value)
}

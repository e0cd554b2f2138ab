package db

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenDB(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenDB_MigratesToLatest(t *testing.T) {
	db := openTestDB(t)

	version, dirty, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, dirty)

	// Re-running is a no-op.
	require.NoError(t, db.MigrateUp())
}

func TestOpenDB_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	db, err := OpenDB(path)
	require.NoError(t, err)
	id, err := db.StartRun(1, "{}")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = OpenDB(path)
	require.NoError(t, err)
	defer db.Close()
	runs, err := db.Runs(0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, id, runs[0].RunID)
}

func TestMigrateDown(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.MigrateDown())

	version, _, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
}

func TestRunLedger(t *testing.T) {
	db := openTestDB(t)

	id, err := db.StartRun(2, `{"pixel_size":1}`)
	require.NoError(t, err)
	assert.Len(t, id, 36)

	require.NoError(t, db.RecordFile(id, FileRecord{
		InputPath:     "/data/a.las",
		OutputPath:    "/out/a_r1/a_ComposedHillshade.tif",
		State:         "Done",
		Rows:          99,
		Cols:          120,
		Duration:      1500 * time.Millisecond,
		PointCount:    1000,
		GroundDensity: 2.5,
		CompositeMean: 131.2,
	}))
	require.NoError(t, db.RecordFile(id, FileRecord{
		InputPath: "/data/b.las",
		State:     "Failed",
		Error:     "b.las: no points match filter class=2",
	}))
	require.NoError(t, db.FinishRun(id, 1))

	runs, err := db.Runs(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 2, runs[0].InputCount)
	assert.Equal(t, 1, runs[0].FailedCount)
	assert.Equal(t, `{"pixel_size":1}`, runs[0].ConfigJSON)
	assert.False(t, runs[0].FinishedAt.IsZero())

	files, err := db.FileRecords(id)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "/data/a.las", files[0].InputPath)
	assert.Equal(t, 1500*time.Millisecond, files[0].Duration)
	assert.Equal(t, 2.5, files[0].GroundDensity)
	assert.Equal(t, "Failed", files[1].State)
	assert.Empty(t, files[1].OutputPath)
	assert.Contains(t, files[1].Error, "no points")
}

func TestRecordFile_UnknownRun(t *testing.T) {
	db := openTestDB(t)
	err := db.RecordFile("missing", FileRecord{InputPath: "x.las", State: "Done"})
	assert.Error(t, err, "foreign key must reject unknown runs")

	assert.Error(t, db.FinishRun("missing", 0))
}

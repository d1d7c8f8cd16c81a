package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/qdbcompat/internal/release"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestRecordAndReadRuns(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	started := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

	require.NoError(t, st.RecordRun(ctx, RunRecord{
		Version:   release.MustParseVersion("6.1.2"),
		Scenario:  "insert_three_rows",
		Status:    "pass",
		Duration:  1200 * time.Millisecond,
		StartedAt: started,
	}))
	require.NoError(t, st.RecordRun(ctx, RunRecord{
		Version:   release.MustParseVersion("6.1.2"),
		Scenario:  "at",
		Status:    "fail",
		Detail:    "dataset mismatch",
		Duration:  5 * time.Second,
		StartedAt: started.Add(2 * time.Second),
	}))
	require.NoError(t, st.RecordRun(ctx, RunRecord{
		Version:   release.MustParseVersion("6.2.0"),
		Scenario:  "insert_three_rows",
		Status:    "pass",
		Duration:  time.Second,
		StartedAt: started,
	}))

	runs, err := st.RunsForVersion(ctx, release.MustParseVersion("6.1.2"))
	require.NoError(t, err)
	require.Len(t, runs, 2)

	assert.Equal(t, "insert_three_rows", runs[0].Scenario)
	assert.Equal(t, "pass", runs[0].Status)
	assert.Equal(t, 1200*time.Millisecond, runs[0].Duration)
	assert.True(t, runs[0].StartedAt.Equal(started))

	assert.Equal(t, "at", runs[1].Scenario)
	assert.Equal(t, "fail", runs[1].Status)
	assert.Equal(t, "dataset mismatch", runs[1].Detail)
}

func TestRunsForVersion_Empty(t *testing.T) {
	st := openTestStore(t)

	runs, err := st.RunsForVersion(context.Background(), release.MustParseVersion("9.9.9"))
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestRecordRun_RejectsUnknownStatus(t *testing.T) {
	st := openTestStore(t)

	err := st.RecordRun(context.Background(), RunRecord{
		Version:   release.MustParseVersion("6.1.2"),
		Scenario:  "x",
		Status:    "exploded",
		StartedAt: time.Now(),
	})
	require.Error(t, err)
}

func TestOpen_Reopens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	st, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, st.RecordRun(context.Background(), RunRecord{
		Version:   release.MustParseVersion("6.1.2"),
		Scenario:  "x",
		Status:    "pass",
		StartedAt: time.Now(),
	}))
	require.NoError(t, st.Close())

	st, err = Open(path)
	require.NoError(t, err)
	defer st.Close()

	runs, err := st.RunsForVersion(context.Background(), release.MustParseVersion("6.1.2"))
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

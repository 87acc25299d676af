package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/depspec/packages/core/guard"
	"github.com/abdul-hamid-achik/depspec/packages/core/runner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func runResult(runID string, failed int) *runner.RunResult {
	return &runner.RunResult{
		File:      "suite.yaml",
		Name:      "checkout",
		RunID:     runID,
		StartedAt: time.UnixMilli(1_700_000_000_000),
		Duration:  1500 * time.Millisecond,
		Passed:    1,
		Failed:    failed,
		Stats:     runner.Stats{P50: 3 * time.Millisecond, P99: 9 * time.Millisecond},
		Results: []*runner.TestResult{
			{Group: "Users", Name: "Create", Outcome: guard.Passed, Duration: 3 * time.Millisecond},
			{Group: "Cart", Name: "Open", Outcome: guard.Failed, Blocked: true, Error: errors.New("unmet")},
		},
	}
}

func TestRecordAndRecent(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	firstID, err := store.Record(ctx, runResult("run-1", 0))
	require.NoError(t, err)
	_, err = store.Record(ctx, runResult("run-2", 1))
	require.NoError(t, err)

	runs, err := store.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	assert.Equal(t, "run-2", runs[0].RunID, "newest first")
	assert.False(t, runs[0].Success())
	assert.Equal(t, "run-1", runs[1].RunID)
	assert.True(t, runs[1].Success())
	assert.Equal(t, firstID, runs[1].ID)
	assert.Equal(t, 1500*time.Millisecond, runs[1].Duration)
	assert.Equal(t, int64(1_700_000_000_000), runs[1].StartedAt.UnixMilli())
	assert.Equal(t, 3*time.Millisecond, runs[1].P50)
	assert.Equal(t, 9*time.Millisecond, runs[1].P99)

	limited, err := store.Recent(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestTests(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	id, err := store.Record(ctx, runResult("run-1", 0))
	require.NoError(t, err)

	tests, err := store.Tests(ctx, id)
	require.NoError(t, err)
	require.Len(t, tests, 2)

	assert.Equal(t, "Users", tests[0].Group)
	assert.Equal(t, "passed", tests[0].Outcome)
	assert.Equal(t, 3*time.Millisecond, tests[0].Duration)
	assert.True(t, tests[1].Blocked)
	assert.Equal(t, "unmet", tests[1].Error)
}

func TestPrune(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	var ids []int64
	for _, id := range []string{"a", "b", "c"} {
		rowID, err := store.Record(ctx, runResult(id, 0))
		require.NoError(t, err)
		ids = append(ids, rowID)
	}

	removed, err := store.Prune(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	runs, err := store.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "c", runs[0].RunID)

	tests, err := store.Tests(ctx, ids[0])
	require.NoError(t, err)
	assert.Empty(t, tests, "tests of pruned runs are deleted")
}

func TestOpen_Prefixes(t *testing.T) {
	dir := t.TempDir()

	for _, prefix := range []string{"sqlite://", "sqlite:"} {
		store, err := Open(prefix + filepath.Join(dir, "h.db"))
		require.NoError(t, err, prefix)
		require.NoError(t, store.Close())
	}

	_, err := Open("  ")
	assert.Error(t, err)
}

func TestOpen_URIWithQuery(t *testing.T) {
	path := filepath.Join(t.TempDir(), "h.db")

	store, err := Open("file:" + path + "?cache=shared&mode=rwc")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	var foreignKeys int
	require.NoError(t, store.db.QueryRow("PRAGMA foreign_keys").Scan(&foreignKeys))
	assert.Equal(t, 1, foreignKeys)

	_, err = store.Record(context.Background(), runResult("run-1", 0))
	require.NoError(t, err)
	runs, err := store.Recent(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
	assert.FileExists(t, path)
}

func TestRecord_ZeroStartTime(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	result := runResult("run-1", 0)
	result.StartedAt = time.Time{}
	before := time.Now().Add(-2 * time.Second)

	_, err := store.Record(ctx, result)
	require.NoError(t, err)

	runs, err := store.Recent(ctx, 1)
	require.NoError(t, err)
	assert.True(t, runs[0].StartedAt.After(before))
}

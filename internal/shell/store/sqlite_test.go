package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testRun(id string, startedAt time.Time) *Run {
	return &Run{
		ID:            id,
		Service:       "myapp",
		ResourceGroup: "rg1",
		Profile:       "consumption",
		Outcome:       OutcomeSucceeded,
		StartedAt:     startedAt,
		FinishedAt:    startedAt.Add(90 * time.Second),
	}
}

func TestSQLiteStore_CreateAndGetRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	startedAt := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	run := testRun("run-1", startedAt)
	run.Outcome = OutcomeFailed
	run.Detail = "control plane rejected deployment"
	require.NoError(t, s.CreateRun(ctx, run))

	got, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)

	assert.Equal(t, "myapp", got.Service)
	assert.Equal(t, "rg1", got.ResourceGroup)
	assert.Equal(t, "consumption", got.Profile)
	assert.Equal(t, OutcomeFailed, got.Outcome)
	assert.Equal(t, "control plane rejected deployment", got.Detail)
	assert.Equal(t, startedAt, got.StartedAt)
	assert.Equal(t, startedAt.Add(90*time.Second), got.FinishedAt)
}

func TestSQLiteStore_GetRun_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetRun(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_ListRuns_NewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	require.NoError(t, s.CreateRun(ctx, testRun("run-old", base)))
	require.NoError(t, s.CreateRun(ctx, testRun("run-new", base.Add(time.Hour))))
	require.NoError(t, s.CreateRun(ctx, testRun("run-mid", base.Add(time.Minute))))

	runs, err := s.ListRuns(ctx, 10)
	require.NoError(t, err)

	require.Len(t, runs, 3)
	assert.Equal(t, "run-new", runs[0].ID)
	assert.Equal(t, "run-mid", runs[1].ID)
	assert.Equal(t, "run-old", runs[2].ID)
}

func TestSQLiteStore_ListRuns_Limit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.CreateRun(ctx, testRun(id, base.Add(time.Duration(i)*time.Minute))))
	}

	runs, err := s.ListRuns(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/prm/internal/engine"
	"github.com/roach88/prm/internal/ir"
)

func writeTestRun(t *testing.T, s *Store, id string) Run {
	t.Helper()
	run := NewRun(id, "trace.yaml")
	require.NoError(t, s.WriteRun(context.Background(), run))
	return run
}

func TestWriteRun_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	run := writeTestRun(t, s, "run-1")
	require.NoError(t, s.WriteRun(ctx, run))

	runs, err := s.ReadRuns(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Run{run}, runs)
	assert.Equal(t, ir.EngineVersion, runs[0].EngineVersion)
	assert.Equal(t, ir.IRVersion, runs[0].IRVersion)

	got, err := s.ReadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, run, got)

	_, err = s.ReadRun(ctx, "missing")
	assert.True(t, errors.Is(err, sql.ErrNoRows))

	assert.Error(t, s.WriteRun(ctx, Run{}))
}

func TestWriteMatch_ContentAddressed(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	writeTestRun(t, s, "run-1")

	m := Match{
		RunID:    "run-1",
		Seq:      5,
		Property: "UnsafeMapIterator",
		State:    "error",
		Event:    "useIter",
		Bindings: map[string]string{"m": "m1", "c": "c1", "i": "i1"},
	}
	inserted, err := s.WriteMatch(ctx, m)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = s.WriteMatch(ctx, m)
	require.NoError(t, err)
	assert.False(t, inserted, "same match is written once")

	got, err := s.ReadMatches(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, ir.MustMatchID("run-1", m.Property, m.State, m.Seq, m.Bindings), got[0].ID)
	assert.Equal(t, m.Bindings, got[0].Bindings)
	assert.Equal(t, int64(5), got[0].Seq)
}

func TestWriteMatch_RequiresRun(t *testing.T) {
	s := createTestStore(t)

	_, err := s.WriteMatch(context.Background(), Match{RunID: "nope", Property: "P", State: "s", Event: "e"})
	assert.Error(t, err, "foreign key on run_id")
}

func TestReadMatches_Ordering(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	writeTestRun(t, s, "run-a")
	writeTestRun(t, s, "run-b")

	ms := []Match{
		{RunID: "run-a", Seq: 9, Property: "P", State: "s", Event: "e", Bindings: map[string]string{"x": "o1"}},
		{RunID: "run-a", Seq: 2, Property: "P", State: "s", Event: "e", Bindings: map[string]string{"x": "o2"}},
		{RunID: "run-b", Seq: 1, Property: "Q", State: "t", Event: "f"},
		{RunID: "run-a", Seq: 2, Property: "Q", State: "s", Event: "e", Bindings: map[string]string{"x": "o3"}},
	}
	n, err := s.WriteMatches(ctx, ms)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	n, err = s.WriteMatches(ctx, ms)
	require.NoError(t, err)
	assert.Zero(t, n)

	got, err := s.ReadMatches(ctx, "run-a")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, int64(2), got[0].Seq)
	assert.Equal(t, int64(2), got[1].Seq)
	assert.Less(t, got[0].ID, got[1].ID, "ties broken by id")
	assert.Equal(t, int64(9), got[2].Seq)

	all, err := s.ReadMatches(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "run-b", all[3].RunID)
	assert.Empty(t, all[3].Bindings)
	assert.NotNil(t, all[3].Bindings)

	none, err := s.ReadMatches(ctx, "run-c")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestWriteRunStats_Upserts(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	writeTestRun(t, s, "run-1")

	first := RunStats{
		RunID:    "run-1",
		Property: "HasNext",
		SpecHash: "abc",
		Stats:    engine.Stats{Events: 3, CreatedMonitors: 1},
	}
	require.NoError(t, s.WriteRunStats(ctx, first))

	second := first
	second.Stats = engine.Stats{Events: 7, CreatedNodes: 2, CreatedMonitors: 2, Matches: 1, CollectedBindings: 1}
	require.NoError(t, s.WriteRunStats(ctx, second))
	require.NoError(t, s.WriteRunStats(ctx, RunStats{RunID: "run-1", Property: "Chain", SpecHash: "def"}))

	got, err := s.ReadRunStats(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, []RunStats{
		{RunID: "run-1", Property: "Chain", SpecHash: "def"},
		second,
	}, got)
}

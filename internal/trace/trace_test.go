package trace

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/prm/internal/model"
	"github.com/roach88/prm/internal/testutil"
)

const unsafeMapTrace = `
name: unsafe-map
events:
  - {event: createColl, objects: [m1, c1]}
  - {event: updateMap, objects: [m1]}
  - {event: createIter, objects: [c1, i1]}
  - {event: hasNext, objects: [i1]}
  - {event: updateMap, objects: [m1]}
  - {event: useIter, objects: [i1], aux: {line: 42}}
`

func TestParse(t *testing.T) {
	tr, err := Parse([]byte(unsafeMapTrace))
	require.NoError(t, err)
	assert.Equal(t, "unsafe-map", tr.Name)
	require.Len(t, tr.Steps, 6)
	assert.Equal(t, "event", tr.Steps[0].Kind())
	assert.Equal(t, []string{"m1", "c1"}, tr.Steps[0].Objects)
	assert.Equal(t, map[string]any{"line": 42}, tr.Steps[5].Aux)
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"unknown key", "events:\n  - {event: a, object: [x]}\n"},
		{"empty step", "events:\n  - {}\n"},
		{"two kinds", "events:\n  - {event: a, collect: true}\n"},
		{"objects on drop", "events:\n  - {event: a, objects: [x]}\n  - {drop: [x], objects: [x]}\n"},
		{"drop of unknown label", "events:\n  - {drop: [ghost]}\n"},
		{"empty label", "events:\n  - {event: a, objects: [\"\"]}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.src))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.yaml")
	require.NoError(t, os.WriteFile(path, []byte(unsafeMapTrace), 0o644))
	tr, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, tr.Steps, 6)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestReplayerReportsLabelledMatches(t *testing.T) {
	tr, err := Parse([]byte(unsafeMapTrace))
	require.NoError(t, err)

	r, err := NewReplayer(model.MustCompile(testutil.UnsafeMapIterator()), nil)
	require.NoError(t, err)
	matches, err := r.Run(context.Background(), tr)
	require.NoError(t, err)

	assert.Equal(t, []MatchRecord{{
		Seq:      5,
		Property: "UnsafeMapIterator",
		State:    "error",
		Event:    "useIter",
		Bindings: map[string]string{"m": "m1", "c": "c1", "i": "i1"},
	}}, matches)
	assert.Equal(t, 1, r.Skipped(), "hasNext is not an UnsafeMapIterator event")
	assert.Equal(t, []string{"c1", "i1", "m1"}, r.Labels())

	id, err := matches[0].ID("run-1")
	require.NoError(t, err)
	assert.Len(t, id, 64)

	mon, err := r.Lookup(map[string]string{"m": "m1", "c": "c1", "i": "i1"})
	require.NoError(t, err)
	require.NotNil(t, mon)
	assert.True(t, mon.Terminated(), "error is final")

	mon, err = r.Lookup(map[string]string{"i": "nobody"})
	require.NoError(t, err)
	assert.Nil(t, mon)

	_, err = r.Lookup(map[string]string{"x": "m1"})
	assert.ErrorContains(t, err, `no parameter "x"`)
}

func TestReplayerSharesTraceAcrossProperties(t *testing.T) {
	tr, err := Parse([]byte(`
events:
  - {event: next, objects: [it]}
  - {event: createColl, objects: [m1, c1]}
  - {event: hasNext, objects: [it]}
  - {event: next, objects: [it]}
`))
	require.NoError(t, err)

	r, err := NewReplayer(model.MustCompile(testutil.HasNext()), nil)
	require.NoError(t, err)
	matches, err := r.Run(context.Background(), tr)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, int64(1), matches[0].Seq, "skipped events do not advance the clock")
	assert.Equal(t, map[string]string{"i": "it"}, matches[0].Bindings)
}

func TestReplayerArityError(t *testing.T) {
	tr, err := Parse([]byte("events:\n  - {event: createColl, objects: [m1]}\n"))
	require.NoError(t, err)
	r, err := NewReplayer(model.MustCompile(testutil.UnsafeMapIterator()), nil)
	require.NoError(t, err)
	_, err = r.Run(context.Background(), tr)
	assert.ErrorContains(t, err, "step 0 (createColl)")
}

func TestReplayerHonorsCancellation(t *testing.T) {
	tr, err := Parse([]byte(unsafeMapTrace))
	require.NoError(t, err)
	r, err := NewReplayer(model.MustCompile(testutil.UnsafeMapIterator()), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Run(ctx, tr)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, r.Engine().Stats().Events)
}

func TestReplayerDropAndCollect(t *testing.T) {
	tr, err := Parse([]byte(`
events:
  - {event: hasNext, objects: [tmp]}
  - {event: hasNext, objects: [kept]}
  - drop: [tmp]
  - collect: true
  - {event: next, objects: [kept]}
  - {event: next, objects: [kept]}
`))
	require.NoError(t, err)

	r, err := NewReplayer(model.MustCompile(testutil.HasNext()), nil)
	require.NoError(t, err)
	matches, err := r.Run(context.Background(), tr)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, map[string]string{"i": "kept"}, matches[0].Bindings)
	assert.Equal(t, []string{"kept"}, r.Labels())

	eng := r.Engine()
	require.Eventually(t, func() bool {
		runtime.GC()
		eng.Collect()
		return eng.Stats().CollectedBindings == 1
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, eng.BindingCount())
}

func TestSortMatches(t *testing.T) {
	ms := []MatchRecord{
		{Seq: 4, Property: "B", State: "x"},
		{Seq: 2, Property: "B", State: "y"},
		{Seq: 2, Property: "A", State: "z"},
		{Seq: 2, Property: "B", State: "a"},
	}
	SortMatches(ms)
	assert.Equal(t, []MatchRecord{
		{Seq: 2, Property: "A", State: "z"},
		{Seq: 2, Property: "B", State: "a"},
		{Seq: 2, Property: "B", State: "y"},
		{Seq: 4, Property: "B", State: "x"},
	}, ms)
}

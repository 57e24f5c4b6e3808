package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/prm/internal/engine"
	"github.com/roach88/prm/internal/store"
)

func testMatches() []store.Match {
	return []store.Match{
		{Seq: 2, Property: "Pair", State: "s2", Event: "b", Bindings: map[string]string{"x": "x1", "y": "y1"}},
		{Seq: 2, Property: "Pair", State: "s2", Event: "b", Bindings: map[string]string{"x": "x2", "y": "y1"}},
		{Seq: 5, Property: "Pair", State: "s2", Event: "b", Bindings: map[string]string{"x": "x3", "y": "y2"}},
	}
}

func TestMatchPattern_Selects(t *testing.T) {
	m := testMatches()[0]
	tests := []struct {
		name string
		p    MatchPattern
		want bool
	}{
		{"empty", MatchPattern{}, true},
		{"state", MatchPattern{State: "s2"}, true},
		{"wrong state", MatchPattern{State: "s1"}, false},
		{"event and seq", MatchPattern{Event: "b", Seq: 2}, true},
		{"wrong seq", MatchPattern{Seq: 3}, false},
		{"binding subset", MatchPattern{Bindings: map[string]string{"y": "y1"}}, true},
		{"wrong binding", MatchPattern{Bindings: map[string]string{"x": "x2"}}, false},
		{"unbound parameter", MatchPattern{Bindings: map[string]string{"z": "z1"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.p.selects(m))
		})
	}
}

func TestAssertMatch(t *testing.T) {
	ms := testMatches()
	assert.NoError(t, assertMatch(ms, Assertion{MatchPattern: MatchPattern{Bindings: map[string]string{"x": "x3"}}}))

	err := assertMatch(ms, Assertion{MatchPattern: MatchPattern{State: "s2", Bindings: map[string]string{"x": "x9"}}})
	require.Error(t, err)
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "state s2, {x=x9}", ae.Expected)
	assert.Contains(t, err.Error(), "[seq 5] s2 on b {x=x3, y=y2}")
}

func TestAssertMatchOrder(t *testing.T) {
	ms := testMatches()
	ok := Assertion{Order: []MatchPattern{
		{Bindings: map[string]string{"x": "x1"}},
		{Seq: 5},
	}}
	assert.NoError(t, assertMatchOrder(ms, ok))

	reversed := Assertion{Order: []MatchPattern{
		{Seq: 5},
		{Bindings: map[string]string{"x": "x1"}},
	}}
	err := assertMatchOrder(ms, reversed)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after the first 1")
}

func TestAssertMatchCount(t *testing.T) {
	ms := testMatches()
	assert.NoError(t, assertMatchCount(ms, Assertion{Count: 3}))
	assert.NoError(t, assertMatchCount(ms, Assertion{Count: 2, MatchPattern: MatchPattern{Seq: 2}}))
	assert.NoError(t, assertMatchCount(nil, Assertion{Count: 0}))

	err := assertMatchCount(ms, Assertion{Count: 1, MatchPattern: MatchPattern{Bindings: map[string]string{"y": "y1"}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 matches")
}

func TestAssertCounter(t *testing.T) {
	r := &Result{Stats: engine.Stats{Events: 4, CollectedBindings: 1}}
	assert.NoError(t, assertCounter(r, Assertion{Counter: "events", Value: 4}))
	assert.NoError(t, assertCounter(r, Assertion{Counter: "collected_bindings", Value: 1}))
	assert.Error(t, assertCounter(r, Assertion{Counter: "matches", Value: 1}))
	assert.Error(t, assertCounter(r, Assertion{Counter: "bogus"}))
}

func TestEvaluateAssertions_MonitorStateNeedsEngine(t *testing.T) {
	r := NewResult("run")
	errs := EvaluateAssertions(r, []Assertion{
		{Type: AssertMonitorState, MatchPattern: MatchPattern{Bindings: map[string]string{"i": "a"}}, Absent: true},
		{Type: "nope"},
	}, nil)
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "requires an engine")
	assert.Contains(t, errs[1], `unknown assertion type "nope"`)
}

func TestResult_AddError(t *testing.T) {
	r := NewResult("run")
	assert.True(t, r.Pass)
	assert.NotNil(t, r.Matches)
	r.AddError("boom")
	assert.False(t, r.Pass)
	assert.Equal(t, []string{"boom"}, r.Errors)
}

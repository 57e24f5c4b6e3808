package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var scenariosDir = filepath.Join("..", "..", "testdata", "scenarios")

func loadTestScenario(t *testing.T, name string) *Scenario {
	t.Helper()
	s, err := LoadScenario(filepath.Join(scenariosDir, name+".yaml"))
	require.NoError(t, err)
	return s
}

func TestRun_Scenarios(t *testing.T) {
	names := []string{
		"unsafe_map_iterator_match",
		"unsafe_map_iterator_no_match",
		"chain_match",
		"chain_incomplete",
		"pair_join",
		"has_next_collect",
		"shared_trace",
	}
	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			result, err := RunWithGolden(t, loadTestScenario(t, name))
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Empty(t, result.Errors)
			assert.Equal(t, DefaultRunID, result.RunID)
		})
	}
}

func TestRun_ReportsFailedAssertions(t *testing.T) {
	s := loadTestScenario(t, "unsafe_map_iterator_no_match")
	s.Assertions = []Assertion{
		{Type: AssertMatch, MatchPattern: MatchPattern{State: "error"}},
		{Type: AssertCounter, Counter: "events", Value: 99},
		{Type: AssertMonitorState, MatchPattern: MatchPattern{Bindings: map[string]string{"m": "m1", "c": "c1", "i": "i1"}}, Terminated: true},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 3)
	assert.Contains(t, result.Errors[0], "Assertion failed: match")
	assert.Contains(t, result.Errors[1], "events = 4")
	assert.Contains(t, result.Errors[2], "Actual: state updated")
}

func TestRun_RecordsMatchesWithContentIDs(t *testing.T) {
	s := loadTestScenario(t, "pair_join")
	s.RunID = "run-42"

	result, err := Run(s)
	require.NoError(t, err)
	require.Len(t, result.Matches, 2)
	for _, m := range result.Matches {
		assert.Equal(t, "run-42", m.RunID)
		assert.Equal(t, "Pair", m.Property)
		assert.Len(t, m.ID, 64)
	}
	assert.Less(t, result.Matches[0].ID, result.Matches[1].ID)
	assert.Equal(t, int64(4), result.Stats.Events)
	assert.Equal(t, int64(2), result.Stats.Matches)
}

func TestRun_PropertySelection(t *testing.T) {
	s := loadTestScenario(t, "chain_match")

	s.Property = "Missing"
	_, err := Run(s)
	assert.ErrorContains(t, err, `property "Missing" not declared`)

	s.Property = ""
	_, err = Run(s)
	assert.ErrorContains(t, err, "2 properties declared")
}

func TestRun_ArityMismatchFails(t *testing.T) {
	s := loadTestScenario(t, "chain_match")
	s.Events[1].Objects = []string{"x"}

	_, err := Run(s)
	assert.ErrorContains(t, err, "step 1 (e2)")
}

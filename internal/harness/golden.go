package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/prm/internal/ir"
)

// MatchSnapshot captures the matches of a scenario run.
// All fields use canonical JSON serialization for deterministic comparison.
type MatchSnapshot struct {
	ScenarioName string
	RunID        string
	Result       *Result
}

// toCanonicalMap converts a MatchSnapshot to a map[string]any for canonical JSON serialization.
// This is required because ir.MarshalCanonical only handles maps, slices and primitives.
func (s *MatchSnapshot) toCanonicalMap() map[string]any {
	matches := make([]any, len(s.Result.Matches))
	for i, m := range s.Result.Matches {
		matches[i] = map[string]any{
			"id":       m.ID,
			"seq":      m.Seq,
			"property": m.Property,
			"state":    m.State,
			"event":    m.Event,
			"bindings": m.Bindings,
		}
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"run_id":        s.RunID,
		"matches":       matches,
		"skipped":       s.Result.Skipped,
	}
}

// Snapshot renders the golden file content for a scenario result:
// canonical JSON of the matches, run id and skipped count. Counters are
// left out.
func Snapshot(scenarioName string, result *Result) ([]byte, error) {
	snapshot := MatchSnapshot{
		ScenarioName: scenarioName,
		RunID:        result.RunID,
		Result:       result,
	}
	return ir.MarshalCanonical(snapshot.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares its matches against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the matches don't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the given result against a golden file.
// This is useful when you've already run a scenario and want to compare
// the result against a golden file without re-running.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := Snapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}

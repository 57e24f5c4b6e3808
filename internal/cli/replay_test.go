package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/prm/internal/trace"
)

var iteratorsTrace = filepath.Join("..", "..", "testdata", "traces", "iterators.yaml")

func executeReplay(t *testing.T, format string, args ...string) (*bytes.Buffer, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewReplayCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{propertiesDir, iteratorsTrace}, args...))
	return buf, cmd.Execute()
}

func TestReplayAllProperties(t *testing.T) {
	buf, err := executeReplay(t, "json", "--run-id", "run-1")
	require.NoError(t, err)

	var resp struct {
		Status string       `json:"status"`
		Data   ReplayResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "run-1", resp.Data.RunID)

	// Sequence numbers are per property: HasNext sees three of the seven
	// events, UnsafeMapIterator four.
	assert.Equal(t, []trace.MatchRecord{
		{Seq: 3, Property: "HasNext", State: "violation", Event: "next", Bindings: map[string]string{"i": "i1"}},
		{Seq: 4, Property: "UnsafeMapIterator", State: "error", Event: "useIter", Bindings: map[string]string{"m": "m1", "c": "c1", "i": "i1"}},
	}, resp.Data.Matches)

	require.Len(t, resp.Data.Properties, 4)
	skipped := make(map[string]int)
	events := make(map[string]int64)
	for _, p := range resp.Data.Properties {
		skipped[p.Property] = p.Skipped
		events[p.Property] = p.Stats.Events
	}
	assert.Equal(t, map[string]int{"Chain": 7, "HasNext": 4, "Pair": 7, "UnsafeMapIterator": 3}, skipped)
	assert.Equal(t, map[string]int64{"Chain": 0, "HasNext": 3, "Pair": 0, "UnsafeMapIterator": 4}, events)
}

func TestReplayText(t *testing.T) {
	buf, err := executeReplay(t, "text", "--property", "HasNext", "--run-id", "run-2")
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Run run-2: 1 match(es)")
	assert.Contains(t, out, "[seq 3] HasNext violation on next {i=i1}")
	assert.Contains(t, out, "HasNext: 3 event(s), 1 match(es), 4 skipped")
	assert.NotContains(t, out, "UnsafeMapIterator")
}

func TestReplayRecordsRun(t *testing.T) {
	db := filepath.Join(t.TempDir(), "prm.db")
	_, err := executeReplay(t, "text", "--db", db, "--run-id", "run-3")
	require.NoError(t, err)

	buf := &bytes.Buffer{}
	cmd := NewMatchesCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", db, "--run", "run-3"})
	require.NoError(t, cmd.Execute())

	var resp struct {
		Data MatchesResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	require.Len(t, resp.Data.Runs, 1)
	run := resp.Data.Runs[0]
	assert.Equal(t, "run-3", run.Run.ID)
	assert.Equal(t, iteratorsTrace, run.Run.Trace)
	require.Len(t, run.Matches, 2)
	for _, m := range run.Matches {
		assert.Len(t, m.ID, 64)
		assert.Equal(t, "run-3", m.RunID)
	}
	require.Len(t, run.Stats, 4)
	assert.Equal(t, "Chain", run.Stats[0].Property)
	assert.EqualValues(t, 3, run.Stats[1].Stats.Events)

	// Replaying into the same run again records nothing new.
	_, err = executeReplay(t, "text", "--db", db, "--run-id", "run-3")
	require.NoError(t, err)
	buf.Reset()
	cmd = NewMatchesCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", db})
	require.NoError(t, cmd.Execute())
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	require.Len(t, resp.Data.Runs, 1)
	assert.Len(t, resp.Data.Runs[0].Matches, 2)
}

func TestReplayMetricsOut(t *testing.T) {
	out := filepath.Join(t.TempDir(), "prm.prom")
	_, err := executeReplay(t, "text", "--metrics-out", out)
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, `prm_matches_total{property="HasNext"} 1`)
	assert.Contains(t, text, `prm_events_total{property="UnsafeMapIterator"} 4`)
	assert.Contains(t, text, `prm_events_total{property="Pair"} 0`)
	assert.Contains(t, text, "# TYPE prm_bindings_live gauge")
}

func TestReplayConfig(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.yaml")
	require.NoError(t, os.WriteFile(good, []byte("alive_check: false\nlink_strategy: list\n"), 0644))
	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("monitor_cleanup_interval: 0\n"), 0644))

	buf, err := executeReplay(t, "text", "--config", good)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "2 match(es)")

	_, err = executeReplay(t, "text", "--config", bad)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "invalid engine config")
}

func TestReplayErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing properties", []string{"/nonexistent", iteratorsTrace}, "failed to load properties"},
		{"unknown property", []string{propertiesDir, iteratorsTrace, "--property", "Nope"}, `property "Nope" not found`},
		{"missing trace", []string{propertiesDir, "/nonexistent/trace.yaml"}, "failed to load trace"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := NewReplayCommand(&RootOptions{Format: "text"})
			cmd.SetOut(&bytes.Buffer{})
			cmd.SetArgs(tt.args)

			err := cmd.Execute()
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestReplayArityMismatch(t *testing.T) {
	tr := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(tr, []byte("events:\n  - {event: next, objects: [a, b]}\n"), 0644))

	cmd := NewReplayCommand(&RootOptions{Format: "text"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{propertiesDir, tr, "--property", "HasNext"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "replay failed")
	assert.Contains(t, err.Error(), "HasNext")
}

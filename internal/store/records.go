package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/prm/internal/engine"
	"github.com/roach88/prm/internal/ir"
)

// Run is one replay of a trace. A run covers every property replayed
// against the trace.
type Run struct {
	ID            string `json:"id" yaml:"id"`
	Trace         string `json:"trace" yaml:"trace"`
	EngineVersion string `json:"engine_version" yaml:"engine_version"`
	IRVersion     string `json:"ir_version" yaml:"ir_version"`
}

// NewRun returns a run record stamped with the current versions.
func NewRun(id, trace string) Run {
	return Run{
		ID:            id,
		Trace:         trace,
		EngineVersion: ir.EngineVersion,
		IRVersion:     ir.IRVersion,
	}
}

// Match is a recorded match. Bindings maps parameter names to object
// labels.
type Match struct {
	ID       string            `json:"id" yaml:"id"`
	RunID    string            `json:"run_id" yaml:"run_id"`
	Seq      int64             `json:"seq" yaml:"seq"`
	Property string            `json:"property" yaml:"property"`
	State    string            `json:"state" yaml:"state"`
	Event    string            `json:"event" yaml:"event"`
	Bindings map[string]string `json:"bindings" yaml:"bindings"`
}

// RunStats holds one property's counters at the end of a run.
type RunStats struct {
	RunID    string       `json:"run_id" yaml:"run_id"`
	Property string       `json:"property" yaml:"property"`
	SpecHash string       `json:"spec_hash" yaml:"spec_hash"`
	Stats    engine.Stats `json:"stats" yaml:"stats"`
}

// marshalBindings converts bindings to canonical JSON TEXT for storage.
func marshalBindings(b map[string]string) (string, error) {
	if b == nil {
		b = map[string]string{}
	}
	data, err := ir.MarshalCanonical(b)
	if err != nil {
		return "", fmt.Errorf("marshal bindings: %w", err)
	}
	return string(data), nil
}

func unmarshalBindings(data string) (map[string]string, error) {
	b := map[string]string{}
	if data == "" || data == "{}" {
		return b, nil
	}
	if err := json.Unmarshal([]byte(data), &b); err != nil {
		return nil, fmt.Errorf("unmarshal bindings: %w", err)
	}
	return b, nil
}

package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/prm/internal/engine"
	"github.com/roach88/prm/internal/trace"
)

// Scenario defines a conformance test scenario.
// A scenario replays an inline trace against one property and asserts on
// the reported matches, the engine counters and the final monitor states.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Properties lists the CUE files declaring the property.
	// Paths are relative to the scenario file location.
	Properties []string `yaml:"properties"`

	// Property names the property to monitor. It may be omitted when the
	// files declare exactly one.
	Property string `yaml:"property,omitempty"`

	// Config overrides engine tunables; unset fields keep their defaults.
	Config engine.Config `yaml:"config,omitempty"`

	// Events is the trace, in the trace file format.
	Events []trace.Step `yaml:"events"`

	// Assertions validate the matches and the final engine state.
	Assertions []Assertion `yaml:"assertions"`

	// RunID is an optional fixed run id for deterministic tests.
	// If empty, defaults to DefaultRunID.
	RunID string `yaml:"run_id,omitempty"`

	// dir is the directory property paths are resolved against.
	dir string
}

// DefaultRunID is the run id of scenarios that do not set one.
const DefaultRunID = "test-run-default"

// MatchPattern selects matches. Empty fields match anything; Bindings is
// a subset match.
type MatchPattern struct {
	State    string            `yaml:"state,omitempty"`
	Event    string            `yaml:"event,omitempty"`
	Seq      int64             `yaml:"seq,omitempty"`
	Bindings map[string]string `yaml:"bindings,omitempty"`
}

// Assertion validates matches or final engine state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "match": a match selected by the inline pattern was reported
	// - "match_order": matches selected by Order were reported in order
	// - "match_count": exactly Count matches are selected by the pattern
	// - "counter": engine counter Counter equals Value
	// - "monitor_state": the monitor of Bindings is in State, is
	//   terminated, or is absent
	Type string `yaml:"type"`

	MatchPattern `yaml:",inline"`

	// Order is the expected match order (used by match_order).
	Order []MatchPattern `yaml:"order,omitempty"`

	// Count is the expected number of matches (used by match_count).
	Count int `yaml:"count,omitempty"`

	// Counter and Value name an engine counter and its expected value
	// (used by counter).
	Counter string `yaml:"counter,omitempty"`
	Value   int64  `yaml:"value,omitempty"`

	// Terminated expects a terminated monitor and Absent no monitor at all
	// (used by monitor_state).
	Terminated bool `yaml:"terminated,omitempty"`
	Absent     bool `yaml:"absent,omitempty"`
}

// Assertion type constants.
const (
	AssertMatch        = "match"
	AssertMatchOrder   = "match_order"
	AssertMatchCount   = "match_count"
	AssertCounter      = "counter"
	AssertMonitorState = "monitor_state"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// Property paths are resolved relative to the scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data, filepath.Dir(path))
}

// ParseScenario parses a scenario, resolving property paths against dir.
func ParseScenario(data []byte, dir string) (*Scenario, error) {
	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	scenario := Scenario{Config: engine.DefaultConfig()}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	scenario.dir = dir

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// propertyPaths returns the property files resolved against the scenario
// directory.
func (s *Scenario) propertyPaths() []string {
	out := make([]string, len(s.Properties))
	for i, p := range s.Properties {
		if !filepath.IsAbs(p) && s.dir != "" {
			p = filepath.Join(s.dir, p)
		}
		out[i] = p
	}
	return out
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Properties) == 0 {
		return fmt.Errorf("properties list is required and must be non-empty")
	}

	if len(s.Events) == 0 {
		return fmt.Errorf("events list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for _, path := range s.propertyPaths() {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return fmt.Errorf("property file not found: %s", path)
		}
	}

	if err := s.Config.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	tr := trace.Trace{Name: s.Name, Steps: s.Events}
	if err := tr.Validate(); err != nil {
		return err
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertMatch:
		if a.State == "" && a.Event == "" && a.Seq == 0 && len(a.Bindings) == 0 {
			return fmt.Errorf("assertions[%d]: match needs a state, event, seq or bindings", index)
		}
	case AssertMatchOrder:
		if len(a.Order) < 2 {
			return fmt.Errorf("assertions[%d]: order needs at least two patterns for match_order", index)
		}
	case AssertMatchCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for match_count", index)
		}
	case AssertCounter:
		if _, ok := (engine.Stats{}).Counter(a.Counter); !ok {
			return fmt.Errorf("assertions[%d]: unknown counter %q (want one of %v)", index, a.Counter, engine.CounterNames)
		}
	case AssertMonitorState:
		if len(a.Bindings) == 0 {
			return fmt.Errorf("assertions[%d]: bindings are required for monitor_state", index)
		}
		set := 0
		for _, b := range []bool{a.State != "", a.Terminated, a.Absent} {
			if b {
				set++
			}
		}
		if set != 1 {
			return fmt.Errorf("assertions[%d]: monitor_state needs exactly one of state, terminated and absent", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}

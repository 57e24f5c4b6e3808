package trace

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Trace is a recorded event stream. Objects are named by labels; the
// replayer allocates one host object per label on first use.
type Trace struct {
	Name  string `yaml:"name,omitempty"`
	Steps []Step `yaml:"events"`
}

// Step is one trace entry: an event, a drop of host references, or a
// forced collection. Exactly one of Event, Drop and Collect is set.
type Step struct {
	Event   string   `yaml:"event,omitempty"`
	Objects []string `yaml:"objects,omitempty"`
	Aux     any      `yaml:"aux,omitempty"`

	// Drop releases the replayer's references to the labelled objects.
	Drop []string `yaml:"drop,omitempty"`

	// Collect forces a garbage collection and an engine cleanup run.
	Collect bool `yaml:"collect,omitempty"`
}

// Kind names the step's kind: "event", "drop" or "collect".
func (s Step) Kind() string {
	switch {
	case s.Event != "":
		return "event"
	case len(s.Drop) > 0:
		return "drop"
	case s.Collect:
		return "collect"
	default:
		return ""
	}
}

// Load reads a trace file.
func Load(path string) (*Trace, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read trace: %w", err)
	}
	tr, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return tr, nil
}

// Parse decodes and validates a YAML trace. Unknown keys are rejected.
func Parse(data []byte) (*Trace, error) {
	var tr Trace
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&tr); err != nil {
		return nil, fmt.Errorf("parse trace: %w", err)
	}
	if err := tr.Validate(); err != nil {
		return nil, err
	}
	return &tr, nil
}

// Validate checks that every step has exactly one kind and that drops
// name labels seen earlier.
func (t *Trace) Validate() error {
	var errs []error
	seen := make(map[string]bool)
	for i, s := range t.Steps {
		kinds := 0
		if s.Event != "" {
			kinds++
		}
		if len(s.Drop) > 0 {
			kinds++
		}
		if s.Collect {
			kinds++
		}
		if kinds != 1 {
			errs = append(errs, fmt.Errorf("step %d: want exactly one of event, drop, collect", i))
			continue
		}
		if s.Event == "" && (len(s.Objects) > 0 || s.Aux != nil) {
			errs = append(errs, fmt.Errorf("step %d: objects and aux belong to event steps", i))
		}
		for _, l := range s.Objects {
			if l == "" {
				errs = append(errs, fmt.Errorf("step %d: empty object label", i))
			}
			seen[l] = true
		}
		for _, l := range s.Drop {
			if !seen[l] {
				errs = append(errs, fmt.Errorf("step %d: drop of unknown object %q", i, l))
			}
		}
	}
	return errors.Join(errs...)
}

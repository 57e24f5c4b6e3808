package model

import (
	"fmt"

	"github.com/roach88/prm/internal/analysis"
	"github.com/roach88/prm/internal/ir"
)

// Property bundles everything derived statically from a specification.
// It is immutable and may be shared read-only by any number of engines.
type Property struct {
	Spec     ir.Specification
	Analysis *analysis.Result
	Model    *Model
	Context  *EventContext
	Tree     *ParameterTree
}

// Compile analyzes spec and builds its model, event context and parameter
// tree.
func Compile(spec ir.Specification) (*Property, error) {
	r, err := analysis.Analyze(spec)
	if err != nil {
		return nil, fmt.Errorf("analyze property: %w", err)
	}
	m, err := Build(r)
	if err != nil {
		return nil, fmt.Errorf("build model for %s: %w", spec.Name(), err)
	}
	return &Property{
		Spec:     spec,
		Analysis: r,
		Model:    m,
		Context:  NewEventContext(m),
		Tree:     NewParameterTree(m),
	}, nil
}

// MustCompile is like Compile but panics on error.
// Use only in tests or for properties known to be valid.
func MustCompile(spec ir.Specification) *Property {
	p, err := Compile(spec)
	if err != nil {
		panic(err)
	}
	return p
}

// Name returns the property name.
func (p *Property) Name() string { return p.Spec.Name() }

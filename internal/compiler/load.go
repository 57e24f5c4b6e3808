package compiler

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/roach88/prm/internal/ir"
)

// PropertiesField is the top-level CUE field holding property
// declarations, keyed by property name.
const PropertiesField = "property"

// BuildValue loads a CUE package and evaluates it. With no files the
// package in dir is loaded; otherwise only the named files, which must
// share a package clause. Relative file paths are resolved against dir.
func BuildValue(dir string, files ...string) (cue.Value, error) {
	args := []string{"."}
	if len(files) > 0 {
		args = make([]string, len(files))
		for i, f := range files {
			if dir != "" && !filepath.IsAbs(f) {
				f = filepath.Join(dir, f)
			}
			args[i] = f
		}
	}
	instances := load.Instances(args, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return cue.Value{}, fmt.Errorf("no CUE instances loaded")
	}
	inst := instances[0]
	if inst.Err != nil {
		return cue.Value{}, fmt.Errorf("loading CUE files: %w", inst.Err)
	}
	v := cuecontext.New().BuildInstance(inst)
	if err := v.Err(); err != nil {
		return cue.Value{}, fmt.Errorf("building CUE value: %w", formatCUEError(err))
	}
	return v, nil
}

// PropertyValues returns the property structs declared under
// PropertiesField, sorted by name.
func PropertyValues(v cue.Value) (map[string]cue.Value, []string, error) {
	props := v.LookupPath(cue.ParsePath(PropertiesField))
	if !props.Exists() {
		return nil, nil, fmt.Errorf("no %q field", PropertiesField)
	}
	iter, err := props.Fields()
	if err != nil {
		return nil, nil, fmt.Errorf("iterating properties: %w", formatCUEError(err))
	}
	values := make(map[string]cue.Value)
	var names []string
	for iter.Next() {
		values[iter.Label()] = iter.Value()
		names = append(names, iter.Label())
	}
	sort.Strings(names)
	return values, names, nil
}

// CompileAll compiles every property declared in v. Failures are
// collected; the properties that compiled are returned alongside them.
func CompileAll(v cue.Value) ([]*ir.FSM, error) {
	values, names, err := PropertyValues(v)
	if err != nil {
		return nil, err
	}
	var (
		out  []*ir.FSM
		errs []error
	)
	for _, name := range names {
		fsm, err := CompileProperty(values[name])
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, fsm)
	}
	return out, errors.Join(errs...)
}

// LoadFiles loads the named CUE files and compiles their properties.
func LoadFiles(dir string, files ...string) ([]*ir.FSM, error) {
	v, err := BuildValue(dir, files...)
	if err != nil {
		return nil, err
	}
	return CompileAll(v)
}

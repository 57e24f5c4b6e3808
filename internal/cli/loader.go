package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/token"

	"github.com/roach88/prm/internal/compiler"
	"github.com/roach88/prm/internal/ir"
	"github.com/roach88/prm/internal/model"
)

// LoadMode controls how errors are handled during property loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// LoadResult contains the properties loaded from a directory.
type LoadResult struct {
	Properties []*ir.FSM
	CUEValue   cue.Value // The raw CUE value for additional processing
	FileCount  int       // Number of CUE files found
}

// Select returns the properties to run: all of them, or only the one
// named. An unknown name is an error.
func (r *LoadResult) Select(name string) ([]*ir.FSM, error) {
	if name == "" {
		return r.Properties, nil
	}
	for _, p := range r.Properties {
		if p.Name() == name {
			return []*ir.FSM{p}, nil
		}
	}
	return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("property %q not found", name)}
}

// Compile runs the static analysis for each FSM.
func Compile(fsms []*ir.FSM) ([]*model.Property, error) {
	props := make([]*model.Property, 0, len(fsms))
	for _, f := range fsms {
		p, err := model.Compile(f)
		if err != nil {
			return nil, err
		}
		props = append(props, p)
	}
	return props, nil
}

// LoadError represents an error that occurred during property loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadProperties loads and compiles the CUE properties in a directory.
// If mode is LoadModeFailFast, returns on first error.
// If mode is LoadModeCollectAll, collects all errors.
func LoadProperties(dir string, mode LoadMode) (*LoadResult, []error) {
	value, count, err := loadValue(dir)
	if err != nil {
		return nil, []error{err}
	}

	values, names, err := compiler.PropertyValues(value)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNoProperties, Message: fmt.Sprintf("no properties found in %s", dir)}}
	}

	result := &LoadResult{CUEValue: value, FileCount: count}
	var errs []error
	for _, name := range names {
		fsm, err := compiler.CompileProperty(values[name])
		if err != nil {
			errs = append(errs, convertCompileError(err, compiler.PropertiesField+"."+name))
			if mode == LoadModeFailFast {
				return result, errs
			}
			continue
		}
		result.Properties = append(result.Properties, fsm)
	}

	if len(result.Properties) == 0 && len(errs) == 0 {
		errs = append(errs, &LoadError{Code: ErrCodeNoProperties, Message: fmt.Sprintf("no properties found in %s", dir)})
	}
	return result, errs
}

// loadValue checks dir and evaluates the CUE package in it.
func loadValue(dir string) (cue.Value, int, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return cue.Value{}, 0, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("properties directory not found: %s", dir)}
	}
	if err != nil {
		return cue.Value{}, 0, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing properties directory: %v", err)}
	}
	if !info.IsDir() {
		return cue.Value{}, 0, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return cue.Value{}, 0, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
	}
	if len(cueFiles) == 0 {
		return cue.Value{}, 0, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}
	}

	value, err := compiler.BuildValue(dir)
	if err != nil {
		return cue.Value{}, 0, &LoadError{Code: ErrCodeLoadFailed, Message: err.Error()}
	}
	return value, len(cueFiles), nil
}

// FindCUEFiles returns the .cue files directly in dir, sorted. CUE loads
// one package per directory, so subdirectories are not searched.
func FindCUEFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".cue" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	return files, nil
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error, context string) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    ErrCodeInvalidProperty,
			Message: compileErr.Message,
			Pos:     compileErr.Pos,
		}
	}
	var validationErrs compiler.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		return &LoadError{
			Code:    validationErrs[0].Code,
			Message: fmt.Sprintf("%s: %v", context, err),
		}
	}
	var cfgErr *ir.ConfigError
	if errors.As(err, &cfgErr) {
		return &LoadError{
			Code:    string(cfgErr.Code),
			Message: fmt.Sprintf("%s: %s", context, cfgErr.Message),
		}
	}
	return &LoadError{
		Code:    ErrCodeGeneric,
		Message: fmt.Sprintf("%s: %v", context, err),
	}
}

// Error code constants - unified across all CLI commands.
// Property validation codes (E1xx) come from the compiler.
const (
	ErrCodeGeneric         = "E001" // Generic/unknown error
	ErrCodeScanError       = "E002" // Directory scan error
	ErrCodeNoFiles         = "E003" // No CUE files found
	ErrCodeLoadFailed      = "E004" // CUE load or build failed
	ErrCodeNotFound        = "E005" // Path not found
	ErrCodeNoProperties    = "E006" // No property declarations
	ErrCodeTestFailed      = "E007" // One or more scenarios failed
	ErrCodeInvalidProperty = "E100" // Property has the wrong shape
)

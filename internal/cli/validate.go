package cli

import (
	"errors"
	"fmt"
	"io"

	"cuelang.org/go/cue"
	"github.com/spf13/cobra"

	"github.com/roach88/prm/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid      bool                       `json:"valid"`
	Properties []string                   `json:"properties,omitempty"`
	Errors     []compiler.ValidationError `json:"errors,omitempty"`
	Warnings   []compiler.ValidationError `json:"warnings,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <properties-dir>",
		Short: "Validate properties without building monitors",
		Long: `Validate the CUE properties in a directory.

Checks the shape and content of every property and reports all findings,
not just the first. Warnings (such as a property with no accepting state)
are printed but do not fail validation.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(cmd, opts)

	value, count, err := loadValue(dir)
	if err != nil {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			return outputValidateError(formatter, loadErr.Code, loadErr.Message)
		}
		return outputValidateError(formatter, ErrCodeGeneric, err.Error())
	}
	formatter.VerboseLog("Found %d CUE file(s) in %s", count, dir)

	result := validateAll(value, formatter)
	if len(result.Errors) > 0 {
		return outputValidationErrors(formatter, result)
	}
	return outputValidateSuccess(formatter, result)
}

// validateAll validates every property in the CUE value, collecting all
// findings.
func validateAll(value cue.Value, formatter *OutputFormatter) ValidationResult {
	var result ValidationResult

	values, names, err := compiler.PropertyValues(value)
	if err != nil || len(names) == 0 {
		result.Errors = append(result.Errors, compiler.ValidationError{
			Field:    compiler.PropertiesField,
			Message:  "no properties found",
			Code:     ErrCodeNoProperties,
			Severity: compiler.SeverityError,
		})
		return result
	}

	for _, name := range names {
		formatter.VerboseLog("Validating property: %s", name)
		result.Properties = append(result.Properties, name)

		decl, err := compiler.ParseProperty(values[name])
		if err != nil {
			var cErr *compiler.CompileError
			if errors.As(err, &cErr) {
				result.Errors = append(result.Errors, compiler.ValidationError{
					Field:    cErr.Field,
					Message:  cErr.Message,
					Code:     ErrCodeInvalidProperty,
					Severity: compiler.SeverityError,
					Line:     cErr.Pos.Line(),
				})
			} else {
				result.Errors = append(result.Errors, compiler.ValidationError{
					Field:    compiler.PropertiesField + "." + name,
					Message:  err.Error(),
					Code:     ErrCodeGeneric,
					Severity: compiler.SeverityError,
				})
			}
			continue
		}

		findings := compiler.Validate(decl)
		for _, f := range findings {
			f.Field = name + "." + f.Field
			if f.Severity == compiler.SeverityWarning {
				result.Warnings = append(result.Warnings, f)
			} else {
				result.Errors = append(result.Errors, f)
			}
		}
		if compiler.HasErrors(findings) {
			continue
		}

		// Catch what only the automaton builder rejects.
		if _, err := compiler.BuildFSM(decl); err != nil {
			loadErr := convertCompileError(err, compiler.PropertiesField+"."+name)
			result.Errors = append(result.Errors, compiler.ValidationError{
				Field:    compiler.PropertiesField + "." + name,
				Message:  loadErr.Message,
				Code:     loadErr.Code,
				Severity: compiler.SeverityError,
			})
		}
	}

	result.Valid = len(result.Errors) == 0
	return result
}

func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	return formatter.Success(result, func(w io.Writer) {
		for _, f := range result.Warnings {
			printFinding(w, "warning", f)
		}
		fmt.Fprintf(w, "✓ All properties valid (%d)\n", len(result.Properties))
	})
}

// outputValidateError reports a load failure, which is a command error.
func outputValidateError(formatter *OutputFormatter, code, message string) error {
	if err := formatter.Error(code, message, nil); err != nil {
		return err
	}
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputValidationErrors reports every finding; the first error names the
// failure in JSON.
func outputValidationErrors(formatter *OutputFormatter, result ValidationResult) error {
	errs := result.Errors
	failure := &CLIError{Code: errs[0].Code, Message: errs[0].Message}
	err := formatter.Report(result, failure, func(w io.Writer) {
		fmt.Fprintln(w, "✗ Validation failed")
		fmt.Fprintln(w)
		for _, f := range errs {
			printFinding(w, "error", f)
		}
		for _, f := range result.Warnings {
			printFinding(w, "warning", f)
		}
	})
	if err != nil {
		return err
	}
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}

func printFinding(w io.Writer, kind string, f compiler.ValidationError) {
	if f.Line > 0 {
		fmt.Fprintf(w, "line %d\n", f.Line)
	}
	fmt.Fprintf(w, "  %s %s: %s: %s\n\n", kind, f.Code, f.Field, f.Message)
}

// ValidatePropertiesDir validates all properties in a directory.
// This is a helper function for external callers.
func ValidatePropertiesDir(dir string) ([]compiler.ValidationError, error) {
	value, _, err := loadValue(dir)
	if err != nil {
		return nil, err
	}

	// Create a silent formatter for validateAll
	silentFormatter := &OutputFormatter{Format: "text", Verbose: false, Writer: io.Discard}
	result := validateAll(value, silentFormatter)
	return append(result.Errors, result.Warnings...), nil
}

package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/reteflow/internal/compiler"
	"github.com/roach88/reteflow/internal/queryir"
	"github.com/roach88/reteflow/internal/topology"
)

// Issue severities.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// WarnQueryLint tags findings of the query linter (queryir.Validate).
const WarnQueryLint = "W201"

// ValidationIssue is one problem found while validating.
type ValidationIssue struct {
	Query    string `json:"query,omitempty"`
	Node     string `json:"node,omitempty"`
	Code     string `json:"code"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
	Line     int    `json:"line,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Issues []ValidationIssue `json:"issues,omitempty"`
}

func (r *ValidationResult) add(issue ValidationIssue) {
	r.Issues = append(r.Issues, issue)
	if issue.Severity == SeverityError {
		r.Valid = false
	}
}

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	BuildFlags
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <path>",
		Short: "Check queries or compiled descriptors",
		Long: `Validate queries without writing anything.

For query sources (.rq, .sparql, .cue or a CUE directory) every query is
parsed, linted and compiled; all problems are reported, not just the
first. For a .json file written by "compile --output" each stored
descriptor is checked for structural problems: dangling edges, cycles,
groupings that do not fit their schema.

Warnings (unbound variables, cartesian joins) are reported but do not
fail validation.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	opts.BuildFlags.register(cmd)
	return cmd
}

func runValidate(opts *ValidateOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	if filepath.Ext(path) == ".json" {
		result, err := validateDescriptorFile(path)
		if err != nil {
			return outputValidateError(formatter, ErrCodeLoadFailed, err.Error())
		}
		return outputValidation(formatter, result)
	}

	loadResult, loadErrors := LoadQueries(path, LoadModeCollectAll)
	if loadResult == nil {
		return outputValidateError(formatter, errorCode(loadErrors[0]), errorMessage(loadErrors[0]))
	}
	formatter.VerboseLog("Read %d file(s) from %s", loadResult.FileCount, path)

	result := &ValidationResult{Valid: true}
	for _, err := range loadErrors {
		result.add(issueFromError(err))
	}

	for _, spec := range loadResult.Queries {
		formatter.VerboseLog("Validating query: %s", spec.Name)
		for _, w := range queryir.Validate(spec.Query).Warnings {
			result.add(ValidationIssue{Query: spec.Name, Code: WarnQueryLint, Severity: SeverityWarning, Message: w})
		}
	}

	topologies, buildErrors := opts.build(loadResult, formatter, LoadModeCollectAll)
	for _, err := range buildErrors {
		result.add(issueFromError(err))
	}
	for _, d := range topologies {
		for _, w := range d.Warnings {
			result.add(ValidationIssue{Query: d.Name, Code: w.Code, Severity: SeverityWarning, Message: w.Message})
		}
	}

	return outputValidation(formatter, result)
}

// validateDescriptorFile checks every descriptor of a compile --output file.
func validateDescriptorFile(path string) (*ValidationResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading descriptors: %w", err)
	}
	var compiled CompilationResult
	if err := json.Unmarshal(data, &compiled); err != nil {
		return nil, fmt.Errorf("decoding descriptors: %w", err)
	}
	if len(compiled.Topologies) == 0 {
		return nil, fmt.Errorf("no topologies in %s", path)
	}

	result := &ValidationResult{Valid: true}
	for _, d := range compiled.Topologies {
		name := d.Name
		if name == "" {
			name = d.ID
		}
		for _, ve := range topology.Validate(d) {
			result.add(ValidationIssue{Query: name, Node: ve.Node, Code: ve.Code, Severity: SeverityError, Message: ve.Message})
		}
	}
	return result, nil
}

func issueFromError(err error) ValidationIssue {
	issue := ValidationIssue{Code: errorCode(err), Severity: SeverityError, Message: err.Error()}

	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		issue.Message = compileErr.Message
		if compileErr.Pos.IsValid() {
			issue.Line = compileErr.Pos.Line()
		}
	}
	var queryErr *QueryError
	if errors.As(err, &queryErr) {
		issue.Query = queryErr.Query
	}
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		issue.Message = loadErr.Message
		if loadErr.Pos.IsValid() {
			issue.Line = loadErr.Pos.Line()
		}
	}
	return issue
}

// outputValidation outputs the validation result. Errors exit with
// ExitFailure, warnings alone do not.
func outputValidation(formatter *OutputFormatter, result *ValidationResult) error {
	errCount := 0
	for _, issue := range result.Issues {
		if issue.Severity == SeverityError {
			errCount++
		}
	}

	if formatter.JSON() {
		response := CLIResponse{Status: "ok", Data: result}
		if !result.Valid {
			first := firstError(result.Issues)
			response.Status = "error"
			response.Error = &CLIError{Code: first.Code, Message: first.Message}
		}
		if err := formatter.Encode(response); err != nil {
			return err
		}
	} else {
		if result.Valid {
			fmt.Fprintln(formatter.Writer, "✓ All queries valid")
		} else {
			fmt.Fprintln(formatter.Writer, "✗ Validation failed")
		}
		if len(result.Issues) > 0 {
			fmt.Fprintln(formatter.Writer)
		}
		for _, issue := range result.Issues {
			where := issue.Query
			if issue.Node != "" {
				where += " " + issue.Node
			}
			if issue.Line > 0 {
				where += fmt.Sprintf(" line %d", issue.Line)
			}
			fmt.Fprintf(formatter.Writer, "%s %s [%s] %s\n", issue.Severity, where, issue.Code, issue.Message)
		}
	}

	if !result.Valid {
		// Validation failures = exit code 1
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", errCount))
	}
	return nil
}

func firstError(issues []ValidationIssue) ValidationIssue {
	for _, issue := range issues {
		if issue.Severity == SeverityError {
			return issue
		}
	}
	return ValidationIssue{}
}

// outputValidateError outputs a single validation error.
func outputValidateError(formatter *OutputFormatter, code, message string) error {
	_ = formatter.Error(code, message, nil)
	// Unreadable input is a command-level error (exit code 2)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

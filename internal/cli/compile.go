package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/reteflow/internal/compiler"
	"github.com/roach88/reteflow/internal/store"
	"github.com/roach88/reteflow/internal/topology"
)

// BuildFlags are the compiler settings shared by every command that
// compiles queries. Set flags override the CUE topology config.
type BuildFlags struct {
	Parallelism int
	Static      []string
	Strict      bool

	// IDs allows overriding the descriptor ID generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	IDs topology.IDGenerator
}

func (f *BuildFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&f.Parallelism, "parallelism", "p", 0, "default node parallelism (overrides config)")
	cmd.Flags().StringSliceVar(&f.Static, "static", nil, "predicate IRI served from reference data (repeatable)")
	cmd.Flags().BoolVar(&f.Strict, "strict", false, "reject cartesian joins")
}

// options layers the flags over the loaded config.
func (f *BuildFlags) options(cfg compiler.Config, logger *slog.Logger) []compiler.Option {
	opts := cfg.Options()
	if f.Parallelism > 0 {
		opts = append(opts, compiler.WithParallelism(f.Parallelism))
	}
	if len(f.Static) > 0 {
		opts = append(opts, compiler.WithStaticPredicates(f.Static...))
	}
	if f.Strict {
		opts = append(opts, compiler.WithStrictJoins())
	}
	if f.IDs != nil {
		opts = append(opts, compiler.WithIDGenerator(f.IDs))
	}
	return append(opts, compiler.WithLogger(logger))
}

// build compiles every loaded query. Descriptors are named after their
// query. In LoadModeFailFast the first failure stops the build.
func (f *BuildFlags) build(loaded *LoadResult, formatter *OutputFormatter, mode LoadMode) ([]*topology.Descriptor, []error) {
	opts := f.options(loaded.Config, formatter.Logger())

	var out []*topology.Descriptor
	var errs []error
	for _, spec := range loaded.Queries {
		formatter.VerboseLog("Compiling query: %s", spec.Name)
		d, err := compiler.Build(spec.Query, opts...)
		if err != nil {
			errs = append(errs, &QueryError{Query: spec.Name, Err: err})
			if mode == LoadModeFailFast {
				return out, errs
			}
			continue
		}
		d.Name = spec.Name
		out = append(out, d)
	}
	return out, errs
}

// QueryError ties a build failure to the query that caused it.
type QueryError struct {
	Query string
	Err   error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query %s: %v", e.Query, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	BuildFlags
	Output   string // output file path
	Database string // catalog to store descriptors in
}

// CompilationResult holds the compiled topologies.
type CompilationResult struct {
	Topologies []*topology.Descriptor `json:"topologies"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <path>",
		Short: "Compile queries to topology descriptors",
		Long: `Compile SPARQL queries into stream topology descriptors.

<path> is a .rq/.sparql file, a .cue file, or a directory of CUE files
declaring queries under query.<name>.sparql and compiler settings under
topology. Descriptors can be written to a JSON file and stored in a
catalog database.

Examples:
  reteflow compile ./queries
  reteflow compile people.rq --parallelism 8 --strict
  reteflow compile ./queries --output topologies.json --db ./catalog.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	opts.BuildFlags.register(cmd)
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")
	cmd.Flags().StringVar(&opts.Database, "db", "", "store descriptors in this catalog database")

	return cmd
}

func runCompile(opts *CompileOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	loadResult, loadErrors := LoadQueries(path, LoadModeCollectAll)
	if loadResult == nil {
		return outputCompileError(formatter, errorCode(loadErrors[0]), errorMessage(loadErrors[0]))
	}
	formatter.VerboseLog("Read %d file(s) from %s", loadResult.FileCount, path)

	topologies, buildErrors := opts.build(loadResult, formatter, LoadModeCollectAll)
	if errs := append(loadErrors, buildErrors...); len(errs) > 0 {
		return outputCompileErrors(formatter, errs)
	}

	result := &CompilationResult{Topologies: topologies}

	if opts.Output != "" {
		if err := writeDescriptors(result, opts.Output); err != nil {
			return outputCompileError(formatter, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err))
		}
	}

	if opts.Database != "" {
		if err := storeDescriptors(cmd, opts.Database, topologies, formatter); err != nil {
			return outputCompileError(formatter, ErrCodeStore, err.Error())
		}
	}

	return outputCompileSuccess(formatter, result, opts)
}

func storeDescriptors(cmd *cobra.Command, path string, topologies []*topology.Descriptor, formatter *OutputFormatter) error {
	st, err := store.Open(path)
	if err != nil {
		return err
	}
	defer st.Close()

	for _, d := range topologies {
		seq, err := st.WriteTopology(commandContext(cmd), d)
		if err != nil {
			return err
		}
		formatter.VerboseLog("Stored %s as seq %d", d.ID, seq)
	}
	return nil
}

// outputCompileSuccess outputs successful compilation results.
func outputCompileSuccess(formatter *OutputFormatter, result *CompilationResult, opts *CompileOptions) error {
	if formatter.JSON() {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ Compiled %d topolog(ies)\n\n", len(result.Topologies))
	for _, d := range result.Topologies {
		fmt.Fprintf(w, "  %s (%s): %d node(s), %d edge(s), output %s\n",
			d.Name, d.ID, len(d.Nodes), len(d.Edges), d.Output)
		for _, warn := range d.Warnings {
			fmt.Fprintf(w, "    warning %s: %s\n", warn.Code, warn.Message)
		}
	}
	fmt.Fprintln(w)

	if opts.Output != "" {
		fmt.Fprintf(w, "Wrote descriptors to %s\n", opts.Output)
	}
	if opts.Database != "" {
		fmt.Fprintf(w, "Stored %d topolog(ies) in %s\n", len(result.Topologies), opts.Database)
	}
	return nil
}

// outputCompileError outputs a single compilation error.
func outputCompileError(formatter *OutputFormatter, code, message string) error {
	_ = formatter.Error(code, message, nil)
	// Compilation errors are command-level errors (exit code 2)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputCompileErrors outputs multiple compilation errors.
func outputCompileErrors(formatter *OutputFormatter, errs []error) error {
	if formatter.JSON() {
		cliErrors := make([]CLIError, len(errs))
		for i, err := range errs {
			cliErrors[i] = CLIError{Code: errorCode(err), Message: err.Error()}
		}

		response := CLIResponse{
			Status: "error",
			Error:  &cliErrors[0],
			Data:   cliErrors, // Include all errors in data
		}
		if err := formatter.Encode(response); err != nil {
			return err
		}
		return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Compilation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		var compileErr *compiler.CompileError
		if errors.As(err, &compileErr) && compileErr.Pos.IsValid() {
			fmt.Fprintf(formatter.Writer, "%s:%d:%d\n",
				compileErr.Pos.Filename(),
				compileErr.Pos.Line(),
				compileErr.Pos.Column())
		}
		var loadErr *LoadError
		if errors.As(err, &loadErr) && loadErr.Pos.IsValid() {
			fmt.Fprintf(formatter.Writer, "%s:%d:%d\n",
				loadErr.Pos.Filename(),
				loadErr.Pos.Line(),
				loadErr.Pos.Column())
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", errorCode(err), errorMessage(err))
	}

	// Compilation errors are command-level errors (exit code 2)
	return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
}

// writeDescriptors writes the compiled topologies as indented JSON.
func writeDescriptors(result *CompilationResult, filename string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling descriptors: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}

	return nil
}

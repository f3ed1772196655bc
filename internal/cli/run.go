package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/reteflow/internal/compiler"
	"github.com/roach88/reteflow/internal/engine"
	"github.com/roach88/reteflow/internal/sparql"
	"github.com/roach88/reteflow/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	BuildFlags
	Query    string // query name when the source declares several
	Database string // catalog serving reference data
	MaxRows  int64
	Metrics  bool
}

// RunResult is the JSON output of a run.
type RunResult struct {
	TopologyID string             `json:"topology_id"`
	Name       string             `json:"name"`
	Vars       []string           `json:"vars"`
	Rows       [][]string         `json:"rows"`
	Stats      []engine.NodeStats `json:"stats"`
	Metrics    []string           `json:"metrics,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <query> <facts>",
		Short: "Compile a query and stream facts through it",
		Long: `Compile one query and run its topology on the local runtime.

<facts> holds triples in SPARQL triple syntax (PREFIX declarations, "," and
";" lists allowed). Static predicates are served from the reference
triples of the catalog given with --db.

Example:
  reteflow run people.rq people.ttl
  reteflow run ./queries facts.ttl --query adults --parallelism 8
  reteflow run labels.rq facts.ttl --static http://ex/label --db ./catalog.db`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, args[0], args[1], cmd)
		},
	}

	opts.BuildFlags.register(cmd)
	cmd.Flags().StringVarP(&opts.Query, "query", "q", "", "name of the query to run (default: the only query)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "catalog database serving reference data")
	cmd.Flags().Int64Var(&opts.MaxRows, "max-rows", 0, "fail once this many rows are emitted in total (default engine limit)")
	cmd.Flags().BoolVar(&opts.Metrics, "metrics", false, "report run metrics")

	return cmd
}

func runQuery(opts *RunOptions, queryPath, factsPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := formatter.Logger()

	loadResult, loadErrors := LoadQueries(queryPath, LoadModeFailFast)
	if len(loadErrors) > 0 {
		return outputCompileError(formatter, errorCode(loadErrors[0]), errorMessage(loadErrors[0]))
	}
	spec, err := selectQuery(loadResult.Queries, opts.Query)
	if err != nil {
		return outputCompileError(formatter, ErrCodeNoQueries, err.Error())
	}

	facts, err := readFacts(factsPath)
	if err != nil {
		return outputCompileError(formatter, ErrCodeFacts, err.Error())
	}
	formatter.VerboseLog("Read %d fact(s) from %s", len(facts), factsPath)

	topologies, buildErrors := opts.build(&LoadResult{Config: loadResult.Config, Queries: []*compiler.QuerySpec{spec}}, formatter, LoadModeFailFast)
	if len(buildErrors) > 0 {
		return outputCompileError(formatter, errorCode(buildErrors[0]), buildErrors[0].Error())
	}
	d := topologies[0]

	engineOpts := []engine.Option{engine.WithLogger(logger)}
	if opts.MaxRows > 0 {
		engineOpts = append(engineOpts, engine.WithMaxRows(opts.MaxRows))
	}
	if opts.Database != "" {
		st, err := store.Open(opts.Database)
		if err != nil {
			return outputCompileError(formatter, ErrCodeStore, fmt.Sprintf("opening catalog: %v", err))
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing catalog", "error", closeErr)
			}
		}()
		engineOpts = append(engineOpts, engine.WithReferenceData(st))
	}
	var registry *prometheus.Registry
	if opts.Metrics {
		registry = prometheus.NewRegistry()
		engineOpts = append(engineOpts, engine.WithMetrics(engine.NewMetrics(registry)))
	}

	eng, err := engine.New(d, engineOpts...)
	if err != nil {
		return outputRunError(formatter, err)
	}

	// Setup signal handling so Ctrl-C cancels a long run
	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, cancelling run", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	logger.Debug("run starting", "topology", d.ID, "query", spec.Name, "facts", len(facts))
	result, err := eng.Run(ctx, facts)
	if err != nil {
		return outputRunError(formatter, err)
	}

	out := &RunResult{
		TopologyID: result.TopologyID,
		Name:       spec.Name,
		Vars:       result.Vars,
		Rows:       result.Strings(),
		Stats:      result.Stats,
	}
	if registry != nil {
		lines, err := metricLines(registry)
		if err != nil {
			return WrapExitError(ExitFailure, "gathering metrics", err)
		}
		out.Metrics = lines
	}
	return outputRunResult(formatter, out)
}

// selectQuery picks the named query, or the only one when name is empty.
func selectQuery(queries []*compiler.QuerySpec, name string) (*compiler.QuerySpec, error) {
	if name == "" {
		if len(queries) != 1 {
			names := make([]string, len(queries))
			for i, q := range queries {
				names[i] = q.Name
			}
			return nil, fmt.Errorf("source declares %d queries (%s): choose one with --query", len(queries), strings.Join(names, ", "))
		}
		return queries[0], nil
	}
	for _, q := range queries {
		if q.Name == name {
			return q, nil
		}
	}
	return nil, fmt.Errorf("query %q not found", name)
}

// readFacts parses a facts file.
func readFacts(path string) ([]engine.Fact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading facts: %w", err)
	}
	facts, err := sparql.ParseFacts(string(data))
	if err != nil {
		return nil, fmt.Errorf("parsing facts %s: %w", path, err)
	}
	return facts, nil
}

// metricLines renders the counters of registry, one "name{labels} value"
// line per series.
func metricLines(registry *prometheus.Registry) ([]string, error) {
	families, err := registry.Gather()
	if err != nil {
		return nil, err
	}
	var lines []string
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			var labels []string
			for _, lp := range m.GetLabel() {
				labels = append(labels, fmt.Sprintf("%s=%q", lp.GetName(), lp.GetValue()))
			}
			name := mf.GetName()
			if len(labels) > 0 {
				name += "{" + strings.Join(labels, ",") + "}"
			}
			switch {
			case m.GetCounter() != nil:
				lines = append(lines, fmt.Sprintf("%s %g", name, m.GetCounter().GetValue()))
			case m.GetHistogram() != nil:
				lines = append(lines, fmt.Sprintf("%s_count %d", name, m.GetHistogram().GetSampleCount()))
			}
		}
	}
	return lines, nil
}

func outputRunResult(formatter *OutputFormatter, result *RunResult) error {
	if formatter.JSON() {
		return formatter.Success(result)
	}

	w := tabwriter.NewWriter(formatter.Writer, 0, 0, 2, ' ', 0)
	header := make([]string, len(result.Vars))
	for i, v := range result.Vars {
		header[i] = "?" + v
	}
	fmt.Fprintln(w, strings.Join(header, "\t"))
	for _, row := range result.Rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(formatter.Writer, "\n%d row(s)\n", len(result.Rows))

	if formatter.Verbose {
		fmt.Fprintln(formatter.Writer)
		for _, s := range result.Stats {
			fmt.Fprintf(formatter.Writer, "  %s [%s p=%d] in=%d out=%d\n", s.Node, s.Kind, s.Parallelism, s.RowsIn, s.RowsOut)
		}
	}
	if len(result.Metrics) > 0 {
		fmt.Fprintln(formatter.Writer)
		for _, line := range result.Metrics {
			fmt.Fprintln(formatter.Writer, line)
		}
	}
	return nil
}

// outputRunError reports a runtime failure. Runtime failures exit with
// ExitFailure; the query itself compiled.
func outputRunError(formatter *OutputFormatter, err error) error {
	code := string(engine.ErrorCode(err))
	if code == "" {
		code = ErrCodeGeneric
	}
	if errors.Is(err, context.Canceled) {
		code = "CANCELLED"
	}
	_ = formatter.Error(code, err.Error(), nil)
	return WrapExitError(ExitFailure, "run failed", err)
}

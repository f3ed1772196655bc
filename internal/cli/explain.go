package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/reteflow/internal/topology"
)

// ExplainOptions holds flags for the explain command.
type ExplainOptions struct {
	*RootOptions
	BuildFlags
}

// ExplainEntry is the explain output of one query.
type ExplainEntry struct {
	Name     string             `json:"name"`
	ID       string             `json:"id"`
	Output   string             `json:"output"`
	Tree     string             `json:"tree"`
	Warnings []topology.Warning `json:"warnings,omitempty"`
}

// NewExplainCommand creates the explain command.
func NewExplainCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExplainOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "explain <path>",
		Short: "Show the topology tree of each query",
		Long: `Compile queries and print each topology as a tree rooted at its output
terminal. Every line names a node, its kind and parallelism, what it
matches or computes, and the grouping of the edge feeding its parent.

Examples:
  reteflow explain people.rq
  reteflow explain ./queries --parallelism 2
  reteflow explain ./queries --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExplain(opts, args[0], cmd)
		},
	}

	opts.BuildFlags.register(cmd)
	return cmd
}

func runExplain(opts *ExplainOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	loadResult, loadErrors := LoadQueries(path, LoadModeFailFast)
	if len(loadErrors) > 0 {
		return outputCompileError(formatter, errorCode(loadErrors[0]), errorMessage(loadErrors[0]))
	}

	topologies, buildErrors := opts.build(loadResult, formatter, LoadModeFailFast)
	if len(buildErrors) > 0 {
		return outputCompileError(formatter, errorCode(buildErrors[0]), buildErrors[0].Error())
	}

	entries := make([]ExplainEntry, len(topologies))
	for i, d := range topologies {
		entries[i] = ExplainEntry{
			Name:     d.Name,
			ID:       d.ID,
			Output:   d.Output,
			Tree:     topology.Explain(d),
			Warnings: d.Warnings,
		}
	}

	if formatter.JSON() {
		return formatter.Success(entries)
	}

	for i, e := range entries {
		if i > 0 {
			fmt.Fprintln(formatter.Writer)
		}
		fmt.Fprintf(formatter.Writer, "# %s\n", e.Name)
		fmt.Fprint(formatter.Writer, e.Tree)
	}
	return nil
}

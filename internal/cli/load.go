package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/reteflow/internal/store"
)

// LoadOptions holds flags for the load command.
type LoadOptions struct {
	*RootOptions
}

// LoadResultSummary reports what load stored.
type LoadResultSummary struct {
	Database string `json:"database"`
	Written  int    `json:"written"`
	Total    int    `json:"total"`
}

// NewLoadCommand creates the load command.
func NewLoadCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LoadOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "load <db> <facts>",
		Short: "Store reference triples in a catalog",
		Long: `Parse a facts file and append its triples to the reference data of a
catalog database. Static filters (--static) read these triples instead
of the streamed facts when a query runs with --db.

Example:
  reteflow load ./catalog.db labels.ttl`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(opts, args[0], args[1], cmd)
		},
	}

	return cmd
}

func runLoad(opts *LoadOptions, dbPath, factsPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := commandContext(cmd)

	facts, err := readFacts(factsPath)
	if err != nil {
		return outputCompileError(formatter, ErrCodeFacts, err.Error())
	}

	st, err := store.Open(dbPath)
	if err != nil {
		return outputCompileError(formatter, ErrCodeStore, fmt.Sprintf("opening catalog: %v", err))
	}
	defer st.Close()

	written, err := st.WriteReferenceTriples(ctx, facts)
	if err != nil {
		return outputCompileError(formatter, ErrCodeStore, err.Error())
	}
	total, err := st.CountReferenceTriples(ctx)
	if err != nil {
		return outputCompileError(formatter, ErrCodeStore, err.Error())
	}

	summary := LoadResultSummary{Database: dbPath, Written: written, Total: total}
	if formatter.JSON() {
		return formatter.Success(summary)
	}
	fmt.Fprintf(formatter.Writer, "✓ Stored %d reference triple(s) in %s (%d total)\n", written, dbPath, total)
	return nil
}

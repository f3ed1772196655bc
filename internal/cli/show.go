package cli

import (
	"database/sql"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/reteflow/internal/store"
	"github.com/roach88/reteflow/internal/topology"
)

// ShowOptions holds flags for the show command.
type ShowOptions struct {
	*RootOptions
}

// CatalogListing is the output of show without a topology ID.
type CatalogListing struct {
	Topologies       []store.TopologySummary `json:"topologies"`
	ReferenceTriples int                     `json:"reference_triples"`
}

// TopologyDetail is the output of show for one topology.
type TopologyDetail struct {
	ID       string             `json:"id"`
	Name     string             `json:"name,omitempty"`
	Output   string             `json:"output"`
	Tree     string             `json:"tree"`
	Edges    []store.EdgeRecord `json:"edges"`
	Warnings []topology.Warning `json:"warnings,omitempty"`
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShowOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "show <db> [id]",
		Short: "Inspect a topology catalog",
		Long: `List the topologies stored in a catalog database, or show one of them.

With an ID (or "latest") the stored descriptor is decoded and printed as
a tree together with its edge table.

Examples:
  reteflow show ./catalog.db
  reteflow show ./catalog.db latest
  reteflow show ./catalog.db 0192f8a4-... --format json`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return runList(opts, args[0], cmd)
			}
			return runShow(opts, args[0], args[1], cmd)
		},
	}

	return cmd
}

func runList(opts *ShowOptions, dbPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := commandContext(cmd)

	st, err := store.Open(dbPath)
	if err != nil {
		return outputCompileError(formatter, ErrCodeStore, fmt.Sprintf("opening catalog: %v", err))
	}
	defer st.Close()

	topologies, err := st.ListTopologies(ctx)
	if err != nil {
		return outputCompileError(formatter, ErrCodeStore, err.Error())
	}
	refs, err := st.CountReferenceTriples(ctx)
	if err != nil {
		return outputCompileError(formatter, ErrCodeStore, err.Error())
	}

	listing := CatalogListing{Topologies: topologies, ReferenceTriples: refs}
	if formatter.JSON() {
		return formatter.Success(listing)
	}

	if len(topologies) == 0 {
		fmt.Fprintln(formatter.Writer, "No topologies stored.")
	} else {
		w := tabwriter.NewWriter(formatter.Writer, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "SEQ\tID\tNAME\tOUTPUT\tNODES\tEDGES")
		for _, t := range topologies {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%d\n", t.Seq, t.ID, t.Name, t.Output, t.Nodes, t.Edges)
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}
	fmt.Fprintf(formatter.Writer, "\n%d reference triple(s)\n", refs)
	return nil
}

func runShow(opts *ShowOptions, dbPath, id string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := commandContext(cmd)

	st, err := store.Open(dbPath)
	if err != nil {
		return outputCompileError(formatter, ErrCodeStore, fmt.Sprintf("opening catalog: %v", err))
	}
	defer st.Close()

	var d *topology.Descriptor
	if id == "latest" {
		d, err = st.LatestTopology(ctx)
	} else {
		d, err = st.ReadTopology(ctx, id)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return outputCompileError(formatter, ErrCodeNotInStore, fmt.Sprintf("topology %s not found in %s", id, dbPath))
	}
	if err != nil {
		return outputCompileError(formatter, ErrCodeStore, err.Error())
	}

	edges, err := st.ReadEdges(ctx, d.ID)
	if err != nil {
		return outputCompileError(formatter, ErrCodeStore, err.Error())
	}

	detail := TopologyDetail{
		ID:       d.ID,
		Name:     d.Name,
		Output:   d.Output,
		Tree:     topology.Explain(d),
		Edges:    edges,
		Warnings: d.Warnings,
	}
	if formatter.JSON() {
		return formatter.Success(detail)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "# %s (%s)\n", detail.Name, detail.ID)
	fmt.Fprint(w, detail.Tree)
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FROM\tTO\tGROUPING\tPARALLELISM")
	for _, e := range edges {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", e.From, e.To, e.Grouping, e.Parallelism)
	}
	return tw.Flush()
}

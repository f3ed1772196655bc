package harness

import (
	"sort"
	"strings"

	"github.com/roach88/reteflow/internal/engine"
	"github.com/roach88/reteflow/internal/ir"
	"github.com/roach88/reteflow/internal/topology"
)

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every expect check holds.
	Pass bool `json:"pass"`

	// TopologyID is the ID of the compiled descriptor.
	TopologyID string `json:"topology_id,omitempty"`

	// Explain is the rendered topology tree.
	Explain string `json:"explain,omitempty"`

	// Vars names the result columns.
	Vars []string `json:"vars,omitempty"`

	// Rows holds the result rows in display form (see DisplayRow).
	Rows [][]string `json:"rows"`

	// Stats holds per-node row counts of the run.
	Stats []engine.NodeStats `json:"stats,omitempty"`

	// ErrorCode is the code of the compile or runtime failure, if any.
	ErrorCode string `json:"error_code,omitempty"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Descriptor is the topology as read back from the catalog.
	Descriptor *topology.Descriptor `json:"-"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Rows:   [][]string{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// DisplayRow renders a result row the way scenarios write expectations:
// IRIs as <iri>, literals by lexical form, unbound values as UNDEF.
func DisplayRow(row engine.Row) []string {
	out := make([]string, len(row))
	for i, t := range row {
		switch {
		case !t.IsBound():
			out[i] = "UNDEF"
		case t.Kind == ir.TermLiteral:
			out[i] = t.Value
		default:
			out[i] = t.String()
		}
	}
	return out
}

// sortedRows returns a sorted copy of rows for multiset comparison.
func sortedRows(rows [][]string) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = strings.Join(r, " | ")
	}
	sort.Strings(out)
	return out
}

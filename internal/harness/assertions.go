package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/reteflow/internal/topology"
)

// AssertionError is returned when an expect check fails.
// It includes the rendered topology to help debug the failure.
type AssertionError struct {
	Check    string // expect field that failed
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
	Explain  string // topology tree, when one was compiled
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Check)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if e.Explain != "" {
		fmt.Fprintf(&buf, "\nTopology:\n")
		for _, line := range strings.Split(strings.TrimRight(e.Explain, "\n"), "\n") {
			fmt.Fprintf(&buf, "  %s\n", line)
		}
	}
	return buf.String()
}

// EvaluateExpect runs every set check of expect against the result and
// returns one message per failure. d may be nil when compilation failed.
func EvaluateExpect(result *Result, d *topology.Descriptor, expect Expect) []string {
	var errs []error

	if expect.Error != "" || result.ErrorCode != "" {
		if err := assertError(result, expect); err != nil {
			errs = append(errs, err)
		}
	}

	if d != nil {
		errs = append(errs, assertShape(d, expect, result.Explain)...)
	}

	if result.ErrorCode == "" {
		if err := assertRows(result, expect); err != nil {
			errs = append(errs, err)
		}
	}

	out := make([]string, len(errs))
	for i, err := range errs {
		out[i] = err.Error()
	}
	return out
}

func assertError(result *Result, expect Expect) error {
	if result.ErrorCode == expect.Error {
		return nil
	}
	expected, actual := expect.Error, result.ErrorCode
	if expected == "" {
		expected = "success"
	}
	if actual == "" {
		actual = "success"
	}
	return &AssertionError{Check: "error", Expected: expected, Actual: actual, Explain: result.Explain}
}

// assertShape checks node counts, terminal routing and warnings.
func assertShape(d *topology.Descriptor, expect Expect, explain string) []error {
	var errs []error
	count := func(check string, want *int, got int) {
		if want != nil && *want != got {
			errs = append(errs, &AssertionError{
				Check:    check,
				Expected: fmt.Sprintf("%d", *want),
				Actual:   fmt.Sprintf("%d", got),
				Explain:  explain,
			})
		}
	}

	predicates := len(d.Predicates())
	count("filters", expect.Filters, d.Count(topology.KindFilter)-predicates)
	count("predicates", expect.Predicates, predicates)
	count("joins", expect.Joins, d.Count(topology.KindJoin))
	count("terminals", expect.Terminals, d.Count(topology.KindTerminal))

	out, ok := d.OutputNode()
	if !ok && (expect.TerminalGrouping != "" || expect.TerminalParallelism != 0) {
		errs = append(errs, &AssertionError{
			Check:    "terminal",
			Expected: "an output terminal",
			Actual:   fmt.Sprintf("no node named %q", d.Output),
			Explain:  explain,
		})
		return errs
	}

	if expect.TerminalGrouping != "" {
		for _, e := range d.Inputs(out.Name) {
			if string(e.Grouping.Kind) != expect.TerminalGrouping {
				errs = append(errs, &AssertionError{
					Check:    "terminal_grouping",
					Expected: fmt.Sprintf("%s on every input of %s", expect.TerminalGrouping, out.Name),
					Actual:   fmt.Sprintf("%s on %s -> %s", e.Grouping, e.From, e.To),
					Explain:  explain,
				})
			}
		}
	}

	if expect.TerminalParallelism != 0 && out.Parallelism != expect.TerminalParallelism {
		errs = append(errs, &AssertionError{
			Check:    "terminal_parallelism",
			Expected: fmt.Sprintf("%d", expect.TerminalParallelism),
			Actual:   fmt.Sprintf("%d", out.Parallelism),
			Explain:  explain,
		})
	}

	if expect.Warnings != nil {
		got := make([]string, len(d.Warnings))
		for i, w := range d.Warnings {
			got[i] = w.Code
		}
		if !slices.Equal(got, expect.Warnings) {
			errs = append(errs, &AssertionError{
				Check:    "warnings",
				Expected: fmt.Sprintf("%v", expect.Warnings),
				Actual:   fmt.Sprintf("%v", got),
				Explain:  explain,
			})
		}
	}
	return errs
}

// assertRows compares result rows as a multiset.
func assertRows(result *Result, expect Expect) error {
	if expect.RowCount != nil && len(result.Rows) != *expect.RowCount {
		return &AssertionError{
			Check:    "row_count",
			Expected: fmt.Sprintf("%d rows", *expect.RowCount),
			Actual:   fmt.Sprintf("%d rows", len(result.Rows)),
			Explain:  result.Explain,
		}
	}
	if expect.Rows == nil {
		return nil
	}

	want, got := sortedRows(expect.Rows), sortedRows(result.Rows)
	if slices.Equal(want, got) {
		return nil
	}
	return &AssertionError{
		Check:    "rows",
		Expected: "[" + strings.Join(want, "; ") + "]",
		Actual:   "[" + strings.Join(got, "; ") + "]",
		Explain:  result.Explain,
	}
}

package harness

import (
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Snapshot renders the parts of a run that golden files pin down: the
// topology tree followed by the result rows in sorted display form.
//
//	# union
//	terminal0[s,z] [terminal p=4] SELECT ?s ?z
//	...
//
//	rows:
//	<http://ex/a> | <http://ex/c>
func Snapshot(name string, result *Result) []byte {
	var b strings.Builder
	b.WriteString("# " + name + "\n")
	b.WriteString(result.Explain)
	if result.ErrorCode != "" {
		b.WriteString("\nerror: " + result.ErrorCode + "\n")
		return []byte(b.String())
	}
	b.WriteString("\nrows:\n")
	for _, row := range sortedRows(result.Rows) {
		b.WriteString(row + "\n")
	}
	return []byte(b.String())
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}

	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares an existing result against its golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, name string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, Snapshot(name, result))
}

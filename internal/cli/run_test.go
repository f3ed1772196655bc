package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/reteflow/internal/compiler"
	"github.com/roach88/reteflow/internal/testutil"
)

func runRunCmd(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()

	buf := &bytes.Buffer{}
	cmd := NewRunCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestRunQueryText(t *testing.T) {
	output, err := runRunCmd(t, "text", filepath.Join("testdata", "union.rq"), filepath.Join("testdata", "facts.ttl"))
	require.NoError(t, err)

	assert.Contains(t, output, "?s")
	assert.Contains(t, output, "?z")
	assert.Contains(t, output, "<http://ex/a>  <http://ex/c>")
	assert.Contains(t, output, "<http://ex/d>  <http://ex/e>")
	assert.Contains(t, output, "2 row(s)")
}

func TestRunQueryJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	opts := &RunOptions{
		RootOptions: &RootOptions{Format: "json"},
		BuildFlags:  BuildFlags{IDs: testutil.NewSequenceGenerator("run"), Parallelism: 3},
	}
	err := runQuery(opts, filepath.Join("testdata", "union.rq"), filepath.Join("testdata", "facts.ttl"), outputCommand(buf))
	require.NoError(t, err)

	var resp struct {
		Status string    `json:"status"`
		Data   RunResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)

	result := resp.Data
	assert.Equal(t, "run-1", result.TopologyID)
	assert.Equal(t, "union", result.Name)
	assert.Equal(t, []string{"s", "z"}, result.Vars)
	assert.Equal(t, [][]string{
		{"<http://ex/a>", "<http://ex/c>"},
		{"<http://ex/d>", "<http://ex/e>"},
	}, result.Rows)

	require.NotEmpty(t, result.Stats)
	for _, s := range result.Stats {
		if s.Node == "terminal0" {
			assert.Equal(t, 3, s.Parallelism)
			assert.Equal(t, int64(2), s.RowsOut)
		}
	}
}

func TestRunNamedQuery(t *testing.T) {
	output, err := runRunCmd(t, "json", filepath.Join("testdata", "queries"), filepath.Join("testdata", "facts.ttl"), "--query", "count")
	require.NoError(t, err)

	var resp struct {
		Data RunResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	assert.Equal(t, []string{"n"}, resp.Data.Vars)
	require.Len(t, resp.Data.Rows, 1)
	assert.Equal(t, `"2"^^<http://www.w3.org/2001/XMLSchema#integer>`, resp.Data.Rows[0][0])
}

func TestRunAmbiguousQuery(t *testing.T) {
	output, err := runRunCmd(t, "text", filepath.Join("testdata", "queries"), filepath.Join("testdata", "facts.ttl"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, output, "choose one with --query")
}

func TestRunUnknownQuery(t *testing.T) {
	output, err := runRunCmd(t, "text", filepath.Join("testdata", "queries"), filepath.Join("testdata", "facts.ttl"), "-q", "missing")
	require.Error(t, err)
	assert.Contains(t, output, `query "missing" not found`)
}

func TestRunBadFacts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.ttl")
	require.NoError(t, os.WriteFile(path, []byte("<http://ex/a> <http://ex/p>"), 0644))

	output, err := runRunCmd(t, "text", filepath.Join("testdata", "union.rq"), path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, output, "Error [E009]")
}

func TestRunMissingFacts(t *testing.T) {
	output, err := runRunCmd(t, "text", filepath.Join("testdata", "union.rq"), "/nonexistent/facts.ttl")
	require.Error(t, err)
	assert.Contains(t, output, "Error [E009]")
}

func TestRunRowBudget(t *testing.T) {
	output, err := runRunCmd(t, "json", filepath.Join("testdata", "union.rq"), filepath.Join("testdata", "facts.ttl"), "--max-rows", "1")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "ROW_BUDGET_EXCEEDED", resp.Error.Code)
}

func TestRunStaticWithoutCatalog(t *testing.T) {
	output, err := runRunCmd(t, "text", filepath.Join("testdata", "labels.rq"), filepath.Join("testdata", "facts.ttl"),
		"--static", "http://ex/label")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, output, "MISSING_REFERENCE_DATA")
}

func TestRunStaticFromCatalog(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "catalog.db")

	load := NewLoadCommand(&RootOptions{Format: "text"})
	load.SetOut(&bytes.Buffer{})
	load.SetArgs([]string{dbPath, filepath.Join("testdata", "labels.ttl")})
	require.NoError(t, load.Execute())

	output, err := runRunCmd(t, "json", filepath.Join("testdata", "labels.rq"), filepath.Join("testdata", "facts.ttl"),
		"--static", "http://ex/label", "--db", dbPath)
	require.NoError(t, err)

	var resp struct {
		Data RunResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	assert.Equal(t, [][]string{{"<http://ex/alice>", `"Bob"`}}, resp.Data.Rows)
}

func TestRunMetrics(t *testing.T) {
	output, err := runRunCmd(t, "text", filepath.Join("testdata", "union.rq"), filepath.Join("testdata", "facts.ttl"), "--metrics")
	require.NoError(t, err)

	assert.Contains(t, output, "reteflow_facts_read_total 5")
	assert.Contains(t, output, `reteflow_runs_total{status="ok"} 1`)
	assert.Contains(t, output, "reteflow_run_duration_seconds_count 1")
}

func TestRunCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	buf := &bytes.Buffer{}
	cmd := outputCommand(buf)
	cmd.SetContext(ctx)

	opts := &RunOptions{RootOptions: &RootOptions{Format: "text"}}
	err := runQuery(opts, filepath.Join("testdata", "union.rq"), filepath.Join("testdata", "facts.ttl"), cmd)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSelectQuery(t *testing.T) {
	queries := []*compiler.QuerySpec{{Name: "a"}, {Name: "b"}}

	q, err := selectQuery(queries, "b")
	require.NoError(t, err)
	assert.Equal(t, "b", q.Name)

	q, err = selectQuery(queries[:1], "")
	require.NoError(t, err)
	assert.Equal(t, "a", q.Name)

	_, err = selectQuery(queries, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 queries (a, b)")
}

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/reteflow/internal/store"
	"github.com/roach88/reteflow/internal/testutil"
)

// outputCommand returns a bare command writing to buf, for calling run
// functions directly with hand-built options.
func outputCommand(buf *bytes.Buffer) *cobra.Command {
	cmd := &cobra.Command{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	return cmd
}

func TestCompileQueryFile(t *testing.T) {
	buf := &bytes.Buffer{}
	opts := &CompileOptions{
		RootOptions: &RootOptions{Format: "text"},
		BuildFlags:  BuildFlags{IDs: testutil.NewSequenceGenerator("union")},
	}

	err := runCompile(opts, filepath.Join("testdata", "union.rq"), outputCommand(buf))
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "✓ Compiled 1 topolog(ies)")
	assert.Contains(t, output, "union (union-1)")
	assert.Contains(t, output, "output terminal0")
}

func TestCompileCUEDirectory(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewCompileCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{filepath.Join("testdata", "queries")})

	err := cmd.Execute()
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "✓ Compiled 2 topolog(ies)")
	assert.Contains(t, output, "union (")
	assert.Contains(t, output, "count (")
}

func TestCompileJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewCompileCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{filepath.Join("testdata", "queries")})

	err := cmd.Execute()
	require.NoError(t, err)

	var resp struct {
		Status string            `json:"status"`
		Data   CompilationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data.Topologies, 2)

	// topology.parallelism from the CUE config applies to every node but
	// the global terminal of the COUNT query.
	union := resp.Data.Topologies[0]
	assert.Equal(t, "union", union.Name)
	out, ok := union.OutputNode()
	require.True(t, ok)
	assert.Equal(t, 2, out.Parallelism)
}

func TestCompileParallelismFlagOverridesConfig(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewCompileCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{filepath.Join("testdata", "queries"), "--parallelism", "6"})

	require.NoError(t, cmd.Execute())

	var resp struct {
		Data CompilationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	require.NotEmpty(t, resp.Data.Topologies)

	out, ok := resp.Data.Topologies[0].OutputNode()
	require.True(t, ok)
	assert.Equal(t, 6, out.Parallelism)
}

func TestCompileOutputToFile(t *testing.T) {
	tmpDir := t.TempDir()
	outputFile := filepath.Join(tmpDir, "compiled.json")

	buf := &bytes.Buffer{}
	cmd := NewCompileCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{filepath.Join("testdata", "union.rq"), "--output", outputFile})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "Wrote descriptors to "+outputFile)

	data, err := os.ReadFile(outputFile)
	require.NoError(t, err)

	var result CompilationResult
	require.NoError(t, json.Unmarshal(data, &result))
	require.Len(t, result.Topologies, 1)
	assert.Equal(t, "union", result.Topologies[0].Name)
	assert.NotEmpty(t, result.Topologies[0].Edges)
}

func TestCompileStoresInCatalog(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "catalog.db")

	buf := &bytes.Buffer{}
	opts := &CompileOptions{
		RootOptions: &RootOptions{Format: "text"},
		BuildFlags:  BuildFlags{IDs: testutil.NewSequenceGenerator("q")},
		Database:    dbPath,
	}
	err := runCompile(opts, filepath.Join("testdata", "queries"), outputCommand(buf))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Stored 2 topolog(ies) in "+dbPath)

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	list, err := st.ListTopologies(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "q-1", list[0].ID)
	assert.Equal(t, "union", list[0].Name)
	assert.Equal(t, "q-2", list[1].ID)
	assert.Equal(t, "count", list[1].Name)
}

func TestCompileWarningsListed(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewCompileCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{filepath.Join("testdata", "cartesian.rq")})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "warning W301")
}

func TestCompileStrictRejectsCartesian(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewCompileCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{filepath.Join("testdata", "cartesian.rq"), "--strict"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, buf.String(), "✗ Compilation failed")
	assert.Contains(t, buf.String(), "E204")
}

func TestCompileNonExistentPath(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewCompileCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"/nonexistent/directory/path"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "E005") // ErrCodeNotFound
	assert.Contains(t, buf.String(), "not found")
}

func TestCompileEmptyDirectory(t *testing.T) {
	tmpDir := t.TempDir()

	buf := &bytes.Buffer{}
	cmd := NewCompileCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{tmpDir})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "E003")
	assert.Contains(t, buf.String(), "no CUE files found")
}

func TestCompileUnsupportedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "query.txt")
	require.NoError(t, os.WriteFile(path, []byte("SELECT * WHERE { ?s ?p ?o }"), 0644))

	buf := &bytes.Buffer{}
	cmd := NewCompileCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{path})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "E003")
	assert.Contains(t, buf.String(), "unsupported file type")
}

func TestCompileSyntaxErrorInQueryFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.rq")
	require.NoError(t, os.WriteFile(path, []byte("SELECT ?s WHERE { ?s"), 0644))

	buf := &bytes.Buffer{}
	cmd := NewCompileCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{path})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, buf.String(), "E207")
	assert.Contains(t, buf.String(), "bad.rq")
}

func TestCompileCollectsAllErrors(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewCompileCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{filepath.Join("testdata", "broken")})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E207", resp.Error.Code)
}

func TestCompileInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	src := `package bad

topology: parallelism: 0

query: q: sparql: "SELECT ?s WHERE { ?s <http://ex/p> ?o }"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.cue"), []byte(src), 0644))

	buf := &bytes.Buffer{}
	cmd := NewCompileCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{dir})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, buf.String(), "E206")
	assert.Contains(t, buf.String(), "parallelism must be >= 1")
}

func TestLoadQueries(t *testing.T) {
	t.Run("query file", func(t *testing.T) {
		result, errs := LoadQueries(filepath.Join("testdata", "union.rq"), LoadModeFailFast)
		require.Empty(t, errs)
		require.Len(t, result.Queries, 1)
		assert.Equal(t, "union", result.Queries[0].Name)
		assert.Equal(t, 1, result.FileCount)
		assert.NotNil(t, result.Queries[0].Query)
	})

	t.Run("cue directory", func(t *testing.T) {
		result, errs := LoadQueries(filepath.Join("testdata", "queries"), LoadModeFailFast)
		require.Empty(t, errs)
		assert.Equal(t, 2, result.Config.Parallelism)
		require.Len(t, result.Queries, 2)
		assert.Equal(t, "union", result.Queries[0].Name)
		assert.Equal(t, "count", result.Queries[1].Name)
	})

	t.Run("collect all keeps good queries", func(t *testing.T) {
		result, errs := LoadQueries(filepath.Join("testdata", "broken"), LoadModeCollectAll)
		require.Len(t, errs, 1)
		assert.Equal(t, "E207", errorCode(errs[0]))
		require.Len(t, result.Queries, 1)
		assert.Equal(t, "good", result.Queries[0].Name)
	})

	t.Run("no queries", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "empty.cue"), []byte("package empty\n\ntopology: parallelism: 2\n"), 0644))

		_, errs := LoadQueries(dir, LoadModeCollectAll)
		require.Len(t, errs, 1)
		assert.Equal(t, ErrCodeNoQueries, errorCode(errs[0]))
	})
}

func TestFindCUEFiles(t *testing.T) {
	files, err := FindCUEFiles(filepath.Join("testdata", "queries"))
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join("testdata", "queries", "queries.cue")}, files)
}

package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExplainQueryFile(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewExplainCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{filepath.Join("testdata", "union.rq")})

	require.NoError(t, cmd.Execute())

	want := `# union
terminal0[s,z] [terminal p=4] SELECT ?s ?z
├── join0 [join p=4] ON ?o <- shuffle
│   ├── filter0 [filter p=4] ?s <http://ex/p1> ?o <- fields[o@1]
│   └── filter1 [filter p=4] ?o <http://ex/p2> ?z <- fields[o@0]
└── filter2 [filter p=4] ?s <http://ex/p3> ?z <- shuffle
`
	assert.Equal(t, want, buf.String())
}

func TestExplainParallelismFlag(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewExplainCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{filepath.Join("testdata", "union.rq"), "-p", "2"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "terminal0[s,z] [terminal p=2]")
	assert.NotContains(t, buf.String(), "p=4")
}

func TestExplainMultipleQueries(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewExplainCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{filepath.Join("testdata", "queries")})

	require.NoError(t, cmd.Execute())
	output := buf.String()
	assert.Contains(t, output, "# union\n")
	assert.Contains(t, output, "\n\n# count\n")
	assert.Contains(t, output, "<- global")
}

func TestExplainJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewExplainCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{filepath.Join("testdata", "cartesian.rq")})

	require.NoError(t, cmd.Execute())

	var resp struct {
		Status string         `json:"status"`
		Data   []ExplainEntry `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data, 1)

	entry := resp.Data[0]
	assert.Equal(t, "cartesian", entry.Name)
	assert.Equal(t, "terminal0", entry.Output)
	assert.NotEmpty(t, entry.ID)
	assert.Contains(t, entry.Tree, "warning W301")
	require.Len(t, entry.Warnings, 1)
	assert.Equal(t, "W301", entry.Warnings[0].Code)
}

func TestExplainStopsAtFirstError(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewExplainCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{filepath.Join("testdata", "cartesian.rq"), "--strict"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, buf.String(), "Error [E204]")
}

package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenario(t *testing.T) {
	s := loadTestScenario(t, "static-label")

	assert.Equal(t, "static-label", s.Name)
	assert.Contains(t, s.Query, "SELECT ?a ?l")
	assert.Equal(t, []string{"http://ex/label"}, s.Static)
	assert.Contains(t, s.Reference, `"Bob"`)
	require.NotNil(t, s.Expect.Filters)
	assert.Equal(t, 2, *s.Expect.Filters)
	assert.Len(t, s.Expect.Rows, 1)
}

func TestLoadScenario_FileNotFound(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "unknown field",
			yaml:    "name: x\ndescription: d\nquery: SELECT * WHERE { ?s ?p ?o }\nexpected:\n  joins: 0\n",
			wantErr: "failed to parse YAML",
		},
		{
			name:    "missing name",
			yaml:    "description: d\nquery: q\nexpect:\n  joins: 0\n",
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			yaml:    "name: x\nquery: q\nexpect:\n  joins: 0\n",
			wantErr: "description is required",
		},
		{
			name:    "missing query",
			yaml:    "name: x\ndescription: d\nexpect:\n  joins: 0\n",
			wantErr: "query is required",
		},
		{
			name:    "no checks",
			yaml:    "name: x\ndescription: d\nquery: q\n",
			wantErr: "at least one check",
		},
		{
			name:    "negative count",
			yaml:    "name: x\ndescription: d\nquery: q\nexpect:\n  filters: -1\n",
			wantErr: "expect.filters must be non-negative",
		},
		{
			name:    "unknown grouping",
			yaml:    "name: x\ndescription: d\nquery: q\nexpect:\n  terminal_grouping: broadcast\n",
			wantErr: "unknown grouping",
		},
		{
			name:    "error with rows",
			yaml:    "name: x\ndescription: d\nquery: q\nexpect:\n  error: E204\n  row_count: 1\n",
			wantErr: "cannot be combined",
		},
		{
			name:    "row count disagrees",
			yaml:    "name: x\ndescription: d\nquery: q\nexpect:\n  row_count: 2\n  rows: [[a]]\n",
			wantErr: "row_count is 2",
		},
		{
			name:    "negative parallelism",
			yaml:    "name: x\ndescription: d\nquery: q\nparallelism: -2\nexpect:\n  joins: 0\n",
			wantErr: "parallelism must be non-negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseScenario_ZeroCountIsACheck(t *testing.T) {
	s, err := ParseScenario([]byte("name: x\ndescription: d\nquery: q\nexpect:\n  joins: 0\n"))
	require.NoError(t, err)
	require.NotNil(t, s.Expect.Joins)
	assert.Equal(t, 0, *s.Expect.Joins)
	assert.Nil(t, s.Expect.Filters)
}

func TestFindScenarios(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.yaml", "a.yml", "notes.txt", "c-cart.yaml"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}

	all, err := FindScenarios(dir, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "a.yml", filepath.Base(all[0]))
	assert.Equal(t, "b.yaml", filepath.Base(all[1]))

	filtered, err := FindScenarios(dir, "c-*")
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "c-cart.yaml", filepath.Base(filtered[0]))

	_, err = FindScenarios(dir, "[")
	require.Error(t, err)
}

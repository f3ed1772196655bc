package compiler

import (
	"fmt"
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const configSource = `
topology: {
	parallelism:       2
	strict_joins:      true
	static_predicates: ["http://ex/label"]
}
query: "by-author": {
	sparql: "SELECT ?b WHERE { ?b <http://ex/author> ?a }"
}
query: broken: {
	sparql: "SELECT WHERE"
}
query: missing: {}
`

func compileSource(t *testing.T, src string) cue.Value {
	t.Helper()
	v := cuecontext.New().CompileString(src)
	require.NoError(t, v.Err())
	return v
}

func TestCompileConfig(t *testing.T) {
	v := compileSource(t, configSource)

	cfg, err := CompileConfig(v.LookupPath(cue.ParsePath("topology")))
	require.NoError(t, err)
	assert.Equal(t, Config{
		Parallelism:      2,
		StrictJoins:      true,
		StaticPredicates: []string{"http://ex/label"},
	}, cfg)

	o := newOptions(cfg.Options())
	assert.Equal(t, 2, o.Parallelism)
	assert.True(t, o.StrictJoins)
	assert.True(t, o.StaticPredicates["http://ex/label"])
}

func TestCompileConfigMissingKeepsDefaults(t *testing.T) {
	v := compileSource(t, `query: {}`)

	cfg, err := CompileConfig(v.LookupPath(cue.ParsePath("topology")))
	require.NoError(t, err)
	assert.Equal(t, Config{}, cfg)
	assert.Equal(t, DefaultParallelism, newOptions(cfg.Options()).Parallelism)
}

func TestCompileConfigRejectsBadValues(t *testing.T) {
	v := compileSource(t, `topology: parallelism: 0`)
	_, err := CompileConfig(v.LookupPath(cue.ParsePath("topology")))
	require.Error(t, err)
	assert.Equal(t, ErrConfig, ErrorCode(err))

	v = compileSource(t, `topology: strict_joins: "yes"`)
	_, err = CompileConfig(v.LookupPath(cue.ParsePath("topology")))
	require.Error(t, err)
	assert.True(t, IsCompileError(err))
	assert.Equal(t, ErrConfig, ErrorCode(err))
}

func TestFormatCUEErrorWithoutPosition(t *testing.T) {
	err := formatCUEError(fmt.Errorf("boom"))
	require.Error(t, err)
	assert.True(t, IsCompileError(err))
	assert.Equal(t, ErrConfig, ErrorCode(err))
	assert.Contains(t, err.Error(), "boom")

	assert.NoError(t, formatCUEError(nil))
}

func TestCompileQuery(t *testing.T) {
	v := compileSource(t, configSource)

	spec, err := CompileQuery(v.LookupPath(cue.ParsePath(`query."by-author"`)))
	require.NoError(t, err)
	assert.Equal(t, "by-author", spec.Name)
	assert.Equal(t, []string{"b"}, spec.Query.ResultVars())

	_, err = CompileQuery(v.LookupPath(cue.ParsePath("query.broken")))
	require.Error(t, err)
	assert.Equal(t, ErrQuerySyntax, ErrorCode(err))

	_, err = CompileQuery(v.LookupPath(cue.ParsePath("query.missing")))
	require.Error(t, err)
	assert.Equal(t, ErrConfig, ErrorCode(err))
	assert.Contains(t, err.Error(), "sparql is required")
}

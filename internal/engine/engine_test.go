package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/reteflow/internal/compiler"
	"github.com/roach88/reteflow/internal/ir"
	"github.com/roach88/reteflow/internal/sparql"
	"github.com/roach88/reteflow/internal/topology"
)

const ex = "http://ex/"

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func compile(t *testing.T, text string, opts ...compiler.Option) *topology.Descriptor {
	t.Helper()
	opts = append([]compiler.Option{
		compiler.WithLogger(discard),
		compiler.WithIDGenerator(topology.NewFixedGenerator("topo-1")),
	}, opts...)
	d, err := compiler.BuildText(text, opts...)
	require.NoError(t, err)
	return d
}

func facts(t *testing.T, text string) []Fact {
	t.Helper()
	fs, err := sparql.ParseFacts("PREFIX ex: <http://ex/>\n" + text)
	require.NoError(t, err)
	return fs
}

func runQuery(t *testing.T, d *topology.Descriptor, fs []Fact, opts ...Option) *Result {
	t.Helper()
	e, err := New(d, append([]Option{WithLogger(discard)}, opts...)...)
	require.NoError(t, err)
	res, err := e.Run(context.Background(), fs)
	require.NoError(t, err)
	return res
}

// values renders rows compactly: IRIs without the ex: base, literals by
// lexical form.
func values(res *Result) [][]string {
	out := make([][]string, len(res.Rows))
	for i, row := range res.Rows {
		out[i] = make([]string, len(row))
		for j, term := range row {
			switch {
			case !term.IsBound():
				out[i][j] = "UNDEF"
			case term.Kind == ir.TermIRI:
				out[i][j] = strings.TrimPrefix(term.Value, ex)
			default:
				out[i][j] = term.Value
			}
		}
	}
	return out
}

// ring builds n people where each knows the next and has an age.
func ring(n int) []Fact {
	var fs []Fact
	for i := 0; i < n; i++ {
		p := ir.IRI(fmt.Sprintf("%sp%02d", ex, i))
		next := ir.IRI(fmt.Sprintf("%sp%02d", ex, (i+1)%n))
		fs = append(fs,
			ir.T(p, ir.IRI(ex+"knows"), next),
			ir.T(p, ir.IRI(ex+"age"), ir.Integer(int64(i))),
		)
	}
	return fs
}

const people = `
ex:alice ex:knows ex:bob , ex:carol .
ex:bob ex:knows ex:carol .
ex:alice ex:age 30 .
ex:bob ex:age 17 .
ex:carol ex:age 41 .
ex:alice ex:name "Alice" .
ex:bob ex:name "bob" .
`

func TestRunUnion(t *testing.T) {
	d := compile(t, `PREFIX ex: <http://ex/>
		SELECT ?s ?z WHERE { { ?s ex:p1 ?o . ?o ex:p2 ?z } UNION { ?s ex:p3 ?z } }`)

	res := runQuery(t, d, facts(t, `
		ex:a ex:p1 ex:b .
		ex:b ex:p2 ex:c .
		ex:d ex:p3 ex:e .
		ex:x ex:p1 ex:y .
	`))

	assert.Equal(t, "topo-1", res.TopologyID)
	assert.Equal(t, []string{"s", "z"}, res.Vars)
	assert.Equal(t, [][]string{{"a", "c"}, {"d", "e"}}, values(res))

	join, ok := res.Stat("join0")
	require.True(t, ok)
	assert.Equal(t, int64(3), join.RowsIn)
	assert.Equal(t, int64(1), join.RowsOut)

	spout, ok := res.Stat(topology.SpoutName)
	require.True(t, ok)
	assert.Equal(t, int64(4), spout.RowsOut)
}

func TestRunParallelismDoesNotChangeResults(t *testing.T) {
	queries := []string{
		`SELECT ?a ?c WHERE { ?a <http://ex/knows> ?b . ?b <http://ex/knows> ?c }`,
		`SELECT ?a (COUNT(?b) AS ?n) WHERE { ?a <http://ex/knows> ?b . ?b <http://ex/age> ?x } GROUP BY ?a`,
		`SELECT (SUM(?x) AS ?total) (MAX(?x) AS ?oldest) WHERE { ?a <http://ex/age> ?x }`,
		`SELECT ?a WHERE { ?a <http://ex/age> ?x FILTER(?x >= 10 && ?x < 20) }`,
		`SELECT DISTINCT ?b WHERE { { ?a <http://ex/knows> ?b } UNION { ?b <http://ex/knows> ?a } }`,
	}
	fs := ring(40)

	for _, q := range queries {
		t.Run(q, func(t *testing.T) {
			serial := runQuery(t, compile(t, q, compiler.WithParallelism(1)), fs)
			require.NotEmpty(t, serial.Rows)
			for _, p := range []int{2, 4, 7} {
				parallel := runQuery(t, compile(t, q, compiler.WithParallelism(p)), fs)
				assert.Equal(t, serial.Strings(), parallel.Strings(), "parallelism %d", p)
			}
		})
	}
}

func TestRunGroupByPartiallyBound(t *testing.T) {
	const q = `PREFIX ex: <http://ex/>
		SELECT ?a ?b (COUNT(*) AS ?n) WHERE {
			{ { SELECT ?a ?b WHERE { ?a ex:p ?x OPTIONAL { ?x ex:q ?b } } } }
			UNION
			{ ?a ex:r ?y }
		} GROUP BY ?a ?b`
	fs := facts(t, `
ex:a1 ex:p ex:x1 .
ex:a1 ex:r ex:y1 , ex:y2 .
ex:a2 ex:p ex:x2 .
ex:x2 ex:q ex:b2 .
ex:a3 ex:r ex:y3 .
`)

	serial := runQuery(t, compile(t, q, compiler.WithParallelism(1)), fs)
	assert.ElementsMatch(t, [][]string{
		{"a1", "UNDEF", "3"},
		{"a2", "b2", "1"},
		{"a2", "UNDEF", "1"},
		{"a3", "UNDEF", "1"},
	}, values(serial))

	for _, p := range []int{2, 4, 7} {
		parallel := runQuery(t, compile(t, q, compiler.WithParallelism(p)), fs)
		assert.Equal(t, serial.Strings(), parallel.Strings(), "parallelism %d", p)
	}
}

func TestRunChainJoin(t *testing.T) {
	d := compile(t, `SELECT ?a ?c WHERE { ?a <http://ex/knows> ?b . ?b <http://ex/knows> ?c }`)
	res := runQuery(t, d, ring(5))

	assert.Equal(t, [][]string{
		{"p00", "p02"},
		{"p01", "p03"},
		{"p02", "p04"},
		{"p03", "p00"},
		{"p04", "p01"},
	}, values(res))
}

func TestRunGroupBy(t *testing.T) {
	d := compile(t, `PREFIX ex: <http://ex/>
		SELECT ?a (COUNT(?b) AS ?n) WHERE { ?a ex:knows ?b } GROUP BY ?a`)
	res := runQuery(t, d, facts(t, people))

	assert.Equal(t, []string{"a", "n"}, res.Vars)
	assert.Equal(t, [][]string{{"alice", "2"}, {"bob", "1"}}, values(res))
	assert.Equal(t, ir.XSDInteger, res.Rows[0][1].Datatype)
}

func TestRunGlobalAggregate(t *testing.T) {
	d := compile(t, `PREFIX ex: <http://ex/>
		SELECT (COUNT(*) AS ?n) (AVG(?x) AS ?avg) (MIN(?x) AS ?min) WHERE { ?p ex:age ?x }`)

	res := runQuery(t, d, facts(t, people))
	assert.Equal(t, [][]string{{"3", "29.333333333333332", "17"}}, values(res))

	empty := runQuery(t, d, nil)
	assert.Equal(t, [][]string{{"0", "0", "UNDEF"}}, values(empty))
}

func TestRunPredicates(t *testing.T) {
	tests := []struct {
		name string
		expr string
		want [][]string
	}{
		{name: "numeric", expr: `?x > 18`, want: [][]string{{"alice"}, {"carol"}}},
		{name: "and", expr: `?x > 18 && ?x < 40`, want: [][]string{{"alice"}}},
		{name: "or", expr: `?x < 18 || ?x > 40`, want: [][]string{{"bob"}, {"carol"}}},
		{name: "not", expr: `!(?x = 30)`, want: [][]string{{"bob"}, {"carol"}}},
		{name: "iri equality", expr: `?p = <http://ex/bob>`, want: [][]string{{"bob"}}},
		{name: "bound", expr: `BOUND(?p)`, want: [][]string{{"alice"}, {"bob"}, {"carol"}}},
		{name: "type mismatch", expr: `?x < "abc"`, want: [][]string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := compile(t, `PREFIX ex: <http://ex/>
				SELECT ?p WHERE { ?p ex:age ?x FILTER(`+tt.expr+`) }`)
			res := runQuery(t, d, facts(t, people))
			assert.Equal(t, tt.want, values(res))
		})
	}
}

func TestRunRegex(t *testing.T) {
	d := compile(t, `PREFIX ex: <http://ex/>
		SELECT ?p WHERE { ?p ex:name ?n FILTER(REGEX(?n, "^b")) }`)
	assert.Equal(t, [][]string{{"bob"}}, values(runQuery(t, d, facts(t, people))))

	d = compile(t, `PREFIX ex: <http://ex/>
		SELECT ?p WHERE { ?p ex:name ?n FILTER(REGEX(?n, "^b", "i")) }`)
	assert.Equal(t, [][]string{{"bob"}}, values(runQuery(t, d, facts(t, people))))

	d = compile(t, `PREFIX ex: <http://ex/>
		SELECT ?p WHERE { ?p ex:name ?n FILTER(REGEX(?n, "^A", "i")) }`)
	assert.Equal(t, [][]string{{"alice"}}, values(runQuery(t, d, facts(t, people))))
}

func TestRunDistinctAndLimit(t *testing.T) {
	d := compile(t, `PREFIX ex: <http://ex/>
		SELECT DISTINCT ?a WHERE { ?a ex:knows ?b }`)
	assert.Equal(t, [][]string{{"alice"}, {"bob"}}, values(runQuery(t, d, facts(t, people))))

	d = compile(t, `PREFIX ex: <http://ex/>
		SELECT ?a ?b WHERE { ?a ex:knows ?b } LIMIT 2`)
	assert.Equal(t, [][]string{{"alice", "bob"}, {"alice", "carol"}}, values(runQuery(t, d, facts(t, people))))
}

func TestRunSubSelect(t *testing.T) {
	d := compile(t, `PREFIX ex: <http://ex/>
		SELECT ?a ?n WHERE {
			?a ex:knows ?b .
			{ SELECT ?b (COUNT(?c) AS ?n) WHERE { ?b ex:knows ?c } GROUP BY ?b }
		}`)

	res := runQuery(t, d, facts(t, people))
	// alice knows bob, who knows one person; carol knows nobody.
	assert.Equal(t, [][]string{{"alice", "1"}}, values(res))
}

func TestRunStaticFilter(t *testing.T) {
	d := compile(t, `PREFIX ex: <http://ex/>
		SELECT ?a ?l WHERE { ?a ex:knows ?b . ?b ex:label ?l }`,
		compiler.WithStaticPredicates(ex+"label"))

	ref := StaticFacts(facts(t, `
		ex:bob ex:label "Bob" .
		ex:carol ex:label "Carol" .
		ex:carol ex:other "ignored" .
	`))

	// Labels streamed through the spout are ignored.
	stream := append(facts(t, people), facts(t, `ex:carol ex:label "streamed" .`)...)
	res := runQuery(t, d, stream, WithReferenceData(ref))
	assert.Equal(t, [][]string{
		{"alice", "Bob"},
		{"alice", "Carol"},
		{"bob", "Carol"},
	}, values(res))

	_, err := New(d, WithLogger(discard))
	require.Error(t, err)
	assert.Equal(t, ErrCodeMissingReferenceData, ErrorCode(err))
}

type failingReference struct{}

func (failingReference) Lookup(context.Context, ir.FactPattern) ([]ir.Triple, error) {
	return nil, fmt.Errorf("backend down")
}

func TestRunReferenceLookupFailure(t *testing.T) {
	d := compile(t, `SELECT ?b ?l WHERE { ?b <http://ex/label> ?l }`,
		compiler.WithStaticPredicates(ex+"label"))

	e, err := New(d, WithLogger(discard), WithReferenceData(failingReference{}))
	require.NoError(t, err)
	_, err = e.Run(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, ErrCodeReferenceLookup, ErrorCode(err))
	assert.Contains(t, err.Error(), "backend down")
}

func TestRunCartesian(t *testing.T) {
	d := compile(t, `SELECT ?a ?x WHERE { ?a <http://ex/knows> ?b . ?p <http://ex/age> ?x }`)
	res := runQuery(t, d, facts(t, people))
	assert.Len(t, res.Rows, 9)
}

func TestRunRowBudget(t *testing.T) {
	d := compile(t, `SELECT ?a ?x WHERE { ?a <http://ex/knows> ?b . ?p <http://ex/age> ?x }`)

	e, err := New(d, WithLogger(discard), WithMaxRows(5))
	require.NoError(t, err)
	_, err = e.Run(context.Background(), facts(t, people))
	require.Error(t, err)
	assert.True(t, IsRowBudgetError(err))
}

func TestRunCanceled(t *testing.T) {
	d := compile(t, `SELECT ?a ?b WHERE { ?a <http://ex/knows> ?b }`)
	e, err := New(d, WithLogger(discard))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.Run(ctx, ring(10))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	d := compile(t, `PREFIX ex: <http://ex/>
		SELECT ?s ?z WHERE { ?s ex:p1 ?o . ?o ex:p2 ?z }`)
	fs := facts(t, `
		ex:a ex:p1 ex:b .
		ex:b ex:p2 ex:c .
		ex:b ex:p2 ex:d .
	`)
	res := runQuery(t, d, fs, WithMetrics(m))
	require.Len(t, res.Rows, 2)

	assert.Equal(t, float64(3), testutil.ToFloat64(m.FactsRead))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.RowsOut.WithLabelValues(d.Output)))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.RowsIn.WithLabelValues(d.Output)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RowsOut.WithLabelValues("filter0")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Runs.WithLabelValues("ok")))
}

func TestNewRejectsInvalidDescriptors(t *testing.T) {
	_, err := New(nil)
	assert.Equal(t, ErrCodeInvalidTopology, ErrorCode(err))

	_, err = New(&topology.Descriptor{ID: "empty"})
	require.Error(t, err)
	assert.Equal(t, ErrCodeInvalidTopology, ErrorCode(err))

	d := compile(t, `SELECT ?p WHERE { ?p <http://ex/age> ?x FILTER(?x > 1) }`)
	d.Predicates()[0].Predicate.Expr = "(?x >"
	_, err = New(d, WithLogger(discard))
	require.Error(t, err)
	assert.Equal(t, ErrCodeBadExpression, ErrorCode(err))
}

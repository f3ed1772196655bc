package sparql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/reteflow/internal/ir"
	"github.com/roach88/reteflow/internal/queryir"
)

func TestRenderQueryUnion(t *testing.T) {
	q, err := Parse(`PREFIX ex: <http://ex/>
		SELECT ?s ?z WHERE { { ?s ex:p1 ?o . ?o ex:p2 ?z } UNION { ?s ex:p3 ?z } }`)
	require.NoError(t, err)

	want := "SELECT ?s ?z WHERE { { ?s <http://ex/p1> ?o . ?o <http://ex/p2> ?z . } UNION { ?s <http://ex/p3> ?z . } }"
	assert.Equal(t, want, RenderQuery(q))
}

func TestRenderRoundTrip(t *testing.T) {
	queries := []string{
		`SELECT * WHERE { ?s <http://ex/p> ?o }`,
		`SELECT DISTINCT ?a (COUNT(DISTINCT ?b) AS ?n) WHERE { ?a <http://ex/p> ?b } GROUP BY ?a LIMIT 5`,
		`SELECT (COUNT(*) AS ?n) WHERE { ?a <http://ex/p> ?b . OPTIONAL { ?b <http://ex/q> ?c } }`,
		`SELECT ?a WHERE { ?a <http://ex/age> ?n . FILTER((?n > 18) && !BOUND(?x)) }`,
		`SELECT ?a WHERE { ?a <http://ex/name> ?n . FILTER(REGEX(?n, "^a", "i")) }`,
		`SELECT ?a WHERE { ?a <http://ex/p> "x"@en . ?a <http://ex/q> 4.5 . ?a <http://ex/r> true }`,
		`SELECT ?a ?b WHERE { ?a <http://ex/p4> ?b . { SELECT ?a WHERE { ?a <http://ex/p4> ?b } } }`,
	}

	for _, text := range queries {
		t.Run(text, func(t *testing.T) {
			first, err := Parse(text)
			require.NoError(t, err)

			rendered := RenderQuery(first)
			second, err := Parse(rendered)
			require.NoError(t, err, "rendered text must re-parse: %s", rendered)

			assert.Equal(t, first, second)
			assert.Equal(t, rendered, RenderQuery(second), "rendering is deterministic")
		})
	}
}

func TestRenderElements(t *testing.T) {
	block := &queryir.PathBlock{Triples: []ir.Triple{
		ir.T(ir.Var("s"), ir.IRI("http://ex/p"), ir.Var("o")),
	}}

	assert.Equal(t, "?s <http://ex/p> ?o .", Render(block))
	assert.Equal(t, "OPTIONAL { ?s <http://ex/p> ?o . }", Render(&queryir.Optional{Element: block}))
	assert.Equal(t, "{ }", Render(&queryir.Group{}))
	assert.Equal(t, "FILTER(BOUND(?o))", Render(&queryir.Filter{Expr: &queryir.Bound{Var: "o"}}))
}

func TestRenderExprFunc(t *testing.T) {
	expr := &queryir.Binary{
		Op:    queryir.OpGt,
		Left:  &queryir.VarRef{Name: "age"},
		Right: &queryir.Constant{Term: ir.Integer(18)},
	}
	indices := map[string]string{"age": "?3"}

	assert.Equal(t, "(?age > 18)", RenderExpr(expr))
	assert.Equal(t, "(?3 > 18)", RenderExprFunc(expr, func(n string) string { return indices[n] }))
}

package sparql

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/reteflow/internal/ir"
	"github.com/roach88/reteflow/internal/queryir"
)

const ex = "http://example.org/"

func TestParseUnionQuery(t *testing.T) {
	q, err := Parse(`
		PREFIX ex: <http://example.org/>
		SELECT ?s ?z WHERE {
			{ ?s ex:p1 ?o . ?o ex:p2 ?z }
			UNION
			{ ?s ex:p3 ?z }
		}`)
	require.NoError(t, err)

	assert.Equal(t, []string{"s", "z"}, q.ResultVars())
	where, ok := q.Where.(*queryir.Group)
	require.True(t, ok)
	require.Len(t, where.Elements, 1)

	union, ok := where.Elements[0].(*queryir.Union)
	require.True(t, ok)
	require.Len(t, union.Alternatives, 2)

	first := union.Alternatives[0].(*queryir.Group)
	block := first.Elements[0].(*queryir.PathBlock)
	assert.Equal(t, []ir.Triple{
		ir.T(ir.Var("s"), ir.IRI(ex+"p1"), ir.Var("o")),
		ir.T(ir.Var("o"), ir.IRI(ex+"p2"), ir.Var("z")),
	}, block.Triples)
}

func TestParsePredicateObjectLists(t *testing.T) {
	q, err := Parse(`PREFIX ex: <http://example.org/>
		SELECT * { ?s a ex:Person ; ex:name ?n , ?alias ; }`)
	require.NoError(t, err)

	block := q.Where.(*queryir.Group).Elements[0].(*queryir.PathBlock)
	require.Len(t, block.Triples, 3)
	assert.Equal(t, ir.IRI(ir.RDFType), block.Triples[0].Predicate)
	assert.Equal(t, ir.IRI(ex+"Person"), block.Triples[0].Object)
	assert.Equal(t, ir.Var("alias"), block.Triples[2].Object)
	assert.Equal(t, ir.IRI(ex+"name"), block.Triples[2].Predicate)
}

func TestParseLiterals(t *testing.T) {
	q, err := Parse(`SELECT * WHERE {
		?s <http://ex/label> "chat"@fr .
		?s <http://ex/age> 42 .
		?s <http://ex/score> 4.5 .
		?s <http://ex/ok> true .
		?s <http://ex/code> "x"^^<http://ex/dt> .
	}`)
	require.NoError(t, err)

	triples := q.Where.(*queryir.Group).Elements[0].(*queryir.PathBlock).Triples
	require.Len(t, triples, 5)
	assert.Equal(t, ir.LangLiteral("chat", "fr"), triples[0].Object)
	assert.Equal(t, ir.Integer(42), triples[1].Object)
	assert.Equal(t, ir.TypedLiteral("4.5", ir.XSDDecimal), triples[2].Object)
	assert.Equal(t, ir.TypedLiteral("true", ir.XSDBoolean), triples[3].Object)
	assert.Equal(t, ir.TypedLiteral("x", "http://ex/dt"), triples[4].Object)
}

func TestParseAggregatesGroupByLimit(t *testing.T) {
	q, err := Parse(`SELECT DISTINCT ?a (COUNT(DISTINCT ?b) AS ?n) (SUM(?c) AS ?total)
		WHERE { ?a <http://ex/p> ?b . ?b <http://ex/q> ?c }
		GROUP BY ?a LIMIT 10`)
	require.NoError(t, err)

	assert.True(t, q.Distinct)
	assert.Equal(t, []string{"a"}, q.GroupBy)
	assert.Equal(t, 10, q.Limit)
	require.Len(t, q.Projection, 3)
	assert.Equal(t, &queryir.Aggregate{Func: queryir.AggCount, Arg: "b", Distinct: true}, q.Projection[1].Aggregate)
	assert.Equal(t, "total", q.Projection[2].Var)
	assert.True(t, q.HasAggregate())
}

func TestParseCountStar(t *testing.T) {
	q, err := Parse(`SELECT (COUNT(*) AS ?n) WHERE { ?s ?p ?o }`)
	require.NoError(t, err)
	assert.Equal(t, "", q.Projection[0].Aggregate.Arg)

	_, err = Parse(`SELECT (SUM(*) AS ?n) WHERE { ?s ?p ?o }`)
	assert.Error(t, err)
}

func TestParseOptionalFilterSubQuery(t *testing.T) {
	q, err := Parse(`PREFIX ex: <http://example.org/>
		SELECT ?a ?b WHERE {
			?a ex:p4 ?b .
			OPTIONAL { ?b ex:name ?name }
			FILTER(?b != ex:nobody && (BOUND(?name) || !REGEX(?a, "^x", "i")))
			{ SELECT ?a WHERE { ?a ex:p4 ?b } }
		}`)
	require.NoError(t, err)

	els := q.Where.(*queryir.Group).Elements
	require.Len(t, els, 4)
	assert.IsType(t, &queryir.PathBlock{}, els[0])
	assert.IsType(t, &queryir.Optional{}, els[1])
	assert.IsType(t, &queryir.Filter{}, els[2])
	sub, ok := els[3].(*queryir.SubQuery)
	require.True(t, ok)
	assert.Equal(t, []string{"a"}, sub.Query.ResultVars())

	and := els[2].(*queryir.Filter).Expr.(*queryir.Binary)
	assert.Equal(t, queryir.OpAnd, and.Op)
	ne := and.Left.(*queryir.Binary)
	assert.Equal(t, queryir.OpNe, ne.Op)
	assert.Equal(t, &queryir.Constant{Term: ir.IRI(ex + "nobody")}, ne.Right)
	or := and.Right.(*queryir.Binary)
	assert.Equal(t, queryir.OpOr, or.Op)
	not := or.Right.(*queryir.Not)
	assert.Equal(t, "i", not.Expr.(*queryir.Regex).Flags)
}

func TestParseComparisonVersusIRI(t *testing.T) {
	expr, err := ParseExpression(`(?x < 3 && ?y >= -2.5)`)
	require.NoError(t, err)

	and := expr.(*queryir.Binary)
	lt := and.Left.(*queryir.Binary)
	assert.Equal(t, queryir.OpLt, lt.Op)
	assert.Equal(t, &queryir.Constant{Term: ir.Integer(3)}, lt.Right)
	ge := and.Right.(*queryir.Binary)
	assert.Equal(t, queryir.OpGe, ge.Op)
	assert.Equal(t, &queryir.Constant{Term: ir.TypedLiteral("-2.5", ir.XSDDecimal)}, ge.Right)

	expr, err = ParseExpression(`?x = <http://ex/a>`)
	require.NoError(t, err)
	assert.Equal(t, &queryir.Constant{Term: ir.IRI("http://ex/a")}, expr.(*queryir.Binary).Right)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"missing select", `{ ?s ?p ?o }`, "expected SELECT"},
		{"empty projection", `SELECT WHERE { ?s ?p ?o }`, "expected '*' or projection"},
		{"undeclared prefix", `SELECT * { ?s ex:p ?o }`, "undeclared prefix"},
		{"unterminated group", `SELECT * { ?s ?p ?o `, "unterminated group"},
		{"unterminated string", `SELECT * { ?s ?p "abc }`, "unterminated string"},
		{"bad char", `SELECT * { ?s ?p ?o } ~`, "unexpected character"},
		{"group by without var", `SELECT * { ?s ?p ?o } GROUP BY`, "GROUP BY requires"},
		{"trailing tokens", `SELECT * { ?s ?p ?o } }`, "expected EOF"},
		{"bad filter", `SELECT * { ?s ?p ?o FILTER ?s }`, "expected '(' or built-in"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)

			var pe *ParseError
			assert.True(t, errors.As(err, &pe))
		})
	}
}

func TestParseFacts(t *testing.T) {
	facts, err := ParseFacts(`
		PREFIX ex: <http://example.org/>
		# people
		ex:alice ex:knows ex:bob , ex:carol ;
		         ex:age 42 .
		<http://example.org/bob> ex:name "Bob"@en .
	`)
	require.NoError(t, err)
	require.Len(t, facts, 4)
	assert.Equal(t, ir.T(ir.IRI(ex+"alice"), ir.IRI(ex+"knows"), ir.IRI(ex+"carol")), facts[1])
	assert.Equal(t, ir.Integer(42), facts[2].Object)
	assert.Equal(t, ir.LangLiteral("Bob", "en"), facts[3].Object)

	_, err = ParseFacts(`<http://a> <http://p> ?x .`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "contains a variable")

	_, err = ParseFacts(`<http://a> <http://p> <http://b>`)
	require.Error(t, err)
}

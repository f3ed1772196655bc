package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/reteflow/internal/compiler"
	"github.com/roach88/reteflow/internal/engine"
	"github.com/roach88/reteflow/internal/ir"
)

var (
	alice = ir.IRI("http://ex/alice")
	bob   = ir.IRI("http://ex/bob")
	label = ir.IRI("http://ex/label")
	knows = ir.IRI("http://ex/knows")
)

func TestWriteReferenceTriples(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	facts := []ir.Triple{
		ir.T(alice, label, ir.Literal("Alice")),
		ir.T(bob, label, ir.LangLiteral("Bob", "en")),
		ir.T(alice, knows, bob),
	}
	added, err := s.WriteReferenceTriples(ctx, facts)
	require.NoError(t, err)
	assert.Equal(t, 3, added)

	added, err = s.WriteReferenceTriples(ctx, facts[:2])
	require.NoError(t, err)
	assert.Equal(t, 0, added, "duplicates are ignored")

	n, err := s.CountReferenceTriples(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = s.WriteReferenceTriples(ctx, []ir.Triple{ir.T(ir.Var("x"), label, ir.Literal("x"))})
	assert.Error(t, err, "patterns are not facts")
}

func TestLookup(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	_, err := s.WriteReferenceTriples(ctx, []ir.Triple{
		ir.T(alice, label, ir.Literal("Alice")),
		ir.T(bob, label, ir.LangLiteral("Bob", "en")),
		ir.T(alice, knows, bob),
		ir.T(bob, knows, bob),
	})
	require.NoError(t, err)

	tests := []struct {
		name    string
		pattern ir.Triple
		want    []ir.Triple
	}{
		{
			name:    "by predicate",
			pattern: ir.T(ir.Var("s"), label, ir.Var("l")),
			want: []ir.Triple{
				ir.T(alice, label, ir.Literal("Alice")),
				ir.T(bob, label, ir.LangLiteral("Bob", "en")),
			},
		},
		{
			name:    "by subject and predicate",
			pattern: ir.T(bob, label, ir.Var("l")),
			want:    []ir.Triple{ir.T(bob, label, ir.LangLiteral("Bob", "en"))},
		},
		{
			name:    "by typed object",
			pattern: ir.T(ir.Var("s"), ir.Var("p"), ir.LangLiteral("Bob", "en")),
			want:    []ir.Triple{ir.T(bob, label, ir.LangLiteral("Bob", "en"))},
		},
		{
			name:    "repeated variable",
			pattern: ir.T(ir.Var("x"), knows, ir.Var("x")),
			want:    []ir.Triple{ir.T(bob, knows, bob)},
		},
		{
			name:    "no match",
			pattern: ir.T(ir.Var("s"), label, ir.Literal("Bob")),
			want:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Lookup(ctx, ir.FactPattern{Pattern: tt.pattern})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLookupFeedsStaticFilter(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	_, err := s.WriteReferenceTriples(ctx, []ir.Triple{
		ir.T(bob, label, ir.Literal("Bob")),
	})
	require.NoError(t, err)

	d := compileTestTopology(t, "topo-static",
		`SELECT ?a ?l WHERE { ?a <http://ex/knows> ?b . ?b <http://ex/label> ?l }`,
		compiler.WithStaticPredicates("http://ex/label"))

	e, err := engine.New(d, engine.WithReferenceData(s))
	require.NoError(t, err)
	res, err := e.Run(ctx, []engine.Fact{ir.T(alice, knows, bob)})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"<http://ex/alice>", `"Bob"`}}, res.Strings())
}

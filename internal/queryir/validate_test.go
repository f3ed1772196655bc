package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/reteflow/internal/ir"
)

func TestValidateCleanQuery(t *testing.T) {
	q := &Query{
		Projection: []Projection{{Var: "s"}, {Var: "z"}},
		Where: &Group{Elements: []Element{
			&PathBlock{Triples: []ir.Triple{triple("s", "p1", "o"), triple("o", "p2", "z")}},
			&Filter{Expr: &Bound{Var: "z"}},
		}},
	}

	result := Validate(q)
	assert.True(t, result.Clean)
	assert.Empty(t, result.Warnings)
}

func TestValidateWarnings(t *testing.T) {
	block := &PathBlock{Triples: []ir.Triple{triple("s", "p", "o")}}

	tests := []struct {
		name string
		q    *Query
		want string
	}{
		{
			name: "nil query",
			q:    nil,
			want: "nil query",
		},
		{
			name: "missing where",
			q:    &Query{},
			want: "no WHERE pattern",
		},
		{
			name: "unbound projection",
			q:    &Query{Projection: []Projection{{Var: "x"}}, Where: &Group{Elements: []Element{block}}},
			want: "?x is never bound",
		},
		{
			name: "ungrouped projection",
			q: &Query{
				Projection: []Projection{{Var: "o"}, {Var: "n", Aggregate: &Aggregate{Func: AggCount}}},
				GroupBy:    []string{"s"},
				Where:      &Group{Elements: []Element{block}},
			},
			want: "?o is not in GROUP BY",
		},
		{
			name: "unbound group by",
			q: &Query{
				Projection: []Projection{{Var: "n", Aggregate: &Aggregate{Func: AggCount}}},
				GroupBy:    []string{"k"},
				Where:      &Group{Elements: []Element{block}},
			},
			want: "GROUP BY variable ?k",
		},
		{
			name: "filter over unbound var",
			q: &Query{Where: &Group{Elements: []Element{
				block,
				&Filter{Expr: &Bound{Var: "q"}},
			}}},
			want: "filter references ?q",
		},
		{
			name: "single branch union",
			q:    &Query{Where: &Group{Elements: []Element{&Union{Alternatives: []Element{block}}}}},
			want: "UNION with 1 alternative(s)",
		},
		{
			name: "empty group",
			q:    &Query{Where: &Group{}},
			want: "empty group pattern",
		},
		{
			name: "nested subquery",
			q: &Query{Where: &Group{Elements: []Element{
				&SubQuery{Query: &Query{Projection: []Projection{{Var: "gone"}}, Where: &Group{Elements: []Element{block}}}},
			}}},
			want: "subquery: projected variable ?gone",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Validate(tt.q)
			require.False(t, result.Clean)
			joined := ""
			for _, w := range result.Warnings {
				joined += w + "\n"
			}
			assert.Contains(t, joined, tt.want)
		})
	}
}

package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/reteflow/internal/ir"
	"github.com/roach88/reteflow/internal/topology"
)

func TestJoinMatchesUnboundKeysLiterally(t *testing.T) {
	op := newJoinOp(&topology.JoinLogic{
		Left:          "left",
		Right:         "right",
		LeftVars:      []string{"a", "b"},
		RightVars:     []string{"b", "c"},
		MatchLeft:     []int{-1, 0},
		MatchRight:    []int{1, -1},
		TemplateLeft:  []int{0, 1, -1},
		TemplateRight: []int{-1, 0, 1},
		Vars:          []string{"a", "b", "c"},
		Shared:        []string{"b"},
	})

	var out []Row
	emit := func(r Row) error {
		out = append(out, r)
		return nil
	}

	a1, b1 := ir.IRI(ex+"a1"), ir.IRI(ex+"b1")
	c1, c2 := ir.IRI(ex+"c1"), ir.IRI(ex+"c2")

	require.NoError(t, op.receive("left", Row{a1, ir.Term{}}, emit))
	require.NoError(t, op.receive("right", Row{b1, c1}, emit))
	assert.Empty(t, out, "an unbound key does not match a bound value")

	require.NoError(t, op.receive("right", Row{ir.Term{}, c2}, emit))
	require.Len(t, out, 1)
	assert.Equal(t, Row{a1, ir.Term{}, c2}, out[0])
}

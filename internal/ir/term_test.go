package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTermString(t *testing.T) {
	tests := []struct {
		term Term
		want string
	}{
		{Var("s"), "?s"},
		{IRI("http://ex/a"), "<http://ex/a>"},
		{Literal("hi"), `"hi"`},
		{LangLiteral("chat", "fr"), `"chat"@fr`},
		{Integer(5), `"5"^^<http://www.w3.org/2001/XMLSchema#integer>`},
		{Term{}, "UNDEF"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.term.String())
		})
	}
}

func TestTermNumeric(t *testing.T) {
	f, ok := Integer(12).Numeric()
	require.True(t, ok)
	assert.Equal(t, 12.0, f)

	f, ok = Literal("2.5").Numeric()
	require.True(t, ok)
	assert.Equal(t, 2.5, f)

	_, ok = Literal("abc").Numeric()
	assert.False(t, ok)

	_, ok = IRI("http://ex/1").Numeric()
	assert.False(t, ok)

	_, ok = LangLiteral("1", "en").Numeric()
	assert.True(t, ok, "language tag does not change the lexical value")
}

func TestTripleGroundAndVars(t *testing.T) {
	fact := T(IRI("http://ex/a"), IRI("http://ex/p"), Literal("x"))
	assert.True(t, fact.IsGround())
	assert.Empty(t, fact.Vars())

	pattern := T(Var("s"), IRI("http://ex/p"), Var("o"))
	assert.False(t, pattern.IsGround())
	assert.Equal(t, []string{"s", "o"}, pattern.Vars())
	assert.Equal(t, "?s <http://ex/p> ?o", pattern.String())
}

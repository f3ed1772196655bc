package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signature(t *testing.T, fp FactPattern) string {
	t.Helper()
	sig, err := FilterSignature(fp)
	require.NoError(t, err)
	return sig
}

func TestBindingTableStableIndices(t *testing.T) {
	b := NewBindingTable()

	assert.Equal(t, 0, b.Index("s"))
	assert.Equal(t, 1, b.Index("o"))
	assert.Equal(t, 0, b.Index("s"), "same name must resolve to same index")
	assert.Equal(t, []int{1, 0, 2}, b.Indices([]string{"o", "s", "z"}))
	assert.Equal(t, 3, b.Len())

	i, ok := b.Lookup("z")
	assert.True(t, ok)
	assert.Equal(t, 2, i)

	_, ok = b.Lookup("missing")
	assert.False(t, ok)

	name, err := b.Name(1)
	require.NoError(t, err)
	assert.Equal(t, "o", name)

	_, err = b.Name(9)
	assert.Error(t, err)
	assert.Equal(t, []string{"s", "o", "z"}, b.Names())
}

func TestResolveFactPattern(t *testing.T) {
	b := NewBindingTable()
	fp := Resolve(T(Var("s"), IRI("http://ex/p"), Var("s")), b)

	assert.Equal(t, [3]int{0, -1, 0}, fp.Slots)
	assert.Equal(t, []string{"s"}, fp.Pattern.Vars())
}

func TestFilterSignatureSpellingIndependent(t *testing.T) {
	p := IRI("http://ex/p")

	// Two tables where ?a and ?x both get index 0 and ?b and ?y index 1.
	b1 := NewBindingTable()
	b2 := NewBindingTable()
	fp1 := Resolve(T(Var("a"), p, Var("b")), b1)
	fp2 := Resolve(T(Var("x"), p, Var("y")), b2)
	assert.Equal(t, signature(t, fp1), signature(t, fp2))

	// Within one table different names get different indices.
	fp3 := Resolve(T(Var("x"), p, Var("y")), b1)
	assert.NotEqual(t, signature(t, fp1), signature(t, fp3))

	// Same pattern, same table: identical.
	fp4 := Resolve(T(Var("a"), p, Var("b")), b1)
	assert.Equal(t, signature(t, fp1), signature(t, fp4))
}

func TestFilterSignatureConstants(t *testing.T) {
	b := NewBindingTable()
	fp1 := Resolve(T(Var("s"), IRI("http://ex/p1"), Var("o")), b)
	fp2 := Resolve(T(Var("s"), IRI("http://ex/p2"), Var("o")), b)

	assert.NotEqual(t, signature(t, fp1), signature(t, fp2))
	assert.Len(t, signature(t, fp1), 64, "SHA-256 hex is 64 characters")
}

func TestJoinSignature(t *testing.T) {
	a, err := JoinSignature("l", "r", []int{0, 1, 1, 2})
	require.NoError(t, err)
	b, err := JoinSignature("l", "r", []int{0, 1, 1, 2})
	require.NoError(t, err)
	c, err := JoinSignature("r", "l", []int{1, 2, 0, 1})
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c, "left/right order is part of the signature")
}

func TestPredicateSignatureAndQueryHash(t *testing.T) {
	a, err := PredicateSignature("pred", "(?0 > 3)")
	require.NoError(t, err)
	b, err := PredicateSignature("pred", "(?0 > 4)")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	assert.Equal(t, QueryHash("SELECT * WHERE {}"), QueryHash("SELECT * WHERE {}"))
	assert.NotEqual(t, QueryHash("a"), QueryHash("b"))
}

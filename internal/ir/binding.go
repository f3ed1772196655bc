package ir

import "fmt"

// BindingTable maps variable names to global integer indices.
//
// INVARIANT: the same name always resolves to the same index for the
// lifetime of the table. A query and all of its nested subqueries share one
// table, so ?x in a subquery and ?x at top level carry the same index.
//
// Indices are assigned in first-seen order starting at 0.
type BindingTable struct {
	index map[string]int
	names []string
}

// NewBindingTable creates an empty binding table.
func NewBindingTable() *BindingTable {
	return &BindingTable{index: make(map[string]int)}
}

// Index returns the index for name, assigning the next free index if the
// name has not been seen.
func (b *BindingTable) Index(name string) int {
	if i, ok := b.index[name]; ok {
		return i
	}
	i := len(b.names)
	b.index[name] = i
	b.names = append(b.names, name)
	return i
}

// Lookup returns the index for name without assigning one.
func (b *BindingTable) Lookup(name string) (int, bool) {
	i, ok := b.index[name]
	return i, ok
}

// Indices resolves each name, assigning indices as needed.
func (b *BindingTable) Indices(names []string) []int {
	out := make([]int, len(names))
	for i, n := range names {
		out[i] = b.Index(n)
	}
	return out
}

// Name returns the variable name at index i.
func (b *BindingTable) Name(i int) (string, error) {
	if i < 0 || i >= len(b.names) {
		return "", fmt.Errorf("binding index %d out of range [0,%d)", i, len(b.names))
	}
	return b.names[i], nil
}

// Len returns the number of bound names.
func (b *BindingTable) Len() int {
	return len(b.names)
}

// Names returns a copy of all names in index order.
func (b *BindingTable) Names() []string {
	out := make([]string, len(b.names))
	copy(out, b.names)
	return out
}

// FactPattern is a triple pattern whose variable slots have been resolved
// against a BindingTable. Slots[i] is the binding index of slot i, or -1 when
// the slot holds a constant.
type FactPattern struct {
	Pattern Triple `json:"pattern" msgpack:"pattern"`
	Slots   [3]int `json:"slots" msgpack:"slots"`
}

// Resolve builds a FactPattern for t, assigning indices in b as needed.
func Resolve(t Triple, b *BindingTable) FactPattern {
	fp := FactPattern{Pattern: t}
	for i, term := range t.Terms() {
		if term.IsVar() {
			fp.Slots[i] = b.Index(term.Value)
		} else {
			fp.Slots[i] = -1
		}
	}
	return fp
}

// Signature returns the spelling-independent description of the pattern:
// constants by value and variables by binding index. Two patterns with equal
// signatures are structurally identical within one compilation.
func (fp FactPattern) Signature() IRArray {
	sig := make(IRArray, 3)
	for i, term := range fp.Pattern.Terms() {
		if fp.Slots[i] >= 0 {
			sig[i] = IRObject{"var": IRInt(fp.Slots[i])}
			continue
		}
		sig[i] = IRObject{"const": IRString(term.String())}
	}
	return sig
}

package engine

import (
	"context"

	"github.com/roach88/reteflow/internal/ir"
)

// Fact is one ground triple of the input stream.
type Fact = ir.Triple

// ReferenceData supplies the facts of static filters: triples that are
// side-loaded rather than streamed through the spout.
//
// Lookup returns every fact matching the pattern's constant slots. It may
// return extra facts; the filter re-checks each one.
type ReferenceData interface {
	Lookup(ctx context.Context, fp ir.FactPattern) ([]ir.Triple, error)
}

// StaticFacts is an in-memory ReferenceData.
type StaticFacts []ir.Triple

// Lookup implements ReferenceData.
func (s StaticFacts) Lookup(_ context.Context, fp ir.FactPattern) ([]ir.Triple, error) {
	var out []ir.Triple
	for _, f := range s {
		if matchConstants(fp.Pattern, f) {
			out = append(out, f)
		}
	}
	return out, nil
}

// matchConstants reports whether fact agrees with every constant slot of
// pattern.
func matchConstants(pattern, fact ir.Triple) bool {
	p, f := pattern.Terms(), fact.Terms()
	for i := range p {
		if !p[i].IsVar() && p[i] != f[i] {
			return false
		}
	}
	return true
}

// matchFact binds fact against a filter pattern and returns the output row
// laid out by vars. A variable repeated in the pattern must bind the same
// value in every slot.
func matchFact(pattern ir.Triple, vars []string, fact ir.Triple) (Row, bool) {
	if !matchConstants(pattern, fact) {
		return nil, false
	}
	p, f := pattern.Terms(), fact.Terms()
	bound := make(map[string]ir.Term, 3)
	for i := range p {
		if !p[i].IsVar() {
			continue
		}
		if prev, ok := bound[p[i].Value]; ok && prev != f[i] {
			return nil, false
		}
		bound[p[i].Value] = f[i]
	}
	row := make(Row, len(vars))
	for i, v := range vars {
		row[i] = bound[v]
	}
	return row, true
}

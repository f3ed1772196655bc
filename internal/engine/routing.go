package engine

import (
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/roach88/reteflow/internal/ir"
	"github.com/roach88/reteflow/internal/topology"
)

// Row is one tuple of bound values laid out by the producing node's schema.
// A zero Term marks an unbound position.
type Row []ir.Term

// Key returns a string usable as a map key for the row's values.
func (r Row) Key() string {
	var b strings.Builder
	for i, t := range r {
		if i > 0 {
			b.WriteByte(0x1f)
		}
		b.WriteString(t.String())
	}
	return b.String()
}

// Strings renders each value in surface syntax, "UNDEF" when unbound.
func (r Row) Strings() []string {
	out := make([]string, len(r))
	for i, t := range r {
		out[i] = t.String()
	}
	return out
}

// project picks positions out of r. A negative position yields an unbound
// value.
func (r Row) project(positions []int) Row {
	out := make(Row, len(positions))
	for i, p := range positions {
		if p >= 0 && p < len(r) {
			out[i] = r[p]
		}
	}
	return out
}

// route selects the destination instance for rows on one edge.
//
// A route is owned by a single sending instance, so the round-robin cursor
// needs no synchronization.
type route struct {
	edge    topology.Edge
	targets []*instance
	next    int
}

// pick returns the instance that receives row.
func (r *route) pick(row Row) *instance {
	n := len(r.targets)
	if n == 1 {
		return r.targets[0]
	}
	switch r.edge.Grouping.Kind {
	case ir.GroupingGlobal:
		return r.targets[0]
	case ir.GroupingFields:
		return r.targets[fieldsHash(row, r.edge.Grouping.Indices)%uint64(n)]
	default:
		t := r.targets[r.next]
		r.next = (r.next + 1) % n
		return t
	}
}

// fieldsHash hashes the grouped values of row. Equal values always hash
// equally, whichever instance sent them.
func fieldsHash(row Row, indices []int) uint64 {
	h := xxhash.New()
	for _, i := range indices {
		if i < len(row) {
			_, _ = h.WriteString(row[i].String())
		}
		_, _ = h.Write([]byte{0x1f})
	}
	return h.Sum64()
}

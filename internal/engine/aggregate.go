package engine

import (
	"math"
	"strconv"

	"github.com/roach88/reteflow/internal/ir"
	"github.com/roach88/reteflow/internal/queryir"
)

// accumulator folds the values of one aggregate within one group.
type accumulator interface {
	add(t ir.Term)
	result() ir.Term
}

// newAccumulator returns a fresh accumulator for agg.
func newAccumulator(agg *queryir.Aggregate) accumulator {
	var acc accumulator
	switch agg.Func {
	case queryir.AggCount:
		acc = &countAcc{star: agg.Arg == ""}
	case queryir.AggSum:
		acc = &sumAcc{allInt: true}
	case queryir.AggAvg:
		acc = &avgAcc{}
	case queryir.AggMin:
		acc = &extremeAcc{less: true}
	case queryir.AggMax:
		acc = &extremeAcc{}
	default:
		acc = &sampleAcc{}
	}
	if agg.Distinct {
		return &distinctAcc{inner: acc, seen: make(map[string]bool)}
	}
	return acc
}

// distinctAcc forwards each distinct value once.
type distinctAcc struct {
	inner accumulator
	seen  map[string]bool
}

func (a *distinctAcc) add(t ir.Term) {
	k := t.String()
	if a.seen[k] {
		return
	}
	a.seen[k] = true
	a.inner.add(t)
}

func (a *distinctAcc) result() ir.Term { return a.inner.result() }

// countAcc counts bound values, or every row for COUNT(*).
type countAcc struct {
	star bool
	n    int64
}

func (a *countAcc) add(t ir.Term) {
	if a.star || t.IsBound() {
		a.n++
	}
}

func (a *countAcc) result() ir.Term { return ir.Integer(a.n) }

// sumAcc sums numeric values. The result stays an integer while every input
// is one.
type sumAcc struct {
	allInt bool
	isum   int64
	fsum   float64
}

func (a *sumAcc) add(t ir.Term) {
	f, ok := t.Numeric()
	if !ok {
		return
	}
	if n, err := strconv.ParseInt(t.Value, 10, 64); err == nil && a.allInt {
		a.isum += n
	} else {
		a.allInt = false
	}
	a.fsum += f
}

func (a *sumAcc) result() ir.Term {
	if a.allInt {
		return ir.Integer(a.isum)
	}
	return decimal(a.fsum)
}

// avgAcc averages numeric values. The average of nothing is 0.
type avgAcc struct {
	sum float64
	n   int64
}

func (a *avgAcc) add(t ir.Term) {
	if f, ok := t.Numeric(); ok {
		a.sum += f
		a.n++
	}
}

func (a *avgAcc) result() ir.Term {
	if a.n == 0 {
		return ir.Integer(0)
	}
	return decimal(a.sum / float64(a.n))
}

// extremeAcc tracks the minimum (less) or maximum. Numbers order by value
// and sort before everything else; other terms order by lexical form.
type extremeAcc struct {
	less bool
	best ir.Term
}

func (a *extremeAcc) add(t ir.Term) {
	if !t.IsBound() {
		return
	}
	if !a.best.IsBound() {
		a.best = t
		return
	}
	c := orderTerms(t, a.best)
	if (a.less && c < 0) || (!a.less && c > 0) {
		a.best = t
	}
}

func (a *extremeAcc) result() ir.Term { return a.best }

// sampleAcc returns an arbitrary value of the group. It keeps the smallest
// so the result does not depend on arrival order across instances.
type sampleAcc struct {
	best ir.Term
}

func (a *sampleAcc) add(t ir.Term) {
	if !t.IsBound() {
		return
	}
	if !a.best.IsBound() || t.String() < a.best.String() {
		a.best = t
	}
}

func (a *sampleAcc) result() ir.Term { return a.best }

// orderTerms is the total order used by MIN and MAX.
func orderTerms(x, y ir.Term) int {
	xn, xok := x.Numeric()
	yn, yok := y.Numeric()
	switch {
	case xok && yok:
		switch {
		case xn < yn:
			return -1
		case xn > yn:
			return 1
		}
		return 0
	case xok:
		return -1
	case yok:
		return 1
	}
	xs, ys := x.String(), y.String()
	switch {
	case xs < ys:
		return -1
	case xs > ys:
		return 1
	}
	return 0
}

func decimal(f float64) ir.Term {
	if math.Trunc(f) == f && !math.IsInf(f, 0) {
		return ir.TypedLiteral(strconv.FormatFloat(f, 'f', 1, 64), ir.XSDDecimal)
	}
	return ir.TypedLiteral(strconv.FormatFloat(f, 'f', -1, 64), ir.XSDDecimal)
}

// groupTable holds the accumulators of an aggregating terminal, keyed by the
// GROUP BY values.
type groupTable struct {
	aggs   []*queryir.Aggregate
	groups map[string]*group
	order  []string
}

type group struct {
	key  Row
	accs []accumulator
}

func newGroupTable(projection []queryir.Projection) *groupTable {
	t := &groupTable{groups: make(map[string]*group)}
	for _, p := range projection {
		if p.Aggregate != nil {
			t.aggs = append(t.aggs, p.Aggregate)
		}
	}
	return t
}

// get returns the group for key, creating it on first use.
func (t *groupTable) get(key Row) *group {
	k := key.Key()
	g, ok := t.groups[k]
	if !ok {
		g = &group{key: key, accs: make([]accumulator, len(t.aggs))}
		for i, agg := range t.aggs {
			g.accs[i] = newAccumulator(agg)
		}
		t.groups[k] = g
		t.order = append(t.order, k)
	}
	return g
}

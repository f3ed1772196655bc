package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/reteflow/internal/ir"
	"github.com/roach88/reteflow/internal/topology"
)

// emitFunc delivers one output row downstream.
type emitFunc func(Row) error

// operator is the per-instance behavior of a node.
//
// receive is called for every input row in arrival order; finish is called
// once after every upstream instance has signaled end of stream. Operators
// are confined to their instance goroutine and need no locking.
type operator interface {
	receive(from string, row Row, emit emitFunc) error
	finish(ctx context.Context, emit emitFunc) error
}

// newOperator builds the operator for one instance of n.
func (e *Engine) newOperator(n *topology.Node, index int) (operator, error) {
	switch l := n.Logic().(type) {
	case *topology.FilterLogic:
		return &filterOp{
			node:   n.Name,
			logic:  l,
			index:  index,
			ref:    e.ref,
			logger: e.logger,
		}, nil
	case *topology.PredicateLogic:
		ev, err := newEvaluator(l.Expr, l.Vars)
		if err != nil {
			return nil, expressionError(n.Name, l.Expr, err)
		}
		return &predicateOp{ev: ev}, nil
	case *topology.JoinLogic:
		return newJoinOp(l), nil
	case *topology.TerminalLogic:
		if l.Aggregating() {
			return newAggregateOp(l, index), nil
		}
		return newProjectOp(l), nil
	default:
		return nil, &RuntimeError{
			Code:    ErrCodeInvalidTopology,
			Message: fmt.Sprintf("node has no runnable logic (kind %q)", n.Kind),
			Node:    n.Name,
		}
	}
}

// filterOp matches spout facts against one triple pattern. A static filter
// has no inputs; its first instance reads the pattern's facts from reference
// data when it finishes.
type filterOp struct {
	node   string
	logic  *topology.FilterLogic
	index  int
	ref    ReferenceData
	logger *slog.Logger
}

func (o *filterOp) receive(_ string, row Row, emit emitFunc) error {
	if len(row) != 3 {
		return nil
	}
	out, ok := matchFact(o.logic.Pattern, o.logic.Vars, ir.T(row[0], row[1], row[2]))
	if !ok {
		return nil
	}
	return emit(out)
}

func (o *filterOp) finish(ctx context.Context, emit emitFunc) error {
	if !o.logic.Static || o.index != 0 {
		return nil
	}
	if o.ref == nil {
		return &RuntimeError{
			Code:    ErrCodeMissingReferenceData,
			Message: "static filter needs reference data",
			Node:    o.node,
		}
	}
	facts, err := o.ref.Lookup(ctx, ir.FactPattern{Pattern: o.logic.Pattern, Slots: o.logic.Slots})
	if err != nil {
		return &RuntimeError{
			Code:    ErrCodeReferenceLookup,
			Message: err.Error(),
			Node:    o.node,
			Details: map[string]string{"pattern": o.logic.Pattern.String()},
		}
	}
	o.logger.Debug("reference facts loaded", "node", o.node, "facts", len(facts))
	for _, f := range facts {
		out, ok := matchFact(o.logic.Pattern, o.logic.Vars, f)
		if !ok {
			continue
		}
		if err := emit(out); err != nil {
			return err
		}
	}
	return nil
}

// predicateOp passes rows that satisfy its expression.
type predicateOp struct {
	ev *evaluator
}

func (o *predicateOp) receive(_ string, row Row, emit emitFunc) error {
	if !o.ev.Test(row) {
		return nil
	}
	return emit(row)
}

func (o *predicateOp) finish(context.Context, emitFunc) error { return nil }

// joinOp is a symmetric hash join. Each side keeps a memory of every row it
// has seen, keyed by the shared values; a new row probes the other side's
// memory. A cartesian join keys everything under the empty key.
//
// Unbound shared values are keyed literally: a row whose shared variable is
// unbound joins only rows where it is unbound too, never any value.
type joinOp struct {
	logic    *topology.JoinLogic
	leftKey  []int
	rightKey []int
	left     map[string][]Row
	right    map[string][]Row
}

func newJoinOp(l *topology.JoinLogic) *joinOp {
	o := &joinOp{
		logic: l,
		left:  make(map[string][]Row),
		right: make(map[string][]Row),
	}
	for i, j := range l.MatchLeft {
		if j >= 0 {
			o.leftKey = append(o.leftKey, i)
			o.rightKey = append(o.rightKey, j)
		}
	}
	return o
}

func (o *joinOp) receive(from string, row Row, emit emitFunc) error {
	if from == o.logic.Left {
		key := row.project(o.leftKey).Key()
		o.left[key] = append(o.left[key], row)
		for _, r := range o.right[key] {
			if err := emit(o.combine(row, r)); err != nil {
				return err
			}
		}
		return nil
	}

	key := row.project(o.rightKey).Key()
	o.right[key] = append(o.right[key], row)
	for _, l := range o.left[key] {
		if err := emit(o.combine(l, row)); err != nil {
			return err
		}
	}
	return nil
}

func (o *joinOp) combine(l, r Row) Row {
	out := make(Row, len(o.logic.Vars))
	for i := range out {
		if p := o.logic.TemplateLeft[i]; p >= 0 && p < len(l) {
			out[i] = l[p]
		} else if p := o.logic.TemplateRight[i]; p >= 0 && p < len(r) {
			out[i] = r[p]
		}
	}
	return out
}

func (o *joinOp) finish(context.Context, emitFunc) error { return nil }

// positionsFor locates each of vars in every source schema.
func positionsFor(sources map[string][]string, vars []string) map[string][]int {
	out := make(map[string][]int, len(sources))
	for src, schema := range sources {
		pos := make([]int, len(vars))
		for i, v := range vars {
			pos[i] = -1
			for j, s := range schema {
				if s == v {
					pos[i] = j
					break
				}
			}
		}
		out[src] = pos
	}
	return out
}

// gate applies a sub-select's DISTINCT and LIMIT as rows stream out. The
// result collector applies them for top-level queries instead.
type gate struct {
	active   bool
	distinct bool
	limit    int
	seen     map[string]bool
	passed   int
}

func newGate(l *topology.TerminalLogic) *gate {
	return &gate{
		active:   l.SubSelect,
		distinct: l.Distinct,
		limit:    l.Limit,
		seen:     make(map[string]bool),
	}
}

func (g *gate) admit(row Row) bool {
	if !g.active {
		return true
	}
	if g.limit > 0 && g.passed >= g.limit {
		return false
	}
	if g.distinct {
		k := row.Key()
		if g.seen[k] {
			return false
		}
		g.seen[k] = true
	}
	g.passed++
	return true
}

// projectOp lays out rows from every source by the terminal's variables.
type projectOp struct {
	positions map[string][]int
	gate      *gate
}

func newProjectOp(l *topology.TerminalLogic) *projectOp {
	return &projectOp{
		positions: positionsFor(l.Sources, l.Vars),
		gate:      newGate(l),
	}
}

func (o *projectOp) receive(from string, row Row, emit emitFunc) error {
	out := row.project(o.positions[from])
	if !o.gate.admit(out) {
		return nil
	}
	return emit(out)
}

func (o *projectOp) finish(context.Context, emitFunc) error { return nil }

// aggregateOp groups rows by the GROUP BY values and emits one row per group
// once its input is exhausted.
type aggregateOp struct {
	logic    *topology.TerminalLogic
	index    int
	groupPos map[string][]int
	argPos   map[string][]int
	table    *groupTable
	gate     *gate
}

func newAggregateOp(l *topology.TerminalLogic, index int) *aggregateOp {
	table := newGroupTable(l.Projection)
	args := make([]string, len(table.aggs))
	for i, agg := range table.aggs {
		args[i] = agg.Arg
	}
	return &aggregateOp{
		logic:    l,
		index:    index,
		groupPos: positionsFor(l.Sources, l.GroupBy),
		argPos:   positionsFor(l.Sources, args),
		table:    table,
		gate:     newGate(l),
	}
}

func (o *aggregateOp) receive(from string, row Row, _ emitFunc) error {
	g := o.table.get(row.project(o.groupPos[from]))
	args := row.project(o.argPos[from])
	for i, acc := range g.accs {
		acc.add(args[i])
	}
	return nil
}

func (o *aggregateOp) finish(_ context.Context, emit emitFunc) error {
	// An ungrouped aggregate over no rows still yields one row.
	if len(o.table.groups) == 0 && len(o.logic.GroupBy) == 0 && o.index == 0 {
		o.table.get(Row{})
	}

	for _, k := range o.table.order {
		g := o.table.groups[k]
		out := make(Row, len(o.logic.Projection))
		agg := 0
		for i, p := range o.logic.Projection {
			if p.Aggregate != nil {
				out[i] = g.accs[agg].result()
				agg++
				continue
			}
			for j, v := range o.logic.GroupBy {
				if v == p.Var {
					out[i] = g.key[j]
					break
				}
			}
		}
		if !o.gate.admit(out) {
			continue
		}
		if err := emit(out); err != nil {
			return err
		}
	}
	return nil
}

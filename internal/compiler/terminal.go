package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/reteflow/internal/ir"
	"github.com/roach88/reteflow/internal/queryir"
	"github.com/roach88/reteflow/internal/sparql"
	"github.com/roach88/reteflow/internal/topology"
)

// TerminalName builds the runtime name of a query's terminal, e.g.
// terminal0[s,z].
func TerminalName(ordinal int, vars []string) string {
	return fmt.Sprintf("terminal%d[%s]", ordinal, strings.Join(vars, ","))
}

// FinishQuery builds the query's single terminal node and connects the
// final node of every alternative to it.
//
// Grouping per incoming edge follows the query's aggregation shape:
//
//	no aggregate, no GROUP BY   shuffle        default parallelism
//	GROUP BY v1..vk             fields on vi   default parallelism
//	aggregate, no GROUP BY      global         parallelism 1
//
// Every edge groups on the same variables: the GROUP BY variables bound by
// all sources. When a source lacks one, its rows carry it unbound, and a
// key that omitted it on one edge only would send one group to two
// instances. If no GROUP BY variable is bound by every source, all edges
// fall back to global grouping and parallelism 1.
func (c *Context) FinishQuery(forest Forest) (*PlanNode, error) {
	q := c.query
	if len(forest) == 0 {
		return nil, newError(ErrEmptyAlternative, "where", "pattern produced no alternatives")
	}

	var finals []*PlanNode
	seen := make(map[string]bool)
	for _, alt := range forest {
		node, err := c.assemble(alt)
		if err != nil {
			return nil, err
		}
		if seen[node.CanonicalName] {
			continue
		}
		seen[node.CanonicalName] = true
		finals = append(finals, node)
	}

	if err := checkBindings(q, finals); err != nil {
		return nil, err
	}

	vars := q.ResultVars()
	subSelect := c.depth > 0
	name := TerminalName(c.ordinal, vars)
	parallelism := c.opts.Parallelism
	if subSelect && (q.Distinct || q.Limit > 0) {
		parallelism = 1
	}

	key := sharedVars(q.GroupBy, finals)
	inputs := make([]Input, 0, len(finals))
	sources := make(map[string][]string, len(finals))
	for _, f := range finals {
		var g ir.Grouping
		switch {
		case len(q.GroupBy) > 0 && len(key) == 0:
			g = ir.Global()
		case len(q.GroupBy) > 0:
			g = ir.FieldsOn(f.BoundVars, key)
		case q.HasAggregate():
			g = ir.Global()
		default:
			g = ir.Shuffle()
		}
		if g.Kind == ir.GroupingGlobal {
			parallelism = 1
		}
		inputs = append(inputs, Input{From: f.CanonicalName, Grouping: g})
		sources[f.Name] = f.BoundVars
	}

	text := sparql.RenderQuery(q)
	n := &PlanNode{
		CanonicalName: name,
		Name:          name,
		Kind:          topology.KindTerminal,
		Logic: &topology.TerminalLogic{
			Origin:     topology.Origin{QueryText: text},
			Vars:       vars,
			Projection: q.Projection,
			GroupBy:    q.GroupBy,
			Distinct:   q.Distinct,
			Limit:      q.Limit,
			SubSelect:  subSelect,
			Sources:    sources,
		},
		BoundVars:   vars,
		Source:      &queryir.SubQuery{Query: q},
		QueryText:   text,
		Inputs:      inputs,
		Parallelism: parallelism,
	}
	c.cache.put(n)
	c.transition(StateFinished)
	c.logger.Debug("terminal created",
		"node", n.Name,
		"sources", len(finals),
		"parallelism", parallelism,
	)
	return n, nil
}

// sharedVars returns the variables of vars, in order, that every node in
// nodes binds.
func sharedVars(vars []string, nodes []*PlanNode) []string {
	var shared []string
	for _, v := range vars {
		everywhere := true
		for _, n := range nodes {
			if !slices.Contains(n.BoundVars, v) {
				everywhere = false
				break
			}
		}
		if everywhere {
			shared = append(shared, v)
		}
	}
	return shared
}

// checkBindings rejects projections and groupings over variables that no
// alternative binds, and plain projections outside GROUP BY.
func checkBindings(q *queryir.Query, finals []*PlanNode) error {
	bound := make(map[string]bool)
	for _, f := range finals {
		for _, v := range f.BoundVars {
			bound[v] = true
		}
	}

	if len(q.GroupBy) > 0 && q.IsSelectAll() {
		return newError(ErrUnboundVariable, "select", "SELECT * cannot be combined with GROUP BY")
	}

	grouped := make(map[string]bool, len(q.GroupBy))
	for _, v := range q.GroupBy {
		if !bound[v] {
			return newError(ErrUnboundVariable, "group_by", "GROUP BY variable ?%s is never bound", v)
		}
		grouped[v] = true
	}

	for _, p := range q.Projection {
		if p.Aggregate != nil {
			if p.Aggregate.Arg != "" && !bound[p.Aggregate.Arg] {
				return newError(ErrUnboundVariable, "select", "aggregate %s uses ?%s which is never bound", p.Aggregate.Func, p.Aggregate.Arg)
			}
			continue
		}
		if !bound[p.Var] {
			return newError(ErrUnboundVariable, "select", "projected variable ?%s is never bound", p.Var)
		}
		if (len(q.GroupBy) > 0 || q.HasAggregate()) && !grouped[p.Var] {
			return newError(ErrUnboundVariable, "select", "projected variable ?%s is not in GROUP BY", p.Var)
		}
	}
	return nil
}

package compiler

import (
	"fmt"
	"strconv"

	"github.com/roach88/reteflow/internal/ir"
	"github.com/roach88/reteflow/internal/queryir"
	"github.com/roach88/reteflow/internal/sparql"
	"github.com/roach88/reteflow/internal/topology"
)

// Compile visits the query's WHERE pattern and returns its plan forest.
func (c *Context) Compile() (Forest, error) {
	if c.query == nil {
		return nil, newError(ErrNilQuery, "query", "nil query")
	}
	if c.query.Where == nil {
		return nil, newError(ErrNilQuery, "where", "query has no WHERE pattern")
	}
	c.transition(StateCompiling)
	return c.visit(c.query.Where)
}

// visit dispatches on the element kind. Every kind in queryir is handled;
// anything else rejects the query.
func (c *Context) visit(el queryir.Element) (Forest, error) {
	switch e := el.(type) {
	case *queryir.Group:
		return c.visitGroup(e)
	case *queryir.PathBlock:
		return c.visitPathBlock(e)
	case *queryir.Union:
		return c.visitUnion(e)
	case *queryir.Optional:
		return c.visitOptional(e)
	case *queryir.Filter:
		return c.visitFilter(e)
	case *queryir.SubQuery:
		return c.visitSubQuery(e)
	default:
		return nil, newError(ErrUnknownElement, "where", "unknown element type %T", el)
	}
}

// visitGroup combines the children's forests by cross product, joins each
// alternative down to one node and chains the group's filters onto it.
func (c *Context) visitGroup(g *queryir.Group) (Forest, error) {
	var (
		forest    Forest
		populated bool
		filters   []*PlanNode
	)

	for _, child := range g.Elements {
		if f, ok := child.(*queryir.Filter); ok {
			tmpl, err := c.visitFilter(f)
			if err != nil {
				return nil, err
			}
			filters = append(filters, tmpl[0][0])
			continue
		}

		res, err := c.visit(child)
		if err != nil {
			return nil, err
		}
		if !populated {
			forest, populated = res, true
			continue
		}
		forest = cross(forest, res)
	}

	if !populated {
		if len(filters) > 0 {
			return nil, newError(ErrEmptyAlternative, "group", "FILTER in a group with no pattern to constrain")
		}
		return Forest{{}}, nil
	}

	out := make(Forest, 0, len(forest))
	for _, alt := range forest {
		node, err := c.assemble(alt)
		if err != nil {
			return nil, err
		}
		for _, f := range filters {
			node, err = c.chainPredicate(node, f)
			if err != nil {
				return nil, err
			}
		}
		out = append(out, []*PlanNode{node})
	}
	return out, nil
}

// visitPathBlock returns one alternative holding a filter node per distinct
// triple pattern. The nodes are joined by the enclosing group.
func (c *Context) visitPathBlock(b *queryir.PathBlock) (Forest, error) {
	if len(b.Triples) == 0 {
		return nil, newError(ErrEmptyAlternative, "path", "empty triple block")
	}

	alt := make([]*PlanNode, 0, len(b.Triples))
	for _, t := range b.Triples {
		node, err := c.filterNode(t)
		if err != nil {
			return nil, err
		}
		alt = append(alt, node)
	}
	return Forest{dedupe(alt)}, nil
}

func (c *Context) filterNode(t ir.Triple) (*PlanNode, error) {
	fp := ir.Resolve(t, c.bindings)
	canonical, err := ir.FilterSignature(fp)
	if err != nil {
		return nil, fmt.Errorf("filter %s: %w", t, err)
	}
	if n, ok := c.cache.get(canonical); ok {
		c.logger.Debug("filter node reused", "node", n.Name, "pattern", t.String())
		return n, nil
	}

	source := &queryir.PathBlock{Triples: []ir.Triple{t}}
	vars := t.Vars()
	text := sparql.Render(source)
	logic := &topology.FilterLogic{
		Origin:  topology.Origin{Canonical: canonical, QueryText: text},
		Pattern: t,
		Slots:   fp.Slots,
		Vars:    vars,
		Static:  t.Predicate.Kind == ir.TermIRI && c.opts.StaticPredicates[t.Predicate.Value],
	}
	n := &PlanNode{
		CanonicalName: canonical,
		Name:          c.counters.Filter(),
		Kind:          topology.KindFilter,
		Logic:         logic,
		BoundVars:     vars,
		Source:        source,
		QueryText:     text,
		Parallelism:   c.opts.Parallelism,
	}
	c.cache.put(n)
	c.logger.Debug("filter node created", "node", n.Name, "pattern", t.String(), "static", logic.Static)
	return n, nil
}

// visitUnion concatenates the alternatives of every branch. Branches are
// never joined with each other.
func (c *Context) visitUnion(u *queryir.Union) (Forest, error) {
	if len(u.Alternatives) == 0 {
		return nil, newError(ErrEmptyAlternative, "union", "UNION with no alternatives")
	}
	var out Forest
	for _, alt := range u.Alternatives {
		res, err := c.visit(alt)
		if err != nil {
			return nil, err
		}
		out = append(out, res...)
	}
	return out, nil
}

// visitOptional encodes optionality as alternation: one plan without the
// optional pattern, plus the pattern's own alternatives.
func (c *Context) visitOptional(o *queryir.Optional) (Forest, error) {
	res, err := c.visit(o.Element)
	if err != nil {
		return nil, err
	}
	return append(Forest{{}}, res...), nil
}

// visitFilter returns an uncached template. The enclosing group chains it
// onto each of its alternatives.
func (c *Context) visitFilter(f *queryir.Filter) (Forest, error) {
	if f.Expr == nil {
		return nil, newError(ErrEmptyAlternative, "filter", "FILTER without an expression")
	}
	return single(&PlanNode{
		Kind:   topology.KindFilter,
		Source: f,
		expr:   f.Expr,
	}), nil
}

// chainPredicate creates the node that applies tmpl's expression to the rows
// of pred. Variables are spelled by binding index in the signature, so the
// same constraint over the same predecessor is shared.
func (c *Context) chainPredicate(pred, tmpl *PlanNode) (*PlanNode, error) {
	byIndex := sparql.RenderExprFunc(tmpl.expr, func(name string) string {
		return "?" + strconv.Itoa(c.bindings.Index(name))
	})
	canonical, err := ir.PredicateSignature(pred.CanonicalName, byIndex)
	if err != nil {
		return nil, fmt.Errorf("predicate on %s: %w", pred.Name, err)
	}
	if n, ok := c.cache.get(canonical); ok {
		c.logger.Debug("predicate node reused", "node", n.Name)
		return n, nil
	}

	source := &queryir.Group{Elements: []queryir.Element{pred.Source, tmpl.Source}}
	text := sparql.Render(source)
	n := &PlanNode{
		CanonicalName: canonical,
		Name:          c.counters.Predicate(),
		Kind:          topology.KindFilter,
		Logic: &topology.PredicateLogic{
			Origin: topology.Origin{Canonical: canonical, QueryText: text},
			Expr:   sparql.RenderExpr(tmpl.expr),
			Vars:   pred.BoundVars,
		},
		BoundVars:   pred.BoundVars,
		Source:      source,
		QueryText:   text,
		Inputs:      []Input{{From: pred.CanonicalName, Grouping: ir.Shuffle()}},
		Parallelism: c.opts.Parallelism,
	}
	c.cache.put(n)
	return n, nil
}

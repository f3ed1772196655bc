package compiler

import (
	"fmt"
	"sort"

	"github.com/roach88/reteflow/internal/ir"
	"github.com/roach88/reteflow/internal/queryir"
	"github.com/roach88/reteflow/internal/sparql"
	"github.com/roach88/reteflow/internal/topology"
)

// Plan is a finished compilation: the top-level terminal and every node it
// depends on, in creation order.
type Plan struct {
	Query    *queryir.Query
	Terminal *PlanNode
	Nodes    []*PlanNode
	Warnings []topology.Warning

	ctx *Context
}

// Compile compiles q into a plan. Nothing is emitted until Emit.
func Compile(q *queryir.Query, opts ...Option) (*Plan, error) {
	ctx := NewContext(q, opts...)
	forest, err := ctx.Compile()
	if err != nil {
		return nil, err
	}
	terminal, err := ctx.FinishQuery(forest)
	if err != nil {
		return nil, err
	}

	nodes, err := ctx.reachable(terminal)
	if err != nil {
		return nil, err
	}
	return &Plan{
		Query:    q,
		Terminal: terminal,
		Nodes:    nodes,
		Warnings: ctx.Warnings(),
		ctx:      ctx,
	}, nil
}

// reachable returns the nodes terminal depends on, itself included, sorted
// by creation order. An input missing from the cache is fatal.
func (c *Context) reachable(terminal *PlanNode) ([]*PlanNode, error) {
	seen := map[string]*PlanNode{terminal.CanonicalName: terminal}
	stack := []*PlanNode{terminal}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, in := range n.Inputs {
			if _, ok := seen[in.From]; ok {
				continue
			}
			dep, ok := c.cache.get(in.From)
			if !ok {
				return nil, newError(ErrMissingDependency, n.Name, "input %s was never registered", short(in.From))
			}
			seen[in.From] = dep
			stack = append(stack, dep)
		}
	}

	nodes := make([]*PlanNode, 0, len(seen))
	for _, n := range seen {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].seq < nodes[j].seq })
	return nodes, nil
}

func short(canonical string) string {
	if len(canonical) > 12 {
		return canonical[:12]
	}
	return canonical
}

// Emit registers the spout and every plan node with b, then declares all
// edges. Pattern filters read from the spout unless they are static.
func (p *Plan) Emit(b topology.Builder) error {
	if err := b.Register(topology.SpoutName, &topology.SpoutLogic{}, 1); err != nil {
		return fmt.Errorf("emit spout: %w", err)
	}
	for _, n := range p.Nodes {
		if err := b.Register(n.Name, n.Logic, n.Parallelism); err != nil {
			return fmt.Errorf("emit %s: %w", n.Name, err)
		}
	}

	for _, n := range p.Nodes {
		if f, ok := n.Logic.(*topology.FilterLogic); ok && !f.Static {
			if err := b.DeclareEdge(topology.SpoutName, n.Name, ir.Shuffle()); err != nil {
				return fmt.Errorf("emit %s: %w", n.Name, err)
			}
		}
		for _, in := range n.Inputs {
			dep, ok := p.ctx.cache.get(in.From)
			if !ok {
				return newError(ErrMissingDependency, n.Name, "input %s was never registered", short(in.From))
			}
			if err := b.DeclareEdge(dep.Name, n.Name, in.Grouping); err != nil {
				return fmt.Errorf("emit %s: %w", n.Name, err)
			}
		}
	}
	return nil
}

// Build compiles q, emits it into a topology.Recorder and validates the
// resulting descriptor.
func Build(q *queryir.Query, opts ...Option) (*topology.Descriptor, error) {
	plan, err := Compile(q, opts...)
	if err != nil {
		return nil, err
	}

	rec := topology.NewRecorder()
	if err := plan.Emit(rec); err != nil {
		return nil, err
	}

	desc := rec.Descriptor()
	desc.ID = plan.ctx.opts.IDs.Generate()
	desc.Query = sparql.RenderQuery(q)
	desc.Output = plan.Terminal.Name
	desc.Warnings = plan.Warnings
	if err := topology.Check(desc); err != nil {
		return nil, fmt.Errorf("compiled topology is invalid: %w", err)
	}
	return desc, nil
}

// BuildText parses SPARQL text and builds its topology.
func BuildText(text string, opts ...Option) (*topology.Descriptor, error) {
	q, err := sparql.Parse(text)
	if err != nil {
		return nil, &CompileError{Code: ErrQuerySyntax, Field: "query", Message: err.Error(), Err: err}
	}
	return Build(q, opts...)
}

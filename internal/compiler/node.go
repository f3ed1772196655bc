package compiler

import (
	"github.com/roach88/reteflow/internal/ir"
	"github.com/roach88/reteflow/internal/queryir"
	"github.com/roach88/reteflow/internal/topology"
)

// Input is an incoming edge of a plan node. From is the canonical name of
// the upstream node, resolved through the cache when the plan is emitted.
type Input struct {
	From     string
	Grouping ir.Grouping
}

// PlanNode is one memoized node of the plan.
//
// CanonicalName identifies the node by structure: constants and binding
// indices, never variable spellings. Two visits that produce the same
// structure get the same *PlanNode back from the cache. Nodes are never
// mutated after they are cached; chaining a filter creates a new node.
type PlanNode struct {
	CanonicalName string
	Name          string
	Kind          topology.Kind
	Logic         topology.Logic
	BoundVars     []string
	Source        queryir.Element
	QueryText     string
	Inputs        []Input
	Parallelism   int

	// expr is set only on FILTER templates returned by visit. Templates are
	// never cached or emitted; chaining turns them into predicate nodes.
	expr queryir.Expression
	seq  int
}

// IsTemplate reports whether the node is an uncached FILTER template.
func (n *PlanNode) IsTemplate() bool {
	return n.expr != nil
}

// Forest is a candidate plan forest. The outer slice enumerates mutually
// exclusive alternative plans; the inner slice holds the nodes of one
// alternative that still await joining.
type Forest [][]*PlanNode

// single wraps one node as a one-alternative forest.
func single(n *PlanNode) Forest {
	return Forest{{n}}
}

// cross pairs every alternative of a with every alternative of b,
// concatenating a's nodes before b's.
func cross(a, b Forest) Forest {
	out := make(Forest, 0, len(a)*len(b))
	for _, x := range a {
		for _, y := range b {
			alt := make([]*PlanNode, 0, len(x)+len(y))
			alt = append(alt, x...)
			alt = append(alt, y...)
			out = append(out, alt)
		}
	}
	return out
}

// sharesVar reports whether two nodes bind at least one common variable.
func sharesVar(a, b *PlanNode) bool {
	for _, v := range a.BoundVars {
		for _, w := range b.BoundVars {
			if v == w {
				return true
			}
		}
	}
	return false
}

// dedupe drops repeated nodes, keeping first occurrences.
func dedupe(alt []*PlanNode) []*PlanNode {
	seen := make(map[string]bool, len(alt))
	out := make([]*PlanNode, 0, len(alt))
	for _, n := range alt {
		if seen[n.CanonicalName] {
			continue
		}
		seen[n.CanonicalName] = true
		out = append(out, n)
	}
	return out
}

// cache is the memoization table shared by a compilation and all of its
// subqueries. order preserves creation order for deterministic emission.
type cache struct {
	nodes map[string]*PlanNode
	order []*PlanNode
}

func newCache() *cache {
	return &cache{nodes: make(map[string]*PlanNode)}
}

func (c *cache) get(canonical string) (*PlanNode, bool) {
	n, ok := c.nodes[canonical]
	return n, ok
}

func (c *cache) put(n *PlanNode) {
	n.seq = len(c.order)
	c.nodes[n.CanonicalName] = n
	c.order = append(c.order, n)
}

func (c *cache) len() int {
	return len(c.order)
}

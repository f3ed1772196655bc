package topology

import (
	"fmt"

	"github.com/roach88/reteflow/internal/ir"
)

// SpoutName is the name of the single fact source in every descriptor.
const SpoutName = "spout"

// Node is one registered topology node. Exactly one of the logic fields
// is set, matching Kind.
type Node struct {
	Name        string `json:"name" msgpack:"name"`
	Kind        Kind   `json:"kind" msgpack:"kind"`
	Parallelism int    `json:"parallelism" msgpack:"parallelism"`

	Spout     *SpoutLogic     `json:"spout,omitempty" msgpack:"spout,omitempty"`
	Filter    *FilterLogic    `json:"filter,omitempty" msgpack:"filter,omitempty"`
	Predicate *PredicateLogic `json:"predicate,omitempty" msgpack:"predicate,omitempty"`
	Join      *JoinLogic      `json:"join,omitempty" msgpack:"join,omitempty"`
	Terminal  *TerminalLogic  `json:"terminal,omitempty" msgpack:"terminal,omitempty"`
}

// Logic returns whichever logic the node carries, or nil.
func (n *Node) Logic() Logic {
	switch {
	case n.Spout != nil:
		return n.Spout
	case n.Filter != nil:
		return n.Filter
	case n.Predicate != nil:
		return n.Predicate
	case n.Join != nil:
		return n.Join
	case n.Terminal != nil:
		return n.Terminal
	default:
		return nil
	}
}

// Schema returns the node's output row layout.
func (n *Node) Schema() []string {
	if l := n.Logic(); l != nil {
		return l.Schema()
	}
	return nil
}

// Edge is a directed stream between two nodes with the partitioning
// strategy applied to rows crossing it. Parallelism is the declared
// parallelism of the downstream node.
type Edge struct {
	From        string      `json:"from" msgpack:"from"`
	To          string      `json:"to" msgpack:"to"`
	Grouping    ir.Grouping `json:"grouping" msgpack:"grouping"`
	Parallelism int         `json:"parallelism" msgpack:"parallelism"`
}

// Warning is a non-fatal finding attached to a compiled topology.
type Warning struct {
	Code    string `json:"code" msgpack:"code"`
	Message string `json:"message" msgpack:"message"`
}

// Descriptor is a compiled topology: named nodes, the edges between them
// and the grouping chosen for each edge.
//
// Nodes and Edges are kept in registration order, which the compiler makes
// deterministic for a given query.
type Descriptor struct {
	ID       string    `json:"id" msgpack:"id"`
	Name     string    `json:"name,omitempty" msgpack:"name,omitempty"`
	Query    string    `json:"query" msgpack:"query"`
	Output   string    `json:"output" msgpack:"output"`
	Nodes    []Node    `json:"nodes" msgpack:"nodes"`
	Edges    []Edge    `json:"edges" msgpack:"edges"`
	Warnings []Warning `json:"warnings,omitempty" msgpack:"warnings,omitempty"`
}

// Node returns the node with the given name.
func (d *Descriptor) Node(name string) (*Node, bool) {
	for i := range d.Nodes {
		if d.Nodes[i].Name == name {
			return &d.Nodes[i], true
		}
	}
	return nil, false
}

// MustNode is like Node but panics when the node is missing.
// Use only in tests.
func (d *Descriptor) MustNode(name string) *Node {
	n, ok := d.Node(name)
	if !ok {
		panic(fmt.Sprintf("topology: no node %q", name))
	}
	return n
}

// OutputNode returns the top-level terminal.
func (d *Descriptor) OutputNode() (*Node, bool) {
	return d.Node(d.Output)
}

// Inputs returns the edges that end at name, in declaration order.
func (d *Descriptor) Inputs(name string) []Edge {
	var out []Edge
	for _, e := range d.Edges {
		if e.To == name {
			out = append(out, e)
		}
	}
	return out
}

// Outputs returns the edges that start at name, in declaration order.
func (d *Descriptor) Outputs(name string) []Edge {
	var out []Edge
	for _, e := range d.Edges {
		if e.From == name {
			out = append(out, e)
		}
	}
	return out
}

// NodesOfKind returns the nodes tagged k, in registration order.
func (d *Descriptor) NodesOfKind(k Kind) []*Node {
	var out []*Node
	for i := range d.Nodes {
		if d.Nodes[i].Kind == k {
			out = append(out, &d.Nodes[i])
		}
	}
	return out
}

// Count returns the number of nodes tagged k.
func (d *Descriptor) Count(k Kind) int {
	return len(d.NodesOfKind(k))
}

// Predicates returns the filter nodes that evaluate expressions rather than
// triple patterns.
func (d *Descriptor) Predicates() []*Node {
	var out []*Node
	for _, n := range d.NodesOfKind(KindFilter) {
		if n.Predicate != nil {
			out = append(out, n)
		}
	}
	return out
}

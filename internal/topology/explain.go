package topology

import (
	"fmt"
	"strings"

	"github.com/roach88/reteflow/internal/queryir"
)

// Explain renders the topology as a tree rooted at each sink node, e.g.
//
//	terminal0[s,z] [terminal p=4] SELECT ?s ?z
//	├── join0 [join p=4] ON ?o <- shuffle
//	│   ├── filter0 [filter p=4] ?s <http://ex/p1> ?o <- fields[o@1]
//	│   └── filter1 [filter p=4] ?o <http://ex/p2> ?z <- fields[o@0]
//	└── filter2 [filter p=4] ?s <http://ex/p3> ?z <- shuffle
//
// Children are listed in edge declaration order and the spout is omitted.
// A node shared by several consumers is printed under each of them. The
// output contains no hashes, so it is stable across releases of the
// signature scheme.
func Explain(d *Descriptor) string {
	var sb strings.Builder
	for _, root := range sinks(d) {
		writeNode(&sb, d, root, nil, "", true, true)
	}
	for _, w := range d.Warnings {
		fmt.Fprintf(&sb, "warning %s: %s\n", w.Code, w.Message)
	}
	return sb.String()
}

// sinks returns non-spout nodes with no outgoing edges, output first.
func sinks(d *Descriptor) []*Node {
	var out []*Node
	if n, ok := d.OutputNode(); ok {
		out = append(out, n)
	}
	for i := range d.Nodes {
		n := &d.Nodes[i]
		if n.Kind == KindSpout || n.Name == d.Output || len(d.Outputs(n.Name)) > 0 {
			continue
		}
		out = append(out, n)
	}
	return out
}

func writeNode(sb *strings.Builder, d *Descriptor, n *Node, via *Edge, prefix string, isLast, root bool) {
	if !root {
		sb.WriteString(prefix)
		if isLast {
			sb.WriteString("└── ")
		} else {
			sb.WriteString("├── ")
		}
	}

	sb.WriteString(n.Name)
	sb.WriteString(" [")
	sb.WriteString(string(n.Kind))
	fmt.Fprintf(sb, " p=%d", n.Parallelism)
	if n.Filter != nil && n.Filter.Static {
		sb.WriteString(" static")
	}
	if n.Terminal != nil && n.Terminal.SubSelect {
		sb.WriteString(" subselect")
	}
	sb.WriteString("]")
	if detail := describe(n); detail != "" {
		sb.WriteString(" ")
		sb.WriteString(detail)
	}
	if via != nil {
		sb.WriteString(" <- ")
		sb.WriteString(via.Grouping.String())
	}
	sb.WriteString("\n")

	childPrefix := prefix
	if !root {
		if isLast {
			childPrefix += "    "
		} else {
			childPrefix += "│   "
		}
	}

	var children []Edge
	for _, e := range d.Inputs(n.Name) {
		if e.From != SpoutName {
			children = append(children, e)
		}
	}
	for i := range children {
		child, ok := d.Node(children[i].From)
		if !ok {
			continue
		}
		writeNode(sb, d, child, &children[i], childPrefix, i == len(children)-1, false)
	}
}

func describe(n *Node) string {
	switch {
	case n.Filter != nil:
		return n.Filter.Pattern.String()
	case n.Predicate != nil:
		return "FILTER " + n.Predicate.Expr
	case n.Join != nil:
		if n.Join.Cartesian {
			return "CARTESIAN"
		}
		return "ON " + joinVars(n.Join.Shared)
	case n.Terminal != nil:
		return describeTerminal(n.Terminal)
	default:
		return ""
	}
}

func describeTerminal(t *TerminalLogic) string {
	var b strings.Builder
	b.WriteString("SELECT ")
	if t.Distinct {
		b.WriteString("DISTINCT ")
	}
	items := make([]string, 0, len(t.Vars))
	if len(t.Projection) == 0 {
		for _, v := range t.Vars {
			items = append(items, "?"+v)
		}
	}
	for _, p := range t.Projection {
		items = append(items, describeProjection(p))
	}
	b.WriteString(strings.Join(items, " "))
	if len(t.GroupBy) > 0 {
		b.WriteString(" GROUP BY " + joinVars(t.GroupBy))
	}
	if t.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", t.Limit)
	}
	return b.String()
}

func describeProjection(p queryir.Projection) string {
	if p.Aggregate == nil {
		return "?" + p.Var
	}
	arg := "*"
	if p.Aggregate.Arg != "" {
		arg = "?" + p.Aggregate.Arg
	}
	if p.Aggregate.Distinct {
		arg = "DISTINCT " + arg
	}
	return fmt.Sprintf("(%s(%s) AS ?%s)", p.Aggregate.Func, arg, p.Var)
}

func joinVars(vars []string) string {
	parts := make([]string, len(vars))
	for i, v := range vars {
		parts[i] = "?" + v
	}
	return strings.Join(parts, " ")
}

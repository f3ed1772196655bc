package topology

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/reteflow/internal/ir"
)

// Validation error codes (V001-V099)
const (
	ErrUnknownNode      = "V001" // edge references a node that does not exist
	ErrCycle            = "V002" // topology contains a cycle
	ErrBadGrouping      = "V003" // grouping does not fit the upstream schema
	ErrGlobalFanOut     = "V004" // global grouping into a parallel node
	ErrBadParallelism   = "V005" // parallelism below 1
	ErrMissingOutput    = "V006" // descriptor output is not a terminal
	ErrDuplicateNode    = "V007" // two nodes share a name
	ErrMissingLogic     = "V008" // node carries no logic or the wrong kind
	ErrJoinArity        = "V009" // join does not have exactly its two inputs
	ErrUnreachableInput = "V010" // non-spout node with no inputs
)

// ValidationError is one structural problem in a descriptor.
type ValidationError struct {
	Code    string `json:"code"`
	Node    string `json:"node,omitempty"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Node != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Node, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// ValidationErrors collects every problem found by Check.
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// Check validates d and returns ValidationErrors when anything is wrong.
func Check(d *Descriptor) error {
	if errs := Validate(d); len(errs) > 0 {
		return ValidationErrors(errs)
	}
	return nil
}

// Validate checks that d is a well-formed dataflow DAG.
// Returns all errors found (does not fail-fast).
func Validate(d *Descriptor) []ValidationError {
	var errs []ValidationError
	nodes := make(map[string]*Node, len(d.Nodes))

	for i := range d.Nodes {
		n := &d.Nodes[i]
		if _, dup := nodes[n.Name]; dup {
			errs = append(errs, ValidationError{Code: ErrDuplicateNode, Node: n.Name, Message: "duplicate node name"})
			continue
		}
		nodes[n.Name] = n

		if n.Parallelism < 1 {
			errs = append(errs, ValidationError{
				Code:    ErrBadParallelism,
				Node:    n.Name,
				Message: fmt.Sprintf("parallelism must be >= 1, got %d", n.Parallelism),
			})
		}
		if l := n.Logic(); l == nil || l.Kind() != n.Kind {
			errs = append(errs, ValidationError{
				Code:    ErrMissingLogic,
				Node:    n.Name,
				Message: fmt.Sprintf("node of kind %s has no matching logic", n.Kind),
			})
		}
	}

	inputs := make(map[string][]Edge)
	for _, e := range d.Edges {
		from, okFrom := nodes[e.From]
		to, okTo := nodes[e.To]
		if !okFrom || !okTo {
			errs = append(errs, ValidationError{
				Code:    ErrUnknownNode,
				Message: fmt.Sprintf("edge %s -> %s references an unknown node", e.From, e.To),
			})
			continue
		}
		inputs[e.To] = append(inputs[e.To], e)

		if err := e.Grouping.Validate(from.Schema()); err != nil {
			errs = append(errs, ValidationError{
				Code:    ErrBadGrouping,
				Node:    e.To,
				Message: fmt.Sprintf("edge from %s: %v", e.From, err),
			})
		}
		if e.Grouping.Kind == ir.GroupingGlobal && to.Parallelism != 1 {
			errs = append(errs, ValidationError{
				Code:    ErrGlobalFanOut,
				Node:    e.To,
				Message: fmt.Sprintf("global grouping from %s requires parallelism 1, got %d", e.From, to.Parallelism),
			})
		}
	}

	for i := range d.Nodes {
		n := &d.Nodes[i]
		switch {
		case n.Kind == KindSpout:
		case n.Filter != nil && n.Filter.Static:
		case len(inputs[n.Name]) == 0:
			errs = append(errs, ValidationError{Code: ErrUnreachableInput, Node: n.Name, Message: "node has no inputs"})
		case n.Join != nil:
			if !joinInputsMatch(n.Join, inputs[n.Name]) {
				errs = append(errs, ValidationError{
					Code:    ErrJoinArity,
					Node:    n.Name,
					Message: fmt.Sprintf("join expects inputs %s and %s", n.Join.Left, n.Join.Right),
				})
			}
		}
	}

	if out, ok := nodes[d.Output]; !ok || out.Kind != KindTerminal {
		errs = append(errs, ValidationError{
			Code:    ErrMissingOutput,
			Message: fmt.Sprintf("output %q is not a terminal node", d.Output),
		})
	}

	for _, cycle := range FindCycles(d) {
		errs = append(errs, ValidationError{
			Code:    ErrCycle,
			Message: "cycle detected: " + strings.Join(cycle, " -> "),
		})
	}

	return errs
}

func joinInputsMatch(j *JoinLogic, in []Edge) bool {
	if len(in) != 2 {
		return false
	}
	froms := map[string]bool{in[0].From: true, in[1].From: true}
	return froms[j.Left] && froms[j.Right]
}

// graph maps node name to downstream node names.
type graph map[string][]string

// FindCycles returns every cycle in d as a path that starts and ends at the
// same node. A valid topology returns nil.
//
// Uses Tarjan's algorithm to find strongly connected components; an SCC
// with more than one node, or a node with a self-loop, is a cycle.
func FindCycles(d *Descriptor) [][]string {
	g := make(graph)
	for _, n := range d.Nodes {
		g[n.Name] = nil
	}
	for _, e := range d.Edges {
		g[e.From] = append(g[e.From], e.To)
	}

	var cycles [][]string
	for _, scc := range tarjanSCC(g) {
		if len(scc) > 1 || hasSelfLoop(scc[0], g) {
			cycles = append(cycles, cyclePath(scc, g))
		}
	}
	return cycles
}

func hasSelfLoop(node string, g graph) bool {
	for _, next := range g[node] {
		if next == node {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
// Nodes are visited in sorted order so results are deterministic.
func tarjanSCC(g graph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range g[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sort.Strings(scc)
			sccs = append(sccs, scc)
		}
	}

	names := make([]string, 0, len(g))
	for name := range g {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, visited := indices[name]; !visited {
			strongConnect(name)
		}
	}
	return sccs
}

// cyclePath walks edges inside scc from its first member back to itself.
func cyclePath(scc []string, g graph) []string {
	members := make(map[string]bool, len(scc))
	for _, n := range scc {
		members[n] = true
	}

	start := scc[0]
	path := []string{start}
	visited := map[string]bool{}
	current := start
	for {
		visited[current] = true
		next := ""
		for _, w := range g[current] {
			if members[w] && (!visited[w] || w == start) {
				next = w
				break
			}
		}
		if next == "" {
			return path
		}
		path = append(path, next)
		if next == start {
			return path
		}
		current = next
	}
}

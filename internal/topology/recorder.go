package topology

import (
	"fmt"

	"github.com/roach88/reteflow/internal/ir"
)

// Builder receives a compiled plan. The compiler registers every node
// before declaring the edges that reference it.
type Builder interface {
	Register(name string, logic Logic, parallelism int) error
	DeclareEdge(from, to string, g ir.Grouping) error
}

// Recorder is a Builder that records registrations into a Descriptor.
//
// Thread-safety: Recorder is not safe for concurrent use. Compilation is
// single-threaded.
type Recorder struct {
	nodes []Node
	index map[string]int
	edges []Edge
	seen  map[[2]string]bool
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		index: make(map[string]int),
		seen:  make(map[[2]string]bool),
	}
}

// Register adds a node. Names must be unique and parallelism positive.
func (r *Recorder) Register(name string, logic Logic, parallelism int) error {
	if name == "" {
		return fmt.Errorf("register: empty node name")
	}
	if logic == nil {
		return fmt.Errorf("register %s: nil logic", name)
	}
	if parallelism < 1 {
		return fmt.Errorf("register %s: parallelism must be >= 1, got %d", name, parallelism)
	}
	if _, dup := r.index[name]; dup {
		return fmt.Errorf("register %s: node already registered", name)
	}

	n := Node{Name: name, Kind: logic.Kind(), Parallelism: parallelism}
	switch l := logic.(type) {
	case *SpoutLogic:
		n.Spout = l
	case *FilterLogic:
		n.Filter = l
	case *PredicateLogic:
		n.Predicate = l
	case *JoinLogic:
		n.Join = l
	case *TerminalLogic:
		n.Terminal = l
	default:
		return fmt.Errorf("register %s: unknown logic type %T", name, logic)
	}

	r.index[name] = len(r.nodes)
	r.nodes = append(r.nodes, n)
	return nil
}

// DeclareEdge connects two registered nodes. Declaring the same edge twice
// is an error.
func (r *Recorder) DeclareEdge(from, to string, g ir.Grouping) error {
	fi, ok := r.index[from]
	if !ok {
		return fmt.Errorf("declare edge %s -> %s: unknown source node", from, to)
	}
	ti, ok := r.index[to]
	if !ok {
		return fmt.Errorf("declare edge %s -> %s: unknown target node", from, to)
	}
	if err := g.Validate(r.nodes[fi].Schema()); err != nil {
		return fmt.Errorf("declare edge %s -> %s: %w", from, to, err)
	}
	key := [2]string{from, to}
	if r.seen[key] {
		return fmt.Errorf("declare edge %s -> %s: edge already declared", from, to)
	}
	r.seen[key] = true
	r.edges = append(r.edges, Edge{
		From:        from,
		To:          to,
		Grouping:    g,
		Parallelism: r.nodes[ti].Parallelism,
	})
	return nil
}

// Descriptor returns the recorded topology. The caller fills in ID, Query
// and Output.
func (r *Recorder) Descriptor() *Descriptor {
	d := &Descriptor{
		Nodes: make([]Node, len(r.nodes)),
		Edges: make([]Edge, len(r.edges)),
	}
	copy(d.Nodes, r.nodes)
	copy(d.Edges, r.edges)
	return d
}

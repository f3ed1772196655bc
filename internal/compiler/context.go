package compiler

import (
	"log/slog"

	"github.com/roach88/reteflow/internal/ir"
	"github.com/roach88/reteflow/internal/queryir"
	"github.com/roach88/reteflow/internal/topology"
)

// Context is the state of one compilation.
//
// A top-level query gets a fresh Context; each subquery gets a Clone that
// shares the cache, counters, binding table and warnings by reference. A
// subquery therefore sees every node its parent already built and the
// parent sees every node the subquery builds, with no merge step.
//
// Thread-safety: Context is not safe for concurrent use. Nested contexts
// run sequentially inside their parent's visit.
type Context struct {
	cache    *cache
	counters *Counters
	bindings *ir.BindingTable
	warnings *[]topology.Warning
	opts     *Options
	logger   *slog.Logger

	query   *queryir.Query
	ordinal int
	depth   int
	state   SubqueryState
}

// NewContext creates the context for a top-level query.
func NewContext(q *queryir.Query, opts ...Option) *Context {
	o := newOptions(opts)
	counters := NewCounters()
	return &Context{
		cache:    newCache(),
		counters: counters,
		bindings: ir.NewBindingTable(),
		warnings: &[]topology.Warning{},
		opts:     o,
		logger:   o.Logger,
		query:    q,
		ordinal:  counters.Terminal(),
		state:    StateIdle,
	}
}

// Clone creates the context for a nested query. The clone shares every
// table with c and takes the next terminal ordinal.
func (c *Context) Clone(q *queryir.Query) *Context {
	child := &Context{
		cache:    c.cache,
		counters: c.counters,
		bindings: c.bindings,
		warnings: c.warnings,
		opts:     c.opts,
		logger:   c.logger,
		query:    q,
		ordinal:  c.counters.Terminal(),
		depth:    c.depth + 1,
		state:    StateIdle,
	}
	child.transition(StateContextCloned)
	return child
}

// Query returns the query this context compiles.
func (c *Context) Query() *queryir.Query {
	return c.query
}

// Ordinal returns the terminal ordinal of this context's query.
func (c *Context) Ordinal() int {
	return c.ordinal
}

// State returns the subquery lifecycle state.
func (c *Context) State() SubqueryState {
	return c.state
}

// Bindings returns the shared binding table.
func (c *Context) Bindings() *ir.BindingTable {
	return c.bindings
}

// Warnings returns the warnings raised so far by this compilation.
func (c *Context) Warnings() []topology.Warning {
	out := make([]topology.Warning, len(*c.warnings))
	copy(out, *c.warnings)
	return out
}

// Lookup returns the cached node with the given canonical name.
func (c *Context) Lookup(canonical string) (*PlanNode, bool) {
	return c.cache.get(canonical)
}

func (c *Context) warn(code, msg string) {
	for _, w := range *c.warnings {
		if w.Code == code && w.Message == msg {
			return
		}
	}
	*c.warnings = append(*c.warnings, topology.Warning{Code: code, Message: msg})
}

// indices maps variable names to their binding indices.
func (c *Context) indices(vars []string) []int {
	return c.bindings.Indices(vars)
}

package compiler

import (
	"fmt"

	"github.com/roach88/reteflow/internal/queryir"
)

// SubqueryState tracks a nested compilation.
//
//	Idle -> ContextCloned -> Compiling -> Finished
type SubqueryState int

const (
	StateIdle SubqueryState = iota
	StateContextCloned
	StateCompiling
	StateFinished
)

func (s SubqueryState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateContextCloned:
		return "context-cloned"
	case StateCompiling:
		return "compiling"
	case StateFinished:
		return "finished"
	default:
		return fmt.Sprintf("SubqueryState(%d)", int(s))
	}
}

func (c *Context) transition(to SubqueryState) {
	c.logger.Debug("subquery state",
		"ordinal", c.ordinal,
		"depth", c.depth,
		"from", c.state.String(),
		"to", to.String(),
	)
	c.state = to
}

// visitSubQuery compiles a nested query in a cloned context and returns its
// terminal as a single-node alternative, to be joined like any other node.
func (c *Context) visitSubQuery(sub *queryir.SubQuery) (Forest, error) {
	if sub.Query == nil {
		return nil, newError(ErrNilQuery, "subquery", "nil query")
	}

	child := c.Clone(sub.Query)
	before := c.cache.len()

	forest, err := child.Compile()
	if err != nil {
		return nil, fmt.Errorf("subquery %d: %w", child.ordinal, err)
	}
	terminal, err := child.FinishQuery(forest)
	if err != nil {
		return nil, fmt.Errorf("subquery %d: %w", child.ordinal, err)
	}

	c.logger.Debug("subquery compiled",
		"terminal", terminal.Name,
		"new_nodes", c.cache.len()-before,
	)
	return single(terminal), nil
}

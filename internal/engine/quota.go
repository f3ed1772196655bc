package engine

import "sync/atomic"

// DefaultMaxRows is the default maximum number of rows a run may produce
// across all nodes. It stops a cartesian join over a large stream from
// exhausting memory.
const DefaultMaxRows = 1_000_000

// RowBudget counts rows emitted by every node instance of a run and fails
// once the count passes the limit.
//
// Thread-safety: RowBudget is safe for concurrent use (atomic operations).
type RowBudget struct {
	max     int64
	current atomic.Int64
}

// NewRowBudget creates a budget with the given limit. A limit below 1
// disables the check.
func NewRowBudget(maxRows int64) *RowBudget {
	return &RowBudget{max: maxRows}
}

// Spend records one emitted row for node.
//
// Returns a ROW_BUDGET_EXCEEDED RuntimeError once the limit is passed.
func (b *RowBudget) Spend(node string) error {
	n := b.current.Add(1)
	if b.max > 0 && n > b.max {
		return NewRowBudgetError(node, n, b.max)
	}
	return nil
}

// Current returns the number of rows spent so far.
func (b *RowBudget) Current() int64 {
	return b.current.Load()
}

// Max returns the limit.
func (b *RowBudget) Max() int64 {
	return b.max
}

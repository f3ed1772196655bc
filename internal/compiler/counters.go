package compiler

import (
	"fmt"
	"sync/atomic"
)

// Counters hands out monotonic runtime names per node kind.
//
// A compilation and all of its subquery contexts share one *Counters, so
// names never collide across nesting levels.
//
// Thread-safety: Counters is safe for concurrent use (atomic operations),
// though compilation itself is single-threaded.
type Counters struct {
	filters    atomic.Int64
	predicates atomic.Int64
	joins      atomic.Int64
	terminals  atomic.Int64
}

// NewCounters creates counters starting at 0.
func NewCounters() *Counters {
	return &Counters{}
}

func next(c *atomic.Int64) int64 {
	return c.Add(1) - 1
}

// Filter returns the next filter name: filter0, filter1, ...
func (c *Counters) Filter() string {
	return fmt.Sprintf("filter%d", next(&c.filters))
}

// Predicate returns the next predicate name.
func (c *Counters) Predicate() string {
	return fmt.Sprintf("predicate%d", next(&c.predicates))
}

// Join returns the next join name.
func (c *Counters) Join() string {
	return fmt.Sprintf("join%d", next(&c.joins))
}

// Terminal returns the next terminal ordinal. The top-level query takes 0.
func (c *Counters) Terminal() int {
	return int(next(&c.terminals))
}

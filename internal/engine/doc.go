// Package engine runs compiled topologies over finite fact streams.
//
// ARCHITECTURE:
//
// Instances and Inboxes:
// Each node of the descriptor runs as Parallelism instances, one goroutine
// each, supervised by an errgroup. An instance owns its operator state
// (join memories, aggregate groups) and reads from a private unbounded
// inbox. Nothing else is shared between instances except the row budget,
// the per-node counters and the result collector.
//
// Routing:
// A row leaving a node travels every outgoing edge and lands on one
// instance of the target, chosen by the edge grouping:
//   - shuffle: round robin per sending instance
//   - fields: xxhash of the grouped values, modulo the target parallelism
//   - global: instance 0
//
// End of Stream:
// When an instance has drained its input it sends an end-of-stream marker
// to every instance of every downstream node. A node instance finishes
// after it has seen one marker from each upstream instance. Aggregating
// terminals emit their groups at that point; static filters load their
// reference facts at that point, as they have no inputs.
//
// Results:
// The output node's rows are collected, DISTINCT and LIMIT are applied,
// and rows are sorted by their rendered values so the same facts always
// produce the same Result whatever the parallelism.
//
// Failures:
// The first instance error cancels the run. Runtime errors are
// *RuntimeError values with a stable code (ROW_BUDGET_EXCEEDED,
// MISSING_REFERENCE_DATA, ...).
package engine

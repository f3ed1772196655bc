// Package topology describes a compiled spout/bolt dataflow: named nodes
// tagged spout, filter, join or terminal, each with its runtime logic and
// parallelism, and the directed edges between them with the grouping
// (shuffle, fields or global) that partitions rows across downstream
// instances.
//
// The compiler emits into a Builder. Recorder is the in-process Builder
// that produces a Descriptor, which can be validated, explained, stored
// in the catalog, or executed by the local engine.
package topology

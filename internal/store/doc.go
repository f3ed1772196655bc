// Package store provides the SQLite-backed topology catalog.
//
// The catalog holds:
//   - Topologies: compiled descriptors, msgpack-encoded, numbered by seq
//   - Nodes and Edges: the descriptor's graph, one row each, for listing
//     and inspection without decoding blobs
//   - Reference Triples: side-loaded facts served to static filters
//
// Writes are idempotent: a topology ID or a fact is stored once, and a
// repeated write is a no-op. Reads that list several rows order them by
// seq (or declaration position) so output is stable.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store

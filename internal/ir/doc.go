// Package ir provides the foundational types shared by the query compiler,
// the topology descriptor and the local runtime.
//
// This package imports nothing internal. Every other internal package may
// import ir; ir never imports them back.
//
// Contents:
//   - Term and Triple: RDF-style constants, variables and triple patterns
//   - BindingTable and FactPattern: variable names resolved to global indices
//   - Grouping: per-edge partitioning strategies (shuffle, fields, global)
//   - IRValue and MarshalCanonical: the canonical JSON used for content-addressed
//     node signatures (see hash.go)
//
// Key design constraints:
//   - NO float types in canonical values; numbers are int64
//   - The same variable name resolves to the same index for the lifetime of a
//     BindingTable, including nested subqueries that share it
//   - All JSON tags use snake_case
package ir

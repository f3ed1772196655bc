// Package compiler turns a query AST into a spout/bolt topology.
//
// Compilation walks the WHERE pattern and builds a plan forest: a list of
// mutually exclusive alternatives (from UNION and OPTIONAL), each a list of
// nodes still to be joined. Every node is memoized by a canonical name
// derived from constants and binding indices, so repeated sub-patterns
// collapse into one node. Groups join their alternatives greedily on shared
// variables; FinishQuery then connects every alternative to one terminal
// and picks the grouping on each incoming edge from the query's aggregation
// shape. Subqueries compile in a cloned Context that shares the cache.
//
// Build runs the whole pipeline and returns a validated
// *topology.Descriptor:
//
//	q, _ := sparql.Parse(text)
//	desc, err := compiler.Build(q, compiler.WithParallelism(8))
package compiler

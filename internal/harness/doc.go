// Package harness provides a conformance testing framework for compiled
// topologies.
//
// A scenario is a YAML file naming a query, the facts to stream through
// it and the expected outcome:
//
//	name: union
//	description: UNION of a chain join and a single pattern
//	query: |
//	  PREFIX ex: <http://ex/>
//	  SELECT ?s ?z WHERE { { ?s ex:p1 ?o . ?o ex:p2 ?z } UNION { ?s ex:p3 ?z } }
//	facts: |
//	  PREFIX ex: <http://ex/>
//	  ex:a ex:p1 ex:b . ex:b ex:p2 ex:c .
//	expect:
//	  filters: 3
//	  joins: 1
//	  terminal_grouping: shuffle
//	  rows: [["<http://ex/a>", "<http://ex/c>"]]
//
// Run compiles the query, stores the descriptor in a fresh in-memory
// catalog and executes the copy read back from it on the local runtime,
// so every scenario also exercises the catalog encoding. Reference facts
// are loaded into the same catalog and served to static filters.
//
// Checks cover topology shape (node counts, terminal grouping and
// parallelism, warnings), the result multiset and expected failures.
// RunWithGolden additionally pins the explain tree and sorted rows in
// testdata/golden via goldie.
package harness

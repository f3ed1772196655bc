// Package queryir provides the query AST consumed by the topology compiler.
//
// The AST is a tagged union: Element and Expression are sealed interfaces
// using the marker method pattern, so only types in this package implement
// them. Consumers dispatch with a single exhaustive type switch:
//
//	switch e := el.(type) {
//	case *Group:
//	case *PathBlock:
//	case *Union:
//	case *Optional:
//	case *Filter:
//	case *SubQuery:
//	default:
//	    // reject: unknown element kind
//	}
//
// ARCHITECTURE:
//
//	[SPARQL text] → sparql.Parse → [Query AST] → compiler → [topology.Descriptor]
//
// The AST can also be built directly in code; the parser is one producer
// among others.
//
// Triple patterns inside a PathBlock are ir.Triple values whose variable
// slots are ir.Var terms. Variables are not resolved to indices here; the
// compiler does that against its binding table.
package queryir

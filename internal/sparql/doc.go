// Package sparql parses and renders the SELECT subset of SPARQL that the
// topology compiler understands.
//
// Supported: PREFIX, SELECT [DISTINCT] with variables, '*' or aggregates
// (COUNT SUM MIN MAX AVG SAMPLE), basic graph patterns with ';' and ','
// abbreviations, nested groups, UNION, OPTIONAL, FILTER with comparisons,
// logical operators, BOUND and REGEX, nested sub-selects, GROUP BY and LIMIT.
//
// Not supported: ORDER BY, OFFSET, property paths, BIND, VALUES, named
// graphs, arithmetic.
//
// Render and RenderQuery produce text that Parse accepts, so a compiled
// plan node can carry the query text of the sub-pattern it evaluates.
package sparql

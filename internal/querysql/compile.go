// Package querysql compiles reference-data lookups to parameterized SQL
// against the catalog's reference_triples table.
package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/reteflow/internal/ir"
)

// Table is the catalog table holding reference triples.
const Table = "reference_triples"

// columns maps triple slots to reference_triples columns.
var columns = [3]string{"subject", "predicate", "object"}

// LookupCompiler compiles fact patterns to SELECT statements over
// reference triples.
//
// Every lookup selects the msgpack triple column, orders by insertion seq
// and passes constants as parameters, never inline.
type LookupCompiler struct {
	// Limit caps the rows returned; zero means no limit.
	Limit int
}

// NewLookupCompiler creates a LookupCompiler without a row limit.
func NewLookupCompiler() *LookupCompiler {
	return &LookupCompiler{}
}

// Compile converts the pattern of fp to parameterized SQL.
// Returns (sql, params, error).
//
// Constant slots become equality tests on their column. A variable used
// in two slots (?x <p> ?x) becomes a column equality, so the database
// drops facts that could never bind consistently.
func (c *LookupCompiler) Compile(fp ir.FactPattern) (string, []any, error) {
	where, params, err := compileWhere(fp.Pattern)
	if err != nil {
		return "", nil, err
	}

	sql := "SELECT triple FROM " + Table + where + " ORDER BY seq ASC"
	if c.Limit > 0 {
		sql += " LIMIT ?"
		params = append(params, c.Limit)
	}
	return sql, params, nil
}

// compileWhere returns the WHERE clause (with leading space, or empty when
// the pattern has no constraint) and its parameters.
func compileWhere(pattern ir.Triple) (string, []any, error) {
	var conds []string
	var params []any

	first := map[string]int{} // variable -> first slot using it
	for i, term := range pattern.Terms() {
		if term.IsVar() {
			if j, seen := first[term.Value]; seen {
				conds = append(conds, columns[j]+" = "+columns[i])
				continue
			}
			first[term.Value] = i
			continue
		}
		if !term.IsBound() {
			return "", nil, fmt.Errorf("compile lookup: %s slot is empty", columns[i])
		}
		conds = append(conds, columns[i]+" = ?")
		params = append(params, term.String())
	}

	if len(conds) == 0 {
		return "", nil, nil
	}
	return " WHERE " + strings.Join(conds, " AND "), params, nil
}

package sparql

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/reteflow/internal/ir"
	"github.com/roach88/reteflow/internal/queryir"
)

// RenderQuery renders a query back to SPARQL text with full IRIs.
// Output is deterministic and re-parses to an equivalent AST.
func RenderQuery(q *queryir.Query) string {
	var b strings.Builder
	b.WriteString("SELECT ")
	if q.Distinct {
		b.WriteString("DISTINCT ")
	}
	if q.IsSelectAll() {
		b.WriteString("*")
	} else {
		items := make([]string, len(q.Projection))
		for i, p := range q.Projection {
			items[i] = renderProjection(p)
		}
		b.WriteString(strings.Join(items, " "))
	}
	b.WriteString(" WHERE ")
	b.WriteString(renderAsGroup(q.Where))
	if len(q.GroupBy) > 0 {
		b.WriteString(" GROUP BY")
		for _, v := range q.GroupBy {
			b.WriteString(" ?" + v)
		}
	}
	if q.Limit > 0 {
		b.WriteString(" LIMIT " + strconv.Itoa(q.Limit))
	}
	return b.String()
}

func renderProjection(p queryir.Projection) string {
	if p.Aggregate == nil {
		return "?" + p.Var
	}
	arg := "*"
	if p.Aggregate.Arg != "" {
		arg = "?" + p.Aggregate.Arg
	}
	if p.Aggregate.Distinct {
		arg = "DISTINCT " + arg
	}
	return fmt.Sprintf("(%s(%s) AS ?%s)", p.Aggregate.Func, arg, p.Var)
}

// Render renders a single pattern element. Unknown element kinds render as
// a comment so the output stays printable; the compiler rejects them
// separately.
func Render(el queryir.Element) string {
	switch e := el.(type) {
	case *queryir.Group:
		if len(e.Elements) == 0 {
			return "{ }"
		}
		parts := make([]string, len(e.Elements))
		for i, child := range e.Elements {
			parts[i] = Render(child)
		}
		return "{ " + strings.Join(parts, " ") + " }"
	case *queryir.PathBlock:
		parts := make([]string, len(e.Triples))
		for i, t := range e.Triples {
			parts[i] = renderTerm(t.Subject) + " " + renderTerm(t.Predicate) + " " + renderTerm(t.Object) + " ."
		}
		return strings.Join(parts, " ")
	case *queryir.Union:
		parts := make([]string, len(e.Alternatives))
		for i, alt := range e.Alternatives {
			parts[i] = renderAsGroup(alt)
		}
		return strings.Join(parts, " UNION ")
	case *queryir.Optional:
		return "OPTIONAL " + renderAsGroup(e.Element)
	case *queryir.Filter:
		return "FILTER(" + RenderExpr(e.Expr) + ")"
	case *queryir.SubQuery:
		return "{ " + RenderQuery(e.Query) + " }"
	case nil:
		return "{ }"
	default:
		return fmt.Sprintf("# unknown element %T", el)
	}
}

// renderAsGroup wraps non-group elements in braces.
func renderAsGroup(el queryir.Element) string {
	switch el.(type) {
	case *queryir.Group, *queryir.SubQuery, nil:
		return Render(el)
	default:
		return "{ " + Render(el) + " }"
	}
}

// RenderExpr renders a filter expression.
func RenderExpr(expr queryir.Expression) string {
	return RenderExprFunc(expr, func(name string) string { return "?" + name })
}

// RenderExprFunc renders a filter expression using varName to spell each
// variable. The compiler uses it to produce spelling-independent text.
func RenderExprFunc(expr queryir.Expression, varName func(string) string) string {
	switch e := expr.(type) {
	case *queryir.VarRef:
		return varName(e.Name)
	case *queryir.Constant:
		return renderTerm(e.Term)
	case *queryir.Binary:
		return "(" + RenderExprFunc(e.Left, varName) + " " + string(e.Op) + " " + RenderExprFunc(e.Right, varName) + ")"
	case *queryir.Not:
		return "!" + RenderExprFunc(e.Expr, varName)
	case *queryir.Bound:
		return "BOUND(" + varName(e.Var) + ")"
	case *queryir.Regex:
		s := "REGEX(" + RenderExprFunc(e.Target, varName) + ", " + RenderExprFunc(e.Pattern, varName)
		if e.Flags != "" {
			s += ", " + strconv.Quote(e.Flags)
		}
		return s + ")"
	default:
		return fmt.Sprintf("# unknown expression %T", expr)
	}
}

// renderTerm prints numeric and boolean literals in their short form so the
// text round-trips through the lexer.
func renderTerm(t ir.Term) string {
	if t.Kind == ir.TermLiteral {
		switch t.Datatype {
		case ir.XSDInteger, ir.XSDDecimal, ir.XSDBoolean:
			return t.Value
		}
	}
	return t.String()
}

package engine

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/roach88/reteflow/internal/ir"
	"github.com/roach88/reteflow/internal/queryir"
	"github.com/roach88/reteflow/internal/sparql"
)

var (
	termTrue  = ir.TypedLiteral("true", ir.XSDBoolean)
	termFalse = ir.TypedLiteral("false", ir.XSDBoolean)
)

// evaluator evaluates one predicate expression against rows laid out by a
// fixed schema.
//
// Evaluation errors (unbound variables, type mismatches) make the whole
// expression false rather than failing the run, except where || or &&
// short-circuits around them.
type evaluator struct {
	expr    queryir.Expression
	index   map[string]int
	regexes map[string]*regexp.Regexp
}

// newEvaluator parses text and binds it to schema.
func newEvaluator(text string, schema []string) (*evaluator, error) {
	expr, err := sparql.ParseExpression(text)
	if err != nil {
		return nil, err
	}
	ev := &evaluator{
		expr:    expr,
		index:   make(map[string]int, len(schema)),
		regexes: make(map[string]*regexp.Regexp),
	}
	for i, v := range schema {
		ev.index[v] = i
	}
	return ev, nil
}

// Test reports whether row satisfies the expression.
func (ev *evaluator) Test(row Row) bool {
	t, ok := ev.eval(ev.expr, row)
	if !ok {
		return false
	}
	b, ok := effectiveBool(t)
	return ok && b
}

func (ev *evaluator) eval(expr queryir.Expression, row Row) (ir.Term, bool) {
	switch e := expr.(type) {
	case *queryir.VarRef:
		i, ok := ev.index[e.Name]
		if !ok || i >= len(row) || !row[i].IsBound() {
			return ir.Term{}, false
		}
		return row[i], true

	case *queryir.Constant:
		return e.Term, true

	case *queryir.Bound:
		i, ok := ev.index[e.Var]
		return boolTerm(ok && i < len(row) && row[i].IsBound()), true

	case *queryir.Not:
		t, ok := ev.eval(e.Expr, row)
		if !ok {
			return ir.Term{}, false
		}
		b, ok := effectiveBool(t)
		if !ok {
			return ir.Term{}, false
		}
		return boolTerm(!b), true

	case *queryir.Binary:
		switch e.Op {
		case queryir.OpOr, queryir.OpAnd:
			return ev.logical(e, row)
		default:
			l, lok := ev.eval(e.Left, row)
			r, rok := ev.eval(e.Right, row)
			if !lok || !rok {
				return ir.Term{}, false
			}
			return compare(e.Op, l, r)
		}

	case *queryir.Regex:
		return ev.regex(e, row)

	default:
		return ir.Term{}, false
	}
}

// logical implements || and && with SPARQL's error tolerance: an error on
// one side is absorbed when the other side decides the result.
func (ev *evaluator) logical(e *queryir.Binary, row Row) (ir.Term, bool) {
	lb, lok := ev.boolOf(e.Left, row)
	rb, rok := ev.boolOf(e.Right, row)

	if e.Op == queryir.OpOr {
		switch {
		case (lok && lb) || (rok && rb):
			return termTrue, true
		case lok && rok:
			return termFalse, true
		default:
			return ir.Term{}, false
		}
	}

	switch {
	case (lok && !lb) || (rok && !rb):
		return termFalse, true
	case lok && rok:
		return termTrue, true
	default:
		return ir.Term{}, false
	}
}

func (ev *evaluator) boolOf(expr queryir.Expression, row Row) (bool, bool) {
	t, ok := ev.eval(expr, row)
	if !ok {
		return false, false
	}
	return effectiveBool(t)
}

func (ev *evaluator) regex(e *queryir.Regex, row Row) (ir.Term, bool) {
	target, ok := ev.eval(e.Target, row)
	if !ok || target.Kind == ir.TermVar {
		return ir.Term{}, false
	}
	pattern, ok := ev.eval(e.Pattern, row)
	if !ok || pattern.Kind != ir.TermLiteral {
		return ir.Term{}, false
	}

	key := e.Flags + "/" + pattern.Value
	re, cached := ev.regexes[key]
	if !cached {
		src := pattern.Value
		if flags := regexFlags(e.Flags); flags != "" {
			src = "(?" + flags + ")" + src
		}
		compiled, err := regexp.Compile(src)
		if err != nil {
			return ir.Term{}, false
		}
		re = compiled
		ev.regexes[key] = re
	}
	return boolTerm(re.MatchString(target.Value)), true
}

// regexFlags keeps the flags RE2 understands (i, m, s).
func regexFlags(flags string) string {
	var b strings.Builder
	for _, f := range flags {
		switch f {
		case 'i', 'm', 's':
			b.WriteRune(f)
		}
	}
	return b.String()
}

// compare applies a relational operator. Numeric literals compare by value;
// other terms of the same kind compare by lexical form. Terms of different
// kinds are only equal-comparable.
func compare(op queryir.BinaryOp, l, r ir.Term) (ir.Term, bool) {
	var c int
	ln, lnum := l.Numeric()
	rn, rnum := r.Numeric()
	switch {
	case lnum && rnum:
		switch {
		case ln < rn:
			c = -1
		case ln > rn:
			c = 1
		}
	case l.Kind == r.Kind && !lnum && !rnum:
		c = strings.Compare(l.Value, r.Value)
		if c == 0 && (l.Lang != r.Lang || l.Datatype != r.Datatype) {
			if op != queryir.OpEq && op != queryir.OpNe {
				return ir.Term{}, false
			}
			c = strings.Compare(l.String(), r.String())
		}
	default:
		switch op {
		case queryir.OpEq:
			return termFalse, true
		case queryir.OpNe:
			return termTrue, true
		default:
			return ir.Term{}, false
		}
	}

	switch op {
	case queryir.OpEq:
		return boolTerm(c == 0), true
	case queryir.OpNe:
		return boolTerm(c != 0), true
	case queryir.OpLt:
		return boolTerm(c < 0), true
	case queryir.OpGt:
		return boolTerm(c > 0), true
	case queryir.OpLe:
		return boolTerm(c <= 0), true
	case queryir.OpGe:
		return boolTerm(c >= 0), true
	default:
		return ir.Term{}, false
	}
}

// effectiveBool computes the effective boolean value of a term.
func effectiveBool(t ir.Term) (bool, bool) {
	if t.Kind != ir.TermLiteral {
		return false, false
	}
	if t.Datatype == ir.XSDBoolean {
		switch t.Value {
		case "true", "1":
			return true, true
		case "false", "0":
			return false, true
		}
		return false, false
	}
	if t.Datatype != "" {
		if n, ok := t.Numeric(); ok {
			return n != 0, true
		}
		return false, false
	}
	return t.Value != "", true
}

func boolTerm(b bool) ir.Term {
	if b {
		return termTrue
	}
	return termFalse
}

// expressionError wraps a parse failure of a compiled predicate.
func expressionError(node, expr string, err error) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeBadExpression,
		Message: fmt.Sprintf("cannot parse predicate %q: %v", expr, err),
		Node:    node,
	}
}

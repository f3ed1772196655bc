package sparql

import (
	"fmt"
	"strings"

	"github.com/roach88/reteflow/internal/ir"
	"github.com/roach88/reteflow/internal/queryir"
)

// --------------------------------------------------------------------------
// Recursive descent parser for the supported SELECT subset.
//
//   Query      → Prologue SELECT SelectBody EOF
//   Prologue   → ( PREFIX PNAME IRI )*
//   SelectBody → [DISTINCT] ( '*' | ProjItem+ ) [WHERE] Group [GROUP BY Var+] [LIMIT INT]
//   ProjItem   → Var | '(' Aggregate AS Var ')'
//   Aggregate  → AGG '(' [DISTINCT] ( '*' | Var ) ')'
//   Group      → '{' ( SELECT SelectBody | GroupBody ) '}'
//   GroupBody  → ( Triples | Group ( UNION Group )* | OPTIONAL Group | FILTER Constraint | '.' )*
//   Triples    → Term Verb ObjList ( ';' [ Verb ObjList ] )*
//   ObjList    → Term ( ',' Term )*
//   Verb       → Term | 'a'
//   Constraint → '(' Expr ')' | BOUND '(' Var ')' | REGEX '(' Expr ',' Expr [',' STRING] ')'
//   Expr       → And ( '||' And )*
//   And        → Rel ( '&&' Rel )*
//   Rel        → Unary [ ( '=' | '!=' | '<' | '>' | '<=' | '>=' ) Unary ]
//   Unary      → '!' Unary | Primary
//   Primary    → '(' Expr ')' | Var | Constraint builtin | Term constant
// --------------------------------------------------------------------------

// ParseError reports a syntax error with its byte offset in the input.
type ParseError struct {
	Pos     int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("sparql: %s at position %d", e.Message, e.Pos)
}

type parser struct {
	tokens   []Token
	pos      int
	prefixes map[string]string
}

// Parse parses a SELECT query into the query AST.
//
// Prefixed names are expanded against PREFIX declarations. Consecutive
// triple patterns inside one group become a single PathBlock.
func Parse(input string) (*queryir.Query, error) {
	p, err := newParser(input)
	if err != nil {
		return nil, err
	}
	if err := p.parsePrologue(); err != nil {
		return nil, err
	}
	if _, err := p.expect(tokSelect); err != nil {
		return nil, err
	}
	q, err := p.parseSelectBody()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokEOF); err != nil {
		return nil, err
	}
	return q, nil
}

// ParseExpression parses a standalone filter expression such as
// (?x > 3 && BOUND(?y)). Prefixed names are not allowed; IRIs must be
// written in full.
func ParseExpression(input string) (queryir.Expression, error) {
	p, err := newParser(input)
	if err != nil {
		return nil, err
	}
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokEOF); err != nil {
		return nil, err
	}
	return expr, nil
}

// ParseFacts parses ground triples in Turtle-like syntax:
//
//	PREFIX ex: <http://example.org/>
//	ex:alice ex:knows ex:bob , ex:carol ;
//	         ex:age 42 .
//
// Every term must be a constant.
func ParseFacts(input string) ([]ir.Triple, error) {
	p, err := newParser(input)
	if err != nil {
		return nil, err
	}
	if err := p.parsePrologue(); err != nil {
		return nil, err
	}

	var facts []ir.Triple
	for !p.is(tokEOF) {
		start := p.cur().Pos
		triples, err := p.parseTriples()
		if err != nil {
			return nil, err
		}
		for _, t := range triples {
			if !t.IsGround() {
				return nil, &ParseError{Pos: start, Message: fmt.Sprintf("fact %s contains a variable", t)}
			}
		}
		facts = append(facts, triples...)
		if _, err := p.expect(tokDot); err != nil {
			return nil, err
		}
	}
	return facts, nil
}

func newParser(input string) (*parser, error) {
	tokens, err := tokenize(input)
	if err != nil {
		return nil, err
	}
	return &parser{tokens: tokens, prefixes: make(map[string]string)}, nil
}

// ---------------- helpers -------------------------------------------------

func (p *parser) cur() Token {
	if p.pos >= len(p.tokens) {
		return Token{Kind: tokEOF}
	}
	return p.tokens[p.pos]
}

func (p *parser) advance() Token {
	t := p.cur()
	p.pos++
	return t
}

func (p *parser) expect(kind TokenKind) (Token, error) {
	t := p.cur()
	if t.Kind != kind {
		return t, p.errorf(t, "expected %s but got %s", tokenKindName(kind), describe(t))
	}
	p.pos++
	return t, nil
}

func (p *parser) is(kind TokenKind) bool {
	return p.cur().Kind == kind
}

func (p *parser) match(kind TokenKind) bool {
	if p.is(kind) {
		p.pos++
		return true
	}
	return false
}

func (p *parser) errorf(t Token, format string, args ...any) error {
	return &ParseError{Pos: t.Pos, Message: fmt.Sprintf(format, args...)}
}

func describe(t Token) string {
	if t.Kind == tokEOF {
		return "end of input"
	}
	return fmt.Sprintf("%s %q", tokenKindName(t.Kind), t.Text)
}

// ---------------- query ---------------------------------------------------

func (p *parser) parsePrologue() error {
	for p.match(tokPrefix) {
		nameTok, err := p.expect(tokPName)
		if err != nil {
			return err
		}
		if !strings.HasSuffix(nameTok.Text, ":") || strings.Count(nameTok.Text, ":") != 1 {
			return p.errorf(nameTok, "invalid prefix declaration %q", nameTok.Text)
		}
		iriTok, err := p.expect(tokIRI)
		if err != nil {
			return err
		}
		p.prefixes[strings.TrimSuffix(nameTok.Text, ":")] = iriTok.Text
	}
	return nil
}

func (p *parser) parseSelectBody() (*queryir.Query, error) {
	q := &queryir.Query{}
	q.Distinct = p.match(tokDistinct)

	if !p.match(tokStar) {
		for p.is(tokVar) || p.is(tokLParen) {
			item, err := p.parseProjection()
			if err != nil {
				return nil, err
			}
			q.Projection = append(q.Projection, item)
		}
		if len(q.Projection) == 0 {
			return nil, p.errorf(p.cur(), "expected '*' or projection but got %s", describe(p.cur()))
		}
	}

	p.match(tokWhere)
	where, err := p.parseGroupOrSubQuery()
	if err != nil {
		return nil, err
	}
	if sub, ok := where.(*queryir.SubQuery); ok {
		where = &queryir.Group{Elements: []queryir.Element{sub}}
	}
	q.Where = where

	if p.match(tokGroup) {
		if _, err := p.expect(tokBy); err != nil {
			return nil, err
		}
		for p.is(tokVar) {
			q.GroupBy = append(q.GroupBy, p.advance().Text)
		}
		if len(q.GroupBy) == 0 {
			return nil, p.errorf(p.cur(), "GROUP BY requires at least one variable")
		}
	}

	if p.match(tokLimit) {
		t, err := p.expect(tokInt)
		if err != nil {
			return nil, err
		}
		var n int
		if _, err := fmt.Sscanf(t.Text, "%d", &n); err != nil || n < 0 {
			return nil, p.errorf(t, "invalid LIMIT %q", t.Text)
		}
		q.Limit = n
	}

	return q, nil
}

func (p *parser) parseProjection() (queryir.Projection, error) {
	if t := p.cur(); t.Kind == tokVar {
		p.advance()
		return queryir.Projection{Var: t.Text}, nil
	}

	if _, err := p.expect(tokLParen); err != nil {
		return queryir.Projection{}, err
	}
	aggTok, err := p.expect(tokAggregate)
	if err != nil {
		return queryir.Projection{}, err
	}
	agg := &queryir.Aggregate{Func: queryir.AggregateFunc(aggTok.Text)}

	if _, err := p.expect(tokLParen); err != nil {
		return queryir.Projection{}, err
	}
	agg.Distinct = p.match(tokDistinct)
	if p.match(tokStar) {
		if agg.Func != queryir.AggCount {
			return queryir.Projection{}, p.errorf(aggTok, "%s(*) is not allowed", agg.Func)
		}
	} else {
		v, err := p.expect(tokVar)
		if err != nil {
			return queryir.Projection{}, err
		}
		agg.Arg = v.Text
	}
	if _, err := p.expect(tokRParen); err != nil {
		return queryir.Projection{}, err
	}

	if _, err := p.expect(tokAs); err != nil {
		return queryir.Projection{}, err
	}
	as, err := p.expect(tokVar)
	if err != nil {
		return queryir.Projection{}, err
	}
	if _, err := p.expect(tokRParen); err != nil {
		return queryir.Projection{}, err
	}
	return queryir.Projection{Var: as.Text, Aggregate: agg}, nil
}

// ---------------- patterns ------------------------------------------------

// parseGroupOrSubQuery parses '{' ... '}' and returns a *Group, or a
// *SubQuery when the braces hold a nested SELECT.
func (p *parser) parseGroupOrSubQuery() (queryir.Element, error) {
	if _, err := p.expect(tokLBrace); err != nil {
		return nil, err
	}

	if p.match(tokSelect) {
		q, err := p.parseSelectBody()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRBrace); err != nil {
			return nil, err
		}
		return &queryir.SubQuery{Query: q}, nil
	}

	group := &queryir.Group{}
	var pending []ir.Triple
	flush := func() {
		if len(pending) > 0 {
			group.Elements = append(group.Elements, &queryir.PathBlock{Triples: pending})
			pending = nil
		}
	}

	for !p.is(tokRBrace) {
		switch p.cur().Kind {
		case tokEOF:
			return nil, p.errorf(p.cur(), "unterminated group pattern")

		case tokDot:
			p.advance()

		case tokLBrace:
			flush()
			first, err := p.parseGroupOrSubQuery()
			if err != nil {
				return nil, err
			}
			alts := []queryir.Element{first}
			for p.match(tokUnion) {
				alt, err := p.parseGroupOrSubQuery()
				if err != nil {
					return nil, err
				}
				alts = append(alts, alt)
			}
			if len(alts) == 1 {
				group.Elements = append(group.Elements, first)
			} else {
				group.Elements = append(group.Elements, &queryir.Union{Alternatives: alts})
			}

		case tokOptional:
			flush()
			p.advance()
			inner, err := p.parseGroupOrSubQuery()
			if err != nil {
				return nil, err
			}
			group.Elements = append(group.Elements, &queryir.Optional{Element: inner})

		case tokFilter:
			flush()
			p.advance()
			expr, err := p.parseConstraint()
			if err != nil {
				return nil, err
			}
			group.Elements = append(group.Elements, &queryir.Filter{Expr: expr})

		default:
			triples, err := p.parseTriples()
			if err != nil {
				return nil, err
			}
			pending = append(pending, triples...)
		}
	}
	p.advance() // '}'
	flush()
	return group, nil
}

// parseTriples parses one subject with its predicate-object lists.
func (p *parser) parseTriples() ([]ir.Triple, error) {
	subj, err := p.parseTerm()
	if err != nil {
		return nil, err
	}

	var out []ir.Triple
	for {
		pred, err := p.parseVerb()
		if err != nil {
			return nil, err
		}
		for {
			obj, err := p.parseTerm()
			if err != nil {
				return nil, err
			}
			out = append(out, ir.T(subj, pred, obj))
			if !p.match(tokComma) {
				break
			}
		}
		if !p.match(tokSemi) {
			return out, nil
		}
		// A trailing ';' before '.' or '}' is allowed.
		for p.match(tokSemi) {
		}
		if p.is(tokDot) || p.is(tokRBrace) || p.is(tokEOF) {
			return out, nil
		}
	}
}

func (p *parser) parseVerb() (ir.Term, error) {
	if p.match(tokA) {
		return ir.IRI(ir.RDFType), nil
	}
	return p.parseTerm()
}

// parseTerm parses a variable or constant term.
func (p *parser) parseTerm() (ir.Term, error) {
	t := p.cur()
	switch t.Kind {
	case tokVar:
		p.advance()
		return ir.Var(t.Text), nil
	case tokIRI:
		p.advance()
		return ir.IRI(t.Text), nil
	case tokPName:
		p.advance()
		iri, err := p.expand(t)
		if err != nil {
			return ir.Term{}, err
		}
		return ir.IRI(iri), nil
	case tokString:
		p.advance()
		if lang := p.cur(); lang.Kind == tokLangTag {
			p.advance()
			return ir.LangLiteral(t.Text, lang.Text), nil
		}
		if p.match(tokDTSep) {
			dt, err := p.parseTerm()
			if err != nil {
				return ir.Term{}, err
			}
			if dt.Kind != ir.TermIRI {
				return ir.Term{}, p.errorf(t, "datatype must be an IRI")
			}
			return ir.TypedLiteral(t.Text, dt.Value), nil
		}
		return ir.Literal(t.Text), nil
	case tokInt:
		p.advance()
		return ir.TypedLiteral(strings.TrimPrefix(t.Text, "+"), ir.XSDInteger), nil
	case tokDecimal:
		p.advance()
		return ir.TypedLiteral(strings.TrimPrefix(t.Text, "+"), ir.XSDDecimal), nil
	case tokTrue, tokFalse:
		p.advance()
		return ir.TypedLiteral(strings.ToLower(t.Text), ir.XSDBoolean), nil
	default:
		return ir.Term{}, p.errorf(t, "expected term but got %s", describe(t))
	}
}

func (p *parser) expand(t Token) (string, error) {
	idx := strings.IndexByte(t.Text, ':')
	if idx < 0 {
		return "", p.errorf(t, "unexpected word %q", t.Text)
	}
	base, ok := p.prefixes[t.Text[:idx]]
	if !ok {
		return "", p.errorf(t, "undeclared prefix %q", t.Text[:idx])
	}
	return base + t.Text[idx+1:], nil
}

// ---------------- expressions ---------------------------------------------

func (p *parser) parseConstraint() (queryir.Expression, error) {
	switch p.cur().Kind {
	case tokLParen:
		p.advance()
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen); err != nil {
			return nil, err
		}
		return expr, nil
	case tokBound, tokRegex:
		return p.parsePrimary()
	default:
		return nil, p.errorf(p.cur(), "expected '(' or built-in after FILTER but got %s", describe(p.cur()))
	}
}

func (p *parser) parseExpr() (queryir.Expression, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.match(tokOr) {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &queryir.Binary{Op: queryir.OpOr, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (queryir.Expression, error) {
	left, err := p.parseRelational()
	if err != nil {
		return nil, err
	}
	for p.match(tokAnd) {
		right, err := p.parseRelational()
		if err != nil {
			return nil, err
		}
		left = &queryir.Binary{Op: queryir.OpAnd, Left: left, Right: right}
	}
	return left, nil
}

var comparisonOps = map[TokenKind]queryir.BinaryOp{
	tokEq: queryir.OpEq,
	tokNe: queryir.OpNe,
	tokLt: queryir.OpLt,
	tokGt: queryir.OpGt,
	tokLe: queryir.OpLe,
	tokGe: queryir.OpGe,
}

func (p *parser) parseRelational() (queryir.Expression, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	op, ok := comparisonOps[p.cur().Kind]
	if !ok {
		return left, nil
	}
	p.advance()
	right, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return &queryir.Binary{Op: op, Left: left, Right: right}, nil
}

func (p *parser) parseUnary() (queryir.Expression, error) {
	if p.match(tokBang) {
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &queryir.Not{Expr: inner}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (queryir.Expression, error) {
	t := p.cur()
	switch t.Kind {
	case tokLParen:
		p.advance()
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen); err != nil {
			return nil, err
		}
		return expr, nil

	case tokVar:
		p.advance()
		return &queryir.VarRef{Name: t.Text}, nil

	case tokBound:
		p.advance()
		if _, err := p.expect(tokLParen); err != nil {
			return nil, err
		}
		v, err := p.expect(tokVar)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen); err != nil {
			return nil, err
		}
		return &queryir.Bound{Var: v.Text}, nil

	case tokRegex:
		p.advance()
		if _, err := p.expect(tokLParen); err != nil {
			return nil, err
		}
		target, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokComma); err != nil {
			return nil, err
		}
		pattern, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		re := &queryir.Regex{Target: target, Pattern: pattern}
		if p.match(tokComma) {
			flags, err := p.expect(tokString)
			if err != nil {
				return nil, err
			}
			re.Flags = flags.Text
		}
		if _, err := p.expect(tokRParen); err != nil {
			return nil, err
		}
		return re, nil

	default:
		term, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		return &queryir.Constant{Term: term}, nil
	}
}

package queryir

import "github.com/roach88/reteflow/internal/ir"

// Element is a node of a query's graph-pattern tree.
//
// This is a sealed interface - only types in this package implement it.
// The marker method pattern prevents external implementations and enables
// exhaustive type switches in the compiler and renderer.
//
// Element types:
//   - Group: { ... } a conjunction of child elements
//   - PathBlock: one or more consecutive triple patterns
//   - Union: { A } UNION { B } ... alternative plans
//   - Optional: OPTIONAL { ... }
//   - Filter: FILTER(expr)
//   - SubQuery: { SELECT ... } nested query
type Element interface {
	element() // Marker method - seals interface to this package
}

// Expression is a filter expression.
//
// This is a sealed interface - only types in this package implement it.
//
// Expression types:
//   - VarRef: ?x
//   - Constant: an IRI or literal
//   - Binary: comparisons (= != < > <= >=) and logical && ||
//   - Not: !expr
//   - Bound: BOUND(?x)
//   - Regex: REGEX(expr, pattern[, flags])
type Expression interface {
	expression() // Marker method - seals interface to this package
}

// Group is a conjunction of child elements evaluated in order.
//
// Filters inside a group apply to the whole group regardless of their
// position among the children.
type Group struct {
	Elements []Element
}

func (*Group) element() {}

// PathBlock is a basic graph pattern: consecutive triple patterns with no
// other element between them.
type PathBlock struct {
	Triples []ir.Triple
}

func (*PathBlock) element() {}

// Union holds two or more alternative patterns. Each alternative produces
// its own rows; alternatives are never joined with each other.
type Union struct {
	Alternatives []Element
}

func (*Union) element() {}

// Optional wraps a pattern that may or may not contribute to a solution.
type Optional struct {
	Element Element
}

func (*Optional) element() {}

// Filter restricts the solutions of its enclosing group.
type Filter struct {
	Expr Expression
}

func (*Filter) element() {}

// SubQuery is a nested SELECT whose projected variables join with the
// enclosing group.
type SubQuery struct {
	Query *Query
}

func (*SubQuery) element() {}

// BinaryOp enumerates binary filter operators.
type BinaryOp string

const (
	OpOr  BinaryOp = "||"
	OpAnd BinaryOp = "&&"
	OpEq  BinaryOp = "="
	OpNe  BinaryOp = "!="
	OpLt  BinaryOp = "<"
	OpGt  BinaryOp = ">"
	OpLe  BinaryOp = "<="
	OpGe  BinaryOp = ">="
)

// VarRef references a variable by name (without the leading ?).
type VarRef struct {
	Name string
}

func (*VarRef) expression() {}

// Constant is an IRI or literal operand.
type Constant struct {
	Term ir.Term
}

func (*Constant) expression() {}

// Binary applies Op to Left and Right.
type Binary struct {
	Op    BinaryOp
	Left  Expression
	Right Expression
}

func (*Binary) expression() {}

// Not negates its operand.
type Not struct {
	Expr Expression
}

func (*Not) expression() {}

// Bound tests whether a variable has a value in the current row.
type Bound struct {
	Var string
}

func (*Bound) expression() {}

// Regex matches the string form of Target against Pattern.
type Regex struct {
	Target  Expression
	Pattern Expression
	Flags   string
}

func (*Regex) expression() {}

// AggregateFunc enumerates supported aggregate functions.
type AggregateFunc string

const (
	AggCount  AggregateFunc = "COUNT"
	AggSum    AggregateFunc = "SUM"
	AggMin    AggregateFunc = "MIN"
	AggMax    AggregateFunc = "MAX"
	AggAvg    AggregateFunc = "AVG"
	AggSample AggregateFunc = "SAMPLE"
)

// Aggregate is an aggregate call in the projection, e.g. COUNT(DISTINCT ?x).
// Arg is empty for COUNT(*).
type Aggregate struct {
	Func     AggregateFunc `json:"func" msgpack:"func"`
	Arg      string        `json:"arg,omitempty" msgpack:"arg,omitempty"`
	Distinct bool          `json:"distinct,omitempty" msgpack:"distinct,omitempty"`
}

// Projection is one item of the SELECT clause: a plain variable, or an
// aggregate bound to a variable with AS.
type Projection struct {
	Var       string     `json:"var" msgpack:"var"`
	Aggregate *Aggregate `json:"aggregate,omitempty" msgpack:"aggregate,omitempty"`
}

// Query is a SELECT query.
//
// Semantics:
//
//	SELECT [DISTINCT] <Projection | *> WHERE <Where> [GROUP BY <GroupBy>] [LIMIT <Limit>]
//
// An empty Projection means SELECT *: every variable visible in Where, in
// order of first appearance. Limit 0 means no limit.
type Query struct {
	Distinct   bool
	Projection []Projection
	Where      Element
	GroupBy    []string
	Limit      int
}

// ResultVars returns the query's output variables in projection order.
func (q *Query) ResultVars() []string {
	if len(q.Projection) == 0 {
		return VarsOf(q.Where)
	}
	vars := make([]string, len(q.Projection))
	for i, p := range q.Projection {
		vars[i] = p.Var
	}
	return vars
}

// HasAggregate reports whether any projection item is an aggregate.
func (q *Query) HasAggregate() bool {
	for _, p := range q.Projection {
		if p.Aggregate != nil {
			return true
		}
	}
	return false
}

// IsSelectAll reports whether the query uses SELECT *.
func (q *Query) IsSelectAll() bool {
	return len(q.Projection) == 0
}

// VarsOf returns the distinct variables bound by el in order of first
// appearance. Filters bind nothing; a subquery binds only its result
// variables.
func VarsOf(el Element) []string {
	c := &varCollector{seen: make(map[string]bool)}
	c.element(el)
	return c.vars
}

type varCollector struct {
	seen map[string]bool
	vars []string
}

func (c *varCollector) add(name string) {
	if !c.seen[name] {
		c.seen[name] = true
		c.vars = append(c.vars, name)
	}
}

func (c *varCollector) element(el Element) {
	switch e := el.(type) {
	case *Group:
		for _, child := range e.Elements {
			c.element(child)
		}
	case *PathBlock:
		for _, t := range e.Triples {
			for _, v := range t.Vars() {
				c.add(v)
			}
		}
	case *Union:
		for _, alt := range e.Alternatives {
			c.element(alt)
		}
	case *Optional:
		c.element(e.Element)
	case *SubQuery:
		if e.Query != nil {
			for _, v := range e.Query.ResultVars() {
				c.add(v)
			}
		}
	}
}

// ExprVars returns the distinct variables referenced by an expression.
func ExprVars(expr Expression) []string {
	c := &varCollector{seen: make(map[string]bool)}
	var walk func(Expression)
	walk = func(e Expression) {
		switch x := e.(type) {
		case *VarRef:
			c.add(x.Name)
		case *Bound:
			c.add(x.Var)
		case *Binary:
			walk(x.Left)
			walk(x.Right)
		case *Not:
			walk(x.Expr)
		case *Regex:
			walk(x.Target)
			walk(x.Pattern)
		}
	}
	walk(expr)
	return c.vars
}

package ir

import (
	"strconv"
	"strings"
)

// TermKind distinguishes the three kinds of RDF-style terms.
type TermKind string

const (
	// TermVar is a query variable such as ?s. Value holds the bare name.
	TermVar TermKind = "var"

	// TermIRI is an absolute IRI. Value holds the IRI without angle brackets.
	TermIRI TermKind = "iri"

	// TermLiteral is a literal value with optional language tag or datatype.
	TermLiteral TermKind = "literal"
)

// Well-known datatypes used by numeric literals and aggregate results.
const (
	XSDInteger = "http://www.w3.org/2001/XMLSchema#integer"
	XSDDecimal = "http://www.w3.org/2001/XMLSchema#decimal"
	XSDDouble  = "http://www.w3.org/2001/XMLSchema#double"
	XSDBoolean = "http://www.w3.org/2001/XMLSchema#boolean"
	RDFType    = "http://www.w3.org/1999/02/22-rdf-syntax-ns#type"
)

// Term is a single slot of a triple: a variable, an IRI or a literal.
//
// The zero Term (empty Kind) means "unbound" inside a runtime row.
type Term struct {
	Kind     TermKind `json:"kind" msgpack:"kind"`
	Value    string   `json:"value" msgpack:"value"`
	Datatype string   `json:"datatype,omitempty" msgpack:"datatype,omitempty"`
	Lang     string   `json:"lang,omitempty" msgpack:"lang,omitempty"`
}

// Var creates a variable term.
func Var(name string) Term {
	return Term{Kind: TermVar, Value: name}
}

// IRI creates an IRI term.
func IRI(iri string) Term {
	return Term{Kind: TermIRI, Value: iri}
}

// Literal creates a plain string literal.
func Literal(s string) Term {
	return Term{Kind: TermLiteral, Value: s}
}

// TypedLiteral creates a literal with an explicit datatype IRI.
func TypedLiteral(s, datatype string) Term {
	return Term{Kind: TermLiteral, Value: s, Datatype: datatype}
}

// LangLiteral creates a language-tagged literal.
func LangLiteral(s, lang string) Term {
	return Term{Kind: TermLiteral, Value: s, Lang: lang}
}

// Integer creates an xsd:integer literal.
func Integer(n int64) Term {
	return TypedLiteral(strconv.FormatInt(n, 10), XSDInteger)
}

// IsVar reports whether the term is a variable.
func (t Term) IsVar() bool { return t.Kind == TermVar }

// IsBound reports whether the term carries a value (non-zero).
func (t Term) IsBound() bool { return t.Kind != "" }

// Numeric returns the literal's numeric value.
// The second return is false for non-literals and non-numeric literals.
func (t Term) Numeric() (float64, bool) {
	if t.Kind != TermLiteral {
		return 0, false
	}
	switch t.Datatype {
	case "", XSDInteger, XSDDecimal, XSDDouble:
	default:
		return 0, false
	}
	f, err := strconv.ParseFloat(t.Value, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// String renders the term in SPARQL/N-Triples surface syntax.
func (t Term) String() string {
	switch t.Kind {
	case TermVar:
		return "?" + t.Value
	case TermIRI:
		return "<" + t.Value + ">"
	case TermLiteral:
		var b strings.Builder
		b.WriteString(strconv.Quote(t.Value))
		if t.Lang != "" {
			b.WriteString("@" + t.Lang)
		} else if t.Datatype != "" {
			b.WriteString("^^<" + t.Datatype + ">")
		}
		return b.String()
	default:
		return "UNDEF"
	}
}

// Triple is a (subject, predicate, object) triple. With variable terms it is
// a pattern; with only constants it is a ground fact.
type Triple struct {
	Subject   Term `json:"subject" msgpack:"subject"`
	Predicate Term `json:"predicate" msgpack:"predicate"`
	Object    Term `json:"object" msgpack:"object"`
}

// T is a shorthand constructor for Triple.
func T(s, p, o Term) Triple {
	return Triple{Subject: s, Predicate: p, Object: o}
}

// Terms returns the three slots in subject, predicate, object order.
func (t Triple) Terms() [3]Term {
	return [3]Term{t.Subject, t.Predicate, t.Object}
}

// IsGround reports whether the triple contains no variables.
func (t Triple) IsGround() bool {
	for _, term := range t.Terms() {
		if term.IsVar() || !term.IsBound() {
			return false
		}
	}
	return true
}

// Vars returns the distinct variable names of the triple in slot order.
func (t Triple) Vars() []string {
	var vars []string
	for _, term := range t.Terms() {
		if !term.IsVar() {
			continue
		}
		dup := false
		for _, v := range vars {
			if v == term.Value {
				dup = true
				break
			}
		}
		if !dup {
			vars = append(vars, term.Value)
		}
	}
	return vars
}

// String renders the triple as "s p o".
func (t Triple) String() string {
	return t.Subject.String() + " " + t.Predicate.String() + " " + t.Object.String()
}

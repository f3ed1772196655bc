package queryir

import (
	"fmt"
	"slices"
)

// ValidationResult contains the lint findings for a query.
//
// Warnings never block compilation on their own; the compiler rejects the
// subset of problems that would produce a broken topology (unknown element
// kinds, ungrouped projections) with its own errors.
type ValidationResult struct {
	// Clean is true when no warnings were produced.
	Clean bool

	// Warnings lists the problems found, in traversal order.
	Warnings []string
}

// Validate checks a query for mistakes that compile but are almost certainly
// unintended:
//  1. Projected, grouped or aggregated variables that no pattern binds
//  2. Plain projected variables missing from GROUP BY in a grouped query
//  3. Filters over variables their group never binds
//  4. Empty groups and single-branch unions
//
// Nested subqueries are validated recursively.
//
// Validate is a pure function with no side effects.
func Validate(q *Query) ValidationResult {
	v := &validator{warnings: []string{}}
	v.validateQuery(q, "")
	return ValidationResult{
		Clean:    len(v.warnings) == 0,
		Warnings: v.warnings,
	}
}

type validator struct {
	warnings []string
}

func (v *validator) addWarning(format string, args ...any) {
	v.warnings = append(v.warnings, fmt.Sprintf(format, args...))
}

func (v *validator) validateQuery(q *Query, prefix string) {
	if q == nil {
		v.addWarning("%snil query", prefix)
		return
	}
	if q.Where == nil {
		v.addWarning("%squery has no WHERE pattern", prefix)
		return
	}

	bound := VarsOf(q.Where)
	grouped := len(q.GroupBy) > 0 || q.HasAggregate()

	for _, p := range q.Projection {
		if p.Aggregate != nil {
			if p.Aggregate.Arg != "" && !slices.Contains(bound, p.Aggregate.Arg) {
				v.addWarning("%saggregate %s(?%s) uses a variable no pattern binds", prefix, p.Aggregate.Func, p.Aggregate.Arg)
			}
			continue
		}
		if !slices.Contains(bound, p.Var) {
			v.addWarning("%sprojected variable ?%s is never bound", prefix, p.Var)
		}
		if grouped && !slices.Contains(q.GroupBy, p.Var) {
			v.addWarning("%sprojected variable ?%s is not in GROUP BY", prefix, p.Var)
		}
	}

	for _, g := range q.GroupBy {
		if !slices.Contains(bound, g) {
			v.addWarning("%sGROUP BY variable ?%s is never bound", prefix, g)
		}
	}

	if q.IsSelectAll() && grouped {
		v.addWarning("%sSELECT * with GROUP BY projects ungrouped variables", prefix)
	}

	v.validateElement(q.Where, prefix)
}

func (v *validator) validateElement(el Element, prefix string) {
	switch e := el.(type) {
	case *Group:
		if len(e.Elements) == 0 {
			v.addWarning("%sempty group pattern", prefix)
			return
		}
		bound := VarsOf(e)
		for _, child := range e.Elements {
			if f, ok := child.(*Filter); ok {
				for _, name := range ExprVars(f.Expr) {
					if !slices.Contains(bound, name) {
						v.addWarning("%sfilter references ?%s which its group never binds", prefix, name)
					}
				}
				continue
			}
			v.validateElement(child, prefix)
		}
	case *PathBlock:
		if len(e.Triples) == 0 {
			v.addWarning("%sempty triple block", prefix)
		}
	case *Union:
		if len(e.Alternatives) < 2 {
			v.addWarning("%sUNION with %d alternative(s)", prefix, len(e.Alternatives))
		}
		for _, alt := range e.Alternatives {
			v.validateElement(alt, prefix)
		}
	case *Optional:
		v.validateElement(e.Element, prefix)
	case *Filter:
		// Filters outside a group have nothing to constrain.
		v.addWarning("%sFILTER outside a group pattern", prefix)
	case *SubQuery:
		v.validateQuery(e.Query, prefix+"subquery: ")
	default:
		v.addWarning("%sUnknown element type: %T", prefix, el)
	}
}

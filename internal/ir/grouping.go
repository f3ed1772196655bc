package ir

import (
	"fmt"
	"strings"
)

// GroupingKind defines how rows on an edge are partitioned across the
// parallel instances of the downstream node.
type GroupingKind string

const (
	// GroupingShuffle routes each row to any instance (round robin).
	// Safe only for stateless consumers or consumers whose state is
	// independent of which rows they see.
	GroupingShuffle GroupingKind = "shuffle"

	// GroupingFields routes rows with equal values on the listed fields to
	// the same instance. Required by joins and GROUP BY aggregation.
	GroupingFields GroupingKind = "fields"

	// GroupingGlobal routes every row to a single instance.
	// Required by aggregation without GROUP BY.
	GroupingGlobal GroupingKind = "global"
)

// Grouping is the partitioning strategy declared on one topology edge.
//
// For GroupingFields, Fields names the variables and Indices gives their
// positions within the upstream node's bound-variable schema.
type Grouping struct {
	Kind    GroupingKind `json:"kind" msgpack:"kind"`
	Fields  []string     `json:"fields,omitempty" msgpack:"fields,omitempty"`
	Indices []int        `json:"indices,omitempty" msgpack:"indices,omitempty"`
}

// Shuffle returns an any-to-any grouping.
func Shuffle() Grouping {
	return Grouping{Kind: GroupingShuffle}
}

// Global returns a single-destination grouping.
func Global() Grouping {
	return Grouping{Kind: GroupingGlobal}
}

// FieldsOn returns a fields grouping on the named variables, locating each
// one in schema. Variables missing from schema are skipped; if none are
// present the grouping degrades to Global so equal keys still meet.
func FieldsOn(schema []string, fields []string) Grouping {
	g := Grouping{Kind: GroupingFields}
	for _, f := range fields {
		for i, v := range schema {
			if v == f {
				g.Fields = append(g.Fields, f)
				g.Indices = append(g.Indices, i)
				break
			}
		}
	}
	if len(g.Indices) == 0 {
		return Global()
	}
	return g
}

// Validate checks the grouping is well formed against an upstream schema.
func (g Grouping) Validate(schema []string) error {
	switch g.Kind {
	case GroupingShuffle, GroupingGlobal:
		if len(g.Indices) > 0 {
			return fmt.Errorf("%s grouping must not declare fields", g.Kind)
		}
		return nil
	case GroupingFields:
		if len(g.Indices) == 0 {
			return fmt.Errorf("fields grouping requires at least one field")
		}
		if len(g.Indices) != len(g.Fields) {
			return fmt.Errorf("fields grouping has %d names but %d indices", len(g.Fields), len(g.Indices))
		}
		for i, idx := range g.Indices {
			if idx < 0 || idx >= len(schema) {
				return fmt.Errorf("field %q index %d out of range for schema %v", g.Fields[i], idx, schema)
			}
			if schema[idx] != g.Fields[i] {
				return fmt.Errorf("field %q index %d points at %q", g.Fields[i], idx, schema[idx])
			}
		}
		return nil
	default:
		return fmt.Errorf("invalid grouping kind %q: must be shuffle, fields, or global", g.Kind)
	}
}

// String renders the grouping as shuffle, global or fields[a@0,b@2].
func (g Grouping) String() string {
	if g.Kind != GroupingFields {
		return string(g.Kind)
	}
	parts := make([]string, len(g.Fields))
	for i := range g.Fields {
		parts[i] = fmt.Sprintf("%s@%d", g.Fields[i], g.Indices[i])
	}
	return "fields[" + strings.Join(parts, ",") + "]"
}

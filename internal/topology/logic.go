package topology

import (
	"github.com/roach88/reteflow/internal/ir"
	"github.com/roach88/reteflow/internal/queryir"
)

// Kind tags a topology node.
type Kind string

const (
	KindSpout    Kind = "spout"
	KindFilter   Kind = "filter"
	KindJoin     Kind = "join"
	KindTerminal Kind = "terminal"
)

// Logic is the runtime unit registered for a node.
//
// This is a sealed interface - only types in this package implement it.
// Every logic consumes bound-variable rows on its declared inputs and
// produces rows whose layout is Schema().
type Logic interface {
	Kind() Kind
	Schema() []string
	logic()
}

// Origin records where a compiled node came from. It is informational and
// never consulted at runtime.
type Origin struct {
	Canonical string `json:"canonical,omitempty" msgpack:"canonical,omitempty"`
	QueryText string `json:"query_text,omitempty" msgpack:"query_text,omitempty"`
}

// SpoutLogic emits every fact of the input stream as a row
// [subject, predicate, object].
type SpoutLogic struct{}

func (*SpoutLogic) Kind() Kind       { return KindSpout }
func (*SpoutLogic) Schema() []string { return []string{"subject", "predicate", "object"} }
func (*SpoutLogic) logic()           {}

// FilterLogic matches single facts against one triple pattern.
//
// Slots[i] is the binding index of slot i or -1 for a constant. Vars is the
// output schema: the pattern's distinct variables in slot order. A static
// filter is fed from reference data instead of the spout.
type FilterLogic struct {
	Origin
	Pattern ir.Triple `json:"pattern" msgpack:"pattern"`
	Slots   [3]int    `json:"slots" msgpack:"slots"`
	Vars    []string  `json:"vars" msgpack:"vars"`
	Static  bool      `json:"static,omitempty" msgpack:"static,omitempty"`
}

func (*FilterLogic) Kind() Kind         { return KindFilter }
func (l *FilterLogic) Schema() []string { return l.Vars }
func (*FilterLogic) logic()             {}

// PredicateLogic drops rows for which Expr does not evaluate to true.
// It passes rows through unchanged, so its schema is its predecessor's.
type PredicateLogic struct {
	Origin
	Expr string   `json:"expr" msgpack:"expr"`
	Vars []string `json:"vars" msgpack:"vars"`
}

func (*PredicateLogic) Kind() Kind         { return KindFilter }
func (l *PredicateLogic) Schema() []string { return l.Vars }
func (*PredicateLogic) logic()             {}

// JoinLogic joins rows from two inputs on their shared variables.
//
// MatchLeft[i] is the position in RightVars of LeftVars[i], or -1 when the
// variable is not shared; MatchRight is symmetric. TemplateLeft[i] and
// TemplateRight[i] locate Vars[i] in the left and right schemas (-1 when
// absent from that side).
type JoinLogic struct {
	Origin
	Left          string   `json:"left" msgpack:"left"`
	Right         string   `json:"right" msgpack:"right"`
	LeftVars      []string `json:"left_vars" msgpack:"left_vars"`
	RightVars     []string `json:"right_vars" msgpack:"right_vars"`
	MatchLeft     []int    `json:"match_left" msgpack:"match_left"`
	MatchRight    []int    `json:"match_right" msgpack:"match_right"`
	TemplateLeft  []int    `json:"template_left" msgpack:"template_left"`
	TemplateRight []int    `json:"template_right" msgpack:"template_right"`
	Vars          []string `json:"vars" msgpack:"vars"`
	Shared        []string `json:"shared,omitempty" msgpack:"shared,omitempty"`
	Cartesian     bool     `json:"cartesian,omitempty" msgpack:"cartesian,omitempty"`
}

func (*JoinLogic) Kind() Kind         { return KindJoin }
func (l *JoinLogic) Schema() []string { return l.Vars }
func (*JoinLogic) logic()             {}

// TerminalLogic is the single output node of a query.
//
// Sources maps each input node to its schema so fields can be located by
// name. A sub-select terminal restricts its output to Vars and feeds its
// enclosing query instead of the result collector.
type TerminalLogic struct {
	Origin
	Vars       []string             `json:"vars" msgpack:"vars"`
	Projection []queryir.Projection `json:"projection,omitempty" msgpack:"projection,omitempty"`
	GroupBy    []string             `json:"group_by,omitempty" msgpack:"group_by,omitempty"`
	Distinct   bool                 `json:"distinct,omitempty" msgpack:"distinct,omitempty"`
	Limit      int                  `json:"limit,omitempty" msgpack:"limit,omitempty"`
	SubSelect  bool                 `json:"sub_select,omitempty" msgpack:"sub_select,omitempty"`
	Sources    map[string][]string  `json:"sources" msgpack:"sources"`
}

func (*TerminalLogic) Kind() Kind         { return KindTerminal }
func (l *TerminalLogic) Schema() []string { return l.Vars }
func (*TerminalLogic) logic()             {}

// Aggregating reports whether the terminal computes aggregates.
func (l *TerminalLogic) Aggregating() bool {
	for _, p := range l.Projection {
		if p.Aggregate != nil {
			return true
		}
	}
	return false
}

package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/reteflow/internal/ir"
	"github.com/roach88/reteflow/internal/queryir"
	"github.com/roach88/reteflow/internal/sparql"
	"github.com/roach88/reteflow/internal/topology"
)

// WarnCartesian is the warning code for a join with no shared variable.
const WarnCartesian = "W301"

// JoinRecord describes how two schemas combine.
//
// MatchLeft[i] is the position in the right schema of the i-th left
// variable, or -1 when the right side does not bind it; MatchRight is
// symmetric. TemplateLeft[i] and TemplateRight[i] give the position of
// CombinedVars[i] in the left and right schemas, or -1.
type JoinRecord struct {
	LeftName      string
	RightName     string
	MatchLeft     []int
	MatchRight    []int
	TemplateLeft  []int
	TemplateRight []int
	CombinedVars  []string
	SharedVars    []string
}

// NewJoinRecord computes the record for joining left and right.
// CombinedVars is left followed by the right variables left lacks;
// SharedVars follows left order.
func NewJoinRecord(leftName string, left []string, rightName string, right []string) JoinRecord {
	rec := JoinRecord{
		LeftName:   leftName,
		RightName:  rightName,
		MatchLeft:  make([]int, len(left)),
		MatchRight: make([]int, len(right)),
	}
	for i, v := range left {
		rec.MatchLeft[i] = position(right, v)
		if rec.MatchLeft[i] >= 0 {
			rec.SharedVars = append(rec.SharedVars, v)
		}
	}
	for i, v := range right {
		rec.MatchRight[i] = position(left, v)
	}

	rec.CombinedVars = append(rec.CombinedVars, left...)
	for _, v := range right {
		if position(left, v) < 0 {
			rec.CombinedVars = append(rec.CombinedVars, v)
		}
	}
	rec.TemplateLeft = make([]int, len(rec.CombinedVars))
	rec.TemplateRight = make([]int, len(rec.CombinedVars))
	for i, v := range rec.CombinedVars {
		rec.TemplateLeft[i] = position(left, v)
		rec.TemplateRight[i] = position(right, v)
	}
	return rec
}

func position(vars []string, v string) int {
	for i, w := range vars {
		if w == v {
			return i
		}
	}
	return -1
}

// assemble joins the nodes of one alternative down to a single node.
//
// Greedy order: take the first node and join it with the first later node
// that shares a variable. When none does, the first two are joined as a
// cartesian product, which raises W301 or, in strict mode, fails with E204.
func (c *Context) assemble(alt []*PlanNode) (*PlanNode, error) {
	if alt == nil {
		return nil, newError(ErrEmptyAlternative, "group", "alternative was never populated")
	}
	nodes := dedupe(alt)
	if len(nodes) == 0 {
		return nil, newError(ErrEmptyAlternative, "group", "alternative has no pattern to evaluate")
	}
	for _, n := range nodes {
		if n.IsTemplate() {
			return nil, newError(ErrEmptyAlternative, "group", "FILTER outside a group pattern")
		}
	}

	for len(nodes) > 1 {
		first := nodes[0]
		pick := -1
		for i := 1; i < len(nodes); i++ {
			if sharesVar(first, nodes[i]) {
				pick = i
				break
			}
		}

		cartesian := pick < 0
		if cartesian {
			pick = 1
			msg := fmt.Sprintf("no shared variable between %s [%s] and %s [%s]; joining as a cartesian product",
				first.Name, strings.Join(first.BoundVars, ","),
				nodes[pick].Name, strings.Join(nodes[pick].BoundVars, ","))
			if c.opts.StrictJoins {
				return nil, newError(ErrCartesianJoin, "group", "%s", msg)
			}
			c.logger.Warn("cartesian join", "left", first.Name, "right", nodes[pick].Name)
			c.warn(WarnCartesian, msg)
		}

		joined, err := c.createJoin(first, nodes[pick], cartesian)
		if err != nil {
			return nil, err
		}

		rest := make([]*PlanNode, 0, len(nodes)-1)
		rest = append(rest, joined)
		for i := 1; i < len(nodes); i++ {
			if i != pick {
				rest = append(rest, nodes[i])
			}
		}
		nodes = dedupe(rest)
	}
	return nodes[0], nil
}

// createJoin returns the join of left and right, reusing a cached join with
// the same inputs and schema.
func (c *Context) createJoin(left, right *PlanNode, cartesian bool) (*PlanNode, error) {
	schema := append(c.indices(left.BoundVars), c.indices(right.BoundVars)...)
	canonical, err := ir.JoinSignature(left.CanonicalName, right.CanonicalName, schema)
	if err != nil {
		return nil, fmt.Errorf("join %s with %s: %w", left.Name, right.Name, err)
	}
	if n, ok := c.cache.get(canonical); ok {
		c.logger.Debug("join node reused", "node", n.Name)
		return n, nil
	}

	rec := NewJoinRecord(left.Name, left.BoundVars, right.Name, right.BoundVars)
	source := mergeSources(left.Source, right.Source)
	text := sparql.Render(source)

	leftGrouping := ir.FieldsOn(left.BoundVars, rec.SharedVars)
	rightGrouping := ir.FieldsOn(right.BoundVars, rec.SharedVars)
	parallelism := c.opts.Parallelism
	if cartesian {
		leftGrouping, rightGrouping = ir.Global(), ir.Global()
		parallelism = 1
	}

	n := &PlanNode{
		CanonicalName: canonical,
		Name:          c.counters.Join(),
		Kind:          topology.KindJoin,
		Logic: &topology.JoinLogic{
			Origin:        topology.Origin{Canonical: canonical, QueryText: text},
			Left:          rec.LeftName,
			Right:         rec.RightName,
			LeftVars:      left.BoundVars,
			RightVars:     right.BoundVars,
			MatchLeft:     rec.MatchLeft,
			MatchRight:    rec.MatchRight,
			TemplateLeft:  rec.TemplateLeft,
			TemplateRight: rec.TemplateRight,
			Vars:          rec.CombinedVars,
			Shared:        rec.SharedVars,
			Cartesian:     cartesian,
		},
		BoundVars: rec.CombinedVars,
		Source:    source,
		QueryText: text,
		Inputs: []Input{
			{From: left.CanonicalName, Grouping: leftGrouping},
			{From: right.CanonicalName, Grouping: rightGrouping},
		},
		Parallelism: parallelism,
	}
	c.cache.put(n)
	c.logger.Debug("join node created",
		"node", n.Name,
		"left", left.Name,
		"right", right.Name,
		"shared", rec.SharedVars,
	)
	return n, nil
}

// mergeSources keeps a join of two basic graph patterns a single pattern.
func mergeSources(left, right queryir.Element) queryir.Element {
	lb, lok := left.(*queryir.PathBlock)
	rb, rok := right.(*queryir.PathBlock)
	if lok && rok {
		triples := make([]ir.Triple, 0, len(lb.Triples)+len(rb.Triples))
		triples = append(triples, lb.Triples...)
		triples = append(triples, rb.Triples...)
		return &queryir.PathBlock{Triples: triples}
	}
	return &queryir.Group{Elements: []queryir.Element{left, right}}
}

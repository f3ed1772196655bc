package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/reteflow/internal/topology"
)

// Engine runs a compiled topology over a finite stream of facts.
//
// Every node instance runs in its own goroutine and owns its operator
// state. Instances talk only through their inboxes: rows are routed by the
// grouping of the edge they travel, and each instance tells every
// downstream instance when it is done. A node finishes once all of its
// upstream instances have.
//
// Thread-safety model:
//   - New(): builds an immutable engine
//   - Run(): safe to call concurrently; each call gets private state
type Engine struct {
	desc    *topology.Descriptor
	ref     ReferenceData
	metrics *Metrics
	maxRows int64
	logger  *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithReferenceData sets the provider consulted by static filters.
func WithReferenceData(ref ReferenceData) Option {
	return func(e *Engine) {
		e.ref = ref
	}
}

// WithMetrics records run metrics.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithMaxRows sets the row budget of each run.
//
// Default: 1,000,000 rows (DefaultMaxRows). Zero disables the budget.
func WithMaxRows(n int64) Option {
	return func(e *Engine) {
		e.maxRows = n
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// New validates d and prepares it for execution.
//
// Predicate expressions are parsed up front so a malformed descriptor fails
// here rather than halfway through a run.
func New(d *topology.Descriptor, opts ...Option) (*Engine, error) {
	if d == nil {
		return nil, &RuntimeError{Code: ErrCodeInvalidTopology, Message: "descriptor is nil"}
	}
	if err := topology.Check(d); err != nil {
		return nil, &RuntimeError{Code: ErrCodeInvalidTopology, Message: err.Error()}
	}

	e := &Engine{
		desc:    d,
		maxRows: DefaultMaxRows,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}

	for _, n := range d.Nodes {
		switch l := n.Logic().(type) {
		case *topology.PredicateLogic:
			if _, err := newEvaluator(l.Expr, l.Vars); err != nil {
				return nil, expressionError(n.Name, l.Expr, err)
			}
		case *topology.FilterLogic:
			if l.Static && e.ref == nil {
				return nil, &RuntimeError{
					Code:    ErrCodeMissingReferenceData,
					Message: "static filter needs reference data",
					Node:    n.Name,
				}
			}
		}
	}
	return e, nil
}

// Descriptor returns the topology the engine runs.
func (e *Engine) Descriptor() *topology.Descriptor {
	return e.desc
}

// NodeStats counts the rows one node received and emitted during a run,
// summed over its instances.
type NodeStats struct {
	Node        string        `json:"node"`
	Kind        topology.Kind `json:"kind"`
	Parallelism int           `json:"parallelism"`
	RowsIn      int64         `json:"rows_in"`
	RowsOut     int64         `json:"rows_out"`
}

// Result is the outcome of a run.
//
// Rows are laid out by Vars, with duplicates removed for DISTINCT queries,
// sorted by their rendered values so equal runs produce equal results
// whatever the parallelism, and truncated to the query's LIMIT.
type Result struct {
	TopologyID string      `json:"topology_id"`
	Vars       []string    `json:"vars"`
	Rows       []Row       `json:"rows"`
	Stats      []NodeStats `json:"stats"`
}

// Strings renders every row in surface syntax.
func (r *Result) Strings() [][]string {
	out := make([][]string, len(r.Rows))
	for i, row := range r.Rows {
		out[i] = row.Strings()
	}
	return out
}

// Stat returns the stats of one node.
func (r *Result) Stat(node string) (NodeStats, bool) {
	for _, s := range r.Stats {
		if s.Node == node {
			return s, true
		}
	}
	return NodeStats{}, false
}

// Run streams facts through the topology and collects the output node's
// rows.
//
// The first error of any instance cancels the run and is returned.
func (e *Engine) Run(ctx context.Context, facts []Fact) (*Result, error) {
	start := time.Now()
	r, err := e.prepare()
	if err != nil {
		return nil, err
	}

	e.logger.Debug("topology run started",
		"topology", e.desc.ID,
		"facts", len(facts),
		"instances", r.instanceCount(),
	)

	err = r.execute(ctx, facts)
	r.closeInboxes()

	elapsed := time.Since(start)
	if e.metrics != nil {
		e.metrics.Duration.Observe(elapsed.Seconds())
		status := "ok"
		if err != nil {
			status = "error"
		}
		e.metrics.Runs.WithLabelValues(status).Inc()
	}
	if err != nil {
		e.logger.Warn("topology run failed", "topology", e.desc.ID, "error", err)
		return nil, err
	}

	res := r.result()
	e.logger.Info("topology run finished",
		"topology", e.desc.ID,
		"rows", len(res.Rows),
		"elapsed", elapsed,
	)
	return res, nil
}

// run is the private state of one Run call.
type run struct {
	engine    *Engine
	instances map[string][]*instance
	stats     map[string]*counters
	budget    *RowBudget
	output    *topology.Node
	collector *collector
}

type counters struct {
	in  atomic.Int64
	out atomic.Int64
}

// instance is one parallel copy of a node.
type instance struct {
	run       *run
	node      *topology.Node
	index     int
	inbox     *inbox
	expectEOS int
	routes    []*route
	op        operator
	stats     *counters
	collect   bool
}

func (e *Engine) prepare() (*run, error) {
	d := e.desc
	r := &run{
		engine:    e,
		instances: make(map[string][]*instance, len(d.Nodes)),
		stats:     make(map[string]*counters, len(d.Nodes)),
		budget:    NewRowBudget(e.maxRows),
		collector: &collector{},
	}
	r.output, _ = d.OutputNode()

	for i := range d.Nodes {
		n := &d.Nodes[i]
		stats := &counters{}
		r.stats[n.Name] = stats

		expect := 0
		for _, in := range d.Inputs(n.Name) {
			if up, ok := d.Node(in.From); ok {
				expect += up.Parallelism
			}
		}

		insts := make([]*instance, n.Parallelism)
		for j := range insts {
			inst := &instance{
				run:       r,
				node:      n,
				index:     j,
				inbox:     newInbox(),
				expectEOS: expect,
				stats:     stats,
				collect:   n.Name == d.Output,
			}
			if n.Kind != topology.KindSpout {
				op, err := e.newOperator(n, j)
				if err != nil {
					return nil, err
				}
				inst.op = op
			}
			insts[j] = inst
		}
		r.instances[n.Name] = insts
	}

	// Routes are per sending instance.
	for _, n := range d.Nodes {
		for _, inst := range r.instances[n.Name] {
			for _, edge := range d.Outputs(n.Name) {
				inst.routes = append(inst.routes, &route{
					edge:    edge,
					targets: r.instances[edge.To],
					next:    inst.index % len(r.instances[edge.To]),
				})
			}
		}
	}
	return r, nil
}

func (r *run) instanceCount() int {
	n := 0
	for _, insts := range r.instances {
		n += len(insts)
	}
	return n
}

func (r *run) execute(ctx context.Context, facts []Fact) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, n := range r.engine.desc.Nodes {
		for _, inst := range r.instances[n.Name] {
			inst := inst
			if n.Kind == topology.KindSpout {
				g.Go(func() error { return inst.spout(gctx, facts) })
				continue
			}
			g.Go(func() error { return inst.loop(gctx) })
		}
	}
	return g.Wait()
}

func (r *run) closeInboxes() {
	for _, insts := range r.instances {
		for _, inst := range insts {
			inst.inbox.Close()
		}
	}
}

func (r *run) result() *Result {
	res := &Result{
		TopologyID: r.engine.desc.ID,
		Rows:       r.collector.rows,
	}
	if r.output != nil {
		res.Vars = r.output.Schema()
		if t := r.output.Terminal; t != nil {
			res.Rows = finalize(res.Rows, t.Distinct, t.Limit)
		}
	}
	for _, n := range r.engine.desc.Nodes {
		s := r.stats[n.Name]
		res.Stats = append(res.Stats, NodeStats{
			Node:        n.Name,
			Kind:        n.Kind,
			Parallelism: n.Parallelism,
			RowsIn:      s.in.Load(),
			RowsOut:     s.out.Load(),
		})
	}
	return res
}

// spout emits this instance's share of facts to every downstream filter.
func (in *instance) spout(ctx context.Context, facts []Fact) error {
	p := in.node.Parallelism
	for i := in.index; i < len(facts); i += p {
		if err := ctx.Err(); err != nil {
			return err
		}
		f := facts[i]
		if m := in.run.engine.metrics; m != nil {
			m.FactsRead.Inc()
		}
		if err := in.emit(Row{f.Subject, f.Predicate, f.Object}); err != nil {
			return err
		}
	}
	in.finishDownstream()
	return nil
}

// loop processes the inbox until every upstream instance has finished, then
// flushes the operator and passes end of stream on.
func (in *instance) loop(ctx context.Context) error {
	received := 0
	for received < in.expectEOS {
		m, ok := in.inbox.TryDequeue()
		if !ok {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-in.inbox.Wait():
			}
			continue
		}
		if m.eos {
			received++
			continue
		}

		in.stats.in.Add(1)
		if met := in.run.engine.metrics; met != nil {
			met.RowsIn.WithLabelValues(in.node.Name).Inc()
		}
		if err := in.op.receive(m.from, m.row, in.emit); err != nil {
			return err
		}
	}

	if err := in.op.finish(ctx, in.emit); err != nil {
		return err
	}
	in.finishDownstream()
	return nil
}

func (in *instance) emit(row Row) error {
	if in.node.Kind != topology.KindSpout {
		if err := in.run.budget.Spend(in.node.Name); err != nil {
			return err
		}
	}
	in.stats.out.Add(1)
	if m := in.run.engine.metrics; m != nil {
		m.RowsOut.WithLabelValues(in.node.Name).Inc()
	}

	if in.collect {
		in.run.collector.add(row)
	}
	for _, rt := range in.routes {
		target := rt.pick(row)
		if !target.inbox.Enqueue(message{from: in.node.Name, row: row}) {
			return fmt.Errorf("node %s: inbox of %s[%d] is closed", in.node.Name, target.node.Name, target.index)
		}
	}
	return nil
}

// finishDownstream tells every instance of every downstream node that this
// instance is done.
func (in *instance) finishDownstream() {
	for _, rt := range in.routes {
		for _, target := range rt.targets {
			target.inbox.Enqueue(message{from: in.node.Name, eos: true})
		}
	}
}

// collector gathers the output node's rows from all of its instances.
type collector struct {
	mu   sync.Mutex
	rows []Row
}

func (c *collector) add(row Row) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rows = append(c.rows, row)
}

// finalize applies DISTINCT, the deterministic row order and LIMIT.
func finalize(rows []Row, distinct bool, limit int) []Row {
	seen := make(map[string]bool, len(rows))
	out := make([]Row, 0, len(rows))
	for _, row := range rows {
		if distinct {
			k := row.Key()
			if seen[k] {
				continue
			}
			seen[k] = true
		}
		out = append(out, row)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

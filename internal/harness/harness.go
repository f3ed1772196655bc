package harness

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/reteflow/internal/compiler"
	"github.com/roach88/reteflow/internal/engine"
	"github.com/roach88/reteflow/internal/sparql"
	"github.com/roach88/reteflow/internal/store"
	"github.com/roach88/reteflow/internal/testutil"
	"github.com/roach88/reteflow/internal/topology"
)

// Harness is the test execution engine.
// It runs scenarios against a private catalog with reproducible IDs.
type Harness struct {
	store  *store.Store
	ids    *testutil.SequenceGenerator
	logger *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory catalog for isolation.
//
// Execution flow:
//  1. Compile the query with the scenario's options
//  2. Store the descriptor and read it back from the catalog
//  3. Load reference facts into the catalog
//  4. Stream the facts through the stored topology
//  5. Evaluate the expect checks
//
// An error is returned only when the scenario itself is unusable (facts
// that do not parse, a catalog failure). Compile and runtime failures are
// recorded on the result and checked against expect.error.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		store:  st,
		ids:    testutil.NewSequenceGenerator(scenario.Name),
		logger: testutil.DiscardLogger(),
	}
	return h.run(context.Background(), scenario)
}

func (h *Harness) run(ctx context.Context, scenario *Scenario) (*Result, error) {
	result := NewResult()

	facts, err := sparql.ParseFacts(scenario.Facts)
	if err != nil {
		return nil, fmt.Errorf("facts: %w", err)
	}
	if scenario.Reference != "" {
		ref, err := sparql.ParseFacts(scenario.Reference)
		if err != nil {
			return nil, fmt.Errorf("reference: %w", err)
		}
		if _, err := h.store.WriteReferenceTriples(ctx, ref); err != nil {
			return nil, err
		}
	}

	compiled, err := compiler.BuildText(scenario.Query, h.compileOptions(scenario)...)
	if err != nil {
		h.fail(result, nil, scenario, err)
		return result, nil
	}

	if _, err := h.store.WriteTopology(ctx, compiled); err != nil {
		return nil, err
	}
	d, err := h.store.ReadTopology(ctx, compiled.ID)
	if err != nil {
		return nil, fmt.Errorf("read back topology %s: %w", compiled.ID, err)
	}
	result.TopologyID = d.ID
	result.Explain = topology.Explain(d)
	result.Descriptor = d

	opts := []engine.Option{
		engine.WithReferenceData(h.store),
		engine.WithLogger(h.logger),
	}
	if scenario.MaxRows > 0 {
		opts = append(opts, engine.WithMaxRows(scenario.MaxRows))
	}
	eng, err := engine.New(d, opts...)
	if err != nil {
		h.fail(result, d, scenario, err)
		return result, nil
	}

	res, err := eng.Run(ctx, facts)
	if err != nil {
		h.fail(result, d, scenario, err)
		return result, nil
	}

	result.Vars = res.Vars
	result.Stats = res.Stats
	for _, row := range res.Rows {
		result.Rows = append(result.Rows, DisplayRow(row))
	}

	for _, msg := range EvaluateExpect(result, d, scenario.Expect) {
		result.AddError(msg)
	}
	return result, nil
}

func (h *Harness) compileOptions(scenario *Scenario) []compiler.Option {
	opts := []compiler.Option{
		compiler.WithLogger(h.logger),
		compiler.WithIDGenerator(h.ids),
	}
	if scenario.Parallelism > 0 {
		opts = append(opts, compiler.WithParallelism(scenario.Parallelism))
	}
	if scenario.StrictJoins {
		opts = append(opts, compiler.WithStrictJoins())
	}
	if len(scenario.Static) > 0 {
		opts = append(opts, compiler.WithStaticPredicates(scenario.Static...))
	}
	return opts
}

// fail records a compile or runtime failure and evaluates the checks that
// still apply.
func (h *Harness) fail(result *Result, d *topology.Descriptor, scenario *Scenario, err error) {
	result.ErrorCode = FailureCode(err)
	if scenario.Expect.Error == "" {
		result.AddError(fmt.Sprintf("unexpected failure: %v", err))
		return
	}
	for _, msg := range EvaluateExpect(result, d, scenario.Expect) {
		result.AddError(msg)
	}
}

// FailureCode classifies a compile or runtime error by its code.
func FailureCode(err error) string {
	if code := compiler.ErrorCode(err); code != "" {
		return code
	}
	if code := engine.ErrorCode(err); code != "" {
		return string(code)
	}
	return "ERROR"
}

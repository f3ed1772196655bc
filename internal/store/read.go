package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/reteflow/internal/ir"
	"github.com/roach88/reteflow/internal/querysql"
	"github.com/roach88/reteflow/internal/topology"
)

// TopologySummary is one row of the catalog listing.
type TopologySummary struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	Output    string `json:"output"`
	QueryHash string `json:"query_hash"`
	Nodes     int    `json:"nodes"`
	Edges     int    `json:"edges"`
	Seq       int64  `json:"seq"`
}

// EdgeRecord is one stored edge.
type EdgeRecord struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Grouping    string `json:"grouping"`
	Parallelism int    `json:"parallelism"`
}

// ReadTopology returns the descriptor stored under id.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadTopology(ctx context.Context, id string) (*topology.Descriptor, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx, `SELECT descriptor FROM topologies WHERE id = ?`, id).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("read topology %s: %w", id, err)
	}
	return unmarshalDescriptor(blob)
}

// LatestTopology returns the most recently written descriptor.
// Returns sql.ErrNoRows if the catalog is empty.
func (s *Store) LatestTopology(ctx context.Context) (*topology.Descriptor, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx, `SELECT descriptor FROM topologies ORDER BY seq DESC LIMIT 1`).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("read latest topology: %w", err)
	}
	return unmarshalDescriptor(blob)
}

// ListTopologies returns every stored topology ordered by seq.
//
// Returns empty slice (not nil) if the catalog is empty.
func (s *Store) ListTopologies(ctx context.Context) ([]TopologySummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.name, t.output, t.query_hash, t.seq,
			(SELECT COUNT(*) FROM nodes n WHERE n.topology_id = t.id),
			(SELECT COUNT(*) FROM edges e WHERE e.topology_id = t.id)
		FROM topologies t
		ORDER BY t.seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query topologies: %w", err)
	}
	defer rows.Close()

	out := []TopologySummary{}
	for rows.Next() {
		var ts TopologySummary
		if err := rows.Scan(&ts.ID, &ts.Name, &ts.Output, &ts.QueryHash, &ts.Seq, &ts.Nodes, &ts.Edges); err != nil {
			return nil, fmt.Errorf("scan topology: %w", err)
		}
		out = append(out, ts)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate topologies: %w", err)
	}
	return out, nil
}

// ReadEdges returns the stored edges of a topology in declaration order.
func (s *Store) ReadEdges(ctx context.Context, id string) ([]EdgeRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT from_node, to_node, grouping, parallelism
		FROM edges
		WHERE topology_id = ?
		ORDER BY position ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query edges: %w", err)
	}
	defer rows.Close()

	out := []EdgeRecord{}
	for rows.Next() {
		var e EdgeRecord
		if err := rows.Scan(&e.From, &e.To, &e.Grouping, &e.Parallelism); err != nil {
			return nil, fmt.Errorf("scan edge: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate edges: %w", err)
	}
	return out, nil
}

// Lookup returns the reference facts matching the constants and repeated
// variables of fp, in insertion order. It satisfies engine.ReferenceData.
func (s *Store) Lookup(ctx context.Context, fp ir.FactPattern) ([]ir.Triple, error) {
	query, args, err := querysql.NewLookupCompiler().Compile(fp)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query reference triples: %w", err)
	}
	defer rows.Close()

	var out []ir.Triple
	for rows.Next() {
		var blob []byte
		if err := rows.Scan(&blob); err != nil {
			return nil, fmt.Errorf("scan reference triple: %w", err)
		}
		t, err := unmarshalTriple(blob)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reference triples: %w", err)
	}
	return out, nil
}

// CountReferenceTriples returns the number of stored reference facts.
func (s *Store) CountReferenceTriples(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reference_triples`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count reference triples: %w", err)
	}
	return n, nil
}

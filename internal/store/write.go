package store

import (
	"context"
	"fmt"

	"github.com/roach88/reteflow/internal/ir"
	"github.com/roach88/reteflow/internal/topology"
)

// WriteTopology stores a compiled descriptor with its nodes and edges.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - writing the same ID twice
// keeps the first version.
//
// All rows are written in one transaction. Topologies are numbered by seq in
// write order; seq is returned (the existing seq for a duplicate ID).
func (s *Store) WriteTopology(ctx context.Context, d *topology.Descriptor) (int64, error) {
	if d == nil || d.ID == "" {
		return 0, fmt.Errorf("write topology: descriptor ID is required")
	}

	blob, err := marshalDescriptor(d)
	if err != nil {
		return 0, fmt.Errorf("write topology: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	var existing int64
	err = tx.QueryRowContext(ctx, `SELECT seq FROM topologies WHERE id = ?`, d.ID).Scan(&existing)
	if err == nil {
		return existing, nil
	}

	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM topologies`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("write topology: next seq: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO topologies (id, name, query, query_hash, output, descriptor, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		d.ID,
		d.Name,
		d.Query,
		ir.QueryHash(d.Query),
		d.Output,
		blob,
		seq,
	)
	if err != nil {
		return 0, fmt.Errorf("write topology: %w", err)
	}

	for i, n := range d.Nodes {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO nodes (topology_id, position, name, kind, parallelism)
			VALUES (?, ?, ?, ?, ?)
		`, d.ID, i, n.Name, string(n.Kind), n.Parallelism)
		if err != nil {
			return 0, fmt.Errorf("write node %s: %w", n.Name, err)
		}
	}

	for i, e := range d.Edges {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO edges (topology_id, position, from_node, to_node, grouping, parallelism)
			VALUES (?, ?, ?, ?, ?, ?)
		`, d.ID, i, e.From, e.To, e.Grouping.String(), e.Parallelism)
		if err != nil {
			return 0, fmt.Errorf("write edge %s->%s: %w", e.From, e.To, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit topology: %w", err)
	}
	return seq, nil
}

// WriteReferenceTriples adds ground facts to the reference data. Duplicate
// facts are silently ignored. Returns the number of facts newly stored.
func (s *Store) WriteReferenceTriples(ctx context.Context, triples []ir.Triple) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO reference_triples (subject, predicate, object, triple)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(subject, predicate, object) DO NOTHING
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare reference insert: %w", err)
	}
	defer stmt.Close()

	added := 0
	for _, t := range triples {
		if !t.IsGround() {
			return 0, fmt.Errorf("write reference triple %s: not a ground fact", t)
		}
		blob, err := marshalTriple(t)
		if err != nil {
			return 0, err
		}
		res, err := stmt.ExecContext(ctx, t.Subject.String(), t.Predicate.String(), t.Object.String(), blob)
		if err != nil {
			return 0, fmt.Errorf("write reference triple %s: %w", t, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			added += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit reference triples: %w", err)
	}
	return added, nil
}

package store

import (
	"context"
	"fmt"

	"github.com/roach88/policygraph/internal/ir"
)

// WriteSnapshot records a graph under its content hash and returns the hash.
// Writing the same graph twice is a no-op.
func (s *Store) WriteSnapshot(ctx context.Context, g *ir.Graph) (string, error) {
	hash, err := ir.SnapshotHash(g)
	if err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	graphJSON, err := marshalGraph(g)
	if err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots (hash, name, graph, schema_version)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(hash) DO NOTHING
	`, hash, g.Name, graphJSON, ir.SchemaVersion)
	if err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	return hash, nil
}

// WritePass records a pass and its outputs in one transaction.
// The referenced snapshot must already be stored. Duplicate pass ids are
// ignored.
func (s *Store) WritePass(ctx context.Context, p ir.Pass) error {
	warnings, err := marshalWarnings(p.Warnings)
	if err != nil {
		return fmt.Errorf("write pass: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write pass: begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO passes (id, token, seq, snapshot_hash, status, warnings, engine_version)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, p.ID, p.Token, p.Seq, p.SnapshotHash, string(p.Status), warnings, p.EngineVersion)
	if err != nil {
		return fmt.Errorf("write pass: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil
	}

	for i, out := range p.Outputs {
		value, err := marshalValue(out.Value)
		if err != nil {
			return fmt.Errorf("write pass: output %s.%s: %w", out.Node, out.Port, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO pass_outputs (pass_id, ordinal, node_id, port, value, terminal)
			VALUES (?, ?, ?, ?, ?, ?)
		`, p.ID, i, out.Node, out.Port, value, out.Terminal)
		if err != nil {
			return fmt.Errorf("write pass: output %s.%s: %w", out.Node, out.Port, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write pass: commit: %w", err)
	}
	return nil
}

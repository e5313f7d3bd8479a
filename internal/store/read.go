package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/policygraph/internal/ir"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ReadSnapshot returns the graph stored under hash.
func (s *Store) ReadSnapshot(ctx context.Context, hash string) (*ir.Graph, error) {
	var graphJSON string
	err := s.db.QueryRowContext(ctx, `SELECT graph FROM snapshots WHERE hash = ?`, hash).Scan(&graphJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("read snapshot %s: %w", hash, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", hash, err)
	}
	return unmarshalGraph(graphJSON)
}

// ReadPasses returns every recorded pass with its outputs.
// Ordered by seq ASC, id ASC COLLATE BINARY.
// Returns an empty slice (not nil) when nothing is recorded.
func (s *Store) ReadPasses(ctx context.Context) ([]ir.Pass, error) {
	return s.queryPasses(ctx, `
		SELECT id, token, seq, snapshot_hash, status, warnings, engine_version
		FROM passes
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`)
}

// ReadPassesForSnapshot returns the passes evaluated over one snapshot.
func (s *Store) ReadPassesForSnapshot(ctx context.Context, hash string) ([]ir.Pass, error) {
	return s.queryPasses(ctx, `
		SELECT id, token, seq, snapshot_hash, status, warnings, engine_version
		FROM passes
		WHERE snapshot_hash = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, hash)
}

// ReadPass returns a single pass by id.
func (s *Store) ReadPass(ctx context.Context, id string) (ir.Pass, error) {
	passes, err := s.queryPasses(ctx, `
		SELECT id, token, seq, snapshot_hash, status, warnings, engine_version
		FROM passes
		WHERE id = ?
	`, id)
	if err != nil {
		return ir.Pass{}, err
	}
	if len(passes) == 0 {
		return ir.Pass{}, fmt.Errorf("read pass %s: %w", id, ErrNotFound)
	}
	return passes[0], nil
}

// LatestPass returns the pass with the highest seq.
func (s *Store) LatestPass(ctx context.Context) (ir.Pass, error) {
	passes, err := s.queryPasses(ctx, `
		SELECT id, token, seq, snapshot_hash, status, warnings, engine_version
		FROM passes
		ORDER BY seq DESC, id COLLATE BINARY DESC
		LIMIT 1
	`)
	if err != nil {
		return ir.Pass{}, err
	}
	if len(passes) == 0 {
		return ir.Pass{}, fmt.Errorf("latest pass: %w", ErrNotFound)
	}
	return passes[0], nil
}

func (s *Store) queryPasses(ctx context.Context, query string, args ...any) ([]ir.Pass, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query passes: %w", err)
	}

	passes := []ir.Pass{}
	for rows.Next() {
		p, err := scanPass(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		passes = append(passes, p)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate passes: %w", err)
	}
	// Close before the output queries: the store holds a single connection.
	rows.Close()

	for i := range passes {
		outputs, err := s.readOutputs(ctx, passes[i].ID)
		if err != nil {
			return nil, err
		}
		passes[i].Outputs = outputs
	}
	return passes, nil
}

func scanPass(rows *sql.Rows) (ir.Pass, error) {
	var (
		p        ir.Pass
		status   string
		warnings string
	)
	if err := rows.Scan(&p.ID, &p.Token, &p.Seq, &p.SnapshotHash, &status, &warnings, &p.EngineVersion); err != nil {
		return ir.Pass{}, fmt.Errorf("scan pass: %w", err)
	}
	p.Status = ir.PassStatus(status)
	ws, err := unmarshalWarnings(warnings)
	if err != nil {
		return ir.Pass{}, fmt.Errorf("pass %s: %w", p.ID, err)
	}
	p.Warnings = ws
	return p, nil
}

func (s *Store) readOutputs(ctx context.Context, passID string) ([]ir.PortValue, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT node_id, port, value, terminal
		FROM pass_outputs
		WHERE pass_id = ?
		ORDER BY ordinal ASC
	`, passID)
	if err != nil {
		return nil, fmt.Errorf("query outputs: %w", err)
	}
	defer rows.Close()

	outputs := []ir.PortValue{}
	for rows.Next() {
		var (
			pv    ir.PortValue
			value string
		)
		if err := rows.Scan(&pv.Node, &pv.Port, &value, &pv.Terminal); err != nil {
			return nil, fmt.Errorf("scan output: %w", err)
		}
		pv.Value, err = unmarshalValue(value)
		if err != nil {
			return nil, fmt.Errorf("pass %s output %s.%s: %w", passID, pv.Node, pv.Port, err)
		}
		outputs = append(outputs, pv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outputs: %w", err)
	}
	return outputs, nil
}

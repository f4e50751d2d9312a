package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	dbpkg "github.com/BrandonDHaskell/gatepass/internal/db"
	"github.com/BrandonDHaskell/gatepass/internal/gatepass/types"
)

type GateStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewGateStore(db *sql.DB, writer *dbpkg.Worker) *GateStore {
	return &GateStore{db: db, writer: writer}
}

func (s *GateStore) MarkSeen(ctx context.Context, gateID string, result types.ScanResult, at time.Time) error {
	if at.IsZero() {
		at = time.Now().UTC()
	}
	atMs := at.UTC().UnixMilli()

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO gates(gate_id, first_seen_ms, last_seen_ms, scan_count, last_result)
VALUES (?, ?, ?, 1, ?)
ON CONFLICT(gate_id) DO UPDATE SET
  last_seen_ms = MAX(last_seen_ms, excluded.last_seen_ms),
  scan_count   = scan_count + 1,
  last_result  = excluded.last_result;
`, gateID, atMs, atMs, string(result)); err != nil {
			return fmt.Errorf("MarkSeen %s: %w", gateID, err)
		}
		return nil
	})
}

func (s *GateStore) ListGates(ctx context.Context) ([]types.GateRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT gate_id, first_seen_ms, last_seen_ms, scan_count, last_result
FROM gates
ORDER BY gate_id;
`)
	if err != nil {
		return nil, fmt.Errorf("ListGates: %w", err)
	}
	defer rows.Close()

	var out []types.GateRecord
	for rows.Next() {
		var (
			g           types.GateRecord
			first, last int64
			result      string
		)
		if err := rows.Scan(&g.ID, &first, &last, &g.ScanCount, &result); err != nil {
			return nil, fmt.Errorf("ListGates scan: %w", err)
		}
		g.FirstSeen = time.UnixMilli(first).UTC()
		g.LastSeen = time.UnixMilli(last).UTC()
		g.LastResult = types.ScanResult(result)
		out = append(out, g)
	}
	return out, rows.Err()
}

package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/BrandonDHaskell/gatepass/internal/gatepass/types"
)

type GateStore struct {
	pool *pgxpool.Pool
}

func NewGateStore(pool *pgxpool.Pool) *GateStore {
	return &GateStore{pool: pool}
}

func (s *GateStore) MarkSeen(ctx context.Context, gateID string, result types.ScanResult, at time.Time) error {
	if at.IsZero() {
		at = time.Now().UTC()
	}
	if _, err := s.pool.Exec(ctx, `
		INSERT INTO gatepass_gates (gate_id, first_seen, last_seen, scan_count, last_result)
		VALUES ($1, $2, $2, 1, $3)
		ON CONFLICT (gate_id) DO UPDATE SET
			last_seen   = GREATEST(gatepass_gates.last_seen, EXCLUDED.last_seen),
			scan_count  = gatepass_gates.scan_count + 1,
			last_result = EXCLUDED.last_result
	`, gateID, at.UTC(), string(result)); err != nil {
		return fmt.Errorf("MarkSeen %s: %w", gateID, err)
	}
	return nil
}

func (s *GateStore) ListGates(ctx context.Context) ([]types.GateRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT gate_id, first_seen, last_seen, scan_count, last_result
		FROM gatepass_gates
		ORDER BY gate_id
	`)
	if err != nil {
		return nil, fmt.Errorf("ListGates: %w", err)
	}
	defer rows.Close()

	var out []types.GateRecord
	for rows.Next() {
		var (
			g      types.GateRecord
			result string
		)
		if err := rows.Scan(&g.ID, &g.FirstSeen, &g.LastSeen, &g.ScanCount, &result); err != nil {
			return nil, fmt.Errorf("ListGates scan: %w", err)
		}
		g.FirstSeen = g.FirstSeen.UTC()
		g.LastSeen = g.LastSeen.UTC()
		g.LastResult = types.ScanResult(result)
		out = append(out, g)
	}
	return out, rows.Err()
}

package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	dbpkg "github.com/BrandonDHaskell/gatepass/internal/db"
	"github.com/BrandonDHaskell/gatepass/internal/gatepass/types"
)

type ScanLogStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewScanLogStore(db *sql.DB, writer *dbpkg.Worker) *ScanLogStore {
	return &ScanLogStore{db: db, writer: writer}
}

func (s *ScanLogStore) AppendScan(ctx context.Context, e types.ScanLogEntry) error {
	if e.ID == "" {
		e.ID = ulid.Make().String()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	var tokenID, gateID any
	if e.TokenID != nil {
		tokenID = *e.TokenID
	}
	if e.GateID != "" {
		gateID = e.GateID
	}

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO scan_logs(scan_id, token_id, gate_id, scanned_at_ms, result, hint)
VALUES (?, ?, ?, ?, ?, ?);
`, e.ID, tokenID, gateID, e.Timestamp.UTC().UnixMilli(), string(e.Result), e.Hint); err != nil {
			return fmt.Errorf("AppendScan insert: %w", err)
		}
		return nil
	})
}

func (s *ScanLogStore) ListScans(ctx context.Context, tokenID string, limit int) ([]types.ScanLogEntry, error) {
	if limit <= 0 {
		limit = -1 // sqlite: no limit
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT scan_id, token_id, gate_id, scanned_at_ms, result, hint
FROM scan_logs
WHERE token_id = ?
ORDER BY scanned_at_ms DESC, scan_id DESC
LIMIT ?;
`, tokenID, limit)
	if err != nil {
		return nil, fmt.Errorf("ListScans: %w", err)
	}
	defer rows.Close()

	var out []types.ScanLogEntry
	for rows.Next() {
		var (
			e      types.ScanLogEntry
			tok    sql.NullString
			gate   sql.NullString
			atMs   int64
			result string
		)
		if err := rows.Scan(&e.ID, &tok, &gate, &atMs, &result, &e.Hint); err != nil {
			return nil, fmt.Errorf("ListScans scan: %w", err)
		}
		if tok.Valid {
			v := tok.String
			e.TokenID = &v
		}
		e.GateID = gate.String
		e.Timestamp = time.UnixMilli(atMs).UTC()
		e.Result = types.ScanResult(result)
		out = append(out, e)
	}
	return out, rows.Err()
}

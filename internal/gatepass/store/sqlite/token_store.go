package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	dbpkg "github.com/BrandonDHaskell/gatepass/internal/db"
	"github.com/BrandonDHaskell/gatepass/internal/gatepass/store"
	"github.com/BrandonDHaskell/gatepass/internal/gatepass/types"
)

type TokenStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewTokenStore(db *sql.DB, writer *dbpkg.Worker) *TokenStore {
	return &TokenStore{db: db, writer: writer}
}

const tokenColumns = `token_id, issued_at_ms, expires_at_ms, status, max_scans, scan_count, metadata_json, version`

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *TokenStore) InsertToken(ctx context.Context, rec types.TokenRecord) error {
	if rec.IssuedAt.IsZero() {
		rec.IssuedAt = time.Now().UTC()
	}
	meta, err := encodeMetadata(rec.Metadata)
	if err != nil {
		return fmt.Errorf("InsertToken: %w", err)
	}

	var expiresMs any
	if rec.ExpiresAt != nil {
		expiresMs = rec.ExpiresAt.UTC().UnixMilli()
	}
	issuedMs := rec.IssuedAt.UTC().UnixMilli()

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
INSERT OR IGNORE INTO tokens(
  token_id, issued_at_ms, expires_at_ms, status,
  max_scans, scan_count, metadata_json, version, updated_at_ms
) VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?);
`, rec.ID, issuedMs, expiresMs, string(rec.Status), rec.MaxScans, rec.ScanCount, meta, issuedMs)
		if err != nil {
			return fmt.Errorf("InsertToken: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return store.ErrTokenExists
		}
		return nil
	})
}

func (s *TokenStore) GetToken(ctx context.Context, id string) (types.TokenRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+tokenColumns+` FROM tokens WHERE token_id = ?;`, id)
	rec, err := scanToken(row)
	if err != nil {
		return types.TokenRecord{}, fmt.Errorf("GetToken: %w", err)
	}
	return rec, nil
}

// UpdateToken reads, mutates and writes the row inside one worker
// transaction.  The version predicate on the UPDATE catches a writer that
// bypassed the worker (another process on the same file).
func (s *TokenStore) UpdateToken(ctx context.Context, id string, fn store.UpdateFunc) (types.TokenRecord, error) {
	var out types.TokenRecord

	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `SELECT `+tokenColumns+` FROM tokens WHERE token_id = ?;`, id)
		prev, err := scanToken(row)
		if err != nil {
			return err
		}

		next := prev.Clone()
		changed, err := fn(&next)
		if err != nil {
			return err
		}
		if !changed {
			out = prev
			return nil
		}
		if err := store.CheckTransition(prev, next); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, `
UPDATE tokens
SET status        = ?,
    scan_count    = ?,
    version       = version + 1,
    updated_at_ms = ?
WHERE token_id = ? AND version = ?;
`, string(next.Status), next.ScanCount, time.Now().UTC().UnixMilli(), id, prev.Version)
		if err != nil {
			return fmt.Errorf("update token: %w", err)
		}
		if n, _ := res.RowsAffected(); n != 1 {
			return store.ErrWriteConflict
		}

		next.Version = prev.Version + 1
		out = next
		return nil
	})
	if err != nil {
		return types.TokenRecord{}, fmt.Errorf("UpdateToken: %w", err)
	}
	return out, nil
}

func (s *TokenStore) CountByStatus(ctx context.Context) (map[types.TokenStatus]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM tokens GROUP BY status;`)
	if err != nil {
		return nil, fmt.Errorf("CountByStatus: %w", err)
	}
	defer rows.Close()

	out := map[types.TokenStatus]int64{
		types.StatusActive:  0,
		types.StatusPassive: 0,
	}
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("CountByStatus scan: %w", err)
		}
		out[types.TokenStatus(status)] = n
	}
	return out, rows.Err()
}

func (s *TokenStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func scanToken(row rowScanner) (types.TokenRecord, error) {
	var (
		rec       types.TokenRecord
		issuedMs  int64
		expiresMs sql.NullInt64
		status    string
		meta      string
	)
	err := row.Scan(&rec.ID, &issuedMs, &expiresMs, &status, &rec.MaxScans, &rec.ScanCount, &meta, &rec.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return types.TokenRecord{}, store.ErrTokenNotFound
	}
	if err != nil {
		return types.TokenRecord{}, err
	}

	rec.IssuedAt = time.UnixMilli(issuedMs).UTC()
	if expiresMs.Valid {
		t := time.UnixMilli(expiresMs.Int64).UTC()
		rec.ExpiresAt = &t
	}
	rec.Status = types.TokenStatus(status)
	if rec.Metadata, err = decodeMetadata(meta); err != nil {
		return types.TokenRecord{}, err
	}
	return rec, nil
}

func encodeMetadata(m map[string]string) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encode metadata: %w", err)
	}
	return string(b), nil
}

func decodeMetadata(s string) (map[string]string, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "{}" {
		return nil, nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return m, nil
}

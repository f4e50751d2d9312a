// Package postgres stores tokens and scan logs in PostgreSQL.  Token updates
// lock the row with SELECT ... FOR UPDATE for the duration of the callback.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"

	"github.com/BrandonDHaskell/gatepass/internal/gatepass/store"
	"github.com/BrandonDHaskell/gatepass/internal/gatepass/types"
)

//go:embed schema.sql
var schemaSQL string

const uniqueViolation = "23505"

// EnsureSchema creates the tables if they do not exist.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

type TokenStore struct {
	pool *pgxpool.Pool
}

func NewTokenStore(pool *pgxpool.Pool) *TokenStore {
	return &TokenStore{pool: pool}
}

const tokenColumns = `token_id, issued_at, expires_at, status, max_scans, scan_count, metadata, version`

func (s *TokenStore) InsertToken(ctx context.Context, rec types.TokenRecord) error {
	if rec.IssuedAt.IsZero() {
		rec.IssuedAt = time.Now().UTC()
	}
	meta := rec.Metadata
	if meta == nil {
		meta = map[string]string{}
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO gatepass_tokens (
			token_id, issued_at, expires_at, status, max_scans, scan_count, metadata, version, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, 0, $2)
	`, rec.ID, rec.IssuedAt.UTC(), rec.ExpiresAt, string(rec.Status), rec.MaxScans, rec.ScanCount, meta)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return store.ErrTokenExists
	}
	if err != nil {
		return fmt.Errorf("InsertToken: %w", err)
	}
	return nil
}

func (s *TokenStore) GetToken(ctx context.Context, id string) (types.TokenRecord, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+tokenColumns+` FROM gatepass_tokens WHERE token_id = $1`, id)
	rec, err := scanToken(row)
	if err != nil {
		return types.TokenRecord{}, fmt.Errorf("GetToken: %w", err)
	}
	return rec, nil
}

func (s *TokenStore) UpdateToken(ctx context.Context, id string, fn store.UpdateFunc) (types.TokenRecord, error) {
	var out types.TokenRecord

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `SELECT `+tokenColumns+` FROM gatepass_tokens WHERE token_id = $1 FOR UPDATE`, id)
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

		tag, err := tx.Exec(ctx, `
			UPDATE gatepass_tokens
			SET status = $2, scan_count = $3, version = version + 1, updated_at = now()
			WHERE token_id = $1 AND version = $4
		`, id, string(next.Status), next.ScanCount, prev.Version)
		if err != nil {
			return fmt.Errorf("update token: %w", err)
		}
		if tag.RowsAffected() != 1 {
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
	rows, err := s.pool.Query(ctx, `SELECT status, COUNT(*) FROM gatepass_tokens GROUP BY status`)
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
	return s.pool.Ping(ctx)
}

func scanToken(row pgx.Row) (types.TokenRecord, error) {
	var (
		rec       types.TokenRecord
		expiresAt *time.Time
		status    string
		meta      map[string]string
	)
	err := row.Scan(&rec.ID, &rec.IssuedAt, &expiresAt, &status, &rec.MaxScans, &rec.ScanCount, &meta, &rec.Version)
	if errors.Is(err, pgx.ErrNoRows) {
		return types.TokenRecord{}, store.ErrTokenNotFound
	}
	if err != nil {
		return types.TokenRecord{}, err
	}

	rec.IssuedAt = rec.IssuedAt.UTC()
	if expiresAt != nil {
		t := expiresAt.UTC()
		rec.ExpiresAt = &t
	}
	rec.Status = types.TokenStatus(status)
	if len(meta) > 0 {
		rec.Metadata = meta
	}
	return rec, nil
}

type ScanLogStore struct {
	pool *pgxpool.Pool
}

func NewScanLogStore(pool *pgxpool.Pool) *ScanLogStore {
	return &ScanLogStore{pool: pool}
}

func (s *ScanLogStore) AppendScan(ctx context.Context, e types.ScanLogEntry) error {
	if e.ID == "" {
		e.ID = ulid.Make().String()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	var gateID *string
	if e.GateID != "" {
		gateID = &e.GateID
	}

	if _, err := s.pool.Exec(ctx, `
		INSERT INTO gatepass_scan_logs (scan_id, token_id, gate_id, scanned_at, result, hint)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, e.ID, e.TokenID, gateID, e.Timestamp.UTC(), string(e.Result), e.Hint); err != nil {
		return fmt.Errorf("AppendScan: %w", err)
	}
	return nil
}

func (s *ScanLogStore) ListScans(ctx context.Context, tokenID string, limit int) ([]types.ScanLogEntry, error) {
	var lim *int
	if limit > 0 {
		lim = &limit
	}

	rows, err := s.pool.Query(ctx, `
		SELECT scan_id, token_id, gate_id, scanned_at, result, hint
		FROM gatepass_scan_logs
		WHERE token_id = $1
		ORDER BY scanned_at DESC, scan_id DESC
		LIMIT $2
	`, tokenID, lim)
	if err != nil {
		return nil, fmt.Errorf("ListScans: %w", err)
	}
	defer rows.Close()

	var out []types.ScanLogEntry
	for rows.Next() {
		var (
			e      types.ScanLogEntry
			gate   *string
			result string
		)
		if err := rows.Scan(&e.ID, &e.TokenID, &gate, &e.Timestamp, &result, &e.Hint); err != nil {
			return nil, fmt.Errorf("ListScans scan: %w", err)
		}
		if gate != nil {
			e.GateID = *gate
		}
		e.Timestamp = e.Timestamp.UTC()
		e.Result = types.ScanResult(result)
		out = append(out, e)
	}
	return out, rows.Err()
}

package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// DevTokenID is the never-expiring token seeded in dev so a gate can be
// exercised without issuing anything first.
const DevTokenID = "dev-demo-token"

type SeedDevOptions struct {
	// MaxScans for the demo token.  Defaults to 1000.
	MaxScans int
}

// SeedDev inserts the demo token if it does not exist yet.  An existing row is
// left untouched so its scan history survives restarts.
func SeedDev(ctx context.Context, db *sql.DB, opt SeedDevOptions) error {
	if opt.MaxScans <= 0 {
		opt.MaxScans = 1000
	}
	now := time.Now().UTC().UnixMilli()

	if _, err := db.ExecContext(ctx, `
INSERT OR IGNORE INTO tokens(
  token_id, issued_at_ms, expires_at_ms, status,
  max_scans, scan_count, metadata_json, version, updated_at_ms
) VALUES (?, ?, NULL, 'active', ?, 0, '{"full_name":"Demo Visitor","role":"Visitor"}', 0, ?);
`, DevTokenID, now, opt.MaxScans, now); err != nil {
		return fmt.Errorf("seed token %s: %w", DevTokenID, err)
	}
	return nil
}

package sqlite_test

import (
	"context"
	"testing"
	"time"

	sqlitestore "github.com/BrandonDHaskell/gatepass/internal/gatepass/store/sqlite"
	"github.com/BrandonDHaskell/gatepass/internal/gatepass/types"
)

// ── MarkSeen / ListGates ─────────────────────────────────────────────────────

func TestGateStore_MarkSeenUpserts(t *testing.T) {
	conn := openTestDB(t)
	gs := sqlitestore.NewGateStore(conn, newTestWriter(t, conn))
	ctx := context.Background()

	t0 := time.Date(2026, 2, 15, 12, 0, 0, 0, time.UTC)
	if err := gs.MarkSeen(ctx, "north", types.ResultAllowed, t0); err != nil {
		t.Fatalf("MarkSeen: %v", err)
	}
	if err := gs.MarkSeen(ctx, "north", types.DeniedResult(types.ReasonPassive), t0.Add(time.Minute)); err != nil {
		t.Fatalf("MarkSeen: %v", err)
	}
	// An older timestamp arriving late must not move last_seen back.
	if err := gs.MarkSeen(ctx, "north", types.ResultAllowed, t0.Add(30*time.Second)); err != nil {
		t.Fatalf("MarkSeen: %v", err)
	}
	if err := gs.MarkSeen(ctx, "east", types.ResultAllowed, t0); err != nil {
		t.Fatalf("MarkSeen: %v", err)
	}

	gates, err := gs.ListGates(ctx)
	if err != nil {
		t.Fatalf("ListGates: %v", err)
	}
	if len(gates) != 2 {
		t.Fatalf("expected 2 gates, got %d", len(gates))
	}
	if gates[0].ID != "east" || gates[1].ID != "north" {
		t.Fatalf("expected gates ordered by id, got %q, %q", gates[0].ID, gates[1].ID)
	}

	north := gates[1]
	if north.ScanCount != 3 {
		t.Errorf("scan_count: expected 3, got %d", north.ScanCount)
	}
	if !north.FirstSeen.Equal(t0) {
		t.Errorf("first_seen: expected %v, got %v", t0, north.FirstSeen)
	}
	if !north.LastSeen.Equal(t0.Add(time.Minute)) {
		t.Errorf("last_seen: expected %v, got %v", t0.Add(time.Minute), north.LastSeen)
	}
	if north.LastResult != types.ResultAllowed {
		t.Errorf("last_result: expected allowed, got %q", north.LastResult)
	}
}

package store

import (
	"context"
	"time"

	"github.com/BrandonDHaskell/gatepass/internal/gatepass/types"
)

// GateStore remembers which gates have scanned and when.
type GateStore interface {
	// MarkSeen creates or updates the record for gateID.  LastSeen never
	// moves backwards.
	MarkSeen(ctx context.Context, gateID string, result types.ScanResult, at time.Time) error

	// ListGates returns every known gate ordered by id.
	ListGates(ctx context.Context) ([]types.GateRecord, error)
}

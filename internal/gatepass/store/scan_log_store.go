package store

import (
	"context"

	"github.com/BrandonDHaskell/gatepass/internal/gatepass/types"
)

// ScanLogStore persists verification attempts as an append-only audit log.
type ScanLogStore interface {
	AppendScan(ctx context.Context, entry types.ScanLogEntry) error

	// ListScans returns up to limit entries for tokenID, newest first.
	ListScans(ctx context.Context, tokenID string, limit int) ([]types.ScanLogEntry, error)
}

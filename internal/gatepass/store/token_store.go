package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/BrandonDHaskell/gatepass/internal/gatepass/types"
)

var (
	ErrTokenNotFound     = errors.New("token not found")
	ErrTokenExists       = errors.New("token already exists")
	ErrWriteConflict     = errors.New("token changed concurrently")
	ErrInvalidTransition = errors.New("invalid token transition")
)

// UpdateFunc mutates rec in place and reports whether anything changed.
// Returning an error aborts the update; nothing is persisted.
//
// Stores may call fn more than once for a single UpdateToken call (e.g. after
// an optimistic conflict), so fn must derive everything from rec.
type UpdateFunc func(rec *types.TokenRecord) (changed bool, err error)

// TokenStore persists TokenRecords.  UpdateToken is the only mutation path
// after insert and must apply read → fn → write as one atomic unit per id.
type TokenStore interface {
	InsertToken(ctx context.Context, rec types.TokenRecord) error
	GetToken(ctx context.Context, id string) (types.TokenRecord, error)
	UpdateToken(ctx context.Context, id string, fn UpdateFunc) (types.TokenRecord, error)
	CountByStatus(ctx context.Context) (map[types.TokenStatus]int64, error)
}

// Pinger is implemented by stores that can report backend reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// CheckTransition rejects updates that would break the record invariants:
// passive never reverts, scan_count never decreases or passes max_scans, and
// the immutable fields stay put.
func CheckTransition(prev, next types.TokenRecord) error {
	switch {
	case next.ID != prev.ID:
		return fmt.Errorf("%w: id changed", ErrInvalidTransition)
	case next.MaxScans != prev.MaxScans:
		return fmt.Errorf("%w: max_scans changed", ErrInvalidTransition)
	case !next.Status.Valid():
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, next.Status)
	case prev.Status == types.StatusPassive && next.Status != types.StatusPassive:
		return fmt.Errorf("%w: passive is terminal", ErrInvalidTransition)
	case next.ScanCount < prev.ScanCount:
		return fmt.Errorf("%w: scan_count decreased", ErrInvalidTransition)
	case next.ScanCount > next.MaxScans:
		return fmt.Errorf("%w: scan_count %d exceeds max_scans %d", ErrInvalidTransition, next.ScanCount, next.MaxScans)
	case next.ScanCount != prev.ScanCount && prev.Status != types.StatusActive:
		return fmt.Errorf("%w: scan recorded on passive token", ErrInvalidTransition)
	}
	return nil
}

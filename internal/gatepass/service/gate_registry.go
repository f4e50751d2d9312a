package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/BrandonDHaskell/gatepass/internal/gatepass/store"
	"github.com/BrandonDHaskell/gatepass/internal/gatepass/types"
)

// maxGateIDLen bounds the gate ids the registry will record.
const maxGateIDLen = 128

// GateRegistry notes which gates are scanning.  A nil registry is valid and
// records nothing.
type GateRegistry struct {
	store store.GateStore
}

func NewGateRegistry(st store.GateStore) *GateRegistry {
	return &GateRegistry{store: st}
}

// NoteSeen records a scan from gateID.  Blank ids are ignored.
func (r *GateRegistry) NoteSeen(ctx context.Context, gateID string, result types.ScanResult, at time.Time) error {
	if r == nil || r.store == nil {
		return nil
	}
	gateID = strings.TrimSpace(gateID)
	if gateID == "" {
		return nil
	}
	if len(gateID) > maxGateIDLen {
		return fmt.Errorf("gate id longer than %d bytes", maxGateIDLen)
	}
	return r.store.MarkSeen(ctx, gateID, result, at)
}

func (r *GateRegistry) List(ctx context.Context) (types.GatesResponse, error) {
	if r == nil || r.store == nil {
		return types.NewGatesResponse(nil), nil
	}
	gates, err := r.store.ListGates(ctx)
	if err != nil {
		return types.GatesResponse{}, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return types.NewGatesResponse(gates), nil
}

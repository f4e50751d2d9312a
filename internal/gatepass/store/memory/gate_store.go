package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/BrandonDHaskell/gatepass/internal/gatepass/types"
)

type GateStore struct {
	mu    sync.RWMutex
	gates map[string]types.GateRecord
}

func NewGateStore() *GateStore {
	return &GateStore{gates: make(map[string]types.GateRecord)}
}

func (s *GateStore) MarkSeen(_ context.Context, gateID string, result types.ScanResult, at time.Time) error {
	if at.IsZero() {
		at = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.gates[gateID]
	if !ok {
		g = types.GateRecord{ID: gateID, FirstSeen: at}
	}
	if at.After(g.LastSeen) {
		g.LastSeen = at
	}
	g.ScanCount++
	g.LastResult = result
	s.gates[gateID] = g
	return nil
}

func (s *GateStore) ListGates(_ context.Context) ([]types.GateRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.GateRecord, 0, len(s.gates))
	for _, g := range s.gates {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

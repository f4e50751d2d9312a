package memory

import (
	"context"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/BrandonDHaskell/gatepass/internal/gatepass/types"
)

// ScanLogStore is an in-memory append-only log of verification attempts.
// It is intended for use in tests and dev environments.
type ScanLogStore struct {
	mu      sync.Mutex
	entries []types.ScanLogEntry

	// FailWith, when set, is returned by AppendScan instead of recording.
	FailWith error
}

func NewScanLogStore() *ScanLogStore {
	return &ScanLogStore{}
}

func (s *ScanLogStore) AppendScan(_ context.Context, entry types.ScanLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return s.FailWith
	}
	if entry.ID == "" {
		entry.ID = ulid.Make().String()
	}
	s.entries = append(s.entries, entry)
	return nil
}

func (s *ScanLogStore) ListScans(_ context.Context, tokenID string, limit int) ([]types.ScanLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []types.ScanLogEntry
	for i := len(s.entries) - 1; i >= 0; i-- {
		e := s.entries[i]
		if e.TokenID == nil || *e.TokenID != tokenID {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// Entries returns a copy of all recorded entries.  Test-only helper.
func (s *ScanLogStore) Entries() []types.ScanLogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.ScanLogEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

package memory

import (
	"context"
	"sync"
	"time"

	"github.com/BrandonDHaskell/gatepass/internal/gatepass/store"
	"github.com/BrandonDHaskell/gatepass/internal/gatepass/types"
)

// TokenStore is an in-memory TokenStore.  One mutex guards the whole map, so
// an UpdateToken callback runs with every other writer excluded.
type TokenStore struct {
	mu   sync.RWMutex
	data map[string]types.TokenRecord
}

func NewTokenStore() *TokenStore {
	return &TokenStore{
		data: make(map[string]types.TokenRecord),
	}
}

func (s *TokenStore) InsertToken(_ context.Context, rec types.TokenRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data[rec.ID]; ok {
		return store.ErrTokenExists
	}
	if rec.IssuedAt.IsZero() {
		rec.IssuedAt = time.Now().UTC()
	}
	s.data[rec.ID] = rec.Clone()
	return nil
}

func (s *TokenStore) GetToken(_ context.Context, id string) (types.TokenRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.data[id]
	if !ok {
		return types.TokenRecord{}, store.ErrTokenNotFound
	}
	return rec.Clone(), nil
}

func (s *TokenStore) UpdateToken(_ context.Context, id string, fn store.UpdateFunc) (types.TokenRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.data[id]
	if !ok {
		return types.TokenRecord{}, store.ErrTokenNotFound
	}

	next := prev.Clone()
	changed, err := fn(&next)
	if err != nil {
		return types.TokenRecord{}, err
	}
	if !changed {
		return prev.Clone(), nil
	}
	if err := store.CheckTransition(prev, next); err != nil {
		return types.TokenRecord{}, err
	}

	next.Version = prev.Version + 1
	s.data[id] = next
	return next.Clone(), nil
}

func (s *TokenStore) CountByStatus(_ context.Context) (map[types.TokenStatus]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := map[types.TokenStatus]int64{
		types.StatusActive:  0,
		types.StatusPassive: 0,
	}
	for _, rec := range s.data {
		out[rec.Status]++
	}
	return out, nil
}

// Ping always succeeds; it exists so health checks treat all stores alike.
func (s *TokenStore) Ping(context.Context) error { return nil }

// Len returns the number of stored tokens.  Test-only helper.
func (s *TokenStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Package catalog resolves loot-box ids to their item pools. Pool order is
// the stable order items were declared in, which the selector's cumulative
// walk depends on.
package catalog

import (
	"context"
	"errors"
	"sync"

	"github.com/crateclash/battle-backend/internal/engine"
)

var ErrUnknownBox = errors.New("unknown loot box")

type Provider interface {
	ItemPool(ctx context.Context, lootBoxID string) ([]engine.PoolEntry, error)
}

// Static serves pools from memory; used in tests and for local seeding.
type Static struct {
	mu    sync.RWMutex
	pools map[string][]engine.PoolEntry
}

func NewStatic() *Static {
	return &Static{pools: make(map[string][]engine.PoolEntry)}
}

func (s *Static) Put(lootBoxID string, pool []engine.PoolEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pools[lootBoxID] = append([]engine.PoolEntry(nil), pool...)
}

func (s *Static) ItemPool(_ context.Context, lootBoxID string) ([]engine.PoolEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pool, ok := s.pools[lootBoxID]
	if !ok {
		return nil, ErrUnknownBox
	}
	return append([]engine.PoolEntry(nil), pool...), nil
}

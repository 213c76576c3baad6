package pool

import (
	"context"
	"sort"
	"sync"

	sdkmath "cosmossdk.io/math"

	"github.com/congo-pay/sharevault/internal/asset"
)

type memoryStore struct {
	mu     sync.RWMutex
	totals map[asset.ID]sdkmath.Uint
}

// NewMemoryStore constructs an in-memory pool store.
func NewMemoryStore() Store {
	return &memoryStore{totals: make(map[asset.ID]sdkmath.Uint)}
}

func (s *memoryStore) TotalShares(_ context.Context, id asset.ID) (sdkmath.Uint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.totals[id]; ok {
		return v, nil
	}
	return sdkmath.ZeroUint(), nil
}

func (s *memoryStore) SetTotalShares(_ context.Context, id asset.ID, total sdkmath.Uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totals[id] = total
	return nil
}

func (s *memoryStore) Assets(_ context.Context) ([]asset.ID, error) {
	s.mu.RLock()
	ids := make([]asset.ID, 0, len(s.totals))
	for id := range s.totals {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids, nil
}

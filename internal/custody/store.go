package custody

import (
	"context"
	"sync"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"github.com/congo-pay/sharevault/internal/asset"
)

// Store persists external balances and token approvals. Chain serializes all
// writes, so implementations only need to be safe for concurrent reads.
type Store interface {
	Balance(ctx context.Context, holder common.Address, id asset.ID) (sdkmath.Uint, error)
	SetBalance(ctx context.Context, holder common.Address, id asset.ID, amount sdkmath.Uint) error
	Approval(ctx context.Context, owner, spender common.Address, id asset.ID) (sdkmath.Uint, error)
	SetApproval(ctx context.Context, owner, spender common.Address, id asset.ID, amount sdkmath.Uint) error
}

type holding struct {
	holder common.Address
	asset  asset.ID
}

type approval struct {
	owner   common.Address
	spender common.Address
	asset   asset.ID
}

type memoryStore struct {
	mu        sync.RWMutex
	balances  map[holding]sdkmath.Uint
	approvals map[approval]sdkmath.Uint
}

// NewMemoryStore returns an in-process Store.
func NewMemoryStore() Store {
	return &memoryStore{
		balances:  make(map[holding]sdkmath.Uint),
		approvals: make(map[approval]sdkmath.Uint),
	}
}

func (s *memoryStore) Balance(_ context.Context, holder common.Address, id asset.ID) (sdkmath.Uint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.balances[holding{holder, id}]; ok {
		return v, nil
	}
	return sdkmath.ZeroUint(), nil
}

func (s *memoryStore) SetBalance(_ context.Context, holder common.Address, id asset.ID, amount sdkmath.Uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if amount.IsZero() {
		delete(s.balances, holding{holder, id})
		return nil
	}
	s.balances[holding{holder, id}] = amount
	return nil
}

func (s *memoryStore) Approval(_ context.Context, owner, spender common.Address, id asset.ID) (sdkmath.Uint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.approvals[approval{owner, spender, id}]; ok {
		return v, nil
	}
	return sdkmath.ZeroUint(), nil
}

func (s *memoryStore) SetApproval(_ context.Context, owner, spender common.Address, id asset.ID, amount sdkmath.Uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if amount.IsZero() {
		delete(s.approvals, approval{owner, spender, id})
		return nil
	}
	s.approvals[approval{owner, spender, id}] = amount
	return nil
}

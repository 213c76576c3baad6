package ledger

import (
	"context"
	"sync"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/congo-pay/sharevault/internal/asset"
	"github.com/congo-pay/sharevault/internal/sharemath"
)

type balanceKey struct {
	owner common.Address
	asset asset.ID
}

type allowanceKey struct {
	owner   common.Address
	spender common.Address
	asset   asset.ID
}

type inMemoryLedger struct {
	mu         sync.RWMutex
	balances   map[balanceKey]sdkmath.Uint
	allowances map[allowanceKey]sdkmath.Uint
}

// NewInMemory creates a concurrency-safe in-memory ledger useful for unit tests
// and single-node development.
func NewInMemory() Ledger {
	return &inMemoryLedger{
		balances:   make(map[balanceKey]sdkmath.Uint),
		allowances: make(map[allowanceKey]sdkmath.Uint),
	}
}

func (l *inMemoryLedger) balance(key balanceKey) sdkmath.Uint {
	if v, ok := l.balances[key]; ok {
		return v
	}
	return sdkmath.ZeroUint()
}

func (l *inMemoryLedger) allowance(key allowanceKey) sdkmath.Uint {
	if v, ok := l.allowances[key]; ok {
		return v
	}
	return sdkmath.ZeroUint()
}

func (l *inMemoryLedger) BalanceOf(_ context.Context, owner common.Address, id asset.ID) (sdkmath.Uint, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balance(balanceKey{owner, id}), nil
}

func (l *inMemoryLedger) TotalSupply(_ context.Context, id asset.ID) (sdkmath.Uint, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	total := sdkmath.ZeroUint()
	for key, v := range l.balances {
		if key.asset == id {
			total = total.Add(v)
		}
	}
	return total, nil
}

func (l *inMemoryLedger) Allowance(_ context.Context, owner, spender common.Address, id asset.ID) (sdkmath.Uint, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.allowance(allowanceKey{owner, spender, id}), nil
}

func (l *inMemoryLedger) Approve(_ context.Context, owner, spender common.Address, id asset.ID, amount sdkmath.Uint) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.allowances[allowanceKey{owner, spender, id}] = amount
	return nil
}

func (l *inMemoryLedger) Mint(_ context.Context, to common.Address, id asset.ID, amount sdkmath.Uint) (sdkmath.Uint, error) {
	if amount.IsZero() {
		return sdkmath.ZeroUint(), ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	key := balanceKey{to, id}
	next, err := sharemath.CheckedAdd(l.balance(key), amount)
	if err != nil {
		return sdkmath.ZeroUint(), err
	}
	l.balances[key] = next
	return next, nil
}

func (l *inMemoryLedger) Burn(_ context.Context, from common.Address, id asset.ID, amount sdkmath.Uint) (sdkmath.Uint, error) {
	if amount.IsZero() {
		return sdkmath.ZeroUint(), ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	key := balanceKey{from, id}
	current := l.balance(key)
	if current.LT(amount) {
		return sdkmath.ZeroUint(), ErrInsufficientBalance
	}
	next := current.Sub(amount)
	l.balances[key] = next
	return next, nil
}

func (l *inMemoryLedger) Transfer(_ context.Context, from, to common.Address, id asset.ID, amount sdkmath.Uint) (TransferResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.move(from, to, id, amount)
}

func (l *inMemoryLedger) TransferFrom(_ context.Context, spender, from, to common.Address, id asset.ID, amount sdkmath.Uint) (TransferResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := allowanceKey{from, spender, id}
	allowed := l.allowance(key)
	limited := spender != from && !sharemath.IsUnlimited(allowed)
	if limited && allowed.LT(amount) {
		return TransferResult{}, ErrInsufficientAllowance
	}
	res, err := l.move(from, to, id, amount)
	if err != nil {
		return TransferResult{}, err
	}
	if limited {
		l.allowances[key] = allowed.Sub(amount)
	}
	return res, nil
}

// move must be called with the write lock held.
func (l *inMemoryLedger) move(from, to common.Address, id asset.ID, amount sdkmath.Uint) (TransferResult, error) {
	if amount.IsZero() {
		return TransferResult{}, ErrInvalidAmount
	}
	fromKey, toKey := balanceKey{from, id}, balanceKey{to, id}
	fromBalance := l.balance(fromKey)
	if fromBalance.LT(amount) {
		return TransferResult{}, ErrInsufficientBalance
	}
	fromBalance = fromBalance.Sub(amount)
	l.balances[fromKey] = fromBalance

	// Self transfers leave the balance unchanged.
	toBalance, err := sharemath.CheckedAdd(l.balance(toKey), amount)
	if err != nil {
		l.balances[fromKey] = fromBalance.Add(amount)
		return TransferResult{}, err
	}
	l.balances[toKey] = toBalance

	return TransferResult{
		TransactionID: PostingTransfer + ":" + uuid.NewString(),
		FromBalance:   l.balance(fromKey),
		ToBalance:     toBalance,
	}, nil
}

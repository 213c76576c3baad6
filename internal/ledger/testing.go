package ledger

import (
	"context"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"github.com/congo-pay/sharevault/internal/asset"
)

// SeedBalance is a test helper that overwrites an owner's share balance when
// using the in-memory ledger. It bypasses pool accounting on purpose.
func SeedBalance(l Ledger, owner common.Address, id asset.ID, amount sdkmath.Uint) {
	if mem, ok := l.(*inMemoryLedger); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		mem.balances[balanceKey{owner, id}] = amount
	}
}

// SumBalances totals every owner's units of id.
func SumBalances(l Ledger, id asset.ID) sdkmath.Uint {
	total, err := l.TotalSupply(context.Background(), id)
	if err != nil {
		return sdkmath.ZeroUint()
	}
	return total
}

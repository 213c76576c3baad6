// Package pool keeps the per-asset share supply. Custodied balances are not
// stored here; they are read live from the custodian.
package pool

import (
	"context"

	sdkmath "cosmossdk.io/math"

	"github.com/congo-pay/sharevault/internal/asset"
)

// Store persists totalShares per asset. A missing asset reads as zero, so pools
// come into existence on first deposit and are never removed.
type Store interface {
	TotalShares(ctx context.Context, id asset.ID) (sdkmath.Uint, error)
	SetTotalShares(ctx context.Context, id asset.ID, total sdkmath.Uint) error
	Assets(ctx context.Context) ([]asset.ID, error)
}

package vault

import (
	"context"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"github.com/congo-pay/sharevault/internal/asset"
	"github.com/congo-pay/sharevault/internal/ledger"
	"github.com/congo-pay/sharevault/internal/sharemath"
)

// authorize lets caller redeem shares of owner. Owners need no allowance; an
// unlimited allowance is never decremented. Runs inside the vault frame, so the
// check and the decrement cannot be split by another call.
func (s *Service) authorize(ctx context.Context, f *frame, owner, caller common.Address, id asset.ID, shares sdkmath.Uint) error {
	if caller == owner {
		return nil
	}
	allowed, err := s.ledger.Allowance(ctx, owner, caller, id)
	if err != nil {
		return err
	}
	if sharemath.IsUnlimited(allowed) {
		return nil
	}
	if allowed.LT(shares) {
		return fmt.Errorf("%w: %s approved, %s requested", ledger.ErrInsufficientAllowance, allowed, shares)
	}
	if err := s.ledger.Approve(ctx, owner, caller, id, allowed.Sub(shares)); err != nil {
		return err
	}
	f.record(func(ctx context.Context) error { return s.ledger.Approve(ctx, owner, caller, id, allowed) })
	return nil
}

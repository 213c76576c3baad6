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

// ShareBalance returns owner's shares of id.
func (s *Service) ShareBalance(ctx context.Context, owner common.Address, id asset.ID) (sdkmath.Uint, error) {
	var bal sdkmath.Uint
	err := s.read(ctx, func(ctx context.Context) (err error) {
		bal, err = s.ledger.BalanceOf(ctx, owner, id)
		return err
	})
	return bal, err
}

// Allowance returns how many of owner's shares spender may redeem or move.
func (s *Service) Allowance(ctx context.Context, owner, spender common.Address, id asset.ID) (sdkmath.Uint, error) {
	var allowed sdkmath.Uint
	err := s.read(ctx, func(ctx context.Context) (err error) {
		allowed, err = s.ledger.Allowance(ctx, owner, spender, id)
		return err
	})
	return allowed, err
}

// Approve sets spender's allowance over owner's shares of id.
func (s *Service) Approve(ctx context.Context, owner, spender common.Address, id asset.ID, amount sdkmath.Uint) error {
	amount = sharemath.OrZero(amount)
	return s.atomically(ctx, "approve", func(ctx context.Context, f *frame) error {
		prev, err := s.ledger.Allowance(ctx, owner, spender, id)
		if err != nil {
			return err
		}
		if err := s.ledger.Approve(ctx, owner, spender, id, amount); err != nil {
			return err
		}
		f.record(func(ctx context.Context) error { return s.ledger.Approve(ctx, owner, spender, id, prev) })
		return nil
	})
}

// TransferShares moves shares between owners. Pool totals are unaffected.
// When caller is not from, caller's allowance is consumed.
func (s *Service) TransferShares(ctx context.Context, caller, from, to common.Address, id asset.ID, shares sdkmath.Uint) (ledger.TransferResult, error) {
	shares = sharemath.OrZero(shares)
	var res ledger.TransferResult
	err := s.atomically(ctx, "transfer", func(ctx context.Context, f *frame) error {
		prevAllowance, err := s.ledger.Allowance(ctx, from, caller, id)
		if err != nil {
			return err
		}
		if caller == from {
			res, err = s.ledger.Transfer(ctx, from, to, id, shares)
		} else {
			res, err = s.ledger.TransferFrom(ctx, caller, from, to, id, shares)
		}
		if err != nil {
			return fmt.Errorf("transfer shares: %w", err)
		}
		f.record(func(ctx context.Context) error {
			if _, err := s.ledger.Transfer(ctx, to, from, id, shares); err != nil {
				return err
			}
			if caller == from {
				return nil
			}
			return s.ledger.Approve(ctx, from, caller, id, prevAllowance)
		})
		return nil
	})
	return res, err
}

// ReceiveNative accepts unsolicited native value. It mints nothing, so it
// raises the native pool's exchange rate for everyone holding native shares
// and for every later depositor.
func (s *Service) ReceiveNative(ctx context.Context, from common.Address, amount sdkmath.Uint) error {
	amount = sharemath.OrZero(amount)
	return s.atomically(ctx, "receive", func(ctx context.Context, f *frame) error {
		return s.custody.Receive(ctx, from, amount)
	})
}

package vault

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/congo-pay/sharevault/internal/asset"
	"github.com/congo-pay/sharevault/internal/events"
	"github.com/congo-pay/sharevault/internal/sharemath"
)

// RedeemInput captures a redeem call. Caller may differ from Owner when it
// holds an allowance over Owner's shares.
type RedeemInput struct {
	Caller   common.Address
	Asset    asset.ID
	Shares   sdkmath.Uint
	Receiver common.Address
	Owner    common.Address
}

// RedeemResult describes a committed redemption.
type RedeemResult struct {
	Amount sdkmath.Uint
	Event  events.Record
}

// Redeem burns the owner's shares and pays the receiver their value. Shares
// are burned and totals updated before the payout, so a receiver re-entering
// the vault during the payout sees the redemption already applied.
func (s *Service) Redeem(ctx context.Context, in RedeemInput) (RedeemResult, error) {
	in.Shares = sharemath.OrZero(in.Shares)

	var res RedeemResult
	err := s.atomically(ctx, "redeem", func(ctx context.Context, f *frame) error {
		var err error
		res, err = s.redeem(ctx, f, in)
		return err
	})
	if err != nil {
		return RedeemResult{}, err
	}

	s.logger.Info("vault.redeem",
		slog.String("asset", in.Asset.String()),
		slog.String("caller", in.Caller.Hex()),
		slog.String("owner", in.Owner.Hex()),
		slog.String("receiver", in.Receiver.Hex()),
		slog.String("shares", in.Shares.String()),
		slog.String("amount", res.Amount.String()),
	)
	return res, nil
}

func (s *Service) redeem(ctx context.Context, f *frame, in RedeemInput) (RedeemResult, error) {
	state, err := s.poolState(ctx, in.Asset)
	if err != nil {
		return RedeemResult{}, err
	}
	amount, err := sharemath.ConvertToAssets(state.TotalShares, state.TotalAssets, in.Shares)
	if err != nil {
		return RedeemResult{}, err
	}

	// Redeeming nothing pays nothing but is still a withdrawal.
	if !in.Shares.IsZero() {
		if err := s.authorize(ctx, f, in.Owner, in.Caller, in.Asset, in.Shares); err != nil {
			return RedeemResult{}, err
		}
		if err := s.subShares(ctx, f, in.Asset, in.Shares); err != nil {
			return RedeemResult{}, err
		}
		if err := s.burn(ctx, f, in.Owner, in.Asset, in.Shares); err != nil {
			return RedeemResult{}, err
		}
	}

	rec := events.Record{
		ID:       uuid.NewString(),
		Kind:     events.KindWithdraw,
		Caller:   in.Caller,
		Receiver: in.Receiver,
		Owner:    in.Owner,
		Asset:    in.Asset,
		Amount:   amount,
		Shares:   in.Shares,
		At:       time.Now().UTC(),
	}
	f.emit(rec)

	// Everything above is final before control leaves the vault.
	if err := s.custody.Push(ctx, in.Asset, in.Receiver, amount); err != nil {
		return RedeemResult{}, fmt.Errorf("push %s: %w", in.Asset, err)
	}
	return RedeemResult{Amount: amount, Event: rec}, nil
}

func (s *Service) subShares(ctx context.Context, f *frame, id asset.ID, shares sdkmath.Uint) error {
	prev, err := s.pools.TotalShares(ctx, id)
	if err != nil {
		return err
	}
	next, err := sharemath.CheckedSub(prev, shares)
	if err != nil {
		return fmt.Errorf("total shares of %s: %w", id, err)
	}
	if err := s.pools.SetTotalShares(ctx, id, next); err != nil {
		return err
	}
	f.record(func(ctx context.Context) error { return s.pools.SetTotalShares(ctx, id, prev) })
	return nil
}

func (s *Service) burn(ctx context.Context, f *frame, from common.Address, id asset.ID, shares sdkmath.Uint) error {
	if _, err := s.ledger.Burn(ctx, from, id, shares); err != nil {
		return fmt.Errorf("burn shares: %w", err)
	}
	f.record(func(ctx context.Context) error {
		_, err := s.ledger.Mint(ctx, from, id, shares)
		return err
	})
	return nil
}

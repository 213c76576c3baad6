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

// DepositInput captures a deposit call. Value is the native currency sent
// along with the call; it must equal Amount for native deposits and be zero
// for token deposits.
type DepositInput struct {
	Caller   common.Address
	Asset    asset.ID
	Amount   sdkmath.Uint
	Receiver common.Address
	Value    sdkmath.Uint
}

// DepositResult describes a committed deposit.
type DepositResult struct {
	Shares sdkmath.Uint
	Event  events.Record
}

// Deposit moves amount of the asset into the vault and mints shares to the
// receiver at the rate observed when the call starts.
func (s *Service) Deposit(ctx context.Context, in DepositInput) (DepositResult, error) {
	in.Amount = sharemath.OrZero(in.Amount)
	in.Value = sharemath.OrZero(in.Value)

	var res DepositResult
	err := s.atomically(ctx, "deposit", func(ctx context.Context, f *frame) error {
		var err error
		res, err = s.deposit(ctx, f, in)
		return err
	})
	if err != nil {
		return DepositResult{}, err
	}

	s.logger.Info("vault.deposit",
		slog.String("asset", in.Asset.String()),
		slog.String("caller", in.Caller.Hex()),
		slog.String("receiver", in.Receiver.Hex()),
		slog.String("amount", in.Amount.String()),
		slog.String("shares", res.Shares.String()),
	)
	return res, nil
}

func (s *Service) deposit(ctx context.Context, f *frame, in DepositInput) (DepositResult, error) {
	// Native value is credited before the body runs, as the host would.
	if in.Asset.IsNative() {
		if err := s.custody.Receive(ctx, in.Caller, in.Value); err != nil {
			return DepositResult{}, fmt.Errorf("receive native value: %w", err)
		}
		if !in.Value.Equal(in.Amount) {
			return DepositResult{}, fmt.Errorf("%w: sent %s, stated %s", ErrIncorrectAmount, in.Value, in.Amount)
		}
	} else if !in.Value.IsZero() {
		return DepositResult{}, fmt.Errorf("%w: native value sent with token deposit", ErrIncorrectAmount)
	}

	shares, err := s.depositShares(ctx, in)
	if err != nil {
		return DepositResult{}, err
	}
	if shares.IsZero() {
		return DepositResult{}, ErrZeroShares
	}

	if !in.Asset.IsNative() {
		if err := s.custody.Pull(ctx, in.Asset, in.Caller, in.Amount); err != nil {
			return DepositResult{}, fmt.Errorf("pull %s: %w", in.Asset, err)
		}
	}

	if err := s.addShares(ctx, f, in.Asset, shares); err != nil {
		return DepositResult{}, err
	}
	if err := s.mint(ctx, f, in.Receiver, in.Asset, shares); err != nil {
		return DepositResult{}, err
	}

	rec := events.Record{
		ID:     uuid.NewString(),
		Kind:   events.KindDeposit,
		Caller: in.Caller,
		Owner:  in.Receiver,
		Asset:  in.Asset,
		Amount: in.Amount,
		Shares: shares,
		At:     time.Now().UTC(),
	}
	f.emit(rec)
	return DepositResult{Shares: shares, Event: rec}, nil
}

// depositShares prices the deposit. For native deposits the vault balance
// already contains the received value; BasisPreReceipt takes it back out.
func (s *Service) depositShares(ctx context.Context, in DepositInput) (sdkmath.Uint, error) {
	state, err := s.poolState(ctx, in.Asset)
	if err != nil {
		return sdkmath.ZeroUint(), err
	}
	totalAssets := state.TotalAssets
	if in.Asset.IsNative() && s.opts.NativeBasis == BasisPreReceipt {
		if totalAssets, err = sharemath.CheckedSub(totalAssets, in.Value); err != nil {
			return sdkmath.ZeroUint(), err
		}
	}
	return sharemath.ConvertToShares(state.TotalShares, totalAssets, in.Amount)
}

func (s *Service) addShares(ctx context.Context, f *frame, id asset.ID, shares sdkmath.Uint) error {
	prev, err := s.pools.TotalShares(ctx, id)
	if err != nil {
		return err
	}
	next, err := sharemath.CheckedAdd(prev, shares)
	if err != nil {
		return fmt.Errorf("total shares of %s: %w", id, err)
	}
	if err := s.pools.SetTotalShares(ctx, id, next); err != nil {
		return err
	}
	f.record(func(ctx context.Context) error { return s.pools.SetTotalShares(ctx, id, prev) })
	return nil
}

func (s *Service) mint(ctx context.Context, f *frame, to common.Address, id asset.ID, shares sdkmath.Uint) error {
	if _, err := s.ledger.Mint(ctx, to, id, shares); err != nil {
		return fmt.Errorf("mint shares: %w", err)
	}
	f.record(func(ctx context.Context) error {
		_, err := s.ledger.Burn(ctx, to, id, shares)
		return err
	})
	return nil
}

// Package funding gives accounts external balances and token approvals on the
// custody chain so they have something to deposit. The HTTP routes are mounted
// only in development; operators fund accounts elsewhere with vaultctl.
package funding

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/congo-pay/sharevault/internal/asset"
	"github.com/congo-pay/sharevault/internal/custody"
	"github.com/congo-pay/sharevault/internal/sharemath"
)

// ErrDuplicateTransaction is returned when a client transaction id was already
// used. The first result accompanies the error.
var ErrDuplicateTransaction = errors.New("duplicate funding transaction")

// Service credits external balances on a custody chain.
type Service struct {
	chain *custody.Chain

	mu   sync.Mutex
	seen map[string]Result
}

// NewService prepares a funding service for chain.
func NewService(chain *custody.Chain) (*Service, error) {
	if chain == nil {
		return nil, fmt.Errorf("custody chain is required")
	}
	return &Service{chain: chain, seen: make(map[string]Result)}, nil
}

// FundInput captures a faucet request.
type FundInput struct {
	Holder     common.Address
	Asset      asset.ID
	Amount     sdkmath.Uint
	ClientTxID string
	// ApproveVault also lets the vault pull the holder's tokens without limit.
	ApproveVault bool
}

// Result is the outcome of a funding call.
type Result struct {
	TransactionID string
	Holder        common.Address
	Asset         asset.ID
	Balance       sdkmath.Uint
	CompletedAt   time.Time
}

// Fund credits amount of the asset to the holder.
func (s *Service) Fund(ctx context.Context, in FundInput) (Result, error) {
	if in.Amount = sharemath.OrZero(in.Amount); in.Amount.IsZero() {
		return Result{}, fmt.Errorf("amount must be positive")
	}
	if in.ClientTxID == "" {
		in.ClientTxID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.seen[in.ClientTxID]; ok {
		return prev, ErrDuplicateTransaction
	}

	balance, err := s.credit(ctx, in)
	if err != nil {
		return Result{}, err
	}

	res := Result{
		TransactionID: in.ClientTxID,
		Holder:        in.Holder,
		Asset:         in.Asset,
		Balance:       balance,
		CompletedAt:   time.Now().UTC(),
	}
	s.seen[in.ClientTxID] = res
	return res, nil
}

// credit applies the credit and the optional approval in one custody session.
func (s *Service) credit(ctx context.Context, in FundInput) (sdkmath.Uint, error) {
	ctx, end := s.chain.Begin(ctx)
	defer end()

	snap := s.chain.Snapshot(ctx)
	if err := s.chain.Credit(ctx, in.Holder, in.Asset, in.Amount); err != nil {
		return sdkmath.ZeroUint(), err
	}
	if in.ApproveVault && !in.Asset.IsNative() {
		if err := s.chain.ApproveToken(ctx, in.Holder, s.chain.Vault(), in.Asset, sharemath.MaxUint256); err != nil {
			return sdkmath.ZeroUint(), errors.Join(err, s.chain.RevertToSnapshot(ctx, snap))
		}
	}
	return s.chain.BalanceOf(ctx, in.Holder, in.Asset)
}

// ApproveVault sets how much of the holder's token the vault may pull.
func (s *Service) ApproveVault(ctx context.Context, holder common.Address, id asset.ID, amount sdkmath.Uint) error {
	if id.IsNative() {
		return custody.ErrNativePull
	}
	return s.chain.ApproveToken(ctx, holder, s.chain.Vault(), id, amount)
}

// Balance returns the holder's external balance.
func (s *Service) Balance(ctx context.Context, holder common.Address, id asset.ID) (sdkmath.Uint, error) {
	return s.chain.BalanceOf(ctx, holder, id)
}

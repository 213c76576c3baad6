// Package vault accounts for a multi-asset vault that issues a separate class
// of proportional shares for every asset it custodies.
//
// State-changing calls on a Service are serialized. The only way to interleave
// is to re-enter from a push hook using the context the hook received; such
// calls join the running call frame and see its already-applied mutations.
package vault

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/congo-pay/sharevault/internal/asset"
	"github.com/congo-pay/sharevault/internal/custody"
	"github.com/congo-pay/sharevault/internal/events"
	"github.com/congo-pay/sharevault/internal/ledger"
	"github.com/congo-pay/sharevault/internal/pool"
	"github.com/congo-pay/sharevault/internal/sharemath"
)

var (
	// ErrIncorrectAmount is returned when the native value sent with a deposit
	// differs from the stated amount, or value accompanies a token deposit.
	ErrIncorrectAmount = errors.New("incorrect amount")
	// ErrZeroShares is returned when a deposit would mint no shares.
	ErrZeroShares = errors.New("zero shares")
	// ErrDetachedReentry is returned when code running inside a push hook calls
	// the vault without the context the hook was given.
	ErrDetachedReentry = errors.New("vault re-entered without the calling context")
)

// NativeBasis selects which vault balance prices a native deposit.
type NativeBasis string

const (
	// BasisPreReceipt excludes the value received with the call, pricing native
	// deposits exactly like token deposits and matching PreviewDeposit.
	BasisPreReceipt NativeBasis = "pre"
	// BasisPostReceipt prices against the balance that already includes the
	// received value.
	BasisPostReceipt NativeBasis = "post"
)

// ParseNativeBasis maps configuration values to a NativeBasis.
func ParseNativeBasis(s string) (NativeBasis, error) {
	switch NativeBasis(s) {
	case "", BasisPreReceipt:
		return BasisPreReceipt, nil
	case BasisPostReceipt:
		return BasisPostReceipt, nil
	}
	return "", fmt.Errorf("unknown native preview basis %q", s)
}

// Options tune vault behaviour.
type Options struct {
	NativeBasis NativeBasis
	// ReentryWait bounds how long a call waits for the vault lock while a push
	// hook is running before failing with ErrDetachedReentry.
	ReentryWait time.Duration
}

// Deps are the collaborators a Service orchestrates.
type Deps struct {
	Pools     pool.Store
	Ledger    ledger.Ledger
	Custodian custody.Custodian
	Emitter   events.Emitter
	Logger    *slog.Logger
}

// Service implements deposit, redeem and the read-only conversion views.
type Service struct {
	pools   pool.Store
	ledger  ledger.Ledger
	custody custody.Custodian
	emitter events.Emitter
	logger  *slog.Logger
	opts    Options

	mu sync.Mutex
}

// NewService builds a vault service.
func NewService(deps Deps, opts Options) (*Service, error) {
	if deps.Pools == nil || deps.Ledger == nil || deps.Custodian == nil {
		return nil, fmt.Errorf("vault requires pools, ledger and custodian")
	}
	if opts.NativeBasis == "" {
		opts.NativeBasis = BasisPreReceipt
	}
	if opts.ReentryWait <= 0 {
		opts.ReentryWait = 5 * time.Second
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		pools:   deps.Pools,
		ledger:  deps.Ledger,
		custody: deps.Custodian,
		emitter: deps.Emitter,
		logger:  logger,
		opts:    opts,
	}, nil
}

// PoolState is a point-in-time view of one asset's pool.
type PoolState struct {
	Asset       asset.ID     `json:"asset"`
	TotalShares sdkmath.Uint `json:"total_shares"`
	TotalAssets sdkmath.Uint `json:"total_assets"`
}

// TotalShares returns the shares outstanding for id.
func (s *Service) TotalShares(ctx context.Context, id asset.ID) (sdkmath.Uint, error) {
	var total sdkmath.Uint
	err := s.read(ctx, func(ctx context.Context) (err error) {
		total, err = s.pools.TotalShares(ctx, id)
		return err
	})
	return total, err
}

// TotalAssets returns the vault's live custodied balance of id.
func (s *Service) TotalAssets(ctx context.Context, id asset.ID) (sdkmath.Uint, error) {
	var total sdkmath.Uint
	err := s.read(ctx, func(ctx context.Context) (err error) {
		total, err = s.totalAssets(ctx, id)
		return err
	})
	return total, err
}

// ConvertToShares prices amount of id in shares at the current rate.
func (s *Service) ConvertToShares(ctx context.Context, id asset.ID, amount sdkmath.Uint) (sdkmath.Uint, error) {
	var shares sdkmath.Uint
	err := s.read(ctx, func(ctx context.Context) error {
		state, err := s.poolState(ctx, id)
		if err != nil {
			return err
		}
		shares, err = sharemath.ConvertToShares(state.TotalShares, state.TotalAssets, amount)
		return err
	})
	return shares, err
}

// ConvertToAssets prices shares of id in underlying units at the current rate.
func (s *Service) ConvertToAssets(ctx context.Context, id asset.ID, shares sdkmath.Uint) (sdkmath.Uint, error) {
	var amount sdkmath.Uint
	err := s.read(ctx, func(ctx context.Context) error {
		state, err := s.poolState(ctx, id)
		if err != nil {
			return err
		}
		amount, err = sharemath.ConvertToAssets(state.TotalShares, state.TotalAssets, shares)
		return err
	})
	return amount, err
}

// PreviewDeposit returns the shares a deposit of amount would mint now.
func (s *Service) PreviewDeposit(ctx context.Context, id asset.ID, amount sdkmath.Uint) (sdkmath.Uint, error) {
	return s.ConvertToShares(ctx, id, amount)
}

// PreviewRedeem returns the amount redeeming shares would pay out now.
func (s *Service) PreviewRedeem(ctx context.Context, id asset.ID, shares sdkmath.Uint) (sdkmath.Uint, error) {
	return s.ConvertToAssets(ctx, id, shares)
}

// Pool returns the state of a single pool.
func (s *Service) Pool(ctx context.Context, id asset.ID) (PoolState, error) {
	var state PoolState
	err := s.read(ctx, func(ctx context.Context) (err error) {
		state, err = s.poolState(ctx, id)
		return err
	})
	return state, err
}

// Pools returns every pool that has received a deposit.
func (s *Service) Pools(ctx context.Context) ([]PoolState, error) {
	var out []PoolState
	err := s.read(ctx, func(ctx context.Context) error {
		ids, err := s.pools.Assets(ctx)
		if err != nil {
			return err
		}
		out = make([]PoolState, 0, len(ids))
		for _, id := range ids {
			state, err := s.poolState(ctx, id)
			if err != nil {
				return err
			}
			out = append(out, state)
		}
		return nil
	})
	return out, err
}

func (s *Service) poolState(ctx context.Context, id asset.ID) (PoolState, error) {
	shares, err := s.pools.TotalShares(ctx, id)
	if err != nil {
		return PoolState{}, err
	}
	assets, err := s.totalAssets(ctx, id)
	if err != nil {
		return PoolState{}, err
	}
	return PoolState{Asset: id, TotalShares: shares, TotalAssets: assets}, nil
}

func (s *Service) totalAssets(ctx context.Context, id asset.ID) (sdkmath.Uint, error) {
	return s.custody.BalanceOf(ctx, s.custody.Vault(), id)
}

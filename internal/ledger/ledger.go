package ledger

import (
	"context"
	"errors"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"github.com/congo-pay/sharevault/internal/asset"
)

var (
	// ErrInsufficientBalance occurs when the owner holds fewer share units than
	// a burn or transfer requires.
	ErrInsufficientBalance = errors.New("insufficient share balance")

	// ErrInsufficientAllowance indicates the spender's approved amount does not
	// cover the requested units.
	ErrInsufficientAllowance = errors.New("insufficient allowance")

	// ErrInvalidAmount rejects zero-unit postings.
	ErrInvalidAmount = errors.New("amount must be positive")
)

const (
	// PostingMint credits newly issued share units.
	PostingMint = "mint"
	// PostingBurn debits redeemed share units.
	PostingBurn = "burn"
	// PostingTransfer moves units between owners.
	PostingTransfer = "transfer"
)

// TransferResult captures balances after a share transfer.
type TransferResult struct {
	TransactionID string
	FromBalance   sdkmath.Uint
	ToBalance     sdkmath.Uint
}

// Ledger stores share balances per (owner, asset) and allowances per
// (owner, spender, asset). Backends are interchangeable (memory, Postgres).
type Ledger interface {
	BalanceOf(ctx context.Context, owner common.Address, id asset.ID) (sdkmath.Uint, error)
	// TotalSupply sums every owner's balance of id.
	TotalSupply(ctx context.Context, id asset.ID) (sdkmath.Uint, error)
	Allowance(ctx context.Context, owner, spender common.Address, id asset.ID) (sdkmath.Uint, error)
	// Approve overwrites the allowance. sharemath.MaxUint256 means unlimited.
	Approve(ctx context.Context, owner, spender common.Address, id asset.ID, amount sdkmath.Uint) error
	Mint(ctx context.Context, to common.Address, id asset.ID, amount sdkmath.Uint) (sdkmath.Uint, error)
	Burn(ctx context.Context, from common.Address, id asset.ID, amount sdkmath.Uint) (sdkmath.Uint, error)
	Transfer(ctx context.Context, from, to common.Address, id asset.ID, amount sdkmath.Uint) (TransferResult, error)
	// TransferFrom moves units on behalf of from, consuming the spender's
	// allowance unless it is unlimited.
	TransferFrom(ctx context.Context, spender, from, to common.Address, id asset.ID, amount sdkmath.Uint) (TransferResult, error)
}

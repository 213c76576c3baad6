// Package custody moves underlying assets between holders and the vault.
package custody

import (
	"context"
	"errors"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"github.com/congo-pay/sharevault/internal/asset"
)

var (
	// ErrInsufficientExternalBalance is returned when a holder (or the vault)
	// cannot cover a pull, push or receive.
	ErrInsufficientExternalBalance = errors.New("insufficient external balance")
	// ErrInsufficientTokenAllowance is returned when a token pull exceeds what the
	// holder approved the vault to take.
	ErrInsufficientTokenAllowance = errors.New("insufficient token allowance")
	// ErrNativePull is returned when asked to pull native currency; native value
	// arrives with the call instead.
	ErrNativePull = errors.New("native currency cannot be pulled")
)

// Custodian is the asset transfer primitive the vault is built on.
//
// Every write happens inside a session. Begin opens one (or joins the session
// already carried by ctx) and holds it exclusively until the returned end func
// runs. Snapshot and RevertToSnapshot work on the session's own journal, so a
// revert never touches writes made by anyone else. The journal is dropped when
// the session ends.
type Custodian interface {
	Vault() common.Address
	BalanceOf(ctx context.Context, holder common.Address, id asset.ID) (sdkmath.Uint, error)
	Begin(ctx context.Context) (context.Context, func())
	// Receive credits native value sent along with a call from the sender.
	Receive(ctx context.Context, from common.Address, amount sdkmath.Uint) error
	// Pull moves token units from a holder into the vault.
	Pull(ctx context.Context, id asset.ID, from common.Address, amount sdkmath.Uint) error
	// Push sends units out of the vault. Recipients may run code before Push
	// returns, and that code may call back into the vault.
	Push(ctx context.Context, id asset.ID, to common.Address, amount sdkmath.Uint) error
	Snapshot(ctx context.Context) int
	RevertToSnapshot(ctx context.Context, id int) error
	// InCallback reports whether a recipient hook is currently running.
	InCallback() bool
}

// Hook runs when a recipient is credited by Push. Returning an error aborts
// the push.
//
// ctx carries the custody session and the vault call that is paying out. Any
// call the hook makes back into the vault or the chain must use this ctx: a
// call made with an unrelated context cannot join the running call and is
// rejected by the vault.
type Hook func(ctx context.Context, id asset.ID, from common.Address, amount sdkmath.Uint) error

package custody

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"github.com/congo-pay/sharevault/internal/asset"
	"github.com/congo-pay/sharevault/internal/sharemath"
)

type sessionKey struct{}

// session is an exclusive hold on the chain. Its journal lists the compensating
// writes for everything done inside it and lives only as long as the session.
type session struct {
	chain   *Chain
	journal []func(ctx context.Context) error
	closed  atomic.Bool
}

// Chain is a custodian holding native and token balances for every account,
// including the vault itself. Balances live in a Store; writes are serialized
// through sessions.
type Chain struct {
	vault     common.Address
	store     Store
	sessions  sync.Mutex
	mu        sync.RWMutex
	hooks     map[common.Address]Hook
	callbacks atomic.Int32
}

// NewChain creates an empty in-memory chain whose vault account is vault.
func NewChain(vault common.Address) *Chain {
	return NewChainWithStore(vault, NewMemoryStore())
}

// NewChainWithStore creates a chain whose balances live in store.
func NewChainWithStore(vault common.Address, store Store) *Chain {
	return &Chain{
		vault: vault,
		store: store,
		hooks: make(map[common.Address]Hook),
	}
}

// Vault returns the vault's account address.
func (c *Chain) Vault() common.Address {
	return c.vault
}

// BalanceOf returns holder's balance of id.
func (c *Chain) BalanceOf(ctx context.Context, holder common.Address, id asset.ID) (sdkmath.Uint, error) {
	return c.store.Balance(ctx, holder, id)
}

// Begin opens a session, or joins the one ctx already carries. The returned
// func ends a session opened here and is a no-op for a joined one.
func (c *Chain) Begin(ctx context.Context) (context.Context, func()) {
	if c.session(ctx) != nil {
		return ctx, func() {}
	}
	c.sessions.Lock()
	s := &session{chain: c}
	return context.WithValue(ctx, sessionKey{}, s), func() {
		s.closed.Store(true)
		s.journal = nil
		c.sessions.Unlock()
	}
}

// Snapshot returns a position in the session journal. Outside a session it is
// always zero.
func (c *Chain) Snapshot(ctx context.Context) int {
	if s := c.session(ctx); s != nil {
		return len(s.journal)
	}
	return 0
}

// RevertToSnapshot undoes every write the session made after snapshot id was
// taken. Reverting to a snapshot newer than the current state is a no-op.
func (c *Chain) RevertToSnapshot(ctx context.Context, id int) error {
	s := c.session(ctx)
	if s == nil {
		return nil
	}
	return c.revert(ctx, s, id)
}

// InCallback reports whether a push hook is running.
func (c *Chain) InCallback() bool {
	return c.callbacks.Load() > 0
}

// Credit mints id out of thin air for holder. Used to fund accounts.
func (c *Chain) Credit(ctx context.Context, holder common.Address, id asset.ID, amount sdkmath.Uint) error {
	return c.within(ctx, func(ctx context.Context, s *session) error {
		bal, err := c.store.Balance(ctx, holder, id)
		if err != nil {
			return err
		}
		next, err := sharemath.CheckedAdd(bal, amount)
		if err != nil {
			return err
		}
		return c.setBalance(ctx, s, holder, id, next)
	})
}

// ApproveToken lets spender pull up to amount of the token from owner.
func (c *Chain) ApproveToken(ctx context.Context, owner, spender common.Address, id asset.ID, amount sdkmath.Uint) error {
	return c.within(ctx, func(ctx context.Context, s *session) error {
		return c.setApproval(ctx, s, owner, spender, id, amount)
	})
}

// TokenAllowance returns how much of the token spender may pull from owner.
func (c *Chain) TokenAllowance(ctx context.Context, owner, spender common.Address, id asset.ID) (sdkmath.Uint, error) {
	return c.store.Approval(ctx, owner, spender, id)
}

// Transfer moves units between two holders without running hooks. Sending to
// the vault this way is a donation: it raises the vault balance without
// issuing shares.
func (c *Chain) Transfer(ctx context.Context, id asset.ID, from, to common.Address, amount sdkmath.Uint) error {
	return c.within(ctx, func(ctx context.Context, s *session) error {
		return c.move(ctx, s, id, from, to, amount)
	})
}

// OnPush registers code to run whenever recipient is paid by the vault. The
// hook must pass the ctx it is given to anything it calls on the chain or the
// vault.
func (c *Chain) OnPush(recipient common.Address, hook Hook) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if hook == nil {
		delete(c.hooks, recipient)
		return
	}
	c.hooks[recipient] = hook
}

// Receive credits native value attached to a call.
func (c *Chain) Receive(ctx context.Context, from common.Address, amount sdkmath.Uint) error {
	if amount.IsZero() {
		return nil
	}
	return c.within(ctx, func(ctx context.Context, s *session) error {
		return c.move(ctx, s, asset.Native, from, c.vault, amount)
	})
}

// Pull moves token units from a holder into the vault, consuming the holder's
// approval of the vault unless it is unlimited.
func (c *Chain) Pull(ctx context.Context, id asset.ID, from common.Address, amount sdkmath.Uint) error {
	if id.IsNative() {
		return ErrNativePull
	}
	return c.within(ctx, func(ctx context.Context, s *session) error {
		allowed, err := c.store.Approval(ctx, from, c.vault, id)
		if err != nil {
			return err
		}
		unlimited := sharemath.IsUnlimited(allowed)
		if !unlimited && allowed.LT(amount) {
			return ErrInsufficientTokenAllowance
		}
		if err := c.move(ctx, s, id, from, c.vault, amount); err != nil {
			return err
		}
		if unlimited {
			return nil
		}
		return c.setApproval(ctx, s, from, c.vault, id, allowed.Sub(amount))
	})
}

// Push pays amount of id from the vault to a recipient, then runs the
// recipient's hook. A failing hook undoes the payment and everything the hook
// changed on the chain.
func (c *Chain) Push(ctx context.Context, id asset.ID, to common.Address, amount sdkmath.Uint) error {
	return c.within(ctx, func(ctx context.Context, s *session) error {
		if err := c.move(ctx, s, id, c.vault, to, amount); err != nil {
			return err
		}
		c.mu.RLock()
		hook := c.hooks[to]
		c.mu.RUnlock()
		if hook == nil {
			return nil
		}
		c.callbacks.Add(1)
		defer c.callbacks.Add(-1)
		return hook(ctx, id, c.vault, amount)
	})
}

func (c *Chain) session(ctx context.Context) *session {
	s, ok := ctx.Value(sessionKey{}).(*session)
	if !ok || s.chain != c || s.closed.Load() {
		return nil
	}
	return s
}

// within runs fn inside a session. When fn fails, the writes it made are
// undone before the error is returned.
func (c *Chain) within(ctx context.Context, fn func(ctx context.Context, s *session) error) error {
	ctx, end := c.Begin(ctx)
	defer end()
	s := c.session(ctx)
	mark := len(s.journal)
	if err := fn(ctx, s); err != nil {
		if rerr := c.revert(ctx, s, mark); rerr != nil {
			return errors.Join(err, rerr)
		}
		return err
	}
	return nil
}

func (c *Chain) revert(ctx context.Context, s *session, mark int) error {
	ctx = context.WithoutCancel(ctx)
	var errs []error
	for len(s.journal) > mark {
		last := len(s.journal) - 1
		if err := s.journal[last](ctx); err != nil {
			errs = append(errs, err)
		}
		s.journal = s.journal[:last]
	}
	return errors.Join(errs...)
}

func (c *Chain) move(ctx context.Context, s *session, id asset.ID, from, to common.Address, amount sdkmath.Uint) error {
	fromBalance, err := c.store.Balance(ctx, from, id)
	if err != nil {
		return err
	}
	if fromBalance.LT(amount) {
		return ErrInsufficientExternalBalance
	}
	if from == to {
		return nil
	}
	toBalance, err := c.store.Balance(ctx, to, id)
	if err != nil {
		return err
	}
	next, err := sharemath.CheckedAdd(toBalance, amount)
	if err != nil {
		return err
	}
	if err := c.setBalance(ctx, s, from, id, fromBalance.Sub(amount)); err != nil {
		return err
	}
	return c.setBalance(ctx, s, to, id, next)
}

func (c *Chain) setBalance(ctx context.Context, s *session, holder common.Address, id asset.ID, v sdkmath.Uint) error {
	prev, err := c.store.Balance(ctx, holder, id)
	if err != nil {
		return err
	}
	if err := c.store.SetBalance(ctx, holder, id, v); err != nil {
		return err
	}
	s.journal = append(s.journal, func(ctx context.Context) error {
		return c.store.SetBalance(ctx, holder, id, prev)
	})
	return nil
}

func (c *Chain) setApproval(ctx context.Context, s *session, owner, spender common.Address, id asset.ID, v sdkmath.Uint) error {
	prev, err := c.store.Approval(ctx, owner, spender, id)
	if err != nil {
		return err
	}
	if err := c.store.SetApproval(ctx, owner, spender, id, v); err != nil {
		return err
	}
	s.journal = append(s.journal, func(ctx context.Context) error {
		return c.store.SetApproval(ctx, owner, spender, id, prev)
	})
	return nil
}

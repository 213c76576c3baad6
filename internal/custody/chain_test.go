package custody

import (
	"context"
	"errors"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"github.com/congo-pay/sharevault/internal/asset"
	"github.com/congo-pay/sharevault/internal/sharemath"
)

var (
	vaultAddr = common.HexToAddress("0x000000000000000000000000000000000000beef")
	alice     = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob       = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	token     = asset.MustParse("0x00000000000000000000000000000000000000aa")
)

func balance(t *testing.T, c *Chain, holder common.Address, id asset.ID) uint64 {
	t.Helper()
	v, err := c.BalanceOf(context.Background(), holder, id)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	return v.Uint64()
}

func credit(t *testing.T, c *Chain, holder common.Address, id asset.ID, amount uint64) {
	t.Helper()
	if err := c.Credit(context.Background(), holder, id, sdkmath.NewUint(amount)); err != nil {
		t.Fatalf("credit: %v", err)
	}
}

func TestChainPullRequiresApproval(t *testing.T) {
	c := NewChain(vaultAddr)
	ctx := context.Background()
	credit(t, c, alice, token, 100)

	if err := c.Pull(ctx, token, alice, sdkmath.NewUint(50)); !errors.Is(err, ErrInsufficientTokenAllowance) {
		t.Fatalf("expected allowance error, got %v", err)
	}

	if err := c.ApproveToken(ctx, alice, vaultAddr, token, sdkmath.NewUint(60)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := c.Pull(ctx, token, alice, sdkmath.NewUint(50)); err != nil {
		t.Fatalf("pull: %v", err)
	}
	if got := balance(t, c, vaultAddr, token); got != 50 {
		t.Fatalf("expected vault 50, got %d", got)
	}
	if err := c.Pull(ctx, token, alice, sdkmath.NewUint(20)); !errors.Is(err, ErrInsufficientTokenAllowance) {
		t.Fatalf("expected remaining allowance 10 to be enforced, got %v", err)
	}

	if err := c.ApproveToken(ctx, alice, vaultAddr, token, sharemath.MaxUint256); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := c.Pull(ctx, token, alice, sdkmath.NewUint(51)); !errors.Is(err, ErrInsufficientExternalBalance) {
		t.Fatalf("expected balance error, got %v", err)
	}
	if err := c.Pull(ctx, asset.Native, alice, sdkmath.NewUint(1)); !errors.Is(err, ErrNativePull) {
		t.Fatalf("expected native pull rejection, got %v", err)
	}
}

func TestChainPushHookFailureReverts(t *testing.T) {
	c := NewChain(vaultAddr)
	ctx := context.Background()
	credit(t, c, vaultAddr, asset.Native, 100)

	boom := errors.New("recipient rejected")
	c.OnPush(alice, func(ctx context.Context, id asset.ID, from common.Address, amount sdkmath.Uint) error {
		if !c.InCallback() {
			t.Errorf("expected InCallback inside hook")
		}
		// the hook spends what it got before failing
		if err := c.Transfer(ctx, id, alice, vaultAddr, sdkmath.NewUint(10)); err != nil {
			return err
		}
		return boom
	})

	if err := c.Push(ctx, asset.Native, alice, sdkmath.NewUint(40)); !errors.Is(err, boom) {
		t.Fatalf("expected hook error, got %v", err)
	}
	if got := balance(t, c, vaultAddr, asset.Native); got != 100 {
		t.Fatalf("expected vault restored to 100, got %d", got)
	}
	if got := balance(t, c, alice, asset.Native); got != 0 {
		t.Fatalf("expected alice restored to 0, got %d", got)
	}
	if c.InCallback() {
		t.Fatalf("expected no callback after push returned")
	}
}

func TestChainSnapshotRevert(t *testing.T) {
	c := NewChain(vaultAddr)
	credit(t, c, alice, asset.Native, 10)

	ctx, end := c.Begin(context.Background())
	defer end()
	snap := c.Snapshot(ctx)
	if err := c.Receive(ctx, alice, sdkmath.NewUint(7)); err != nil {
		t.Fatalf("receive: %v", err)
	}
	if err := c.RevertToSnapshot(ctx, snap); err != nil {
		t.Fatalf("revert: %v", err)
	}
	if got := balance(t, c, alice, asset.Native); got != 10 {
		t.Fatalf("expected alice 10 after revert, got %d", got)
	}
	// reverting to a snapshot beyond the journal is a no-op
	if err := c.RevertToSnapshot(ctx, snap+100); err != nil {
		t.Fatalf("revert: %v", err)
	}
	if got := balance(t, c, vaultAddr, asset.Native); got != 0 {
		t.Fatalf("expected vault 0, got %d", got)
	}
	if err := c.Receive(ctx, alice, sdkmath.NewUint(11)); !errors.Is(err, ErrInsufficientExternalBalance) {
		t.Fatalf("expected balance error, got %v", err)
	}
}

func TestChainJournalDroppedWhenSessionEnds(t *testing.T) {
	c := NewChain(vaultAddr)
	ctx := context.Background()
	for i := 0; i < 50; i++ {
		credit(t, c, alice, asset.Native, 1)
		if err := c.Transfer(ctx, asset.Native, alice, bob, sdkmath.NewUint(1)); err != nil {
			t.Fatalf("transfer: %v", err)
		}
	}
	if got := c.Snapshot(ctx); got != 0 {
		t.Fatalf("expected no journal outside a session, got %d entries", got)
	}

	sctx, end := c.Begin(ctx)
	if got := c.Snapshot(sctx); got != 0 {
		t.Fatalf("expected a fresh session to start empty, got %d", got)
	}
	if err := c.Credit(sctx, alice, asset.Native, sdkmath.NewUint(5)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if got := c.Snapshot(sctx); got != 1 {
		t.Fatalf("expected one journaled write, got %d", got)
	}
	end()

	// a stale ctx no longer reaches the finished session
	if got := c.Snapshot(sctx); got != 0 {
		t.Fatalf("expected ended session to be gone, got %d", got)
	}
	if err := c.RevertToSnapshot(sctx, 0); err != nil {
		t.Fatalf("revert: %v", err)
	}
	if got := balance(t, c, alice, asset.Native); got != 5 {
		t.Fatalf("expected committed credit to stay, got %d", got)
	}
	if got := balance(t, c, bob, asset.Native); got != 50 {
		t.Fatalf("expected bob 50, got %d", got)
	}
}

func TestChainRevertKeepsOtherSessionsWrites(t *testing.T) {
	c := NewChain(vaultAddr)
	credit(t, c, vaultAddr, asset.Native, 100)

	boom := errors.New("recipient rejected")
	credited := make(chan error, 1)
	c.OnPush(alice, func(ctx context.Context, id asset.ID, from common.Address, amount sdkmath.Uint) error {
		go func() {
			credited <- c.Credit(context.Background(), bob, asset.Native, sdkmath.NewUint(500))
		}()
		time.Sleep(20 * time.Millisecond)
		return boom
	})

	if err := c.Push(context.Background(), asset.Native, alice, sdkmath.NewUint(40)); !errors.Is(err, boom) {
		t.Fatalf("expected hook error, got %v", err)
	}
	select {
	case err := <-credited:
		if err != nil {
			t.Fatalf("credit: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("concurrent credit never completed")
	}
	if got := balance(t, c, bob, asset.Native); got != 500 {
		t.Fatalf("expected bob's credit to survive the revert, got %d", got)
	}
	if got := balance(t, c, vaultAddr, asset.Native); got != 100 {
		t.Fatalf("expected vault restored to 100, got %d", got)
	}
}

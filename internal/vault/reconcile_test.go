package vault

import (
	"context"
	"testing"
)

func TestReconcileRepairsPoolSupply(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	f.fund(t, alice, tokenX, 100)
	f.deposit(t, alice, tokenX, 100)

	// a write lost between the ledger and the pool store
	if err := f.pools.SetTotalShares(ctx, tokenX, u(70)); err != nil {
		t.Fatalf("set total: %v", err)
	}

	repaired, err := f.svc.Reconcile(ctx)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(repaired) != 1 || repaired[0] != tokenX {
		t.Fatalf("expected %s repaired, got %v", tokenX, repaired)
	}
	if s, a := f.pool(t, tokenX); s != 100 || a != 100 {
		t.Fatalf("unexpected pool after reconcile: shares=%d assets=%d", s, a)
	}
	f.assertConserved(t, tokenX)

	repaired, err = f.svc.Reconcile(ctx)
	if err != nil {
		t.Fatalf("second reconcile: %v", err)
	}
	if len(repaired) != 0 {
		t.Fatalf("expected nothing left to repair, got %v", repaired)
	}
}

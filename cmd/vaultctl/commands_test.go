package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"github.com/congo-pay/sharevault/internal/asset"
	"github.com/congo-pay/sharevault/internal/auth"
	"github.com/congo-pay/sharevault/internal/custody"
	"github.com/congo-pay/sharevault/internal/sharemath"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return strings.TrimSpace(out.String()), err
}

func TestPreviewCommands(t *testing.T) {
	out, err := run(t, "preview", "deposit", "--total-shares", "100", "--total-assets", "1000", "--amount", "25")
	if err != nil {
		t.Fatalf("preview deposit: %v", err)
	}
	if out != "2" {
		t.Fatalf("expected 2 shares, got %q", out)
	}

	out, err = run(t, "preview", "redeem", "--total-shares", "150", "--total-assets", "150", "--amount", "100")
	if err != nil {
		t.Fatalf("preview redeem: %v", err)
	}
	if out != "100" {
		t.Fatalf("expected 100, got %q", out)
	}
}

func TestPreviewDivisionByZero(t *testing.T) {
	_, err := previewDeposit("10", "0", "5")
	if !errors.Is(err, sharemath.ErrDivisionByZero) {
		t.Fatalf("expected division by zero, got %v", err)
	}
}

func TestTokenCommand(t *testing.T) {
	addr := "0x00000000000000000000000000000000000a11ce"
	out, err := run(t, "token", "--address", addr, "--secret", "s3cret", "--ttl", "1m")
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	caller, err := auth.VerifyToken(out, []byte("s3cret"), time.Now())
	if err != nil {
		t.Fatalf("verify issued token: %v", err)
	}
	if caller != common.HexToAddress(addr) {
		t.Fatalf("unexpected subject %s", caller.Hex())
	}
}

func TestFundRequiresDatabase(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	_, err := run(t, "fund", "--holder", "0x00000000000000000000000000000000000a11ce", "--amount", "5")
	if err == nil || !strings.Contains(err.Error(), "DATABASE_URL") {
		t.Fatalf("expected missing database error, got %v", err)
	}
}

func TestFundCreditsChain(t *testing.T) {
	vault := common.HexToAddress("0x000000000000000000000000000000000000beef")
	holder := "0x00000000000000000000000000000000000a11ce"
	tokenAddr := "0x00000000000000000000000000000000000000aa"
	chain := custody.NewChain(vault)
	ctx := context.Background()

	res, err := fund(ctx, chain, holder, tokenAddr, "250", true)
	if err != nil {
		t.Fatalf("fund: %v", err)
	}
	if !res.Balance.Equal(sdkmath.NewUint(250)) {
		t.Fatalf("expected balance 250, got %s", res.Balance)
	}
	allowed, err := chain.TokenAllowance(ctx, common.HexToAddress(holder), vault, asset.MustParse(tokenAddr))
	if err != nil {
		t.Fatalf("allowance: %v", err)
	}
	if !sharemath.IsUnlimited(allowed) {
		t.Fatalf("expected unlimited vault approval, got %s", allowed)
	}

	if _, err := fund(ctx, chain, "nobody", "native", "1", false); err == nil {
		t.Fatal("expected invalid holder error")
	}
	if _, err := fund(ctx, chain, holder, "native", "lots", false); err == nil {
		t.Fatal("expected invalid amount error")
	}
}

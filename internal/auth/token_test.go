package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

func TestTokenRoundTrip(t *testing.T) {
	caller := common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	secret := []byte("secret")
	now := time.Unix(1_700_000_000, 0)

	token, err := IssueToken(caller, time.Hour, secret, now)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	got, err := VerifyToken(token, secret, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if got != caller {
		t.Fatalf("expected %s got %s", caller.Hex(), got.Hex())
	}

	if _, err := VerifyToken(token, secret, now.Add(2*time.Hour)); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected expiry, got %v", err)
	}
	if _, err := VerifyToken(token, []byte("other"), now); err == nil {
		t.Fatal("expected signature mismatch")
	}
}

func TestVerifyRejectsNonAddressSubject(t *testing.T) {
	token, err := SignHS256(map[string]any{"sub": "user-42"}, []byte("secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := VerifyToken(token, []byte("secret"), time.Now()); !errors.Is(err, ErrInvalidSubject) {
		t.Fatalf("expected invalid subject, got %v", err)
	}
}

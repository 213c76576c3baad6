// Package auth issues and verifies the bearer tokens that identify vault
// callers. A token's subject is the caller's account address.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrTokenExpired is returned for tokens past their exp claim.
	ErrTokenExpired = errors.New("token expired")
	// ErrInvalidSubject is returned when sub is not an account address.
	ErrInvalidSubject = errors.New("token subject is not an address")
)

// IssueToken signs a token for caller valid for ttl. A zero ttl never expires.
func IssueToken(caller common.Address, ttl time.Duration, secret []byte, now time.Time) (string, error) {
	claims := map[string]any{
		"sub": caller.Hex(),
		"iat": now.Unix(),
	}
	if ttl > 0 {
		claims["exp"] = now.Add(ttl).Unix()
	}
	return SignHS256(claims, secret)
}

// VerifyToken checks the signature and expiry and returns the caller address.
func VerifyToken(token string, secret []byte, now time.Time) (common.Address, error) {
	claims, err := ParseAndVerifyHS256(token, secret)
	if err != nil {
		return common.Address{}, err
	}
	if exp, ok := claims["exp"].(float64); ok && now.Unix() >= int64(exp) {
		return common.Address{}, ErrTokenExpired
	}
	sub, _ := claims["sub"].(string)
	if !common.IsHexAddress(sub) {
		return common.Address{}, fmt.Errorf("%w: %q", ErrInvalidSubject, sub)
	}
	return common.HexToAddress(sub), nil
}

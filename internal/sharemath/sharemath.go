// Package sharemath converts between an asset pool's shares and its underlying
// amount. All functions are pure: callers pass the pool state they observed.
package sharemath

import (
	"errors"
	"fmt"
	"math/big"

	sdkmath "cosmossdk.io/math"
)

var (
	// ErrArithmeticOverflow is returned when a result does not fit in 256 bits.
	ErrArithmeticOverflow = errors.New("arithmetic overflow")
	// ErrArithmeticUnderflow is returned when a subtraction would go negative.
	ErrArithmeticUnderflow = errors.New("arithmetic underflow")
	// ErrDivisionByZero is returned when shares are outstanding against an empty
	// balance. It is an arithmetic error kind.
	ErrDivisionByZero = fmt.Errorf("%w: division by zero", ErrArithmeticOverflow)
)

var maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// MaxUint256 is the largest representable amount. As an allowance it means
// unlimited and is compared by equality only.
var MaxUint256 = sdkmath.NewUintFromBigInt(maxUint256)

// IsUnlimited reports whether v is the unlimited sentinel.
func IsUnlimited(v sdkmath.Uint) bool {
	return v.Equal(MaxUint256)
}

// MulDiv returns floor(a*b/d) computed at full precision.
func MulDiv(a, b, d sdkmath.Uint) (sdkmath.Uint, error) {
	if d.IsZero() {
		return sdkmath.ZeroUint(), ErrDivisionByZero
	}
	product := new(big.Int).Mul(a.BigInt(), b.BigInt())
	quotient := product.Quo(product, d.BigInt())
	return fromBig(quotient)
}

// CheckedAdd returns a+b or ErrArithmeticOverflow.
func CheckedAdd(a, b sdkmath.Uint) (sdkmath.Uint, error) {
	return fromBig(new(big.Int).Add(a.BigInt(), b.BigInt()))
}

// CheckedSub returns a-b or ErrArithmeticUnderflow.
func CheckedSub(a, b sdkmath.Uint) (sdkmath.Uint, error) {
	if a.LT(b) {
		return sdkmath.ZeroUint(), fmt.Errorf("%w: %s - %s", ErrArithmeticUnderflow, a, b)
	}
	return a.Sub(b), nil
}

// ConvertToShares prices a deposit of amount against the pool. An empty pool
// mints 1:1, which lets the first depositor define the exchange rate.
func ConvertToShares(totalShares, totalAssets, amount sdkmath.Uint) (sdkmath.Uint, error) {
	if totalShares.IsZero() {
		return amount, nil
	}
	return MulDiv(amount, totalShares, totalAssets)
}

// ConvertToAssets prices a redemption of shares against the pool.
func ConvertToAssets(totalShares, totalAssets, shares sdkmath.Uint) (sdkmath.Uint, error) {
	if totalShares.IsZero() {
		return shares, nil
	}
	return MulDiv(shares, totalAssets, totalShares)
}

// Parse reads a base-10 amount; "unlimited" and "max" yield MaxUint256.
func Parse(s string) (sdkmath.Uint, error) {
	switch s {
	case "unlimited", "max":
		return MaxUint256, nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return sdkmath.ZeroUint(), fmt.Errorf("invalid amount %q", s)
	}
	return fromBig(v)
}

func fromBig(v *big.Int) (sdkmath.Uint, error) {
	if v.Cmp(maxUint256) > 0 {
		return sdkmath.ZeroUint(), ErrArithmeticOverflow
	}
	return sdkmath.NewUintFromBigInt(v), nil
}

// OrZero replaces an uninitialised Uint with zero.
func OrZero(v sdkmath.Uint) sdkmath.Uint {
	if v == (sdkmath.Uint{}) {
		return sdkmath.ZeroUint()
	}
	return v
}

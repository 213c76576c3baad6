package asset

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ErrInvalidAsset is returned when an identifier is neither the native keyword
// nor a hex token address.
var ErrInvalidAsset = errors.New("invalid asset identifier")

const nativeKeyword = "native"

// ID identifies an asset custodied by the vault. The zero address denotes the
// native currency; any other address is a fungible token contract.
type ID struct {
	addr common.Address
}

// Native is the identifier of the chain's native currency.
var Native = ID{}

// Token returns the identifier of the token deployed at addr.
func Token(addr common.Address) ID {
	return ID{addr: addr}
}

// Parse accepts "native" (any case) or a 20-byte hex address.
func Parse(s string) (ID, error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, nativeKeyword) {
		return Native, nil
	}
	if !common.IsHexAddress(s) {
		return ID{}, fmt.Errorf("%w: %q", ErrInvalidAsset, s)
	}
	return ID{addr: common.HexToAddress(s)}, nil
}

// MustParse is Parse for constants and tests.
func MustParse(s string) ID {
	id, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return id
}

// IsNative reports whether id denotes the native currency.
func (id ID) IsNative() bool {
	return id.addr == (common.Address{})
}

// Address returns the token contract address; the zero address for native.
func (id ID) Address() common.Address {
	return id.addr
}

func (id ID) String() string {
	if id.IsNative() {
		return nativeKeyword
	}
	return id.addr.Hex()
}

// MarshalText renders the identifier as used in URLs and JSON.
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText parses the textual form produced by MarshalText.
func (id *ID) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

package main

import (
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/congo-pay/sharevault/internal/sharemath"
)

func parseTriple(shares, assets, amount string) (sdkmath.Uint, sdkmath.Uint, sdkmath.Uint, error) {
	var out [3]sdkmath.Uint
	for i, pair := range [][2]string{{"total-shares", shares}, {"total-assets", assets}, {"amount", amount}} {
		v, err := sharemath.Parse(pair[1])
		if err != nil {
			return out[0], out[1], out[2], fmt.Errorf("--%s: %w", pair[0], err)
		}
		out[i] = v
	}
	return out[0], out[1], out[2], nil
}

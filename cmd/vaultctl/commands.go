package main

import (
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/congo-pay/sharevault/internal/auth"
	"github.com/congo-pay/sharevault/internal/sharemath"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "vaultctl",
		Short:         "Operator tooling for the share vault",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(newTokenCmd(), newPreviewCmd(), newFundCmd())
	return root
}

func newTokenCmd() *cobra.Command {
	var (
		address string
		ttl     time.Duration
		secret  string
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign a bearer token for a caller address",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !common.IsHexAddress(address) {
				return fmt.Errorf("invalid address %q", address)
			}
			if secret == "" {
				secret = os.Getenv("JWT_SECRET")
			}
			if secret == "" {
				return fmt.Errorf("JWT_SECRET or --secret is required")
			}
			token, err := auth.IssueToken(common.HexToAddress(address), ttl, []byte(secret), time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&address, "address", "", "caller address (0x...)")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime, 0 for no expiry")
	cmd.Flags().StringVar(&secret, "secret", "", "HS256 secret, defaults to $JWT_SECRET")
	_ = cmd.MarkFlagRequired("address")
	return cmd
}

func newPreviewCmd() *cobra.Command {
	var totalShares, totalAssets, amount string

	preview := &cobra.Command{
		Use:   "preview",
		Short: "Run the conversion engine against given pool totals",
	}
	flags := func(cmd *cobra.Command) {
		cmd.Flags().StringVar(&totalShares, "total-shares", "0", "shares outstanding")
		cmd.Flags().StringVar(&totalAssets, "total-assets", "0", "assets held")
		cmd.Flags().StringVar(&amount, "amount", "", "amount to deposit or shares to redeem")
		_ = cmd.MarkFlagRequired("amount")
	}
	run := func(convert func(shares, assets, v string) (string, error)) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			out, err := convert(totalShares, totalAssets, amount)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		}
	}

	deposit := &cobra.Command{
		Use:   "deposit",
		Short: "Shares minted for a deposit of --amount",
		RunE:  run(previewDeposit),
	}
	redeem := &cobra.Command{
		Use:   "redeem",
		Short: "Assets paid for redeeming --amount shares",
		RunE:  run(previewRedeem),
	}
	flags(deposit)
	flags(redeem)
	preview.AddCommand(deposit, redeem)
	return preview
}

func previewDeposit(shares, assets, amount string) (string, error) {
	s, a, v, err := parseTriple(shares, assets, amount)
	if err != nil {
		return "", err
	}
	out, err := sharemath.ConvertToShares(s, a, v)
	if err != nil {
		return "", err
	}
	return out.String(), nil
}

func previewRedeem(shares, assets, amount string) (string, error) {
	s, a, v, err := parseTriple(shares, assets, amount)
	if err != nil {
		return "", err
	}
	out, err := sharemath.ConvertToAssets(s, a, v)
	if err != nil {
		return "", err
	}
	return out.String(), nil
}

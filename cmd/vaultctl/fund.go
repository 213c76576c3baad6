package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/congo-pay/sharevault/internal/asset"
	"github.com/congo-pay/sharevault/internal/custody"
	"github.com/congo-pay/sharevault/internal/funding"
	"github.com/congo-pay/sharevault/internal/infra"
	"github.com/congo-pay/sharevault/internal/sharemath"
)

func newFundCmd() *cobra.Command {
	var (
		holder      string
		assetID     string
		amount      string
		approve     bool
		databaseURL string
		vaultAddr   string
	)
	cmd := &cobra.Command{
		Use:   "fund",
		Short: "Credit an external balance in the persistent custody store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if databaseURL == "" {
				databaseURL = os.Getenv("DATABASE_URL")
			}
			if databaseURL == "" {
				return fmt.Errorf("DATABASE_URL or --database-url is required")
			}
			if vaultAddr == "" {
				vaultAddr = os.Getenv("VAULT_ADDRESS")
			}
			if !common.IsHexAddress(vaultAddr) {
				return fmt.Errorf("invalid vault address %q", vaultAddr)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			db, err := infra.NewPostgresPool(ctx, databaseURL)
			if err != nil {
				return err
			}
			defer db.Close()
			store := custody.NewPostgresStore(db)
			if err := store.EnsureSchema(ctx); err != nil {
				return fmt.Errorf("custody schema: %w", err)
			}

			res, err := fund(ctx, custody.NewChainWithStore(common.HexToAddress(vaultAddr), store), holder, assetID, amount, approve)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n", res.Holder.Hex(), res.Asset, res.Balance)
			return nil
		},
	}
	cmd.Flags().StringVar(&holder, "holder", "", "account to credit (0x...)")
	cmd.Flags().StringVar(&assetID, "asset", asset.Native.String(), "asset id, native or a token address")
	cmd.Flags().StringVar(&amount, "amount", "", "base units to credit")
	cmd.Flags().BoolVar(&approve, "approve-vault", false, "also let the vault pull the holder's tokens without limit")
	cmd.Flags().StringVar(&databaseURL, "database-url", "", "postgres url, defaults to $DATABASE_URL")
	cmd.Flags().StringVar(&vaultAddr, "vault", "", "vault address, defaults to $VAULT_ADDRESS")
	_ = cmd.MarkFlagRequired("holder")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func fund(ctx context.Context, chain *custody.Chain, holder, assetID, amount string, approve bool) (funding.Result, error) {
	if !common.IsHexAddress(holder) {
		return funding.Result{}, fmt.Errorf("invalid holder %q", holder)
	}
	id, err := asset.Parse(assetID)
	if err != nil {
		return funding.Result{}, err
	}
	units, err := sharemath.Parse(amount)
	if err != nil {
		return funding.Result{}, fmt.Errorf("--amount: %w", err)
	}
	svc, err := funding.NewService(chain)
	if err != nil {
		return funding.Result{}, err
	}
	return svc.Fund(ctx, funding.FundInput{
		Holder:       common.HexToAddress(holder),
		Asset:        id,
		Amount:       units,
		ApproveVault: approve,
	})
}

package vault

import (
	"context"
	"log/slog"

	"github.com/congo-pay/sharevault/internal/asset"
)

// Reconcile resets each pool's share supply to what the ledger holds and
// returns the assets it had to repair. With separate ledger and pool stores a
// crash between their writes can leave the two apart.
func (s *Service) Reconcile(ctx context.Context) ([]asset.ID, error) {
	var repaired []asset.ID
	err := s.atomically(ctx, "reconcile", func(ctx context.Context, f *frame) error {
		ids, err := s.pools.Assets(ctx)
		if err != nil {
			return err
		}
		for _, id := range ids {
			total, err := s.pools.TotalShares(ctx, id)
			if err != nil {
				return err
			}
			supply, err := s.ledger.TotalSupply(ctx, id)
			if err != nil {
				return err
			}
			if total.Equal(supply) {
				continue
			}
			if err := s.pools.SetTotalShares(ctx, id, supply); err != nil {
				return err
			}
			prev := total
			f.record(func(ctx context.Context) error { return s.pools.SetTotalShares(ctx, id, prev) })

			s.logger.Warn("vault pool reconciled",
				slog.String("asset", id.String()),
				slog.String("pool_shares", total.String()),
				slog.String("ledger_shares", supply.String()),
			)
			repaired = append(repaired, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return repaired, nil
}

package custody

import (
	"context"
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/congo-pay/sharevault/internal/asset"
)

// Schema creates the custody tables. The vault's own holdings are rows for the
// vault address, so they survive restarts together with pools and shares.
const Schema = `
CREATE TABLE IF NOT EXISTS custody_balances (
    holder     TEXT NOT NULL,
    asset      TEXT NOT NULL,
    amount     NUMERIC(78,0) NOT NULL DEFAULT 0 CHECK (amount >= 0),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (holder, asset)
);
CREATE TABLE IF NOT EXISTS custody_approvals (
    owner      TEXT NOT NULL,
    spender    TEXT NOT NULL,
    asset      TEXT NOT NULL,
    amount     NUMERIC(78,0) NOT NULL DEFAULT 0 CHECK (amount >= 0),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (owner, spender, asset)
);`

// PostgresStore keeps external balances and approvals in PostgreSQL.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore builds a custody store backed by PostgreSQL.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the custody tables when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, Schema)
	return err
}

func (s *PostgresStore) Balance(ctx context.Context, holder common.Address, id asset.ID) (sdkmath.Uint, error) {
	return s.amount(ctx, `SELECT amount::text FROM custody_balances WHERE holder = $1 AND asset = $2`,
		holder.Hex(), id.String())
}

func (s *PostgresStore) SetBalance(ctx context.Context, holder common.Address, id asset.ID, amount sdkmath.Uint) error {
	_, err := s.db.Exec(ctx, `INSERT INTO custody_balances (holder, asset, amount, updated_at)
        VALUES ($1, $2, $3::text::numeric, now())
        ON CONFLICT (holder, asset) DO UPDATE SET amount = EXCLUDED.amount, updated_at = now()`,
		holder.Hex(), id.String(), amount.String())
	return err
}

func (s *PostgresStore) Approval(ctx context.Context, owner, spender common.Address, id asset.ID) (sdkmath.Uint, error) {
	return s.amount(ctx, `SELECT amount::text FROM custody_approvals WHERE owner = $1 AND spender = $2 AND asset = $3`,
		owner.Hex(), spender.Hex(), id.String())
}

func (s *PostgresStore) SetApproval(ctx context.Context, owner, spender common.Address, id asset.ID, amount sdkmath.Uint) error {
	_, err := s.db.Exec(ctx, `INSERT INTO custody_approvals (owner, spender, asset, amount, updated_at)
        VALUES ($1, $2, $3, $4::text::numeric, now())
        ON CONFLICT (owner, spender, asset) DO UPDATE SET amount = EXCLUDED.amount, updated_at = now()`,
		owner.Hex(), spender.Hex(), id.String(), amount.String())
	return err
}

func (s *PostgresStore) amount(ctx context.Context, query string, args ...any) (sdkmath.Uint, error) {
	var raw string
	if err := s.db.QueryRow(ctx, query, args...).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return sdkmath.ZeroUint(), nil
		}
		return sdkmath.ZeroUint(), err
	}
	v, err := sdkmath.ParseUint(raw)
	if err != nil {
		return sdkmath.ZeroUint(), fmt.Errorf("decode custody amount %q: %w", raw, err)
	}
	return v, nil
}

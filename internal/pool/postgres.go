package pool

import (
	"context"
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/congo-pay/sharevault/internal/asset"
)

// Schema creates the pool totals table.
const Schema = `
CREATE TABLE IF NOT EXISTS vault_pools (
    asset        TEXT PRIMARY KEY,
    total_shares NUMERIC(78,0) NOT NULL DEFAULT 0 CHECK (total_shares >= 0),
    updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);`

// PostgresStore keeps pool totals in PostgreSQL.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore builds a store backed by PostgreSQL.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates vault_pools when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, Schema)
	return err
}

// TotalShares returns the outstanding shares of id.
func (s *PostgresStore) TotalShares(ctx context.Context, id asset.ID) (sdkmath.Uint, error) {
	var raw string
	err := s.db.QueryRow(ctx, `SELECT total_shares::text FROM vault_pools WHERE asset = $1`, id.String()).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return sdkmath.ZeroUint(), nil
		}
		return sdkmath.ZeroUint(), err
	}
	total, err := sdkmath.ParseUint(raw)
	if err != nil {
		return sdkmath.ZeroUint(), fmt.Errorf("decode total shares for %s: %w", id, err)
	}
	return total, nil
}

// SetTotalShares upserts the total for id.
func (s *PostgresStore) SetTotalShares(ctx context.Context, id asset.ID, total sdkmath.Uint) error {
	_, err := s.db.Exec(ctx, `INSERT INTO vault_pools (asset, total_shares, updated_at)
        VALUES ($1, $2::text::numeric, now())
        ON CONFLICT (asset) DO UPDATE SET total_shares = EXCLUDED.total_shares, updated_at = now()`,
		id.String(), total.String())
	return err
}

// Assets lists every asset that has ever held a pool.
func (s *PostgresStore) Assets(ctx context.Context) ([]asset.ID, error) {
	rows, err := s.db.Query(ctx, `SELECT asset FROM vault_pools ORDER BY asset`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []asset.ID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		id, err := asset.Parse(raw)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

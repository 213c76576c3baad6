package ledger

import (
	"context"
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/congo-pay/sharevault/internal/asset"
	"github.com/congo-pay/sharevault/internal/sharemath"
)

// Schema creates the tables used by PostgresLedger. Amounts are NUMERIC(78,0)
// so every 256-bit value fits.
const Schema = `
CREATE TABLE IF NOT EXISTS share_balances (
    owner  TEXT NOT NULL,
    asset  TEXT NOT NULL,
    amount NUMERIC(78,0) NOT NULL DEFAULT 0 CHECK (amount >= 0),
    PRIMARY KEY (owner, asset)
);
CREATE TABLE IF NOT EXISTS share_allowances (
    owner   TEXT NOT NULL,
    spender TEXT NOT NULL,
    asset   TEXT NOT NULL,
    amount  NUMERIC(78,0) NOT NULL DEFAULT 0 CHECK (amount >= 0),
    PRIMARY KEY (owner, spender, asset)
);
CREATE TABLE IF NOT EXISTS share_postings (
    id         UUID PRIMARY KEY,
    kind       TEXT NOT NULL,
    owner      TEXT NOT NULL,
    asset      TEXT NOT NULL,
    delta      NUMERIC(79,0) NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`

// PostgresLedger persists share balances in PostgreSQL and records every
// posting in share_postings.
type PostgresLedger struct {
	db *pgxpool.Pool
}

// NewPostgresLedger constructs a Postgres-backed ledger implementation.
func NewPostgresLedger(db *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{db: db}
}

// EnsureSchema creates the ledger tables when missing.
func (l *PostgresLedger) EnsureSchema(ctx context.Context) error {
	_, err := l.db.Exec(ctx, Schema)
	return err
}

// BalanceOf returns the owner's units of id; unknown owners hold zero.
func (l *PostgresLedger) BalanceOf(ctx context.Context, owner common.Address, id asset.ID) (sdkmath.Uint, error) {
	return queryAmount(ctx, l.db, `SELECT amount::text FROM share_balances WHERE owner = $1 AND asset = $2`,
		owner.Hex(), id.String())
}

// Allowance returns the spender's approved units of id.
func (l *PostgresLedger) TotalSupply(ctx context.Context, id asset.ID) (sdkmath.Uint, error) {
	return queryAmount(ctx, l.db, `SELECT COALESCE(SUM(amount), 0)::text FROM share_balances WHERE asset = $1`, id.String())
}

func (l *PostgresLedger) Allowance(ctx context.Context, owner, spender common.Address, id asset.ID) (sdkmath.Uint, error) {
	return queryAmount(ctx, l.db, `SELECT amount::text FROM share_allowances WHERE owner = $1 AND spender = $2 AND asset = $3`,
		owner.Hex(), spender.Hex(), id.String())
}

// Approve overwrites the allowance record.
func (l *PostgresLedger) Approve(ctx context.Context, owner, spender common.Address, id asset.ID, amount sdkmath.Uint) error {
	_, err := l.db.Exec(ctx, `INSERT INTO share_allowances (owner, spender, asset, amount)
        VALUES ($1, $2, $3, $4::text::numeric)
        ON CONFLICT (owner, spender, asset) DO UPDATE SET amount = EXCLUDED.amount`,
		owner.Hex(), spender.Hex(), id.String(), amount.String())
	return err
}

// Mint credits amount units to the owner.
func (l *PostgresLedger) Mint(ctx context.Context, to common.Address, id asset.ID, amount sdkmath.Uint) (sdkmath.Uint, error) {
	if amount.IsZero() {
		return sdkmath.ZeroUint(), ErrInvalidAmount
	}
	var next sdkmath.Uint
	err := l.inTx(ctx, func(tx pgx.Tx) error {
		current, err := lockBalance(ctx, tx, to, id)
		if err != nil {
			return err
		}
		if next, err = sharemath.CheckedAdd(current, amount); err != nil {
			return err
		}
		if err := writeBalance(ctx, tx, to, id, next); err != nil {
			return err
		}
		return recordPosting(ctx, tx, PostingMint, to, id, amount.String())
	})
	if err != nil {
		return sdkmath.ZeroUint(), err
	}
	return next, nil
}

// Burn debits amount units from the owner.
func (l *PostgresLedger) Burn(ctx context.Context, from common.Address, id asset.ID, amount sdkmath.Uint) (sdkmath.Uint, error) {
	if amount.IsZero() {
		return sdkmath.ZeroUint(), ErrInvalidAmount
	}
	var next sdkmath.Uint
	err := l.inTx(ctx, func(tx pgx.Tx) error {
		current, err := lockBalance(ctx, tx, from, id)
		if err != nil {
			return err
		}
		if current.LT(amount) {
			return ErrInsufficientBalance
		}
		next = current.Sub(amount)
		if err := writeBalance(ctx, tx, from, id, next); err != nil {
			return err
		}
		return recordPosting(ctx, tx, PostingBurn, from, id, "-"+amount.String())
	})
	if err != nil {
		return sdkmath.ZeroUint(), err
	}
	return next, nil
}

// Transfer moves units between owners.
func (l *PostgresLedger) Transfer(ctx context.Context, from, to common.Address, id asset.ID, amount sdkmath.Uint) (TransferResult, error) {
	var res TransferResult
	err := l.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		res, err = move(ctx, tx, from, to, id, amount)
		return err
	})
	return res, err
}

// TransferFrom moves units on behalf of from and consumes a finite allowance.
func (l *PostgresLedger) TransferFrom(ctx context.Context, spender, from, to common.Address, id asset.ID, amount sdkmath.Uint) (TransferResult, error) {
	var res TransferResult
	err := l.inTx(ctx, func(tx pgx.Tx) error {
		allowed, err := queryAmount(ctx, tx, `SELECT amount::text FROM share_allowances
            WHERE owner = $1 AND spender = $2 AND asset = $3 FOR UPDATE`,
			from.Hex(), spender.Hex(), id.String())
		if err != nil {
			return err
		}
		limited := spender != from && !sharemath.IsUnlimited(allowed)
		if limited && allowed.LT(amount) {
			return ErrInsufficientAllowance
		}
		if res, err = move(ctx, tx, from, to, id, amount); err != nil {
			return err
		}
		if !limited {
			return nil
		}
		_, err = tx.Exec(ctx, `UPDATE share_allowances SET amount = $4::text::numeric
            WHERE owner = $1 AND spender = $2 AND asset = $3`,
			from.Hex(), spender.Hex(), id.String(), allowed.Sub(amount).String())
		return err
	})
	return res, err
}

func (l *PostgresLedger) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func move(ctx context.Context, tx pgx.Tx, from, to common.Address, id asset.ID, amount sdkmath.Uint) (TransferResult, error) {
	if amount.IsZero() {
		return TransferResult{}, ErrInvalidAmount
	}
	fromBalance, err := lockBalance(ctx, tx, from, id)
	if err != nil {
		return TransferResult{}, err
	}
	if fromBalance.LT(amount) {
		return TransferResult{}, ErrInsufficientBalance
	}
	if err := writeBalance(ctx, tx, from, id, fromBalance.Sub(amount)); err != nil {
		return TransferResult{}, err
	}
	toBalance, err := lockBalance(ctx, tx, to, id)
	if err != nil {
		return TransferResult{}, err
	}
	if toBalance, err = sharemath.CheckedAdd(toBalance, amount); err != nil {
		return TransferResult{}, err
	}
	if err := writeBalance(ctx, tx, to, id, toBalance); err != nil {
		return TransferResult{}, err
	}
	if err := recordPosting(ctx, tx, PostingTransfer, from, id, "-"+amount.String()); err != nil {
		return TransferResult{}, err
	}
	txID := uuid.New()
	if _, err := tx.Exec(ctx, `INSERT INTO share_postings (id, kind, owner, asset, delta)
        VALUES ($1, $2, $3, $4, $5::text::numeric)`, txID, PostingTransfer, to.Hex(), id.String(), amount.String()); err != nil {
		return TransferResult{}, err
	}
	fromAfter, err := lockBalance(ctx, tx, from, id)
	if err != nil {
		return TransferResult{}, err
	}
	return TransferResult{TransactionID: txID.String(), FromBalance: fromAfter, ToBalance: toBalance}, nil
}

func lockBalance(ctx context.Context, tx pgx.Tx, owner common.Address, id asset.ID) (sdkmath.Uint, error) {
	return queryAmount(ctx, tx, `SELECT amount::text FROM share_balances WHERE owner = $1 AND asset = $2 FOR UPDATE`,
		owner.Hex(), id.String())
}

func writeBalance(ctx context.Context, tx pgx.Tx, owner common.Address, id asset.ID, amount sdkmath.Uint) error {
	_, err := tx.Exec(ctx, `INSERT INTO share_balances (owner, asset, amount)
        VALUES ($1, $2, $3::text::numeric)
        ON CONFLICT (owner, asset) DO UPDATE SET amount = EXCLUDED.amount`,
		owner.Hex(), id.String(), amount.String())
	return err
}

func recordPosting(ctx context.Context, tx pgx.Tx, kind string, owner common.Address, id asset.ID, delta string) error {
	_, err := tx.Exec(ctx, `INSERT INTO share_postings (id, kind, owner, asset, delta)
        VALUES ($1, $2, $3, $4, $5::text::numeric)`, uuid.New(), kind, owner.Hex(), id.String(), delta)
	return err
}

type queryer interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func queryAmount(ctx context.Context, q queryer, query string, args ...any) (sdkmath.Uint, error) {
	var raw string
	if err := q.QueryRow(ctx, query, args...).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return sdkmath.ZeroUint(), nil
		}
		return sdkmath.ZeroUint(), err
	}
	v, err := sdkmath.ParseUint(raw)
	if err != nil {
		return sdkmath.ZeroUint(), fmt.Errorf("decode stored amount %q: %w", raw, err)
	}
	return v, nil
}

package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"genserver/internal/domain"
)

// LedgerRepositoryPG implements domain.LedgerRepository on PostgreSQL.
type LedgerRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewLedgerRepository creates a new ledger repository backed by PostgreSQL.
func NewLedgerRepository(pool *pgxpool.Pool) *LedgerRepositoryPG {
	return &LedgerRepositoryPG{pool: pool}
}

// ApplyDelta inserts the settlement record and mutates the balance as one
// transaction. The settlements primary key carries the exactly-once
// guarantee: a second call with the same token inserts nothing and returns
// the balance unchanged.
func (r *LedgerRepositoryPG) ApplyDelta(ctx context.Context, ownerID string, delta int64, idempotencyToken string) (int64, bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, false, fmt.Errorf("begin settlement: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
INSERT INTO settlements (external_event_id)
VALUES ($1)
ON CONFLICT (external_event_id) DO NOTHING;
`, idempotencyToken)
	if err != nil {
		return 0, false, fmt.Errorf("insert settlement: %w", err)
	}
	if tag.RowsAffected() == 0 {
		balance, err := balanceTx(ctx, tx, ownerID)
		if err != nil {
			return 0, false, err
		}
		return balance, true, tx.Commit(ctx)
	}

	_, err = tx.Exec(ctx, `
INSERT INTO credit_balances (owner_id, amount)
VALUES ($1, 0)
ON CONFLICT (owner_id) DO NOTHING;
`, ownerID)
	if err != nil {
		return 0, false, fmt.Errorf("ensure balance row: %w", err)
	}

	var balance int64
	err = tx.QueryRow(ctx, `
UPDATE credit_balances
SET amount = amount + $2
WHERE owner_id = $1 AND amount + $2 >= 0
RETURNING amount;
`, ownerID, delta).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, domain.ErrInsufficientBalance
		}
		return 0, false, fmt.Errorf("apply delta: %w", err)
	}

	return balance, false, tx.Commit(ctx)
}

// Balance returns the owner's current balance; owners with no row have zero.
func (r *LedgerRepositoryPG) Balance(ctx context.Context, ownerID string) (int64, error) {
	var balance int64
	err := r.pool.QueryRow(ctx, `
SELECT coalesce((SELECT amount FROM credit_balances WHERE owner_id = $1), 0);
`, ownerID).Scan(&balance)
	return balance, err
}

func balanceTx(ctx context.Context, tx pgx.Tx, ownerID string) (int64, error) {
	var balance int64
	err := tx.QueryRow(ctx, `
SELECT coalesce((SELECT amount FROM credit_balances WHERE owner_id = $1), 0);
`, ownerID).Scan(&balance)
	return balance, err
}

var _ domain.LedgerRepository = (*LedgerRepositoryPG)(nil)

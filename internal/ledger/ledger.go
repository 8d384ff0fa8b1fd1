// Package ledger is the only code path allowed to mutate credit balances.
// Every mutation is keyed by an idempotency token so the same external event
// settles exactly once.
package ledger

import (
	"context"

	"github.com/rs/zerolog"

	"genserver/internal/domain"
)

// Ledger applies balance deltas with exactly-once semantics.
type Ledger struct {
	repo   domain.LedgerRepository
	logger zerolog.Logger
}

// New wires a ledger onto its repository.
func New(repo domain.LedgerRepository, logger zerolog.Logger) *Ledger {
	return &Ledger{repo: repo, logger: logger.With().Str("component", "ledger").Logger()}
}

// ApplyDelta applies delta to the owner's balance, keyed by token. Negative
// deltas consume credits, positive deltas grant them. A repeated token is a
// normal no-op: the current balance is returned with alreadyApplied=true.
// A delta that would drive the balance negative returns
// domain.ErrInsufficientBalance and mutates nothing.
func (l *Ledger) ApplyDelta(ctx context.Context, ownerID string, delta int64, token string) (int64, bool, error) {
	balance, alreadyApplied, err := l.repo.ApplyDelta(ctx, ownerID, delta, token)
	if err != nil {
		return 0, false, err
	}
	if alreadyApplied {
		l.logger.Debug().
			Str("owner_id", ownerID).
			Str("token", token).
			Msg("settlement already applied")
		return balance, true, nil
	}
	l.logger.Info().
		Str("owner_id", ownerID).
		Str("token", token).
		Int64("delta", delta).
		Int64("balance", balance).
		Msg("settlement applied")
	return balance, false, nil
}

// Balance reads the owner's current balance.
func (l *Ledger) Balance(ctx context.Context, ownerID string) (int64, error) {
	return l.repo.Balance(ctx, ownerID)
}

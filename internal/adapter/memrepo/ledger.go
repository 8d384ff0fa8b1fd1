package memrepo

import (
	"context"
	"time"

	"genserver/internal/domain"
)

type ledgerRepo Store

func (r *ledgerRepo) store() *Store { return (*Store)(r) }

func (r *ledgerRepo) ApplyDelta(_ context.Context, ownerID string, delta int64, idempotencyToken string) (int64, bool, error) {
	s := r.store()
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, applied := s.settlements[idempotencyToken]; applied {
		return s.balances[ownerID], true, nil
	}
	next := s.balances[ownerID] + delta
	if next < 0 {
		return 0, false, domain.ErrInsufficientBalance
	}
	s.settlements[idempotencyToken] = time.Now()
	s.balances[ownerID] = next
	return next, false, nil
}

func (r *ledgerRepo) Balance(_ context.Context, ownerID string) (int64, error) {
	s := r.store()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balances[ownerID], nil
}

var _ domain.LedgerRepository = (*ledgerRepo)(nil)

package memrepo

import (
	"context"
	"time"

	"genserver/internal/domain"
)

type paymentRepo Store

func (r *paymentRepo) store() *Store { return (*Store)(r) }

func (r *paymentRepo) Create(_ context.Context, payment *domain.Payment) error {
	s := r.store()
	s.mu.Lock()
	defer s.mu.Unlock()

	c := clonePayment(payment)
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	c.UpdatedAt = c.CreatedAt
	s.payments[c.ID] = c
	return nil
}

func (r *paymentRepo) GetByID(_ context.Context, paymentID string) (*domain.Payment, error) {
	s := r.store()
	s.mu.Lock()
	defer s.mu.Unlock()

	payment, ok := s.payments[paymentID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return clonePayment(payment), nil
}

func (r *paymentRepo) GetByExternalID(_ context.Context, externalID string) (*domain.Payment, error) {
	s := r.store()
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.payments {
		if p.ExternalID == externalID {
			return clonePayment(p), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *paymentRepo) MarkStatus(_ context.Context, paymentID string, status domain.PaymentStatus) error {
	s := r.store()
	s.mu.Lock()
	defer s.mu.Unlock()

	payment, ok := s.payments[paymentID]
	if !ok {
		return domain.ErrNotFound
	}
	if payment.Status.Terminal() {
		return nil
	}
	payment.Status = status
	payment.UpdatedAt = time.Now()
	return nil
}

var _ domain.PaymentRepository = (*paymentRepo)(nil)

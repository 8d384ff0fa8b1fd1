package memrepo

import (
	"context"
	"time"

	"genserver/internal/domain"
)

type batchRepo Store

func (r *batchRepo) store() *Store { return (*Store)(r) }

func (r *batchRepo) CreateWithJobs(_ context.Context, batch *domain.Batch, jobs []*domain.Job) error {
	s := r.store()
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	b := cloneBatch(batch)
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = b.CreatedAt
	s.batches[b.ID] = b

	for i, job := range jobs {
		c := cloneJob(job)
		if c.CreatedAt.IsZero() {
			// Preserve admission order under the oldest-first claim policy.
			c.CreatedAt = now.Add(time.Duration(i) * time.Microsecond)
		}
		c.UpdatedAt = c.CreatedAt
		s.jobs[c.ID] = c
	}
	return nil
}

func (r *batchRepo) GetByID(_ context.Context, batchID string) (*domain.Batch, error) {
	s := r.store()
	s.mu.Lock()
	defer s.mu.Unlock()

	batch, ok := s.batches[batchID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneBatch(batch), nil
}

func (r *batchRepo) UpdateStatus(_ context.Context, batchID string, status domain.BatchStatus) error {
	s := r.store()
	s.mu.Lock()
	defer s.mu.Unlock()

	batch, ok := s.batches[batchID]
	if !ok {
		return domain.ErrNotFound
	}
	batch.Status = status
	batch.UpdatedAt = time.Now()
	return nil
}

var _ domain.BatchRepository = (*batchRepo)(nil)

package memrepo

import (
	"context"
	"time"

	"genserver/internal/domain"
)

type jobRepo Store

func (r *jobRepo) store() *Store { return (*Store)(r) }

func (r *jobRepo) Create(_ context.Context, job *domain.Job) error {
	s := r.store()
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	c := cloneJob(job)
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = c.CreatedAt
	s.jobs[c.ID] = c
	return nil
}

func (r *jobRepo) GetByID(_ context.Context, jobID string) (*domain.Job, error) {
	s := r.store()
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneJob(job), nil
}

func (r *jobRepo) ListByBatch(_ context.Context, batchID string) ([]domain.Job, error) {
	s := r.store()
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Job
	for _, j := range s.sortedJobs(func(j *domain.Job) bool {
		return j.BatchID != nil && *j.BatchID == batchID
	}) {
		out = append(out, *cloneJob(j))
	}
	return out, nil
}

func (r *jobRepo) CountActiveByOwner(_ context.Context, ownerID string) (int, error) {
	s := r.store()
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, j := range s.jobs {
		if j.OwnerID == ownerID && !j.Status.Terminal() {
			count++
		}
	}
	return count, nil
}

func (r *jobRepo) ClaimNext(_ context.Context, workerID string) (*domain.Job, error) {
	s := r.store()
	s.mu.Lock()
	defer s.mu.Unlock()

	queued := s.sortedJobs(func(j *domain.Job) bool { return j.Status == domain.JobStatusQueued })
	if len(queued) == 0 {
		return nil, domain.ErrNoJobAvailable
	}
	job := queued[0]
	job.Status = domain.JobStatusProcessing
	job.ClaimedBy = workerID
	job.UpdatedAt = time.Now()
	return cloneJob(job), nil
}

func (r *jobRepo) Commit(_ context.Context, jobID string, outcome domain.JobOutcome) error {
	s := r.store()
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	if job.Status.Terminal() {
		return nil
	}
	if job.Status != domain.JobStatusProcessing {
		return domain.ErrNotFound
	}
	job.Status = outcome.Status
	job.ResultJSON = append([]byte(nil), outcome.ResultJSON...)
	job.ErrorMessage = outcome.ErrorMessage
	job.UpdatedAt = time.Now()
	return nil
}

func (r *jobRepo) RequeueStale(_ context.Context, olderThan time.Duration, limit int) (int, error) {
	s := r.store()
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-olderThan)
	requeued := 0
	for _, j := range s.sortedJobs(func(j *domain.Job) bool {
		return j.Status == domain.JobStatusProcessing && j.UpdatedAt.Before(cutoff)
	}) {
		if requeued >= limit {
			break
		}
		j.Status = domain.JobStatusQueued
		j.ClaimedBy = ""
		j.UpdatedAt = time.Now()
		requeued++
	}
	return requeued, nil
}

func (r *jobRepo) ListCompletedUnsettled(_ context.Context, limit int) ([]domain.Job, error) {
	s := r.store()
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Job
	for _, j := range s.sortedJobs(func(j *domain.Job) bool {
		if j.Status != domain.JobStatusCompleted {
			return false
		}
		_, settled := s.settlements[j.ID]
		return !settled
	}) {
		if len(out) >= limit {
			break
		}
		out = append(out, *cloneJob(j))
	}
	return out, nil
}

var _ domain.JobRepository = (*jobRepo)(nil)

// Package memrepo provides in-memory implementations of the domain
// repositories. They back tests and local development without a database;
// all coordination happens under one mutex, which preserves the same
// atomicity the PostgreSQL repositories get from conditional updates.
package memrepo

import (
	"sort"
	"sync"
	"time"

	"genserver/internal/domain"
)

// Store holds all in-memory state. Jobs, batches, balances, settlements and
// payments share one lock so cross-table operations stay atomic.
type Store struct {
	mu          sync.Mutex
	jobs        map[string]*domain.Job
	batches     map[string]*domain.Batch
	balances    map[string]int64
	settlements map[string]time.Time
	payments    map[string]*domain.Payment
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		jobs:        make(map[string]*domain.Job),
		batches:     make(map[string]*domain.Batch),
		balances:    make(map[string]int64),
		settlements: make(map[string]time.Time),
		payments:    make(map[string]*domain.Payment),
	}
}

// Jobs returns the job repository view of the store.
func (s *Store) Jobs() domain.JobRepository { return (*jobRepo)(s) }

// Batches returns the batch repository view of the store.
func (s *Store) Batches() domain.BatchRepository { return (*batchRepo)(s) }

// Ledger returns the ledger repository view of the store.
func (s *Store) Ledger() domain.LedgerRepository { return (*ledgerRepo)(s) }

// Payments returns the payment repository view of the store.
func (s *Store) Payments() domain.PaymentRepository { return (*paymentRepo)(s) }

func cloneJob(j *domain.Job) *domain.Job {
	c := *j
	if j.BatchID != nil {
		id := *j.BatchID
		c.BatchID = &id
	}
	c.PayloadJSON = append([]byte(nil), j.PayloadJSON...)
	c.ResultJSON = append([]byte(nil), j.ResultJSON...)
	return &c
}

func cloneBatch(b *domain.Batch) *domain.Batch {
	c := *b
	c.ParamsJSON = append([]byte(nil), b.ParamsJSON...)
	return &c
}

func clonePayment(p *domain.Payment) *domain.Payment {
	c := *p
	return &c
}

func (s *Store) sortedJobs(filter func(*domain.Job) bool) []*domain.Job {
	var out []*domain.Job
	for _, j := range s.jobs {
		if filter(j) {
			out = append(out, j)
		}
	}
	sort.Slice(out, func(i, k int) bool {
		if out[i].CreatedAt.Equal(out[k].CreatedAt) {
			return out[i].ID < out[k].ID
		}
		return out[i].CreatedAt.Before(out[k].CreatedAt)
	})
	return out
}

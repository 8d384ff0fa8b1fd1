// Package batchview derives batch-level status from job rows. There is no
// push channel from the workers; every read recomputes the counts.
package batchview

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"genserver/internal/domain"
)

// Aggregator serves batch views to their owners.
type Aggregator struct {
	jobs    domain.JobRepository
	batches domain.BatchRepository
	logger  zerolog.Logger
}

// NewAggregator wires an aggregator onto the given repositories.
func NewAggregator(jobs domain.JobRepository, batches domain.BatchRepository, logger zerolog.Logger) *Aggregator {
	return &Aggregator{
		jobs:    jobs,
		batches: batches,
		logger:  logger.With().Str("component", "batchview").Logger(),
	}
}

// GetBatchView loads the batch, recomputes its stats from job rows, derives
// the status and writes the derived status back when it changed. Non-owners
// of an existing batch get ErrForbidden.
func (a *Aggregator) GetBatchView(ctx context.Context, batchID, ownerID string) (*domain.BatchView, error) {
	batch, err := a.batches.GetByID(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if batch.OwnerID != ownerID {
		return nil, domain.ErrForbidden
	}

	items, err := a.jobs.ListByBatch(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("list batch jobs: %w", err)
	}

	var stats domain.BatchStats
	for _, job := range items {
		switch job.Status {
		case domain.JobStatusQueued:
			stats.Queued++
		case domain.JobStatusProcessing:
			stats.Processing++
		case domain.JobStatusCompleted:
			stats.Completed++
		case domain.JobStatusFailed:
			stats.Failed++
		}
	}

	derived := domain.DeriveBatchStatus(stats, batch.TotalItems)
	if derived != batch.Status {
		// Cache refresh only; the derived value stays recomputable.
		if err := a.batches.UpdateStatus(ctx, batchID, derived); err != nil {
			a.logger.Warn().Err(err).Str("batch_id", batchID).Msg("status write-back failed")
		}
		batch.Status = derived
	}

	return &domain.BatchView{Batch: *batch, Stats: stats, Items: items}, nil
}

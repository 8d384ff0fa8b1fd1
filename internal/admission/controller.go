// Package admission validates and rate-limits incoming generation requests
// before any job rows exist. Admission never touches credits: charging
// happens only when a job succeeds, so failed work is never billed.
package admission

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"genserver/internal/domain"
)

// Limits are the admission thresholds. MaxQueuedPerUser is advisory: the
// count-then-insert sequence is not atomic, so a late admission may
// transiently overshoot it by a small margin.
type Limits struct {
	MaxItemsPerBatch int
	MaxQueuedPerUser int
}

// Item is one requested generation inside a batch.
type Item struct {
	Prompt string `json:"prompt"`
}

// Controller admits batches and standalone jobs into the job store.
type Controller struct {
	jobs    domain.JobRepository
	batches domain.BatchRepository
	limits  Limits
	logger  zerolog.Logger
}

// NewController wires an admission controller onto the given repositories.
func NewController(jobs domain.JobRepository, batches domain.BatchRepository, limits Limits, logger zerolog.Logger) *Controller {
	return &Controller{
		jobs:    jobs,
		batches: batches,
		limits:  limits,
		logger:  logger.With().Str("component", "admission").Logger(),
	}
}

// AdmitBatch validates the request, checks backpressure and creates the
// batch with all of its jobs. No rows are created on rejection.
func (c *Controller) AdmitBatch(ctx context.Context, ownerID string, params json.RawMessage, items []Item) (*domain.Batch, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: batch requires at least one item", domain.ErrValidation)
	}
	if len(items) > c.limits.MaxItemsPerBatch {
		return nil, fmt.Errorf("%w: batch exceeds %d items", domain.ErrValidation, c.limits.MaxItemsPerBatch)
	}
	for i, item := range items {
		if item.Prompt == "" {
			return nil, fmt.Errorf("%w: item %d has an empty prompt", domain.ErrValidation, i)
		}
	}

	if err := c.checkBackpressure(ctx, ownerID, len(items)); err != nil {
		return nil, err
	}

	if len(params) == 0 {
		params = json.RawMessage(`{}`)
	}
	batch := &domain.Batch{
		ID:         uuid.NewString(),
		OwnerID:    ownerID,
		ParamsJSON: params,
		TotalItems: len(items),
		Status:     domain.BatchStatusQueued,
	}

	jobs := make([]*domain.Job, 0, len(items))
	for i, item := range items {
		payload, err := json.Marshal(domain.BatchItemPayload{Prompt: item.Prompt, Index: i})
		if err != nil {
			return nil, fmt.Errorf("encode item payload: %w", err)
		}
		batchID := batch.ID
		jobs = append(jobs, &domain.Job{
			ID:          uuid.NewString(),
			OwnerID:     ownerID,
			BatchID:     &batchID,
			Type:        domain.JobTypeBatchItem,
			PayloadJSON: payload,
			Status:      domain.JobStatusQueued,
		})
	}

	if err := c.batches.CreateWithJobs(ctx, batch, jobs); err != nil {
		return nil, fmt.Errorf("persist batch: %w", err)
	}

	c.logger.Info().
		Str("batch_id", batch.ID).
		Str("owner_id", ownerID).
		Int("total_items", batch.TotalItems).
		Msg("batch admitted")
	return batch, nil
}

// AdmitSingle admits one standalone generation job.
func (c *Controller) AdmitSingle(ctx context.Context, ownerID string, payload domain.SingleGenerationPayload) (*domain.Job, error) {
	if payload.Prompt == "" {
		return nil, fmt.Errorf("%w: prompt is required", domain.ErrValidation)
	}

	if err := c.checkBackpressure(ctx, ownerID, 1); err != nil {
		return nil, err
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	job := &domain.Job{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		Type:        domain.JobTypeSingleGeneration,
		PayloadJSON: raw,
		Status:      domain.JobStatusQueued,
	}
	if err := c.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("persist job: %w", err)
	}

	c.logger.Info().Str("job_id", job.ID).Str("owner_id", ownerID).Msg("job admitted")
	return job, nil
}

func (c *Controller) checkBackpressure(ctx context.Context, ownerID string, incoming int) error {
	active, err := c.jobs.CountActiveByOwner(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("count active jobs: %w", err)
	}
	if active+incoming > c.limits.MaxQueuedPerUser {
		c.logger.Warn().
			Str("owner_id", ownerID).
			Int("active", active).
			Int("incoming", incoming).
			Msg("backpressure rejection")
		return fmt.Errorf("%w: %d active + %d incoming over limit %d",
			domain.ErrBackpressureExceeded, active, incoming, c.limits.MaxQueuedPerUser)
	}
	return nil
}

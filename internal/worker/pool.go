// Package worker runs the execution loops that drain the job store. Workers
// share no in-memory state; all coordination goes through the store's
// atomic claim operation, so any number of pools may run against the same
// database.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"genserver/internal/domain"
	"genserver/internal/ledger"
	"genserver/internal/provider"
	"genserver/internal/provider/generate"
)

// Options tunes a pool.
type Options struct {
	Workers          int
	PollInterval     time.Duration
	GenerateTimeout  time.Duration
	Retry            provider.RetryPolicy
	CreditsPerJob    int64
	StaleJobAfter    time.Duration
	ReaperInterval   time.Duration
	ReaperBatchLimit int
	SettleInterval   time.Duration
	SettleBatchLimit int
}

// Pool claims jobs, invokes the generator and commits outcomes.
type Pool struct {
	jobs      domain.JobRepository
	batches   domain.BatchRepository
	generator generate.Generator
	ledger    *ledger.Ledger
	opts      Options
	logger    zerolog.Logger
}

// NewPool wires a worker pool onto its dependencies.
func NewPool(jobs domain.JobRepository, batches domain.BatchRepository, gen generate.Generator, led *ledger.Ledger, opts Options, logger zerolog.Logger) *Pool {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	if opts.GenerateTimeout <= 0 {
		opts.GenerateTimeout = time.Minute
	}
	if opts.ReaperBatchLimit <= 0 {
		opts.ReaperBatchLimit = 100
	}
	if opts.SettleBatchLimit <= 0 {
		opts.SettleBatchLimit = 100
	}
	return &Pool{
		jobs:      jobs,
		batches:   batches,
		generator: gen,
		ledger:    led,
		opts:      opts,
		logger:    logger.With().Str("component", "worker").Logger(),
	}
}

// Run starts the worker loops plus the reaper and settlement backfill loops,
// and blocks until ctx is cancelled.
func (p *Pool) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for i := 0; i < p.opts.Workers; i++ {
		workerID := fmt.Sprintf("worker-%s", uuid.NewString())
		g.Go(func() error { return p.runLoop(ctx, workerID) })
	}
	if p.opts.ReaperInterval > 0 {
		g.Go(func() error { return p.runReaper(ctx) })
	}
	if p.opts.SettleInterval > 0 {
		g.Go(func() error { return p.runSettlementBackfill(ctx) })
	}

	return g.Wait()
}

func (p *Pool) runLoop(ctx context.Context, workerID string) error {
	logger := p.logger.With().Str("worker_id", workerID).Logger()
	logger.Info().Msg("worker started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		job, err := p.jobs.ClaimNext(ctx, workerID)
		if err != nil {
			if errors.Is(err, domain.ErrNoJobAvailable) {
				p.sleep(ctx, p.opts.PollInterval)
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Error().Err(err).Msg("claim failed")
			p.sleep(ctx, p.opts.PollInterval)
			continue
		}

		p.handleJob(ctx, logger, job)
	}
}

// handleJob runs one claimed job to a terminal state. Once claimed there is
// no cancellation: the job completes or fails.
func (p *Pool) handleJob(ctx context.Context, logger zerolog.Logger, job *domain.Job) {
	logger.Info().Str("job_id", job.ID).Str("type", string(job.Type)).Msg("picked job")

	result, err := p.dispatch(ctx, job)
	if err != nil {
		logger.Error().Err(err).Str("job_id", job.ID).Msg("job failed")
		if commitErr := p.jobs.Commit(ctx, job.ID, domain.FailedOutcome(err.Error())); commitErr != nil {
			logger.Error().Err(commitErr).Str("job_id", job.ID).Msg("commit of failure outcome errored")
		}
		return
	}

	if err := p.jobs.Commit(ctx, job.ID, domain.CompletedOutcome(result.ContentJSON)); err != nil {
		logger.Error().Err(err).Str("job_id", job.ID).Msg("commit of success outcome errored")
		return
	}

	p.settleJob(ctx, logger, job)
}

// settleJob charges the owner for one completed job, keyed by the job id so
// a repeat is a no-op. An insufficient balance keeps the result and leaves
// the job unsettled for manual reconciliation.
func (p *Pool) settleJob(ctx context.Context, logger zerolog.Logger, job *domain.Job) {
	if p.opts.CreditsPerJob <= 0 {
		return
	}
	_, _, err := p.ledger.ApplyDelta(ctx, job.OwnerID, -p.opts.CreditsPerJob, job.ID)
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientBalance) {
			logger.Error().
				Str("job_id", job.ID).
				Str("owner_id", job.OwnerID).
				Msg("completed job unsettled: insufficient balance, account flagged for review")
			return
		}
		logger.Error().Err(err).Str("job_id", job.ID).Msg("settlement failed")
	}
}

// dispatch decodes the tagged payload and runs the generator under the
// timeout and retry policy. Unknown job types fail terminally.
func (p *Pool) dispatch(ctx context.Context, job *domain.Job) (generate.Result, error) {
	payload, err := domain.DecodePayload(job.Type, job.PayloadJSON)
	if err != nil {
		return generate.Result{}, err
	}

	var req generate.Request
	switch {
	case payload.Single != nil:
		req = generate.Request{JobID: job.ID, Prompt: payload.Single.Prompt, Params: payload.Single.Params}
	case payload.BatchItem != nil:
		req = generate.Request{JobID: job.ID, Prompt: payload.BatchItem.Prompt}
		if job.BatchID != nil {
			batch, err := p.batches.GetByID(ctx, *job.BatchID)
			if err != nil {
				return generate.Result{}, fmt.Errorf("load batch params: %w", err)
			}
			req.Params = json.RawMessage(batch.ParamsJSON)
		}
	default:
		return generate.Result{}, fmt.Errorf("unsupported job type %q", job.Type)
	}

	var result generate.Result
	err = provider.Retry(ctx, p.opts.Retry, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, p.opts.GenerateTimeout)
		defer cancel()
		var callErr error
		result, callErr = p.generator.Generate(callCtx, req)
		return callErr
	})
	if err != nil {
		return generate.Result{}, fmt.Errorf("generation: %w", err)
	}
	return result, nil
}

func (p *Pool) sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

package worker

import (
	"context"
	"time"
)

// runReaper periodically returns jobs stuck in processing back to queued.
// A worker that crashed mid-job leaves its claim behind; age of the last
// update is the detection signal.
func (p *Pool) runReaper(ctx context.Context) error {
	ticker := time.NewTicker(p.opts.ReaperInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		requeued, err := p.jobs.RequeueStale(ctx, p.opts.StaleJobAfter, p.opts.ReaperBatchLimit)
		if err != nil {
			p.logger.Error().Err(err).Msg("reaper sweep failed")
			continue
		}
		if requeued > 0 {
			p.logger.Warn().Int("requeued", requeued).Msg("requeued stale processing jobs")
		}
	}
}

// runSettlementBackfill re-triggers the ledger call for completed jobs that
// have no settlement record. This closes the window where a worker crashed
// after commit but before charging; the ledger call is idempotent, so
// re-running it is always safe.
func (p *Pool) runSettlementBackfill(ctx context.Context) error {
	ticker := time.NewTicker(p.opts.SettleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		jobs, err := p.jobs.ListCompletedUnsettled(ctx, p.opts.SettleBatchLimit)
		if err != nil {
			p.logger.Error().Err(err).Msg("settlement scan failed")
			continue
		}
		for i := range jobs {
			p.settleJob(ctx, p.logger, &jobs[i])
		}
	}
}

package domain

import (
	"context"
	"time"
)

// JobRepository defines persistence for job entities, including the
// claim/commit protocol workers rely on.
type JobRepository interface {
	Create(ctx context.Context, job *Job) error
	GetByID(ctx context.Context, jobID string) (*Job, error)
	ListByBatch(ctx context.Context, batchID string) ([]Job, error)
	CountActiveByOwner(ctx context.Context, ownerID string) (int, error)

	// ClaimNext atomically moves the oldest queued job to processing on
	// behalf of workerID. At most one worker ever holds a given job.
	// Returns ErrNoJobAvailable when nothing is queued.
	ClaimNext(ctx context.Context, workerID string) (*Job, error)

	// Commit transitions a processing job to its terminal state. Committing
	// an already-terminal job is a no-op, not an error.
	Commit(ctx context.Context, jobID string, outcome JobOutcome) error

	// RequeueStale returns jobs stuck in processing longer than olderThan
	// back to queued. Operator hook for crashed workers.
	RequeueStale(ctx context.Context, olderThan time.Duration, limit int) (int, error)

	// ListCompletedUnsettled reports completed jobs with no settlement
	// record, so settlement can be re-triggered after a crash.
	ListCompletedUnsettled(ctx context.Context, limit int) ([]Job, error)
}

// BatchRepository defines persistence for batches.
type BatchRepository interface {
	// CreateWithJobs inserts the batch row and all of its job rows, in a
	// single transaction where the storage engine supports one.
	CreateWithJobs(ctx context.Context, batch *Batch, jobs []*Job) error
	GetByID(ctx context.Context, batchID string) (*Batch, error)
	UpdateStatus(ctx context.Context, batchID string, status BatchStatus) error
}

// LedgerRepository applies balance deltas under settlement idempotency.
type LedgerRepository interface {
	// ApplyDelta records the settlement and mutates the balance as one
	// atomic unit. A repeated token returns the current balance with
	// alreadyApplied=true and no mutation. A delta that would drive the
	// balance negative returns ErrInsufficientBalance and no mutation.
	ApplyDelta(ctx context.Context, ownerID string, delta int64, idempotencyToken string) (balance int64, alreadyApplied bool, err error)
	Balance(ctx context.Context, ownerID string) (int64, error)
}

// PaymentRepository defines persistence for payment rows.
type PaymentRepository interface {
	Create(ctx context.Context, payment *Payment) error
	GetByID(ctx context.Context, paymentID string) (*Payment, error)
	GetByExternalID(ctx context.Context, externalID string) (*Payment, error)
	// MarkStatus transitions a payment. Terminal states are sticky: the
	// update applies only when the current status is non-terminal, and a
	// repeated transition to the same terminal state is a no-op.
	MarkStatus(ctx context.Context, paymentID string, status PaymentStatus) error
}

package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"genserver/internal/domain"
)

// BatchRepositoryPG implements domain.BatchRepository on PostgreSQL.
type BatchRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewBatchRepository creates a new batch repository backed by PostgreSQL.
func NewBatchRepository(pool *pgxpool.Pool) *BatchRepositoryPG {
	return &BatchRepositoryPG{pool: pool}
}

// CreateWithJobs inserts the batch and all of its jobs in one transaction, so
// a partially populated batch is never visible.
func (r *BatchRepositoryPG) CreateWithJobs(ctx context.Context, batch *domain.Batch, jobs []*domain.Job) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin batch insert: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
INSERT INTO batches (id, owner_id, params, total_items, status)
VALUES ($1, $2, $3, $4, $5);
`, batch.ID, batch.OwnerID, batch.ParamsJSON, batch.TotalItems, batch.Status)
	if err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}

	for _, job := range jobs {
		_, err = tx.Exec(ctx, `
INSERT INTO jobs (id, owner_id, batch_id, type, payload, status)
VALUES ($1, $2, $3, $4, $5, $6);
`, job.ID, job.OwnerID, job.BatchID, job.Type, job.PayloadJSON, job.Status)
		if err != nil {
			return fmt.Errorf("insert batch job: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// GetByID fetches a batch by its identifier.
func (r *BatchRepositoryPG) GetByID(ctx context.Context, batchID string) (*domain.Batch, error) {
	query := `
SELECT id, owner_id, params, total_items, status, created_at, updated_at
FROM batches
WHERE id = $1;
`
	row := r.pool.QueryRow(ctx, query, batchID)
	var batch domain.Batch
	if err := row.Scan(
		&batch.ID,
		&batch.OwnerID,
		&batch.ParamsJSON,
		&batch.TotalItems,
		&batch.Status,
		&batch.CreatedAt,
		&batch.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &batch, nil
}

// UpdateStatus persists a recomputed batch status.
func (r *BatchRepositoryPG) UpdateStatus(ctx context.Context, batchID string, status domain.BatchStatus) error {
	query := `
UPDATE batches
SET status = $2, updated_at = now()
WHERE id = $1;
`
	_, err := r.pool.Exec(ctx, query, batchID, status)
	return err
}

var _ domain.BatchRepository = (*BatchRepositoryPG)(nil)

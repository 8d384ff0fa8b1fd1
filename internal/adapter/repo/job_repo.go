package repo

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"genserver/internal/domain"
)

// JobRepositoryPG implements domain.JobRepository on PostgreSQL.
type JobRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewJobRepository creates a new job repository backed by PostgreSQL.
func NewJobRepository(pool *pgxpool.Pool) *JobRepositoryPG {
	return &JobRepositoryPG{pool: pool}
}

// Create inserts a new job record in the queued state.
func (r *JobRepositoryPG) Create(ctx context.Context, job *domain.Job) error {
	query := `
INSERT INTO jobs (id, owner_id, batch_id, type, payload, status)
VALUES ($1, $2, $3, $4, $5, $6);
`
	_, err := r.pool.Exec(ctx, query,
		job.ID,
		job.OwnerID,
		job.BatchID,
		job.Type,
		job.PayloadJSON,
		job.Status,
	)
	return err
}

const jobColumns = `id, owner_id, batch_id, type, payload, status, result, coalesce(error_message, ''), coalesce(claimed_by, ''), created_at, updated_at`

// GetByID fetches a job by its identifier.
func (r *JobRepositoryPG) GetByID(ctx context.Context, jobID string) (*domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1;`
	row := r.pool.QueryRow(ctx, query, jobID)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return job, nil
}

// ListByBatch returns all jobs of a batch, oldest first.
func (r *JobRepositoryPG) ListByBatch(ctx context.Context, batchID string) ([]domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE batch_id = $1 ORDER BY created_at ASC, id ASC;`
	rows, err := r.pool.Query(ctx, query, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// CountActiveByOwner counts an owner's queued and processing jobs.
func (r *JobRepositoryPG) CountActiveByOwner(ctx context.Context, ownerID string) (int, error) {
	query := `
SELECT count(*)
FROM jobs
WHERE owner_id = $1 AND status IN ('queued', 'processing');
`
	var count int
	if err := r.pool.QueryRow(ctx, query, ownerID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// ClaimNext atomically claims the oldest queued job for workerID. The
// SKIP LOCKED select plus guarded update keeps concurrent workers from ever
// holding the same job.
func (r *JobRepositoryPG) ClaimNext(ctx context.Context, workerID string) (*domain.Job, error) {
	query := `
WITH next_job AS (
    SELECT id
    FROM jobs
    WHERE status = 'queued'
    ORDER BY created_at ASC
    FOR UPDATE SKIP LOCKED
    LIMIT 1
)
UPDATE jobs
SET status = 'processing', claimed_by = $1, updated_at = now()
WHERE id IN (SELECT id FROM next_job) AND status = 'queued'
RETURNING ` + jobColumns + `;
`
	row := r.pool.QueryRow(ctx, query, workerID)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNoJobAvailable
		}
		return nil, err
	}
	return job, nil
}

// Commit transitions a processing job to its terminal outcome. A job that is
// already terminal is left untouched and no error is returned, so a crashed
// worker may safely re-deliver the same outcome.
func (r *JobRepositoryPG) Commit(ctx context.Context, jobID string, outcome domain.JobOutcome) error {
	query := `
UPDATE jobs
SET status = $2,
    result = $3,
    error_message = $4,
    updated_at = now()
WHERE id = $1 AND status = 'processing';
`
	var errMsg *string
	if outcome.ErrorMessage != "" {
		errMsg = &outcome.ErrorMessage
	}
	tag, err := r.pool.Exec(ctx, query, jobID, outcome.Status, nullableBytes(outcome.ResultJSON), errMsg)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// Lost the conditional update: distinguish already-terminal from missing.
	job, err := r.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status.Terminal() {
		return nil
	}
	return domain.ErrNotFound
}

// RequeueStale returns processing jobs whose last update is older than the
// threshold back to queued.
func (r *JobRepositoryPG) RequeueStale(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	query := `
WITH stale AS (
    SELECT id
    FROM jobs
    WHERE status = 'processing' AND updated_at < now() - make_interval(secs => $1)
    ORDER BY updated_at ASC
    FOR UPDATE SKIP LOCKED
    LIMIT $2
)
UPDATE jobs
SET status = 'queued', claimed_by = NULL, updated_at = now()
WHERE id IN (SELECT id FROM stale) AND status = 'processing';
`
	tag, err := r.pool.Exec(ctx, query, olderThan.Seconds(), limit)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// ListCompletedUnsettled returns completed jobs lacking a settlement record,
// oldest first.
func (r *JobRepositoryPG) ListCompletedUnsettled(ctx context.Context, limit int) ([]domain.Job, error) {
	query := `
SELECT ` + jobColumns + `
FROM jobs
WHERE status = 'completed'
  AND NOT EXISTS (SELECT 1 FROM settlements s WHERE s.external_event_id = jobs.id::text)
ORDER BY updated_at ASC
LIMIT $1;
`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

func scanJob(row pgx.Row) (*domain.Job, error) {
	var job domain.Job
	if err := row.Scan(
		&job.ID,
		&job.OwnerID,
		&job.BatchID,
		&job.Type,
		&job.PayloadJSON,
		&job.Status,
		&job.ResultJSON,
		&job.ErrorMessage,
		&job.ClaimedBy,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &job, nil
}

func nullableBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return b
}

var _ domain.JobRepository = (*JobRepositoryPG)(nil)

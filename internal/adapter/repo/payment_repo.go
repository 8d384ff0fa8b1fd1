package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"genserver/internal/domain"
)

// PaymentRepositoryPG implements domain.PaymentRepository on PostgreSQL.
type PaymentRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewPaymentRepository creates a new payment repository backed by PostgreSQL.
func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepositoryPG {
	return &PaymentRepositoryPG{pool: pool}
}

// Create inserts a new payment row.
func (r *PaymentRepositoryPG) Create(ctx context.Context, payment *domain.Payment) error {
	query := `
INSERT INTO payments (id, owner_id, external_id, credits, status)
VALUES ($1, $2, $3, $4, $5);
`
	_, err := r.pool.Exec(ctx, query,
		payment.ID,
		payment.OwnerID,
		payment.ExternalID,
		payment.Credits,
		payment.Status,
	)
	return err
}

const paymentColumns = `id, owner_id, external_id, credits, status, created_at, updated_at`

// GetByID fetches a payment by its identifier.
func (r *PaymentRepositoryPG) GetByID(ctx context.Context, paymentID string) (*domain.Payment, error) {
	return r.get(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1;`, paymentID)
}

// GetByExternalID fetches a payment by the provider's transaction id.
func (r *PaymentRepositoryPG) GetByExternalID(ctx context.Context, externalID string) (*domain.Payment, error) {
	return r.get(ctx, `SELECT `+paymentColumns+` FROM payments WHERE external_id = $1;`, externalID)
}

// MarkStatus transitions a payment. Terminal states are sticky, so the
// update only applies while the current status is non-terminal; repeating a
// transition into the same terminal state is a no-op.
func (r *PaymentRepositoryPG) MarkStatus(ctx context.Context, paymentID string, status domain.PaymentStatus) error {
	query := `
UPDATE payments
SET status = $2, updated_at = now()
WHERE id = $1 AND status NOT IN ('succeeded', 'failed');
`
	tag, err := r.pool.Exec(ctx, query, paymentID, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	payment, err := r.GetByID(ctx, paymentID)
	if err != nil {
		return err
	}
	if payment.Status == status {
		return nil
	}
	if payment.Status.Terminal() {
		// Sticky: keep the recorded terminal state.
		return nil
	}
	return domain.ErrNotFound
}

func (r *PaymentRepositoryPG) get(ctx context.Context, query, arg string) (*domain.Payment, error) {
	row := r.pool.QueryRow(ctx, query, arg)
	var payment domain.Payment
	if err := row.Scan(
		&payment.ID,
		&payment.OwnerID,
		&payment.ExternalID,
		&payment.Credits,
		&payment.Status,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &payment, nil
}

var _ domain.PaymentRepository = (*PaymentRepositoryPG)(nil)

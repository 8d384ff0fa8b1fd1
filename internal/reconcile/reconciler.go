// Package reconcile settles external payment events onto the credit ledger.
// The webhook push path and the user-initiated poll path funnel into the
// same idempotent settlement function, so whichever arrives second observes
// a no-op instead of a double grant.
package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"genserver/internal/domain"
	"genserver/internal/ledger"
	"genserver/internal/provider"
	"genserver/internal/provider/payment"
)

// Reconciler drives the per-payment state machine
// unconfirmed → pending → succeeded | failed, with sticky terminal states.
type Reconciler struct {
	payments domain.PaymentRepository
	ledger   *ledger.Ledger
	provider payment.Provider
	retry    provider.RetryPolicy
	logger   zerolog.Logger
}

// New wires a reconciler onto its repositories and the payment provider.
func New(payments domain.PaymentRepository, led *ledger.Ledger, prov payment.Provider, retry provider.RetryPolicy, logger zerolog.Logger) *Reconciler {
	return &Reconciler{
		payments: payments,
		ledger:   led,
		provider: prov,
		retry:    retry,
		logger:   logger.With().Str("component", "reconcile").Logger(),
	}
}

// CreatePayment registers an unconfirmed payment intent to be settled later
// by webhook or poll. The row moves to pending once the provider first
// acknowledges the payment.
func (r *Reconciler) CreatePayment(ctx context.Context, ownerID, externalID string, credits int64) (*domain.Payment, error) {
	if credits <= 0 {
		return nil, fmt.Errorf("%w: credits must be positive", domain.ErrValidation)
	}
	if externalID == "" {
		return nil, fmt.Errorf("%w: external payment id is required", domain.ErrValidation)
	}
	p := &domain.Payment{
		ID:         uuid.NewString(),
		OwnerID:    ownerID,
		ExternalID: externalID,
		Credits:    credits,
		Status:     domain.PaymentStatusUnconfirmed,
	}
	if err := r.payments.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("persist payment: %w", err)
	}
	r.logger.Info().Str("payment_id", p.ID).Str("external_id", externalID).Msg("payment created")
	return p, nil
}

// ApplySuccessfulPayment settles one confirmed payment. Both the webhook and
// the poll path call this function; the ledger's idempotency token is the
// external payment id, so only the first caller grants credits. The local
// row is marked succeeded only after the ledger confirms settlement.
func (r *Reconciler) ApplySuccessfulPayment(ctx context.Context, externalPaymentID string) error {
	p, err := r.payments.GetByExternalID(ctx, externalPaymentID)
	if err != nil {
		return err
	}
	if p.Status.Terminal() {
		if p.Status == domain.PaymentStatusFailed {
			r.logger.Warn().Str("external_id", externalPaymentID).Msg("success event for failed payment ignored")
		}
		return nil
	}

	_, alreadyApplied, err := r.ledger.ApplyDelta(ctx, p.OwnerID, p.Credits, p.ExternalID)
	if err != nil {
		return fmt.Errorf("grant credits: %w", err)
	}
	if alreadyApplied {
		r.logger.Debug().Str("external_id", externalPaymentID).Msg("payment already settled")
	}

	if err := r.payments.MarkStatus(ctx, p.ID, domain.PaymentStatusSucceeded); err != nil {
		return fmt.Errorf("mark payment succeeded: %w", err)
	}
	return nil
}

// webhookEvent is the subset of the provider's webhook body the reconciler
// cares about.
type webhookEvent struct {
	Type      string `json:"type"`
	PaymentID string `json:"payment_id"`
}

// HandleWebhookEvent processes one raw webhook delivery. Malformed or
// irrelevant events are dropped silently so the provider never retries them.
func (r *Reconciler) HandleWebhookEvent(ctx context.Context, raw []byte) {
	var event webhookEvent
	if err := json.Unmarshal(raw, &event); err != nil || event.PaymentID == "" {
		r.logger.Debug().Msg("ignoring malformed webhook event")
		return
	}

	switch event.Type {
	case "payment.succeeded":
		if err := r.ApplySuccessfulPayment(ctx, event.PaymentID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				r.logger.Debug().Str("external_id", event.PaymentID).Msg("webhook for unknown payment ignored")
				return
			}
			r.logger.Error().Err(err).Str("external_id", event.PaymentID).Msg("webhook settlement failed")
		}
	case "payment.failed":
		p, err := r.payments.GetByExternalID(ctx, event.PaymentID)
		if err != nil {
			r.logger.Debug().Str("external_id", event.PaymentID).Msg("webhook for unknown payment ignored")
			return
		}
		if err := r.payments.MarkStatus(ctx, p.ID, domain.PaymentStatusFailed); err != nil {
			r.logger.Error().Err(err).Str("external_id", event.PaymentID).Msg("webhook mark failed errored")
		}
	default:
		r.logger.Debug().Str("type", event.Type).Msg("ignoring irrelevant webhook event")
	}
}

// CheckResult is the outcome of a user-initiated status check.
type CheckResult struct {
	Success bool
	Status  domain.PaymentStatus
}

// CheckPayment is the fallback poll path: when the local row is still
// non-terminal it queries the provider directly and settles through the same
// function as the webhook.
func (r *Reconciler) CheckPayment(ctx context.Context, paymentID, ownerID string) (CheckResult, error) {
	p, err := r.payments.GetByID(ctx, paymentID)
	if err != nil {
		return CheckResult{}, err
	}
	if p.OwnerID != ownerID {
		return CheckResult{}, domain.ErrForbidden
	}
	if p.Status.Terminal() {
		return CheckResult{Success: p.Status == domain.PaymentStatusSucceeded, Status: p.Status}, nil
	}

	var status payment.ProviderStatus
	err = provider.Retry(ctx, r.retry, func(ctx context.Context) error {
		var callErr error
		status, callErr = r.provider.GetStatus(ctx, p.ExternalID)
		return callErr
	})
	if err != nil {
		r.logger.Warn().Err(err).Str("payment_id", paymentID).Msg("provider status poll failed")
		return CheckResult{Success: false, Status: p.Status}, nil
	}

	switch status {
	case payment.StatusSucceeded:
		if err := r.ApplySuccessfulPayment(ctx, p.ExternalID); err != nil {
			return CheckResult{}, err
		}
		return CheckResult{Success: true, Status: domain.PaymentStatusSucceeded}, nil
	case payment.StatusFailed:
		if err := r.payments.MarkStatus(ctx, p.ID, domain.PaymentStatusFailed); err != nil {
			return CheckResult{}, err
		}
		return CheckResult{Success: false, Status: domain.PaymentStatusFailed}, nil
	default:
		if p.Status == domain.PaymentStatusUnconfirmed {
			if err := r.payments.MarkStatus(ctx, p.ID, domain.PaymentStatusPending); err != nil {
				return CheckResult{}, err
			}
		}
		return CheckResult{Success: false, Status: domain.PaymentStatusPending}, nil
	}
}

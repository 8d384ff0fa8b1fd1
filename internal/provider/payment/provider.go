// Package payment defines the PaymentProvider dependency used by the
// reconciler's poll path.
package payment

import "context"

// ProviderStatus is the provider-side view of one payment.
type ProviderStatus string

const (
	StatusPending   ProviderStatus = "pending"
	StatusSucceeded ProviderStatus = "succeeded"
	StatusFailed    ProviderStatus = "failed"
)

// Provider exposes the payment provider's status API. Implementations may
// block; callers wrap invocations with a timeout and the shared retry policy.
type Provider interface {
	GetStatus(ctx context.Context, externalPaymentID string) (ProviderStatus, error)
}

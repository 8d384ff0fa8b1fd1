package domain

import "time"

// PaymentStatus enumerates the per-payment state machine. Succeeded and
// Failed are sticky: no transition leaves them.
type PaymentStatus string

const (
	PaymentStatusUnconfirmed PaymentStatus = "unconfirmed"
	PaymentStatusPending     PaymentStatus = "pending"
	PaymentStatusSucceeded   PaymentStatus = "succeeded"
	PaymentStatusFailed      PaymentStatus = "failed"
)

// Terminal reports whether the payment state is sticky.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentStatusSucceeded || s == PaymentStatusFailed
}

// Payment tracks one external payment and the credits it grants on success.
// ExternalID is the provider's transaction id and doubles as the settlement
// idempotency token.
type Payment struct {
	ID         string
	OwnerID    string
	ExternalID string
	Credits    int64
	Status     PaymentStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

package reconcile

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"genserver/internal/adapter/memrepo"
	"genserver/internal/domain"
	"genserver/internal/ledger"
	"genserver/internal/provider"
	"genserver/internal/provider/payment"
)

type fakeProvider struct {
	status payment.ProviderStatus
	err    error
	calls  int
}

func (f *fakeProvider) GetStatus(context.Context, string) (payment.ProviderStatus, error) {
	f.calls++
	return f.status, f.err
}

func newReconciler(store *memrepo.Store, prov payment.Provider) *Reconciler {
	led := ledger.New(store.Ledger(), zerolog.Nop())
	return New(store.Payments(), led, prov, provider.RetryPolicy{MaxAttempts: 1}, zerolog.Nop())
}

func TestWebhookAndPollSettleExactlyOnce(t *testing.T) {
	store := memrepo.NewStore()
	prov := &fakeProvider{status: payment.StatusSucceeded}
	rec := newReconciler(store, prov)
	ctx := context.Background()

	p, err := rec.CreatePayment(ctx, "owner-1", "ext-42", 500)
	require.NoError(t, err)

	// Webhook push path wins the race.
	rec.HandleWebhookEvent(ctx, []byte(`{"type":"payment.succeeded","payment_id":"ext-42"}`))

	balance, err := store.Ledger().Balance(ctx, "owner-1")
	require.NoError(t, err)
	require.EqualValues(t, 500, balance)

	// The user-initiated poll arrives second and must not re-credit.
	result, err := rec.CheckPayment(ctx, p.ID, "owner-1")
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, domain.PaymentStatusSucceeded, result.Status)

	balance, err = store.Ledger().Balance(ctx, "owner-1")
	require.NoError(t, err)
	require.EqualValues(t, 500, balance, "second trigger must not grant again")

	// Local terminal state is trusted, so the provider is not consulted.
	require.Zero(t, prov.calls)
}

func TestPollSettlesWhenWebhookNeverArrived(t *testing.T) {
	store := memrepo.NewStore()
	prov := &fakeProvider{status: payment.StatusSucceeded}
	rec := newReconciler(store, prov)
	ctx := context.Background()

	p, err := rec.CreatePayment(ctx, "owner-1", "ext-7", 100)
	require.NoError(t, err)

	result, err := rec.CheckPayment(ctx, p.ID, "owner-1")
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, 1, prov.calls)

	balance, err := store.Ledger().Balance(ctx, "owner-1")
	require.NoError(t, err)
	require.EqualValues(t, 100, balance)

	// A late duplicate webhook observes the settlement and does nothing.
	rec.HandleWebhookEvent(ctx, []byte(`{"type":"payment.succeeded","payment_id":"ext-7"}`))
	balance, err = store.Ledger().Balance(ctx, "owner-1")
	require.NoError(t, err)
	require.EqualValues(t, 100, balance)
}

func TestWebhookIgnoresMalformedAndUnknownEvents(t *testing.T) {
	store := memrepo.NewStore()
	rec := newReconciler(store, &fakeProvider{})
	ctx := context.Background()

	rec.HandleWebhookEvent(ctx, []byte(`not json`))
	rec.HandleWebhookEvent(ctx, []byte(`{"type":"payment.succeeded"}`))
	rec.HandleWebhookEvent(ctx, []byte(`{"type":"payment.succeeded","payment_id":"never-seen"}`))
	rec.HandleWebhookEvent(ctx, []byte(`{"type":"invoice.created","payment_id":"ext-1"}`))
}

func TestFailedPaymentIsSticky(t *testing.T) {
	store := memrepo.NewStore()
	prov := &fakeProvider{status: payment.StatusFailed}
	rec := newReconciler(store, prov)
	ctx := context.Background()

	p, err := rec.CreatePayment(ctx, "owner-1", "ext-9", 100)
	require.NoError(t, err)

	result, err := rec.CheckPayment(ctx, p.ID, "owner-1")
	require.NoError(t, err)
	require.False(t, result.Success)
	require.Equal(t, domain.PaymentStatusFailed, result.Status)
}

func TestSuccessEventAfterFailureGrantsNothing(t *testing.T) {
	store := memrepo.NewStore()
	rec := newReconciler(store, &fakeProvider{})
	ctx := context.Background()

	p, err := rec.CreatePayment(ctx, "owner-1", "ext-11", 500)
	require.NoError(t, err)

	rec.HandleWebhookEvent(ctx, []byte(`{"type":"payment.failed","payment_id":"ext-11"}`))

	// A contradictory success event for a failed payment must neither credit
	// the ledger nor move the payment out of its terminal state.
	rec.HandleWebhookEvent(ctx, []byte(`{"type":"payment.succeeded","payment_id":"ext-11"}`))

	got, err := store.Payments().GetByID(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, domain.PaymentStatusFailed, got.Status)

	balance, err := store.Ledger().Balance(ctx, "owner-1")
	require.NoError(t, err)
	require.Zero(t, balance)
}

func TestProviderAcknowledgementMovesIntentToPending(t *testing.T) {
	store := memrepo.NewStore()
	prov := &fakeProvider{status: payment.StatusPending}
	rec := newReconciler(store, prov)
	ctx := context.Background()

	p, err := rec.CreatePayment(ctx, "owner-1", "ext-13", 100)
	require.NoError(t, err)
	require.Equal(t, domain.PaymentStatusUnconfirmed, p.Status)

	result, err := rec.CheckPayment(ctx, p.ID, "owner-1")
	require.NoError(t, err)
	require.False(t, result.Success)
	require.Equal(t, domain.PaymentStatusPending, result.Status)

	got, err := store.Payments().GetByID(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, domain.PaymentStatusPending, got.Status)
}

func TestCheckPaymentOwnership(t *testing.T) {
	store := memrepo.NewStore()
	rec := newReconciler(store, &fakeProvider{})
	ctx := context.Background()

	p, err := rec.CreatePayment(ctx, "owner-1", "ext-3", 100)
	require.NoError(t, err)

	_, err = rec.CheckPayment(ctx, p.ID, "intruder")
	require.ErrorIs(t, err, domain.ErrForbidden)

	_, err = rec.CheckPayment(ctx, "missing", "owner-1")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestProviderErrorLeavesPaymentUnsettled(t *testing.T) {
	store := memrepo.NewStore()
	prov := &fakeProvider{err: &provider.StatusError{Code: 503, Body: "down"}}
	rec := newReconciler(store, prov)
	ctx := context.Background()

	p, err := rec.CreatePayment(ctx, "owner-1", "ext-5", 100)
	require.NoError(t, err)

	result, err := rec.CheckPayment(ctx, p.ID, "owner-1")
	require.NoError(t, err)
	require.False(t, result.Success)
	require.Equal(t, domain.PaymentStatusUnconfirmed, result.Status)

	balance, err := store.Ledger().Balance(ctx, "owner-1")
	require.NoError(t, err)
	require.Zero(t, balance)
}

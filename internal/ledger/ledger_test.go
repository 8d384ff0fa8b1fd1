package ledger

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"genserver/internal/adapter/memrepo"
	"genserver/internal/domain"
)

func newLedger() *Ledger {
	return New(memrepo.NewStore().Ledger(), zerolog.Nop())
}

func TestApplyDeltaRepeatedTokenIsNoOp(t *testing.T) {
	led := newLedger()
	ctx := context.Background()

	balance, applied, err := led.ApplyDelta(ctx, "owner-1", 100, "payment-1")
	require.NoError(t, err)
	require.False(t, applied)
	require.EqualValues(t, 100, balance)

	// Same token, same delta: final balance must match calling it once.
	balance, applied, err = led.ApplyDelta(ctx, "owner-1", 100, "payment-1")
	require.NoError(t, err)
	require.True(t, applied)
	require.EqualValues(t, 100, balance)

	got, err := led.Balance(ctx, "owner-1")
	require.NoError(t, err)
	require.EqualValues(t, 100, got)
}

func TestApplyDeltaConsumption(t *testing.T) {
	led := newLedger()
	ctx := context.Background()

	_, _, err := led.ApplyDelta(ctx, "owner-1", 3, "topup-1")
	require.NoError(t, err)

	balance, applied, err := led.ApplyDelta(ctx, "owner-1", -2, "job-1")
	require.NoError(t, err)
	require.False(t, applied)
	require.EqualValues(t, 1, balance)
}

func TestApplyDeltaRejectsNegativeBalance(t *testing.T) {
	led := newLedger()
	ctx := context.Background()

	_, _, err := led.ApplyDelta(ctx, "owner-1", 1, "topup-1")
	require.NoError(t, err)

	_, _, err = led.ApplyDelta(ctx, "owner-1", -2, "job-1")
	require.ErrorIs(t, err, domain.ErrInsufficientBalance)

	// No mutation, and the token stays unconsumed for a later retry.
	balance, err := led.Balance(ctx, "owner-1")
	require.NoError(t, err)
	require.EqualValues(t, 1, balance)

	_, _, err = led.ApplyDelta(ctx, "owner-1", 2, "topup-2")
	require.NoError(t, err)
	balance, applied, err := led.ApplyDelta(ctx, "owner-1", -2, "job-1")
	require.NoError(t, err)
	require.False(t, applied)
	require.EqualValues(t, 1, balance)
}

package worker

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"genserver/internal/adapter/memrepo"
	"genserver/internal/admission"
	"genserver/internal/batchview"
	"genserver/internal/domain"
	"genserver/internal/ledger"
	"genserver/internal/provider"
	"genserver/internal/provider/generate"
)

// flakyGenerator fails prompts containing "fail" with a fatal input error.
type flakyGenerator struct{}

func (flakyGenerator) Generate(_ context.Context, req generate.Request) (generate.Result, error) {
	if strings.Contains(req.Prompt, "fail") {
		return generate.Result{}, &provider.StatusError{Code: 400, Body: "rejected prompt"}
	}
	content, _ := json.Marshal(map[string]string{"text": "ok: " + req.Prompt})
	return generate.Result{ContentJSON: content}, nil
}

func testOptions() Options {
	return Options{
		Workers:         2,
		PollInterval:    5 * time.Millisecond,
		GenerateTimeout: time.Second,
		Retry:           provider.RetryPolicy{MaxAttempts: 1, InitialDelay: time.Millisecond},
		CreditsPerJob:   1,
	}
}

func runPoolUntil(t *testing.T, pool *Pool, cond func() bool) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- pool.Run(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			cancel()
			<-done
			t.Fatal("condition not reached before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("pool stopped with unexpected error: %v", err)
	}
}

func TestPoolProcessesBatchToCompletion(t *testing.T) {
	store := memrepo.NewStore()
	led := ledger.New(store.Ledger(), zerolog.Nop())
	ctx := context.Background()

	_, _, err := led.ApplyDelta(ctx, "owner-1", 10, "topup-1")
	require.NoError(t, err)

	ctrl := admission.NewController(store.Jobs(), store.Batches(), admission.Limits{
		MaxItemsPerBatch: 200,
		MaxQueuedPerUser: 300,
	}, zerolog.Nop())
	batch, err := ctrl.AdmitBatch(ctx, "owner-1", json.RawMessage(`{"style":"photo"}`), []admission.Item{
		{Prompt: "a cat"},
		{Prompt: "a dog"},
		{Prompt: "please fail"},
	})
	require.NoError(t, err)

	pool := NewPool(store.Jobs(), store.Batches(), flakyGenerator{}, led, testOptions(), zerolog.Nop())
	agg := batchview.NewAggregator(store.Jobs(), store.Batches(), zerolog.Nop())

	runPoolUntil(t, pool, func() bool {
		view, err := agg.GetBatchView(ctx, batch.ID, "owner-1")
		return err == nil && view.Stats.Completed+view.Stats.Failed == batch.TotalItems
	})

	view, err := agg.GetBatchView(ctx, batch.ID, "owner-1")
	require.NoError(t, err)
	require.Equal(t, domain.BatchStats{Completed: 2, Failed: 1}, view.Stats)
	require.Equal(t, domain.BatchStatusCompleted, view.Batch.Status)
	require.Equal(t, batch.TotalItems, view.Stats.Total())

	for _, item := range view.Items {
		if item.Status == domain.JobStatusFailed {
			require.NotEmpty(t, item.ErrorMessage)
			require.Empty(t, item.ResultJSON)
		} else {
			require.NotEmpty(t, item.ResultJSON)
			require.Empty(t, item.ErrorMessage)
		}
	}

	// Two successes charged one credit each; the failed item is free.
	balance, err := led.Balance(ctx, "owner-1")
	require.NoError(t, err)
	require.EqualValues(t, 8, balance)
}

func TestPoolFailsUnknownJobTypeTerminally(t *testing.T) {
	store := memrepo.NewStore()
	led := ledger.New(store.Ledger(), zerolog.Nop())
	ctx := context.Background()

	job := &domain.Job{
		ID:          uuid.NewString(),
		OwnerID:     "owner-1",
		Type:        domain.JobType("pdf_render"),
		PayloadJSON: []byte(`{}`),
		Status:      domain.JobStatusQueued,
	}
	require.NoError(t, store.Jobs().Create(ctx, job))

	pool := NewPool(store.Jobs(), store.Batches(), flakyGenerator{}, led, testOptions(), zerolog.Nop())
	runPoolUntil(t, pool, func() bool {
		got, err := store.Jobs().GetByID(ctx, job.ID)
		return err == nil && got.Status.Terminal()
	})

	got, err := store.Jobs().GetByID(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, domain.JobStatusFailed, got.Status)
}

func TestSettlementBackfillChargesCompletedUnsettledJobs(t *testing.T) {
	store := memrepo.NewStore()
	led := ledger.New(store.Ledger(), zerolog.Nop())
	ctx := context.Background()

	_, _, err := led.ApplyDelta(ctx, "owner-1", 5, "topup-1")
	require.NoError(t, err)

	// Simulate a worker that crashed after commit but before settlement.
	job := &domain.Job{
		ID:          uuid.NewString(),
		OwnerID:     "owner-1",
		Type:        domain.JobTypeSingleGeneration,
		PayloadJSON: []byte(`{"prompt":"a cat"}`),
		Status:      domain.JobStatusQueued,
	}
	require.NoError(t, store.Jobs().Create(ctx, job))
	claimed, err := store.Jobs().ClaimNext(ctx, "crashed-worker")
	require.NoError(t, err)
	require.NoError(t, store.Jobs().Commit(ctx, claimed.ID, domain.CompletedOutcome([]byte(`{}`))))

	opts := testOptions()
	opts.SettleInterval = 5 * time.Millisecond
	pool := NewPool(store.Jobs(), store.Batches(), flakyGenerator{}, led, opts, zerolog.Nop())

	runPoolUntil(t, pool, func() bool {
		balance, err := led.Balance(ctx, "owner-1")
		return err == nil && balance == 4
	})

	unsettled, err := store.Jobs().ListCompletedUnsettled(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, unsettled)
}

func TestReaperRequeuesStaleClaims(t *testing.T) {
	store := memrepo.NewStore()
	led := ledger.New(store.Ledger(), zerolog.Nop())
	ctx := context.Background()

	requeued, err := store.Jobs().RequeueStale(ctx, time.Minute, 10)
	require.NoError(t, err)
	require.Zero(t, requeued)

	_, _, err = led.ApplyDelta(ctx, "owner-1", 5, "topup-1")
	require.NoError(t, err)

	job := &domain.Job{
		ID:          uuid.NewString(),
		OwnerID:     "owner-1",
		Type:        domain.JobTypeSingleGeneration,
		PayloadJSON: []byte(`{"prompt":"a cat"}`),
		Status:      domain.JobStatusQueued,
		CreatedAt:   time.Now().Add(-time.Hour),
	}
	require.NoError(t, store.Jobs().Create(ctx, job))

	// Claim it and abandon the claim.
	_, err = store.Jobs().ClaimNext(ctx, "crashed-worker")
	require.NoError(t, err)

	opts := testOptions()
	opts.StaleJobAfter = 0
	opts.ReaperInterval = 5 * time.Millisecond
	pool := NewPool(store.Jobs(), store.Batches(), flakyGenerator{}, led, opts, zerolog.Nop())

	// The reaper requeues the abandoned claim and a live worker finishes it.
	runPoolUntil(t, pool, func() bool {
		got, err := store.Jobs().GetByID(ctx, job.ID)
		return err == nil && got.Status == domain.JobStatusCompleted
	})
}

package memrepo

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"genserver/internal/domain"
)

func queueJobs(t *testing.T, store *Store, n int) []string {
	t.Helper()
	ctx := context.Background()
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		job := &domain.Job{
			ID:          uuid.NewString(),
			OwnerID:     "owner-1",
			Type:        domain.JobTypeSingleGeneration,
			PayloadJSON: []byte(fmt.Sprintf(`{"prompt":"p%d"}`, i)),
			Status:      domain.JobStatusQueued,
			CreatedAt:   time.Now().Add(time.Duration(i) * time.Microsecond),
		}
		if err := store.Jobs().Create(ctx, job); err != nil {
			t.Fatalf("create job: %v", err)
		}
		ids = append(ids, job.ID)
	}
	return ids
}

func TestClaimNextConcurrentWorkersClaimEachJobOnce(t *testing.T) {
	store := NewStore()
	const jobs = 50
	const workers = 8
	queueJobs(t, store, jobs)

	var mu sync.Mutex
	claimed := make(map[string]string)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		workerID := fmt.Sprintf("worker-%d", w)
		go func() {
			defer wg.Done()
			for {
				job, err := store.Jobs().ClaimNext(context.Background(), workerID)
				if errors.Is(err, domain.ErrNoJobAvailable) {
					return
				}
				if err != nil {
					t.Errorf("claim: %v", err)
					return
				}
				mu.Lock()
				if prev, dup := claimed[job.ID]; dup {
					t.Errorf("job %s claimed by both %s and %s", job.ID, prev, workerID)
				}
				claimed[job.ID] = workerID
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(claimed) != jobs {
		t.Fatalf("claimed %d jobs, want %d", len(claimed), jobs)
	}
}

func TestClaimNextOldestFirst(t *testing.T) {
	store := NewStore()
	ids := queueJobs(t, store, 3)

	job, err := store.Jobs().ClaimNext(context.Background(), "w1")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if job.ID != ids[0] {
		t.Fatalf("claimed %s, want oldest %s", job.ID, ids[0])
	}
	if job.Status != domain.JobStatusProcessing || job.ClaimedBy != "w1" {
		t.Fatalf("unexpected claim state: %+v", job)
	}
}

func TestCommitIsIdempotentOnTerminalJobs(t *testing.T) {
	store := NewStore()
	queueJobs(t, store, 1)
	ctx := context.Background()

	job, err := store.Jobs().ClaimNext(ctx, "w1")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}

	if err := store.Jobs().Commit(ctx, job.ID, domain.CompletedOutcome([]byte(`{"ok":true}`))); err != nil {
		t.Fatalf("first commit: %v", err)
	}
	// Crash-and-retry redelivery of a different outcome must not change state.
	if err := store.Jobs().Commit(ctx, job.ID, domain.FailedOutcome("late failure")); err != nil {
		t.Fatalf("second commit should be a no-op, got: %v", err)
	}

	got, err := store.Jobs().GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.JobStatusCompleted {
		t.Fatalf("status = %q, want completed", got.Status)
	}
	if len(got.ResultJSON) == 0 || got.ErrorMessage != "" {
		t.Fatalf("result/error exclusivity violated: %+v", got)
	}
}

func TestCommitQueuedJobIsRejected(t *testing.T) {
	store := NewStore()
	ids := queueJobs(t, store, 1)

	err := store.Jobs().Commit(context.Background(), ids[0], domain.CompletedOutcome(nil))
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for commit of unclaimed job, got %v", err)
	}
}

func TestRequeueStaleReturnsOldClaims(t *testing.T) {
	store := NewStore()
	queueJobs(t, store, 2)
	ctx := context.Background()

	first, err := store.Jobs().ClaimNext(ctx, "w1")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}

	// Make the claim look abandoned.
	store.mu.Lock()
	store.jobs[first.ID].UpdatedAt = time.Now().Add(-time.Hour)
	store.mu.Unlock()

	requeued, err := store.Jobs().RequeueStale(ctx, 10*time.Minute, 10)
	if err != nil {
		t.Fatalf("requeue: %v", err)
	}
	if requeued != 1 {
		t.Fatalf("requeued %d, want 1", requeued)
	}

	got, err := store.Jobs().GetByID(ctx, first.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.JobStatusQueued || got.ClaimedBy != "" {
		t.Fatalf("stale job not requeued: %+v", got)
	}
}

func TestListCompletedUnsettled(t *testing.T) {
	store := NewStore()
	queueJobs(t, store, 2)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		job, err := store.Jobs().ClaimNext(ctx, "w1")
		if err != nil {
			t.Fatalf("claim: %v", err)
		}
		if err := store.Jobs().Commit(ctx, job.ID, domain.CompletedOutcome([]byte(`{}`))); err != nil {
			t.Fatalf("commit: %v", err)
		}
	}

	unsettled, err := store.Jobs().ListCompletedUnsettled(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(unsettled) != 2 {
		t.Fatalf("unsettled = %d, want 2", len(unsettled))
	}

	if _, _, err := store.Ledger().ApplyDelta(ctx, "owner-1", 10, "topup-1"); err != nil {
		t.Fatalf("topup: %v", err)
	}
	if _, _, err := store.Ledger().ApplyDelta(ctx, "owner-1", -1, unsettled[0].ID); err != nil {
		t.Fatalf("settle: %v", err)
	}

	unsettled, err = store.Jobs().ListCompletedUnsettled(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(unsettled) != 1 {
		t.Fatalf("unsettled after settle = %d, want 1", len(unsettled))
	}
}

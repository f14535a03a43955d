package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Veraticus/cardwise/internal/common"
	"github.com/Veraticus/cardwise/internal/model"
	"github.com/Veraticus/cardwise/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func enqueueTestJob(t *testing.T, store *SQLiteStorage, id string, priority int, queuedAt time.Time) {
	t.Helper()
	require.NoError(t, store.EnqueueJob(context.Background(), &model.Job{
		ID:        id,
		SessionID: "session-" + id,
		Kind:      model.KindProcessSession,
		Priority:  priority,
		QueuedAt:  queuedAt,
	}))
}

func TestClaimNextJob_PriorityThenAge(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	enqueueTestJob(t, store, "late-urgent", 0, base.Add(time.Minute))
	enqueueTestJob(t, store, "old-normal", 5, base)
	enqueueTestJob(t, store, "early-urgent", 0, base)

	var order []string
	for {
		job, err := store.ClaimNextJob(ctx)
		if err != nil {
			require.ErrorIs(t, err, common.ErrNoJob)
			break
		}
		assert.Equal(t, model.JobProcessing, job.Status)
		assert.NotNil(t, job.StartedAt)
		order = append(order, job.ID)
	}
	assert.Equal(t, []string{"early-urgent", "late-urgent", "old-normal"}, order)
}

func TestClaimNextJob_Exclusive(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	const jobs, workers = 25, 8
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < jobs; i++ {
		enqueueTestJob(t, store, fmt.Sprintf("job-%02d", i), i%3, base.Add(time.Duration(i)*time.Second))
	}

	var (
		mu      sync.Mutex
		claimed = make(map[string]int)
		wg      sync.WaitGroup
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				job, err := store.ClaimNextJob(ctx)
				if err != nil {
					return
				}
				mu.Lock()
				claimed[job.ID]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, claimed, jobs)
	for id, n := range claimed {
		assert.Equal(t, 1, n, "job %s claimed %d times", id, n)
	}
}

func TestJobLifecycle(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	input, _ := json.Marshal(model.JobInput{Profile: &model.UserProfile{MonthlyIncome: 50000, CreditScore: 740}})
	require.NoError(t, store.EnqueueJob(ctx, &model.Job{
		ID: "j1", SessionID: "s1", Kind: model.KindRecommend, InputPayload: input,
	}))

	dup := store.EnqueueJob(ctx, &model.Job{ID: "j1", SessionID: "s1", Kind: model.KindRecommend})
	assert.ErrorIs(t, dup, common.ErrDuplicateEntry)

	// Progress only applies to processing jobs.
	assert.ErrorIs(t, store.UpdateJobProgress(ctx, "j1", 10, "loading"), common.ErrNotFound)

	job, err := store.ClaimNextJob(ctx)
	require.NoError(t, err)
	decoded, err := model.DecodeJobInput(job.InputPayload)
	require.NoError(t, err)
	assert.Equal(t, 740, decoded.Profile.CreditScore)

	require.NoError(t, store.UpdateJobProgress(ctx, "j1", 50, "resolving merchants"))
	assert.ErrorIs(t, store.UpdateJobProgress(ctx, "j1", 101, "x"), ErrInvalidProgress)

	job, err = store.GetJob(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, 50, job.Progress)
	assert.Equal(t, "resolving merchants", job.CurrentStep)

	require.NoError(t, store.CompleteJob(ctx, "j1", []byte(`{"recommendations":3}`)))
	job, err = store.GetJob(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, model.JobCompleted, job.Status)
	assert.Equal(t, 100, job.Progress)
	assert.NotNil(t, job.CompletedAt)
	assert.JSONEq(t, `{"recommendations":3}`, string(job.OutputPayload))

	// Terminal jobs cannot be failed afterwards.
	assert.ErrorIs(t, store.FailJob(ctx, "j1", "late"), common.ErrNotFound)

	_, err = store.GetJob(ctx, "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)

	err = store.EnqueueJob(ctx, &model.Job{ID: "j2", SessionID: "s1", Kind: "bogus"})
	assert.ErrorIs(t, err, ErrInvalidJob)
}

func TestFailStaleJobs(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	store.SetClock(func() time.Time { return now })

	enqueueTestJob(t, store, "stuck", 0, now)
	enqueueTestJob(t, store, "fresh", 1, now)
	enqueueTestJob(t, store, "waiting", 2, now)

	_, err := store.ClaimNextJob(ctx)
	require.NoError(t, err)

	now = now.Add(8 * time.Minute)
	_, err = store.ClaimNextJob(ctx)
	require.NoError(t, err)

	now = now.Add(4 * time.Minute)
	n, err := store.FailStaleJobs(ctx, now.Add(-10*time.Minute), "job timed out")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stuck, err := store.GetJob(ctx, "stuck")
	require.NoError(t, err)
	assert.Equal(t, model.JobFailed, stuck.Status)
	assert.Equal(t, "job timed out", stuck.ErrorMessage)

	fresh, err := store.GetJob(ctx, "fresh")
	require.NoError(t, err)
	assert.Equal(t, model.JobProcessing, fresh.Status)

	queued, err := store.ListJobs(ctx, service.JobFilter{Status: model.JobQueued})
	require.NoError(t, err)
	require.Len(t, queued, 1)
	assert.Equal(t, "waiting", queued[0].ID)

	// A swept job can no longer be completed by its original worker.
	assert.ErrorIs(t, store.CompleteJob(ctx, "stuck", nil), common.ErrNotFound)
}

package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/cardwise/internal/common"
	"github.com/Veraticus/cardwise/internal/engine"
	"github.com/Veraticus/cardwise/internal/model"
)

func TestRunOnceEmptyQueue(t *testing.T) {
	db := setupStore(t)
	w := NewWorker(1, db.Storage, &stubProcessor{}, WorkerOptions{})

	claimed, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.False(t, claimed)
}

func TestRunOnceCompletesJob(t *testing.T) {
	db := setupStore(t, "s1")
	sched := NewScheduler(db.Storage)
	id := enqueue(t, sched, "s1", 0)

	claimed, err := NewWorker(1, db.Storage, &stubProcessor{}, WorkerOptions{}).RunOnce(context.Background())
	require.NoError(t, err)
	require.True(t, claimed)

	view, err := sched.Status(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, model.JobCompleted, view.Status)
	assert.Equal(t, 100, view.Progress)
	require.NotNil(t, view.Output)
	assert.Equal(t, 2, view.Output.Recommendations)
	assert.NotNil(t, view.StartedAt)
	assert.NotNil(t, view.CompletedAt)

	session, err := db.Storage.GetSession(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, model.SessionCompleted, session.Status)
}

func TestRunOnceRecordsFailure(t *testing.T) {
	db := setupStore(t, "s1")
	sched := NewScheduler(db.Storage)
	id := enqueue(t, sched, "s1", 0)

	proc := &stubProcessor{fn: func(context.Context, *model.Job, engine.ProgressFunc) (model.JobOutput, error) {
		return model.JobOutput{}, common.NewUserError("Could not load the card catalog", errors.New("disk I/O error"))
	}}
	claimed, err := NewWorker(1, db.Storage, proc, WorkerOptions{}).RunOnce(context.Background())
	require.NoError(t, err, "a failed job is not a worker error")
	require.True(t, claimed)

	view, err := sched.Status(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, model.JobFailed, view.Status)
	assert.Equal(t, "Could not load the card catalog: disk I/O error", view.Error)
	assert.Nil(t, view.Output)

	session, err := db.Storage.GetSession(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, model.SessionFailed, session.Status)
}

func TestRunOnceRecoversPanic(t *testing.T) {
	db := setupStore(t, "s1")
	sched := NewScheduler(db.Storage)
	id := enqueue(t, sched, "s1", 0)

	proc := &stubProcessor{fn: func(context.Context, *model.Job, engine.ProgressFunc) (model.JobOutput, error) {
		panic("index out of range")
	}}
	claimed, err := NewWorker(1, db.Storage, proc, WorkerOptions{}).RunOnce(context.Background())
	require.NoError(t, err)
	require.True(t, claimed)

	view, err := sched.Status(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, model.JobFailed, view.Status)
	assert.Contains(t, view.Error, "Processing stopped unexpectedly")
}

func TestRunOnceClaimsByPriority(t *testing.T) {
	db := setupStore(t, "s1", "s2", "s3")
	sched := NewScheduler(db.Storage)
	low := enqueue(t, sched, "s1", 5)
	urgent := enqueue(t, sched, "s2", 0)
	normal := enqueue(t, sched, "s3", 1)

	proc := &stubProcessor{}
	w := NewWorker(1, db.Storage, proc, WorkerOptions{})
	for i := 0; i < 3; i++ {
		claimed, err := w.RunOnce(context.Background())
		require.NoError(t, err)
		require.True(t, claimed)
	}
	assert.Equal(t, []string{urgent, normal, low}, proc.order())
}

func TestRunOnceFinishesJobAfterCancel(t *testing.T) {
	db := setupStore(t, "s1")
	sched := NewScheduler(db.Storage)
	id := enqueue(t, sched, "s1", 0)

	ctx, cancel := context.WithCancel(context.Background())
	proc := &stubProcessor{fn: func(ctx context.Context, _ *model.Job, progress engine.ProgressFunc) (model.JobOutput, error) {
		cancel()
		if err := progress(ctx, 40, "still going"); err != nil {
			return model.JobOutput{}, err
		}
		return model.JobOutput{}, nil
	}}

	claimed, err := NewWorker(1, db.Storage, proc, WorkerOptions{}).RunOnce(ctx)
	require.NoError(t, err)
	require.True(t, claimed)

	view, err := sched.Status(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, model.JobCompleted, view.Status)
}

func TestRunBacksOffWhileIdle(t *testing.T) {
	db := setupStore(t, "s1")
	sched := NewScheduler(db.Storage)
	clock := NewVirtualClock(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sleeps := 0
	clock.OnSleep(func(time.Duration) {
		sleeps++
		switch sleeps {
		case 2:
			enqueue(t, sched, "s1", 0)
		case 4:
			cancel()
		}
	})

	proc := &stubProcessor{}
	w := NewWorker(1, db.Storage, proc, WorkerOptions{Clock: clock})
	require.NoError(t, w.Run(ctx))

	assert.Equal(t, []time.Duration{
		2 * time.Second,
		3 * time.Second,
		2 * time.Second,
		3 * time.Second,
	}, clock.Sleeps(), "backoff resets after a claimed job")
	assert.Len(t, proc.order(), 1)
}

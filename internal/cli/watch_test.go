package cli

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/cardwise/internal/jobs"
	"github.com/Veraticus/cardwise/internal/model"
)

func scripted(views ...jobs.JobStatusView) (StatusFunc, *int) {
	calls := 0
	return func(_ context.Context, _ string) (jobs.JobStatusView, error) {
		v := views[min(calls, len(views)-1)]
		calls++
		return v, nil
	}, &calls
}

func TestWatchJobUntilComplete(t *testing.T) {
	status, calls := scripted(
		jobs.JobStatusView{Status: model.JobQueued},
		jobs.JobStatusView{Status: model.JobProcessing, Progress: 50, CurrentStep: "canonicalizing_categories"},
		jobs.JobStatusView{Status: model.JobCompleted, Progress: 100, CurrentStep: "done"},
	)

	out := &lockedBuffer{}
	view, err := WatchJob(context.Background(), out, status, "job-1", time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, model.JobCompleted, view.Status)
	assert.Equal(t, 3, *calls)
	assert.Contains(t, out.String(), "Canonicalizing categories")
}

func TestWatchJobFailed(t *testing.T) {
	status, _ := scripted(jobs.JobStatusView{Status: model.JobFailed, Progress: 70, Error: "boom"})

	view, err := WatchJob(context.Background(), &lockedBuffer{}, status, "job-1", time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "boom", view.Error)
}

func TestWatchJobCanceled(t *testing.T) {
	status, _ := scripted(jobs.JobStatusView{Status: model.JobQueued})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := WatchJob(ctx, &lockedBuffer{}, status, "job-1", 5*time.Millisecond)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWatchJobStatusError(t *testing.T) {
	errGone := errors.New("gone")
	status := func(context.Context, string) (jobs.JobStatusView, error) {
		return jobs.JobStatusView{}, errGone
	}

	_, err := WatchJob(context.Background(), &lockedBuffer{}, status, "job-1", time.Millisecond)
	require.ErrorIs(t, err, errGone)
}

func TestStepDescription(t *testing.T) {
	assert.Equal(t, "[cyan][bold]Resolving merchants...[reset]", stepDescription("resolving_merchants"))
}

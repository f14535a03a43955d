package jobs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/cardwise/internal/common"
	"github.com/Veraticus/cardwise/internal/model"
)

func TestEnqueueUnknownSession(t *testing.T) {
	db := setupStore(t)
	_, err := NewScheduler(db.Storage).Enqueue(context.Background(), "missing", model.KindProcessSession, 0, nil)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestEnqueueInvalidKind(t *testing.T) {
	db := setupStore(t, "s1")
	_, err := NewScheduler(db.Storage).Enqueue(context.Background(), "s1", model.JobKind("reticulate"), 0, nil)
	assert.Error(t, err)
}

func TestEnqueueAndStatus(t *testing.T) {
	db := setupStore(t, "s1")
	sched := NewScheduler(db.Storage)

	input := &model.JobInput{Profile: &model.UserProfile{MonthlyIncome: 50000, CreditScore: 720}}
	id, err := sched.Enqueue(context.Background(), "s1", model.KindRecommend, 3, input)
	require.NoError(t, err)
	assert.Len(t, id, 36, "ids are uuids")

	view, err := sched.Status(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, view.ID)
	assert.Equal(t, "s1", view.SessionID)
	assert.Equal(t, model.KindRecommend, view.Kind)
	assert.Equal(t, model.JobQueued, view.Status)
	assert.Equal(t, 3, view.Priority)
	assert.Zero(t, view.Progress)
	assert.Nil(t, view.StartedAt)
	assert.Nil(t, view.Output)

	job, err := db.Storage.GetJob(context.Background(), id)
	require.NoError(t, err)
	decoded, err := model.DecodeJobInput(job.InputPayload)
	require.NoError(t, err)
	require.NotNil(t, decoded.Profile)
	assert.Equal(t, 720, decoded.Profile.CreditScore)
}

func TestStatusUnknownJob(t *testing.T) {
	db := setupStore(t)
	_, err := NewScheduler(db.Storage).Status(context.Background(), "nope")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

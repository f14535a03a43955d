package importer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/cardwise/internal/common"
	"github.com/Veraticus/cardwise/internal/model"
	"github.com/Veraticus/cardwise/internal/testutil"
)

type enqueueCall struct {
	input     *model.JobInput
	sessionID string
	kind      model.JobKind
	priority  int
}

type fakeEnqueuer struct {
	err   error
	calls []enqueueCall
}

func (f *fakeEnqueuer) Enqueue(_ context.Context, sessionID string, kind model.JobKind, priority int, input *model.JobInput) (string, error) {
	f.calls = append(f.calls, enqueueCall{sessionID: sessionID, kind: kind, priority: priority, input: input})
	if f.err != nil {
		return "", f.err
	}
	return "job-1", nil
}

func statement() []model.Transaction {
	day := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	return []model.Transaction{
		{Date: day, RawDescription: "MCDONALDS 1234", Amount: 450},
		{Date: day, RawDescription: "MCDONALDS 1234", Amount: 450},
		{Date: day, RawDescription: "KROGER #22", Amount: 1200},
	}
}

func TestImportCreatesSessionAndQueuesJob(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	jobs := &fakeEnqueuer{}
	imp := New(db.Storage, jobs, nil)
	imp.newID = func() string { return "sess-new" }

	profile := &model.UserProfile{MonthlyIncome: 90000, CreditScore: 760}
	result, err := imp.Import(ctx, "march.json", statement(), Options{Profile: profile})
	require.NoError(t, err)

	assert.Equal(t, Result{SessionID: "sess-new", JobID: "job-1", Transactions: 2, Duplicates: 1}, result)

	session, err := db.Storage.GetSession(ctx, "sess-new")
	require.NoError(t, err)
	assert.Equal(t, "march.json", session.Source)
	assert.Equal(t, model.SessionUploaded, session.Status)

	stored, err := db.Storage.GetSessionTransactions(ctx, "sess-new")
	require.NoError(t, err)
	assert.Len(t, stored, 2)

	require.Len(t, jobs.calls, 1)
	assert.Equal(t, model.KindProcessSession, jobs.calls[0].kind)
	assert.Equal(t, DefaultPriority, jobs.calls[0].priority)
	require.NotNil(t, jobs.calls[0].input)
	assert.Equal(t, profile, jobs.calls[0].input.Profile)
}

func TestImportAppendsToExistingSession(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	db.SeedSession(testutil.NewSession("sess-1").Spend("SWIGGY", 300))
	jobs := &fakeEnqueuer{}
	imp := New(db.Storage, jobs, nil)

	result, err := imp.Import(ctx, "april.json", statement(), Options{SessionID: "sess-1", Priority: 1})
	require.NoError(t, err)
	assert.Equal(t, "sess-1", result.SessionID)

	stored, err := db.Storage.GetSessionTransactions(ctx, "sess-1")
	require.NoError(t, err)
	assert.Len(t, stored, 3)

	require.Len(t, jobs.calls, 1)
	assert.Equal(t, 1, jobs.calls[0].priority)
	assert.Nil(t, jobs.calls[0].input)
}

func TestImportSkipEnqueue(t *testing.T) {
	db := testutil.SetupTestDB(t)
	jobs := &fakeEnqueuer{}
	imp := New(db.Storage, jobs, nil)

	result, err := imp.Import(context.Background(), "march.json", statement(), Options{SkipEnqueue: true})
	require.NoError(t, err)
	assert.Empty(t, result.JobID)
	assert.NotEmpty(t, result.SessionID)
	assert.Empty(t, jobs.calls)
}

func TestImportEmptyStatement(t *testing.T) {
	db := testutil.SetupTestDB(t)
	imp := New(db.Storage, &fakeEnqueuer{}, nil)
	imp.newID = func() string { return "sess-empty" }

	_, err := imp.Import(context.Background(), "empty.json", nil, Options{})
	require.ErrorIs(t, err, common.ErrNoTransactions)
	assert.Contains(t, common.UserMessage(err), "The statement contained no transactions")

	_, err = db.Storage.GetSession(context.Background(), "sess-empty")
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestImportEnqueueFailureKeepsSession(t *testing.T) {
	db := testutil.SetupTestDB(t)
	imp := New(db.Storage, &fakeEnqueuer{err: errors.New("queue down")}, nil)

	result, err := imp.Import(context.Background(), "march.json", statement(), Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not queued")
	assert.Equal(t, 2, result.Transactions)

	stored, err := db.Storage.GetSessionTransactions(context.Background(), result.SessionID)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

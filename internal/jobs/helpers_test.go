package jobs

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Veraticus/cardwise/internal/engine"
	"github.com/Veraticus/cardwise/internal/model"
	"github.com/Veraticus/cardwise/internal/testutil"
)

// stubProcessor runs a scripted function for every job.
type stubProcessor struct {
	fn   func(ctx context.Context, job *model.Job, progress engine.ProgressFunc) (model.JobOutput, error)
	seen []string
	mu   sync.Mutex
}

func (s *stubProcessor) Process(ctx context.Context, job *model.Job, progress engine.ProgressFunc) (model.JobOutput, error) {
	s.mu.Lock()
	s.seen = append(s.seen, job.ID)
	s.mu.Unlock()
	if s.fn == nil {
		if err := progress(ctx, 50, "halfway"); err != nil {
			return model.JobOutput{}, err
		}
		return model.JobOutput{Transactions: 1, Recommendations: 2}, nil
	}
	return s.fn(ctx, job, progress)
}

func (s *stubProcessor) order() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.seen...)
}

func setupStore(t *testing.T, sessions ...string) *testutil.TestDB {
	t.Helper()
	db := testutil.SetupTestDB(t)
	for _, id := range sessions {
		db.SeedSession(testutil.NewSession(id).Spend("MCDONALDS", 100))
	}
	return db
}

func enqueue(t *testing.T, s *Scheduler, sessionID string, priority int) string {
	t.Helper()
	id, err := s.Enqueue(context.Background(), sessionID, model.KindProcessSession, priority, nil)
	require.NoError(t, err)
	return id
}

func fastOptions() WorkerOptions {
	return WorkerOptions{Backoff: Backoff{Base: 5 * time.Millisecond, Multiplier: 1.5, Max: 20 * time.Millisecond}}
}

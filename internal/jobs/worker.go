package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/Veraticus/cardwise/internal/common"
	"github.com/Veraticus/cardwise/internal/engine"
	"github.com/Veraticus/cardwise/internal/model"
	"github.com/Veraticus/cardwise/internal/service"
)

// Processor runs one claimed job.
type Processor interface {
	Process(ctx context.Context, job *model.Job, progress engine.ProgressFunc) (model.JobOutput, error)
}

// Store is the persistence workers and the scheduler need.
type Store interface {
	service.JobStore
	service.SessionStore
}

// Worker claims and runs jobs one at a time.
type Worker struct {
	store   Store
	proc    Processor
	clock   Clock
	logger  *slog.Logger
	backoff Backoff
	id      int
}

// WorkerOptions configures a worker. Zero values use defaults.
type WorkerOptions struct {
	Clock   Clock
	Logger  *slog.Logger
	Backoff Backoff
}

// NewWorker creates a worker.
func NewWorker(id int, store Store, proc Processor, opts WorkerOptions) *Worker {
	if opts.Clock == nil {
		opts.Clock = RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Backoff.Base <= 0 {
		opts.Backoff = DefaultBackoff()
	}
	return &Worker{
		id:      id,
		store:   store,
		proc:    proc,
		clock:   opts.Clock,
		backoff: opts.Backoff,
		logger:  opts.Logger.With("component", "worker", "worker_id", id),
	}
}

// RunOnce claims at most one job and runs it to completion. It reports
// whether a job was claimed. A failed job is not an error; errors come from
// the store.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.store.ClaimNextJob(ctx)
	if errors.Is(err, common.ErrNoJob) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to claim job: %w", err)
	}

	// Claimed jobs run to completion even if polling stops.
	return true, w.execute(context.WithoutCancel(ctx), job)
}

// Run polls until ctx is done, backing off while the queue is empty.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("Worker started")
	defer w.logger.Info("Worker stopped")

	idle := 0
	for ctx.Err() == nil {
		claimed, err := w.RunOnce(ctx)
		if err != nil && ctx.Err() == nil {
			w.logger.Error("Worker poll failed", "error", err)
		}
		if claimed {
			idle = 0
			continue
		}

		delay := w.backoff.Delay(idle)
		idle++
		if err := w.clock.Sleep(ctx, delay); err != nil {
			break
		}
	}
	return nil
}

func (w *Worker) execute(ctx context.Context, job *model.Job) error {
	logger := w.logger.With("job_id", job.ID, "session_id", job.SessionID, "kind", job.Kind)
	logger.Info("Claimed job", "priority", job.Priority)

	w.setSessionStatus(ctx, logger, job.SessionID, model.SessionProcessing)

	progress := func(ctx context.Context, percent int, step string) error {
		if err := w.store.UpdateJobProgress(ctx, job.ID, percent, step); err != nil {
			return fmt.Errorf("failed to record progress: %w", err)
		}
		logger.Debug("Job progress", "progress", percent, "step", step)
		return nil
	}

	out, err := w.process(ctx, job, progress)
	if err != nil {
		msg := common.UserMessage(err)
		logger.Error("Job failed", "error", err, "fatal", common.IsFatal(err))
		w.setSessionStatus(ctx, logger, job.SessionID, model.SessionFailed)
		if ferr := w.store.FailJob(ctx, job.ID, msg); ferr != nil {
			return fmt.Errorf("failed to record failure of job %s: %w", job.ID, ferr)
		}
		return nil
	}

	payload, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("failed to encode output of job %s: %w", job.ID, err)
	}
	if err := w.store.CompleteJob(ctx, job.ID, payload); err != nil {
		return fmt.Errorf("failed to complete job %s: %w", job.ID, err)
	}
	w.setSessionStatus(ctx, logger, job.SessionID, model.SessionCompleted)
	logger.Info("Job completed", "recommendations", out.Recommendations, "fallback", out.FallbackUsed)
	return nil
}

// process converts a panic inside the pipeline into a job failure.
func (w *Worker) process(ctx context.Context, job *model.Job, progress engine.ProgressFunc) (out model.JobOutput, err error) {
	defer func() {
		if p := recover(); p != nil {
			w.logger.Error("Job panicked", "job_id", job.ID, "panic", fmt.Sprint(p), "stack", string(debug.Stack()))
			err = common.NewUserError("Processing stopped unexpectedly", fmt.Errorf("panic: %v", p))
		}
	}()
	return w.proc.Process(ctx, job, progress)
}

func (w *Worker) setSessionStatus(ctx context.Context, logger *slog.Logger, sessionID string, status model.SessionStatus) {
	if err := w.store.UpdateSessionStatus(ctx, sessionID, status); err != nil {
		logger.Warn("Failed to update session status", "status", status, "error", err)
	}
}

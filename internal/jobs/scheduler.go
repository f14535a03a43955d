package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Veraticus/cardwise/internal/model"
)

// Scheduler is the intake facade: it enqueues jobs and reports their status.
type Scheduler struct {
	store Store
	newID func() string
}

// NewScheduler creates a scheduler over store.
func NewScheduler(store Store) *Scheduler {
	return &Scheduler{store: store, newID: uuid.NewString}
}

// JobStatusView is the externally visible state of a job.
type JobStatusView struct {
	QueuedAt    time.Time        `json:"queuedAt"`
	StartedAt   *time.Time       `json:"startedAt,omitempty"`
	CompletedAt *time.Time       `json:"completedAt,omitempty"`
	Output      *model.JobOutput `json:"output,omitempty"`
	ID          string           `json:"id"`
	SessionID   string           `json:"sessionId"`
	Kind        model.JobKind    `json:"kind"`
	Status      model.JobStatus  `json:"status"`
	CurrentStep string           `json:"currentStep"`
	Error       string           `json:"error,omitempty"`
	Priority    int              `json:"priority"`
	Progress    int              `json:"progress"`
}

// Enqueue queues a job for an existing session and returns its id. Lower
// priority values run first.
func (s *Scheduler) Enqueue(ctx context.Context, sessionID string, kind model.JobKind, priority int, input *model.JobInput) (string, error) {
	if _, err := s.store.GetSession(ctx, sessionID); err != nil {
		return "", fmt.Errorf("cannot enqueue job: %w", err)
	}

	job := &model.Job{
		ID:        s.newID(),
		SessionID: sessionID,
		Kind:      kind,
		Priority:  priority,
	}
	if input != nil {
		payload, err := json.Marshal(input)
		if err != nil {
			return "", fmt.Errorf("failed to encode job input: %w", err)
		}
		job.InputPayload = payload
	}
	if err := job.Validate(); err != nil {
		return "", fmt.Errorf("invalid job: %w", err)
	}
	if err := s.store.EnqueueJob(ctx, job); err != nil {
		return "", err
	}
	return job.ID, nil
}

// Status returns the current view of a job.
func (s *Scheduler) Status(ctx context.Context, jobID string) (JobStatusView, error) {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return JobStatusView{}, err
	}

	view := JobStatusView{
		ID:          job.ID,
		SessionID:   job.SessionID,
		Kind:        job.Kind,
		Status:      job.Status,
		Priority:    job.Priority,
		Progress:    job.Progress,
		CurrentStep: job.CurrentStep,
		Error:       job.ErrorMessage,
		QueuedAt:    job.QueuedAt,
		StartedAt:   job.StartedAt,
		CompletedAt: job.CompletedAt,
	}
	if len(job.OutputPayload) > 0 {
		var out model.JobOutput
		if err := json.Unmarshal(job.OutputPayload, &out); err != nil {
			return JobStatusView{}, fmt.Errorf("job %s has a corrupt output payload: %w", job.ID, err)
		}
		view.Output = &out
	}
	return view, nil
}

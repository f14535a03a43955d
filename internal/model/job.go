// Package model defines the core domain models used throughout the application.
package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// JobStatus is the lifecycle state of a background job.
type JobStatus string

// Job status constants.
const (
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// IsTerminal reports whether no further transitions are allowed.
func (s JobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed
}

// JobKind selects which pipeline stages a job runs.
type JobKind string

const (
	// KindProcessSession runs the full resolve → canonicalize → aggregate → match → score pipeline.
	KindProcessSession JobKind = "process_session"
	// KindRecategorize re-resolves every transaction, including already resolved ones.
	KindRecategorize JobKind = "recategorize"
	// KindRecommend only aggregates current transaction state and re-scores offers.
	KindRecommend JobKind = "recommend"
)

// Valid reports whether the kind is one the engine knows how to run.
func (k JobKind) Valid() bool {
	switch k {
	case KindProcessSession, KindRecategorize, KindRecommend:
		return true
	}
	return false
}

// Job is one queued unit of work for a session.
type Job struct {
	QueuedAt      time.Time
	UpdatedAt     time.Time
	StartedAt     *time.Time
	CompletedAt   *time.Time
	ID            string
	SessionID     string
	Kind          JobKind
	Status        JobStatus
	CurrentStep   string
	ErrorMessage  string
	InputPayload  json.RawMessage
	OutputPayload json.RawMessage
	Priority      int
	Progress      int
}

// Validate ensures a job is well formed before it is enqueued.
func (j *Job) Validate() error {
	if j.SessionID == "" {
		return fmt.Errorf("session id is required")
	}
	if !j.Kind.Valid() {
		return fmt.Errorf("unknown job kind %q", j.Kind)
	}
	if j.Progress < 0 || j.Progress > 100 {
		return fmt.Errorf("progress must be between 0 and 100, got %d", j.Progress)
	}
	if len(j.InputPayload) > 0 && !json.Valid(j.InputPayload) {
		return fmt.Errorf("input payload is not valid JSON")
	}
	return nil
}

// JobInput is the decoded input payload of a job.
type JobInput struct {
	Profile *UserProfile `json:"profile,omitempty"`
	Force   bool         `json:"force,omitempty"`
}

// DecodeJobInput parses a job's input payload. An empty payload yields the zero value.
func DecodeJobInput(raw json.RawMessage) (JobInput, error) {
	var in JobInput
	if len(raw) == 0 {
		return in, nil
	}
	if err := json.Unmarshal(raw, &in); err != nil {
		return in, fmt.Errorf("invalid job input payload: %w", err)
	}
	return in, nil
}

// UserProfile carries the eligibility attributes used for accessibility scoring.
type UserProfile struct {
	MonthlyIncome float64 `json:"monthlyIncome"`
	CreditScore   int     `json:"creditScore"`
}

// JobOutput is the result payload written when a job completes.
type JobOutput struct {
	Transactions    int     `json:"transactions"`
	Resolved        int     `json:"resolved"`
	Unresolved      int     `json:"unresolved"`
	NeedsReview     int     `json:"needsReview"`
	LearnedAliases  int     `json:"learnedAliases"`
	Patterns        int     `json:"patterns"`
	Recommendations int     `json:"recommendations"`
	FailedWrites    int     `json:"failedWrites"`
	TotalSpend      float64 `json:"totalSpend"`
	FallbackUsed    bool    `json:"fallbackUsed"`
}

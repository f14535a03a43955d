package model

import "time"

// SessionStatus tracks a statement upload through processing.
type SessionStatus string

// Session status constants.
const (
	SessionUploaded   SessionStatus = "uploaded"
	SessionProcessing SessionStatus = "processing"
	SessionCompleted  SessionStatus = "completed"
	SessionFailed     SessionStatus = "failed"
)

// Session groups the transactions extracted from one statement.
type Session struct {
	CreatedAt time.Time
	UpdatedAt time.Time
	ID        string
	Source    string
	Status    SessionStatus
}

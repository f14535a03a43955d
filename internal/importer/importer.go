// Package importer turns parsed statements into stored sessions and queues
// them for processing.
package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/Veraticus/cardwise/internal/common"
	"github.com/Veraticus/cardwise/internal/model"
	"github.com/Veraticus/cardwise/internal/service"
)

// DefaultPriority is used for uploads; lower values run first.
const DefaultPriority = 10

// Store is the persistence the importer needs.
type Store interface {
	service.SessionStore
	service.TransactionStore
}

// Enqueuer queues a job for a stored session.
type Enqueuer interface {
	Enqueue(ctx context.Context, sessionID string, kind model.JobKind, priority int, input *model.JobInput) (string, error)
}

// Options controls a single import.
type Options struct {
	Profile *model.UserProfile
	// SessionID appends to an existing session, or names the new one.
	SessionID string
	Priority  int
	// SkipEnqueue stores the session without queuing a job.
	SkipEnqueue bool
}

// Result summarizes an import.
type Result struct {
	SessionID    string `json:"sessionId"`
	JobID        string `json:"jobId,omitempty"`
	Transactions int    `json:"transactions"`
	Duplicates   int    `json:"duplicates"`
}

// Importer stores statement transactions as a session.
type Importer struct {
	store  Store
	jobs   Enqueuer
	logger *slog.Logger
	newID  func() string
}

// New creates an importer. jobs may be nil when callers always set SkipEnqueue.
func New(store Store, jobs Enqueuer, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{
		store:  store,
		jobs:   jobs,
		logger: logger,
		newID:  uuid.NewString,
	}
}

// NewSessionID returns a fresh session id for parsers that need one up front.
func (i *Importer) NewSessionID() string {
	return i.newID()
}

// Import saves txns under a session created from source and, unless
// SkipEnqueue is set, queues a process_session job for it. Transactions are
// re-keyed to the session so duplicate lines within a statement collapse.
func (i *Importer) Import(ctx context.Context, source string, txns []model.Transaction, opts Options) (Result, error) {
	if len(txns) == 0 {
		return Result{}, common.NewUserError("The statement contained no transactions", common.ErrNoTransactions)
	}

	sessionID, err := i.ensureSession(ctx, source, opts.SessionID)
	if err != nil {
		return Result{}, err
	}

	unique := make([]model.Transaction, 0, len(txns))
	seen := make(map[string]bool, len(txns))
	for _, txn := range txns {
		txn.SessionID = sessionID
		txn.ID = txn.GenerateID()
		if seen[txn.ID] {
			continue
		}
		seen[txn.ID] = true
		unique = append(unique, txn)
	}

	if err := i.store.SaveTransactions(ctx, unique); err != nil {
		return Result{}, common.NewUserError("The statement transactions could not be saved", err)
	}

	result := Result{
		SessionID:    sessionID,
		Transactions: len(unique),
		Duplicates:   len(txns) - len(unique),
	}

	i.logger.Info("imported statement",
		"session_id", sessionID,
		"source", source,
		"transactions", result.Transactions,
		"duplicates", result.Duplicates)

	if opts.SkipEnqueue || i.jobs == nil {
		return result, nil
	}

	var input *model.JobInput
	if opts.Profile != nil {
		input = &model.JobInput{Profile: opts.Profile}
	}
	priority := opts.Priority
	if priority == 0 {
		priority = DefaultPriority
	}
	jobID, err := i.jobs.Enqueue(ctx, sessionID, model.KindProcessSession, priority, input)
	if err != nil {
		return result, fmt.Errorf("session %s saved but not queued: %w", sessionID, err)
	}
	result.JobID = jobID
	return result, nil
}

func (i *Importer) ensureSession(ctx context.Context, source, id string) (string, error) {
	if id != "" {
		_, err := i.store.GetSession(ctx, id)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, common.ErrNotFound) {
			return "", err
		}
	} else {
		id = i.newID()
	}

	if err := i.store.CreateSession(ctx, &model.Session{ID: id, Source: source}); err != nil {
		return "", common.NewUserError("The upload session could not be created", err)
	}
	return id, nil
}

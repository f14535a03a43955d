// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/cardwise/internal/model"
)

// JobStore persists background jobs. ClaimNextJob must be atomic across workers.
type JobStore interface {
	EnqueueJob(ctx context.Context, job *model.Job) error
	GetJob(ctx context.Context, id string) (*model.Job, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]model.Job, error)
	// ClaimNextJob moves the highest-priority queued job to processing and
	// returns it, or common.ErrNoJob when the queue is empty.
	ClaimNextJob(ctx context.Context) (*model.Job, error)
	UpdateJobProgress(ctx context.Context, id string, progress int, step string) error
	CompleteJob(ctx context.Context, id string, output []byte) error
	FailJob(ctx context.Context, id string, message string) error
	// FailStaleJobs fails processing jobs whose last update is older than cutoff.
	FailStaleJobs(ctx context.Context, cutoff time.Time, message string) (int, error)
}

// SessionStore persists uploaded statement sessions.
type SessionStore interface {
	CreateSession(ctx context.Context, session *model.Session) error
	GetSession(ctx context.Context, id string) (*model.Session, error)
	UpdateSessionStatus(ctx context.Context, id string, status model.SessionStatus) error
}

// TransactionStore persists session transactions and their resolution fields.
type TransactionStore interface {
	SaveTransactions(ctx context.Context, transactions []model.Transaction) error
	GetSessionTransactions(ctx context.Context, sessionID string) ([]model.Transaction, error)
	UpdateTransactionResolution(ctx context.Context, txn *model.Transaction) error
}

// ReferenceStore exposes the read-mostly reference data used by resolution.
type ReferenceStore interface {
	GetCategories(ctx context.Context) ([]model.Category, error)
	GetSubCategories(ctx context.Context) ([]model.SubCategory, error)
	GetMCCCodes(ctx context.Context) ([]model.MCCCode, error)
	GetMCCCode(ctx context.Context, code string) (*model.MCCCode, error)
	SaveMCCCode(ctx context.Context, mcc *model.MCCCode) error
	// AppendMerchantPattern adds pattern to the code's merchant patterns if absent.
	AppendMerchantPattern(ctx context.Context, code, pattern string) error
}

// AliasStore persists learned merchant aliases.
type AliasStore interface {
	GetMerchantAliases(ctx context.Context) ([]model.MerchantAlias, error)
	// UpsertMerchantAlias keeps the higher confidence and increments usage on conflict.
	UpsertMerchantAlias(ctx context.Context, alias *model.MerchantAlias) error
}

// OfferStore persists the card offer catalog.
type OfferStore interface {
	SaveOffer(ctx context.Context, offer *model.Offer) error
	GetOffer(ctx context.Context, id string) (*model.Offer, error)
	ListOffers(ctx context.Context, activeOnly bool) ([]model.Offer, error)
}

// RecommendationStore persists ranked recommendations per session.
type RecommendationStore interface {
	// ReplaceRecommendations deletes any existing rows for the session and
	// inserts recs in a single transaction.
	ReplaceRecommendations(ctx context.Context, sessionID string, recs []model.Recommendation) error
	GetRecommendations(ctx context.Context, sessionID string) ([]model.Recommendation, error)
}

// SettingsStore backs runtime configuration overrides.
type SettingsStore interface {
	GetSetting(ctx context.Context, key string) (string, bool, error)
	SetSetting(ctx context.Context, key, value string) error
}

// Store is the complete persistence contract.
type Store interface {
	JobStore
	SessionStore
	TransactionStore
	ReferenceStore
	AliasStore
	OfferStore
	RecommendationStore
	SettingsStore

	// Database management
	Migrate(ctx context.Context) error
	Close() error
}

// JobFilter defines filtering options for job queries.
type JobFilter struct {
	SessionID string
	Status    model.JobStatus
	Limit     int
}

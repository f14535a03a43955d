package engine

import (
	"context"

	"github.com/Veraticus/cardwise/internal/service"
)

// Store is the persistence the pipeline reads and writes.
type Store interface {
	service.TransactionStore
	service.ReferenceStore
	service.AliasStore
	service.OfferStore
	service.RecommendationStore
}

// ProgressFunc reports job progress. An error aborts the job, which is how a
// job that was swept as stale stops early.
type ProgressFunc func(ctx context.Context, percent int, step string) error

// Pipeline steps as recorded in a job's current_step.
const (
	StepLoad         = "loading_reference_data"
	StepResolve      = "resolving_merchants"
	StepCanonicalize = "canonicalizing_categories"
	StepAggregate    = "aggregating_spend"
	StepScore        = "scoring_offers"
	StepPersist      = "saving_recommendations"
	StepDone         = "done"
)

// Progress checkpoints.
const (
	progressLoad             = 5
	progressResolveStart     = 10
	progressResolveEnd       = 50
	progressCanonicalizeEnd  = 70
	progressAggregate        = 75
	progressScore            = 85
	progressPersist          = 95
	progressDone             = 100
	canonicalizeReportStride = 25
)

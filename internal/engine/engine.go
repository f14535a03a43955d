// Package engine runs the session pipeline: resolve merchants, place them in
// the taxonomy, aggregate spend, and rank card offers. Stages run strictly in
// order; each writes its results before the next starts so partial progress
// survives a failed job.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/Veraticus/cardwise/internal/category"
	"github.com/Veraticus/cardwise/internal/common"
	"github.com/Veraticus/cardwise/internal/config"
	"github.com/Veraticus/cardwise/internal/merchant"
	"github.com/Veraticus/cardwise/internal/model"
	"github.com/Veraticus/cardwise/internal/recommend"
	"github.com/Veraticus/cardwise/internal/rewards"
	"github.com/Veraticus/cardwise/internal/spending"
	"github.com/Veraticus/cardwise/internal/tracing"
)

// Engine processes one job at a time. It is safe for concurrent use by
// several workers since it holds no per-job state.
type Engine struct {
	store    Store
	oracle   merchant.Oracle
	settings config.Provider
	tracer   *tracing.Tracer
	logger   *slog.Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

// Option configures an Engine.
type Option func(*Engine)

// WithOracle sets the merchant oracle consulted for unresolved merchants.
func WithOracle(o merchant.Oracle) Option {
	return func(e *Engine) { e.oracle = o }
}

// WithSettings sets the configuration provider read at the start of every job.
func WithSettings(p config.Provider) Option {
	return func(e *Engine) { e.settings = p }
}

// WithTracer sets the tracer used for job and stage spans.
func WithTracer(t *tracing.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

// WithSleep replaces the pause taken between oracle batches.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Engine) { e.sleep = sleep }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New creates an engine over store.
func New(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		tracer: tracing.Noop(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "engine")
	return e
}

// run carries one job's state between stages.
type run struct {
	job         *model.Job
	input       model.JobInput
	snap        config.Snapshot
	progress    ProgressFunc
	logger      *slog.Logger
	canon       *category.Canonicalizer
	ref         merchant.ReferenceData
	resolutions map[string]model.Resolution
	txns        []model.Transaction
	targets     []int
	patterns    []model.SpendingPattern
	result      recommend.Result
	stats       merchant.Stats
	failed      int
	reviewed    int
}

// Process runs job's pipeline and returns its output payload.
func (e *Engine) Process(ctx context.Context, job *model.Job, progress ProgressFunc) (out model.JobOutput, err error) {
	if job == nil {
		return out, fmt.Errorf("job is required")
	}
	if progress == nil {
		progress = func(context.Context, int, string) error { return nil }
	}

	ctx, span := e.tracer.Start(ctx, "job.process",
		attribute.String("job.id", job.ID),
		attribute.String("job.kind", string(job.Kind)),
		attribute.String("session.id", job.SessionID))
	defer func() { tracing.End(span, err) }()

	snap, err := e.snapshot()
	if err != nil {
		return out, err
	}
	input, err := model.DecodeJobInput(job.InputPayload)
	if err != nil {
		return out, common.NewUserError("The job input could not be read", err)
	}

	r := &run{
		job:      job,
		input:    input,
		snap:     snap,
		progress: progress,
		logger:   e.logger.With("job_id", job.ID, "session_id", job.SessionID, "kind", job.Kind),
	}
	r.logger.Info("Processing job")

	stages := []struct {
		name string
		fn   func(context.Context, *run) error
	}{
		{StepLoad, e.load},
		{StepResolve, e.resolve},
		{StepCanonicalize, e.canonicalize},
		{StepAggregate, e.aggregate},
		{StepScore, e.score},
		{StepPersist, e.persist},
	}
	for _, stage := range stages {
		if err := e.runStage(ctx, stage.name, r, stage.fn); err != nil {
			return out, err
		}
	}
	if err := progress(ctx, progressDone, StepDone); err != nil {
		return out, err
	}

	out = r.output()
	r.logger.Info("Job processed",
		"transactions", out.Transactions,
		"resolved", out.Resolved,
		"patterns", out.Patterns,
		"recommendations", out.Recommendations,
		"fallback", out.FallbackUsed)
	return out, nil
}

func (e *Engine) runStage(ctx context.Context, name string, r *run, fn func(context.Context, *run) error) (err error) {
	ctx, span := e.tracer.Start(ctx, "stage."+name)
	defer func() { tracing.End(span, err) }()
	return fn(ctx, r)
}

func (e *Engine) snapshot() (config.Snapshot, error) {
	if e.settings == nil {
		return config.DefaultSnapshot(), nil
	}
	return config.LoadSnapshot(e.settings)
}

func (r *run) output() model.JobOutput {
	summary := spending.Summarize(r.txns)
	return model.JobOutput{
		Transactions:    summary.Transactions,
		Resolved:        summary.ResolvedCount,
		Unresolved:      summary.Transactions - summary.ResolvedCount,
		NeedsReview:     r.reviewed,
		LearnedAliases:  r.stats.Learned,
		Patterns:        len(r.patterns),
		Recommendations: len(r.result.Recommendations),
		TotalSpend:      summary.TotalSpend,
		FailedWrites:    r.failed,
		FallbackUsed:    r.result.FallbackUsed,
	}
}

func rankerOptions(s config.ScoringSettings) recommend.Options {
	return recommend.Options{
		Mode:               s.Mode,
		PreferredIssuers:   s.PreferredIssuers,
		LimitedNetworks:    s.LimitedNetworks,
		MinScore:           s.MinScore,
		HighFeeThreshold:   s.HighFeeThreshold,
		MaxRecommendations: s.MaxRecommendations,
		FallbackCount:      s.FallbackCount,
	}
}

func calculatorOptions(s config.RewardSettings) rewards.Options {
	return rewards.Options{PointValues: s.PointValues, StatementMonths: s.StatementMonths}
}

func aggregatorOptions(s config.AggregatorSettings) spending.Options {
	return spending.Options{
		MinTotalSpend:         s.MinTotalSpend,
		MinCategoryPercentage: s.MinCategoryPercentage,
		MinCategoryAmount:     s.MinCategoryAmount,
		MaxCategories:         s.MaxCategories,
	}
}

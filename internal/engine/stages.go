package engine

import (
	"context"
	"fmt"

	"github.com/Veraticus/cardwise/internal/category"
	"github.com/Veraticus/cardwise/internal/common"
	"github.com/Veraticus/cardwise/internal/merchant"
	"github.com/Veraticus/cardwise/internal/model"
	"github.com/Veraticus/cardwise/internal/recommend"
	"github.com/Veraticus/cardwise/internal/rewards"
	"github.com/Veraticus/cardwise/internal/spending"
)

// resolveChunk bounds how many distinct merchants are resolved locally between
// progress reports.
const resolveChunk = 50

func (e *Engine) load(ctx context.Context, r *run) error {
	if err := r.progress(ctx, progressLoad, StepLoad); err != nil {
		return err
	}

	canon, ref, err := e.loadReference(ctx)
	if err != nil {
		return err
	}
	r.canon = canon
	r.ref = ref

	txns, err := e.store.GetSessionTransactions(ctx, r.job.SessionID)
	if err != nil {
		return common.NewUserError("Could not load the session's transactions", err)
	}
	r.txns = txns
	r.targets = r.selectTargets()

	r.logger.Debug("Loaded reference data",
		"categories", len(canon.Taxonomy().Categories),
		"mcc_codes", len(ref.MCCCodes),
		"aliases", len(ref.Aliases),
		"transactions", len(txns),
		"to_resolve", len(r.targets))
	return nil
}

// loadReference reads the taxonomy, the MCC table and learned aliases.
func (e *Engine) loadReference(ctx context.Context) (*category.Canonicalizer, merchant.ReferenceData, error) {
	var ref merchant.ReferenceData

	cats, err := e.store.GetCategories(ctx)
	if err != nil {
		return nil, ref, common.NewUserError("Could not load the category taxonomy", err)
	}
	subs, err := e.store.GetSubCategories(ctx)
	if err != nil {
		return nil, ref, common.NewUserError("Could not load the category taxonomy", err)
	}
	if ref.MCCCodes, err = e.store.GetMCCCodes(ctx); err != nil {
		return nil, ref, common.NewUserError("Could not load merchant category codes", err)
	}
	if ref.Aliases, err = e.store.GetMerchantAliases(ctx); err != nil {
		return nil, ref, common.NewUserError("Could not load merchant aliases", err)
	}

	canon, err := category.NewCanonicalizer(model.NewTaxonomy(cats, subs), ref.MCCCodes)
	if err != nil {
		return nil, ref, common.NewUserError("The category taxonomy is misconfigured", err)
	}
	return canon, ref, nil
}

// selectTargets picks the transactions this job resolves.
func (r *run) selectTargets() []int {
	if r.job.Kind == model.KindRecommend {
		return nil
	}
	all := r.job.Kind == model.KindRecategorize || r.input.Force
	var targets []int
	for i := range r.txns {
		if all || !r.txns[i].IsResolved() {
			targets = append(targets, i)
		}
	}
	return targets
}

func (e *Engine) resolve(ctx context.Context, r *run) error {
	if err := r.progress(ctx, progressResolveStart, StepResolve); err != nil {
		return err
	}
	if len(r.targets) == 0 {
		return nil
	}

	descriptors := make([]string, 0, len(r.targets))
	seen := make(map[string]bool, len(r.targets))
	for _, i := range r.targets {
		d := r.txns[i].MerchantOrDescription()
		if !seen[d] {
			seen[d] = true
			descriptors = append(descriptors, d)
		}
	}

	resolver := merchant.NewResolver(r.ref, merchant.Config{
		Oracle:              e.oracle,
		Validator:           r.canon,
		Learner:             e.store,
		FuzzyThreshold:      r.snap.Resolver.FuzzyThreshold,
		OracleConfidenceCap: r.snap.Resolver.OracleConfidenceCap,
		AliasLearnThreshold: r.snap.Resolver.AliasLearnThreshold,
		OracleBatchSize:     r.snap.Resolver.OracleBatchSize,
		OracleBatchDelay:    r.snap.Resolver.OracleBatchDelay,
		Sleep:               e.sleep,
	}, r.logger)

	// The local pass fills the first half of the resolve span; the oracle
	// pass that follows owns the rest.
	localSpan := (progressResolveEnd - progressResolveStart) / 2
	results, stats, err := resolver.ResolveAllProgress(ctx, descriptors, resolveChunk, func(done, total int) error {
		return r.progress(ctx, progressResolveStart+localSpan*done/total, StepResolve)
	})
	if err != nil {
		return err
	}
	r.resolutions = results
	r.stats = stats
	if err := r.progress(ctx, progressResolveEnd, StepResolve); err != nil {
		return err
	}

	r.logger.Info("Resolved merchants",
		"merchants", r.stats.Total,
		"database", r.stats.ByDatabase,
		"fuzzy", r.stats.ByFuzzy,
		"pattern", r.stats.ByPattern,
		"oracle", r.stats.ByOracle,
		"unresolved", r.stats.Unresolved,
		"learned", r.stats.Learned)
	return nil
}

func (e *Engine) canonicalize(ctx context.Context, r *run) error {
	if len(r.targets) == 0 {
		return r.progress(ctx, progressCanonicalizeEnd, StepCanonicalize)
	}

	span := progressCanonicalizeEnd - progressResolveEnd
	for n, i := range r.targets {
		t := &r.txns[i]
		desc := t.MerchantOrDescription()
		res, ok := r.resolutions[desc]
		if !ok {
			res = model.Resolution{Source: model.SourceUnresolved}
		}

		mapping, err := r.place(desc, res)
		if err != nil {
			return common.NewUserError("The category taxonomy is misconfigured", err)
		}
		r.apply(t, desc, res, mapping)
		if t.NeedsReview {
			r.reviewed++
		}

		if err := e.store.UpdateTransactionResolution(ctx, t); err != nil {
			r.failed++
			r.logger.Warn("Failed to save transaction resolution", "transaction_id", t.ID, "error", err)
		}

		if done := n + 1; done%canonicalizeReportStride == 0 && done < len(r.targets) {
			pct := progressResolveEnd + span*done/len(r.targets)
			if err := r.progress(ctx, pct, StepCanonicalize); err != nil {
				return err
			}
		}
	}

	if r.failed > 0 {
		r.logger.Warn("Some resolutions were not saved", "failed", r.failed, "total", len(r.targets))
	}
	return r.progress(ctx, progressCanonicalizeEnd, StepCanonicalize)
}

// place finds the taxonomy placement for a resolved or unresolved merchant.
// Oracle results arrive already validated against the taxonomy.
func (r *run) place(desc string, res model.Resolution) (category.Mapping, error) {
	if res.Resolved() && res.Source == model.SourceAIOracle && res.CategoryID != 0 {
		return category.Mapping{
			CategoryID:    res.CategoryID,
			SubCategoryID: res.SubCategoryID,
			Confidence:    res.CategoryConfidence,
		}, nil
	}
	return r.canon.Map(category.CategoryRequest{
		MCCCode:  res.MCCCode,
		Merchant: merchant.Normalize(desc),
	})
}

func (r *run) apply(t *model.Transaction, desc string, res model.Resolution, m category.Mapping) {
	if t.Merchant == "" {
		t.Merchant = merchant.Normalize(desc)
	}
	categoryID := m.CategoryID
	t.CategoryID = &categoryID
	t.SubCategoryID = m.SubCategoryID

	if !res.Resolved() {
		t.MCCCode = nil
		t.ResolutionSource = model.SourceUnresolved
		t.ResolutionConfidence = 0
		t.NeedsReview = true
		return
	}

	code := res.MCCCode
	t.MCCCode = &code
	t.ResolutionSource = res.Source
	t.ResolutionConfidence = category.BlendConfidence(res.Confidence, m.Confidence)
	t.NeedsReview = category.NeedsReview(t.ResolutionConfidence, r.snap.ReviewThreshold)
}

func (e *Engine) aggregate(ctx context.Context, r *run) error {
	if err := r.progress(ctx, progressAggregate, StepAggregate); err != nil {
		return err
	}
	r.patterns = spending.Aggregate(r.txns, r.canon.Taxonomy(), aggregatorOptions(r.snap.Aggregator))
	if len(r.patterns) == 0 {
		r.logger.Info("Not enough spending data for category analysis")
	}
	return nil
}

func (e *Engine) score(ctx context.Context, r *run) error {
	if err := r.progress(ctx, progressScore, StepScore); err != nil {
		return err
	}

	offers, err := e.store.ListOffers(ctx, true)
	if err != nil {
		return common.NewUserError("Could not load the card catalog", err)
	}

	ranker := recommend.NewRanker(
		rankerOptions(r.snap.Scoring),
		rewards.NewCalculator(calculatorOptions(r.snap.Rewards)),
		r.logger,
	)
	result, err := ranker.Generate(ctx, r.job.SessionID, offers, r.patterns, r.input.Profile)
	if err != nil {
		return fmt.Errorf("failed to rank offers: %w", err)
	}
	r.result = result
	return nil
}

func (e *Engine) persist(ctx context.Context, r *run) error {
	if err := r.progress(ctx, progressPersist, StepPersist); err != nil {
		return err
	}
	if err := e.store.ReplaceRecommendations(ctx, r.job.SessionID, r.result.Recommendations); err != nil {
		return common.NewUserError("Could not save recommendations", err)
	}
	return nil
}

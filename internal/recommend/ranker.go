package recommend

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/Veraticus/cardwise/internal/model"
	"github.com/Veraticus/cardwise/internal/rewards"
)

// Result is one ranking run.
type Result struct {
	Recommendations []model.Recommendation
	Considered      int
	FallbackUsed    bool
	StaticFallback  bool
}

// Ranker turns offers and spending patterns into ranked recommendations.
type Ranker struct {
	calc   rewards.Calculator
	logger *slog.Logger
	scorer Scorer
	opts   Options
}

// NewRanker creates a ranker. A nil logger uses slog.Default().
func NewRanker(opts Options, calc rewards.Calculator, logger *slog.Logger) *Ranker {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Mode == "" {
		opts.Mode = ModeNet
	}
	if opts.FallbackCount <= 0 {
		opts.FallbackCount = 1
	}
	return &Ranker{
		calc:   calc,
		logger: logger,
		scorer: NewScorer(opts),
		opts:   opts,
	}
}

type scored struct {
	offer    *model.Offer
	analysis rewards.EarningsAnalysis
	score    ScoreBreakdown
	value    float64
}

// Generate ranks the active offers. The result is empty only when there is
// no active offer; otherwise at least one recommendation is returned and
// ranks run densely from 1.
func (r *Ranker) Generate(ctx context.Context, sessionID string, offers []model.Offer, patterns []model.SpendingPattern, profile *model.UserProfile) (Result, error) {
	active := make([]*model.Offer, 0, len(offers))
	for i := range offers {
		if offers[i].IsActive {
			active = append(active, &offers[i])
		}
	}
	if len(active) == 0 {
		r.logger.Warn("no active offers to rank", "session_id", sessionID)
		return Result{Recommendations: []model.Recommendation{}}, nil
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	if len(patterns) == 0 {
		return r.staticFallback(sessionID, active, profile), nil
	}

	candidates := make([]scored, 0, len(active))
	for _, offer := range active {
		analysis := r.calc.Calculate(offer, patterns)
		candidates = append(candidates, scored{
			offer:    offer,
			analysis: analysis,
			score:    r.scorer.Score(offer, analysis, patterns, profile),
			value:    r.rankValue(offer, analysis),
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.value != b.value {
			return a.value > b.value
		}
		if a.score.Total != b.score.Total {
			return a.score.Total > b.score.Total
		}
		return a.offer.ID < b.offer.ID
	})

	var qualifying []scored
	for _, c := range candidates {
		if c.score.Total >= r.opts.MinScore {
			qualifying = append(qualifying, c)
		}
	}

	result := Result{Considered: len(candidates)}
	if len(qualifying) > 0 {
		result.Recommendations = r.build(sessionID, qualifying, profile, false)
	} else {
		result.FallbackUsed = true
		result.Recommendations = r.build(sessionID, r.topByScore(candidates), profile, true)
		r.logger.Info("no offer cleared the minimum score, using fallback choices",
			"session_id", sessionID,
			"min_score", r.opts.MinScore,
			"count", len(result.Recommendations))
	}
	return result, nil
}

// rankValue is annual earnings in gross mode, earnings minus the annual fee in net mode.
func (r *Ranker) rankValue(offer *model.Offer, analysis rewards.EarningsAnalysis) float64 {
	if strings.EqualFold(r.opts.Mode, ModeGross) {
		return analysis.AnnualEarnings
	}
	return netSavings(offer, analysis)
}

func netSavings(offer *model.Offer, analysis rewards.EarningsAnalysis) float64 {
	return analysis.AnnualEarnings - offer.Fees.AnnualFee
}

// topByScore keeps the fallback count of candidates with the best raw score.
func (r *Ranker) topByScore(candidates []scored) []scored {
	out := append([]scored(nil), candidates...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].score.Raw != out[j].score.Raw {
			return out[i].score.Raw > out[j].score.Raw
		}
		if out[i].value != out[j].value {
			return out[i].value > out[j].value
		}
		return out[i].offer.ID < out[j].offer.ID
	})
	if len(out) > r.opts.FallbackCount {
		out = out[:r.opts.FallbackCount]
	}
	return out
}

func (r *Ranker) build(sessionID string, picks []scored, profile *model.UserProfile, fallback bool) []model.Recommendation {
	if r.opts.MaxRecommendations > 0 && len(picks) > r.opts.MaxRecommendations {
		picks = picks[:r.opts.MaxRecommendations]
	}

	recs := make(model.Recommendations, 0, len(picks))
	for _, p := range picks {
		exp := r.scorer.Explain(p.offer, p.analysis, profile)
		score := p.score.Total
		if fallback {
			score = max(score, r.opts.MinScore)
			exp.PrimaryReason += fallbackSuffix
		}
		recs = append(recs, model.Recommendation{
			SessionID:         sessionID,
			CardID:            p.offer.ID,
			CardName:          p.offer.Name,
			Score:             score,
			EstimatedEarnings: p.analysis.AnnualEarnings,
			NetSavings:        netSavings(p.offer, p.analysis),
			SignupBonusValue:  p.analysis.SignupBonusValue,
			PrimaryReason:     exp.PrimaryReason,
			Pros:              exp.Pros,
			Cons:              exp.Cons,
			CategoryBreakdown: p.analysis.CategoryBreakdown,
			IsFallback:        fallback,
		})
	}
	recs.Renumber()
	return recs
}

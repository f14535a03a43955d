package recommend

import (
	"sort"

	"github.com/Veraticus/cardwise/internal/model"
)

const staticBase = 50

// StaticScore rates an offer on fixed features alone, for sessions with no
// usable spending data.
func (s Scorer) StaticScore(offer *model.Offer) float64 {
	score := float64(staticBase)

	fee := offer.Fees.AnnualFee
	switch {
	case offer.IsLifetimeFree || fee == 0:
		score += 15
	case fee <= 1000:
		score += 8
	case s.opts.HighFeeThreshold > 0 && fee >= s.opts.HighFeeThreshold:
		score -= 10
	}
	if offer.IsLifetimeFree {
		score += 8
	}

	if s.limitedNetwork(offer) {
		score -= 5
	} else {
		score += 5
	}

	switch {
	case containsFold(s.opts.PreferredIssuers, offer.Issuer):
		score += 10
	case isMajorIssuer(offer.Issuer):
		score += 5
	}

	switch sat := offer.CustomerSatisfactionScore; {
	case sat >= 4.5:
		score += 5
	case sat >= 4.0:
		score += 3
	case lowSatisfaction(offer):
		score -= 5
	}

	return clamp(score)
}

// staticFallback ranks offers by static score and keeps the fallback count.
// Scores are floored to the minimum so every entry clears the threshold.
func (r *Ranker) staticFallback(sessionID string, offers []*model.Offer, profile *model.UserProfile) Result {
	type entry struct {
		offer *model.Offer
		score float64
	}
	entries := make([]entry, 0, len(offers))
	for _, offer := range offers {
		entries = append(entries, entry{offer: offer, score: r.scorer.StaticScore(offer)})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].score != entries[j].score {
			return entries[i].score > entries[j].score
		}
		return entries[i].offer.ID < entries[j].offer.ID
	})

	limit := r.opts.FallbackCount
	if r.opts.MaxRecommendations > 0 && limit > r.opts.MaxRecommendations {
		limit = r.opts.MaxRecommendations
	}
	if len(entries) > limit {
		entries = entries[:limit]
	}

	recs := make(model.Recommendations, 0, len(entries))
	for _, e := range entries {
		exp := r.scorer.ExplainStatic(e.offer, profile)
		recs = append(recs, model.Recommendation{
			SessionID:        sessionID,
			CardID:           e.offer.ID,
			CardName:         e.offer.Name,
			Score:            max(e.score, r.opts.MinScore),
			NetSavings:       -e.offer.Fees.AnnualFee,
			SignupBonusValue: e.offer.WelcomeValue(),
			PrimaryReason:    exp.PrimaryReason,
			Pros:             exp.Pros,
			Cons:             exp.Cons,
			IsFallback:       true,
		})
	}
	recs.Renumber()

	r.logger.Info("no spending data, ranked offers on static features",
		"session_id", sessionID,
		"count", len(recs))

	return Result{
		Recommendations: recs,
		Considered:      len(offers),
		FallbackUsed:    true,
		StaticFallback:  true,
	}
}

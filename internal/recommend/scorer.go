// Package recommend scores card offers against a session's spending and
// produces a dense, ranked recommendation list with deterministic
// explanations.
package recommend

import (
	"strings"

	"github.com/Veraticus/cardwise/internal/model"
	"github.com/Veraticus/cardwise/internal/rewards"
)

// Scoring modes.
const (
	ModeGross = "gross"
	ModeNet   = "net"
)

// Score bounds.
const (
	MinCompositeScore = 5
	MaxCompositeScore = 100
)

const (
	baseScore           = 20
	alignmentWeight     = 0.45
	preferenceWeight    = 0.10
	accessibilityWeight = 0.15
	noProfileAccess     = 70
	unmetPenalty        = 50
)

// majorIssuers are widely held issuers that earn a trust credit.
var majorIssuers = []string{
	"HDFC", "ICICI", "SBI", "STATE BANK", "AXIS", "KOTAK", "AMERICAN EXPRESS", "AMEX",
	"CITI", "HSBC", "STANDARD CHARTERED", "CHASE", "CAPITAL ONE", "BANK OF AMERICA",
}

// Options tunes scoring and ranking.
type Options struct {
	Mode               string
	PreferredIssuers   []string
	LimitedNetworks    []string
	MinScore           float64
	HighFeeThreshold   float64
	MaxRecommendations int
	FallbackCount      int
}

// ScoreBreakdown is the composite score and its parts.
type ScoreBreakdown struct {
	Alignment     float64 `json:"alignment"`
	Preference    float64 `json:"preference"`
	Accessibility float64 `json:"accessibility"`
	Bonus         float64 `json:"bonus"`
	Penalty       float64 `json:"penalty"`
	Raw           float64 `json:"raw"`
	Total         float64 `json:"total"`
}

// Scorer computes composite scores. The zero value uses no preferred issuers
// or limited networks.
type Scorer struct {
	opts Options
}

// NewScorer returns a scorer for the given options.
func NewScorer(opts Options) Scorer {
	return Scorer{opts: opts}
}

// Score computes the composite score for one offer. The total is clamped to
// [5, 100].
func (s Scorer) Score(offer *model.Offer, analysis rewards.EarningsAnalysis, patterns []model.SpendingPattern, profile *model.UserProfile) ScoreBreakdown {
	b := ScoreBreakdown{
		Alignment:     alignment(offer, analysis, patterns),
		Preference:    s.preference(offer, analysis),
		Accessibility: accessibility(offer, profile),
		Bonus:         bonus(offer),
		Penalty:       s.penalty(offer, analysis),
	}
	b.Raw = baseScore +
		alignmentWeight*b.Alignment +
		preferenceWeight*b.Preference +
		accessibilityWeight*b.Accessibility +
		b.Bonus - b.Penalty
	b.Total = clamp(b.Raw)
	return b
}

// rateTier maps a reward rate percentage to an alignment score.
func rateTier(rate float64) float64 {
	switch {
	case rate >= 10:
		return 100
	case rate >= 5:
		return 80
	case rate >= 3:
		return 60
	case rate >= 2:
		return 45
	case rate >= 1:
		return 30
	default:
		return 15
	}
}

// alignment weights each pattern's matched rate tier by its share of spend.
func alignment(offer *model.Offer, analysis rewards.EarningsAnalysis, patterns []model.SpendingPattern) float64 {
	var weighted, weights float64
	for i, line := range analysis.CategoryBreakdown {
		if i >= len(patterns) {
			break
		}
		w := patterns[i].PercentageOfTotal
		if w <= 0 {
			continue
		}
		weighted += rateTier(line.Rate) * w
		weights += w
	}
	if weights == 0 {
		return rateTier(offer.BaseRewardRate)
	}
	return weighted / weights
}

func (s Scorer) preference(offer *model.Offer, analysis rewards.EarningsAnalysis) float64 {
	switch {
	case containsFold(s.opts.PreferredIssuers, offer.Issuer):
		return 100
	case analysis.BrandMatched:
		return 80
	case isMajorIssuer(offer.Issuer):
		return 60
	default:
		return 40
	}
}

func accessibility(offer *model.Offer, profile *model.UserProfile) float64 {
	if profile == nil {
		return noProfileAccess
	}
	score := 100.0
	for _, ok := range eligibility(offer, profile) {
		if !ok {
			score -= unmetPenalty
		}
	}
	return max(score, 0)
}

// eligibility reports whether the income and credit score criteria are met.
func eligibility(offer *model.Offer, profile *model.UserProfile) [2]bool {
	return [2]bool{
		profile.MonthlyIncome >= offer.Eligibility.MinIncome,
		profile.CreditScore >= offer.Eligibility.MinCreditScore,
	}
}

func bonus(offer *model.Offer) float64 {
	var b float64
	if offer.IsLifetimeFree {
		b += 8
	}
	switch sat := offer.CustomerSatisfactionScore; {
	case sat >= 4.5:
		b += 5
	case sat >= 4.0:
		b += 3
	}
	if len(offer.DigitalFeatures) >= 3 {
		b += 3
	}
	switch welcome := offer.WelcomeValue(); {
	case welcome >= 5000:
		b += 6
	case welcome >= 2000:
		b += 4
	case welcome >= 500:
		b += 2
	}
	return b
}

func (s Scorer) penalty(offer *model.Offer, analysis rewards.EarningsAnalysis) float64 {
	var p float64
	if !offer.IsActive {
		p += 30
	}
	if s.limitedNetwork(offer) {
		p += 5
	}
	if lowSatisfaction(offer) {
		p += 5
	}
	if s.highFeeLowBenefit(offer, analysis) {
		p += 10
	}
	return p
}

func (s Scorer) limitedNetwork(offer *model.Offer) bool {
	return containsFold(s.opts.LimitedNetworks, offer.Network)
}

func (s Scorer) highFeeLowBenefit(offer *model.Offer, analysis rewards.EarningsAnalysis) bool {
	return s.opts.HighFeeThreshold > 0 &&
		offer.Fees.AnnualFee >= s.opts.HighFeeThreshold &&
		analysis.AnnualEarnings < offer.Fees.AnnualFee
}

// lowSatisfaction treats a zero score as unrated.
func lowSatisfaction(offer *model.Offer) bool {
	return offer.CustomerSatisfactionScore > 0 && offer.CustomerSatisfactionScore < 3.0
}

func isMajorIssuer(issuer string) bool {
	upper := strings.ToUpper(issuer)
	for _, major := range majorIssuers {
		if strings.Contains(upper, major) {
			return true
		}
	}
	return false
}

func containsFold(values []string, s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	for _, v := range values {
		if strings.EqualFold(strings.TrimSpace(v), s) {
			return true
		}
	}
	return false
}

func clamp(score float64) float64 {
	return min(max(score, MinCompositeScore), MaxCompositeScore)
}

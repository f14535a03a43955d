package recommend

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/Veraticus/cardwise/internal/model"
	"github.com/Veraticus/cardwise/internal/rewards"
)

const fallbackSuffix = " (fallback choice)"

// Explanation is the human-readable rationale for one recommendation.
// It depends only on its inputs.
type Explanation struct {
	PrimaryReason string
	Pros          []string
	Cons          []string
}

func money(v float64) string {
	return humanize.FormatFloat("#,###.", v)
}

func rate(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + "%"
}

// topLines returns breakdown lines with an accelerated rate, highest
// earnings first, category name on ties.
func topLines(offer *model.Offer, analysis rewards.EarningsAnalysis) []model.CategoryEarnings {
	var lines []model.CategoryEarnings
	for _, line := range analysis.CategoryBreakdown {
		if line.Rate > offer.BaseRewardRate && line.Earnings > 0 {
			lines = append(lines, line)
		}
	}
	sort.SliceStable(lines, func(i, j int) bool {
		if lines[i].Earnings != lines[j].Earnings {
			return lines[i].Earnings > lines[j].Earnings
		}
		return lines[i].Category < lines[j].Category
	})
	return lines
}

// Explain builds the explanation for a scored offer.
func (s Scorer) Explain(offer *model.Offer, analysis rewards.EarningsAnalysis, profile *model.UserProfile) Explanation {
	lines := topLines(offer, analysis)

	var e Explanation
	switch {
	case len(lines) > 0:
		e.PrimaryReason = fmt.Sprintf("Earns %s on %s, about %s a year in rewards",
			rate(lines[0].Rate), lines[0].Category, money(analysis.AnnualEarnings))
	case analysis.AnnualEarnings > 0:
		e.PrimaryReason = fmt.Sprintf("Flat %s back on all spend, about %s a year in rewards",
			rate(offer.BaseRewardRate), money(analysis.AnnualEarnings))
	default:
		e.PrimaryReason = fmt.Sprintf("Flat %s base rate on all spend", rate(offer.BaseRewardRate))
	}

	e.Pros = s.pros(offer, analysis, lines)
	e.Cons = s.cons(offer, analysis, profile, true)
	return e
}

// ExplainStatic builds the explanation used when there is no spending data.
func (s Scorer) ExplainStatic(offer *model.Offer, profile *model.UserProfile) Explanation {
	var reason string
	switch {
	case offer.IsLifetimeFree || offer.Fees.AnnualFee == 0:
		reason = "No annual fee and a " + rate(offer.BaseRewardRate) + " base rate"
	case isMajorIssuer(offer.Issuer):
		reason = "Trusted issuer with a " + rate(offer.BaseRewardRate) + " base rate"
	default:
		reason = "Broad everyday card with a " + rate(offer.BaseRewardRate) + " base rate"
	}

	return Explanation{
		PrimaryReason: reason + fallbackSuffix,
		Pros:          s.pros(offer, rewards.EarningsAnalysis{}, nil),
		Cons:          s.cons(offer, rewards.EarningsAnalysis{}, profile, false),
	}
}

func (s Scorer) pros(offer *model.Offer, analysis rewards.EarningsAnalysis, lines []model.CategoryEarnings) []string {
	pros := []string{}
	switch {
	case offer.IsLifetimeFree:
		pros = append(pros, "Lifetime free, no annual fee")
	case offer.Fees.AnnualFee == 0:
		pros = append(pros, "No annual fee")
	case analysis.AnnualEarnings > offer.Fees.AnnualFee:
		pros = append(pros, fmt.Sprintf("Rewards of about %s a year cover the %s annual fee",
			money(analysis.AnnualEarnings), money(offer.Fees.AnnualFee)))
	}
	for i, line := range lines {
		if i == 2 {
			break
		}
		pros = append(pros, fmt.Sprintf("%s on %s (%s spend)", rate(line.Rate), line.Category, money(line.Spend)))
	}
	if v := offer.WelcomeValue(); v > 0 {
		pros = append(pros, fmt.Sprintf("Welcome benefits worth %s", money(v)))
	}
	if offer.CustomerSatisfactionScore >= 4.0 {
		pros = append(pros, fmt.Sprintf("Highly rated by cardholders (%.1f/5)", offer.CustomerSatisfactionScore))
	}
	if len(offer.DigitalFeatures) >= 3 {
		pros = append(pros, "Digital features: "+strings.Join(offer.DigitalFeatures, ", "))
	}
	return pros
}

// cons lists drawbacks. estimated is false when there was no spending data
// to compare the fee against.
func (s Scorer) cons(offer *model.Offer, analysis rewards.EarningsAnalysis, profile *model.UserProfile, estimated bool) []string {
	cons := []string{}
	fee := offer.Fees.AnnualFee
	if estimated && fee > 0 && !offer.IsLifetimeFree && analysis.AnnualEarnings < fee {
		cons = append(cons, fmt.Sprintf("Annual fee of %s exceeds estimated rewards", money(fee)))
	}
	if s.opts.HighFeeThreshold > 0 && fee >= s.opts.HighFeeThreshold {
		cons = append(cons, fmt.Sprintf("High annual fee of %s", money(fee)))
	}
	if offer.Fees.JoiningFee > 0 {
		cons = append(cons, fmt.Sprintf("Joining fee of %s", money(offer.Fees.JoiningFee)))
	}
	for _, line := range analysis.CategoryBreakdown {
		if line.CapReached {
			cons = append(cons, fmt.Sprintf("Reward cap reached on %s; further spend earns the base rate", line.Category))
		}
	}
	if s.limitedNetwork(offer) {
		cons = append(cons, fmt.Sprintf("Limited acceptance on the %s network", offer.Network))
	}
	if profile != nil {
		met := eligibility(offer, profile)
		if !met[0] {
			cons = append(cons, fmt.Sprintf("Requires a monthly income of %s", money(offer.Eligibility.MinIncome)))
		}
		if !met[1] {
			cons = append(cons, fmt.Sprintf("Requires a credit score of %d", offer.Eligibility.MinCreditScore))
		}
	}
	if lowSatisfaction(offer) {
		cons = append(cons, fmt.Sprintf("Below-average cardholder satisfaction (%.1f/5)", offer.CustomerSatisfactionScore))
	}
	return cons
}

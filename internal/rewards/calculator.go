package rewards

import (
	"github.com/shopspring/decimal"

	"github.com/Veraticus/cardwise/internal/model"
)

// Fallback point values used when configuration yields a non-positive value.
const (
	fallbackCashbackValue = 1.0
	fallbackMilesValue    = 0.5
	fallbackPointsValue   = 0.25
)

var hundred = decimal.NewFromInt(100)

// Options tunes the calculator.
type Options struct {
	PointValues     map[model.RewardCurrency]float64
	StatementMonths int
}

// PointValue converts one reward unit of currency into money.
func (o Options) PointValue(currency model.RewardCurrency) float64 {
	if v := o.PointValues[currency]; v > 0 {
		return v
	}
	switch currency {
	case model.CurrencyCashback:
		return fallbackCashbackValue
	case model.CurrencyMiles:
		return fallbackMilesValue
	default:
		return fallbackPointsValue
	}
}

func (o Options) months() int {
	if o.StatementMonths <= 0 {
		return 1
	}
	return o.StatementMonths
}

// EarningsAnalysis is what one offer would earn on a session's spending.
// Monetary amounts are for the statement period unless named Annual.
type EarningsAnalysis struct {
	OfferID           string                   `json:"offerId"`
	CategoryBreakdown []model.CategoryEarnings `json:"categoryBreakdown"`
	TotalEarnings     float64                  `json:"totalEarnings"`
	AnnualEarnings    float64                  `json:"annualEarnings"`
	SignupBonusValue  float64                  `json:"signupBonusValue"`
	JoiningFee        float64                  `json:"joiningFee"`
	AnnualFee         float64                  `json:"annualFee"`
	BestRate          float64                  `json:"bestRate"`
	BrandMatched      bool                     `json:"brandMatched"`
}

// Calculator estimates earnings. It applies no fee policy.
type Calculator interface {
	Calculate(offer *model.Offer, patterns []model.SpendingPattern) EarningsAnalysis
}

type savingsCalculator struct {
	matcher Matcher
	opts    Options
}

// NewCalculator returns the earnings calculator.
func NewCalculator(opts Options) Calculator {
	return &savingsCalculator{opts: opts}
}

// Calculate matches every pattern to its best rule and sums the earnings.
func (c *savingsCalculator) Calculate(offer *model.Offer, patterns []model.SpendingPattern) EarningsAnalysis {
	pointValue := decimal.NewFromFloat(c.opts.PointValue(offer.RewardCurrency))
	baseRate := decimal.NewFromFloat(offer.BaseRewardRate).Div(hundred)

	analysis := EarningsAnalysis{
		OfferID:           offer.ID,
		CategoryBreakdown: make([]model.CategoryEarnings, 0, len(patterns)),
		SignupBonusValue:  round(decimal.NewFromFloat(offer.WelcomeValue())),
		JoiningFee:        offer.Fees.JoiningFee,
		AnnualFee:         offer.Fees.AnnualFee,
		BestRate:          offer.BaseRewardRate,
	}

	// A rule's cap is shared by every pattern it wins.
	capUsed := make(map[int]decimal.Decimal)
	total := decimal.Zero
	for _, pattern := range patterns {
		m := c.matcher.BestRule(offer, pattern)
		line := c.categoryEarnings(m, pattern, baseRate, pointValue, capUsed)
		analysis.CategoryBreakdown = append(analysis.CategoryBreakdown, line)
		total = total.Add(decimal.NewFromFloat(line.Earnings))
		if m.Rate > analysis.BestRate {
			analysis.BestRate = m.Rate
		}
		if m.Type == MatchBrand {
			analysis.BrandMatched = true
		}
	}

	analysis.TotalEarnings = round(total)
	analysis.AnnualEarnings = round(total.Mul(decimal.NewFromInt(12)).Div(decimal.NewFromInt(int64(c.opts.months()))))
	return analysis
}

// categoryEarnings prices one pattern under its matched rule. capUsed holds
// what each capped rule has already earned on earlier patterns and is updated.
func (c *savingsCalculator) categoryEarnings(m Match, pattern model.SpendingPattern, baseRate, pointValue decimal.Decimal, capUsed map[int]decimal.Decimal) model.CategoryEarnings {
	patternSpend := decimal.NewFromFloat(pattern.TotalSpent)
	eligible := decimal.Min(decimal.NewFromFloat(m.EligibleSpend), patternSpend)
	remainder := patternSpend.Sub(eligible)
	rate := decimal.NewFromFloat(m.Rate).Div(hundred)

	earned := eligible.Mul(rate)
	overflow := remainder.Mul(baseRate)
	capReached := false

	if m.Rule != nil && m.Rule.Cap != nil && rate.IsPositive() {
		limit := decimal.Max(c.scaledCap(m.Rule.Cap).Sub(capUsed[m.RuleIndex]), decimal.Zero)
		if earned.GreaterThan(limit) {
			capPoint := limit.Div(rate)
			overflow = overflow.Add(eligible.Sub(capPoint).Mul(baseRate))
			earned = limit
			capReached = true
		}
		capUsed[m.RuleIndex] = capUsed[m.RuleIndex].Add(earned)
	}

	line := model.CategoryEarnings{
		Category:         pattern.CategoryName,
		MatchType:        string(m.Type),
		Spend:            pattern.TotalSpent,
		Rate:             m.Rate,
		CappedEarnings:   round(earned.Mul(pointValue)),
		OverflowEarnings: round(overflow.Mul(pointValue)),
		CapReached:       capReached,
	}
	if m.Rule != nil {
		line.RuleCategory = m.Rule.RewardCategory
	}
	line.Earnings = round(decimal.NewFromFloat(line.CappedEarnings).Add(decimal.NewFromFloat(line.OverflowEarnings)))
	return line
}

// scaledCap converts a cap to the statement period.
func (c *savingsCalculator) scaledCap(rc *model.RewardCap) decimal.Decimal {
	limit := decimal.NewFromFloat(rc.Limit)
	months := decimal.NewFromInt(int64(c.opts.months()))
	switch rc.Period {
	case model.CapQuarterly:
		return limit.Mul(months).Div(decimal.NewFromInt(3))
	case model.CapYearly:
		return limit.Mul(months).Div(decimal.NewFromInt(12))
	case model.CapStatement:
		return limit
	default:
		return limit.Mul(months)
	}
}

func round(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

// Package rewards matches card reward rules to spending patterns and
// estimates what each offer would earn.
package rewards

import (
	"sort"
	"strings"

	"github.com/Veraticus/cardwise/internal/merchant"
	"github.com/Veraticus/cardwise/internal/model"
)

// Merchant match scores.
const (
	MerchantExact     = 1.0
	MerchantFamily    = 0.95
	MerchantSubstring = 0.8
	// MerchantAccept is the lowest score that counts as a merchant match.
	MerchantAccept = 0.7

	minSubstringLen  = 4
	minSimilarity    = 0.8
	brandWeight      = 120
	nonBrandBonus    = 10
	mccPerCode       = 15
	mccOverlapCap    = 45
	mccGroupCredit   = 10
	categoryExact    = 100
	categorySynonym  = 80
	categorySubstr   = 60
	minCategorySubst = 3
)

// MatchType records how a pattern's reward rate was chosen.
type MatchType string

// Match types.
const (
	MatchBrand    MatchType = "brand"
	MatchCategory MatchType = "category"
	MatchMCC      MatchType = "mcc"
	MatchBase     MatchType = "base"
)

// familyAliases is every family alias, longest first, for prefix checks.
var familyAliases = func() []string {
	aliases := make([]string, 0, len(familyIndex))
	for alias := range familyIndex {
		aliases = append(aliases, alias)
	}
	sort.Slice(aliases, func(i, j int) bool {
		if len(aliases[i]) != len(aliases[j]) {
			return len(aliases[i]) > len(aliases[j])
		}
		return aliases[i] < aliases[j]
	})
	return aliases
}()

// brandKey lowercases to alphanumerics, drops numbers and trailing city
// tokens, and joins what is left without spaces.
func brandKey(s string) string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return (r < 'a' || r > 'z') && (r < '0' || r > '9')
	})
	tokens := fields[:0]
	for _, f := range fields {
		if strings.Trim(f, "0123456789") == "" {
			continue
		}
		tokens = append(tokens, f)
	}
	for len(tokens) > 1 && citySuffixes[tokens[len(tokens)-1]] {
		tokens = tokens[:len(tokens)-1]
	}
	return strings.Join(tokens, "")
}

func familyOf(key string) string {
	if family, ok := familyIndex[key]; ok {
		return family
	}
	for _, alias := range familyAliases {
		if len(alias) >= minSubstringLen && strings.HasPrefix(key, alias) {
			return familyIndex[alias]
		}
	}
	return ""
}

// MatchMerchant scores how well a statement merchant matches a reward rule's
// merchant pattern. Scores below MerchantAccept are not a match.
func MatchMerchant(name, pattern string) float64 {
	m, p := brandKey(name), brandKey(pattern)
	if m == "" || p == "" {
		return 0
	}
	if m == p {
		return MerchantExact
	}
	if fm := familyOf(m); fm != "" && fm == familyOf(p) {
		return MerchantFamily
	}

	short, long := m, p
	if len(short) > len(long) {
		short, long = long, short
	}
	if len(short) >= minSubstringLen && strings.Contains(long, short) {
		return MerchantSubstring
	}

	if sim := merchant.Similarity(m, p); sim >= minSimilarity {
		return sim
	}
	return 0
}

// CategoryMatch scores a reward rule's category against a pattern's
// category: exact 100, synonym 80, substring 60, otherwise 0.
func CategoryMatch(ruleCategory, patternCategory string) int {
	r, p := model.Slugify(ruleCategory), model.Slugify(patternCategory)
	if r == "" || p == "" {
		return 0
	}
	if r == p {
		return categoryExact
	}
	if gr, ok := categorySynonyms[r]; ok && gr == categorySynonyms[p] {
		return categorySynonym
	}
	if len(r) >= minCategorySubst && len(p) >= minCategorySubst && (strings.Contains(p, r) || strings.Contains(r, p)) {
		return categorySubstr
	}
	return 0
}

// MCCScore credits 15 per shared code up to 45, or 10 when no code is shared
// but the codes fall in the same group.
func MCCScore(ruleCodes, patternCodes []string) int {
	if len(ruleCodes) == 0 || len(patternCodes) == 0 {
		return 0
	}
	have := make(map[string]bool, len(patternCodes))
	groups := make(map[string]bool, len(patternCodes))
	for _, code := range patternCodes {
		have[code] = true
		if g, ok := mccGroups[code]; ok {
			groups[g] = true
		}
	}

	overlap := 0
	grouped := false
	for _, code := range ruleCodes {
		if have[code] {
			overlap++
		} else if g, ok := mccGroups[code]; ok && groups[g] {
			grouped = true
		}
	}

	switch {
	case overlap > 0:
		return min(overlap*mccPerCode, mccOverlapCap)
	case grouped:
		return mccGroupCredit
	default:
		return 0
	}
}

// Match is the reward rule chosen for one spending pattern.
type Match struct {
	Rule             *model.AcceleratedReward
	Type             MatchType
	MatchedMerchants []string
	RuleIndex        int
	Score            float64
	Rate             float64
	EligibleSpend    float64
}

// Matcher picks the best reward rule of an offer for a spending pattern.
type Matcher struct{}

type candidate struct {
	match Match
	brand bool
}

// BestRule returns the highest-scoring applicable rule. Brand rules without
// a merchant match are inapplicable. With no applicable rule the offer's
// base rate applies to the whole pattern.
func (Matcher) BestRule(offer *model.Offer, pattern model.SpendingPattern) Match {
	var candidates []candidate
	for i := range offer.AcceleratedRewards {
		rule := &offer.AcceleratedRewards[i]
		catScore := max(
			CategoryMatch(rule.RewardCategory, pattern.CategoryName),
			CategoryMatch(rule.RewardCategory, pattern.SubCategoryName),
		)
		mccScore := MCCScore(rule.MCCCodes, pattern.MCCCodes)

		if rule.IsBrandSpecific() {
			best, spend, matched := matchBrand(rule.MerchantPatterns, pattern)
			if len(matched) == 0 {
				continue
			}
			candidates = append(candidates, candidate{brand: true, match: Match{
				Rule:             rule,
				RuleIndex:        i,
				Type:             MatchBrand,
				Score:            best*brandWeight + float64(catScore+mccScore),
				Rate:             rule.Rate,
				EligibleSpend:    spend,
				MatchedMerchants: matched,
			}})
			continue
		}

		if catScore == 0 && mccScore == 0 {
			continue
		}
		matchType := MatchCategory
		if catScore == 0 {
			matchType = MatchMCC
		}
		candidates = append(candidates, candidate{match: Match{
			Rule:          rule,
			RuleIndex:     i,
			Type:          matchType,
			Score:         float64(catScore + mccScore),
			Rate:          rule.Rate,
			EligibleSpend: pattern.TotalSpent,
		}})
	}

	if len(candidates) == 0 {
		return Match{
			RuleIndex:     -1,
			Type:          MatchBase,
			Rate:          offer.BaseRewardRate,
			EligibleSpend: pattern.TotalSpent,
		}
	}

	if len(candidates) > 1 {
		for i := range candidates {
			if !candidates[i].brand {
				candidates[i].match.Score += nonBrandBonus
			}
		}
	}

	best := candidates[0].match
	for _, c := range candidates[1:] {
		m := c.match
		if m.Score > best.Score || (m.Score == best.Score && m.Rate > best.Rate) {
			best = m
		}
	}
	return best
}

// matchBrand returns the best merchant score, the spend of every matched
// merchant, and their names in pattern order.
func matchBrand(patterns []string, sp model.SpendingPattern) (float64, float64, []string) {
	spend := sp.MerchantSpend
	if len(spend) == 0 {
		for _, name := range sp.Merchants {
			spend = append(spend, model.MerchantSpend{Name: name})
		}
	}

	var (
		best    float64
		total   float64
		matched []string
	)
	for _, ms := range spend {
		score := 0.0
		for _, p := range patterns {
			score = max(score, MatchMerchant(ms.Name, p))
		}
		if score < MerchantAccept {
			continue
		}
		best = max(best, score)
		total += ms.Amount
		matched = append(matched, ms.Name)
	}
	return best, total, matched
}

package model

import (
	"fmt"
	"sort"
)

// CategoryEarnings is one line of an offer's earnings breakdown.
type CategoryEarnings struct {
	Category         string  `json:"category"`
	RuleCategory     string  `json:"ruleCategory,omitempty"`
	MatchType        string  `json:"matchType"`
	Spend            float64 `json:"spend"`
	Rate             float64 `json:"rate"`
	CappedEarnings   float64 `json:"cappedEarnings"`
	OverflowEarnings float64 `json:"overflowEarnings"`
	Earnings         float64 `json:"earnings"`
	CapReached       bool    `json:"capReached"`
}

// Recommendation is one ranked offer for a session. A session's set is replaced
// wholesale on every scoring run.
type Recommendation struct {
	SessionID         string             `json:"sessionId"`
	CardID            string             `json:"cardId"`
	CardName          string             `json:"cardName"`
	PrimaryReason     string             `json:"primaryReason"`
	Pros              []string           `json:"pros"`
	Cons              []string           `json:"cons"`
	CategoryBreakdown []CategoryEarnings `json:"categoryBreakdown"`
	Rank              int                `json:"rank"`
	Score             float64            `json:"score"`
	EstimatedEarnings float64            `json:"estimatedEarnings"`
	NetSavings        float64            `json:"netSavings"`
	SignupBonusValue  float64            `json:"signupBonusValue"`
	IsFallback        bool               `json:"isFallback"`
}

// Recommendations is a ranked set for one session.
type Recommendations []Recommendation

// ValidateRanks ensures ranks form the dense sequence 1..N with no duplicates.
func (r Recommendations) ValidateRanks() error {
	ranks := make([]int, len(r))
	for i, rec := range r {
		ranks[i] = rec.Rank
	}
	sort.Ints(ranks)
	for i, rank := range ranks {
		if rank != i+1 {
			return fmt.Errorf("ranks are not dense: expected %d, got %d", i+1, rank)
		}
	}
	return nil
}

// Renumber assigns ranks 1..N in slice order.
func (r Recommendations) Renumber() {
	for i := range r {
		r[i].Rank = i + 1
	}
}

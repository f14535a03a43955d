package spending

import (
	"github.com/shopspring/decimal"

	"github.com/Veraticus/cardwise/internal/model"
)

// Summary totals a session's spend and credits.
type Summary struct {
	Transactions  int     `json:"transactions"`
	SpendCount    int     `json:"spendCount"`
	CreditCount   int     `json:"creditCount"`
	TotalSpend    float64 `json:"totalSpend"`
	TotalCredits  float64 `json:"totalCredits"`
	ResolvedCount int     `json:"resolvedCount"`
}

// Summarize reports positive and credit totals. Zero amounts count toward
// neither side.
func Summarize(txns []model.Transaction) Summary {
	var (
		s       = Summary{Transactions: len(txns)}
		spend   = decimal.Zero
		credits = decimal.Zero
	)
	for i := range txns {
		t := &txns[i]
		if t.IsResolved() {
			s.ResolvedCount++
		}
		switch {
		case t.Amount > 0:
			s.SpendCount++
			spend = spend.Add(decimal.NewFromFloat(t.Amount))
		case t.Amount < 0:
			s.CreditCount++
			credits = credits.Add(decimal.NewFromFloat(-t.Amount))
		}
	}
	s.TotalSpend = spend.Round(2).InexactFloat64()
	s.TotalCredits = credits.Round(2).InexactFloat64()
	return s
}

// Package spending builds per-category spending patterns from a session's
// resolved transactions. Only positive amounts count as spend.
package spending

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/cardwise/internal/model"
)

// Options controls the significance floor and the category cap.
type Options struct {
	MinTotalSpend         float64
	MinCategoryPercentage float64
	MinCategoryAmount     float64
	MaxCategories         int
}

type group struct {
	subSpend   map[int]decimal.Decimal
	merchants  map[string]decimal.Decimal
	mccs       map[string]bool
	total      decimal.Decimal
	categoryID int
	count      int
}

// Aggregate groups positive spend by canonical category. It returns an empty
// slice when the session has too little spend or no category clears the
// significance floor; callers treat that as insufficient data.
func Aggregate(txns []model.Transaction, taxonomy *model.Taxonomy, opts Options) []model.SpendingPattern {
	catchAllID := 0
	if taxonomy != nil {
		if c, ok := taxonomy.CatchAll(); ok {
			catchAllID = c.ID
		}
	}

	groups := make(map[int]*group)
	total := decimal.Zero
	for i := range txns {
		t := &txns[i]
		if t.Amount <= 0 {
			continue
		}
		amount := decimal.NewFromFloat(t.Amount)
		total = total.Add(amount)

		catID := catchAllID
		if t.CategoryID != nil {
			if _, ok := lookupCategory(taxonomy, *t.CategoryID); ok {
				catID = *t.CategoryID
			}
		}

		g, ok := groups[catID]
		if !ok {
			g = &group{
				categoryID: catID,
				subSpend:   make(map[int]decimal.Decimal),
				merchants:  make(map[string]decimal.Decimal),
				mccs:       make(map[string]bool),
			}
			groups[catID] = g
		}
		g.total = g.total.Add(amount)
		g.count++
		if t.SubCategoryID != nil {
			g.subSpend[*t.SubCategoryID] = g.subSpend[*t.SubCategoryID].Add(amount)
		}
		if t.MCCCode != nil && *t.MCCCode != "" {
			g.mccs[*t.MCCCode] = true
		}
		name := t.MerchantOrDescription()
		g.merchants[name] = g.merchants[name].Add(amount)
	}

	if total.IsZero() || total.LessThan(decimal.NewFromFloat(opts.MinTotalSpend)) {
		return []model.SpendingPattern{}
	}

	hundred := decimal.NewFromInt(100)
	minPct := decimal.NewFromFloat(opts.MinCategoryPercentage)
	minAmount := decimal.NewFromFloat(opts.MinCategoryAmount)

	patterns := make([]model.SpendingPattern, 0, len(groups))
	for _, g := range groups {
		pct := g.total.Div(total).Mul(hundred)
		if pct.LessThan(minPct) && g.total.LessThan(minAmount) {
			continue
		}
		patterns = append(patterns, g.pattern(taxonomy, pct))
	}

	sort.SliceStable(patterns, func(i, j int) bool {
		if patterns[i].TotalSpent != patterns[j].TotalSpent {
			return patterns[i].TotalSpent > patterns[j].TotalSpent
		}
		return patterns[i].CategoryName < patterns[j].CategoryName
	})

	if opts.MaxCategories > 0 && len(patterns) > opts.MaxCategories {
		patterns = patterns[:opts.MaxCategories]
	}
	return patterns
}

func (g *group) pattern(taxonomy *model.Taxonomy, pct decimal.Decimal) model.SpendingPattern {
	name := "Other"
	if c, ok := lookupCategory(taxonomy, g.categoryID); ok {
		name = c.Name
	}

	mccs := make([]string, 0, len(g.mccs))
	for code := range g.mccs {
		mccs = append(mccs, code)
	}
	sort.Strings(mccs)

	spend := make([]model.MerchantSpend, 0, len(g.merchants))
	for merchant, amount := range g.merchants {
		spend = append(spend, model.MerchantSpend{Name: merchant, Amount: amount.InexactFloat64()})
	}
	sort.Slice(spend, func(i, j int) bool {
		if spend[i].Amount != spend[j].Amount {
			return spend[i].Amount > spend[j].Amount
		}
		return spend[i].Name < spend[j].Name
	})
	merchants := make([]string, len(spend))
	for i, m := range spend {
		merchants[i] = m.Name
	}

	return model.SpendingPattern{
		CategoryID:         g.categoryID,
		CategoryName:       name,
		SubCategoryName:    g.topSubCategory(taxonomy),
		TotalSpent:         g.total.InexactFloat64(),
		TransactionCount:   g.count,
		AverageTransaction: g.total.Div(decimal.NewFromInt(int64(g.count))).Round(2).InexactFloat64(),
		PercentageOfTotal:  pct.Round(2).InexactFloat64(),
		MCCCodes:           mccs,
		Merchants:          merchants,
		MerchantSpend:      spend,
	}
}

// topSubCategory names the subcategory with the most spend, lowest id on ties.
func (g *group) topSubCategory(taxonomy *model.Taxonomy) string {
	bestID := 0
	best := decimal.Zero
	for id, amount := range g.subSpend {
		if sub, ok := lookupSub(taxonomy, id); !ok || sub.CategoryID != g.categoryID {
			continue
		}
		if bestID == 0 || amount.GreaterThan(best) || (amount.Equal(best) && id < bestID) {
			bestID, best = id, amount
		}
	}
	if sub, ok := lookupSub(taxonomy, bestID); ok {
		return sub.Name
	}
	return ""
}

func lookupCategory(taxonomy *model.Taxonomy, id int) (model.Category, bool) {
	if taxonomy == nil {
		return model.Category{}, false
	}
	return taxonomy.Category(id)
}

func lookupSub(taxonomy *model.Taxonomy, id int) (model.SubCategory, bool) {
	if taxonomy == nil || id == 0 {
		return model.SubCategory{}, false
	}
	return taxonomy.SubCategory(id)
}

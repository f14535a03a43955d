package spending

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/cardwise/internal/model"
)

func taxonomy() *model.Taxonomy {
	return model.NewTaxonomy(
		[]model.Category{
			{ID: 1, Name: "Dining", Slug: "dining"},
			{ID: 2, Name: "Groceries", Slug: "groceries"},
			{ID: 3, Name: "Travel", Slug: "travel"},
			{ID: 9, Name: "Other", Slug: "other"},
		},
		[]model.SubCategory{
			{ID: 10, CategoryID: 1, Name: "Restaurants"},
			{ID: 11, CategoryID: 1, Name: "Coffee Shops"},
			{ID: 30, CategoryID: 3, Name: "Flights"},
		},
	)
}

func txn(merchant string, amount float64, categoryID int, subID int, mcc string) model.Transaction {
	t := model.Transaction{
		Date:           time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		RawDescription: merchant,
		Merchant:       merchant,
		Amount:         amount,
	}
	if categoryID != 0 {
		t.CategoryID = &categoryID
	}
	if subID != 0 {
		t.SubCategoryID = &subID
	}
	if mcc != "" {
		t.MCCCode = &mcc
	}
	return t
}

func defaultOptions() Options {
	return Options{MinTotalSpend: 100, MinCategoryPercentage: 1, MinCategoryAmount: 100, MaxCategories: 10}
}

func TestAggregate(t *testing.T) {
	txns := []model.Transaction{
		txn("SWIGGY", 1200, 1, 10, "5499"),
		txn("STARBUCKS", 300, 1, 11, "5814"),
		txn("STARBUCKS", 300, 1, 11, "5814"),
		txn("DMART", 2000, 2, 0, "5411"),
		txn("REFUND DMART", -500, 2, 0, "5411"),
		txn("INDIGO", 6000, 3, 30, "4511"),
		txn("MYSTERY", 200, 0, 0, ""),
		txn("ZERO", 0, 3, 0, ""),
	}

	patterns := Aggregate(txns, taxonomy(), defaultOptions())
	require.Len(t, patterns, 4)

	assert.Equal(t, "Travel", patterns[0].CategoryName)
	assert.Equal(t, "Groceries", patterns[1].CategoryName)
	assert.Equal(t, "Dining", patterns[2].CategoryName)
	assert.Equal(t, "Other", patterns[3].CategoryName)

	dining := patterns[2]
	assert.InDelta(t, 1800, dining.TotalSpent, 1e-9)
	assert.Equal(t, 3, dining.TransactionCount)
	assert.InDelta(t, 600, dining.AverageTransaction, 1e-9)
	assert.InDelta(t, 18, dining.PercentageOfTotal, 1e-9)
	assert.Equal(t, "Restaurants", dining.SubCategoryName)
	assert.Equal(t, []string{"5499", "5814"}, dining.MCCCodes)
	assert.Equal(t, []string{"SWIGGY", "STARBUCKS"}, dining.Merchants)
	assert.Equal(t, []model.MerchantSpend{{Name: "SWIGGY", Amount: 1200}, {Name: "STARBUCKS", Amount: 600}}, dining.MerchantSpend)

	groceries := patterns[1]
	assert.InDelta(t, 2000, groceries.TotalSpent, 1e-9)
	assert.Equal(t, 1, groceries.TransactionCount)
	assert.Empty(t, groceries.SubCategoryName)

	other := patterns[3]
	assert.Equal(t, 9, other.CategoryID)
	assert.Empty(t, other.MCCCodes)
}

func TestAggregateExcludesCredits(t *testing.T) {
	txns := []model.Transaction{
		txn("A", 150.10, 1, 0, ""),
		txn("B", 0.20, 1, 0, ""),
		txn("C", -999, 1, 0, ""),
		txn("D", 333.33, 2, 0, ""),
		txn("E", 0.1, 3, 0, ""),
		txn("F", -0.1, 3, 0, ""),
	}
	opts := Options{MinTotalSpend: 0, MaxCategories: 10}

	var positive float64
	for _, t := range txns {
		if t.Amount > 0 {
			positive += t.Amount
		}
	}

	var sum float64
	for _, p := range Aggregate(txns, taxonomy(), opts) {
		sum += p.TotalSpent
		for _, m := range p.MerchantSpend {
			assert.Positive(t, m.Amount)
			assert.NotContains(t, []string{"C", "F"}, m.Name)
		}
	}
	assert.LessOrEqual(t, sum, positive+1e-9)
	assert.InDelta(t, positive, sum, 1e-9)
}

func TestAggregateInsufficientData(t *testing.T) {
	tests := []struct {
		name string
		txns []model.Transaction
		opts Options
	}{
		{name: "no transactions", opts: defaultOptions()},
		{
			name: "only credits",
			txns: []model.Transaction{txn("REFUND", -500, 1, 0, ""), txn("PAYMENT", -2000, 0, 0, "")},
			opts: defaultOptions(),
		},
		{
			name: "below spend floor",
			txns: []model.Transaction{txn("COFFEE", 99.99, 1, 0, "")},
			opts: defaultOptions(),
		},
		{
			name: "nothing clears significance floor",
			txns: []model.Transaction{txn("A", 50, 1, 0, ""), txn("B", 60, 2, 0, "")},
			opts: Options{MinTotalSpend: 100, MinCategoryPercentage: 80, MinCategoryAmount: 100},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			patterns := Aggregate(tt.txns, taxonomy(), tt.opts)
			require.NotNil(t, patterns)
			assert.Empty(t, patterns)
		})
	}
}

func TestAggregateSignificanceAndCap(t *testing.T) {
	txns := []model.Transaction{
		txn("BIG", 100000, 1, 0, ""),
		txn("SMALL BUT ABOVE AMOUNT", 150, 2, 0, ""),
		txn("TINY", 20, 3, 0, ""),
	}

	patterns := Aggregate(txns, taxonomy(), defaultOptions())
	require.Len(t, patterns, 2)
	assert.Equal(t, "Dining", patterns[0].CategoryName)
	assert.Equal(t, "Groceries", patterns[1].CategoryName)

	opts := defaultOptions()
	opts.MaxCategories = 1
	patterns = Aggregate(txns, taxonomy(), opts)
	require.Len(t, patterns, 1)
	assert.Equal(t, "Dining", patterns[0].CategoryName)
}

func TestAggregateTieBreaksByName(t *testing.T) {
	txns := []model.Transaction{
		txn("X", 500, 3, 0, ""),
		txn("Y", 500, 1, 0, ""),
	}
	patterns := Aggregate(txns, taxonomy(), defaultOptions())
	require.Len(t, patterns, 2)
	assert.Equal(t, "Dining", patterns[0].CategoryName)
	assert.Equal(t, "Travel", patterns[1].CategoryName)
}

func TestSummarize(t *testing.T) {
	resolved := txn("A", 100.25, 1, 0, "5814")
	s := Summarize([]model.Transaction{
		resolved,
		txn("B", 50, 0, 0, ""),
		txn("C", -30.5, 0, 0, ""),
		txn("D", 0, 0, 0, ""),
	})

	assert.Equal(t, Summary{
		Transactions:  4,
		SpendCount:    2,
		CreditCount:   1,
		TotalSpend:    150.25,
		TotalCredits:  30.5,
		ResolvedCount: 1,
	}, s)
}

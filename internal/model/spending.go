package model

// MerchantSpend is one merchant's share of a spending pattern.
type MerchantSpend struct {
	Name   string
	Amount float64
}

// SpendingPattern summarizes positive spend in one canonical category.
// Patterns are rebuilt on every run and never mutated after construction.
type SpendingPattern struct {
	CategoryName       string
	SubCategoryName    string
	MCCCodes           []string
	Merchants          []string
	MerchantSpend      []MerchantSpend
	CategoryID         int
	TotalSpent         float64
	TransactionCount   int
	AverageTransaction float64
	PercentageOfTotal  float64
}

package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/cardwise/internal/model"
)

const sampleCatalog = `offers:
  - id: foodie-rewards
    name: Foodie Rewards
    issuer: Axis Bank
    network: MASTERCARD
    currency: cashback
    base_rate: 1
    rewards:
      - category: Dining & Food Delivery
        rate: 10
        cap: {limit: 500, period: monthly}
      - category: Dining & Food Delivery
        merchants: [Swiggy, Zomato]
        rate: 15
    fees: {joining: 0, annual: 999}
    eligibility: {min_income: 30000, min_credit_score: 720}
    welcome:
      - description: Dining voucher
        value: 1000
    satisfaction: 4.5
  - id: legacy-gold
    name: Legacy Gold
    issuer: Citibank
    currency: points
    base_rate: 1
    active: false
`

func TestParseCatalog(t *testing.T) {
	offers, err := parseCatalog(strings.NewReader(sampleCatalog))
	require.NoError(t, err)
	require.Len(t, offers, 2)

	foodie := offers[0]
	assert.Equal(t, "foodie-rewards", foodie.ID)
	assert.Equal(t, model.CurrencyCashback, foodie.RewardCurrency)
	assert.True(t, foodie.IsActive)
	require.Len(t, foodie.AcceleratedRewards, 2)
	require.NotNil(t, foodie.AcceleratedRewards[0].Cap)
	assert.Equal(t, model.CapMonthly, foodie.AcceleratedRewards[0].Cap.Period)
	assert.InDelta(t, 500, foodie.AcceleratedRewards[0].Cap.Limit, 0.001)
	assert.Equal(t, []string{"Swiggy", "Zomato"}, foodie.AcceleratedRewards[1].MerchantPatterns)
	assert.InDelta(t, 999, foodie.Fees.AnnualFee, 0.001)
	assert.Equal(t, 720, foodie.Eligibility.MinCreditScore)
	require.Len(t, foodie.WelcomeBenefits, 1)
	assert.InDelta(t, 4.5, foodie.CustomerSatisfactionScore, 0.001)

	assert.False(t, offers[1].IsActive)
}

func TestParseCatalogBareList(t *testing.T) {
	input := `- {id: fuel-saver, issuer: State Bank, currency: cashback, base_rate: 0.5}`

	offers, err := parseCatalog(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, offers, 1)
	assert.Equal(t, "fuel-saver", offers[0].ID)
	assert.True(t, offers[0].IsActive)
}

func TestParseCatalogErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{name: "empty", input: "", wantErr: "catalog is empty"},
		{name: "no offers", input: "offers: []", wantErr: "catalog has no offers"},
		{name: "scalar", input: "just text", wantErr: "catalog must be"},
		{name: "invalid yaml", input: "offers: [", wantErr: "failed to parse catalog"},
		{name: "invalid offer", input: "- {id: x, issuer: Y, currency: bitcoin}", wantErr: "offer 0 (line 1)"},
		{name: "wrong type", input: "- {id: x, issuer: Y, currency: points, base_rate: lots}", wantErr: "offer 0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseCatalog(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

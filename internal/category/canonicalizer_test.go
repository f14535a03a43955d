package category

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/cardwise/internal/common"
	"github.com/Veraticus/cardwise/internal/merchant"
	"github.com/Veraticus/cardwise/internal/model"
	"github.com/Veraticus/cardwise/internal/testutil"
)

func intp(i int) *int { return &i }

func fixtureTaxonomy() *model.Taxonomy {
	return model.NewTaxonomy(
		[]model.Category{
			{ID: 1, Name: "Dining & Food Delivery", Slug: "dining-food-delivery"},
			{ID: 3, Name: "Travel", Slug: "travel"},
			{ID: 9, Name: "Other", Slug: "other"},
		},
		[]model.SubCategory{
			{ID: 10, CategoryID: 1, Name: "Restaurants", Slug: "restaurants"},
			{ID: 11, CategoryID: 1, Name: "Quick Service & Fast Food", Slug: "quick-service-fast-food"},
			{ID: 30, CategoryID: 3, Name: "Flights", Slug: "flights"},
			{ID: 90, CategoryID: 9, Name: "Uncategorized", Slug: "uncategorized"},
		},
	)
}

func fixtureMCCs() []model.MCCCode {
	return []model.MCCCode{
		{Code: "5814", CategoryID: 1, SubCategoryID: intp(11), MerchantPatterns: []string{"MCDONALDS", "BURGER KING*"}},
		{Code: "4511", CategoryID: 3, SubCategoryID: intp(30), MerchantPatterns: []string{"DELTA AIR*"}},
		{Code: "5999", CategoryID: 77, MerchantPatterns: []string{"AMAZON"}},
		{Code: "5812", CategoryID: 1, SubCategoryID: intp(30)},
	}
}

func newFixtureCanonicalizer(t *testing.T) *Canonicalizer {
	t.Helper()
	c, err := NewCanonicalizer(fixtureTaxonomy(), fixtureMCCs())
	require.NoError(t, err)
	return c
}

func TestNewCanonicalizerRequiresCatchAll(t *testing.T) {
	tax := model.NewTaxonomy([]model.Category{{ID: 1, Name: "Travel", Slug: "travel"}}, nil)

	_, err := NewCanonicalizer(tax, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrCatchAllMissing)
	assert.True(t, common.IsFatal(err))

	_, err = NewCanonicalizer(nil, nil)
	assert.True(t, common.IsFatal(err))
}

func TestMap(t *testing.T) {
	c := newFixtureCanonicalizer(t)

	tests := []struct {
		name string
		req  CategoryRequest
		want Mapping
	}{
		{
			name: "exact label and sub-label",
			req:  CategoryRequest{Label: "dining & food delivery", SubLabel: "QUICK SERVICE & FAST FOOD"},
			want: Mapping{CategoryID: 1, SubCategoryID: intp(11), Confidence: ExactConfidence, IsExactMatch: true},
		},
		{
			name: "slug label",
			req:  CategoryRequest{Label: "travel", SubLabel: "flights"},
			want: Mapping{CategoryID: 3, SubCategoryID: intp(30), Confidence: ExactConfidence, IsExactMatch: true},
		},
		{
			name: "slugified label",
			req:  CategoryRequest{Label: "Dining / Food Delivery"},
			want: Mapping{CategoryID: 1, Confidence: ExactConfidence, IsExactMatch: true},
		},
		{
			name: "sub-label outside the category is dropped",
			req:  CategoryRequest{Label: "Dining & Food Delivery", SubLabel: "Flights"},
			want: Mapping{CategoryID: 1, Confidence: ExactConfidence, IsExactMatch: true},
		},
		{
			name: "label naming a subcategory",
			req:  CategoryRequest{Label: "Quick Service & Fast Food"},
			want: Mapping{CategoryID: 1, SubCategoryID: intp(11), Confidence: ExactConfidence, IsExactMatch: true},
		},
		{
			name: "direct merchant pattern",
			req:  CategoryRequest{Label: "Restaurants & Bars", Merchant: "McDonald's"},
			want: Mapping{CategoryID: 1, SubCategoryID: intp(11), Confidence: PatternConfidence},
		},
		{
			name: "wildcard pattern indexed without wildcard",
			req:  CategoryRequest{Merchant: "BURGER KING #4411"},
			want: Mapping{CategoryID: 1, SubCategoryID: intp(11), Confidence: PatternConfidence},
		},
		{
			name: "substring merchant overlap",
			req:  CategoryRequest{Merchant: "MCDONALDS ANYTOWN USA"},
			want: Mapping{CategoryID: 1, SubCategoryID: intp(11), Confidence: SubstringConfidence},
		},
		{
			name: "merchant contained in pattern",
			req:  CategoryRequest{Merchant: "DELTA"},
			want: Mapping{CategoryID: 3, SubCategoryID: intp(30), Confidence: SubstringConfidence},
		},
		{
			name: "mcc lookup",
			req:  CategoryRequest{Label: "Airlines", MCCCode: "4511"},
			want: Mapping{CategoryID: 3, SubCategoryID: intp(30), Confidence: MCCConfidence},
		},
		{
			name: "mcc with foreign subcategory keeps only the category",
			req:  CategoryRequest{MCCCode: "5812"},
			want: Mapping{CategoryID: 1, Confidence: MCCConfidence},
		},
		{
			name: "mcc outside taxonomy falls back",
			req:  CategoryRequest{MCCCode: "5999", Merchant: "AMAZON"},
			want: Mapping{CategoryID: 9, Confidence: CatchAllConfidence, FallbackUsed: true},
		},
		{
			name: "empty request falls back",
			req:  CategoryRequest{},
			want: Mapping{CategoryID: 9, Confidence: CatchAllConfidence, FallbackUsed: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Map(tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMapShortPatternNeedsWholeToken(t *testing.T) {
	mccs := append(fixtureMCCs(), model.MCCCode{Code: "4111", CategoryID: 3, SubCategoryID: intp(30), MerchantPatterns: []string{"BART"}})
	c, err := NewCanonicalizer(fixtureTaxonomy(), mccs)
	require.NoError(t, err)

	for _, name := range []string{"BARTLEBY BOOKS", "ART"} {
		got, err := c.Map(CategoryRequest{Merchant: name})
		require.NoError(t, err)
		assert.True(t, got.FallbackUsed, name)
	}

	got, err := c.Map(CategoryRequest{Merchant: "BART CLIPPER SFO"})
	require.NoError(t, err)
	assert.Equal(t, Mapping{CategoryID: 3, SubCategoryID: intp(30), Confidence: SubstringConfidence}, got)
}

func TestMapTotality(t *testing.T) {
	c := newFixtureCanonicalizer(t)
	tax := c.Taxonomy()

	labels := []string{"", "Travel", "dining-food-delivery", "Restaurants", "Groceries", "???", "other", "  "}
	subs := []string{"", "Flights", "Restaurants", "Nope"}
	codes := []string{"", "5814", "4511", "5999", "0000", "abc", "5812"}
	merchants := []string{"", "MCDONALDS", "DELTA AIR LINES", "AMAZON", "ZZ", "UNKNOWN SHOP"}

	for _, label := range labels {
		for _, sub := range subs {
			for _, code := range codes {
				for _, name := range merchants {
					m, err := c.Map(CategoryRequest{Label: label, SubLabel: sub, MCCCode: code, Merchant: name})
					require.NoError(t, err)

					_, ok := tax.Category(m.CategoryID)
					require.True(t, ok, "category %d not in taxonomy for %q/%q/%q/%q", m.CategoryID, label, sub, code, name)
					if m.SubCategoryID != nil {
						s, ok := tax.SubCategory(*m.SubCategoryID)
						require.True(t, ok)
						require.Equal(t, m.CategoryID, s.CategoryID)
					}
					require.Greater(t, m.Confidence, 0.0)
				}
			}
		}
	}
}

func TestValidateProposal(t *testing.T) {
	c := newFixtureCanonicalizer(t)

	check, err := c.ValidateProposal("Travel", "Flights", "4511", "INDIGO")
	require.NoError(t, err)
	assert.Equal(t, merchant.CategoryCheck{CategoryID: 3, SubCategoryID: intp(30), Confidence: ExactConfidence}, check)

	check, err = c.ValidateProposal("Fast food", "", "5814", "BLUE TOKAI")
	require.NoError(t, err)
	assert.Equal(t, 1, check.CategoryID)
	assert.InDelta(t, MCCConfidence, check.Confidence, 1e-9)
}

func TestBlendConfidence(t *testing.T) {
	assert.InDelta(t, 0.9386, BlendConfidence(0.98, 1.0), 1e-9)
	assert.InDelta(t, 0.95, BlendConfidence(1, 1), 1e-9)
	assert.InDelta(t, 0.114, BlendConfidence(0, 0.3), 1e-9)

	assert.False(t, NeedsReview(BlendConfidence(0.98, 1.0), 0.6))
	assert.True(t, NeedsReview(BlendConfidence(0.5, 0.3), 0.6))
}

func TestSeededFastFoodScenario(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ref := db.Reference()

	resolver := merchant.NewResolver(ref, merchant.Config{FuzzyThreshold: 0.8}, nil)
	ctx := context.Background()
	res := resolver.Resolve(ctx, "MCDONALD'S #12345 ANYTOWN USA")
	require.True(t, res.Resolved())
	assert.Equal(t, model.SourceFuzzyMatch, res.Source)
	assert.Equal(t, "5814", res.MCCCode)
	assert.InDelta(t, 0.95, res.Confidence, 1e-9)

	short := resolver.Resolve(ctx, "MCD 0042 SPRINGFIELD IL")
	assert.Equal(t, model.SourceFuzzyMatch, short.Source)
	assert.Equal(t, "5814", short.MCCCode)
	assert.InDelta(t, 0.95, short.Confidence, 1e-9)

	bare := resolver.Resolve(ctx, "mcd")
	assert.Equal(t, model.SourceDatabase, bare.Source)
	assert.Equal(t, "5814", bare.MCCCode)

	c, err := NewCanonicalizer(db.Taxonomy(), ref.MCCCodes)
	require.NoError(t, err)

	m, err := c.Map(CategoryRequest{MCCCode: res.MCCCode})
	require.NoError(t, err)
	assert.Equal(t, db.MustCategory("Dining & Food Delivery").ID, m.CategoryID)
	require.NotNil(t, m.SubCategoryID)
	assert.Equal(t, db.MustSubCategory("Quick Service & Fast Food").ID, *m.SubCategoryID)
	assert.InDelta(t, MCCConfidence, m.Confidence, 1e-9)
}

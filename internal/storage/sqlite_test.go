package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/Veraticus/cardwise/internal/common"
	"github.com/Veraticus/cardwise/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Helper function to create test storage.
func createTestStorage(t *testing.T) (*SQLiteStorage, func()) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	store, err := NewSQLiteStorage(dbPath)
	require.NoError(t, err)

	if err := store.Migrate(context.Background()); err != nil {
		_ = store.Close()
		t.Fatalf("Failed to migrate: %v", err)
	}

	return store, func() { _ = store.Close() }
}

func createTestSession(t *testing.T, store *SQLiteStorage, id string) {
	t.Helper()
	require.NoError(t, store.CreateSession(context.Background(), &model.Session{ID: id, Source: "test"}))
}

func createTestTransactions(sessionID string, amounts ...float64) []model.Transaction {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	txns := make([]model.Transaction, len(amounts))
	for i, amount := range amounts {
		txns[i] = model.Transaction{
			SessionID:      sessionID,
			Date:           base.AddDate(0, 0, i),
			RawDescription: fmt.Sprintf("MERCHANT %d", i+1),
			Amount:         amount,
		}
		txns[i].ID = txns[i].GenerateID()
	}
	return txns
}

func TestMigrate_RefusesNewerSchema(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	_, err := store.db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", ExpectedSchemaVersion+1))
	require.NoError(t, err)

	err = store.Migrate(ctx)
	require.Error(t, err)
	assert.True(t, common.IsFatal(err))
	assert.Contains(t, err.Error(), "newer than supported")
}

func TestMigrate_SeedsReferenceData(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	// Running twice is a no-op.
	require.NoError(t, store.Migrate(ctx))
	version, err := store.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, ExpectedSchemaVersion, version)

	categories, err := store.GetCategories(ctx)
	require.NoError(t, err)
	require.Len(t, categories, len(seedTaxonomy))

	taxonomy := model.NewTaxonomy(categories, nil)
	catchAll, ok := taxonomy.CatchAll()
	require.True(t, ok)
	assert.Equal(t, "Other", catchAll.Name)

	fastFood, err := store.GetMCCCode(ctx, "5814")
	require.NoError(t, err)
	dining, ok := taxonomy.Category(fastFood.CategoryID)
	require.True(t, ok)
	assert.Equal(t, "Dining & Food Delivery", dining.Name)
	assert.Contains(t, fastFood.MerchantPatterns, "MCDONALDS")

	subs, err := store.GetSubCategories(ctx)
	require.NoError(t, err)
	full := model.NewTaxonomy(categories, subs)
	require.NotNil(t, fastFood.SubCategoryID)
	sub, ok := full.SubCategory(*fastFood.SubCategoryID)
	require.True(t, ok)
	assert.Equal(t, "Quick Service & Fast Food", sub.Name)

	offers, err := store.ListOffers(ctx, false)
	require.NoError(t, err)
	assert.Len(t, offers, len(StarterOffers()))
	active, err := store.ListOffers(ctx, true)
	require.NoError(t, err)
	assert.Len(t, active, len(StarterOffers())-1)
}

func TestNewSQLiteStorage_InMemory(t *testing.T) {
	store, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	require.NoError(t, store.Migrate(context.Background()))
	_, err = NewSQLiteStorage("  ")
	assert.ErrorIs(t, err, ErrEmptyString)
}

func TestTransactions_SaveAndResolve(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()
	createTestSession(t, store, "s1")

	txns := createTestTransactions("s1", 120.50, -40, 9.99)
	require.NoError(t, store.SaveTransactions(ctx, txns))
	// Saving the same rows again is ignored.
	require.NoError(t, store.SaveTransactions(ctx, txns))

	got, err := store.GetSessionTransactions(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, model.SourceUnresolved, got[0].ResolutionSource)
	assert.False(t, got[0].IsResolved())
	assert.InDelta(t, -40, got[1].Amount, 1e-9)

	code, catID := "5814", 1
	resolved := got[0]
	resolved.Merchant = "MCDONALDS"
	resolved.MCCCode = &code
	resolved.CategoryID = &catID
	resolved.ResolutionConfidence = 0.83
	resolved.ResolutionSource = model.SourceFuzzyMatch
	require.NoError(t, store.UpdateTransactionResolution(ctx, &resolved))

	got, err = store.GetSessionTransactions(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, got[0].IsResolved())
	assert.Equal(t, "5814", *got[0].MCCCode)
	assert.Equal(t, model.SourceFuzzyMatch, got[0].ResolutionSource)
	assert.InDelta(t, 0.83, got[0].ResolutionConfidence, 1e-9)
}

func TestTransactions_Validation(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	tests := []struct {
		mutate  func(*model.Transaction)
		wantErr error
		name    string
	}{
		{name: "missing id", mutate: func(t *model.Transaction) { t.ID = "" }, wantErr: ErrInvalidTransaction},
		{name: "missing session", mutate: func(t *model.Transaction) { t.SessionID = "" }, wantErr: ErrInvalidTransaction},
		{name: "missing description", mutate: func(t *model.Transaction) { t.RawDescription = " " }, wantErr: ErrInvalidTransaction},
		{name: "mcc without category", mutate: func(t *model.Transaction) { c := "5812"; t.MCCCode = &c }, wantErr: ErrInvalidTransaction},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txns := createTestTransactions("s1", 10)
			tt.mutate(&txns[0])
			assert.ErrorIs(t, store.SaveTransactions(ctx, txns), tt.wantErr)
		})
	}

	assert.ErrorIs(t, store.SaveTransactions(ctx, []model.Transaction{}), ErrEmptySlice)
	assert.ErrorIs(t, store.SaveTransactions(ctx, nil), ErrNilParameter)
}

func TestSessions(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	createTestSession(t, store, "s1")
	session, err := store.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, model.SessionUploaded, session.Status)

	require.NoError(t, store.UpdateSessionStatus(ctx, "s1", model.SessionCompleted))
	session, err = store.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, model.SessionCompleted, session.Status)

	_, err = store.GetSession(ctx, "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.ErrorIs(t, store.UpdateSessionStatus(ctx, "missing", model.SessionFailed), common.ErrNotFound)
}

func TestMerchantAliases_UpsertKeepsMaxConfidence(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	alias := &model.MerchantAlias{MerchantName: "blue bottle", MCCCode: "5814", Aliases: []string{"BLUE BOTTLE COFFEE"}, Confidence: 0.82}
	require.NoError(t, store.UpsertMerchantAlias(ctx, alias))
	require.NoError(t, store.UpsertMerchantAlias(ctx, &model.MerchantAlias{
		MerchantName: "BLUE BOTTLE", MCCCode: "5812", Aliases: []string{"BBC"}, Confidence: 0.7,
	}))
	// Identical input again only bumps usage.
	require.NoError(t, store.UpsertMerchantAlias(ctx, alias))

	aliases, err := store.GetMerchantAliases(ctx)
	require.NoError(t, err)

	var found *model.MerchantAlias
	for i := range aliases {
		if aliases[i].MerchantName == "BLUE BOTTLE" {
			found = &aliases[i]
		}
	}
	require.NotNil(t, found)
	assert.InDelta(t, 0.82, found.Confidence, 1e-9)
	assert.Equal(t, "5814", found.MCCCode)
	assert.Equal(t, 3, found.UsageCount)
	assert.ElementsMatch(t, []string{"BLUE BOTTLE COFFEE", "BBC"}, found.Aliases)

	err = store.UpsertMerchantAlias(ctx, &model.MerchantAlias{MerchantName: "X", MCCCode: "58", Confidence: 0.9})
	assert.ErrorIs(t, err, ErrInvalidAlias)
}

func TestMCC_AppendMerchantPattern(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, store.AppendMerchantPattern(ctx, "5814", "BLUE BOTTLE"))
	require.NoError(t, store.AppendMerchantPattern(ctx, "5814", "blue bottle"))

	mcc, err := store.GetMCCCode(ctx, "5814")
	require.NoError(t, err)
	count := 0
	for _, p := range mcc.MerchantPatterns {
		if p == "BLUE BOTTLE" || p == "blue bottle" {
			count++
		}
	}
	assert.Equal(t, 1, count)

	assert.ErrorIs(t, store.AppendMerchantPattern(ctx, "0000", "X"), common.ErrNotFound)

	err = store.SaveMCCCode(ctx, &model.MCCCode{Code: "12", CategoryID: 1})
	assert.ErrorIs(t, err, ErrInvalidMCC)
}

func TestOffers_ValidatedAtBoundary(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	offer := StarterOffers()[0]
	offer.ID = "custom"
	offer.AcceleratedRewards[0].Cap.Period = ""
	require.NoError(t, store.SaveOffer(ctx, &offer))

	got, err := store.GetOffer(ctx, "custom")
	require.NoError(t, err)
	assert.Equal(t, model.CapMonthly, got.AcceleratedRewards[0].Cap.Period)

	bad := StarterOffers()[0]
	bad.RewardCurrency = "bitcoin"
	assert.ErrorIs(t, store.SaveOffer(ctx, &bad), ErrInvalidOffer)

	_, err = store.GetOffer(ctx, "nope")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestImportOffers(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	starter := StarterOffers()
	catalog := []model.Offer{starter[0], starter[1]}
	catalog[1].Fees.AnnualFee = 0

	deactivated, err := store.ImportOffers(ctx, catalog, true)
	require.NoError(t, err)
	// The three other active starter offers.
	assert.Equal(t, 3, deactivated)

	active, err := store.ListOffers(ctx, true)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "everyday-cashback", active[0].ID)
	assert.Equal(t, "foodie-rewards", active[1].ID)
	assert.Zero(t, active[1].Fees.AnnualFee)

	all, err := store.ListOffers(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, len(starter))
}

func TestImportOffers_RejectsWholeCatalog(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	good := StarterOffers()[0]
	good.ID = "new-card"
	bad := StarterOffers()[1]
	bad.BaseRewardRate = -1

	_, err := store.ImportOffers(ctx, []model.Offer{good, bad}, false)
	require.ErrorIs(t, err, ErrInvalidOffer)

	_, err = store.GetOffer(ctx, "new-card")
	assert.ErrorIs(t, err, common.ErrNotFound)

	dup := StarterOffers()[0]
	_, err = store.ImportOffers(ctx, []model.Offer{dup, dup}, false)
	assert.ErrorIs(t, err, ErrInvalidOffer)
}

func TestRecommendations_Replace(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()
	createTestSession(t, store, "s1")

	first := []model.Recommendation{
		{CardID: "a", CardName: "A", Rank: 1, Score: 80, Pros: []string{"No annual fee"}},
		{CardID: "b", CardName: "B", Rank: 2, Score: 60},
	}
	require.NoError(t, store.ReplaceRecommendations(ctx, "s1", first))

	second := []model.Recommendation{
		{CardID: "c", CardName: "C", Rank: 1, Score: 70, CategoryBreakdown: []model.CategoryEarnings{{Category: "Groceries", Earnings: 12.5}}},
	}
	require.NoError(t, store.ReplaceRecommendations(ctx, "s1", second))

	got, err := store.GetRecommendations(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "c", got[0].CardID)
	assert.Empty(t, got[0].Pros)
	require.Len(t, got[0].CategoryBreakdown, 1)
	assert.InDelta(t, 12.5, got[0].CategoryBreakdown[0].Earnings, 1e-9)

	gap := []model.Recommendation{{CardID: "a", Rank: 1}, {CardID: "b", Rank: 3}}
	assert.ErrorIs(t, store.ReplaceRecommendations(ctx, "s1", gap), ErrInvalidRanks)
	got, err = store.GetRecommendations(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestSettings(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	_, ok, err := store.GetSetting(ctx, "scoring.min_score")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.SetSetting(ctx, "scoring.min_score", "50"))
	require.NoError(t, store.SetSetting(ctx, "scoring.min_score", "55"))
	value, ok, err := store.GetSetting(ctx, "scoring.min_score")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "55", value)
}

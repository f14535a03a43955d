package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/cardwise/internal/model"
)

func TestSessionBuilder(t *testing.T) {
	session, txns := NewSession("s1").
		Spend("STARBUCKS #1", 250).
		Credit("REFUND", 100).
		Resolved("AMAZON", 900, "5999", 5).
		Build()

	assert.Equal(t, "s1", session.ID)
	assert.Equal(t, model.SessionUploaded, session.Status)
	require.Len(t, txns, 3)

	assert.InDelta(t, -100, txns[1].Amount, 1e-9)
	assert.True(t, txns[1].Date.After(txns[0].Date))
	assert.NotEqual(t, txns[0].ID, txns[1].ID)
	assert.False(t, txns[0].IsResolved())
	assert.True(t, txns[2].IsResolved())
}

func TestSetupTestDB(t *testing.T) {
	db := SetupTestDB(t)

	dining := db.MustCategory("Dining & Food Delivery")
	qsr := db.MustSubCategory("Quick Service & Fast Food")
	assert.Equal(t, dining.ID, qsr.CategoryID)

	_, ok := db.Taxonomy().CatchAll()
	assert.True(t, ok)

	ref := db.Reference()
	assert.NotEmpty(t, ref.MCCCodes)
	assert.NotEmpty(t, ref.Aliases)

	_, txns := db.SeedSession(NewSession("s1").Spend("SHELL", 120))
	stored, err := db.Storage.GetSessionTransactions(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, txns[0].ID, stored[0].ID)
}

// Package testutil provides shared test fixtures: a migrated in-memory store
// seeded with the reference taxonomy, plus builders for sessions and
// statement lines.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/Veraticus/cardwise/internal/merchant"
	"github.com/Veraticus/cardwise/internal/model"
	"github.com/Veraticus/cardwise/internal/storage"
)

// TestDB represents a test database with associated test utilities.
type TestDB struct {
	Storage *storage.SQLiteStorage
	t       *testing.T
}

// TestDBOptions provides configuration options for test database setup.
type TestDBOptions struct {
	CustomSetup    func(context.Context, *storage.SQLiteStorage) error
	Now            func() time.Time
	SkipMigrations bool
}

// SetupTestDB creates a new in-memory test database with the seeded
// taxonomy, MCC table, starter aliases, and demo offers.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()
	return SetupTestDBWithOptions(t, TestDBOptions{})
}

// SetupTestDBWithOptions creates a test database with custom options.
func SetupTestDBWithOptions(t *testing.T, opts TestDBOptions) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	if opts.Now != nil {
		store.SetClock(opts.Now)
	}

	ctx := context.Background()
	if !opts.SkipMigrations {
		if err := store.Migrate(ctx); err != nil {
			t.Fatalf("failed to run migrations: %v", err)
		}
	}

	if opts.CustomSetup != nil {
		if err := opts.CustomSetup(ctx, store); err != nil {
			t.Fatalf("custom setup failed: %v", err)
		}
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return &TestDB{Storage: store, t: t}
}

// Taxonomy loads the seeded taxonomy or fails the test.
func (db *TestDB) Taxonomy() *model.Taxonomy {
	db.t.Helper()
	ctx := context.Background()
	cats, err := db.Storage.GetCategories(ctx)
	if err != nil {
		db.t.Fatalf("failed to load categories: %v", err)
	}
	subs, err := db.Storage.GetSubCategories(ctx)
	if err != nil {
		db.t.Fatalf("failed to load subcategories: %v", err)
	}
	return model.NewTaxonomy(cats, subs)
}

// Reference loads the resolver reference data or fails the test.
func (db *TestDB) Reference() merchant.ReferenceData {
	db.t.Helper()
	ctx := context.Background()
	mccs, err := db.Storage.GetMCCCodes(ctx)
	if err != nil {
		db.t.Fatalf("failed to load mcc codes: %v", err)
	}
	aliases, err := db.Storage.GetMerchantAliases(ctx)
	if err != nil {
		db.t.Fatalf("failed to load aliases: %v", err)
	}
	return merchant.ReferenceData{MCCCodes: mccs, Aliases: aliases}
}

// MustCategory returns the seeded category with the given name.
func (db *TestDB) MustCategory(name string) model.Category {
	db.t.Helper()
	for _, c := range db.Taxonomy().Categories {
		if c.Name == name {
			return c
		}
	}
	db.t.Fatalf("category %q not seeded", name)
	return model.Category{}
}

// MustSubCategory returns the seeded subcategory with the given name.
func (db *TestDB) MustSubCategory(name string) model.SubCategory {
	db.t.Helper()
	for _, s := range db.Taxonomy().Subs {
		if s.Name == name {
			return s
		}
	}
	db.t.Fatalf("subcategory %q not seeded", name)
	return model.SubCategory{}
}

// SeedSession stores a session and its transactions.
func (db *TestDB) SeedSession(b *SessionBuilder) (*model.Session, []model.Transaction) {
	db.t.Helper()
	ctx := context.Background()
	session, txns := b.Build()
	if err := db.Storage.CreateSession(ctx, session); err != nil {
		db.t.Fatalf("failed to create session: %v", err)
	}
	if len(txns) > 0 {
		if err := db.Storage.SaveTransactions(ctx, txns); err != nil {
			db.t.Fatalf("failed to save transactions: %v", err)
		}
	}
	return session, txns
}

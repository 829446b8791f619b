// Package testutil provides test fixtures and database helpers for tollkeeper.
package testutil

import (
	"context"
	"testing"

	"github.com/Veraticus/tollkeeper/internal/model"
	"github.com/Veraticus/tollkeeper/internal/storage"
)

// TestDB represents a migrated in-memory test database.
type TestDB struct {
	Storage *storage.SQLiteStorage
	t       *testing.T
}

// SetupTestDB creates a new in-memory test database seeded with the standard
// pricing catalog. It automatically handles migrations and cleanup.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	for _, schedule := range Schedules() {
		if err := store.SavePricingSchedule(ctx, &schedule); err != nil {
			t.Fatalf("failed to seed pricing schedule: %v", err)
		}
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return &TestDB{Storage: store, t: t}
}

// Transactions saves the given transactions or fails the test.
func (db *TestDB) Transactions(txns ...model.Transaction) *TestDB {
	db.t.Helper()
	if err := db.Storage.SaveTransactions(context.Background(), txns); err != nil {
		db.t.Fatalf("failed to seed transactions: %v", err)
	}
	return db
}

// Reseller saves a reseller or fails the test.
func (db *TestDB) Reseller(name string, percent float64) *TestDB {
	db.t.Helper()
	if err := db.Storage.SaveReseller(context.Background(), &model.Reseller{Name: name, DiscountPercent: percent}); err != nil {
		db.t.Fatalf("failed to seed reseller %q: %v", name, err)
	}
	return db
}

// Adjustment saves an explicit discount adjustment or fails the test.
func (db *TestDB) Adjustment(transactionID string, amount float64) *TestDB {
	db.t.Helper()
	adj := &model.DiscountAdjustment{TransactionID: transactionID, Amount: amount}
	if err := db.Storage.SaveDiscountAdjustment(context.Background(), adj); err != nil {
		db.t.Fatalf("failed to seed adjustment for %s: %v", transactionID, err)
	}
	return db
}

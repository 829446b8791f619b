package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema: transactions and pricing catalog",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`CREATE TABLE IF NOT EXISTS transactions (
					id TEXT PRIMARY KEY,
					version INTEGER NOT NULL DEFAULT 1,
					hash TEXT NOT NULL,
					entitlement_id TEXT NOT NULL,
					addon_key TEXT NOT NULL,
					parent_product TEXT,
					sale_type TEXT NOT NULL,
					sale_date TEXT NOT NULL,
					maintenance_start TEXT NOT NULL,
					maintenance_end TEXT NOT NULL,
					hosting TEXT NOT NULL,
					license_type TEXT NOT NULL,
					tier TEXT NOT NULL,
					billing_period TEXT NOT NULL,
					vendor_amount REAL NOT NULL,
					purchase_price REAL NOT NULL,
					declared_discounts TEXT,
					country TEXT,
					partner_name TEXT,
					sandbox BOOLEAN NOT NULL DEFAULT 0,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_transactions_entitlement ON transactions(entitlement_id, sale_date)`,
				`CREATE INDEX idx_transactions_sale_date ON transactions(sale_date)`,

				`CREATE TABLE IF NOT EXISTS pricing_schedules (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					addon_key TEXT NOT NULL,
					hosting TEXT NOT NULL,
					start_date TEXT,
					end_date TEXT
				)`,
				`CREATE INDEX idx_pricing_schedules_product ON pricing_schedules(addon_key, hosting)`,
				`CREATE TABLE IF NOT EXISTS pricing_tiers (
					schedule_id INTEGER NOT NULL,
					user_tier INTEGER NOT NULL,
					cost REAL NOT NULL,
					PRIMARY KEY (schedule_id, user_tier),
					FOREIGN KEY (schedule_id) REFERENCES pricing_schedules(id) ON DELETE CASCADE
				)`,
			)
		},
	},
	{
		Version:     2,
		Description: "Add resellers and explicit discount adjustments",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`CREATE TABLE IF NOT EXISTS resellers (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					name TEXT NOT NULL UNIQUE COLLATE NOCASE,
					discount_percent REAL NOT NULL DEFAULT 0
				)`,
				`CREATE TABLE IF NOT EXISTS discount_adjustments (
					transaction_id TEXT PRIMARY KEY,
					amount REAL NOT NULL,
					reason TEXT
				)`,
			)
		},
	},
	{
		Version:     3,
		Description: "Add reconciliation verdicts and validation runs",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`CREATE TABLE IF NOT EXISTS reconciliations (
					transaction_id TEXT PRIMARY KEY,
					transaction_version INTEGER NOT NULL,
					reconciled BOOLEAN NOT NULL,
					automatic BOOLEAN NOT NULL,
					actual_vendor_amount REAL NOT NULL,
					expected_vendor_amount REAL NOT NULL,
					notes TEXT,
					run_id TEXT,
					updated_at DATETIME NOT NULL
				)`,
				`CREATE INDEX idx_reconciliations_reconciled ON reconciliations(reconciled)`,
				`CREATE TABLE IF NOT EXISTS validation_runs (
					id TEXT PRIMARY KEY,
					since TEXT NOT NULL,
					started_at DATETIME NOT NULL,
					finished_at DATETIME,
					processed INTEGER NOT NULL DEFAULT 0,
					skipped INTEGER NOT NULL DEFAULT 0,
					failed INTEGER NOT NULL DEFAULT 0,
					reconciled INTEGER NOT NULL DEFAULT 0
				)`,
			)
		},
	},
}

func execAll(tx *sql.Tx, queries ...string) error {
	for _, query := range queries {
		if _, err := tx.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query '%s': %w", query, err)
		}
	}
	return nil
}

// Migrate runs all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}

// SchemaVersion returns the schema version recorded in the database.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}

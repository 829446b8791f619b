package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/tollkeeper/internal/common"
	"github.com/Veraticus/tollkeeper/internal/model"
)

const transactionColumns = `id, version, entitlement_id, addon_key, parent_product, sale_type,
	sale_date, maintenance_start, maintenance_end, hosting, license_type, tier,
	billing_period, vendor_amount, purchase_price, declared_discounts, country,
	partner_name, sandbox`

// SaveTransactions upserts transactions. A record whose pricing fields changed since
// it was last saved gets its version bumped so earlier verdicts stop being current.
func (s *SQLiteStorage) SaveTransactions(ctx context.Context, transactions []model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTransactions(transactions); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", classifyError(err))
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.saveTransactionsTx(ctx, tx, transactions); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transactions: %w", classifyError(err))
	}
	return nil
}

func (s *SQLiteStorage) saveTransactionsTx(ctx context.Context, tx *sql.Tx, transactions []model.Transaction) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO transactions (
			id, version, hash, entitlement_id, addon_key, parent_product, sale_type,
			sale_date, maintenance_start, maintenance_end, hosting, license_type, tier,
			billing_period, vendor_amount, purchase_price, declared_discounts, country,
			partner_name, sandbox, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			version = excluded.version,
			hash = excluded.hash,
			entitlement_id = excluded.entitlement_id,
			addon_key = excluded.addon_key,
			parent_product = excluded.parent_product,
			sale_type = excluded.sale_type,
			sale_date = excluded.sale_date,
			maintenance_start = excluded.maintenance_start,
			maintenance_end = excluded.maintenance_end,
			hosting = excluded.hosting,
			license_type = excluded.license_type,
			tier = excluded.tier,
			billing_period = excluded.billing_period,
			vendor_amount = excluded.vendor_amount,
			purchase_price = excluded.purchase_price,
			declared_discounts = excluded.declared_discounts,
			country = excluded.country,
			partner_name = excluded.partner_name,
			sandbox = excluded.sandbox,
			updated_at = CURRENT_TIMESTAMP
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	inserted, updated, unchanged := 0, 0, 0
	for i := range transactions {
		txn := transactions[i]
		hash := txn.GenerateHash()

		var existingVersion int
		var existingHash string
		err := tx.QueryRowContext(ctx,
			"SELECT version, hash FROM transactions WHERE id = ?", txn.ID,
		).Scan(&existingVersion, &existingHash)

		version := max(txn.Version, 1)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			inserted++
		case err != nil:
			return fmt.Errorf("failed to look up transaction %s: %w", txn.ID, classifyError(err))
		case existingHash == hash:
			unchanged++
			continue
		default:
			version = max(txn.Version, existingVersion+1)
			updated++
		}

		discounts, err := json.Marshal(txn.DeclaredDiscounts)
		if err != nil {
			return fmt.Errorf("failed to encode discounts for %s: %w", txn.ID, err)
		}

		_, err = stmt.ExecContext(ctx,
			txn.ID,
			version,
			hash,
			txn.EntitlementID,
			txn.AddonKey,
			txn.ParentProduct,
			string(txn.SaleType),
			formatDate(txn.SaleDate),
			formatDate(txn.MaintenanceStart),
			formatDate(txn.MaintenanceEnd),
			string(txn.Hosting),
			string(txn.LicenseType),
			txn.Tier,
			string(txn.BillingPeriod),
			txn.VendorAmount,
			txn.PurchasePrice,
			string(discounts),
			txn.Country,
			txn.PartnerName,
			txn.Sandbox,
		)
		if err != nil {
			return fmt.Errorf("failed to save transaction %s: %w", txn.ID, classifyError(err))
		}
	}

	slog.Debug("Saved transactions",
		"inserted", inserted,
		"updated", updated,
		"unchanged", unchanged)

	return nil
}

// GetTransaction retrieves a single transaction by ID.
func (s *SQLiteStorage) GetTransaction(ctx context.Context, id string) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		"SELECT "+transactionColumns+" FROM transactions WHERE id = ?", id)
	txn, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transaction %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

// TransactionsForEntitlement returns every transaction of an entitlement, newest sale first.
func (s *SQLiteStorage) TransactionsForEntitlement(ctx context.Context, entitlementID string) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(entitlementID, "entitlementID"); err != nil {
		return nil, err
	}

	return s.queryTransactions(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE entitlement_id = ?
		ORDER BY sale_date DESC, id DESC
	`, entitlementID)
}

// TransactionsSince returns transactions sold on or after since, oldest sale first.
func (s *SQLiteStorage) TransactionsSince(ctx context.Context, since time.Time) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	return s.queryTransactions(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE sale_date >= ?
		ORDER BY sale_date ASC, id ASC
	`, formatDate(since))
}

func (s *SQLiteStorage) queryTransactions(ctx context.Context, query string, args ...any) ([]model.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", classifyError(err))
	}
	defer func() { _ = rows.Close() }()

	var transactions []model.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return transactions, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (model.Transaction, error) {
	var txn model.Transaction
	var saleType, hosting, licenseType, billing string
	var saleDate, start, end string
	var parent, discounts, country, partner sql.NullString

	err := row.Scan(
		&txn.ID,
		&txn.Version,
		&txn.EntitlementID,
		&txn.AddonKey,
		&parent,
		&saleType,
		&saleDate,
		&start,
		&end,
		&hosting,
		&licenseType,
		&txn.Tier,
		&billing,
		&txn.VendorAmount,
		&txn.PurchasePrice,
		&discounts,
		&country,
		&partner,
		&txn.Sandbox,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return txn, err
		}
		return txn, fmt.Errorf("failed to scan transaction: %w", err)
	}

	txn.SaleType = model.SaleType(saleType)
	txn.Hosting = model.Hosting(hosting)
	txn.LicenseType = model.LicenseType(licenseType)
	txn.BillingPeriod = model.BillingPeriod(billing)
	txn.ParentProduct = parent.String
	txn.Country = country.String
	txn.PartnerName = partner.String

	if txn.SaleDate, err = parseDate(saleDate); err != nil {
		return txn, err
	}
	if txn.MaintenanceStart, err = parseDate(start); err != nil {
		return txn, err
	}
	if txn.MaintenanceEnd, err = parseDate(end); err != nil {
		return txn, err
	}

	if discounts.Valid && discounts.String != "" && discounts.String != "null" {
		if err := json.Unmarshal([]byte(discounts.String), &txn.DeclaredDiscounts); err != nil {
			return txn, fmt.Errorf("%w: declared discounts of %s: %v", common.ErrDatabaseCorrupted, txn.ID, err)
		}
	}

	return txn, nil
}

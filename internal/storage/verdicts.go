package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Veraticus/tollkeeper/internal/common"
	"github.com/Veraticus/tollkeeper/internal/model"
	"github.com/Veraticus/tollkeeper/internal/service"
)

const verdictColumns = `transaction_id, transaction_version, reconciled, automatic,
	actual_vendor_amount, expected_vendor_amount, notes, run_id, updated_at`

// GetVerdict returns the stored verdict for a transaction.
func (s *SQLiteStorage) GetVerdict(ctx context.Context, transactionID string) (*model.Verdict, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(transactionID, "transactionID"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		"SELECT "+verdictColumns+" FROM reconciliations WHERE transaction_id = ?", transactionID)
	verdict, err := scanVerdict(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("verdict for %s: %w", transactionID, common.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &verdict, nil
}

// SaveVerdict stores a verdict. Saving again for the same transaction version is a
// no-op, so an interrupted run can be repeated safely.
func (s *SQLiteStorage) SaveVerdict(ctx context.Context, verdict *model.Verdict) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateVerdict(verdict); err != nil {
		return err
	}

	notes, err := json.Marshal(verdict.Notes)
	if err != nil {
		return fmt.Errorf("failed to encode notes: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO reconciliations (`+verdictColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(transaction_id) DO UPDATE SET
			transaction_version = excluded.transaction_version,
			reconciled = excluded.reconciled,
			automatic = excluded.automatic,
			actual_vendor_amount = excluded.actual_vendor_amount,
			expected_vendor_amount = excluded.expected_vendor_amount,
			notes = excluded.notes,
			run_id = excluded.run_id,
			updated_at = excluded.updated_at
		WHERE reconciliations.transaction_version <> excluded.transaction_version
	`,
		verdict.TransactionID,
		verdict.TransactionVersion,
		verdict.Reconciled,
		verdict.Automatic,
		verdict.ActualVendorAmount,
		verdict.ExpectedVendorAmount,
		string(notes),
		verdict.RunID,
		verdict.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save verdict for %s: %w", verdict.TransactionID, classifyError(err))
	}
	return nil
}

// ListVerdicts returns verdicts, most recently updated first.
func (s *SQLiteStorage) ListVerdicts(ctx context.Context, filter service.VerdictFilter) ([]model.Verdict, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := "SELECT " + verdictColumns + " FROM reconciliations"
	var args []any
	if filter.UnreconciledOnly {
		query += " WHERE reconciled = 0"
	}
	query += " ORDER BY updated_at DESC, transaction_id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query verdicts: %w", classifyError(err))
	}
	defer func() { _ = rows.Close() }()

	var verdicts []model.Verdict
	for rows.Next() {
		v, err := scanVerdict(rows)
		if err != nil {
			return nil, err
		}
		verdicts = append(verdicts, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating verdicts: %w", err)
	}
	return verdicts, nil
}

func scanVerdict(row rowScanner) (model.Verdict, error) {
	var v model.Verdict
	var notes, runID sql.NullString

	err := row.Scan(
		&v.TransactionID,
		&v.TransactionVersion,
		&v.Reconciled,
		&v.Automatic,
		&v.ActualVendorAmount,
		&v.ExpectedVendorAmount,
		&notes,
		&runID,
		&v.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return v, err
		}
		return v, fmt.Errorf("failed to scan verdict: %w", err)
	}

	v.RunID = runID.String
	if notes.Valid && notes.String != "" && notes.String != "null" {
		if err := json.Unmarshal([]byte(notes.String), &v.Notes); err != nil {
			return v, fmt.Errorf("%w: notes of %s: %v", common.ErrDatabaseCorrupted, v.TransactionID, err)
		}
	}
	return v, nil
}

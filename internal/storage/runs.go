package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Veraticus/tollkeeper/internal/common"
	"github.com/Veraticus/tollkeeper/internal/model"
)

// SaveRun records a validation run, replacing an earlier record with the same ID.
func (s *SQLiteStorage) SaveRun(ctx context.Context, run *model.ValidationRun) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("%w: run", ErrNilParameter)
	}
	if err := validateString(run.ID, "run.ID"); err != nil {
		return err
	}

	var finished any
	if !run.FinishedAt.IsZero() {
		finished = run.FinishedAt.UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO validation_runs (
			id, since, started_at, finished_at, processed, skipped, failed, reconciled
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		formatDate(run.Since),
		run.StartedAt.UTC(),
		finished,
		run.Processed,
		run.Skipped,
		run.Failed,
		run.Reconciled,
	)
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", run.ID, classifyError(err))
	}
	return nil
}

// GetLatestRun returns the most recently started validation run.
func (s *SQLiteStorage) GetLatestRun(ctx context.Context) (*model.ValidationRun, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	var run model.ValidationRun
	var since string
	var finished sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT id, since, started_at, finished_at, processed, skipped, failed, reconciled
		FROM validation_runs
		ORDER BY started_at DESC
		LIMIT 1
	`).Scan(
		&run.ID,
		&since,
		&run.StartedAt,
		&finished,
		&run.Processed,
		&run.Skipped,
		&run.Failed,
		&run.Reconciled,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("validation run: %w", common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest run: %w", classifyError(err))
	}

	if run.Since, err = parseDate(since); err != nil {
		return nil, err
	}
	if finished.Valid {
		run.FinishedAt = finished.Time
	}
	return &run, nil
}

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Veraticus/tollkeeper/internal/model"
)

// SavePricingSchedule stores a schedule and replaces its tiers. A schedule with a
// zero ID is matched to an existing one with the same product and window, or
// inserted, and receives its ID.
func (s *SQLiteStorage) SavePricingSchedule(ctx context.Context, schedule *model.PricingSchedule) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateSchedule(schedule); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", classifyError(err))
	}
	defer func() { _ = tx.Rollback() }()

	if schedule.ID == 0 {
		err := tx.QueryRowContext(ctx, `
			SELECT id FROM pricing_schedules
			WHERE addon_key = ? AND hosting = ? AND start_date IS ? AND end_date IS ?
		`, schedule.AddonKey, string(schedule.Hosting),
			formatOptionalDate(schedule.StartDate), formatOptionalDate(schedule.EndDate),
		).Scan(&schedule.ID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("failed to look up pricing schedule: %w", classifyError(err))
		}
	}

	if schedule.ID == 0 {
		result, err := tx.ExecContext(ctx, `
			INSERT INTO pricing_schedules (addon_key, hosting, start_date, end_date)
			VALUES (?, ?, ?, ?)
		`, schedule.AddonKey, string(schedule.Hosting),
			formatOptionalDate(schedule.StartDate), formatOptionalDate(schedule.EndDate))
		if err != nil {
			return fmt.Errorf("failed to insert pricing schedule: %w", classifyError(err))
		}
		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get schedule ID: %w", err)
		}
		schedule.ID = id
	} else {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO pricing_schedules (id, addon_key, hosting, start_date, end_date)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				addon_key = excluded.addon_key,
				hosting = excluded.hosting,
				start_date = excluded.start_date,
				end_date = excluded.end_date
		`, schedule.ID, schedule.AddonKey, string(schedule.Hosting),
			formatOptionalDate(schedule.StartDate), formatOptionalDate(schedule.EndDate))
		if err != nil {
			return fmt.Errorf("failed to save pricing schedule %d: %w", schedule.ID, classifyError(err))
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM pricing_tiers WHERE schedule_id = ?", schedule.ID); err != nil {
			return fmt.Errorf("failed to clear tiers of schedule %d: %w", schedule.ID, classifyError(err))
		}
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO pricing_tiers (schedule_id, user_tier, cost) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, tier := range schedule.Tiers {
		if _, err := stmt.ExecContext(ctx, schedule.ID, tier.UserTier, tier.Cost); err != nil {
			return fmt.Errorf("failed to save tier %d of schedule %d: %w", tier.UserTier, schedule.ID, classifyError(err))
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit pricing schedule: %w", classifyError(err))
	}
	return nil
}

// PricingSchedules returns every schedule for a product and hosting type with its tiers.
func (s *SQLiteStorage) PricingSchedules(ctx context.Context, addonKey string, hosting model.Hosting) ([]model.PricingSchedule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(addonKey, "addonKey"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.start_date, s.end_date, t.user_tier, t.cost
		FROM pricing_schedules s
		JOIN pricing_tiers t ON t.schedule_id = s.id
		WHERE s.addon_key = ? AND s.hosting = ?
		ORDER BY s.id, t.user_tier
	`, addonKey, string(hosting))
	if err != nil {
		return nil, fmt.Errorf("failed to query pricing schedules: %w", classifyError(err))
	}
	defer func() { _ = rows.Close() }()

	var schedules []model.PricingSchedule
	for rows.Next() {
		var id int64
		var start, end sql.NullString
		var tier model.PricingTier
		if err := rows.Scan(&id, &start, &end, &tier.UserTier, &tier.Cost); err != nil {
			return nil, fmt.Errorf("failed to scan pricing tier: %w", err)
		}

		if n := len(schedules); n == 0 || schedules[n-1].ID != id {
			startDate, err := parseOptionalDate(start)
			if err != nil {
				return nil, err
			}
			endDate, err := parseOptionalDate(end)
			if err != nil {
				return nil, err
			}
			schedules = append(schedules, model.PricingSchedule{
				ID:        id,
				AddonKey:  addonKey,
				Hosting:   hosting,
				StartDate: startDate,
				EndDate:   endDate,
			})
		}
		last := &schedules[len(schedules)-1]
		last.Tiers = append(last.Tiers, tier)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pricing tiers: %w", err)
	}

	return schedules, nil
}

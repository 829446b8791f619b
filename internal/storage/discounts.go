package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/tollkeeper/internal/model"
)

const resellerCacheTTL = 5 * time.Minute

// SaveReseller saves or updates a reseller by name.
func (s *SQLiteStorage) SaveReseller(ctx context.Context, reseller *model.Reseller) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateReseller(reseller); err != nil {
		return err
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO resellers (name, discount_percent)
		VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET discount_percent = excluded.discount_percent
		RETURNING id
	`, strings.TrimSpace(reseller.Name), reseller.DiscountPercent).Scan(&reseller.ID)
	if err != nil {
		return fmt.Errorf("failed to save reseller %q: %w", reseller.Name, classifyError(err))
	}

	s.invalidateResellerCache()
	return nil
}

// FindResellers returns resellers whose name equals, contains or is contained in
// partnerName, ignoring case.
func (s *SQLiteStorage) FindResellers(ctx context.Context, partnerName string) ([]model.Reseller, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	partner := strings.ToLower(strings.TrimSpace(partnerName))
	if partner == "" {
		return nil, nil
	}

	all, err := s.resellers(ctx)
	if err != nil {
		return nil, err
	}

	var matches []model.Reseller
	for _, r := range all {
		name := strings.ToLower(strings.TrimSpace(r.Name))
		if name != "" && (strings.Contains(partner, name) || strings.Contains(name, partner)) {
			matches = append(matches, r)
		}
	}
	return matches, nil
}

// resellers returns the cached reseller list, loading it when the cache is cold.
func (s *SQLiteStorage) resellers(ctx context.Context) ([]model.Reseller, error) {
	s.cacheMutex.RLock()
	if s.resellerCache != nil && time.Now().Before(s.cacheExpiry) {
		cached := s.resellerCache
		s.cacheMutex.RUnlock()
		return cached, nil
	}
	s.cacheMutex.RUnlock()

	if err := s.WarmResellerCache(ctx); err != nil {
		return nil, err
	}

	s.cacheMutex.RLock()
	defer s.cacheMutex.RUnlock()
	return s.resellerCache, nil
}

// WarmResellerCache loads all resellers into the cache.
func (s *SQLiteStorage) WarmResellerCache(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, discount_percent FROM resellers ORDER BY id")
	if err != nil {
		return fmt.Errorf("failed to query resellers: %w", classifyError(err))
	}
	defer func() { _ = rows.Close() }()

	resellers := []model.Reseller{}
	for rows.Next() {
		var r model.Reseller
		if err := rows.Scan(&r.ID, &r.Name, &r.DiscountPercent); err != nil {
			return fmt.Errorf("failed to scan reseller: %w", err)
		}
		resellers = append(resellers, r)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating resellers: %w", err)
	}

	s.cacheMutex.Lock()
	defer s.cacheMutex.Unlock()
	s.resellerCache = resellers
	s.cacheExpiry = time.Now().Add(resellerCacheTTL)
	return nil
}

func (s *SQLiteStorage) invalidateResellerCache() {
	s.cacheMutex.Lock()
	defer s.cacheMutex.Unlock()
	s.resellerCache = nil
}

// SaveDiscountAdjustment records the explicit discount for a transaction, replacing any earlier one.
func (s *SQLiteStorage) SaveDiscountAdjustment(ctx context.Context, adjustment *model.DiscountAdjustment) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if adjustment == nil {
		return fmt.Errorf("%w: adjustment", ErrNilParameter)
	}
	if err := validateString(adjustment.TransactionID, "adjustment.TransactionID"); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO discount_adjustments (transaction_id, amount, reason)
		VALUES (?, ?, ?)
		ON CONFLICT(transaction_id) DO UPDATE SET
			amount = excluded.amount,
			reason = excluded.reason
	`, adjustment.TransactionID, adjustment.Amount, adjustment.Reason)
	if err != nil {
		return fmt.Errorf("failed to save discount adjustment for %s: %w", adjustment.TransactionID, classifyError(err))
	}
	return nil
}

// DiscountAdjustment returns the explicit discount for a transaction, or nil if none is recorded.
func (s *SQLiteStorage) DiscountAdjustment(ctx context.Context, transactionID string) (*model.DiscountAdjustment, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(transactionID, "transactionID"); err != nil {
		return nil, err
	}

	adj := model.DiscountAdjustment{TransactionID: transactionID}
	var reason sql.NullString
	err := s.db.QueryRowContext(ctx,
		"SELECT amount, reason FROM discount_adjustments WHERE transaction_id = ?",
		transactionID,
	).Scan(&adj.Amount, &reason)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get discount adjustment for %s: %w", transactionID, classifyError(err))
	}
	adj.Reason = reason.String
	return &adj, nil
}

// Package storage provides the data persistence layer for tollkeeper.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/tollkeeper/internal/model"
)

// Validation errors.
var (
	ErrNilContext         = errors.New("context cannot be nil")
	ErrEmptyString        = errors.New("string parameter cannot be empty")
	ErrNilParameter       = errors.New("parameter cannot be nil")
	ErrEmptySlice         = errors.New("slice cannot be empty")
	ErrInvalidDateRange   = errors.New("start date must be before end date")
	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrInvalidSchedule    = errors.New("invalid pricing schedule")
	ErrInvalidReseller    = errors.New("invalid reseller")
	ErrInvalidVerdict     = errors.New("invalid verdict")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateTransactions validates a slice of transactions.
func validateTransactions(transactions []model.Transaction) error {
	if transactions == nil {
		return fmt.Errorf("%w: transactions", ErrNilParameter)
	}
	if len(transactions) == 0 {
		return fmt.Errorf("%w: transactions", ErrEmptySlice)
	}

	for i := range transactions {
		if err := validateTransaction(&transactions[i]); err != nil {
			return fmt.Errorf("transaction at index %d: %w", i, err)
		}
	}
	return nil
}

// validateTransaction validates a single transaction.
func validateTransaction(txn *model.Transaction) error {
	if txn == nil {
		return fmt.Errorf("%w: transaction", ErrNilParameter)
	}
	if txn.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidTransaction)
	}
	if txn.EntitlementID == "" {
		return fmt.Errorf("%w: missing entitlement ID", ErrInvalidTransaction)
	}
	if txn.AddonKey == "" {
		return fmt.Errorf("%w: missing add-on key", ErrInvalidTransaction)
	}
	if txn.SaleDate.IsZero() {
		return fmt.Errorf("%w: missing sale date", ErrInvalidTransaction)
	}
	if txn.MaintenanceEnd.Before(txn.MaintenanceStart) {
		return fmt.Errorf("%w: %s", ErrInvalidDateRange, txn.ID)
	}

	switch txn.SaleType {
	case model.SaleNew, model.SaleUpgrade, model.SaleRenewal, model.SaleDowngrade, model.SaleRefund:
	default:
		return fmt.Errorf("%w: unknown sale type %q", ErrInvalidTransaction, txn.SaleType)
	}
	return nil
}

// validateSchedule validates a pricing schedule.
func validateSchedule(schedule *model.PricingSchedule) error {
	if schedule == nil {
		return fmt.Errorf("%w: schedule", ErrNilParameter)
	}
	if strings.TrimSpace(schedule.AddonKey) == "" {
		return fmt.Errorf("%w: missing add-on key", ErrInvalidSchedule)
	}
	if schedule.Hosting == "" {
		return fmt.Errorf("%w: missing hosting", ErrInvalidSchedule)
	}
	if len(schedule.Tiers) == 0 {
		return fmt.Errorf("%w: no tiers", ErrInvalidSchedule)
	}
	if schedule.StartDate != nil && schedule.EndDate != nil && schedule.EndDate.Before(*schedule.StartDate) {
		return fmt.Errorf("%w: %s/%s", ErrInvalidDateRange, schedule.AddonKey, schedule.Hosting)
	}
	return nil
}

// validateReseller validates a reseller.
func validateReseller(reseller *model.Reseller) error {
	if reseller == nil {
		return fmt.Errorf("%w: reseller", ErrNilParameter)
	}
	if strings.TrimSpace(reseller.Name) == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidReseller)
	}
	if reseller.DiscountPercent < 0 || reseller.DiscountPercent >= 100 {
		return fmt.Errorf("%w: discount percent must be in [0, 100)", ErrInvalidReseller)
	}
	return nil
}

// validateVerdict validates a verdict.
func validateVerdict(verdict *model.Verdict) error {
	if verdict == nil {
		return fmt.Errorf("%w: verdict", ErrNilParameter)
	}
	if verdict.TransactionID == "" {
		return fmt.Errorf("%w: missing transaction ID", ErrInvalidVerdict)
	}
	if verdict.TransactionVersion <= 0 {
		return fmt.Errorf("%w: missing transaction version", ErrInvalidVerdict)
	}
	return nil
}

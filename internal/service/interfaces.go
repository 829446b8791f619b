// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/tollkeeper/internal/model"
)

// TransactionReader reads normalized sale records.
type TransactionReader interface {
	// TransactionsForEntitlement returns every version-current transaction of an
	// entitlement, ordered by sale date descending.
	TransactionsForEntitlement(ctx context.Context, entitlementID string) ([]model.Transaction, error)
	// TransactionsSince returns transactions sold on or after since, ordered by sale date ascending.
	TransactionsSince(ctx context.Context, since time.Time) ([]model.Transaction, error)
	GetTransaction(ctx context.Context, id string) (*model.Transaction, error)
}

// PricingReader reads the curated pricing catalog.
type PricingReader interface {
	PricingSchedules(ctx context.Context, addonKey string, hosting model.Hosting) ([]model.PricingSchedule, error)
}

// DiscountReader reads reseller rules and explicit discount adjustments.
type DiscountReader interface {
	// FindResellers returns resellers whose name equals or is contained in partnerName.
	FindResellers(ctx context.Context, partnerName string) ([]model.Reseller, error)
	// DiscountAdjustment returns the explicit adjustment for a transaction, or nil.
	DiscountAdjustment(ctx context.Context, transactionID string) (*model.DiscountAdjustment, error)
}

// VerdictStore persists reconciliation verdicts keyed by transaction id and version.
type VerdictStore interface {
	GetVerdict(ctx context.Context, transactionID string) (*model.Verdict, error)
	SaveVerdict(ctx context.Context, verdict *model.Verdict) error
	ListVerdicts(ctx context.Context, filter VerdictFilter) ([]model.Verdict, error)
}

// RunStore records batch validation runs.
type RunStore interface {
	SaveRun(ctx context.Context, run *model.ValidationRun) error
	GetLatestRun(ctx context.Context) (*model.ValidationRun, error)
}

// VerdictFilter defines filtering options for verdict queries.
type VerdictFilter struct {
	Limit            int
	UnreconciledOnly bool
}

// Storage defines the contract for our persistence layer.
type Storage interface {
	TransactionReader
	PricingReader
	DiscountReader
	VerdictStore
	RunStore

	// Catalog and record maintenance used by the import command.
	SaveTransactions(ctx context.Context, transactions []model.Transaction) error
	SavePricingSchedule(ctx context.Context, schedule *model.PricingSchedule) error
	SaveReseller(ctx context.Context, reseller *model.Reseller) error
	SaveDiscountAdjustment(ctx context.Context, adjustment *model.DiscountAdjustment) error

	// Database management
	Migrate(ctx context.Context) error
	Close() error
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

package validation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Veraticus/tollkeeper/internal/common"
	"github.com/Veraticus/tollkeeper/internal/model"
	"github.com/Veraticus/tollkeeper/internal/pricing"
	"github.com/Veraticus/tollkeeper/internal/service"
)

// ProgressFunc is called after each transaction of a run.
type ProgressFunc func(done, total int)

// Runner sweeps transactions in sale date order and records a verdict for every
// transaction version not yet reconciled.
type Runner struct {
	transactions service.TransactionReader
	verdicts     service.VerdictStore
	runs         service.RunStore
	catalog      *pricing.Catalog
	validator    *Validator
	progress     ProgressFunc
	now          func() time.Time
	retryOpts    service.RetryOptions
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithProgress reports progress after each transaction.
func WithProgress(fn ProgressFunc) RunnerOption {
	return func(r *Runner) {
		r.progress = fn
	}
}

// WithRetryOptions overrides the retry policy for verdict writes.
func WithRetryOptions(opts service.RetryOptions) RunnerOption {
	return func(r *Runner) {
		r.retryOpts = opts
	}
}

// WithClock overrides the clock used for run and verdict timestamps.
func WithClock(now func() time.Time) RunnerOption {
	return func(r *Runner) {
		r.now = now
	}
}

// NewRunner creates a batch runner over the given storage.
func NewRunner(store service.Storage, catalog *pricing.Catalog, validator *Validator, opts ...RunnerOption) *Runner {
	r := &Runner{
		transactions: store,
		verdicts:     store,
		runs:         store,
		catalog:      catalog,
		validator:    validator,
		now:          time.Now,
		retryOpts: service.RetryOptions{
			MaxAttempts:  3,
			InitialDelay: 50 * time.Millisecond,
			MaxDelay:     time.Second,
			Multiplier:   2,
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run validates every transaction sold on or after since. A transaction that fails
// to validate is logged and counted; it does not stop the run.
func (r *Runner) Run(ctx context.Context, since time.Time) (*model.ValidationRun, error) {
	run := &model.ValidationRun{
		ID:        uuid.NewString(),
		StartedAt: r.now(),
		Since:     since,
	}

	r.catalog.Reset()

	txns, err := r.transactions.TransactionsSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}

	slog.Info("Starting validation run",
		"run_id", run.ID,
		"since", since.Format(model.DateLayout),
		"transactions", len(txns))

	for i, txn := range txns {
		if err := ctx.Err(); err != nil {
			return run, err
		}

		reconciled, skipped, err := r.process(ctx, run.ID, txn)
		switch {
		case err != nil:
			run.Failed++
			common.LogError(err, "Failed to validate transaction", common.Fields{
				"transaction_id": txn.ID,
				"entitlement_id": txn.EntitlementID,
				"version":        txn.Version,
			})
		case skipped:
			run.Skipped++
		default:
			run.Processed++
			if reconciled {
				run.Reconciled++
			}
		}

		if r.progress != nil {
			r.progress(i+1, len(txns))
		}
	}

	run.FinishedAt = r.now()
	if err := r.runs.SaveRun(ctx, run); err != nil {
		return run, fmt.Errorf("failed to save run %s: %w", run.ID, err)
	}

	common.LogInfo("Validation run complete", common.Fields{
		"run_id":     run.ID,
		"processed":  run.Processed,
		"reconciled": run.Reconciled,
		"skipped":    run.Skipped,
		"failed":     run.Failed,
	})

	return run, nil
}

func (r *Runner) process(ctx context.Context, runID string, txn model.Transaction) (reconciled, skipped bool, err error) {
	existing, err := r.verdicts.GetVerdict(ctx, txn.ID)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return false, false, fmt.Errorf("failed to load verdict: %w", err)
	}
	if existing.IsCurrent(&txn) {
		return false, true, nil
	}

	outcome, err := r.validator.Validate(ctx, txn)
	if err != nil {
		return false, false, err
	}

	verdict := outcome.Verdict
	verdict.RunID = runID
	verdict.UpdatedAt = r.now()

	err = common.WithRetry(ctx, func() error {
		return r.verdicts.SaveVerdict(ctx, &verdict)
	}, r.retryOpts)
	if err != nil {
		return false, false, fmt.Errorf("failed to save verdict: %w", err)
	}

	common.LogDebug("Transaction validated", common.Fields{
		"transaction_id": txn.ID,
		"hypothesis":     outcome.Hypothesis.String(),
		"expected":       verdict.ExpectedVendorAmount,
		"actual":         verdict.ActualVendorAmount,
		"reconciled":     verdict.Reconciled,
	})

	return verdict.Reconciled, false, nil
}

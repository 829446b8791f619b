package validation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/tollkeeper/internal/common"
	"github.com/Veraticus/tollkeeper/internal/discount"
	"github.com/Veraticus/tollkeeper/internal/model"
	"github.com/Veraticus/tollkeeper/internal/pricing"
	"github.com/Veraticus/tollkeeper/internal/testutil"
)

func newTestValidator(db *testutil.TestDB, cfg Config) *Validator {
	return NewValidator(db.Storage, db.Storage, pricing.NewCatalog(db.Storage), cfg)
}

// dcSale is a one year, 500 user Data Center sale priced 3400 under the current schedule.
func dcSale(id string) *testutil.TransactionBuilder {
	return testutil.NewTransaction(id).
		Sale(model.SaleNew, "2025-04-15").
		Window("2025-04-15", "2026-04-15")
}

func TestValidator_Search(t *testing.T) {
	tests := []struct {
		txn            model.Transaction
		name           string
		wantHypothesis Hypothesis
		wantNotes      []string
		wantExpected   float64
		wantMatched    bool
		wantReconciled bool
	}{
		{
			name:           "list price",
			txn:            dcSale("AT-1").Amounts(3400, 2550).Build(),
			wantMatched:    true,
			wantReconciled: true,
			wantExpected:   2550,
		},
		{
			name:           "partner discount",
			txn:            dcSale("AT-1").Amounts(3060, 2295).Build(),
			wantMatched:    true,
			wantReconciled: true,
			wantExpected:   2295,
			wantHypothesis: Hypothesis{PartnerFraction: 0.10},
			wantNotes:      []string{"Solutions partner discount of 10% applied"},
		},
		{
			name: "legacy pricing shortly after the schedule changed",
			txn: dcSale("AT-1").
				Sale(model.SaleNew, "2025-02-01").
				Window("2025-02-01", "2026-02-01").
				Amounts(3000, 2250).
				Build(),
			wantMatched:    true,
			wantReconciled: true,
			wantExpected:   2250,
			wantHypothesis: Hypothesis{Legacy: LegacyHypothesis{Current: true}},
			wantNotes:      []string{"Legacy pricing applied to this sale"},
		},
		{
			name: "legacy pricing honored too long",
			txn: dcSale("AT-1").
				Sale(model.SaleNew, "2025-08-01").
				Window("2025-08-01", "2026-08-01").
				Amounts(3000, 2250).
				Build(),
			wantMatched:    true,
			wantReconciled: false,
			wantExpected:   2250,
			wantHypothesis: Hypothesis{Legacy: LegacyHypothesis{Current: true}},
			wantNotes: []string{
				"Legacy pricing applied to this sale",
				"Legacy pricing ended 2024-12-31, 213 days before the sale (limit 180)",
			},
		},
		{
			name:           "japan tolerance accepts list price",
			txn:            dcSale("AT-1").Country("Japan").Amounts(3100, 2300).Build(),
			wantMatched:    true,
			wantReconciled: true,
			wantExpected:   2550,
		},
		{
			name:           "unresolved reports canonical price",
			txn:            dcSale("AT-1").Amounts(1400, 1000).Build(),
			wantMatched:    false,
			wantReconciled: false,
			wantExpected:   2550,
			wantNotes:      []string{NoteUnresolved},
		},
		{
			name: "renewal without previous purchase",
			txn: dcSale("AT-1").
				Sale(model.SaleRenewal, "2025-04-15").
				Amounts(3400, 2550).
				Build(),
			wantMatched:    true,
			wantReconciled: false,
			wantExpected:   2550,
			wantNotes:      []string{NoteNoPreviousPurchase},
		},
		{
			name: "dual licensing is free",
			txn: dcSale("AT-1").
				Declare(model.DiscountTypeDualLicensing, 3400).
				Build(),
			wantMatched:    true,
			wantReconciled: true,
			wantExpected:   0,
		},
		{
			name: "free community renewal needs no previous purchase",
			txn: dcSale("AT-1").
				Sale(model.SaleRenewal, "2025-04-15").
				License(model.LicenseCommunity).
				Build(),
			wantMatched:    true,
			wantReconciled: true,
			wantExpected:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := testutil.SetupTestDB(t).Transactions(tt.txn)
			v := newTestValidator(db, Config{})

			outcome, err := v.Validate(context.Background(), tt.txn)
			require.NoError(t, err)

			assert.Equal(t, tt.wantMatched, outcome.Matched)
			assert.Equal(t, tt.wantHypothesis, outcome.Hypothesis)
			assert.Equal(t, tt.wantReconciled, outcome.Verdict.Reconciled)
			assert.InDelta(t, tt.wantExpected, outcome.Verdict.ExpectedVendorAmount, 0.001)
			assert.InDelta(t, tt.txn.VendorAmount, outcome.Verdict.ActualVendorAmount, 0.001)
			assert.Equal(t, tt.wantNotes, outcome.Verdict.Notes)
			assert.Equal(t, tt.txn.ID, outcome.Verdict.TransactionID)
			assert.Equal(t, tt.txn.Version, outcome.Verdict.TransactionVersion)
			assert.True(t, outcome.Verdict.Automatic)
		})
	}
}

func TestValidator_Unresolved_TriesEveryFeasibleHypothesis(t *testing.T) {
	txn := dcSale("AT-1").Amounts(1400, 1000).Build()
	db := testutil.SetupTestDB(t).Transactions(txn)

	outcome, err := newTestValidator(db, Config{}).Validate(context.Background(), txn)
	require.NoError(t, err)

	// Three legacy entries, one discount entry, three partner fractions.
	assert.Equal(t, 9, outcome.Attempts)
	assert.Equal(t, Hypothesis{}, outcome.Hypothesis)
}

func TestValidator_SkipsLegacyWithoutLegacySchedule(t *testing.T) {
	txn := testutil.NewTransaction("AT-1").
		Cloud().
		Monthly().
		Tier("Per Unit Pricing (173 Users)").
		Sale(model.SaleNew, "2025-04-15").
		Window("2025-04-15", "2025-05-15").
		Amounts(1, 1).
		Build()
	db := testutil.SetupTestDB(t).Transactions(txn)

	outcome, err := newTestValidator(db, Config{}).Validate(context.Background(), txn)
	require.NoError(t, err)

	// The legacy entry is skipped: two list price entries times three partner fractions.
	assert.Equal(t, 6, outcome.Attempts)
	assert.False(t, outcome.Matched)
	assert.InDelta(t, 188.03, outcome.Verdict.ExpectedVendorAmount, 0.001)
}

func TestValidator_PartnerOptOut(t *testing.T) {
	txn := dcSale("AT-1").Amounts(3060, 2295).Build()
	db := testutil.SetupTestDB(t).Transactions(txn)

	outcome, err := newTestValidator(db, Config{PartnerOptOut: []string{testutil.AddonKey}}).
		Validate(context.Background(), txn)
	require.NoError(t, err)

	assert.False(t, outcome.Matched)
	assert.Equal(t, 3, outcome.Attempts)
	assert.False(t, outcome.Verdict.Reconciled)
}

func TestValidator_ExplicitDiscount(t *testing.T) {
	txn := dcSale("AT-1").Amounts(3230, 2422.50).Build()
	db := testutil.SetupTestDB(t).Transactions(txn).Adjustment("AT-1", 170)

	outcome, err := newTestValidator(db, Config{}).Validate(context.Background(), txn)
	require.NoError(t, err)

	assert.True(t, outcome.Matched)
	assert.True(t, outcome.Verdict.Reconciled)
	assert.Equal(t, discount.SourceExplicit, outcome.Discount.Source)
	assert.Equal(t, Hypothesis{ApplyDiscount: true}, outcome.Hypothesis)
	assert.Equal(t, []string{"Expected explicit discount of 170.00 applied"}, outcome.Verdict.Notes)
}

func TestValidator_ResellerDiscount(t *testing.T) {
	t.Run("estimate that explains the price is used", func(t *testing.T) {
		txn := dcSale("AT-1").Partner("Acme Consulting GmbH").Amounts(2720, 2040).Build()
		db := testutil.SetupTestDB(t).Transactions(txn).Reseller("Acme", 20)

		outcome, err := newTestValidator(db, Config{}).Validate(context.Background(), txn)
		require.NoError(t, err)

		assert.True(t, outcome.Matched)
		assert.Equal(t, discount.SourceReseller, outcome.Discount.Source)
		assert.InDelta(t, 680, outcome.Discount.Amount, 0.001)
		assert.InDelta(t, 2040, outcome.Verdict.ExpectedVendorAmount, 0.001)
	})

	t.Run("unconfirmed estimate is left out of the reported price", func(t *testing.T) {
		txn := dcSale("AT-1").Partner("Acme Consulting GmbH").Amounts(2000, 1500).Build()
		db := testutil.SetupTestDB(t).Transactions(txn).Reseller("Acme", 20)

		outcome, err := newTestValidator(db, Config{}).Validate(context.Background(), txn)
		require.NoError(t, err)

		assert.False(t, outcome.Matched)
		assert.False(t, outcome.Hypothesis.ApplyDiscount)
		assert.InDelta(t, 2550, outcome.Verdict.ExpectedVendorAmount, 0.001)
	})
}

func TestValidator_Continuity(t *testing.T) {
	t.Run("contiguous renewal", func(t *testing.T) {
		previous := testutil.NewTransaction("AT-1").
			Sale(model.SaleNew, "2024-04-15").
			Window("2024-04-15", "2025-04-15").
			Amounts(3000, 2250).
			Build()
		renewal := dcSale("AT-2").Sale(model.SaleRenewal, "2025-04-10").Amounts(3400, 2550).Build()
		db := testutil.SetupTestDB(t).Transactions(previous, renewal)

		outcome, err := newTestValidator(db, Config{}).Validate(context.Background(), renewal)
		require.NoError(t, err)

		require.NotNil(t, outcome.Previous)
		assert.Equal(t, "AT-1", outcome.Previous.Transaction.ID)
		assert.True(t, outcome.Verdict.Reconciled)
		assert.Empty(t, outcome.Verdict.Notes)
	})

	t.Run("one day of grace", func(t *testing.T) {
		previous := testutil.NewTransaction("AT-1").
			Sale(model.SaleNew, "2024-04-14").
			Window("2024-04-14", "2025-04-14").
			Amounts(3000, 2250).
			Build()
		renewal := dcSale("AT-2").Sale(model.SaleRenewal, "2025-04-15").Amounts(3400, 2550).Build()
		db := testutil.SetupTestDB(t).Transactions(previous, renewal)

		outcome, err := newTestValidator(db, Config{}).Validate(context.Background(), renewal)
		require.NoError(t, err)
		assert.True(t, outcome.Verdict.Reconciled)
	})

	t.Run("gap in coverage", func(t *testing.T) {
		previous := testutil.NewTransaction("AT-1").
			Sale(model.SaleNew, "2024-01-01").
			Window("2024-01-01", "2025-01-01").
			Amounts(3000, 2250).
			Build()
		renewal := dcSale("AT-2").Sale(model.SaleRenewal, "2025-04-15").Amounts(3400, 2550).Build()
		db := testutil.SetupTestDB(t).Transactions(previous, renewal)

		outcome, err := newTestValidator(db, Config{}).Validate(context.Background(), renewal)
		require.NoError(t, err)

		assert.True(t, outcome.Matched)
		assert.False(t, outcome.Verdict.Reconciled)
		assert.Equal(t, []string{
			"Gap in coverage: previous purchase AT-1 ended 2025-01-01 but this one starts 2025-04-15",
		}, outcome.Verdict.Notes)
	})
}

func TestValidator_Upgrade(t *testing.T) {
	t.Run("current prices on both sides", func(t *testing.T) {
		previous := testutil.NewTransaction("AT-1").
			Tier("250 Users").
			Sale(model.SaleNew, "2025-01-15").
			Window("2025-01-15", "2026-01-15").
			Amounts(2400, 1800).
			Build()
		// 90 days at the new daily price plus 275 overlapping days at the difference:
		// (3400*90 + 1000*275) / 365 = 1591.78, rounded to 1592.
		upgrade := dcSale("AT-2").Sale(model.SaleUpgrade, "2025-04-15").Amounts(1592, 1194).Build()
		db := testutil.SetupTestDB(t).Transactions(previous, upgrade)

		outcome, err := newTestValidator(db, Config{}).Validate(context.Background(), upgrade)
		require.NoError(t, err)

		require.NotNil(t, outcome.Previous)
		assert.Equal(t, "AT-1", outcome.Previous.Transaction.ID)
		require.NotNil(t, outcome.PreviousResult)
		assert.InDelta(t, 2400, outcome.PreviousResult.PurchasePrice, 0.001)

		assert.True(t, outcome.Matched)
		assert.Equal(t, Hypothesis{}, outcome.Hypothesis)
		assert.InDelta(t, 1194, outcome.Verdict.ExpectedVendorAmount, 0.001)
		assert.True(t, outcome.Verdict.Reconciled)
	})

	t.Run("previous purchase billed at legacy price", func(t *testing.T) {
		previous := testutil.NewTransaction("AT-1").
			Tier("250 Users").
			Sale(model.SaleNew, "2025-01-15").
			Window("2025-01-15", "2026-01-15").
			Amounts(2200, 1650).
			Build()
		// The overlap is credited at the legacy 250 user price:
		// (3400*90 + 1200*275) / 365 = 1742.47, rounded to 1742.
		upgrade := dcSale("AT-2").Sale(model.SaleUpgrade, "2025-04-15").Amounts(1742, 1306.5).Build()
		db := testutil.SetupTestDB(t).Transactions(previous, upgrade)

		outcome, err := newTestValidator(db, Config{}).Validate(context.Background(), upgrade)
		require.NoError(t, err)

		assert.True(t, outcome.Matched)
		assert.Equal(t, Hypothesis{Legacy: LegacyHypothesis{Previous: true}}, outcome.Hypothesis)
		require.NotNil(t, outcome.PreviousResult)
		assert.InDelta(t, 2200, outcome.PreviousResult.PurchasePrice, 0.001)
		assert.InDelta(t, 1306.5, outcome.Verdict.ExpectedVendorAmount, 0.001)
		assert.True(t, outcome.Verdict.Reconciled)
		assert.Equal(t, []string{"Legacy pricing applied to the previous purchase"}, outcome.Verdict.Notes)
	})

	t.Run("previous purchase billed at legacy price too long", func(t *testing.T) {
		previous := testutil.NewTransaction("AT-1").
			Tier("250 Users").
			Sale(model.SaleNew, "2025-08-01").
			Window("2025-08-01", "2026-08-01").
			Amounts(2200, 1650).
			Build()
		// (3400*92 + 1200*273) / 365 = 1754.52, rounded to 1755.
		upgrade := testutil.NewTransaction("AT-2").
			Sale(model.SaleUpgrade, "2025-11-01").
			Window("2025-11-01", "2026-11-01").
			Amounts(1755, 1316.25).
			Build()
		db := testutil.SetupTestDB(t).Transactions(previous, upgrade)

		outcome, err := newTestValidator(db, Config{}).Validate(context.Background(), upgrade)
		require.NoError(t, err)

		assert.True(t, outcome.Matched)
		assert.Equal(t, Hypothesis{Legacy: LegacyHypothesis{Previous: true}}, outcome.Hypothesis)
		assert.InDelta(t, 1316.25, outcome.Verdict.ExpectedVendorAmount, 0.001)
		assert.False(t, outcome.Verdict.Reconciled)
		assert.Equal(t, []string{
			"Legacy pricing applied to the previous purchase",
			"Legacy pricing ended 2024-12-31, 213 days before the sale (limit 180)",
		}, outcome.Verdict.Notes)
	})
}

func TestValidator_PricingErrors(t *testing.T) {
	t.Run("bad tier", func(t *testing.T) {
		txn := dcSale("AT-1").Tier("Lots of users").Amounts(1, 1).Build()
		db := testutil.SetupTestDB(t).Transactions(txn)

		_, err := newTestValidator(db, Config{}).Validate(context.Background(), txn)
		assert.ErrorIs(t, err, common.ErrInvalidTierFormat)
		assert.True(t, common.IsPricingError(err))
	})

	t.Run("no catalog entry", func(t *testing.T) {
		txn := dcSale("AT-1").Hosting(model.HostingServer).Amounts(1, 1).Build()
		db := testutil.SetupTestDB(t).Transactions(txn)

		_, err := newTestValidator(db, Config{}).Validate(context.Background(), txn)
		assert.ErrorIs(t, err, common.ErrNoPricingFound)
	})
}

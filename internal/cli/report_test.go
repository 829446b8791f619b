package cli

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Veraticus/tollkeeper/internal/discount"
	"github.com/Veraticus/tollkeeper/internal/entitlement"
	"github.com/Veraticus/tollkeeper/internal/model"
	"github.com/Veraticus/tollkeeper/internal/pricing"
	"github.com/Veraticus/tollkeeper/internal/validation"
)

func TestRenderVerdicts(t *testing.T) {
	out := RenderVerdicts([]model.Verdict{
		{TransactionID: "AT-1", TransactionVersion: 1, Reconciled: true, ActualVendorAmount: 2550, ExpectedVendorAmount: 2550},
		{
			TransactionID:        "AT-2",
			TransactionVersion:   3,
			ActualVendorAmount:   1000,
			ExpectedVendorAmount: 2550,
			Notes:                []string{validation.NoteUnresolved},
		},
	})

	assert.Contains(t, out, "Transaction")
	assert.Contains(t, out, "AT-1")
	assert.Contains(t, out, "reconciled")
	assert.Contains(t, out, "discrepancy")
	assert.Contains(t, out, "-1550.00")
	assert.Contains(t, out, validation.NoteUnresolved)

	assert.Contains(t, RenderVerdicts(nil), "No verdicts found")
}

func TestRenderRunSummary(t *testing.T) {
	start := time.Date(2025, time.May, 1, 9, 0, 0, 0, time.UTC)
	out := RenderRunSummary(&model.ValidationRun{
		ID:         "run-1",
		Since:      model.Date(2025, time.January, 1),
		StartedAt:  start,
		FinishedAt: start.Add(1500 * time.Millisecond),
		Processed:  10,
		Reconciled: 7,
		Skipped:    4,
		Failed:     2,
	})

	assert.Contains(t, out, "run-1")
	assert.Contains(t, out, "2025-01-01")
	assert.Contains(t, out, "Failed")
	assert.Contains(t, out, "1.5s")
}

func TestRenderExplanation(t *testing.T) {
	txn := &model.Transaction{
		ID:               "AT-2",
		EntitlementID:    "E-1",
		AddonKey:         "com.example.timesheets",
		SaleType:         model.SaleUpgrade,
		SaleDate:         model.Date(2025, time.April, 15),
		MaintenanceStart: model.Date(2025, time.April, 15),
		MaintenanceEnd:   model.Date(2026, time.April, 15),
		Hosting:          model.HostingDataCenter,
		LicenseType:      model.LicenseCommercial,
		Tier:             "500 Users",
		BillingPeriod:    model.BillingAnnual,
		PartnerName:      "Acme",
		Version:          1,
	}
	outcome := &validation.Outcome{
		Previous: &entitlement.PreviousPurchase{
			EffectiveEnd: model.Date(2026, time.January, 15),
			Transaction:  model.Transaction{ID: "AT-1"},
		},
		PreviousResult: &pricing.Result{PurchasePrice: 2400},
		Discount:       discount.Discount{Source: discount.SourceReseller, Amount: 680},
		Result: pricing.Result{Descriptors: []pricing.Descriptor{
			{Step: "tier", Subtotal: 3400, Description: "Tier price for 500 users"},
			{Step: "vendor", Subtotal: 1194, Description: "Vendor receives 75% of the purchase price"},
		}},
		Hypothesis: validation.Hypothesis{PartnerFraction: 0.1},
		Attempts:   2,
		Matched:    true,
		Verdict: model.Verdict{
			Reconciled:           true,
			ActualVendorAmount:   1194,
			ExpectedVendorAmount: 1194,
			Notes:                []string{"Solutions partner discount of 10% applied"},
		},
	}

	out := RenderExplanation(txn, outcome)
	assert.Contains(t, out, "Transaction AT-2")
	assert.Contains(t, out, "365 days")
	assert.Contains(t, out, "Previous purchase")
	assert.Contains(t, out, "2026-01-15")
	assert.Contains(t, out, "partner-10%")
	assert.Contains(t, out, "Tier price for 500 users")
	assert.Contains(t, out, "680.00 (reseller)")
	assert.Contains(t, out, "Solutions partner discount of 10% applied")
}

func TestFormatMessages(t *testing.T) {
	assert.Contains(t, FormatError("database busy"), ErrorIcon+" database busy")
	assert.Contains(t, FormatSuccess("imported"), SuccessIcon+" imported")
	assert.Contains(t, FormatWarning("interrupted"), WarningIcon+" interrupted")
}

package validation

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Veraticus/tollkeeper/internal/discount"
	"github.com/Veraticus/tollkeeper/internal/entitlement"
	"github.com/Veraticus/tollkeeper/internal/model"
	"github.com/Veraticus/tollkeeper/internal/pricing"
	"github.com/Veraticus/tollkeeper/internal/service"
)

// Verdict notes that callers may want to match on.
const (
	NoteNoPreviousPurchase = "No previous purchase found"
	NoteUnresolved         = "No pricing hypothesis reproduces the recorded price"
)

// Config holds validator settings.
type Config struct {
	// PartnerOptOut lists add-on keys that do not take part in the partner discount program.
	PartnerOptOut []string
}

// Outcome is the full result of validating one transaction.
type Outcome struct {
	Previous       *entitlement.PreviousPurchase
	PreviousResult *pricing.Result
	Discount       discount.Discount
	Verdict        model.Verdict
	Result         pricing.Result
	Hypothesis     Hypothesis
	Attempts       int
	Matched        bool
}

// Validator finds the pricing assumptions that explain a recorded sale price.
type Validator struct {
	transactions service.TransactionReader
	adjustments  service.DiscountReader
	catalog      *pricing.Catalog
	discounts    *discount.Resolver
	optOut       map[string]bool
}

// NewValidator creates a validator. The catalog is shared with the caller so a
// batch run can reset its cache.
func NewValidator(transactions service.TransactionReader, discounts service.DiscountReader, catalog *pricing.Catalog, cfg Config) *Validator {
	optOut := make(map[string]bool, len(cfg.PartnerOptOut))
	for _, key := range cfg.PartnerOptOut {
		optOut[key] = true
	}
	return &Validator{
		transactions: transactions,
		adjustments:  discounts,
		catalog:      catalog,
		discounts:    discount.NewResolver(discounts),
		optOut:       optOut,
	}
}

// Validate loads the transaction's entitlement history and explicit discount and
// reconciles its recorded price.
func (v *Validator) Validate(ctx context.Context, txn model.Transaction) (*Outcome, error) {
	var history []model.Transaction
	var adjustment *model.DiscountAdjustment

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		history, err = v.transactions.TransactionsForEntitlement(gctx, txn.EntitlementID)
		if err != nil {
			return fmt.Errorf("failed to load entitlement %s: %w", txn.EntitlementID, err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		adjustment, err = v.adjustments.DiscountAdjustment(gctx, txn.ID)
		if err != nil {
			return fmt.Errorf("failed to load discount adjustment for %s: %w", txn.ID, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return v.ValidateWithHistory(ctx, txn, history, adjustment)
}

// ValidateWithHistory reconciles txn against an already loaded history.
func (v *Validator) ValidateWithHistory(ctx context.Context, txn model.Transaction, history []model.Transaction, adjustment *model.DiscountAdjustment) (*Outcome, error) {
	expected, err := v.discounts.ResolveWithAdjustment(ctx, txn, adjustment)
	if err != nil {
		return nil, err
	}

	lookup, err := v.catalog.Tiers(ctx, txn.AddonKey, txn.Hosting, txn.SaleDate)
	if err != nil {
		return nil, err
	}

	previous := entitlement.FindPreviousPurchase(txn, history)
	prev, err := v.previousPricing(ctx, txn, previous)
	if err != nil {
		return nil, err
	}

	legacy := LegacyHypotheses(txn.SaleType)
	discounts := DiscountHypotheses(expected)
	partners := PartnerHypotheses(txn.Hosting, v.optOut[txn.AddonKey])

	outcome := &Outcome{Previous: previous, Discount: expected}
	for _, h := range Combinations(legacy, discounts, partners) {
		if !feasible(h, lookup, prev) {
			continue
		}
		result, prevResult, err := v.price(txn, h, lookup, expected, prev)
		if err != nil {
			return nil, err
		}
		outcome.Attempts++
		if WithinTolerance(txn.VendorAmount, result.VendorPrice, txn.Country) {
			outcome.Matched = true
			outcome.Hypothesis = h
			outcome.Result = result
			outcome.PreviousResult = prevResult
			break
		}
	}

	if !outcome.Matched {
		h := Canonical(legacy, discounts)
		result, prevResult, err := v.price(txn, h, lookup, expected, prev)
		if err != nil {
			return nil, err
		}
		outcome.Hypothesis = h
		outcome.Result = result
		outcome.PreviousResult = prevResult
	}

	outcome.Verdict = v.verdict(txn, outcome, lookup, prev)
	return outcome, nil
}

// previousState holds what the search needs about the purchase an upgrade replaces.
type previousState struct {
	lookup   *pricing.TierLookup
	purchase *entitlement.PreviousPurchase
	priced   map[bool]*pricing.Result
	discount discount.Discount
}

func (v *Validator) previousPricing(ctx context.Context, txn model.Transaction, previous *entitlement.PreviousPurchase) (*previousState, error) {
	if previous == nil || !txn.SaleType.ChangesTier() {
		return nil, nil
	}

	prevTxn := previous.Transaction
	lookup, err := v.catalog.Tiers(ctx, prevTxn.AddonKey, prevTxn.Hosting, prevTxn.SaleDate)
	if err != nil {
		return nil, fmt.Errorf("previous purchase %s: %w", prevTxn.ID, err)
	}
	d, err := v.discounts.Resolve(ctx, prevTxn)
	if err != nil {
		return nil, err
	}

	state := &previousState{
		lookup:   lookup,
		purchase: previous,
		discount: d,
		priced:   make(map[bool]*pricing.Result, 2),
	}
	for _, useLegacy := range []bool{false, true} {
		if useLegacy && !lookup.HasLegacy() {
			continue
		}
		tiers := lookup.Tiers
		if useLegacy {
			tiers = lookup.LegacyTiers
		}
		in := inputFor(prevTxn, tiers)
		in.ExpectedDiscount = d.Amount
		result, err := pricing.Calculate(in)
		if err != nil {
			return nil, fmt.Errorf("previous purchase %s: %w", prevTxn.ID, err)
		}
		state.priced[useLegacy] = &result
	}
	return state, nil
}

func feasible(h Hypothesis, lookup *pricing.TierLookup, prev *previousState) bool {
	if h.Legacy.Current && !lookup.HasLegacy() {
		return false
	}
	if h.Legacy.Previous && (prev == nil || prev.priced[true] == nil) {
		return false
	}
	return true
}

func (v *Validator) price(txn model.Transaction, h Hypothesis, lookup *pricing.TierLookup, expected discount.Discount, prev *previousState) (pricing.Result, *pricing.Result, error) {
	tiers := lookup.Tiers
	if h.Legacy.Current {
		tiers = lookup.LegacyTiers
	}

	in := inputFor(txn, tiers)
	in.PartnerDiscountFraction = h.PartnerFraction
	if h.ApplyDiscount {
		in.ExpectedDiscount = expected.Amount
	}

	var prevResult *pricing.Result
	if prev != nil {
		prevResult = prev.priced[h.Legacy.Previous]
		in.Previous = &pricing.PreviousPrice{
			EffectiveEnd:      prev.purchase.EffectiveEnd,
			PurchasePrice:     prevResult.PurchasePrice,
			DailyNominalPrice: prevResult.DailyNominalPrice,
		}
	}

	result, err := pricing.Calculate(in)
	if err != nil {
		return pricing.Result{}, nil, fmt.Errorf("transaction %s (%s): %w", txn.ID, h, err)
	}
	return result, prevResult, nil
}

func inputFor(txn model.Transaction, tiers []model.PricingTier) pricing.Input {
	return pricing.Input{
		SaleDate:          txn.SaleDate,
		MaintenanceStart:  txn.MaintenanceStart,
		MaintenanceEnd:    txn.MaintenanceEnd,
		SaleType:          txn.SaleType,
		Hosting:           txn.Hosting,
		LicenseType:       txn.LicenseType,
		Tier:              txn.Tier,
		BillingPeriod:     txn.BillingPeriod,
		ParentProduct:     txn.ParentProduct,
		Tiers:             tiers,
		DeclaredDiscounts: txn.DeclaredDiscounts,
		Sandbox:           txn.Sandbox,
	}
}

func (v *Validator) verdict(txn model.Transaction, outcome *Outcome, lookup *pricing.TierLookup, prev *previousState) model.Verdict {
	valid := outcome.Matched
	var notes []string

	if outcome.Matched {
		notes = append(notes, outcome.Hypothesis.Notes(outcome.Discount)...)
	} else {
		notes = append(notes, NoteUnresolved)
	}

	if note, ok := continuity(txn, outcome.Previous); !ok {
		valid = false
		notes = append(notes, note)
	}

	if outcome.Matched {
		if h := outcome.Hypothesis; h.Legacy.Current {
			if note, ok := legacyStillHonored(*lookup.LegacyEndDate, txn.SaleDate); !ok {
				valid = false
				notes = append(notes, note)
			}
		}
		if h := outcome.Hypothesis; h.Legacy.Previous {
			if note, ok := legacyStillHonored(*prev.lookup.LegacyEndDate, prev.purchase.Transaction.SaleDate); !ok {
				valid = false
				notes = append(notes, note)
			}
		}
	}

	return model.Verdict{
		TransactionID:        txn.ID,
		TransactionVersion:   txn.Version,
		Reconciled:           valid,
		Automatic:            true,
		ActualVendorAmount:   txn.VendorAmount,
		ExpectedVendorAmount: outcome.Result.VendorPrice,
		Notes:                notes,
	}
}

// continuity checks that an upgrade or renewal follows an earlier purchase without a gap.
// A purchase ending the day before the new one starts is contiguous.
func continuity(txn model.Transaction, previous *entitlement.PreviousPurchase) (string, bool) {
	if !txn.SaleType.ContinuesCoverage() || txn.DurationDays() == 0 || txn.LicenseType == model.LicenseCommunity {
		return "", true
	}
	if previous == nil {
		return NoteNoPreviousPurchase, false
	}
	if previous.EffectiveEnd.AddDate(0, 0, 1).Before(txn.MaintenanceStart) {
		return fmt.Sprintf("Gap in coverage: previous purchase %s ended %s but this one starts %s",
			previous.Transaction.ID,
			previous.EffectiveEnd.Format(model.DateLayout),
			txn.MaintenanceStart.Format(model.DateLayout)), false
	}
	return "", true
}

func legacyStillHonored(legacyEnd, saleDate time.Time) (string, bool) {
	days := model.DaysBetween(legacyEnd, saleDate)
	if days > LegacyGraceDays {
		return fmt.Sprintf("Legacy pricing ended %s, %d days before the sale (limit %d)",
			legacyEnd.Format(model.DateLayout), days, LegacyGraceDays), false
	}
	return "", true
}

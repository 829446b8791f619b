package pricing

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/tollkeeper/internal/common"
	"github.com/Veraticus/tollkeeper/internal/model"
)

// Pricing constants for the marketplace.
const (
	// AnnualMonthsCharged is how many monthly prices an annual cloud license costs.
	AnnualMonthsCharged = 10.0
	// CloudVendorShare is the fraction of a cloud sale paid out to the vendor.
	CloudVendorShare = 0.85
	// OnPremVendorShare is the fraction of a Data Center or Server sale paid out to the vendor.
	OnPremVendorShare = 0.75

	daysPerYear     = 365
	shortMonthDays  = 29
	monthProrateDiv = 31.0

	cloudAcademicMultiplier         = 0.25
	serverAcademicMultiplier        = 0.5
	dataCenterAcademicMultiplierOld = 0.5
	dataCenterAcademicMultiplierNew = 0.25
	largeConfluenceAcademicMult     = 0.1
	largeConfluenceUsers            = 10000
)

// AcademicRegimeChange is the first sale date priced under the current Data Center
// academic discount.
var AcademicRegimeChange = model.Date(2024, time.February, 15)

// PreviousPrice is the computed price of the purchase an upgrade replaces.
type PreviousPrice struct {
	EffectiveEnd      time.Time
	PurchasePrice     float64
	DailyNominalPrice float64
}

// Input fully specifies one pricing scenario.
type Input struct {
	SaleDate                time.Time
	MaintenanceStart        time.Time
	MaintenanceEnd          time.Time
	Previous                *PreviousPrice
	SaleType                model.SaleType
	Hosting                 model.Hosting
	LicenseType             model.LicenseType
	Tier                    string
	BillingPeriod           model.BillingPeriod
	ParentProduct           string
	Tiers                   []model.PricingTier
	DeclaredDiscounts       []model.DeclaredDiscount
	ExpectedDiscount        float64
	PartnerDiscountFraction float64
	Sandbox                 bool
}

// Descriptor is one entry of the pricing audit trail.
type Descriptor struct {
	Step        string
	Description string
	Subtotal    float64
}

// Result is the expected price of a sale.
type Result struct {
	Descriptors       []Descriptor
	PurchasePrice     float64
	VendorPrice       float64
	DailyNominalPrice float64
}

type trail struct {
	descriptors []Descriptor
}

func (t *trail) add(step string, subtotal float64, format string, args ...any) {
	t.descriptors = append(t.descriptors, Descriptor{
		Step:        step,
		Description: fmt.Sprintf(format, args...),
		Subtotal:    subtotal,
	})
}

// Calculate computes the expected purchase price, vendor payout and daily
// nominal price for a sale. It has no side effects.
func Calculate(in Input) (Result, error) {
	t := &trail{}

	if reason, free := freeLicense(in); free {
		t.add("free", 0, "%s", reason)
		return Result{Descriptors: t.descriptors}, nil
	}

	userCount, err := ParseUserCount(in.Tier)
	if err != nil {
		return Result{}, err
	}
	if len(in.Tiers) == 0 {
		return Result{}, fmt.Errorf("%w: empty tier schedule", common.ErrNoPricingFound)
	}
	tiers := SortTiers(in.Tiers)
	duration := model.DaysBetween(in.MaintenanceStart, in.MaintenanceEnd)
	annual := in.BillingPeriod == model.BillingAnnual

	var basePrice float64
	if in.Hosting == model.HostingCloud {
		basePrice, err = cloudPrice(t, tiers, userCount, duration, in.BillingPeriod)
	} else {
		basePrice, err = onPremPrice(t, tiers, userCount, duration, in.BillingPeriod)
	}
	if err != nil {
		return Result{}, err
	}

	if in.SaleType.IsRefund() {
		basePrice = -basePrice
		t.add("refund", basePrice, "Refund negates the price")
	}

	if in.LicenseType == model.LicenseAcademic || in.LicenseType == model.LicenseCommunity {
		multiplier := academicMultiplier(in, userCount)
		basePrice *= multiplier
		t.add("academic", basePrice, "%s license pays %.0f%% of list price", in.LicenseType, multiplier*100)
	}

	if annual {
		basePrice = math.Ceil(basePrice)
		t.add("round", basePrice, "Annual price rounded up to whole currency")
	}

	purchasePrice := basePrice
	dailyNominalPrice := 0.0
	if duration > 0 {
		dailyNominalPrice = purchasePrice / float64(duration)
	}

	if in.SaleType.ChangesTier() && in.Previous != nil {
		overlap := model.DaysBetween(in.MaintenanceStart, in.Previous.EffectiveEnd)
		if overlap > duration {
			return Result{}, fmt.Errorf("%w: %d overlapping days for a %d day license",
				common.ErrOverlapExceedsDuration, overlap, duration)
		}
		if overlap > 0 && in.Previous.PurchasePrice > 0 {
			basePrice = dailyNominalPrice*float64(duration-overlap) +
				(dailyNominalPrice-in.Previous.DailyNominalPrice)*float64(overlap)
			purchasePrice = basePrice
			t.add("overlap", basePrice,
				"%d of %d days overlap the previous purchase; credited %.4f per day",
				overlap, duration, in.Previous.DailyNominalPrice)
		}
	}

	if in.ExpectedDiscount != 0 {
		discount := in.ExpectedDiscount
		if in.SaleType.IsRefund() {
			discount = -discount
		}
		basePrice -= discount
		t.add("discount", basePrice, "Discount of %.2f applied", in.ExpectedDiscount)
	}

	if in.PartnerDiscountFraction != 0 {
		partnerDiscount := basePrice * in.PartnerDiscountFraction
		basePrice -= partnerDiscount
		t.add("partner", basePrice, "Partner discount of %.0f%% (%.2f) applied",
			in.PartnerDiscountFraction*100, partnerDiscount)
	}

	if annual {
		basePrice = math.Round(basePrice)
		if in.Hosting != model.HostingCloud {
			// Second pass preserved from the marketplace's own computation.
			basePrice = math.Round(basePrice)
		}
		t.add("round", basePrice, "Annual price rounded after discounts")
	}
	purchasePrice = basePrice

	share := OnPremVendorShare
	if in.Hosting == model.HostingCloud {
		share = CloudVendorShare
	}
	vendorPrice := basePrice * share
	t.add("vendor", vendorPrice, "Vendor receives %.0f%% of the purchase price", share*100)

	return Result{
		Descriptors:       t.descriptors,
		PurchasePrice:     RoundCents(purchasePrice),
		VendorPrice:       RoundCents(vendorPrice),
		DailyNominalPrice: dailyNominalPrice,
	}, nil
}

// RoundCents rounds an amount to two decimal places.
func RoundCents(amount float64) float64 {
	return decimal.NewFromFloat(amount).Round(2).InexactFloat64()
}

func freeLicense(in Input) (string, bool) {
	switch {
	case in.Sandbox && in.Hosting == model.HostingCloud:
		return "Cloud sandbox licenses are free", true
	case in.LicenseType == model.LicenseOpenSource:
		return "Open source licenses are free", true
	case in.LicenseType == model.LicenseCommunity && in.Hosting == model.HostingDataCenter:
		return "Data Center community licenses are free", true
	}
	for _, d := range in.DeclaredDiscounts {
		if strings.EqualFold(d.Type, model.DiscountTypeDualLicensing) {
			return "Dual licensing grants the license for free", true
		}
	}
	return "", false
}

func cloudPrice(t *trail, tiers []model.PricingTier, userCount, duration int, period model.BillingPeriod) (float64, error) {
	if userCount == model.UnlimitedUsers {
		return 0, fmt.Errorf("%w: unlimited users is not sold on cloud", common.ErrInvalidTierFormat)
	}

	var price float64
	if userCount <= tiers[0].UserTier {
		price = tiers[0].Cost
		t.add("tier", price, "Flat price for up to %d users", tiers[0].UserTier)
	} else {
		price = ladderPrice(tiers, userCount)
		t.add("tier", price, "Per-user price for %d users", userCount)
	}

	switch period {
	case model.BillingAnnual:
		price *= AnnualMonthsCharged
		t.add("annual", price, "Annual billing charges %.0f months", AnnualMonthsCharged)
		price = price * float64(duration) / daysPerYear
		t.add("prorate", price, "Prorated to %d days", duration)
	case model.BillingMonthly:
		if duration < shortMonthDays {
			price = price * float64(duration+2) / monthProrateDiv
			if duration == 0 {
				price = 0
			}
			t.add("prorate", price, "Short month of %d days prorated", duration)
		}
	default:
		return 0, fmt.Errorf("%w: %q", common.ErrUnsupportedBillingPeriod, period)
	}
	return price, nil
}

func onPremPrice(t *trail, tiers []model.PricingTier, userCount, duration int, period model.BillingPeriod) (float64, error) {
	if period != model.BillingAnnual {
		return 0, fmt.Errorf("%w: %q for non-cloud hosting", common.ErrUnsupportedBillingPeriod, period)
	}

	bucket, ok := selectBucket(tiers, userCount)
	if !ok {
		return 0, fmt.Errorf("%w: no tier covers %d users", common.ErrNoPricingFound, userCount)
	}

	price := bucket.Cost
	t.add("tier", price, "Tier price for %d users", bucket.UserTier)
	if duration != daysPerYear {
		price = price * float64(duration) / daysPerYear
		t.add("prorate", price, "Prorated to %d days", duration)
	}
	return price, nil
}

func academicMultiplier(in Input, userCount int) float64 {
	switch in.Hosting {
	case model.HostingCloud:
		return cloudAcademicMultiplier
	case model.HostingServer:
		return serverAcademicMultiplier
	case model.HostingDataCenter:
		if strings.EqualFold(in.ParentProduct, "confluence") &&
			(userCount == model.UnlimitedUsers || userCount >= largeConfluenceUsers) {
			return largeConfluenceAcademicMult
		}
		if in.SaleDate.Before(AcademicRegimeChange) {
			return dataCenterAcademicMultiplierOld
		}
		return dataCenterAcademicMultiplierNew
	default:
		return 1
	}
}

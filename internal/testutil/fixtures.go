package testutil

import (
	"time"

	"github.com/Veraticus/tollkeeper/internal/model"
)

// Test catalog constants.
const (
	AddonKey      = "com.example.timesheets"
	ParentProduct = "jira"
)

// Day parses a YYYY-MM-DD date and panics on malformed input.
func Day(s string) time.Time {
	d, err := time.Parse(model.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return d
}

// DayPtr is Day returning a pointer, for schedule windows.
func DayPtr(s string) *time.Time {
	d := Day(s)
	return &d
}

// CloudTiers is a per-user cloud schedule: a flat fee up to 10 users, then
// marginal per-user prices.
func CloudTiers() []model.PricingTier {
	return []model.PricingTier{
		{UserTier: 10, Cost: 10},
		{UserTier: 100, Cost: 1.50},
		{UserTier: 250, Cost: 1.044},
		{UserTier: 1000, Cost: 0.50},
		{UserTier: 2500, Cost: 0.26},
		{UserTier: 5000, Cost: 0.1667},
		{UserTier: model.UnlimitedUsers, Cost: 0.10},
	}
}

// DataCenterTiers is an annual bucket schedule.
func DataCenterTiers() []model.PricingTier {
	return []model.PricingTier{
		{UserTier: 50, Cost: 1100},
		{UserTier: 100, Cost: 1650},
		{UserTier: 250, Cost: 2400},
		{UserTier: 500, Cost: 3400},
		{UserTier: 1000, Cost: 4950},
		{UserTier: 2000, Cost: 6600},
		{UserTier: 10000, Cost: 11500},
		{UserTier: model.UnlimitedUsers, Cost: 14000},
	}
}

// LegacyDataCenterTiers is the Data Center schedule that ended on 2024-12-31.
func LegacyDataCenterTiers() []model.PricingTier {
	return []model.PricingTier{
		{UserTier: 50, Cost: 1000},
		{UserTier: 100, Cost: 1500},
		{UserTier: 250, Cost: 2200},
		{UserTier: 500, Cost: 3000},
		{UserTier: 1000, Cost: 4500},
		{UserTier: 2000, Cost: 6000},
		{UserTier: 10000, Cost: 10500},
		{UserTier: model.UnlimitedUsers, Cost: 13000},
	}
}

// Schedules returns the standard test catalog: one open cloud schedule and a
// Data Center schedule that replaced a legacy one on 2025-01-01.
func Schedules() []model.PricingSchedule {
	return []model.PricingSchedule{
		{AddonKey: AddonKey, Hosting: model.HostingCloud, Tiers: CloudTiers()},
		{AddonKey: AddonKey, Hosting: model.HostingDataCenter, EndDate: DayPtr("2024-12-31"), Tiers: LegacyDataCenterTiers()},
		{AddonKey: AddonKey, Hosting: model.HostingDataCenter, StartDate: DayPtr("2025-01-01"), Tiers: DataCenterTiers()},
	}
}

// TransactionBuilder provides a fluent interface for constructing test transactions.
// Defaults describe a commercial annual Data Center sale of 500 users.
type TransactionBuilder struct {
	txn model.Transaction
}

// NewTransaction starts a builder for a transaction with the given id.
func NewTransaction(id string) *TransactionBuilder {
	return &TransactionBuilder{txn: model.Transaction{
		ID:            id,
		Version:       1,
		EntitlementID: "E-1",
		AddonKey:      AddonKey,
		ParentProduct: ParentProduct,
		SaleType:      model.SaleNew,
		SaleDate:      Day("2025-04-15"),
		Hosting:       model.HostingDataCenter,
		LicenseType:   model.LicenseCommercial,
		Tier:          "500 Users",
		BillingPeriod: model.BillingAnnual,
		Country:       "Germany",
	}}
}

// Sale sets the sale type and date.
func (b *TransactionBuilder) Sale(saleType model.SaleType, date string) *TransactionBuilder {
	b.txn.SaleType = saleType
	b.txn.SaleDate = Day(date)
	return b
}

// Window sets the maintenance period.
func (b *TransactionBuilder) Window(start, end string) *TransactionBuilder {
	b.txn.MaintenanceStart = Day(start)
	b.txn.MaintenanceEnd = Day(end)
	return b
}

// Entitlement sets the entitlement the transaction belongs to.
func (b *TransactionBuilder) Entitlement(id string) *TransactionBuilder {
	b.txn.EntitlementID = id
	return b
}

// Cloud switches the sale to cloud hosting.
func (b *TransactionBuilder) Cloud() *TransactionBuilder {
	b.txn.Hosting = model.HostingCloud
	return b
}

// Hosting sets the hosting type.
func (b *TransactionBuilder) Hosting(h model.Hosting) *TransactionBuilder {
	b.txn.Hosting = h
	return b
}

// Monthly switches the sale to monthly billing.
func (b *TransactionBuilder) Monthly() *TransactionBuilder {
	b.txn.BillingPeriod = model.BillingMonthly
	return b
}

// Tier sets the tier descriptor.
func (b *TransactionBuilder) Tier(tier string) *TransactionBuilder {
	b.txn.Tier = tier
	return b
}

// License sets the license type.
func (b *TransactionBuilder) License(l model.LicenseType) *TransactionBuilder {
	b.txn.LicenseType = l
	return b
}

// Amounts sets the recorded purchase price and vendor amount.
func (b *TransactionBuilder) Amounts(purchase, vendor float64) *TransactionBuilder {
	b.txn.PurchasePrice = purchase
	b.txn.VendorAmount = vendor
	return b
}

// Country sets the customer country.
func (b *TransactionBuilder) Country(country string) *TransactionBuilder {
	b.txn.Country = country
	return b
}

// Partner sets the partner name.
func (b *TransactionBuilder) Partner(name string) *TransactionBuilder {
	b.txn.PartnerName = name
	return b
}

// Version sets the record version.
func (b *TransactionBuilder) Version(v int) *TransactionBuilder {
	b.txn.Version = v
	return b
}

// Build returns the transaction.
func (b *TransactionBuilder) Build() model.Transaction {
	return b.txn
}

// Declare adds a discount stated on the sale record.
func (b *TransactionBuilder) Declare(discountType string, amount float64) *TransactionBuilder {
	b.txn.DeclaredDiscounts = append(b.txn.DeclaredDiscounts, model.DeclaredDiscount{Type: discountType, Amount: amount})
	return b
}

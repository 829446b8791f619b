// Package model defines the core domain models used throughout the application.
package model

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"time"
)

// SaleType is the kind of marketplace sale a transaction records.
type SaleType string

// Sale type constants.
const (
	SaleNew       SaleType = "New"
	SaleUpgrade   SaleType = "Upgrade"
	SaleRenewal   SaleType = "Renewal"
	SaleDowngrade SaleType = "Downgrade"
	SaleRefund    SaleType = "Refund"
)

// ParseSaleType converts a marketplace sale type string into a SaleType.
func ParseSaleType(s string) (SaleType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "new":
		return SaleNew, nil
	case "upgrade":
		return SaleUpgrade, nil
	case "renewal":
		return SaleRenewal, nil
	case "downgrade":
		return SaleDowngrade, nil
	case "refund":
		return SaleRefund, nil
	default:
		return "", fmt.Errorf("unknown sale type %q", s)
	}
}

// IsRefund reports whether the sale type reverses an earlier sale.
func (s SaleType) IsRefund() bool {
	return s == SaleRefund
}

// ChangesTier reports whether the sale moves an existing license to a different tier.
func (s SaleType) ChangesTier() bool {
	switch s {
	case SaleUpgrade, SaleDowngrade:
		return true
	case SaleNew, SaleRenewal, SaleRefund:
		return false
	default:
		return false
	}
}

// ContinuesCoverage reports whether the sale must follow an earlier purchase without a gap.
func (s SaleType) ContinuesCoverage() bool {
	switch s {
	case SaleUpgrade, SaleRenewal:
		return true
	case SaleNew, SaleDowngrade, SaleRefund:
		return false
	default:
		return false
	}
}

// Hosting is the deployment type of the licensed product.
type Hosting string

// Hosting constants.
const (
	HostingCloud      Hosting = "Cloud"
	HostingDataCenter Hosting = "DataCenter"
	HostingServer     Hosting = "Server"
)

// LicenseType is the commercial category of a license.
type LicenseType string

// License type constants.
const (
	LicenseCommercial LicenseType = "Commercial"
	LicenseAcademic   LicenseType = "Academic"
	LicenseCommunity  LicenseType = "Community"
	LicenseOpenSource LicenseType = "OpenSource"
)

// BillingPeriod is how often the customer is billed.
type BillingPeriod string

// Billing period constants.
const (
	BillingMonthly BillingPeriod = "Monthly"
	BillingAnnual  BillingPeriod = "Annual"
)

// DiscountTypeDualLicensing marks a license granted because the customer already
// holds a license for another hosting type.
const DiscountTypeDualLicensing = "DUAL_LICENSING"

// DeclaredDiscount is a discount stated on the sale record itself.
type DeclaredDiscount struct {
	Type   string  `json:"type"`
	Reason string  `json:"reason,omitempty"`
	Amount float64 `json:"amount"`
}

// Transaction represents a single marketplace sale record at a given version.
type Transaction struct {
	SaleDate          time.Time
	MaintenanceStart  time.Time
	MaintenanceEnd    time.Time
	ID                string
	EntitlementID     string
	AddonKey          string
	ParentProduct     string
	SaleType          SaleType
	Hosting           Hosting
	LicenseType       LicenseType
	Tier              string
	BillingPeriod     BillingPeriod
	Country           string
	PartnerName       string
	DeclaredDiscounts []DeclaredDiscount
	VendorAmount      float64
	PurchasePrice     float64
	Version           int
	Sandbox           bool
}

// DurationDays returns the number of whole days between maintenance start and end.
func (t *Transaction) DurationDays() int {
	return DaysBetween(t.MaintenanceStart, t.MaintenanceEnd)
}

// GenerateHash creates a fingerprint of the pricing-relevant fields so that
// re-imported records only get a new version when something actually changed.
func (t *Transaction) GenerateHash() string {
	data := fmt.Sprintf("%s:%s:%s:%s:%s:%s:%s:%s:%s:%s:%s:%.2f:%.2f:%s:%s:%t:%v",
		t.EntitlementID,
		t.AddonKey,
		t.ParentProduct,
		t.SaleType,
		t.SaleDate.Format(DateLayout),
		t.MaintenanceStart.Format(DateLayout),
		t.MaintenanceEnd.Format(DateLayout),
		t.Hosting,
		t.LicenseType,
		t.Tier,
		t.BillingPeriod,
		t.VendorAmount,
		t.PurchasePrice,
		t.Country,
		t.PartnerName,
		t.Sandbox,
		t.DeclaredDiscounts)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// DateLayout is the calendar date format used for sale and maintenance dates.
const DateLayout = "2006-01-02"

// Date returns midnight UTC for the given calendar day.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the whole calendar days from a to b (negative if b is before a).
func DaysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}

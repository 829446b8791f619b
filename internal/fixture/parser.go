// Package fixture reads normalized sales, pricing catalog and discount data
// from JSON files and loads them into storage.
package fixture

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/Veraticus/tollkeeper/internal/model"
	"github.com/Veraticus/tollkeeper/internal/service"
)

// Bundle is the decoded content of one fixture file.
type Bundle struct {
	Transactions []model.Transaction
	Schedules    []model.PricingSchedule
	Resellers    []model.Reseller
	Adjustments  []model.DiscountAdjustment
}

type fileFormat struct {
	Transactions []transactionRecord `json:"transactions"`
	Pricing      []scheduleRecord    `json:"pricing"`
	Resellers    []resellerRecord    `json:"resellers"`
	Adjustments  []adjustmentRecord  `json:"adjustments"`
}

type transactionRecord struct {
	ID                string                   `json:"id"`
	EntitlementID     string                   `json:"entitlement_id"`
	AddonKey          string                   `json:"addon_key"`
	ParentProduct     string                   `json:"parent_product"`
	SaleType          string                   `json:"sale_type"`
	SaleDate          string                   `json:"sale_date"`
	MaintenanceStart  string                   `json:"maintenance_start"`
	MaintenanceEnd    string                   `json:"maintenance_end"`
	Hosting           string                   `json:"hosting"`
	LicenseType       string                   `json:"license_type"`
	Tier              string                   `json:"tier"`
	BillingPeriod     string                   `json:"billing_period"`
	Country           string                   `json:"country"`
	PartnerName       string                   `json:"partner_name"`
	DeclaredDiscounts []model.DeclaredDiscount `json:"discounts"`
	VendorAmount      float64                  `json:"vendor_amount"`
	PurchasePrice     float64                  `json:"purchase_price"`
	Version           int                      `json:"version"`
	Sandbox           bool                     `json:"sandbox"`
}

type scheduleRecord struct {
	AddonKey  string              `json:"addon_key"`
	Hosting   string              `json:"hosting"`
	StartDate string              `json:"start_date"`
	EndDate   string              `json:"end_date"`
	Tiers     []model.PricingTier `json:"tiers"`
}

type resellerRecord struct {
	Name            string  `json:"name"`
	DiscountPercent float64 `json:"discount_percent"`
}

type adjustmentRecord struct {
	TransactionID string  `json:"transaction_id"`
	Reason        string  `json:"reason"`
	Amount        float64 `json:"amount"`
}

// Parser decodes fixture files.
type Parser struct{}

// NewParser creates a new fixture parser.
func NewParser() *Parser {
	return &Parser{}
}

// ParseFile decodes a fixture file. Unknown fields are rejected so typos in
// hand-written fixtures surface early.
func (p *Parser) ParseFile(ctx context.Context, reader io.Reader) (*Bundle, error) {
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()

	var raw fileFormat
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode fixture: %w", err)
	}

	bundle := &Bundle{}
	for i, rec := range raw.Transactions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		txn, err := p.convertTransaction(rec)
		if err != nil {
			return nil, fmt.Errorf("transaction %d (%s): %w", i, rec.ID, err)
		}
		bundle.Transactions = append(bundle.Transactions, txn)
	}

	for i, rec := range raw.Pricing {
		schedule, err := p.convertSchedule(rec)
		if err != nil {
			return nil, fmt.Errorf("pricing schedule %d (%s): %w", i, rec.AddonKey, err)
		}
		bundle.Schedules = append(bundle.Schedules, schedule)
	}

	for _, rec := range raw.Resellers {
		bundle.Resellers = append(bundle.Resellers, model.Reseller{
			Name:            strings.TrimSpace(rec.Name),
			DiscountPercent: rec.DiscountPercent,
		})
	}

	for _, rec := range raw.Adjustments {
		bundle.Adjustments = append(bundle.Adjustments, model.DiscountAdjustment(rec))
	}

	slog.Debug("Parsed fixture",
		"transactions", len(bundle.Transactions),
		"schedules", len(bundle.Schedules),
		"resellers", len(bundle.Resellers),
		"adjustments", len(bundle.Adjustments))

	return bundle, nil
}

func (p *Parser) convertTransaction(rec transactionRecord) (model.Transaction, error) {
	saleType, err := model.ParseSaleType(rec.SaleType)
	if err != nil {
		return model.Transaction{}, err
	}
	hosting, err := parseHosting(rec.Hosting)
	if err != nil {
		return model.Transaction{}, err
	}

	txn := model.Transaction{
		ID:                strings.TrimSpace(rec.ID),
		EntitlementID:     strings.TrimSpace(rec.EntitlementID),
		AddonKey:          strings.TrimSpace(rec.AddonKey),
		ParentProduct:     rec.ParentProduct,
		SaleType:          saleType,
		Hosting:           hosting,
		LicenseType:       model.LicenseType(rec.LicenseType),
		Tier:              strings.TrimSpace(rec.Tier),
		BillingPeriod:     model.BillingPeriod(rec.BillingPeriod),
		Country:           rec.Country,
		PartnerName:       rec.PartnerName,
		DeclaredDiscounts: rec.DeclaredDiscounts,
		VendorAmount:      rec.VendorAmount,
		PurchasePrice:     rec.PurchasePrice,
		Version:           rec.Version,
		Sandbox:           rec.Sandbox,
	}

	if txn.SaleDate, err = parseDate("sale_date", rec.SaleDate); err != nil {
		return txn, err
	}
	if txn.MaintenanceStart, err = parseDate("maintenance_start", rec.MaintenanceStart); err != nil {
		return txn, err
	}
	if txn.MaintenanceEnd, err = parseDate("maintenance_end", rec.MaintenanceEnd); err != nil {
		return txn, err
	}
	return txn, nil
}

func (p *Parser) convertSchedule(rec scheduleRecord) (model.PricingSchedule, error) {
	hosting, err := parseHosting(rec.Hosting)
	if err != nil {
		return model.PricingSchedule{}, err
	}

	schedule := model.PricingSchedule{
		AddonKey: strings.TrimSpace(rec.AddonKey),
		Hosting:  hosting,
		Tiers:    rec.Tiers,
	}
	if rec.StartDate != "" {
		start, err := parseDate("start_date", rec.StartDate)
		if err != nil {
			return schedule, err
		}
		schedule.StartDate = &start
	}
	if rec.EndDate != "" {
		end, err := parseDate("end_date", rec.EndDate)
		if err != nil {
			return schedule, err
		}
		schedule.EndDate = &end
	}
	return schedule, nil
}

func parseHosting(s string) (model.Hosting, error) {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", "")) {
	case "cloud":
		return model.HostingCloud, nil
	case "datacenter":
		return model.HostingDataCenter, nil
	case "server":
		return model.HostingServer, nil
	default:
		return "", fmt.Errorf("unknown hosting %q", s)
	}
}

func parseDate(field, value string) (time.Time, error) {
	t, err := time.Parse(model.DateLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be YYYY-MM-DD, got %q", field, value)
	}
	return t, nil
}

// Summary counts what Load wrote.
type Summary struct {
	Transactions int
	Schedules    int
	Resellers    int
	Adjustments  int
}

// Load writes a bundle to storage. Catalog and discount data are written before
// transactions so a partially loaded file never leaves sales without prices.
func Load(ctx context.Context, store service.Storage, bundle *Bundle) (Summary, error) {
	var summary Summary

	for i := range bundle.Schedules {
		if err := store.SavePricingSchedule(ctx, &bundle.Schedules[i]); err != nil {
			return summary, err
		}
		summary.Schedules++
	}
	for i := range bundle.Resellers {
		if err := store.SaveReseller(ctx, &bundle.Resellers[i]); err != nil {
			return summary, err
		}
		summary.Resellers++
	}
	for i := range bundle.Adjustments {
		if err := store.SaveDiscountAdjustment(ctx, &bundle.Adjustments[i]); err != nil {
			return summary, err
		}
		summary.Adjustments++
	}
	if len(bundle.Transactions) > 0 {
		if err := store.SaveTransactions(ctx, bundle.Transactions); err != nil {
			return summary, err
		}
		summary.Transactions = len(bundle.Transactions)
	}

	return summary, nil
}

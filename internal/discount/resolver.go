// Package discount works out the discount a sale is expected to carry.
package discount

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/Veraticus/tollkeeper/internal/model"
	"github.com/Veraticus/tollkeeper/internal/service"
)

// Source indicates where an expected discount came from.
type Source string

const (
	// SourceNone means no discount applies.
	SourceNone Source = "none"
	// SourceExplicit means the discount was recorded as an adjustment for the transaction.
	SourceExplicit Source = "explicit"
	// SourceReseller means the discount was estimated from a reseller rule.
	SourceReseller Source = "reseller"
)

// Discount is the expected discount for one transaction. Amount is always positive.
type Discount struct {
	Source   Source
	Reseller string
	Reason   string
	Amount   float64
}

// Trusted reports whether the amount came from an explicit adjustment rather than an estimate.
func (d Discount) Trusted() bool {
	return d.Source == SourceExplicit
}

// Resolver computes expected discounts.
type Resolver struct {
	reader service.DiscountReader
}

// NewResolver creates a resolver backed by the given discount reader.
func NewResolver(reader service.DiscountReader) *Resolver {
	return &Resolver{reader: reader}
}

// Resolve returns the expected discount for txn. An explicit adjustment is
// authoritative; otherwise a matching reseller's percentage is used to back out
// the discount from the recorded, already discounted, purchase price.
func (r *Resolver) Resolve(ctx context.Context, txn model.Transaction) (Discount, error) {
	adjustment, err := r.reader.DiscountAdjustment(ctx, txn.ID)
	if err != nil {
		return Discount{}, fmt.Errorf("failed to load discount adjustment for %s: %w", txn.ID, err)
	}
	return r.resolve(ctx, txn, adjustment)
}

// ResolveWithAdjustment is Resolve for callers that already loaded the explicit adjustment.
func (r *Resolver) ResolveWithAdjustment(ctx context.Context, txn model.Transaction, adjustment *model.DiscountAdjustment) (Discount, error) {
	return r.resolve(ctx, txn, adjustment)
}

func (r *Resolver) resolve(ctx context.Context, txn model.Transaction, adjustment *model.DiscountAdjustment) (Discount, error) {
	if adjustment != nil {
		return Discount{
			Source: SourceExplicit,
			Reason: adjustment.Reason,
			Amount: math.Abs(adjustment.Amount),
		}, nil
	}

	partner := strings.TrimSpace(txn.PartnerName)
	if partner == "" {
		return Discount{Source: SourceNone}, nil
	}

	resellers, err := r.reader.FindResellers(ctx, partner)
	if err != nil {
		return Discount{}, fmt.Errorf("failed to look up reseller %q: %w", partner, err)
	}

	reseller := MatchReseller(partner, resellers)
	if reseller == nil {
		return Discount{Source: SourceNone}, nil
	}

	d := reseller.DiscountFraction()
	if d <= 0 || d >= 1 {
		return Discount{Source: SourceNone}, nil
	}

	price := txn.PurchasePrice
	return Discount{
		Source:   SourceReseller,
		Reseller: reseller.Name,
		Reason:   fmt.Sprintf("%s resells at %.0f%% off", reseller.Name, reseller.DiscountPercent),
		Amount:   math.Abs(price/(1-d) - price),
	}, nil
}

// MatchReseller picks the reseller for a partner name, case-insensitively.
// An exact name match wins over a substring match in either direction.
func MatchReseller(partnerName string, resellers []model.Reseller) *model.Reseller {
	partner := strings.ToLower(strings.TrimSpace(partnerName))
	if partner == "" {
		return nil
	}

	var partial *model.Reseller
	for i := range resellers {
		name := strings.ToLower(strings.TrimSpace(resellers[i].Name))
		if name == "" {
			continue
		}
		if name == partner {
			return &resellers[i]
		}
		if partial == nil && namesOverlap(partner, name) {
			partial = &resellers[i]
		}
	}
	return partial
}

func namesOverlap(a, b string) bool {
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// Package validation reconciles recorded marketplace sale prices against the
// prices the catalog says should have been charged.
package validation

import (
	"fmt"
	"strings"

	"github.com/Veraticus/tollkeeper/internal/discount"
	"github.com/Veraticus/tollkeeper/internal/model"
)

// LegacyHypothesis states which prices, if any, were billed under the legacy schedule.
type LegacyHypothesis struct {
	Current  bool
	Previous bool
}

// Uses reports whether any legacy schedule is assumed.
func (l LegacyHypothesis) Uses() bool {
	return l.Current || l.Previous
}

// Hypothesis is one combination of pricing assumptions the records do not state.
type Hypothesis struct {
	Legacy          LegacyHypothesis
	PartnerFraction float64
	ApplyDiscount   bool
}

// Notes describes the assumptions a hypothesis makes, for the audit trail.
func (h Hypothesis) Notes(d discount.Discount) []string {
	var notes []string
	if h.Legacy.Current {
		notes = append(notes, "Legacy pricing applied to this sale")
	}
	if h.Legacy.Previous {
		notes = append(notes, "Legacy pricing applied to the previous purchase")
	}
	if h.ApplyDiscount {
		note := fmt.Sprintf("Expected %s discount of %.2f applied", d.Source, d.Amount)
		if d.Reseller != "" {
			note += fmt.Sprintf(" (reseller %s)", d.Reseller)
		}
		notes = append(notes, note)
	}
	if h.PartnerFraction != 0 {
		notes = append(notes, fmt.Sprintf("Solutions partner discount of %.0f%% applied", h.PartnerFraction*100))
	}
	return notes
}

func (h Hypothesis) String() string {
	var parts []string
	if h.Legacy.Current {
		parts = append(parts, "legacy")
	}
	if h.Legacy.Previous {
		parts = append(parts, "previous-legacy")
	}
	if h.ApplyDiscount {
		parts = append(parts, "discount")
	}
	if h.PartnerFraction != 0 {
		parts = append(parts, fmt.Sprintf("partner-%.0f%%", h.PartnerFraction*100))
	}
	if len(parts) == 0 {
		return "list price"
	}
	return strings.Join(parts, "+")
}

// Legacy priority lists. Both start and end on "no legacy" so the reported
// fallback is always the canonical computation.
var (
	legacyPriority = []LegacyHypothesis{
		{},
		{Current: true},
		{},
	}
	tierChangeLegacyPriority = []LegacyHypothesis{
		{},
		{Current: true},
		{Previous: true},
		{Current: true, Previous: true},
		{},
	}
)

// Partner discount candidates by hosting. Zero comes first so list price is
// always tried before a partner discount is assumed.
var (
	cloudPartnerFractions  = []float64{0, 0.05, 0.10}
	onPremPartnerFractions = []float64{0, 0.10, 0.15}
)

// LegacyHypotheses returns the legacy assumptions to try for a sale type.
func LegacyHypotheses(saleType model.SaleType) []LegacyHypothesis {
	if saleType.ChangesTier() {
		return tierChangeLegacyPriority
	}
	return legacyPriority
}

// DiscountHypotheses returns whether to apply the resolved discount, in order.
// A trusted discount ends on applying it; an estimate ends on leaving it out so
// an unconfirmed guess never shapes the reported discrepancy.
func DiscountHypotheses(d discount.Discount) []bool {
	switch {
	case d.Amount == 0:
		return []bool{false}
	case d.Trusted():
		return []bool{true, false, true}
	default:
		return []bool{true, false}
	}
}

// PartnerHypotheses returns the partner discount fractions to try.
func PartnerHypotheses(hosting model.Hosting, optedOut bool) []float64 {
	switch {
	case optedOut:
		return []float64{0}
	case hosting == model.HostingCloud:
		return cloudPartnerFractions
	default:
		return onPremPartnerFractions
	}
}

// Combinations returns the Cartesian product of the axes in search order:
// legacy outermost, then discount, then partner fraction.
func Combinations(legacy []LegacyHypothesis, discounts []bool, partners []float64) []Hypothesis {
	out := make([]Hypothesis, 0, len(legacy)*len(discounts)*len(partners))
	for _, l := range legacy {
		for _, d := range discounts {
			for _, p := range partners {
				out = append(out, Hypothesis{Legacy: l, ApplyDiscount: d, PartnerFraction: p})
			}
		}
	}
	return out
}

// Canonical is the combination reported when no hypothesis matches: the last
// entry of the legacy and discount axes with no partner discount.
func Canonical(legacy []LegacyHypothesis, discounts []bool) Hypothesis {
	return Hypothesis{
		Legacy:        legacy[len(legacy)-1],
		ApplyDiscount: discounts[len(discounts)-1],
	}
}

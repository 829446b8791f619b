// Package entitlement reconstructs purchase continuity within one entitlement's
// transaction history.
package entitlement

import (
	"sort"
	"time"

	"github.com/Veraticus/tollkeeper/internal/model"
)

// PreviousPurchase is the transaction whose coverage immediately precedes another,
// with its maintenance end adjusted for refunds.
type PreviousPurchase struct {
	EffectiveEnd time.Time
	Transaction  model.Transaction
}

// coverage tracks a purchase's effective maintenance window while refunds are applied.
type coverage struct {
	effectiveEnd time.Time
	txn          model.Transaction
	refunded     bool
}

func (c *coverage) start() time.Time {
	return c.txn.MaintenanceStart
}

func (c *coverage) zeroDay() bool {
	return !c.effectiveEnd.After(c.start())
}

// FindPreviousPurchase returns the purchase that current continues, or nil.
// Refunds sold after current are ignored, so later history never changes the
// answer for an earlier sale.
func FindPreviousPurchase(current model.Transaction, history []model.Transaction) *PreviousPurchase {
	var purchases []*coverage
	var refunds []model.Transaction

	for _, txn := range history {
		if txn.ID == current.ID {
			continue
		}
		if txn.SaleType.IsRefund() {
			if !txn.SaleDate.After(current.SaleDate) {
				refunds = append(refunds, txn)
			}
			continue
		}
		purchases = append(purchases, &coverage{txn: txn, effectiveEnd: txn.MaintenanceEnd})
	}

	sortBySale(refunds)
	sort.SliceStable(purchases, func(i, j int) bool {
		return saleBefore(purchases[i].txn, purchases[j].txn)
	})

	for _, refund := range refunds {
		if target := refundTarget(refund, purchases); target != nil {
			applyRefund(target, refund)
		}
	}

	var best *coverage
	for _, c := range purchases {
		if c.refunded || c.txn.SaleDate.After(current.SaleDate) {
			continue
		}
		if c.effectiveEnd.After(current.MaintenanceEnd) {
			continue
		}
		if best == nil || precedes(best, c) {
			best = c
		}
	}

	if best == nil {
		return nil
	}
	return &PreviousPurchase{Transaction: best.txn, EffectiveEnd: best.effectiveEnd}
}

// refundTarget picks the purchase a refund reverses: same tier, sold no later than
// the refund, with the largest day overlap. Ties go to the first one found.
func refundTarget(refund model.Transaction, purchases []*coverage) *coverage {
	var target *coverage
	bestOverlap := 0

	for _, c := range purchases {
		if c.refunded || c.txn.Tier != refund.Tier || c.txn.SaleDate.After(refund.SaleDate) {
			continue
		}
		overlap := overlapDays(c.start(), c.effectiveEnd, refund.MaintenanceStart, refund.MaintenanceEnd)
		if overlap > bestOverlap {
			target = c
			bestOverlap = overlap
		}
	}
	return target
}

func applyRefund(c *coverage, refund model.Transaction) {
	if !refund.MaintenanceStart.After(c.start()) && !refund.MaintenanceEnd.Before(c.effectiveEnd) {
		c.refunded = true
		c.effectiveEnd = c.start()
		return
	}

	newEnd := refund.MaintenanceEnd
	if refund.MaintenanceStart.After(c.start()) {
		newEnd = refund.MaintenanceStart
	}
	if newEnd.Before(c.effectiveEnd) {
		c.effectiveEnd = newEnd
	}
}

// precedes reports whether candidate is a better previous purchase than best.
// Later effective ends win; on a tie real coverage beats a zero-day re-anchor,
// then the later sale wins.
func precedes(best, candidate *coverage) bool {
	if !candidate.effectiveEnd.Equal(best.effectiveEnd) {
		return candidate.effectiveEnd.After(best.effectiveEnd)
	}
	if best.zeroDay() != candidate.zeroDay() {
		return best.zeroDay()
	}
	return candidate.txn.SaleDate.After(best.txn.SaleDate)
}

func overlapDays(aStart, aEnd, bStart, bEnd time.Time) int {
	start := aStart
	if bStart.After(start) {
		start = bStart
	}
	end := aEnd
	if bEnd.Before(end) {
		end = bEnd
	}
	if days := model.DaysBetween(start, end); days > 0 {
		return days
	}
	return 0
}

func saleBefore(a, b model.Transaction) bool {
	if !a.SaleDate.Equal(b.SaleDate) {
		return a.SaleDate.Before(b.SaleDate)
	}
	return a.ID < b.ID
}

func sortBySale(txns []model.Transaction) {
	sort.SliceStable(txns, func(i, j int) bool {
		return saleBefore(txns[i], txns[j])
	})
}

package model

// Reseller is a partner whose sales are known to carry a fixed discount.
type Reseller struct {
	Name            string
	DiscountPercent float64
	ID              int64
}

// DiscountFraction returns the reseller discount as a fraction of the list price.
func (r *Reseller) DiscountFraction() float64 {
	return r.DiscountPercent / 100
}

// DiscountAdjustment is an explicitly recorded discount for one transaction.
// Amount is always positive; its sign is applied by the calculator.
type DiscountAdjustment struct {
	TransactionID string
	Reason        string
	Amount        float64
}

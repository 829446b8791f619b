package model

import "time"

// UnlimitedUsers is the user tier value for an unlimited-user license.
const UnlimitedUsers = -1

// PricingTier is one step in a tier schedule.
type PricingTier struct {
	UserTier int     `json:"user_tier"`
	Cost     float64 `json:"cost"`
}

// IsUnlimited reports whether the tier covers an unlimited number of users.
func (t PricingTier) IsUnlimited() bool {
	return t.UserTier == UnlimitedUsers
}

// PricingSchedule is the tier list for one product and hosting type over a validity window.
// A nil StartDate or EndDate leaves that side of the window open; both bounds are inclusive.
type PricingSchedule struct {
	StartDate *time.Time
	EndDate   *time.Time
	AddonKey  string
	Hosting   Hosting
	Tiers     []PricingTier
	ID        int64
}

// Covers reports whether the schedule's window contains the given date.
func (s *PricingSchedule) Covers(date time.Time) bool {
	switch {
	case s.StartDate == nil && s.EndDate == nil:
		return true
	case s.StartDate == nil:
		return !date.After(*s.EndDate)
	case s.EndDate == nil:
		return !date.Before(*s.StartDate)
	default:
		return !date.Before(*s.StartDate) && !date.After(*s.EndDate)
	}
}

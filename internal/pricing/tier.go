// Package pricing resolves tier schedules from the catalog and computes the
// price a marketplace sale should have been charged.
package pricing

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/Veraticus/tollkeeper/internal/common"
	"github.com/Veraticus/tollkeeper/internal/model"
)

const unlimitedTierDescriptor = "Unlimited Users"

// tierPattern matches "500 Users" and "Per Unit Pricing (173 Users)".
var tierPattern = regexp.MustCompile(`^(?:Per Unit Pricing \()?(\d+) Users\)?$`)

// ParseUserCount extracts the licensed user count from a tier descriptor.
// Unlimited tiers return model.UnlimitedUsers.
func ParseUserCount(tier string) (int, error) {
	tier = strings.TrimSpace(tier)
	if tier == unlimitedTierDescriptor {
		return model.UnlimitedUsers, nil
	}

	matches := tierPattern.FindStringSubmatch(tier)
	if matches == nil {
		return 0, fmt.Errorf("%w: %q", common.ErrInvalidTierFormat, tier)
	}

	users, err := strconv.Atoi(matches[1])
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", common.ErrInvalidTierFormat, tier, err)
	}
	return users, nil
}

// SortTiers orders tiers by ascending user count with the unlimited tier last.
func SortTiers(tiers []model.PricingTier) []model.PricingTier {
	sorted := make([]model.PricingTier, len(tiers))
	copy(sorted, tiers)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.IsUnlimited() != b.IsUnlimited() {
			return b.IsUnlimited()
		}
		return a.UserTier < b.UserTier
	})
	return sorted
}

// selectBucket returns the tier that prices a non-cloud license of the given size.
func selectBucket(tiers []model.PricingTier, userCount int) (model.PricingTier, bool) {
	for _, tier := range tiers {
		if userCount == model.UnlimitedUsers {
			if tier.IsUnlimited() {
				return tier, true
			}
			continue
		}
		if !tier.IsUnlimited() && tier.UserTier >= userCount {
			return tier, true
		}
	}
	return model.PricingTier{}, false
}

// ladderPrice sums a cloud per-user price. The first tier is a flat fee for up to
// its threshold; each following tier prices its marginal users at its own rate
// and the unlimited tier absorbs whatever remains.
func ladderPrice(tiers []model.PricingTier, userCount int) float64 {
	price := tiers[0].Cost
	covered := tiers[0].UserTier
	remaining := userCount - covered

	for _, tier := range tiers[1:] {
		if remaining <= 0 {
			break
		}
		bracket := remaining
		if !tier.IsUnlimited() {
			if size := tier.UserTier - covered; bracket > size {
				bracket = size
			}
			covered = tier.UserTier
		}
		price += float64(bracket) * tier.Cost
		remaining -= bracket
	}

	if remaining > 0 {
		price += float64(remaining) * tiers[len(tiers)-1].Cost
	}
	return price
}

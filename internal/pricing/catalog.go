package pricing

import (
	"context"
	"fmt"
	"time"

	"github.com/Veraticus/tollkeeper/internal/common"
	"github.com/Veraticus/tollkeeper/internal/model"
	"github.com/Veraticus/tollkeeper/internal/service"
)

// TierLookup is the tier schedule active on a sale date plus, when one exists,
// the schedule that ended the day before it started.
type TierLookup struct {
	LegacyEndDate *time.Time
	Tiers         []model.PricingTier
	LegacyTiers   []model.PricingTier
}

// HasLegacy reports whether a legacy schedule precedes the active one.
func (l *TierLookup) HasLegacy() bool {
	return l != nil && l.LegacyEndDate != nil && len(l.LegacyTiers) > 0
}

type catalogKey struct {
	addonKey string
	hosting  model.Hosting
	saleDate string
}

// Catalog resolves tier schedules and memoizes them for the duration of one run.
type Catalog struct {
	reader service.PricingReader
	cache  map[catalogKey]*TierLookup
}

// NewCatalog creates a catalog backed by the given pricing reader.
func NewCatalog(reader service.PricingReader) *Catalog {
	return &Catalog{
		reader: reader,
		cache:  make(map[catalogKey]*TierLookup),
	}
}

// Reset clears memoized lookups. Runs call it before their first lookup.
func (c *Catalog) Reset() {
	c.cache = make(map[catalogKey]*TierLookup)
}

// Tiers returns the schedule for a product and hosting type that covers saleDate.
func (c *Catalog) Tiers(ctx context.Context, addonKey string, hosting model.Hosting, saleDate time.Time) (*TierLookup, error) {
	key := catalogKey{addonKey: addonKey, hosting: hosting, saleDate: saleDate.Format(model.DateLayout)}
	if lookup, ok := c.cache[key]; ok {
		return lookup, nil
	}

	schedules, err := c.reader.PricingSchedules(ctx, addonKey, hosting)
	if err != nil {
		return nil, fmt.Errorf("failed to load pricing for %s/%s: %w", addonKey, hosting, err)
	}

	active := selectSchedule(schedules, saleDate)
	if active == nil {
		return nil, fmt.Errorf("%w: %s %s on %s", common.ErrNoPricingFound, addonKey, hosting, key.saleDate)
	}

	lookup := &TierLookup{Tiers: SortTiers(active.Tiers)}
	if active.StartDate != nil {
		if legacy := findLegacy(schedules, *active.StartDate); legacy != nil {
			end := *legacy.EndDate
			lookup.LegacyTiers = SortTiers(legacy.Tiers)
			lookup.LegacyEndDate = &end
		}
	}

	c.cache[key] = lookup
	return lookup, nil
}

// selectSchedule picks the covering schedule with the latest start date; an
// open start sorts before any closed one.
func selectSchedule(schedules []model.PricingSchedule, saleDate time.Time) *model.PricingSchedule {
	var best *model.PricingSchedule
	for i := range schedules {
		s := &schedules[i]
		if !s.Covers(saleDate) {
			continue
		}
		if best == nil || startsLater(s, best) {
			best = s
		}
	}
	return best
}

func startsLater(a, b *model.PricingSchedule) bool {
	if a.StartDate == nil {
		return false
	}
	if b.StartDate == nil {
		return true
	}
	return a.StartDate.After(*b.StartDate)
}

func findLegacy(schedules []model.PricingSchedule, activeStart time.Time) *model.PricingSchedule {
	dayBefore := activeStart.AddDate(0, 0, -1)
	for i := range schedules {
		s := &schedules[i]
		if s.EndDate != nil && model.DaysBetween(*s.EndDate, dayBefore) == 0 {
			return s
		}
	}
	return nil
}

package pricing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/tollkeeper/internal/common"
	"github.com/Veraticus/tollkeeper/internal/model"
	"github.com/Veraticus/tollkeeper/internal/testutil"
)

type fakePricingReader struct {
	err       error
	schedules []model.PricingSchedule
	calls     int
}

func (f *fakePricingReader) PricingSchedules(_ context.Context, addonKey string, hosting model.Hosting) ([]model.PricingSchedule, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	var out []model.PricingSchedule
	for _, s := range f.schedules {
		if s.AddonKey == addonKey && s.Hosting == hosting {
			out = append(out, s)
		}
	}
	return out, nil
}

func tiersCosting(cost float64) []model.PricingTier {
	return []model.PricingTier{{UserTier: model.UnlimitedUsers, Cost: cost}}
}

func TestCatalog_WindowShapes(t *testing.T) {
	reader := &fakePricingReader{schedules: []model.PricingSchedule{
		{AddonKey: "a", Hosting: model.HostingServer, EndDate: testutil.DayPtr("2019-12-31"), Tiers: tiersCosting(1)},
		{AddonKey: "a", Hosting: model.HostingServer, StartDate: testutil.DayPtr("2020-01-01"), EndDate: testutil.DayPtr("2022-06-30"), Tiers: tiersCosting(2)},
		{AddonKey: "a", Hosting: model.HostingServer, StartDate: testutil.DayPtr("2022-07-01"), Tiers: tiersCosting(3)},
		{AddonKey: "b", Hosting: model.HostingServer, Tiers: tiersCosting(4)},
	}}
	catalog := NewCatalog(reader)
	ctx := context.Background()

	tests := []struct {
		addon    string
		date     string
		name     string
		wantCost float64
	}{
		{name: "open start closed end", addon: "a", date: "2018-03-01", wantCost: 1},
		{name: "closed start closed end", addon: "a", date: "2021-01-01", wantCost: 2},
		{name: "end bound is inclusive", addon: "a", date: "2022-06-30", wantCost: 2},
		{name: "start bound is inclusive", addon: "a", date: "2022-07-01", wantCost: 3},
		{name: "closed start open end", addon: "a", date: "2030-01-01", wantCost: 3},
		{name: "both bounds open", addon: "b", date: "2001-01-01", wantCost: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lookup, err := catalog.Tiers(ctx, tt.addon, model.HostingServer, testutil.Day(tt.date))
			require.NoError(t, err)
			require.Len(t, lookup.Tiers, 1)
			assert.InDelta(t, tt.wantCost, lookup.Tiers[0].Cost, 0.0001)
		})
	}
}

func TestCatalog_Legacy(t *testing.T) {
	catalog := NewCatalog(&fakePricingReader{schedules: testutil.Schedules()})
	ctx := context.Background()

	lookup, err := catalog.Tiers(ctx, testutil.AddonKey, model.HostingDataCenter, testutil.Day("2025-04-15"))
	require.NoError(t, err)
	require.True(t, lookup.HasLegacy())
	assert.Equal(t, testutil.Day("2024-12-31"), *lookup.LegacyEndDate)
	assert.Equal(t, testutil.LegacyDataCenterTiers(), lookup.LegacyTiers)

	// The legacy schedule itself has no start date, so nothing precedes it.
	old, err := catalog.Tiers(ctx, testutil.AddonKey, model.HostingDataCenter, testutil.Day("2024-06-01"))
	require.NoError(t, err)
	assert.False(t, old.HasLegacy())

	cloud, err := catalog.Tiers(ctx, testutil.AddonKey, model.HostingCloud, testutil.Day("2024-06-01"))
	require.NoError(t, err)
	assert.False(t, cloud.HasLegacy())
}

func TestCatalog_NoPricingFound(t *testing.T) {
	catalog := NewCatalog(&fakePricingReader{schedules: testutil.Schedules()})

	_, err := catalog.Tiers(context.Background(), "unknown", model.HostingCloud, time.Now())
	assert.ErrorIs(t, err, common.ErrNoPricingFound)
}

func TestCatalog_ReaderError(t *testing.T) {
	readErr := errors.New("disk on fire")
	catalog := NewCatalog(&fakePricingReader{err: readErr})

	_, err := catalog.Tiers(context.Background(), testutil.AddonKey, model.HostingCloud, time.Now())
	assert.ErrorIs(t, err, readErr)
}

func TestCatalog_MemoizesUntilReset(t *testing.T) {
	reader := &fakePricingReader{schedules: testutil.Schedules()}
	catalog := NewCatalog(reader)
	ctx := context.Background()
	day := testutil.Day("2025-04-15")

	for i := 0; i < 3; i++ {
		_, err := catalog.Tiers(ctx, testutil.AddonKey, model.HostingDataCenter, day)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, reader.calls)

	_, err := catalog.Tiers(ctx, testutil.AddonKey, model.HostingDataCenter, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, 2, reader.calls)

	catalog.Reset()
	_, err = catalog.Tiers(ctx, testutil.AddonKey, model.HostingDataCenter, day)
	require.NoError(t, err)
	assert.Equal(t, 3, reader.calls)
}

func TestSortTiers(t *testing.T) {
	sorted := SortTiers([]model.PricingTier{
		{UserTier: model.UnlimitedUsers, Cost: 9},
		{UserTier: 500, Cost: 5},
		{UserTier: 10, Cost: 1},
	})
	assert.Equal(t, []int{10, 500, model.UnlimitedUsers},
		[]int{sorted[0].UserTier, sorted[1].UserTier, sorted[2].UserTier})
}

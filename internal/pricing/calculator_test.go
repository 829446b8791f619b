package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/tollkeeper/internal/common"
	"github.com/Veraticus/tollkeeper/internal/model"
	"github.com/Veraticus/tollkeeper/internal/testutil"
)

func dataCenterInput() Input {
	return Input{
		SaleType:         model.SaleNew,
		SaleDate:         testutil.Day("2025-04-15"),
		MaintenanceStart: testutil.Day("2025-04-15"),
		MaintenanceEnd:   testutil.Day("2026-04-15"),
		Hosting:          model.HostingDataCenter,
		LicenseType:      model.LicenseCommercial,
		Tier:             "500 Users",
		BillingPeriod:    model.BillingAnnual,
		Tiers:            testutil.DataCenterTiers(),
		ParentProduct:    testutil.ParentProduct,
	}
}

func cloudMonthlyInput() Input {
	return Input{
		SaleType:         model.SaleRenewal,
		SaleDate:         testutil.Day("2025-05-01"),
		MaintenanceStart: testutil.Day("2025-05-01"),
		MaintenanceEnd:   testutil.Day("2025-06-01"),
		Hosting:          model.HostingCloud,
		LicenseType:      model.LicenseCommercial,
		Tier:             "Per Unit Pricing (173 Users)",
		BillingPeriod:    model.BillingMonthly,
		Tiers:            testutil.CloudTiers(),
		ParentProduct:    testutil.ParentProduct,
	}
}

func TestCalculate(t *testing.T) {
	tests := []struct {
		modify       func(in *Input)
		name         string
		wantPurchase float64
		wantVendor   float64
	}{
		{
			name:         "cloud monthly per unit pricing",
			modify:       func(_ *Input) {},
			wantPurchase: 221.21,
			wantVendor:   188.03,
		},
		{
			name: "cloud annual three year license",
			modify: func(in *Input) {
				in.SaleType = model.SaleNew
				in.SaleDate = testutil.Day("2025-03-27")
				in.MaintenanceStart = testutil.Day("2025-03-27")
				in.MaintenanceEnd = testutil.Day("2028-03-27")
				in.Tier = "4750 Users"
				in.BillingPeriod = model.BillingAnnual
			},
			wantPurchase: 43290,
			wantVendor:   36796.50,
		},
		{
			name: "cloud flat tier",
			modify: func(in *Input) {
				in.Tier = "10 Users"
			},
			wantPurchase: 10,
			wantVendor:   8.50,
		},
		{
			name: "cloud short month is prorated",
			modify: func(in *Input) {
				in.MaintenanceEnd = testutil.Day("2025-05-15")
			},
			wantPurchase: 114.17,
			wantVendor:   97.05,
		},
		{
			name: "cloud academic pays a quarter",
			modify: func(in *Input) {
				in.LicenseType = model.LicenseAcademic
			},
			wantPurchase: 55.30,
			wantVendor:   47.01,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := cloudMonthlyInput()
			tt.modify(&in)

			result, err := Calculate(in)
			require.NoError(t, err)
			assert.InDelta(t, tt.wantPurchase, result.PurchasePrice, 0.001)
			assert.InDelta(t, tt.wantVendor, result.VendorPrice, 0.001)
			assert.NotEmpty(t, result.Descriptors)
		})
	}
}

func TestCalculate_DataCenter(t *testing.T) {
	tests := []struct {
		modify       func(in *Input)
		name         string
		wantPurchase float64
		wantVendor   float64
	}{
		{
			name:         "annual list price",
			modify:       func(_ *Input) {},
			wantPurchase: 3400,
			wantVendor:   2550,
		},
		{
			name: "ten percent partner discount",
			modify: func(in *Input) {
				in.PartnerDiscountFraction = 0.10
			},
			wantPurchase: 3060,
			wantVendor:   2295,
		},
		{
			name: "refund with expected discount",
			modify: func(in *Input) {
				in.SaleType = model.SaleRefund
				in.ExpectedDiscount = 170
			},
			wantPurchase: -3230,
			wantVendor:   -2422.50,
		},
		{
			name: "unlimited users",
			modify: func(in *Input) {
				in.Tier = "Unlimited Users"
			},
			wantPurchase: 14000,
			wantVendor:   10500,
		},
		{
			name: "user count between tiers uses the next tier up",
			modify: func(in *Input) {
				in.Tier = "300 Users"
			},
			wantPurchase: 3400,
			wantVendor:   2550,
		},
		{
			name: "half year is prorated and rounded up",
			modify: func(in *Input) {
				in.MaintenanceEnd = testutil.Day("2025-10-15")
			},
			// 3400 * 183 / 365 = 1704.66
			wantPurchase: 1705,
			wantVendor:   1278.75,
		},
		{
			name: "academic after the regime change",
			modify: func(in *Input) {
				in.LicenseType = model.LicenseAcademic
			},
			wantPurchase: 850,
			wantVendor:   637.50,
		},
		{
			name: "academic before the regime change",
			modify: func(in *Input) {
				in.LicenseType = model.LicenseAcademic
				in.SaleDate = testutil.Day("2023-06-01")
			},
			wantPurchase: 1700,
			wantVendor:   1275,
		},
		{
			name: "large confluence academic",
			modify: func(in *Input) {
				in.LicenseType = model.LicenseAcademic
				in.ParentProduct = "Confluence"
				in.Tier = "10000 Users"
			},
			wantPurchase: 1150,
			wantVendor:   862.50,
		},
		{
			name: "server academic",
			modify: func(in *Input) {
				in.Hosting = model.HostingServer
				in.LicenseType = model.LicenseCommunity
			},
			wantPurchase: 1700,
			wantVendor:   1275,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := dataCenterInput()
			tt.modify(&in)

			result, err := Calculate(in)
			require.NoError(t, err)
			assert.InDelta(t, tt.wantPurchase, result.PurchasePrice, 0.001)
			assert.InDelta(t, tt.wantVendor, result.VendorPrice, 0.001)
		})
	}
}

func TestCalculate_FreeLicenses(t *testing.T) {
	tests := []struct {
		modify func(in *Input)
		name   string
	}{
		{
			name: "cloud sandbox",
			modify: func(in *Input) {
				in.Hosting = model.HostingCloud
				in.Sandbox = true
			},
		},
		{
			name: "open source on data center",
			modify: func(in *Input) {
				in.LicenseType = model.LicenseOpenSource
			},
		},
		{
			name: "open source on cloud",
			modify: func(in *Input) {
				in.Hosting = model.HostingCloud
				in.LicenseType = model.LicenseOpenSource
			},
		},
		{
			name: "community data center",
			modify: func(in *Input) {
				in.LicenseType = model.LicenseCommunity
				in.Tier = "Unlimited Users"
			},
		},
		{
			name: "dual licensing",
			modify: func(in *Input) {
				in.DeclaredDiscounts = []model.DeclaredDiscount{{Type: "dual_licensing", Amount: 3400}}
			},
		},
		{
			name: "free license ignores a malformed tier",
			modify: func(in *Input) {
				in.LicenseType = model.LicenseOpenSource
				in.Tier = "garbage"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := dataCenterInput()
			tt.modify(&in)

			result, err := Calculate(in)
			require.NoError(t, err)
			assert.Zero(t, result.PurchasePrice)
			assert.Zero(t, result.VendorPrice)
			require.Len(t, result.Descriptors, 1)
			assert.Equal(t, "free", result.Descriptors[0].Step)
		})
	}
}

func TestCalculate_ZeroDuration(t *testing.T) {
	in := cloudMonthlyInput()
	in.MaintenanceEnd = in.MaintenanceStart

	result, err := Calculate(in)
	require.NoError(t, err)
	assert.Zero(t, result.PurchasePrice)
	assert.Zero(t, result.DailyNominalPrice)
}

func TestCalculate_Upgrade(t *testing.T) {
	in := dataCenterInput()
	in.SaleType = model.SaleUpgrade
	in.Tier = "1000 Users"
	in.SaleDate = testutil.Day("2025-10-15")
	in.MaintenanceStart = testutil.Day("2025-10-15")
	in.MaintenanceEnd = testutil.Day("2026-10-15")
	in.Previous = &PreviousPrice{
		EffectiveEnd:      testutil.Day("2026-04-15"),
		PurchasePrice:     3400,
		DailyNominalPrice: 3400.0 / 365,
	}

	result, err := Calculate(in)
	require.NoError(t, err)

	// 4950/365*183 + (4950-3400)/365*182 = 3254.66
	assert.InDelta(t, 3255, result.PurchasePrice, 0.001)
	assert.InDelta(t, 2441.25, result.VendorPrice, 0.001)
	assert.InDelta(t, 4950.0/365, result.DailyNominalPrice, 1e-9)

	steps := make([]string, 0, len(result.Descriptors))
	for _, d := range result.Descriptors {
		steps = append(steps, d.Step)
	}
	assert.Equal(t, []string{"tier", "round", "overlap", "round", "vendor"}, steps)
}

func TestCalculate_UpgradeWithoutOverlapKeepsFullPrice(t *testing.T) {
	in := dataCenterInput()
	in.SaleType = model.SaleUpgrade
	in.Tier = "1000 Users"
	in.Previous = &PreviousPrice{
		EffectiveEnd:      testutil.Day("2025-04-15"),
		PurchasePrice:     3400,
		DailyNominalPrice: 3400.0 / 365,
	}

	result, err := Calculate(in)
	require.NoError(t, err)
	assert.InDelta(t, 4950, result.PurchasePrice, 0.001)
}

func TestCalculate_Errors(t *testing.T) {
	tests := []struct {
		modify  func(in *Input)
		wantErr error
		name    string
	}{
		{
			name:    "malformed tier",
			modify:  func(in *Input) { in.Tier = "five hundred users" },
			wantErr: common.ErrInvalidTierFormat,
		},
		{
			name: "monthly data center",
			modify: func(in *Input) {
				in.BillingPeriod = model.BillingMonthly
			},
			wantErr: common.ErrUnsupportedBillingPeriod,
		},
		{
			name: "unlimited users on cloud",
			modify: func(in *Input) {
				in.Hosting = model.HostingCloud
				in.Tiers = testutil.CloudTiers()
				in.Tier = "Unlimited Users"
			},
			wantErr: common.ErrInvalidTierFormat,
		},
		{
			name:    "empty schedule",
			modify:  func(in *Input) { in.Tiers = nil },
			wantErr: common.ErrNoPricingFound,
		},
		{
			name: "overlap longer than the license",
			modify: func(in *Input) {
				in.SaleType = model.SaleUpgrade
				in.Previous = &PreviousPrice{
					EffectiveEnd:      testutil.Day("2027-04-15"),
					PurchasePrice:     3400,
					DailyNominalPrice: 3400.0 / 365,
				}
			},
			wantErr: common.ErrOverlapExceedsDuration,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := dataCenterInput()
			tt.modify(&in)

			_, err := Calculate(in)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestParseUserCount(t *testing.T) {
	tests := []struct {
		tier    string
		want    int
		wantErr bool
	}{
		{tier: "500 Users", want: 500},
		{tier: "Unlimited Users", want: model.UnlimitedUsers},
		{tier: "Per Unit Pricing (173 Users)", want: 173},
		{tier: " 25 Users ", want: 25},
		{tier: "Per Unit Pricing (Unlimited Users)", wantErr: true},
		{tier: "Users", wantErr: true},
		{tier: "", wantErr: true},
		{tier: "Evaluation", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.tier, func(t *testing.T) {
			got, err := ParseUserCount(tt.tier)
			if tt.wantErr {
				assert.ErrorIs(t, err, common.ErrInvalidTierFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRoundCents(t *testing.T) {
	assert.InDelta(t, 188.03, RoundCents(221.212*0.85), 1e-9)
	assert.InDelta(t, 36796.50, RoundCents(43290*0.85), 1e-9)
	assert.InDelta(t, -2422.50, RoundCents(-3230*0.75), 1e-9)
}

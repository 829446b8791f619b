package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSaleType(t *testing.T) {
	tests := []struct {
		input   string
		want    SaleType
		wantErr bool
	}{
		{input: "New", want: SaleNew},
		{input: "upgrade", want: SaleUpgrade},
		{input: " Renewal ", want: SaleRenewal},
		{input: "DOWNGRADE", want: SaleDowngrade},
		{input: "Refund", want: SaleRefund},
		{input: "Transfer", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseSaleType(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSaleTypePredicates(t *testing.T) {
	tests := []struct {
		saleType  SaleType
		changes   bool
		continues bool
		isRefund  bool
	}{
		{SaleNew, false, false, false},
		{SaleUpgrade, true, true, false},
		{SaleRenewal, false, true, false},
		{SaleDowngrade, true, false, false},
		{SaleRefund, false, false, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.saleType), func(t *testing.T) {
			assert.Equal(t, tt.changes, tt.saleType.ChangesTier())
			assert.Equal(t, tt.continues, tt.saleType.ContinuesCoverage())
			assert.Equal(t, tt.isRefund, tt.saleType.IsRefund())
		})
	}
}

func TestDaysBetween(t *testing.T) {
	assert.Equal(t, 365, DaysBetween(Date(2025, time.January, 1), Date(2026, time.January, 1)))
	assert.Equal(t, 366, DaysBetween(Date(2024, time.January, 1), Date(2025, time.January, 1)))
	assert.Equal(t, -1, DaysBetween(Date(2025, time.March, 2), Date(2025, time.March, 1)))

	// Time of day is ignored.
	late := time.Date(2025, time.March, 1, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, 1, DaysBetween(late, Date(2025, time.March, 2)))
}

func TestTransaction_GenerateHash(t *testing.T) {
	base := Transaction{
		ID:               "AT-1",
		EntitlementID:    "E-1",
		AddonKey:         "com.example.addon",
		SaleType:         SaleNew,
		SaleDate:         Date(2025, time.April, 15),
		MaintenanceStart: Date(2025, time.April, 15),
		MaintenanceEnd:   Date(2026, time.April, 15),
		Hosting:          HostingDataCenter,
		Tier:             "500 Users",
		VendorAmount:     2550,
		Version:          1,
	}

	same := base
	same.Version = 7
	assert.Equal(t, base.GenerateHash(), same.GenerateHash(), "version is not part of the fingerprint")

	changed := base
	changed.VendorAmount = 2549
	assert.NotEqual(t, base.GenerateHash(), changed.GenerateHash())

	discounted := base
	discounted.DeclaredDiscounts = []DeclaredDiscount{{Type: "MANUAL", Amount: 10}}
	assert.NotEqual(t, base.GenerateHash(), discounted.GenerateHash())

	reparented := base
	reparented.ParentProduct = "confluence"
	assert.NotEqual(t, base.GenerateHash(), reparented.GenerateHash())
}

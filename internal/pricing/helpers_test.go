package pricing_test

import (
	"github.com/shopspring/decimal"

	"github.com/margemcerta/backoffice/internal/pricing"
)

// d parses a decimal literal; test fixtures only.
func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

// flatRequest is the baseline fixture used across solver tests: unit cost
// 50.00, commission 12%, fixed handling fee 6.00, no shipping, flat-tax
// regime at 10%, target margin 20%.
func flatRequest() pricing.PricingRequest {
	return pricing.PricingRequest{
		Cost: pricing.NewCostBasis(d("50.00")),
		Tax: pricing.TaxProfile{
			Regime:   pricing.RegimeFlat,
			FlatRate: d("10"),
		},
		Fees: pricing.FeeSchedule{
			ChannelID:         "mp-1",
			CommissionPercent: d("12"),
			HandlingFee:       d("6.00"),
		},
		TargetMarginPercent: d("20"),
	}
}

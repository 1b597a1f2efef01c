package pricing_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/margemcerta/backoffice/internal/pricing"
)

func TestApplyDisplay_DiscountNetsBackExactly(t *testing.T) {
	net := d("96.55")

	for _, markup := range []string{"0", "10", "25", "66.67", "150"} {
		dp := pricing.ApplyDisplay(net, pricing.DisplayConfig{Enabled: true, MarkupPercent: d(markup)})

		assert.True(t, dp.NetPrice.Equal(net))
		// list × (1 − discount/100) == net, by construction of the
		// recomputed discount.
		applied := dp.ListPrice.Mul(d("1").Sub(dp.DiscountPercent.Div(d("100"))))
		assert.True(t, applied.Sub(net).Abs().LessThan(d("0.000001")),
			"markup %s%%: list %s at %s%% nets %s, want %s",
			markup, dp.ListPrice, dp.DiscountPercent, applied, net)
	}
}

func TestApplyDisplay_ListPriceInflatedByMarkup(t *testing.T) {
	dp := pricing.ApplyDisplay(d("100.00"), pricing.DisplayConfig{Enabled: true, MarkupPercent: d("25")})

	assert.True(t, dp.ListPrice.Equal(d("125.00")), "list = %s", dp.ListPrice)
	assert.True(t, dp.DiscountPercent.Equal(d("20")), "discount = %s", dp.DiscountPercent)
}

func TestApplyDisplay_ZeroMarkupMeansNoDiscount(t *testing.T) {
	dp := pricing.ApplyDisplay(d("80.00"), pricing.DisplayConfig{Enabled: true})

	assert.True(t, dp.ListPrice.Equal(d("80.00")))
	assert.True(t, dp.DiscountPercent.IsZero())
}

func TestSolvePrice_DisplayTransformNeverChangesMargin(t *testing.T) {
	// The cosmetic layer must be idempotent with respect to margin: varying
	// the markup changes only the optics.
	var basePrice, baseMargin = d("0"), d("0")

	for i, markup := range []string{"0", "15", "40", "90"} {
		req := flatRequest()
		req.Display = pricing.DisplayConfig{Enabled: true, MarkupPercent: d(markup)}

		result, err := pricing.SolvePrice(req)
		require.NoError(t, err)
		require.NotNil(t, result.Display)

		if i == 0 {
			basePrice, baseMargin = result.Price, result.Breakdown.Margin
			continue
		}
		assert.True(t, result.Price.Equal(basePrice), "markup %s moved the net price", markup)
		assert.True(t, result.Breakdown.Margin.Equal(baseMargin), "markup %s moved the margin", markup)
		assert.True(t, result.Display.NetPrice.Equal(basePrice))
		assert.True(t, result.Display.ListPrice.GreaterThan(basePrice))
	}
}

func TestSolvePrice_DisplayOmittedWhenDisabled(t *testing.T) {
	result, err := pricing.SolvePrice(flatRequest())

	require.NoError(t, err)
	assert.Nil(t, result.Display)
}

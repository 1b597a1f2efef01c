package pricing_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/margemcerta/backoffice/internal/pricing"
)

func TestTaxProfile_FlatRegime(t *testing.T) {
	profile := pricing.TaxProfile{
		Regime:   pricing.RegimeFlat,
		FlatRate: d("10"),
	}

	a := profile.Assess(d("200.00"), d("1"))

	assert.True(t, a.Total.Equal(d("20.00")), "total = %s", a.Total)
	assert.True(t, a.TotalWithDIFAL.Equal(a.Total))
	assert.True(t, a.DIFAL.IsZero())
	assert.False(t, a.Floored)
}

func TestTaxProfile_ItemizedRegime(t *testing.T) {
	profile := pricing.TaxProfile{
		Regime:     pricing.RegimeItemized,
		ICMSRate:   d("18"),
		PISRate:    d("1.65"),
		COFINSRate: d("7.6"),
		STAmount:   d("2.50"),
		IPIAmount:  d("1.50"),
		ICMSCredit: d("9.00"),
	}

	a := profile.Assess(d("100.00"), d("1"))

	// 100 × 27.25% + 2.50 + 1.50 − 9.00 = 22.25
	assert.True(t, a.PercentagePart.Equal(d("27.25")), "pct = %s", a.PercentagePart)
	assert.True(t, a.AbsolutePart.Equal(d("-5.00")), "abs = %s", a.AbsolutePart)
	assert.True(t, a.Total.Equal(d("22.25")), "total = %s", a.Total)
	assert.False(t, a.Floored)
}

func TestTaxProfile_CreditFlooredAtLineItemLevel(t *testing.T) {
	profile := pricing.TaxProfile{
		Regime:     pricing.RegimeItemized,
		ICMSRate:   d("4"),
		ICMSCredit: d("40.00"),
	}

	a := profile.Assess(d("100.00"), d("1"))

	// 4.00 − 40.00 would be negative; floored at zero and flagged.
	assert.True(t, a.Total.IsZero(), "total = %s", a.Total)
	assert.True(t, a.Floored)
}

func TestTaxProfile_EstimatedAverageRatesReplaceOnlyThePercentageBlock(t *testing.T) {
	profile := pricing.TaxProfile{
		Regime:          pricing.RegimeItemized,
		ICMSRate:        d("18"),
		PISRate:         d("1.65"),
		COFINSRate:      d("7.6"),
		UseAverageRates: true,
		AvgFederalRate:  d("4.65"),
		AvgStateRate:    d("12"),
		STAmount:        d("2.00"),
		IPIAmount:       d("1.00"),
	}

	a := profile.Assess(d("100.00"), d("1"))

	// Blend 16.65% replaces ICMS/PIS/COFINS wholesale; ST and IPI remain
	// itemized absolutes.
	assert.True(t, a.PercentagePart.Equal(d("16.65")), "pct = %s", a.PercentagePart)
	assert.True(t, a.AbsolutePart.Equal(d("3.00")), "abs = %s", a.AbsolutePart)
	assert.True(t, a.Total.Equal(d("19.65")), "total = %s", a.Total)
}

func TestTaxProfile_TransitionalOverlayIsAdditiveOverEitherRegime(t *testing.T) {
	overlay := pricing.TransitionalOverlay{
		Enabled: true,
		CBSRate: d("0.9"),
		IBSRate: d("0.1"),
	}

	flat := pricing.TaxProfile{Regime: pricing.RegimeFlat, FlatRate: d("10"), Overlay: overlay}
	itemized := pricing.TaxProfile{Regime: pricing.RegimeItemized, ICMSRate: d("18"), Overlay: overlay}

	flatNoOverlay := flat
	flatNoOverlay.Overlay.Enabled = false
	itemizedNoOverlay := itemized
	itemizedNoOverlay.Overlay.Enabled = false

	price := d("100.00")
	overlayAmount := d("1.00") // 100 × (0.9% + 0.1%)

	assert.True(t, flat.Assess(price, d("1")).Total.
		Equal(flatNoOverlay.Assess(price, d("1")).Total.Add(overlayAmount)))
	assert.True(t, itemized.Assess(price, d("1")).Total.
		Equal(itemizedNoOverlay.Assess(price, d("1")).Total.Add(overlayAmount)))
}

func TestTaxProfile_DIFALReportedAsParallelPair(t *testing.T) {
	profile := pricing.TaxProfile{
		Regime:   pricing.RegimeItemized,
		ICMSRate: d("18"),
		DIFAL: pricing.DIFALConfig{
			Enabled:  true,
			Rate:     d("6"),
			FundRate: d("2"),
		},
	}

	a := profile.Assess(d("100.00"), d("1"))

	assert.True(t, a.DIFAL.Equal(d("8.00")), "difal = %s", a.DIFAL)
	assert.True(t, a.Total.Equal(d("18.00")), "total = %s", a.Total)
	assert.True(t, a.TotalWithDIFAL.Equal(d("26.00")), "with difal = %s", a.TotalWithDIFAL)
}

func TestTaxProfile_SaleFactorShrinksTaxableBaseNotAbsolutes(t *testing.T) {
	profile := pricing.TaxProfile{
		Regime:    pricing.RegimeItemized,
		ICMSRate:  d("18"),
		STAmount:  d("4.00"),
		IPIAmount: d("2.00"),
		DIFAL:     pricing.DIFALConfig{Enabled: true, Rate: d("6")},
	}

	full := profile.Assess(d("100.00"), d("1"))
	halved := profile.Assess(d("100.00"), d("0.5"))

	assert.True(t, halved.PercentagePart.Equal(full.PercentagePart.Mul(d("0.5"))),
		"pct = %s", halved.PercentagePart)
	assert.True(t, halved.DIFAL.Equal(full.DIFAL.Mul(d("0.5"))), "difal = %s", halved.DIFAL)
	assert.True(t, halved.AbsolutePart.Equal(full.AbsolutePart), "absolutes must not scale")
}

func TestTaxProfile_FlatRegimeIgnoresAbsolutes(t *testing.T) {
	// The flat rate is a blend; ST/IPI/credit belong to the itemized branch.
	profile := pricing.TaxProfile{
		Regime:     pricing.RegimeFlat,
		FlatRate:   d("10"),
		STAmount:   d("5.00"),
		IPIAmount:  d("3.00"),
		ICMSCredit: d("2.00"),
	}

	a := profile.Assess(d("100.00"), d("1"))

	assert.True(t, a.Total.Equal(d("10.00")), "total = %s", a.Total)
	assert.True(t, a.AbsolutePart.IsZero())
}

func TestTaxProfile_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*pricing.TaxProfile)
		field   string
		wantErr bool
	}{
		{"valid itemized", func(p *pricing.TaxProfile) {}, "", false},
		{"unknown regime", func(p *pricing.TaxProfile) { p.Regime = "hybrid" }, "tax.regime", true},
		{"negative icms", func(p *pricing.TaxProfile) { p.ICMSRate = d("-1") }, "tax.icmsRate", true},
		{"negative difal fund", func(p *pricing.TaxProfile) { p.DIFAL.FundRate = d("-2") }, "tax.difal.fundRate", true},
		{"negative overlay", func(p *pricing.TaxProfile) { p.Overlay.CBSRate = d("-0.9") }, "tax.overlay.cbsRate", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			profile := pricing.TaxProfile{Regime: pricing.RegimeItemized, ICMSRate: d("18")}
			tt.mutate(&profile)

			err := profile.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var ve *pricing.ValidationError
			assert.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

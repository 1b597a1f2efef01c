package pricing

import "github.com/shopspring/decimal"

// TaxRegime tags how the percentage tax block is computed. The transitional
// overlay applies after either branch; modeling the regimes as a tagged
// variant with a shared overlay field is what keeps the overlay additive
// rather than a replacement.
type TaxRegime string

const (
	// RegimeFlat applies a single blended rate to the sale (Simples-style).
	RegimeFlat TaxRegime = "flat"

	// RegimeItemized applies the named ICMS/PIS/COFINS rates plus the
	// absolute ST/IPI amounts carried over from cost attribution.
	RegimeItemized TaxRegime = "itemized"
)

// DIFALConfig is the destination-state differential, optionally split into
// the base rate and the dedicated poverty-fund (FCP) rate. DIFAL is always
// reported as a with/without pair, never folded into the single tax total.
type DIFALConfig struct {
	Enabled  bool
	Rate     decimal.Decimal
	FundRate decimal.Decimal
}

// TransitionalOverlay is the consumption-tax migration overlay: two
// percentage components (CBS and IBS) layered on top of whichever regime is
// active once enabled.
type TransitionalOverlay struct {
	Enabled bool
	CBSRate decimal.Decimal
	IBSRate decimal.Decimal
}

// TaxProfile is a company's tax regime plus the per-unit absolute amounts of
// the item being priced. All rates are percentages (10 means 10%).
type TaxProfile struct {
	Regime TaxRegime

	// FlatRate is the single rate of the flat regime.
	FlatRate decimal.Decimal

	// Itemized regime rates.
	ICMSRate   decimal.Decimal
	PISRate    decimal.Decimal
	COFINSRate decimal.Decimal

	// UseAverageRates replaces the itemized ICMS/PIS/COFINS block wholesale
	// with two user-supplied blended rates. ST, IPI, the credit and DIFAL
	// stay itemized regardless: they are absolute or reported separately,
	// not subsumed by the blend.
	UseAverageRates bool
	AvgFederalRate  decimal.Decimal
	AvgStateRate    decimal.Decimal

	// ICMSCredit is a fixed absolute per-unit offset, not a rate.
	ICMSCredit decimal.Decimal

	// STAmount and IPIAmount are absolute per-unit values carried over from
	// cost attribution; they do not scale with price.
	STAmount  decimal.Decimal
	IPIAmount decimal.Decimal

	DIFAL   DIFALConfig
	Overlay TransitionalOverlay
}

// Validate rejects negative rates and amounts up front.
func (p TaxProfile) Validate() error {
	if p.Regime != RegimeFlat && p.Regime != RegimeItemized {
		return invalidf("tax.regime", "unknown regime %q", string(p.Regime))
	}
	rates := []struct {
		field string
		v     decimal.Decimal
	}{
		{"tax.flatRate", p.FlatRate},
		{"tax.icmsRate", p.ICMSRate},
		{"tax.pisRate", p.PISRate},
		{"tax.cofinsRate", p.COFINSRate},
		{"tax.avgFederalRate", p.AvgFederalRate},
		{"tax.avgStateRate", p.AvgStateRate},
		{"tax.icmsCredit", p.ICMSCredit},
		{"tax.stAmount", p.STAmount},
		{"tax.ipiAmount", p.IPIAmount},
		{"tax.difal.rate", p.DIFAL.Rate},
		{"tax.difal.fundRate", p.DIFAL.FundRate},
		{"tax.overlay.cbsRate", p.Overlay.CBSRate},
		{"tax.overlay.ibsRate", p.Overlay.IBSRate},
	}
	for _, r := range rates {
		if r.v.IsNegative() {
			return invalidf(r.field, "must not be negative, got %s", r.v)
		}
	}
	return nil
}

// percentFraction is the regime's percentage block plus the transitional
// overlay, as a fraction of price, scaled by the sale-side partial factor.
// DIFAL is excluded; it is tracked as its own leg.
func (p TaxProfile) percentFraction(saleFactor decimal.Decimal) decimal.Decimal {
	var pct decimal.Decimal
	switch p.Regime {
	case RegimeFlat:
		pct = p.FlatRate
	default:
		if p.UseAverageRates {
			pct = p.AvgFederalRate.Add(p.AvgStateRate)
		} else {
			pct = p.ICMSRate.Add(p.PISRate).Add(p.COFINSRate)
		}
	}
	if p.Overlay.Enabled {
		pct = pct.Add(p.Overlay.CBSRate).Add(p.Overlay.IBSRate)
	}
	return pct.Div(hundred).Mul(saleFactor)
}

// difalFraction is the DIFAL legs as a fraction of price, zero when disabled.
func (p TaxProfile) difalFraction(saleFactor decimal.Decimal) decimal.Decimal {
	if !p.DIFAL.Enabled {
		return zero
	}
	return p.DIFAL.Rate.Add(p.DIFAL.FundRate).Div(hundred).Mul(saleFactor)
}

// absolutePart is the price-independent tax component: ST + IPI − credit. The
// absolute amounts belong to the itemized regime only; the flat rate is a
// blend that already subsumes them.
func (p TaxProfile) absolutePart() decimal.Decimal {
	if p.Regime == RegimeFlat {
		return zero
	}
	return p.STAmount.Add(p.IPIAmount).Sub(p.ICMSCredit)
}

// TaxAssessment is the resolved tax burden at a known price. Totals are
// floored at zero per unit: a credit cannot make the reported total negative.
type TaxAssessment struct {
	// PercentagePart is price × combined rate (regime block + overlay).
	PercentagePart decimal.Decimal

	// AbsolutePart is ST + IPI − credit, pre-floor; may be negative.
	AbsolutePart decimal.Decimal

	// DIFAL is the destination-differential leg (zero when disabled).
	DIFAL decimal.Decimal

	// Total excludes DIFAL; TotalWithDIFAL includes it. Both floored at zero.
	Total          decimal.Decimal
	TotalWithDIFAL decimal.Decimal

	// Floored is set when flooring actually clipped a negative total.
	Floored bool
}

// Assess resolves the total tax burden at a known unit price. The sale-side
// partial factor shrinks the taxable base of every percentage component but
// never the absolute amounts, which are purchase-side values.
func (p TaxProfile) Assess(price, saleFactor decimal.Decimal) TaxAssessment {
	a := TaxAssessment{
		PercentagePart: price.Mul(p.percentFraction(saleFactor)),
		AbsolutePart:   p.absolutePart(),
		DIFAL:          price.Mul(p.difalFraction(saleFactor)),
	}

	raw := a.PercentagePart.Add(a.AbsolutePart)
	a.Total = raw
	a.TotalWithDIFAL = raw.Add(a.DIFAL)
	if a.Total.IsNegative() {
		a.Total = zero
		a.Floored = true
	}
	if a.TotalWithDIFAL.IsNegative() {
		a.TotalWithDIFAL = zero
		a.Floored = true
	}
	return a
}

// rawBurden is the pre-floor tax total the solver uses to detect whether the
// flooring branch applies at a candidate price. DIFAL is included when
// enabled because the solver targets the full-burden margin.
func (p TaxProfile) rawBurden(price, saleFactor decimal.Decimal) decimal.Decimal {
	return price.Mul(p.percentFraction(saleFactor)).
		Add(price.Mul(p.difalFraction(saleFactor))).
		Add(p.absolutePart())
}

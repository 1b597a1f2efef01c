package pricing

import "github.com/shopspring/decimal"

// maxSolverIterations bounds the piecewise fixed point. Brackets are monotone
// in price and a converging price cannot cross a boundary more than once per
// iteration for the schedules in scope, so real schedules stabilize in two or
// three passes.
const maxSolverIterations = 8

// centTolerance is the currency-rounding tolerance of the solver's
// self-verification: the margin at the rounded solved price must match the
// target within one cent.
var centTolerance = decimal.New(1, -2)

// decompose splits the pricing equation at the current piecewise assumptions:
// r collects every purely linear percentage-of-price component, c every
// price-independent absolute component. handling and shipping are the assumed
// piecewise values; taxFloored marks that the non-negative-tax floor is active
// (tax then contributes nothing on either side).
func (r PricingRequest) decompose(handling, shipping decimal.Decimal, taxFloored bool) (rate, c decimal.Decimal) {
	saleFactor := r.saleFactor()
	cr := r.Fees.commissionFraction()

	rate = cr
	if !taxFloored {
		rate = rate.Add(r.Tax.percentFraction(saleFactor)).Add(r.Tax.difalFraction(saleFactor))
	}

	c = r.Cost.UnitCost.Add(r.extraCostTotal()).Add(handling).Add(shipping)
	if !taxFloored {
		c = c.Add(r.Tax.absolutePart())
	}

	for _, e := range r.Fees.ExtraFees {
		if !e.Active {
			continue
		}
		if e.Kind == ExtraFeeFixed {
			c = c.Add(e.Amount)
			continue
		}
		frac := e.Rate.Div(hundred)
		switch e.Base {
		case ExtraFeeBasePrice:
			rate = rate.Add(frac)
		case ExtraFeeBaseCommission:
			rate = rate.Add(frac.Mul(cr))
		case ExtraFeeBaseNetRevenue:
			// fee = frac × (price − commission − handling)
			//     = frac×(1−cr)×price − frac×handling
			rate = rate.Add(frac.Mul(one.Sub(cr)))
			c = c.Sub(frac.Mul(handling))
		}
	}
	return rate, c
}

// SolvePrice resolves the minimum sale price whose margin equals the target:
// find P such that P − cost − tax(P) − fees(P) = P × targetMarginPercent/100.
//
// The linear part is solved in closed form as P = C / (1 − r − m), assuming
// the piecewise components (handling bracket, shipping threshold, tax floor)
// take their value at P = 0. The piecewise components are then re-evaluated
// at the resulting P and, if the selection changed, folded back into C for
// another pass, until the selection is stable. The final price is verified by
// re-running the margin evaluator and asserting the fixed point within a
// one-cent tolerance.
//
// When percentage components plus the target margin consume 100% or more of
// any price, an *UnsolvableMarginError is returned instead of a negative or
// infinite price.
func SolvePrice(req PricingRequest) (*PricingResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	saleFactor := req.saleFactor()
	margin := req.TargetMarginPercent.Div(hundred)

	handling := req.Fees.handlingAt(zero)
	shipping := req.Fees.shippingAt(zero, req.ForcePaidShipping)
	taxFloored := req.Tax.rawBurden(zero, saleFactor).IsNegative()

	var price decimal.Decimal
	iterations := 0
	stable := false
	for i := 0; i < maxSolverIterations; i++ {
		iterations++

		rate, c := req.decompose(handling, shipping, taxFloored)
		denom := one.Sub(rate).Sub(margin)
		if denom.LessThanOrEqual(zero) {
			return nil, &UnsolvableMarginError{CombinedRate: rate.Add(margin)}
		}
		price = c.Div(denom)

		nextHandling := req.Fees.handlingAt(price)
		nextShipping := req.Fees.shippingAt(price, req.ForcePaidShipping)
		nextFloored := req.Tax.rawBurden(price, saleFactor).IsNegative()
		if nextHandling.Equal(handling) && nextShipping.Equal(shipping) && nextFloored == taxFloored {
			stable = true
			break
		}
		handling, shipping, taxFloored = nextHandling, nextShipping, nextFloored
	}
	if !stable {
		return nil, ErrSolverDiverged
	}

	price = price.Round(2)
	breakdown := req.breakdownAt(price)

	// Fixed-point check: the margin at the rounded price must equal the
	// target within currency-rounding tolerance.
	want := price.Mul(margin)
	if breakdown.Margin.Sub(want).Abs().GreaterThan(centTolerance) {
		return nil, ErrSolverDiverged
	}

	result := &PricingResult{
		Price:      price,
		Breakdown:  breakdown,
		Iterations: iterations,
	}
	if req.ManualPrice.Valid {
		manual := req.breakdownAt(req.ManualPrice.Decimal)
		result.ManualBreakdown = &manual
	}
	if req.Display.Enabled {
		display := ApplyDisplay(price, req.Display)
		result.Display = &display
	}
	return result, nil
}

// EvaluateMargin computes the margin an arbitrary candidate price yields. No
// solving is needed since the price is known; this is the engine behind
// "what if I charge X" queries and the solver's verification oracle.
func EvaluateMargin(req PricingRequest, price decimal.Decimal) (*MarginBreakdown, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if price.LessThanOrEqual(zero) {
		return nil, invalidf("price", "must be positive, got %s", price)
	}
	breakdown := req.breakdownAt(price)
	return &breakdown, nil
}

// breakdownAt is the forward evaluation shared by the solver, the manual-price
// path, and EvaluateMargin. The request must already be validated.
func (r PricingRequest) breakdownAt(price decimal.Decimal) MarginBreakdown {
	saleFactor := r.saleFactor()

	commission := price.Mul(r.Fees.commissionFraction())
	handling := r.Fees.handlingAt(price)
	shipping := r.Fees.shippingAt(price, r.ForcePaidShipping)
	extraFees := r.Fees.extraFeeTotal(price, commission, handling)
	tax := r.Tax.Assess(price, saleFactor)
	extraCosts := r.extraCostTotal()

	bd := MarginBreakdown{
		Price:      price,
		UnitCost:   r.Cost.UnitCost,
		ExtraCosts: extraCosts,
		Tax:        tax,
		Commission: commission,
		Handling:   handling,
		Shipping:   shipping,
		ExtraFees:  extraFees,
	}

	base := r.Cost.UnitCost.Add(extraCosts).Add(commission).Add(handling).Add(shipping).Add(extraFees)
	outlayEx := base.Add(tax.Total)
	outlayWith := base.Add(tax.TotalWithDIFAL)

	if r.Tax.DIFAL.Enabled {
		// Full burden is the primary pair; the ex-DIFAL leg rides alongside
		// so downstream reporting always exposes both.
		bd.TotalOutlay = outlayWith
		bd.Margin = price.Sub(outlayWith)
		bd.MarginPercent = percentOf(bd.Margin, price)
		bd.MarginExDIFAL = price.Sub(outlayEx)
		bd.MarginPercentExDIFAL = percentOf(bd.MarginExDIFAL, price)
	} else {
		bd.TotalOutlay = outlayEx
		bd.Margin = price.Sub(outlayEx)
		bd.MarginPercent = percentOf(bd.Margin, price)
	}

	if r.Cost.UnitCost.IsNegative() {
		bd.Warnings = append(bd.Warnings, WarningNegativeUnitCost)
	} else if r.Cost.Source != nil {
		bd.Warnings = append(bd.Warnings, r.Cost.Source.Warnings...)
	}
	if tax.Floored {
		bd.Warnings = append(bd.Warnings, WarningTaxFloored)
	}
	return bd
}

// percentOf returns part/whole as a percentage, zero when the whole is zero.
func percentOf(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return zero
	}
	return part.Div(whole).Mul(hundred)
}

package pricing

import "github.com/shopspring/decimal"

// FeeBracket is one row of a price-indexed handling-fee table. A price
// matches when low ≤ price < high; the last bracket of a table is open-ended
// and matches any price ≥ its low (its High is ignored).
type FeeBracket struct {
	Low  decimal.Decimal
	High decimal.Decimal
	Fee  decimal.Decimal
}

// ShippingRule resolves the seller-paid shipping cost. Without a threshold
// the cost always applies. With one, the channel absorbs nothing below the
// threshold (the buyer pays freight) and the seller pays Cost at or above it
// — the usual marketplace free-shipping convention, seen from the seller's
// cost side.
type ShippingRule struct {
	Cost         decimal.Decimal
	FreeBelow    decimal.Decimal
	HasThreshold bool
}

// ExtraFeeBase tags which amount a percentage extra fee applies to.
type ExtraFeeBase string

const (
	ExtraFeeBasePrice      ExtraFeeBase = "price"
	ExtraFeeBaseNetRevenue ExtraFeeBase = "net_revenue" // price − commission − handling
	ExtraFeeBaseCommission ExtraFeeBase = "commission"
)

// ExtraFeeKind distinguishes fixed-value from percentage extra fees.
type ExtraFeeKind string

const (
	ExtraFeeFixed   ExtraFeeKind = "fixed"
	ExtraFeePercent ExtraFeeKind = "percent"
)

// ExtraFee is one optional channel fee. Entries default inactive and must be
// explicitly toggled on.
type ExtraFee struct {
	ID     string
	Active bool
	Kind   ExtraFeeKind
	Amount decimal.Decimal // fixed value
	Rate   decimal.Decimal // percentage, when Kind is percent
	Base   ExtraFeeBase
}

// FeeSchedule is a sales channel's fee configuration.
type FeeSchedule struct {
	ChannelID         string
	CommissionPercent decimal.Decimal

	// HandlingFee is the fixed handling fee, used when HandlingBrackets is
	// empty. A non-empty bracket table takes precedence.
	HandlingFee      decimal.Decimal
	HandlingBrackets []FeeBracket

	Shipping  ShippingRule
	ExtraFees []ExtraFee
}

// Validate checks the schedule before any computation: negative rates and a
// malformed bracket table (overlapping, gapped, or inverted ranges) are
// rejected with the offending field named.
func (f FeeSchedule) Validate() error {
	if f.CommissionPercent.IsNegative() {
		return invalidf("fees.commissionPercent", "must not be negative, got %s", f.CommissionPercent)
	}
	if f.HandlingFee.IsNegative() {
		return invalidf("fees.handlingFee", "must not be negative, got %s", f.HandlingFee)
	}
	if f.Shipping.Cost.IsNegative() {
		return invalidf("fees.shipping.cost", "must not be negative, got %s", f.Shipping.Cost)
	}
	if f.Shipping.HasThreshold && f.Shipping.FreeBelow.LessThanOrEqual(zero) {
		return invalidf("fees.shipping.freeBelow", "threshold must be positive, got %s", f.Shipping.FreeBelow)
	}

	for i, b := range f.HandlingBrackets {
		last := i == len(f.HandlingBrackets)-1
		if b.Low.IsNegative() {
			return invalidf(fieldIndex("fees.handlingBrackets", i, "low"), "must not be negative, got %s", b.Low)
		}
		if b.Fee.IsNegative() {
			return invalidf(fieldIndex("fees.handlingBrackets", i, "fee"), "must not be negative, got %s", b.Fee)
		}
		if !last {
			if b.High.LessThanOrEqual(b.Low) {
				return invalidf(fieldIndex("fees.handlingBrackets", i, "high"), "must exceed low %s, got %s", b.Low, b.High)
			}
			next := f.HandlingBrackets[i+1]
			if !next.Low.Equal(b.High) {
				return invalidf(fieldIndex("fees.handlingBrackets", i+1, "low"),
					"ranges must be contiguous: expected %s, got %s", b.High, next.Low)
			}
		}
	}

	for i, e := range f.ExtraFees {
		switch e.Kind {
		case ExtraFeeFixed:
			if e.Amount.IsNegative() {
				return invalidf(fieldIndex("fees.extraFees", i, "amount"), "must not be negative, got %s", e.Amount)
			}
		case ExtraFeePercent:
			if e.Rate.IsNegative() {
				return invalidf(fieldIndex("fees.extraFees", i, "rate"), "must not be negative, got %s", e.Rate)
			}
			switch e.Base {
			case ExtraFeeBasePrice, ExtraFeeBaseNetRevenue, ExtraFeeBaseCommission:
			default:
				return invalidf(fieldIndex("fees.extraFees", i, "base"), "unknown base %q", string(e.Base))
			}
		default:
			return invalidf(fieldIndex("fees.extraFees", i, "kind"), "unknown kind %q", string(e.Kind))
		}
	}
	return nil
}

// commissionFraction is the commission as a fraction of price.
func (f FeeSchedule) commissionFraction() decimal.Decimal {
	return f.CommissionPercent.Div(hundred)
}

// handlingAt selects the handling fee applicable at the given price. A zero
// fee is a valid bracket outcome, not an error: it means "no fixed fee" in
// that tier.
func (f FeeSchedule) handlingAt(price decimal.Decimal) decimal.Decimal {
	if len(f.HandlingBrackets) == 0 {
		return f.HandlingFee
	}
	for i, b := range f.HandlingBrackets {
		if i == len(f.HandlingBrackets)-1 {
			if price.GreaterThanOrEqual(b.Low) {
				return b.Fee
			}
			continue
		}
		if price.GreaterThanOrEqual(b.Low) && price.LessThan(b.High) {
			return b.Fee
		}
	}
	// Price below the first bracket's low; no handling fee applies.
	return zero
}

// shippingAt resolves the seller-paid shipping cost at the given price.
// forcePaid is the request-level override that opts out of the threshold rule.
func (f FeeSchedule) shippingAt(price decimal.Decimal, forcePaid bool) decimal.Decimal {
	if !f.Shipping.HasThreshold || forcePaid {
		return f.Shipping.Cost
	}
	if price.LessThan(f.Shipping.FreeBelow) {
		return zero
	}
	return f.Shipping.Cost
}

// extraFeeTotal resolves every active extra fee at a known price.
func (f FeeSchedule) extraFeeTotal(price, commission, handling decimal.Decimal) decimal.Decimal {
	total := zero
	for _, e := range f.ExtraFees {
		if !e.Active {
			continue
		}
		if e.Kind == ExtraFeeFixed {
			total = total.Add(e.Amount)
			continue
		}
		var base decimal.Decimal
		switch e.Base {
		case ExtraFeeBasePrice:
			base = price
		case ExtraFeeBaseNetRevenue:
			base = price.Sub(commission).Sub(handling)
		case ExtraFeeBaseCommission:
			base = commission
		}
		total = total.Add(e.Rate.Div(hundred).Mul(base))
	}
	return total
}

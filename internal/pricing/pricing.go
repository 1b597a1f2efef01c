// Package pricing implements the pricing and cost resolution engine.
//
// The engine is pure and stateless: every public operation is a function from
// a fully-specified request to a result, with errors returned as values. It is
// safe to call concurrently; there is no internal state to race on.
//
// The central problem is circular: commission is a percentage of the sale
// price, the handling fee is selected from a price-indexed bracket table, and
// free-shipping eligibility depends on whether the price crosses a threshold —
// yet the price is the unknown being solved for. SolvePrice handles this by
// solving the linear part in closed form and fixed-pointing over the piecewise
// parts; EvaluateMargin is the forward inverse used both for "what if I charge
// X" queries and as the solver's own verification oracle.
package pricing

import (
	"github.com/shopspring/decimal"
)

var (
	zero    = decimal.Zero
	one     = decimal.NewFromInt(1)
	half    = decimal.New(5, -1)
	hundred = decimal.NewFromInt(100)
)

// Warning flags advisory, non-fatal conditions the caller must be allowed to
// see. They never abort a computation.
type Warning string

const (
	// WarningNegativeUnitCost: discounts exceeded the line item's value plus
	// apportioned charges. Computed as-is, never clamped.
	WarningNegativeUnitCost Warning = "negative_unit_cost"

	// WarningTaxFloored: the tax credit would have driven the per-unit tax
	// total negative; the reported total is floored at zero.
	WarningTaxFloored Warning = "tax_credit_floored"
)

// CostBasis is the per-unit acquisition cost fed into the solver. When derived
// from a fiscal document, UnitCost already includes the partial-invoice factor;
// use CostBasisFrom so the two can never go stale independently.
type CostBasis struct {
	UnitCost      decimal.Decimal
	Source        *InvoiceAttribution
	PartialFactor decimal.Decimal
}

// NewCostBasis builds a cost basis for a plain unit cost (full invoicing),
// e.g. a catalog product's running average cost.
func NewCostBasis(unitCost decimal.Decimal) CostBasis {
	return CostBasis{UnitCost: unitCost, PartialFactor: one}
}

// CostBasisFrom derives a cost basis from an attributed invoice line item.
// UnitCost is the effective (factor-scaled) unit cost; re-deriving here is what
// keeps the invariant unitCost = attributedUnitCost × partialInvoiceFactor.
func CostBasisFrom(attr InvoiceAttribution) CostBasis {
	return CostBasis{
		UnitCost:      attr.UnitCost.Mul(attr.Factor),
		Source:        &attr,
		PartialFactor: attr.Factor,
	}
}

// ExtraCost is an arbitrary per-unit absolute cost added by the caller
// (packaging, labeling, inbound handling).
type ExtraCost struct {
	Label  string
	Amount decimal.Decimal
}

// DisplayConfig enables the cosmetic list-price transform for channels with a
// strike-through price convention.
type DisplayConfig struct {
	Enabled       bool
	MarkupPercent decimal.Decimal
}

// PricingRequest aggregates every input of a pricing round. The engine reads
// it, never mutates it.
type PricingRequest struct {
	Cost                CostBasis
	Tax                 TaxProfile
	Fees                FeeSchedule
	TargetMarginPercent decimal.Decimal

	// ManualPrice, when valid, asks for an additional margin breakdown at an
	// arbitrary candidate price alongside the solved one.
	ManualPrice decimal.NullDecimal

	ExtraCosts []ExtraCost

	// SaleInvoiceFactor scales the taxable base of the sale (revenue side).
	// It is distinct from the purchase-side partial factor inside CostBasis:
	// one shrinks the sale's tax base, the other scales acquisition cost and
	// its absolute taxes. Zero means 1 (full invoicing).
	SaleInvoiceFactor decimal.Decimal

	// ForcePaidShipping opts out of a channel's free-below-threshold rule,
	// e.g. oversized items that pay freight at any price. Carried on the
	// request, never inferred.
	ForcePaidShipping bool

	Display DisplayConfig
}

// saleFactor normalizes SaleInvoiceFactor, treating the zero value as full
// invoicing.
func (r PricingRequest) saleFactor() decimal.Decimal {
	if r.SaleInvoiceFactor.IsZero() {
		return one
	}
	return r.SaleInvoiceFactor
}

// extraCostTotal sums the caller-supplied absolute extra costs.
func (r PricingRequest) extraCostTotal() decimal.Decimal {
	total := zero
	for _, ec := range r.ExtraCosts {
		total = total.Add(ec.Amount)
	}
	return total
}

// Validate rejects malformed input before any computation, naming the
// offending field. Advisory states (negative unit cost, credit overshoot) pass
// validation and surface as warnings instead.
func (r PricingRequest) Validate() error {
	if r.Cost.PartialFactor.LessThanOrEqual(zero) || r.Cost.PartialFactor.GreaterThan(one) {
		return invalidf("cost.partialInvoiceFactor", "must be in (0, 1], got %s", r.Cost.PartialFactor)
	}
	if !r.SaleInvoiceFactor.IsZero() &&
		(r.SaleInvoiceFactor.LessThanOrEqual(zero) || r.SaleInvoiceFactor.GreaterThan(one)) {
		return invalidf("saleInvoiceFactor", "must be in (0, 1], got %s", r.SaleInvoiceFactor)
	}
	if err := r.Tax.Validate(); err != nil {
		return err
	}
	if err := r.Fees.Validate(); err != nil {
		return err
	}
	for i, ec := range r.ExtraCosts {
		if ec.Amount.IsNegative() {
			return invalidf(fieldIndex("extraCosts", i, "amount"), "must not be negative, got %s", ec.Amount)
		}
	}
	if r.ManualPrice.Valid && r.ManualPrice.Decimal.LessThanOrEqual(zero) {
		return invalidf("manualPrice", "must be positive, got %s", r.ManualPrice.Decimal)
	}
	if r.Display.Enabled && r.Display.MarkupPercent.IsNegative() {
		return invalidf("display.markupPercent", "must not be negative, got %s", r.Display.MarkupPercent)
	}
	return nil
}

// MarginBreakdown is the forward evaluation of a known price: every cost, tax
// and fee component, plus the resulting margin in currency and percent. When
// DIFAL is enabled, Margin/MarginPercent carry the full burden (DIFAL
// included) and the ExDIFAL pair reports the other leg; DIFAL is never folded
// silently into a single total.
type MarginBreakdown struct {
	Price decimal.Decimal

	UnitCost   decimal.Decimal
	ExtraCosts decimal.Decimal
	Tax        TaxAssessment
	Commission decimal.Decimal
	Handling   decimal.Decimal
	Shipping   decimal.Decimal
	ExtraFees  decimal.Decimal

	// TotalOutlay is everything deducted from the price, DIFAL included when
	// the profile enables it.
	TotalOutlay decimal.Decimal

	Margin        decimal.Decimal
	MarginPercent decimal.Decimal

	// Populated only when DIFAL is enabled.
	MarginExDIFAL        decimal.Decimal
	MarginPercentExDIFAL decimal.Decimal

	Warnings []Warning
}

// PricingResult is the solver's output. Nothing in it is cached or persisted;
// the engine recomputes in full on every call.
type PricingResult struct {
	Price     decimal.Decimal
	Breakdown MarginBreakdown

	// ManualBreakdown is the margin at the caller's candidate price, when one
	// was supplied.
	ManualBreakdown *MarginBreakdown

	// Display is the cosmetic list-price rendition of Price, when enabled.
	Display *DisplayPrice

	// Iterations is how many closed-form passes the piecewise fixed point
	// took to stabilize.
	Iterations int
}

package pricing

import "github.com/shopspring/decimal"

// PartialInvoiceMode selects how the partial-invoicing ("nota baixa") scale
// factor is derived.
type PartialInvoiceMode string

const (
	// PartialWholeValue invoices the full transacted value (factor 1).
	PartialWholeValue PartialInvoiceMode = "whole_value"

	// PartialFirstFraction and PartialSecondFraction are the two halves of a
	// split operation (factor 0.5 each).
	PartialFirstFraction  PartialInvoiceMode = "first_fraction"
	PartialSecondFraction PartialInvoiceMode = "second_fraction"

	// PartialCustomPercent invoices an arbitrary percentage of the value.
	PartialCustomPercent PartialInvoiceMode = "custom_percent"
)

// PartialInvoice configures purchase-side partial invoicing. Inactive means
// full invoicing regardless of mode.
type PartialInvoice struct {
	Active  bool
	Mode    PartialInvoiceMode
	Percent decimal.Decimal
}

// Factor resolves the 0–1 scale factor for this configuration.
func (p PartialInvoice) Factor() (decimal.Decimal, error) {
	if !p.Active {
		return one, nil
	}
	switch p.Mode {
	case PartialWholeValue:
		return one, nil
	case PartialFirstFraction, PartialSecondFraction:
		return half, nil
	case PartialCustomPercent:
		if p.Percent.LessThanOrEqual(zero) || p.Percent.GreaterThan(hundred) {
			return zero, invalidf("partialInvoice.percent", "must be in (0, 100], got %s", p.Percent)
		}
		return p.Percent.Div(hundred), nil
	default:
		return zero, invalidf("partialInvoice.mode", "unknown mode %q", string(p.Mode))
	}
}

// DocumentTotals are the document-level aggregates of a multi-item fiscal
// document, apportioned to each line item by value proportion.
type DocumentTotals struct {
	ItemsSubtotal decimal.Decimal
	Freight       decimal.Decimal
	Ancillary     decimal.Decimal
	Discount      decimal.Decimal
}

// DocumentLineItem is one parsed line of a fiscal document. Value, STAmount
// and IPIAmount are line totals, not per-unit.
type DocumentLineItem struct {
	Value     decimal.Decimal
	Quantity  decimal.Decimal
	STAmount  decimal.Decimal
	IPIAmount decimal.Decimal
}

// InvoiceAttribution is one line item's share of the document, resolved to
// per-unit values. The unscaled ("real") and factor-scaled ("effective")
// variants are always computed together so a mode change can never leave one
// of them stale.
type InvoiceAttribution struct {
	// Share is itemValue / documentSubtotal, the apportionment weight.
	Share decimal.Decimal

	// Factor is the partial-invoice scale applied to the effective variants.
	Factor decimal.Decimal

	// Unscaled per-unit values.
	UnitCost decimal.Decimal
	UnitST   decimal.Decimal
	UnitIPI  decimal.Decimal

	// Factor-scaled per-unit values; these feed the cost basis.
	EffectiveUnitCost decimal.Decimal
	EffectiveUnitST   decimal.Decimal
	EffectiveUnitIPI  decimal.Decimal

	Warnings []Warning
}

// AttributeLineItem turns a raw fiscal-document line item into a per-unit
// acquisition cost. Document-level freight, ancillary charges and discounts
// are apportioned by value proportion; the partial-invoice factor is then
// applied uniformly to cost, ST and IPI — never to only one of them.
//
// A quantity of zero or less is rejected. A negative resulting unit cost
// (discounts exceeding value plus charges) is computed as-is and flagged.
func AttributeLineItem(item DocumentLineItem, doc DocumentTotals, partial PartialInvoice) (InvoiceAttribution, error) {
	if item.Quantity.LessThanOrEqual(zero) {
		return InvoiceAttribution{}, invalidf("item.quantity", "must be positive, got %s", item.Quantity)
	}
	if item.Value.IsNegative() {
		return InvoiceAttribution{}, invalidf("item.value", "must not be negative, got %s", item.Value)
	}
	if doc.ItemsSubtotal.LessThanOrEqual(zero) {
		return InvoiceAttribution{}, invalidf("document.itemsSubtotal", "must be positive, got %s", doc.ItemsSubtotal)
	}
	if item.Value.GreaterThan(doc.ItemsSubtotal) {
		return InvoiceAttribution{}, invalidf("item.value", "exceeds document subtotal %s", doc.ItemsSubtotal)
	}

	factor, err := partial.Factor()
	if err != nil {
		return InvoiceAttribution{}, err
	}

	share := item.Value.Div(doc.ItemsSubtotal)
	charges := doc.Freight.Add(doc.Ancillary).Sub(doc.Discount).Mul(share)

	attr := InvoiceAttribution{
		Share:    share,
		Factor:   factor,
		UnitCost: item.Value.Add(charges).Div(item.Quantity),
		UnitST:   item.STAmount.Div(item.Quantity),
		UnitIPI:  item.IPIAmount.Div(item.Quantity),
	}
	attr.EffectiveUnitCost = attr.UnitCost.Mul(factor)
	attr.EffectiveUnitST = attr.UnitST.Mul(factor)
	attr.EffectiveUnitIPI = attr.UnitIPI.Mul(factor)

	if attr.UnitCost.IsNegative() {
		attr.Warnings = append(attr.Warnings, WarningNegativeUnitCost)
	}

	return attr, nil
}

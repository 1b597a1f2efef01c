package pricing

import "github.com/shopspring/decimal"

// DisplayPrice is the cosmetic strike-through rendition of a solved price:
// an inflated list price and a discount percentage whose application nets
// back exactly the solved price. Purely presentational; it never changes the
// margin.
type DisplayPrice struct {
	// ListPrice is the inflated "from" price shown struck through.
	ListPrice decimal.Decimal

	// DiscountPercent is recomputed from the actual list price so that
	// list × (1 − discount/100) always equals NetPrice exactly.
	DiscountPercent decimal.Decimal

	// NetPrice is the solver's price, unchanged.
	NetPrice decimal.Decimal
}

// ApplyDisplay inflates the net price by the configured markup and derives
// the discount that nets it back. The discount is derived from the rounded
// list price rather than taken from configuration, which is what makes the
// transform idempotent with respect to margin: changing the markup only
// changes the optics.
func ApplyDisplay(net decimal.Decimal, cfg DisplayConfig) DisplayPrice {
	list := net.Mul(one.Add(cfg.MarkupPercent.Div(hundred))).Round(2)

	discount := zero
	if list.IsPositive() {
		discount = list.Sub(net).Div(list).Mul(hundred)
	}

	return DisplayPrice{
		ListPrice:       list,
		DiscountPercent: discount,
		NetPrice:        net,
	}
}

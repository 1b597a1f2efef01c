// Package api exposes the pricing engine over JSON endpoints.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/margemcerta/backoffice/internal/domain"
	"github.com/margemcerta/backoffice/internal/handler"
	"github.com/margemcerta/backoffice/internal/pricing"
	"github.com/margemcerta/backoffice/internal/service"
)

// PricingHandler handles price solve and margin simulation requests
type PricingHandler struct {
	service *service.PricingService
	logger  *slog.Logger
}

// NewPricingHandler creates a new pricing handler
func NewPricingHandler(svc *service.PricingService, logger *slog.Logger) *PricingHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PricingHandler{
		service: svc,
		logger:  logger,
	}
}

// ============================================================================
// REQUEST / RESPONSE SHAPES
// ============================================================================
//
// Monetary values travel as JSON strings ("96.55") to keep decimal
// precision; shopspring/decimal accepts bare numbers too.

type extraCostDTO struct {
	Label  string          `json:"label"`
	Amount decimal.Decimal `json:"amount"`
}

type partialInvoiceDTO struct {
	Active  bool            `json:"active"`
	Mode    string          `json:"mode"`
	Percent decimal.Decimal `json:"percent"`
}

type displayDTO struct {
	Enabled       bool            `json:"enabled"`
	MarkupPercent decimal.Decimal `json:"markupPercent"`
}

type documentDTO struct {
	Totals struct {
		ItemsSubtotal decimal.Decimal `json:"itemsSubtotal"`
		Freight       decimal.Decimal `json:"freight"`
		Ancillary     decimal.Decimal `json:"ancillary"`
		Discount      decimal.Decimal `json:"discount"`
	} `json:"totals"`
	Item struct {
		Value     decimal.Decimal `json:"value"`
		Quantity  decimal.Decimal `json:"quantity"`
		STAmount  decimal.Decimal `json:"stAmount"`
		IPIAmount decimal.Decimal `json:"ipiAmount"`
	} `json:"item"`
	Partial partialInvoiceDTO `json:"partial"`
}

type solveRequest struct {
	ProductID string `json:"productId"`
	CompanyID string `json:"companyId"`
	ChannelID string `json:"channelId"`

	TargetMarginPercent decimal.Decimal    `json:"targetMarginPercent"`
	ManualPrice         *decimal.Decimal   `json:"manualPrice"`
	ExtraCosts          []extraCostDTO     `json:"extraCosts"`
	ICMSCredit          decimal.Decimal    `json:"icmsCredit"`
	SaleInvoice         *partialInvoiceDTO `json:"saleInvoice"`
	ForcePaidShipping   bool               `json:"forcePaidShipping"`
	Display             *displayDTO        `json:"display"`
	Document            *documentDTO       `json:"document"`
}

type simulateRequest struct {
	solveRequest
	Price decimal.Decimal `json:"price"`
}

type taxDTO struct {
	PercentagePart decimal.Decimal `json:"percentagePart"`
	AbsolutePart   decimal.Decimal `json:"absolutePart"`
	DIFAL          decimal.Decimal `json:"difal"`
	Total          decimal.Decimal `json:"total"`
	TotalWithDIFAL decimal.Decimal `json:"totalWithDifal"`
	Floored        bool            `json:"floored"`
}

type breakdownDTO struct {
	Price       decimal.Decimal `json:"price"`
	UnitCost    decimal.Decimal `json:"unitCost"`
	ExtraCosts  decimal.Decimal `json:"extraCosts"`
	Tax         taxDTO          `json:"tax"`
	Commission  decimal.Decimal `json:"commission"`
	Handling    decimal.Decimal `json:"handling"`
	Shipping    decimal.Decimal `json:"shipping"`
	ExtraFees   decimal.Decimal `json:"extraFees"`
	TotalOutlay decimal.Decimal `json:"totalOutlay"`

	Margin        decimal.Decimal `json:"margin"`
	MarginPercent decimal.Decimal `json:"marginPercent"`

	MarginExDIFAL        *decimal.Decimal `json:"marginExDifal,omitempty"`
	MarginPercentExDIFAL *decimal.Decimal `json:"marginPercentExDifal,omitempty"`

	Warnings []string `json:"warnings,omitempty"`
}

type displayPriceDTO struct {
	ListPrice       decimal.Decimal `json:"listPrice"`
	DiscountPercent decimal.Decimal `json:"discountPercent"`
	NetPrice        decimal.Decimal `json:"netPrice"`
}

type solveResponse struct {
	Price           decimal.Decimal  `json:"price"`
	Breakdown       breakdownDTO     `json:"breakdown"`
	ManualBreakdown *breakdownDTO    `json:"manualBreakdown,omitempty"`
	Display         *displayPriceDTO `json:"display,omitempty"`
	Iterations      int              `json:"iterations"`
}

// ============================================================================
// HANDLERS
// ============================================================================

// Solve handles POST /api/pricing/solve
func (h *PricingHandler) Solve(w http.ResponseWriter, r *http.Request) {
	var req solveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handler.ErrorResponse(w, r, domain.Invalid("pricing.solve", "request body is not valid JSON"))
		return
	}

	params, err := req.toParams("pricing.solve")
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	result, err := h.service.Solve(r.Context(), *params)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.RespondJSON(w, http.StatusOK, toSolveResponse(result))
}

// Simulate handles POST /api/pricing/simulate
func (h *PricingHandler) Simulate(w http.ResponseWriter, r *http.Request) {
	var req simulateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handler.ErrorResponse(w, r, domain.Invalid("pricing.simulate", "request body is not valid JSON"))
		return
	}

	params, err := req.toParams("pricing.simulate")
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	bd, err := h.service.Simulate(r.Context(), *params, req.Price)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	dto := toBreakdownDTO(*bd)
	handler.RespondJSON(w, http.StatusOK, dto)
}

// ============================================================================
// MAPPING
// ============================================================================

func (req *solveRequest) toParams(op string) (*service.SolveParams, error) {
	params := &service.SolveParams{
		TargetMarginPercent: req.TargetMarginPercent,
		ICMSCredit:          req.ICMSCredit,
		ForcePaidShipping:   req.ForcePaidShipping,
	}

	var err error
	if req.Document == nil {
		if params.ProductID, err = uuid.Parse(req.ProductID); err != nil {
			return nil, domain.Invalid(op, "productId is not a valid UUID")
		}
	}
	if params.CompanyID, err = uuid.Parse(req.CompanyID); err != nil {
		return nil, domain.Invalid(op, "companyId is not a valid UUID")
	}
	if params.ChannelID, err = uuid.Parse(req.ChannelID); err != nil {
		return nil, domain.Invalid(op, "channelId is not a valid UUID")
	}

	if req.ManualPrice != nil {
		params.ManualPrice = decimal.NullDecimal{Decimal: *req.ManualPrice, Valid: true}
	}
	for _, ec := range req.ExtraCosts {
		params.ExtraCosts = append(params.ExtraCosts, pricing.ExtraCost{Label: ec.Label, Amount: ec.Amount})
	}
	if req.SaleInvoice != nil {
		params.SaleInvoice = pricing.PartialInvoice{
			Active:  req.SaleInvoice.Active,
			Mode:    pricing.PartialInvoiceMode(req.SaleInvoice.Mode),
			Percent: req.SaleInvoice.Percent,
		}
	}
	if req.Display != nil {
		params.Display = pricing.DisplayConfig{
			Enabled:       req.Display.Enabled,
			MarkupPercent: req.Display.MarkupPercent,
		}
	}
	if req.Document != nil {
		params.Document = &service.DocumentParams{
			Totals: pricing.DocumentTotals{
				ItemsSubtotal: req.Document.Totals.ItemsSubtotal,
				Freight:       req.Document.Totals.Freight,
				Ancillary:     req.Document.Totals.Ancillary,
				Discount:      req.Document.Totals.Discount,
			},
			Item: pricing.DocumentLineItem{
				Value:     req.Document.Item.Value,
				Quantity:  req.Document.Item.Quantity,
				STAmount:  req.Document.Item.STAmount,
				IPIAmount: req.Document.Item.IPIAmount,
			},
			Partial: pricing.PartialInvoice{
				Active:  req.Document.Partial.Active,
				Mode:    pricing.PartialInvoiceMode(req.Document.Partial.Mode),
				Percent: req.Document.Partial.Percent,
			},
		}
	}

	return params, nil
}

func toBreakdownDTO(bd pricing.MarginBreakdown) breakdownDTO {
	dto := breakdownDTO{
		Price:      bd.Price,
		UnitCost:   bd.UnitCost,
		ExtraCosts: bd.ExtraCosts,
		Tax: taxDTO{
			PercentagePart: bd.Tax.PercentagePart,
			AbsolutePart:   bd.Tax.AbsolutePart,
			DIFAL:          bd.Tax.DIFAL,
			Total:          bd.Tax.Total,
			TotalWithDIFAL: bd.Tax.TotalWithDIFAL,
			Floored:        bd.Tax.Floored,
		},
		Commission:    bd.Commission,
		Handling:      bd.Handling,
		Shipping:      bd.Shipping,
		ExtraFees:     bd.ExtraFees,
		TotalOutlay:   bd.TotalOutlay,
		Margin:        bd.Margin,
		MarginPercent: bd.MarginPercent,
	}

	if !bd.Tax.DIFAL.IsZero() || !bd.MarginExDIFAL.IsZero() {
		exMargin := bd.MarginExDIFAL
		exPct := bd.MarginPercentExDIFAL
		dto.MarginExDIFAL = &exMargin
		dto.MarginPercentExDIFAL = &exPct
	}

	for _, warning := range bd.Warnings {
		dto.Warnings = append(dto.Warnings, string(warning))
	}
	return dto
}

func toSolveResponse(result *pricing.PricingResult) solveResponse {
	resp := solveResponse{
		Price:      result.Price,
		Breakdown:  toBreakdownDTO(result.Breakdown),
		Iterations: result.Iterations,
	}
	if result.ManualBreakdown != nil {
		dto := toBreakdownDTO(*result.ManualBreakdown)
		resp.ManualBreakdown = &dto
	}
	if result.Display != nil {
		resp.Display = &displayPriceDTO{
			ListPrice:       result.Display.ListPrice,
			DiscountPercent: result.Display.DiscountPercent,
			NetPrice:        result.Display.NetPrice,
		}
	}
	return resp
}

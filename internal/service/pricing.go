// Package service orchestrates price solves: it assembles the engine's
// inputs from stored products, companies, and channels, runs the
// solver, and records business metrics.
package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/margemcerta/backoffice/internal/middleware"
	"github.com/margemcerta/backoffice/internal/postgres"
	"github.com/margemcerta/backoffice/internal/pricing"
	"github.com/margemcerta/backoffice/internal/telemetry"
)

// Store is the storage surface the pricing service needs. Implemented
// by postgres.PricingStore; handler tests substitute a stub.
type Store interface {
	GetProductCost(ctx context.Context, tenantID, productID uuid.UUID) (*postgres.ProductCost, error)
	GetCompanyTaxProfile(ctx context.Context, tenantID, companyID uuid.UUID) (*pricing.TaxProfile, error)
	GetChannelFeeSchedule(ctx context.Context, tenantID, channelID uuid.UUID) (*pricing.FeeSchedule, error)
}

// PricingService resolves stored entities into engine requests.
type PricingService struct {
	store    Store
	tenantID uuid.UUID
	logger   *slog.Logger
	metrics  *telemetry.PricingMetrics
}

// NewPricingService creates the pricing service for one tenant.
func NewPricingService(store Store, tenantID uuid.UUID, logger *slog.Logger, metrics *telemetry.PricingMetrics) *PricingService {
	return &PricingService{
		store:    store,
		tenantID: tenantID,
		logger:   logger,
		metrics:  metrics,
	}
}

// DocumentParams carries a purchase invoice line when the caller wants
// the cost basis derived from a document instead of stored averages.
type DocumentParams struct {
	Totals  pricing.DocumentTotals
	Item    pricing.DocumentLineItem
	Partial pricing.PartialInvoice
}

// SolveParams names the inputs of one solve. Product, company, and
// channel are resolved from storage; the rest comes from the caller.
type SolveParams struct {
	ProductID uuid.UUID
	CompanyID uuid.UUID
	ChannelID uuid.UUID

	TargetMarginPercent decimal.Decimal
	ManualPrice         decimal.NullDecimal
	ExtraCosts          []pricing.ExtraCost
	ICMSCredit          decimal.Decimal
	SaleInvoice         pricing.PartialInvoice
	ForcePaidShipping   bool
	Display             pricing.DisplayConfig

	// Document, when set, supersedes the product's stored average cost.
	Document *DocumentParams
}

// Solve assembles the pricing request and runs the price solver.
func (s *PricingService) Solve(ctx context.Context, params SolveParams) (*pricing.PricingResult, error) {
	req, err := s.assembleRequest(ctx, params)
	if err != nil {
		return nil, err
	}

	result, err := pricing.SolvePrice(*req)
	if err != nil {
		s.recordFailure(params.ChannelID, err)
		return nil, err
	}

	s.metrics.SolvesTotal.WithLabelValues(s.tenantID.String(), params.ChannelID.String()).Inc()
	s.metrics.SolverIterations.WithLabelValues(s.tenantID.String()).Observe(float64(result.Iterations))
	marginPct, _ := result.Breakdown.MarginPercent.Float64()
	s.metrics.SolvedMarginPercent.WithLabelValues(s.tenantID.String(), params.ChannelID.String()).Observe(marginPct)

	middleware.GetLogger(ctx, s.logger).Info("price solved",
		slog.String("product_id", params.ProductID.String()),
		slog.String("channel_id", params.ChannelID.String()),
		slog.String("price", result.Price.String()),
		slog.String("margin_percent", result.Breakdown.MarginPercent.String()),
		slog.Int("iterations", result.Iterations),
	)

	return result, nil
}

// Simulate evaluates the margin a caller-provided price would realize.
func (s *PricingService) Simulate(ctx context.Context, params SolveParams, price decimal.Decimal) (*pricing.MarginBreakdown, error) {
	req, err := s.assembleRequest(ctx, params)
	if err != nil {
		return nil, err
	}

	bd, err := pricing.EvaluateMargin(*req, price)
	if err != nil {
		return nil, err
	}

	s.metrics.SimulationsTotal.WithLabelValues(s.tenantID.String(), params.ChannelID.String()).Inc()
	return bd, nil
}

func (s *PricingService) assembleRequest(ctx context.Context, params SolveParams) (*pricing.PricingRequest, error) {
	var (
		cost    pricing.CostBasis
		st, ipi decimal.Decimal
	)

	if params.Document != nil {
		attr, err := pricing.AttributeLineItem(params.Document.Item, params.Document.Totals, params.Document.Partial)
		if err != nil {
			return nil, err
		}
		cost = pricing.CostBasisFrom(attr)
		st = attr.EffectiveUnitST
		ipi = attr.EffectiveUnitIPI
	} else {
		pc, err := s.store.GetProductCost(ctx, s.tenantID, params.ProductID)
		if err != nil {
			return nil, err
		}
		cost = pricing.NewCostBasis(pc.AverageUnitCost)
		st = pc.AverageUnitST
		ipi = pc.AverageUnitIPI
	}

	tax, err := s.store.GetCompanyTaxProfile(ctx, s.tenantID, params.CompanyID)
	if err != nil {
		return nil, err
	}
	tax.STAmount = st
	tax.IPIAmount = ipi
	tax.ICMSCredit = params.ICMSCredit

	fees, err := s.store.GetChannelFeeSchedule(ctx, s.tenantID, params.ChannelID)
	if err != nil {
		return nil, err
	}

	req := &pricing.PricingRequest{
		Cost:                cost,
		Tax:                 *tax,
		Fees:                *fees,
		TargetMarginPercent: params.TargetMarginPercent,
		ManualPrice:         params.ManualPrice,
		ExtraCosts:          params.ExtraCosts,
		ForcePaidShipping:   params.ForcePaidShipping,
		Display:             params.Display,
	}

	if params.SaleInvoice.Active {
		factor, err := params.SaleInvoice.Factor()
		if err != nil {
			return nil, err
		}
		req.SaleInvoiceFactor = factor
	}

	return req, nil
}

func (s *PricingService) recordFailure(channelID uuid.UUID, err error) {
	var unsolvable *pricing.UnsolvableMarginError
	switch {
	case errors.As(err, &unsolvable):
		s.metrics.SolveUnsolvable.WithLabelValues(s.tenantID.String(), channelID.String()).Inc()
	case pricing.IsValidation(err):
		s.metrics.SolveFailures.WithLabelValues(s.tenantID.String(), "validation").Inc()
	case errors.Is(err, pricing.ErrSolverDiverged):
		s.metrics.SolveFailures.WithLabelValues(s.tenantID.String(), "diverged").Inc()
	default:
		s.metrics.SolveFailures.WithLabelValues(s.tenantID.String(), "internal").Inc()
	}
}

// Package postgres implements the pricing service's storage interfaces
// over a pgx connection pool. Monetary columns are NUMERIC and travel
// as text so they land in decimal.Decimal without a float detour.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/margemcerta/backoffice/internal/domain"
	"github.com/margemcerta/backoffice/internal/pricing"
)

// PricingStore loads the inputs a price solve needs: product costs,
// company tax profiles, and channel fee schedules.
type PricingStore struct {
	pool *pgxpool.Pool
}

// NewPricingStore creates a new PostgreSQL-backed pricing store.
func NewPricingStore(pool *pgxpool.Pool) *PricingStore {
	return &PricingStore{pool: pool}
}

// ProductCost is the rolling average cost snapshot kept per product.
type ProductCost struct {
	ProductID       uuid.UUID
	SKU             string
	AverageUnitCost decimal.Decimal
	AverageUnitST   decimal.Decimal
	AverageUnitIPI  decimal.Decimal
}

// GetProductCost returns the product's average unit cost figures.
func (s *PricingStore) GetProductCost(ctx context.Context, tenantID, productID uuid.UUID) (*ProductCost, error) {
	const q = `
		SELECT sku,
		       average_unit_cost::text,
		       average_unit_st::text,
		       average_unit_ipi::text
		FROM products
		WHERE tenant_id = $1 AND id = $2`

	var sku, costS, stS, ipiS string
	err := s.pool.QueryRow(ctx, q, tenantID, productID).Scan(&sku, &costS, &stS, &ipiS)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NotFound("store.product_cost", "product", productID.String())
		}
		return nil, domain.Internal(err, "store.product_cost", "failed to load product cost")
	}

	pc := &ProductCost{ProductID: productID, SKU: sku}
	if pc.AverageUnitCost, err = parseNumeric(costS, "average_unit_cost"); err != nil {
		return nil, err
	}
	if pc.AverageUnitST, err = parseNumeric(stS, "average_unit_st"); err != nil {
		return nil, err
	}
	if pc.AverageUnitIPI, err = parseNumeric(ipiS, "average_unit_ipi"); err != nil {
		return nil, err
	}
	return pc, nil
}

// GetCompanyTaxProfile assembles the tax profile stored on a company.
// The per-solve absolutes (ST, IPI, credit) come from the request, not
// from here; columns cover the standing rate configuration.
func (s *PricingStore) GetCompanyTaxProfile(ctx context.Context, tenantID, companyID uuid.UUID) (*pricing.TaxProfile, error) {
	const q = `
		SELECT tax_regime,
		       flat_rate::text,
		       icms_rate::text,
		       pis_rate::text,
		       cofins_rate::text,
		       use_average_rates,
		       avg_federal_rate::text,
		       avg_state_rate::text,
		       difal_enabled,
		       difal_rate::text,
		       difal_fund_rate::text,
		       overlay_enabled,
		       overlay_cbs_rate::text,
		       overlay_ibs_rate::text
		FROM companies
		WHERE tenant_id = $1 AND id = $2`

	var (
		regime                     string
		useAvg, difalOn, overlayOn bool
		cols                       [10]string
	)
	err := s.pool.QueryRow(ctx, q, tenantID, companyID).Scan(
		&regime, &cols[0], &cols[1], &cols[2], &cols[3],
		&useAvg, &cols[4], &cols[5],
		&difalOn, &cols[6], &cols[7],
		&overlayOn, &cols[8], &cols[9],
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NotFound("store.tax_profile", "company", companyID.String())
		}
		return nil, domain.Internal(err, "store.tax_profile", "failed to load tax profile")
	}

	names := []string{
		"flat_rate", "icms_rate", "pis_rate", "cofins_rate",
		"avg_federal_rate", "avg_state_rate",
		"difal_rate", "difal_fund_rate",
		"overlay_cbs_rate", "overlay_ibs_rate",
	}
	vals := make([]decimal.Decimal, len(cols))
	for i, raw := range cols {
		if vals[i], err = parseNumeric(raw, names[i]); err != nil {
			return nil, err
		}
	}

	return &pricing.TaxProfile{
		Regime:          pricing.TaxRegime(regime),
		FlatRate:        vals[0],
		ICMSRate:        vals[1],
		PISRate:         vals[2],
		COFINSRate:      vals[3],
		UseAverageRates: useAvg,
		AvgFederalRate:  vals[4],
		AvgStateRate:    vals[5],
		DIFAL: pricing.DIFALConfig{
			Enabled:  difalOn,
			Rate:     vals[6],
			FundRate: vals[7],
		},
		Overlay: pricing.TransitionalOverlay{
			Enabled: overlayOn,
			CBSRate: vals[8],
			IBSRate: vals[9],
		},
	}, nil
}

// GetChannelFeeSchedule loads a channel's commission, handling tiers,
// shipping rule, and extra fees as one schedule.
func (s *PricingStore) GetChannelFeeSchedule(ctx context.Context, tenantID, channelID uuid.UUID) (*pricing.FeeSchedule, error) {
	const channelQ = `
		SELECT commission_percent::text,
		       handling_fee::text,
		       shipping_cost::text,
		       shipping_free_below::text
		FROM channels
		WHERE tenant_id = $1 AND id = $2`

	var commissionS, handlingS, shipCostS string
	var freeBelowS *string
	err := s.pool.QueryRow(ctx, channelQ, tenantID, channelID).Scan(
		&commissionS, &handlingS, &shipCostS, &freeBelowS,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NotFound("store.fee_schedule", "channel", channelID.String())
		}
		return nil, domain.Internal(err, "store.fee_schedule", "failed to load channel")
	}

	fees := &pricing.FeeSchedule{ChannelID: channelID.String()}
	if fees.CommissionPercent, err = parseNumeric(commissionS, "commission_percent"); err != nil {
		return nil, err
	}
	if fees.HandlingFee, err = parseNumeric(handlingS, "handling_fee"); err != nil {
		return nil, err
	}
	if fees.Shipping.Cost, err = parseNumeric(shipCostS, "shipping_cost"); err != nil {
		return nil, err
	}
	if freeBelowS != nil {
		if fees.Shipping.FreeBelow, err = parseNumeric(*freeBelowS, "shipping_free_below"); err != nil {
			return nil, err
		}
		fees.Shipping.HasThreshold = true
	}

	if fees.HandlingBrackets, err = s.loadBrackets(ctx, channelID); err != nil {
		return nil, err
	}
	if fees.ExtraFees, err = s.loadExtraFees(ctx, channelID); err != nil {
		return nil, err
	}
	return fees, nil
}

func (s *PricingStore) loadBrackets(ctx context.Context, channelID uuid.UUID) ([]pricing.FeeBracket, error) {
	const q = `
		SELECT low::text, high::text, fee::text
		FROM channel_fee_brackets
		WHERE channel_id = $1
		ORDER BY position`

	rows, err := s.pool.Query(ctx, q, channelID)
	if err != nil {
		return nil, domain.Internal(err, "store.fee_schedule", "failed to load handling brackets")
	}
	defer rows.Close()

	var brackets []pricing.FeeBracket
	for rows.Next() {
		var lowS, feeS string
		var highS *string
		if err := rows.Scan(&lowS, &highS, &feeS); err != nil {
			return nil, domain.Internal(err, "store.fee_schedule", "failed to scan handling bracket")
		}

		var b pricing.FeeBracket
		if b.Low, err = parseNumeric(lowS, "low"); err != nil {
			return nil, err
		}
		if highS != nil {
			if b.High, err = parseNumeric(*highS, "high"); err != nil {
				return nil, err
			}
		}
		if b.Fee, err = parseNumeric(feeS, "fee"); err != nil {
			return nil, err
		}
		brackets = append(brackets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, "store.fee_schedule", "failed to read handling brackets")
	}
	return brackets, nil
}

func (s *PricingStore) loadExtraFees(ctx context.Context, channelID uuid.UUID) ([]pricing.ExtraFee, error) {
	const q = `
		SELECT code, active, kind, amount::text, rate::text, base
		FROM channel_extra_fees
		WHERE channel_id = $1
		ORDER BY code`

	rows, err := s.pool.Query(ctx, q, channelID)
	if err != nil {
		return nil, domain.Internal(err, "store.fee_schedule", "failed to load extra fees")
	}
	defer rows.Close()

	var extras []pricing.ExtraFee
	for rows.Next() {
		var code, kind, base, amountS, rateS string
		var active bool
		if err := rows.Scan(&code, &active, &kind, &amountS, &rateS, &base); err != nil {
			return nil, domain.Internal(err, "store.fee_schedule", "failed to scan extra fee")
		}

		fee := pricing.ExtraFee{
			ID:     code,
			Active: active,
			Kind:   pricing.ExtraFeeKind(kind),
			Base:   pricing.ExtraFeeBase(base),
		}
		if fee.Amount, err = parseNumeric(amountS, "amount"); err != nil {
			return nil, err
		}
		if fee.Rate, err = parseNumeric(rateS, "rate"); err != nil {
			return nil, err
		}
		extras = append(extras, fee)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, "store.fee_schedule", "failed to read extra fees")
	}
	return extras, nil
}

func parseNumeric(s, column string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, domain.Internal(err, "store.parse_numeric",
			fmt.Sprintf("column %s holds a non-numeric value", column))
	}
	return d, nil
}

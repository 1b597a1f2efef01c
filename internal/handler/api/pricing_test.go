package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/margemcerta/backoffice/internal/domain"
	"github.com/margemcerta/backoffice/internal/handler/api"
	"github.com/margemcerta/backoffice/internal/postgres"
	"github.com/margemcerta/backoffice/internal/pricing"
	"github.com/margemcerta/backoffice/internal/service"
	"github.com/margemcerta/backoffice/internal/telemetry"
)

var (
	tenantID  = uuid.MustParse("00000000-0000-0000-0000-000000000001")
	productID = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	companyID = uuid.MustParse("22222222-2222-2222-2222-222222222222")
	channelID = uuid.MustParse("33333333-3333-3333-3333-333333333333")
)

// Prometheus collectors register globally; build them once for the test binary.
var (
	metricsOnce sync.Once
	metrics     *telemetry.PricingMetrics
)

func testMetrics() *telemetry.PricingMetrics {
	metricsOnce.Do(func() {
		metrics = telemetry.NewPricingMetrics("backoffice_test")
	})
	return metrics
}

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

// stubStore serves fixed rows, standing in for the Postgres store.
type stubStore struct {
	cost *postgres.ProductCost
	tax  *pricing.TaxProfile
	fees *pricing.FeeSchedule
	err  error
}

func (s *stubStore) GetProductCost(ctx context.Context, tenantID, productID uuid.UUID) (*postgres.ProductCost, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.cost, nil
}

func (s *stubStore) GetCompanyTaxProfile(ctx context.Context, tenantID, companyID uuid.UUID) (*pricing.TaxProfile, error) {
	if s.err != nil {
		return nil, s.err
	}
	profile := *s.tax
	return &profile, nil
}

func (s *stubStore) GetChannelFeeSchedule(ctx context.Context, tenantID, channelID uuid.UUID) (*pricing.FeeSchedule, error) {
	if s.err != nil {
		return nil, s.err
	}
	fees := *s.fees
	return &fees, nil
}

func defaultStore() *stubStore {
	return &stubStore{
		cost: &postgres.ProductCost{
			ProductID:       productID,
			SKU:             "SKU-1",
			AverageUnitCost: d("50.00"),
		},
		tax: &pricing.TaxProfile{
			Regime:   pricing.RegimeFlat,
			FlatRate: d("10"),
		},
		fees: &pricing.FeeSchedule{
			ChannelID:         channelID.String(),
			CommissionPercent: d("12"),
			HandlingFee:       d("6.00"),
		},
	}
}

func newHandler(store *stubStore) *api.PricingHandler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.NewPricingService(store, tenantID, logger, testMetrics())
	return api.NewPricingHandler(svc, logger)
}

func post(t *testing.T, h http.HandlerFunc, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/pricing/solve", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func solveBody(margin string) map[string]any {
	return map[string]any{
		"productId":           productID.String(),
		"companyId":           companyID.String(),
		"channelId":           channelID.String(),
		"targetMarginPercent": margin,
	}
}

func TestPricingHandler_Solve(t *testing.T) {
	h := newHandler(defaultStore())

	rec := post(t, h.Solve, solveBody("20"))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Price     decimal.Decimal `json:"price"`
		Breakdown struct {
			MarginPercent decimal.Decimal `json:"marginPercent"`
		} `json:"breakdown"`
		Iterations int `json:"iterations"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))

	// 56 / (1 − 0.12 − 0.10 − 0.20) = 96.55
	assert.True(t, resp.Price.Equal(d("96.55")), "price = %s", resp.Price)
	assert.GreaterOrEqual(t, resp.Iterations, 1)
}

func TestPricingHandler_SolveUnsolvable(t *testing.T) {
	h := newHandler(defaultStore())

	rec := post(t, h.Solve, solveBody("80"))

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())

	var body struct {
		Error struct {
			Code         string `json:"code"`
			CombinedRate string `json:"combinedRate"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, domain.EUNPROCESSABLE, body.Error.Code)
	// 12% commission + 10% tax + 80% margin
	assert.Equal(t, "1.02", body.Error.CombinedRate)
}

func TestPricingHandler_SolveUnknownProduct(t *testing.T) {
	store := defaultStore()
	store.err = domain.NotFound("store.product_cost", "product", productID.String())
	h := newHandler(store)

	rec := post(t, h.Solve, solveBody("20"))

	require.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())
}

func TestPricingHandler_SolveBadUUID(t *testing.T) {
	h := newHandler(defaultStore())

	body := solveBody("20")
	body["channelId"] = "not-a-uuid"
	rec := post(t, h.Solve, body)

	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
}

func TestPricingHandler_SolveMalformedJSON(t *testing.T) {
	h := newHandler(defaultStore())

	req := httptest.NewRequest(http.MethodPost, "/api/pricing/solve", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	h.Solve(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPricingHandler_SolveEngineValidation(t *testing.T) {
	store := defaultStore()
	store.fees.CommissionPercent = d("-1")
	h := newHandler(store)

	rec := post(t, h.Solve, solveBody("20"))

	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	var body struct {
		Error struct {
			Field string `json:"field"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "fees.commissionPercent", body.Error.Field)
}

func TestPricingHandler_Simulate(t *testing.T) {
	h := newHandler(defaultStore())

	body := solveBody("20")
	body["price"] = "100.00"
	rec := post(t, h.Simulate, body)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Margin        decimal.Decimal `json:"margin"`
		MarginPercent decimal.Decimal `json:"marginPercent"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))

	// 100 − (50 + 10 + 12 + 6) = 22
	assert.True(t, resp.Margin.Equal(d("22.00")), "margin = %s", resp.Margin)
	assert.True(t, resp.MarginPercent.Equal(d("22")), "margin%% = %s", resp.MarginPercent)
}

func TestPricingHandler_SolveFromDocument(t *testing.T) {
	h := newHandler(defaultStore())

	body := solveBody("20")
	delete(body, "productId")
	body["document"] = map[string]any{
		"totals": map[string]any{
			"itemsSubtotal": "100.00",
			"freight":       "10.00",
		},
		"item": map[string]any{
			"value":    "100.00",
			"quantity": "2",
		},
		"partial": map[string]any{"active": false},
	}
	rec := post(t, h.Solve, body)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Breakdown struct {
			UnitCost decimal.Decimal `json:"unitCost"`
		} `json:"breakdown"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))

	// (100 + 10) / 2 = 55 per unit, stored average ignored
	assert.True(t, resp.Breakdown.UnitCost.Equal(d("55.00")), "unit cost = %s", resp.Breakdown.UnitCost)
}

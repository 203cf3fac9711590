package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aristath/foresight/internal/domain"
	"github.com/aristath/foresight/internal/modules/planning"
	testutil "github.com/aristath/foresight/internal/testing"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubForecaster struct {
	portfolio *domain.Portfolio
	err       error
}

func (s stubForecaster) ForecastPortfolio(_ context.Context, id string, _ time.Time, _ int) (*planning.PortfolioForecast, *domain.Portfolio, error) {
	if s.err != nil {
		return nil, nil, s.err
	}
	if id != s.portfolio.ID {
		return nil, nil, domain.ErrDataUnavailable
	}
	pred := domain.Prediction{ExpectedReturn: 0.01, Volatility: 0.012, Confidence: 0.7, RiskLevel: domain.RiskMedium, HorizonDays: 5}
	return &planning.PortfolioForecast{
		Market:     domain.MarketPrediction{Prediction: pred},
		Securities: map[string]domain.SecurityPrediction{"AAA": {Prediction: pred, Symbol: "AAA"}},
	}, s.portfolio.Clone(), nil
}

func setupRouter(t *testing.T) *chi.Mux {
	t.Helper()
	idx := testutil.GenerateBars(testutil.SeriesSpec{Symbol: "IDX", Start: 100, Drift: 0.0005, Amplitude: 0.01, Period: 13}, 90)
	aaa := testutil.GenerateBars(testutil.SeriesSpec{Symbol: "AAA", Start: 50, Drift: 0.001, Amplitude: 0.02, Period: 13}, 90)
	market := testutil.NewMarketData(idx, aaa)

	p := domain.NewPortfolio("main", 1_000)
	p.Positions = []domain.Position{{
		SecurityInfo: domain.SecurityInfo{Symbol: "AAA", AssetClass: "equity"},
		Quantity:     20,
		AverageCost:  50,
	}}
	for _, b := range aaa {
		p.UpdatePrice("AAA", b.Date, b.Close)
	}
	p.Revalue()

	handler := NewHandler(stubForecaster{portfolio: p}, market, Config{MarketSymbol: "IDX", LookbackDays: 60, RiskFreeRate: 0.02}, zerolog.Nop())
	handler.now = func() time.Time { return testutil.Day0.AddDate(0, 0, 80) }

	router := chi.NewRouter()
	assert.NotPanics(t, func() {
		handler.RegisterRoutes(router)
	}, "RegisterRoutes should not panic")
	return router
}

func get(router http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHandleGetPortfolioRisk(t *testing.T) {
	router := setupRouter(t)

	rec := get(router, "/risk/portfolios/main?tolerance=30")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Data     PortfolioRisk          `json:"data"`
		Metadata map[string]interface{} `json:"metadata"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "main", body.Data.PortfolioID)
	assert.Greater(t, body.Data.Historical.Observations, 0)
	assert.LessOrEqual(t, body.Data.Historical.VaR99, body.Data.Historical.VaR95)
	assert.NotNil(t, body.Data.Historical.Beta)
	assert.GreaterOrEqual(t, body.Data.Assessment.TotalRisk, 0.0)
	require.NotNil(t, body.Data.Target)
	assert.Equal(t, "60d", body.Metadata["period"])
}

func TestHandleGetSecurityRisk(t *testing.T) {
	router := setupRouter(t)

	rec := get(router, "/risk/securities/AAA?date=2023-03-01")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"beta"`)

	rec = get(router, "/risk/securities/IDX")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), `"beta"`)
}

func TestRiskRoutes_Errors(t *testing.T) {
	router := setupRouter(t)

	testCases := []struct {
		name   string
		path   string
		status int
	}{
		{"unknown portfolio", "/risk/portfolios/nope", http.StatusNotFound},
		{"bad tolerance", "/risk/portfolios/main?tolerance=high", http.StatusBadRequest},
		{"bad date", "/risk/securities/AAA?date=March", http.StatusBadRequest},
		{"no bars", "/risk/securities/ZZZ", http.StatusUnprocessableEntity},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.status, get(router, tc.path).Code)
		})
	}
}

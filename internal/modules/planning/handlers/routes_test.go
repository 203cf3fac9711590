package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aristath/foresight/internal/database"
	"github.com/aristath/foresight/internal/domain"
	"github.com/aristath/foresight/internal/modules/allocation"
	"github.com/aristath/foresight/internal/modules/ensemble"
	"github.com/aristath/foresight/internal/modules/monitoring"
	"github.com/aristath/foresight/internal/modules/optimization"
	"github.com/aristath/foresight/internal/modules/planning"
	"github.com/aristath/foresight/internal/modules/portfolio"
	"github.com/aristath/foresight/internal/modules/prediction"
	testutil "github.com/aristath/foresight/internal/testing"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRouter(t *testing.T) *chi.Mux {
	t.Helper()
	market := testutil.NewMarketData(
		testutil.GenerateBars(testutil.SeriesSpec{Symbol: "IDX", Start: 100, Drift: 0.0008, Amplitude: 0.006, Period: 17}, 120),
		testutil.GenerateBars(testutil.SeriesSpec{Symbol: "AAA", Start: 50, Drift: 0.0015, Amplitude: 0.012, Period: 11}, 120),
	)
	repo := portfolio.NewRepository(testutil.NewTestDB(t, database.NamePortfolio).Conn(), zerolog.Nop())
	p := testutil.PortfolioWith("main", 1_000, map[string]float64{"AAA": 10}, map[string]float64{"AAA": 50}, 0)
	require.NoError(t, repo.SavePortfolio(context.Background(), p))

	predCfg := prediction.DefaultConfig()
	service := planning.NewService(
		market,
		nil,
		repo,
		ensemble.NewDefaultService(predCfg, domain.WeightingEqual, monitoring.NewMonitor(time.Hour, zerolog.Nop()), zerolog.Nop()),
		optimization.NewOptimizer(allocation.DefaultConfig(), zerolog.Nop()),
		prediction.FeatureBuilder{ReturnLags: predCfg.ReturnLags},
		planning.DefaultConfig("IDX"),
		zerolog.Nop(),
	)
	handler := NewHandler(service, zerolog.Nop())
	handler.now = func() time.Time { return testutil.Day0.AddDate(0, 0, 110).Add(15 * time.Hour) }

	router := chi.NewRouter()
	require.NotPanics(t, func() {
		handler.RegisterRoutes(router)
	}, "RegisterRoutes should not panic")
	return router
}

func post(router http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestPlanningRoutes(t *testing.T) {
	router := setupRouter(t)

	testCases := []struct {
		name   string
		path   string
		body   string
		status int
	}{
		{"market today", "/predict/market", `{}`, http.StatusOK},
		{"market dated", "/predict/market", `{"date":"2023-04-01","horizon_days":3}`, http.StatusOK},
		{"security", "/predict/security", `{"symbol":"AAA"}`, http.StatusOK},
		{"security without symbol", "/predict/security", `{}`, http.StatusBadRequest},
		{"security without data", "/predict/security", `{"symbol":"ZZZ"}`, http.StatusNotFound},
		{"portfolio", "/predict/portfolio", `{"portfolio_id":"main"}`, http.StatusOK},
		{"unknown portfolio", "/predict/portfolio", `{"portfolio_id":"nope"}`, http.StatusNotFound},
		{"optimize", "/optimize", `{"portfolio_id":"main"}`, http.StatusOK},
		{"bad date", "/optimize", `{"portfolio_id":"main","date":"04/01/2023"}`, http.StatusBadRequest},
		{"malformed", "/predict/market", `{`, http.StatusBadRequest},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := post(router, tc.path, tc.body)
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
		})
	}
}

func TestPlanningRoutes_OptimizeEnvelope(t *testing.T) {
	router := setupRouter(t)
	rec := post(router, "/optimize", `{"portfolio_id":"main","profiles":{"risk":{"risk_tolerance":20}}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Data struct {
			PortfolioID string `json:"portfolio_id"`
			Plan        struct {
				TargetWeights map[string]float64 `json:"target_weights"`
			} `json:"plan"`
		} `json:"data"`
		Metadata map[string]interface{} `json:"metadata"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "main", body.Data.PortfolioID)
	assert.Contains(t, body.Data.Plan.TargetWeights, "AAA")
	assert.Contains(t, body.Metadata, "timestamp")
}

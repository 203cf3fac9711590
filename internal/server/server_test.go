package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aristath/foresight/internal/config"
	"github.com/aristath/foresight/internal/di"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := &config.Config{
		DataDir:              t.TempDir(),
		Port:                 8001,
		DevMode:              true,
		MarketSymbol:         "IDX",
		RiskFreeRate:         0.02,
		HorizonDays:          5,
		LookbackDays:         365,
		BacktestWorkers:      2,
		BacktestTimeout:      time.Minute,
		MonitorWindow:        24 * time.Hour,
		ResultsRetentionDays: 30,
		Schedules: config.Schedules{
			MonitorSweep: "0 0 * * * *",
			Retention:    "0 30 3 * * *",
		},
	}
	container, err := di.Wire(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Close() })

	return New(Config{Log: zerolog.Nop(), Container: container})
}

func do(s *Server, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	rec := do(s, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestSystemStatus(t *testing.T) {
	s := newTestServer(t)

	rec := do(s, http.MethodGet, "/api/system/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body SystemStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Status)
	assert.Len(t, body.Databases, 3)
	for _, db := range body.Databases {
		assert.True(t, db.Healthy, db.Name)
	}
}

func TestJobs(t *testing.T) {
	s := newTestServer(t)

	rec := do(s, http.MethodGet, "/api/jobs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Data []JobStatus `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	names := make([]string, 0, len(list.Data))
	for _, j := range list.Data {
		names = append(names, j.Name)
	}
	assert.Contains(t, names, "monitor_sweep")
	assert.Contains(t, names, "retention")

	testCases := []struct {
		name   string
		job    string
		status int
	}{
		{"monitor sweep", "monitor_sweep", http.StatusOK},
		{"unknown job", "does_not_exist", http.StatusNotFound},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.status, do(s, http.MethodPost, "/api/jobs/"+tc.job, "").Code)
		})
	}
}

func TestMetricsRecordsRoutes(t *testing.T) {
	s := newTestServer(t)

	require.Equal(t, http.StatusOK, do(s, http.MethodGet, "/api/models/", "").Code)

	rec := do(s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `route="/api/models"`)
	assert.NotContains(t, rec.Body.String(), `route="/api/models/"`)
}

func TestRouteLabel(t *testing.T) {
	testCases := []struct {
		name     string
		pattern  string
		path     string
		expected string
	}{
		{"mounted index", "/api/models/", "/api/models/", "/api/models"},
		{"parameterised", "/api/jobs/{name}", "/api/jobs/monitor_sweep", "/api/jobs/{name}"},
		{"root", "/", "/", "/"},
		{"unmatched", "", "/nowhere/", "/nowhere"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rctx := chi.NewRouteContext()
			if tc.pattern != "" {
				rctx.RoutePatterns = []string{tc.pattern}
			}
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
			assert.Equal(t, tc.expected, routeLabel(req))
		})
	}
}

func TestModuleRoutesMounted(t *testing.T) {
	s := newTestServer(t)

	rec := do(s, http.MethodPost, "/api/portfolios/", `{"id":"main","cash":1000}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	testCases := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{"portfolio", http.MethodGet, "/api/portfolios/main", "", http.StatusOK},
		{"missing portfolio", http.MethodGet, "/api/portfolios/none", "", http.StatusNotFound},
		{"symbols", http.MethodGet, "/api/data/symbols", "", http.StatusOK},
		{"backtests", http.MethodGet, "/api/backtests/", "", http.StatusOK},
		{"optimize without body", http.MethodPost, "/api/optimize", "{", http.StatusBadRequest},
		{"unknown route", http.MethodGet, "/api/nothing", "", http.StatusNotFound},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(s, tc.method, tc.path, tc.body)
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
		})
	}
}

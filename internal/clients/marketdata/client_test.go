package marketdata

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aristath/foresight/internal/domain"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	d, _ := time.Parse(dateLayout, s)
	return d
}

func newTestClient(url string) *Client {
	cfg := DefaultConfig(url)
	cfg.RequestsPerSecond = 0
	cfg.OpenTimeout = time.Minute
	return NewClient(cfg, zerolog.Nop())
}

func TestHistory(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bars/AAA", r.URL.Path)
		assert.Equal(t, "2024-01-02", r.URL.Query().Get("from"))
		assert.Equal(t, "2024-01-04", r.URL.Query().Get("to"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		_ = json.NewEncoder(w).Encode(barsResponse{Symbol: "AAA", Bars: []barDTO{
			{Date: "2024-01-01", Close: 9},
			{Date: "2024-01-02", Open: 10, High: 11, Low: 9.5, Close: 10.5, Volume: 1000},
			{Date: "2024-01-03", Close: 10.8},
		}})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	client.apiKey = "secret"

	bars, err := client.History(context.Background(), "AAA", day("2024-01-02"), day("2024-01-04"))
	require.NoError(t, err)
	require.Len(t, bars, 2, "bars outside the window are dropped")
	assert.Equal(t, "AAA", bars[0].Symbol)
	assert.Equal(t, 10.5, bars[0].Close)
	assert.Equal(t, 1000.0, bars[0].Volume)
	assert.True(t, bars[1].Date.Equal(day("2024-01-03")))
}

func TestHistory_EmptySymbol(t *testing.T) {
	client := newTestClient("http://unused")
	_, err := client.History(context.Background(), "", day("2024-01-02"), day("2024-01-04"))
	assert.ErrorIs(t, err, domain.ErrEmptySymbol)
}

func TestBar(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		bars    []barDTO
		wantErr error
	}{
		{name: "found", status: http.StatusOK, bars: []barDTO{{Date: "2024-01-02", Close: 42}}},
		{name: "empty body", status: http.StatusOK, wantErr: domain.ErrDataUnavailable},
		{name: "not found", status: http.StatusNotFound, wantErr: domain.ErrDataUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_ = json.NewEncoder(w).Encode(barsResponse{Bars: tt.bars})
			}))
			defer server.Close()

			bar, err := newTestClient(server.URL).Bar(context.Background(), "AAA", day("2024-01-02"))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 42.0, bar.Close)
		})
	}
}

func TestContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/indicators", r.URL.Path)
		assert.Equal(t, "2024-01-02", r.URL.Query().Get("date"))
		_ = json.NewEncoder(w).Encode(indicatorsResponse{
			Date:       "2024-01-02",
			Indicators: map[string]float64{domain.IndicatorInflation: 0.03},
		})
	}))
	defer server.Close()

	econ, err := newTestClient(server.URL).Context(context.Background(), day("2024-01-02"))
	require.NoError(t, err)
	assert.Equal(t, 0.03, econ.Indicators[domain.IndicatorInflation])
}

func TestCircuitBreaker(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	for i := 0; i < 3; i++ {
		_, err := client.History(context.Background(), "AAA", day("2024-01-02"), day("2024-01-04"))
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrCircuitOpen)
	}
	assert.Equal(t, gobreaker.StateOpen, client.State())

	_, err := client.History(context.Background(), "AAA", day("2024-01-02"), day("2024-01-04"))
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls), "open breaker does not reach the server")
}

func TestCircuitBreaker_MissingDataDoesNotTrip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	for i := 0; i < 5; i++ {
		_, err := client.Bar(context.Background(), "AAA", day("2024-01-02"))
		assert.ErrorIs(t, err, domain.ErrDataUnavailable)
	}
	assert.Equal(t, gobreaker.StateClosed, client.State())
}

func TestRateLimiter_HonoursContext(t *testing.T) {
	cfg := DefaultConfig("http://unused")
	cfg.RequestsPerSecond = 0.001
	cfg.Burst = 1
	client := NewClient(cfg, zerolog.Nop())
	// Drain the single token
	require.True(t, client.limiter.Allow())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.History(ctx, "AAA", day("2024-01-02"), day("2024-01-04"))
	assert.ErrorIs(t, err, context.Canceled)
}

// Package marketdata provides an HTTP client for daily bars and economic
// indicators. Requests are rate limited and guarded by a circuit breaker.
package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/aristath/foresight/internal/domain"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

const dateLayout = "2006-01-02"

// ErrCircuitOpen is returned while the breaker rejects requests
var ErrCircuitOpen = errors.New("market data circuit open")

// Config configures the client
type Config struct {
	BaseURL string
	APIKey  string // Optional, sent as a bearer token
	// RequestsPerSecond caps the outgoing rate; 0 disables limiting
	RequestsPerSecond float64
	Burst             int
	Timeout           time.Duration
	// FailureThreshold is the number of consecutive failures that opens the
	// breaker; OpenTimeout is how long it stays open.
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

// DefaultConfig returns conservative limits for baseURL
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:           baseURL,
		RequestsPerSecond: 5,
		Burst:             5,
		Timeout:           10 * time.Second,
		FailureThreshold:  3,
		OpenTimeout:       60 * time.Second,
	}
}

type barDTO struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

type barsResponse struct {
	Symbol string   `json:"symbol"`
	Bars   []barDTO `json:"bars"`
}

type indicatorsResponse struct {
	Date       string             `json:"date"`
	Indicators map[string]float64 `json:"indicators"`
}

// Client implements domain.MarketDataProvider and
// domain.EconomicContextProvider over HTTP.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	log        zerolog.Logger
}

// NewClient creates a market data client
func NewClient(cfg Config, log zerolog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 3
	}
	c := &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        log.With().Str("client", "marketdata").Logger(),
	}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	threshold := cfg.FailureThreshold
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     "marketdata",
		Interval: 60 * time.Second,
		Timeout:  cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// Missing data is an answer, not a provider failure
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, domain.ErrDataUnavailable)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("Circuit breaker state changed")
		},
	})
	return c
}

// State reports the breaker state
func (c *Client) State() gobreaker.State {
	return c.breaker.State()
}

// get performs one rate-limited, breaker-guarded GET and decodes the JSON
// body into dst. 404 maps to ErrDataUnavailable.
func (c *Client) get(ctx context.Context, path string, query url.Values, dst interface{}) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}
	}

	_, err := c.breaker.Execute(func() (interface{}, error) {
		u := c.baseURL + path
		if len(query) > 0 {
			u += "?" + query.Encode()
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to build request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		c.log.Debug().Str("url", u).Msg("Fetching")
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("API request failed: %w", err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return nil, fmt.Errorf("%s: %w", path, domain.ErrDataUnavailable)
		case resp.StatusCode != http.StatusOK:
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
		}
		if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
			return nil, fmt.Errorf("failed to parse response: %w", err)
		}
		return nil, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrCircuitOpen, err)
	}
	return err
}

// History implements domain.MarketDataProvider
func (c *Client) History(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	if symbol == "" {
		return nil, domain.NewValidationError(domain.ErrEmptySymbol, "symbol", "symbol is required")
	}
	var resp barsResponse
	q := url.Values{}
	q.Set("from", start.Format(dateLayout))
	q.Set("to", end.Format(dateLayout))
	if err := c.get(ctx, "/bars/"+url.PathEscape(symbol), q, &resp); err != nil {
		return nil, err
	}

	bars := make([]domain.Bar, 0, len(resp.Bars))
	for _, b := range resp.Bars {
		d, err := time.Parse(dateLayout, b.Date)
		if err != nil {
			return nil, fmt.Errorf("invalid bar date %q for %s: %w", b.Date, symbol, err)
		}
		// Providers may pad the window; never return bars outside it
		if d.Before(start) || d.After(end) {
			continue
		}
		bars = append(bars, domain.Bar{
			Date: d, Symbol: symbol,
			Open: b.Open, High: b.High, Low: b.Low, Close: b.Close, Volume: b.Volume,
		})
	}
	return bars, nil
}

// Bar implements domain.MarketDataProvider
func (c *Client) Bar(ctx context.Context, symbol string, date time.Time) (domain.Bar, error) {
	bars, err := c.History(ctx, symbol, date, date)
	if err != nil {
		return domain.Bar{}, err
	}
	if len(bars) == 0 {
		return domain.Bar{}, fmt.Errorf("%s on %s: %w", symbol, date.Format(dateLayout), domain.ErrDataUnavailable)
	}
	return bars[len(bars)-1], nil
}

// Context implements domain.EconomicContextProvider
func (c *Client) Context(ctx context.Context, date time.Time) (domain.EconomicContext, error) {
	var resp indicatorsResponse
	q := url.Values{}
	q.Set("date", date.Format(dateLayout))
	if err := c.get(ctx, "/indicators", q, &resp); err != nil {
		return domain.EconomicContext{}, err
	}
	if len(resp.Indicators) == 0 {
		return domain.EconomicContext{}, fmt.Errorf("no indicators on %s: %w", date.Format(dateLayout), domain.ErrDataUnavailable)
	}
	return domain.EconomicContext{Date: date, Indicators: resp.Indicators}, nil
}

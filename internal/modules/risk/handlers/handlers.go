// Package handlers provides HTTP handlers for risk metrics operations.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/aristath/foresight/internal/domain"
	"github.com/aristath/foresight/internal/modules/planning"
	"github.com/aristath/foresight/internal/modules/risk"
	"github.com/aristath/foresight/pkg/formulas"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

const dateLayout = "2006-01-02"

// PortfolioForecaster loads a portfolio with price history and its forecasts
type PortfolioForecaster interface {
	ForecastPortfolio(ctx context.Context, id string, date time.Time, horizon int) (*planning.PortfolioForecast, *domain.Portfolio, error)
}

// Config holds the data window and benchmark of every risk calculation
type Config struct {
	MarketSymbol string
	LookbackDays int
	RiskFreeRate float64
}

// Handler handles risk metrics HTTP requests
type Handler struct {
	forecaster PortfolioForecaster
	market     domain.MarketDataProvider
	optimizer  *risk.Optimizer
	cfg        Config
	now        func() time.Time
	log        zerolog.Logger
}

// NewHandler creates a new risk metrics handler
func NewHandler(
	forecaster PortfolioForecaster,
	market domain.MarketDataProvider,
	cfg Config,
	log zerolog.Logger,
) *Handler {
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = 365
	}
	return &Handler{
		forecaster: forecaster,
		market:     market,
		optimizer:  risk.NewOptimizer(log),
		cfg:        cfg,
		now:        time.Now,
		log:        log.With().Str("handler", "risk").Logger(),
	}
}

// PortfolioRisk is the response of GET /risk/portfolios/{id}
type PortfolioRisk struct {
	PortfolioID    string          `json:"portfolio_id"`
	AsOf           time.Time       `json:"as_of"`
	PortfolioValue float64         `json:"portfolio_value"`
	Historical     risk.Metrics    `json:"historical"`
	Assessment     risk.Assessment `json:"assessment"`
	Target         *risk.Result    `json:"target,omitempty"`
}

// HandleGetPortfolioRisk handles GET /risk/portfolios/{id}?date=&tolerance=
func (h *Handler) HandleGetPortfolioRisk(w http.ResponseWriter, r *http.Request) {
	date, ok := h.date(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	forecast, p, err := h.forecaster.ForecastPortfolio(r.Context(), id, date, 0)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	benchmark, err := h.returns(r.Context(), h.cfg.MarketSymbol, date)
	if err != nil && !errors.Is(err, domain.ErrDataUnavailable) {
		h.writeServiceError(w, err)
		return
	}

	out := PortfolioRisk{
		PortfolioID:    id,
		AsOf:           date,
		PortfolioValue: p.TotalValue,
		Historical:     risk.Measure(risk.PortfolioReturns(p), benchmark, h.cfg.RiskFreeRate),
	}
	if out.Assessment, err = h.optimizer.Assess(p, forecast.Market, forecast.Securities); err != nil {
		h.writeServiceError(w, err)
		return
	}
	if v := r.URL.Query().Get("tolerance"); v != "" {
		tolerance, err := strconv.ParseFloat(v, 64)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "tolerance must be a number")
			return
		}
		profile := domain.DefaultRiskProfile()
		profile.RiskTolerance = tolerance
		res, err := h.optimizer.Optimize(p, forecast.Market, forecast.Securities, profile)
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		out.Target = &res
	}
	h.writeData(w, out)
}

// HandleGetSecurityRisk handles GET /risk/securities/{symbol}?date=
func (h *Handler) HandleGetSecurityRisk(w http.ResponseWriter, r *http.Request) {
	date, ok := h.date(w, r)
	if !ok {
		return
	}
	symbol := chi.URLParam(r, "symbol")
	returns, err := h.returns(r.Context(), symbol, date)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	var benchmark []float64
	if symbol != h.cfg.MarketSymbol {
		if benchmark, err = h.returns(r.Context(), h.cfg.MarketSymbol, date); err != nil && !errors.Is(err, domain.ErrDataUnavailable) {
			h.writeServiceError(w, err)
			return
		}
	}
	h.writeData(w, map[string]interface{}{
		"symbol":     symbol,
		"as_of":      date,
		"historical": risk.Measure(returns, benchmark, h.cfg.RiskFreeRate),
	})
}

// returns loads the daily returns of symbol over the lookback window
func (h *Handler) returns(ctx context.Context, symbol string, date time.Time) ([]float64, error) {
	if symbol == "" {
		return nil, domain.ErrDataUnavailable
	}
	bars, err := h.market.History(ctx, symbol, date.AddDate(0, 0, -h.cfg.LookbackDays), date)
	if err != nil {
		return nil, err
	}
	if len(bars) < 2 {
		return nil, domain.InsufficientHistory(symbol, len(bars), 2)
	}
	return formulas.CalculateReturns(domain.Closes(bars)), nil
}

func (h *Handler) date(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	v := r.URL.Query().Get("date")
	if v == "" {
		y, m, d := h.now().UTC().Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true
	}
	t, err := time.Parse(dateLayout, v)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return time.Time{}, false
	}
	return t, true
}

func (h *Handler) writeData(w http.ResponseWriter, data interface{}) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
			"period":    strconv.Itoa(h.cfg.LookbackDays) + "d",
			"method":    "historical",
		},
	})
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.Is(err, domain.ErrDataUnavailable):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInsufficientHistory):
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &verr):
		h.writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.log.Error().Err(err).Msg("Risk request failed")
		h.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

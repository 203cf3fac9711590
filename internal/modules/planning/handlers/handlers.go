// Package handlers provides HTTP handlers for forecasts and optimisation plans.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/aristath/foresight/internal/domain"
	"github.com/aristath/foresight/internal/modules/optimization"
	"github.com/aristath/foresight/internal/modules/planning"
	"github.com/rs/zerolog"
)

const dateLayout = "2006-01-02"

// Handler handles prediction and optimisation HTTP requests
type Handler struct {
	service *planning.Service
	now     func() time.Time
	log     zerolog.Logger
}

// NewHandler creates a new planning handler
func NewHandler(service *planning.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		now:     time.Now,
		log:     log.With().Str("handler", "planning").Logger(),
	}
}

// ForecastRequest is the body of every prediction endpoint
type ForecastRequest struct {
	Symbol      string `json:"symbol,omitempty"`
	PortfolioID string `json:"portfolio_id,omitempty"`
	Date        string `json:"date,omitempty"`
	HorizonDays int    `json:"horizon_days,omitempty"`
}

// OptimizeRequest is the body of POST /optimize
type OptimizeRequest struct {
	ForecastRequest
	Profiles *optimization.Profiles `json:"profiles,omitempty"`
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.log.Debug().Err(err).Msg("Failed to decode request body")
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// date parses the request date, defaulting to today
func (h *Handler) date(w http.ResponseWriter, value string) (time.Time, bool) {
	if value == "" {
		y, m, d := h.now().UTC().Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true
	}
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return time.Time{}, false
	}
	return t, true
}

// HandlePredictMarket handles POST /predict/market
func (h *Handler) HandlePredictMarket(w http.ResponseWriter, r *http.Request) {
	var req ForecastRequest
	if !h.decode(w, r, &req) {
		return
	}
	date, ok := h.date(w, req.Date)
	if !ok {
		return
	}
	res, err := h.service.PredictMarket(r.Context(), date, req.HorizonDays)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeData(w, res)
}

// HandlePredictSecurity handles POST /predict/security
func (h *Handler) HandlePredictSecurity(w http.ResponseWriter, r *http.Request) {
	var req ForecastRequest
	if !h.decode(w, r, &req) {
		return
	}
	date, ok := h.date(w, req.Date)
	if !ok {
		return
	}
	res, err := h.service.PredictSecurity(r.Context(), req.Symbol, date, req.HorizonDays)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeData(w, res)
}

// HandlePredictPortfolio handles POST /predict/portfolio
func (h *Handler) HandlePredictPortfolio(w http.ResponseWriter, r *http.Request) {
	var req ForecastRequest
	if !h.decode(w, r, &req) {
		return
	}
	date, ok := h.date(w, req.Date)
	if !ok {
		return
	}
	forecast, _, err := h.service.ForecastPortfolio(r.Context(), req.PortfolioID, date, req.HorizonDays)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeData(w, forecast)
}

// defaultProfiles returns a private copy of the configured profiles so a
// partial request body is decoded on top of them.
func (h *Handler) defaultProfiles() (*optimization.Profiles, error) {
	raw, err := json.Marshal(h.service.Config().Profiles)
	if err != nil {
		return nil, err
	}
	var out optimization.Profiles
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// HandleOptimize handles POST /optimize. Profile fields absent from the
// body keep their configured values.
func (h *Handler) HandleOptimize(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.defaultProfiles()
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	req := OptimizeRequest{Profiles: profiles}
	if !h.decode(w, r, &req) {
		return
	}
	date, ok := h.date(w, req.Date)
	if !ok {
		return
	}
	res, err := h.service.Optimize(r.Context(), req.PortfolioID, date, req.HorizonDays, req.Profiles)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeData(w, res)
}

// Helper methods

func (h *Handler) writeData(w http.ResponseWriter, data interface{}) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.Is(err, domain.ErrDataUnavailable):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInsufficientHistory), errors.Is(err, domain.ErrModelNotTrained):
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &verr):
		h.writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.log.Error().Err(err).Msg("Planning request failed")
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

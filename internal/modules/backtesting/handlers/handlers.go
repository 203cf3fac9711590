// Package handlers provides HTTP handlers for backtest runs.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/aristath/foresight/internal/domain"
	"github.com/aristath/foresight/internal/modules/backtesting"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

const dateLayout = "2006-01-02"

// Handler handles backtest HTTP requests
type Handler struct {
	framework *backtesting.Framework
	results   *backtesting.Repository
	timeout   time.Duration
	log       zerolog.Logger
}

// NewHandler creates a new backtest handler. timeout bounds each run; 0
// leaves runs bounded only by the request context.
func NewHandler(framework *backtesting.Framework, results *backtesting.Repository, timeout time.Duration, log zerolog.Logger) *Handler {
	return &Handler{
		framework: framework,
		results:   results,
		timeout:   timeout,
		log:       log.With().Str("handler", "backtesting").Logger(),
	}
}

// RunRequest is the body of POST /backtests. Each scenario is decoded on top
// of the default scenario.
type RunRequest struct {
	Start     string            `json:"start"`
	End       string            `json:"end"`
	Scenarios []json.RawMessage `json:"scenarios"`
}

// HandleRun handles POST /backtests
func (h *Handler) HandleRun(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	start, err := time.Parse(dateLayout, req.Start)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "start must be YYYY-MM-DD")
		return
	}
	end, err := time.Parse(dateLayout, req.End)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "end must be YYYY-MM-DD")
		return
	}
	scenarios := make([]backtesting.Scenario, 0, len(req.Scenarios))
	for i, raw := range req.Scenarios {
		sc := backtesting.DefaultScenario()
		if err := json.Unmarshal(raw, &sc); err != nil {
			h.writeError(w, http.StatusBadRequest, "scenario "+strconv.Itoa(i)+": "+err.Error())
			return
		}
		scenarios = append(scenarios, sc)
	}

	ctx := r.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}
	res, err := h.framework.RunBacktest(ctx, scenarios, start, end)
	if err != nil {
		if res != nil && (errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)) {
			h.log.Warn().Err(err).Msg("Backtest interrupted, returning partial result")
			h.writeJSON(w, http.StatusAccepted, envelope(res))
			return
		}
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, envelope(res))
}

// HandleList handles GET /backtests?limit=N
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			h.writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	runs, err := h.results.List(r.Context(), limit)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if runs == nil {
		runs = []backtesting.RunInfo{}
	}
	h.writeJSON(w, http.StatusOK, envelope(runs))
}

// HandleGet handles GET /backtests/{id}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	res, err := h.results.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, envelope(res))
}

// Helper methods

func envelope(data interface{}) map[string]interface{} {
	return map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.Is(err, domain.ErrDataUnavailable):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &verr):
		h.writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.log.Error().Err(err).Msg("Backtest request failed")
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

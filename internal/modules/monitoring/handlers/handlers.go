// Package handlers exposes model health over HTTP.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/aristath/foresight/internal/domain"
	"github.com/aristath/foresight/internal/modules/monitoring"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles model monitoring HTTP requests
type Handler struct {
	monitor *monitoring.Monitor
	log     zerolog.Logger
}

// NewHandler creates a new monitoring handler
func NewHandler(monitor *monitoring.Monitor, log zerolog.Logger) *Handler {
	return &Handler{
		monitor: monitor,
		log:     log.With().Str("handler", "monitoring").Logger(),
	}
}

// HandleOverview handles GET /models
func (h *Handler) HandleOverview(w http.ResponseWriter, r *http.Request) {
	overview := h.monitor.Overview()
	counts := map[domain.HealthStatus]int{}
	for _, health := range overview {
		counts[health.Status]++
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"models":    overview,
			"by_status": counts,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleGetModel handles GET /models/{model}
func (h *Handler) HandleGetModel(w http.ResponseWriter, r *http.Request) {
	model, ok := h.model(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": h.monitor.Health(model),
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleGetHistory handles GET /models/{model}/history
func (h *Handler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	model, ok := h.model(w, r)
	if !ok {
		return
	}
	hist := h.monitor.History(model)
	if hist == nil {
		hist = []domain.ModelPerformanceMetrics{}
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": hist,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
			"count":     len(hist),
		},
	})
}

// model resolves the URL parameter to a model with recorded metrics
func (h *Handler) model(w http.ResponseWriter, r *http.Request) (domain.ModelType, bool) {
	model := domain.ModelType(chi.URLParam(r, "model"))
	for _, known := range h.monitor.Models() {
		if known == model {
			return model, true
		}
	}
	h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "no metrics for model " + string(model)})
	return "", false
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

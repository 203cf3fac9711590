// Package handlers provides HTTP handlers for portfolio management.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/aristath/foresight/internal/domain"
	"github.com/aristath/foresight/internal/modules/portfolio"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles portfolio HTTP requests
type Handler struct {
	service *portfolio.PortfolioService
	log     zerolog.Logger
}

// NewHandler creates a new portfolio handler
func NewHandler(service *portfolio.PortfolioService, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "portfolio").Logger(),
	}
}

// CreateRequest is the body of POST /portfolios
type CreateRequest struct {
	ID      string                `json:"id"`
	Cash    float64               `json:"cash"`
	Catalog []domain.SecurityInfo `json:"catalog"`
}

// MarkRequest is the body of POST /portfolios/{id}/mark
type MarkRequest struct {
	Date string `json:"date"`
}

// HandleCreate handles POST /portfolios
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	p, err := h.service.Create(r.Context(), req.ID, req.Cash, req.Catalog)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeData(w, http.StatusCreated, p)
}

// HandleGet handles GET /portfolios/{id}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeData(w, http.StatusOK, p)
}

// HandleGetSummary handles GET /portfolios/{id}/summary
func (h *Handler) HandleGetSummary(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeData(w, http.StatusOK, portfolio.Summarize(p))
}

// HandleGetTransactions handles GET /portfolios/{id}/transactions?limit=N
func (h *Handler) HandleGetTransactions(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			h.writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	txs, err := h.service.Transactions(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if txs == nil {
		txs = []domain.Transaction{}
	}
	h.writeData(w, http.StatusOK, txs)
}

// HandleRecordTransaction handles POST /portfolios/{id}/transactions
func (h *Handler) HandleRecordTransaction(w http.ResponseWriter, r *http.Request) {
	var tx domain.Transaction
	if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	p, err := h.service.RecordTransaction(r.Context(), chi.URLParam(r, "id"), tx)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeData(w, http.StatusOK, p)
}

// HandleMark handles POST /portfolios/{id}/mark. The date defaults to today.
func (h *Handler) HandleMark(w http.ResponseWriter, r *http.Request) {
	var req MarkRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}
	date := time.Now().UTC().Truncate(24 * time.Hour)
	if req.Date != "" {
		d, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		date = d
	}
	p, err := h.service.MarkToMarket(r.Context(), chi.URLParam(r, "id"), date)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeData(w, http.StatusOK, p)
}

// Helper methods

func (h *Handler) writeData(w http.ResponseWriter, status int, data interface{}) {
	h.writeJSON(w, status, map[string]interface{}{
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
	case errors.As(err, &verr):
		h.writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.log.Error().Err(err).Msg("Portfolio request failed")
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

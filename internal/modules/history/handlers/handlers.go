// Package handlers exposes the stored market history over HTTP.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/aristath/foresight/internal/domain"
	"github.com/aristath/foresight/internal/modules/history"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

const dateLayout = "2006-01-02"

// BarInput is one bar in an ingest request
type BarInput struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// BarsRequest is the body of POST /data/bars/{symbol}
type BarsRequest struct {
	Bars []BarInput `json:"bars"`
}

// IndicatorsRequest is the body of POST /data/indicators
type IndicatorsRequest struct {
	Date       string             `json:"date"`
	Indicators map[string]float64 `json:"indicators"`
}

// SyncRequest is the body of POST /data/sync
type SyncRequest struct {
	Symbols []string `json:"symbols"`
	End     string   `json:"end"`
}

// Handler handles market history HTTP requests
type Handler struct {
	store  *history.Store
	syncer *history.Syncer
	now    func() time.Time
	log    zerolog.Logger
}

// NewHandler creates a new history handler. syncer may be nil, in which
// case the sync endpoint answers 503.
func NewHandler(store *history.Store, syncer *history.Syncer, log zerolog.Logger) *Handler {
	return &Handler{
		store:  store,
		syncer: syncer,
		now:    time.Now,
		log:    log.With().Str("handler", "history").Logger(),
	}
}

// HandleListSymbols handles GET /data/symbols
func (h *Handler) HandleListSymbols(w http.ResponseWriter, r *http.Request) {
	symbols, err := h.store.Symbols(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if symbols == nil {
		symbols = []string{}
	}
	h.writeJSON(w, http.StatusOK, envelope(symbols))
}

// HandleGetBars handles GET /data/bars/{symbol}?from=&to=
func (h *Handler) HandleGetBars(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	to, err := h.dateParam(r.URL.Query().Get("to"), h.now())
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid to date")
		return
	}
	from, err := h.dateParam(r.URL.Query().Get("from"), to.AddDate(-1, 0, 0))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid from date")
		return
	}
	if from.After(to) {
		h.writeError(w, http.StatusBadRequest, "from must not be after to")
		return
	}

	bars, err := h.store.History(r.Context(), symbol, from, to)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if bars == nil {
		bars = []domain.Bar{}
	}
	h.writeJSON(w, http.StatusOK, envelope(bars))
}

// HandleUpsertBars handles POST /data/bars/{symbol}
func (h *Handler) HandleUpsertBars(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	var req BarsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	bars := make([]domain.Bar, 0, len(req.Bars))
	for i, in := range req.Bars {
		d, err := time.Parse(dateLayout, in.Date)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid date in bar "+in.Date)
			return
		}
		b := domain.Bar{Date: d, Symbol: symbol, Open: in.Open, High: in.High, Low: in.Low, Close: in.Close, Volume: in.Volume}
		if reason := history.ValidateBar(b); reason != "" {
			h.log.Debug().Int("index", i).Str("reason", reason).Msg("Rejected bar")
			h.writeError(w, http.StatusBadRequest, "bar "+in.Date+" rejected: "+reason)
			return
		}
		bars = append(bars, b)
	}

	if err := h.store.UpsertBars(r.Context(), bars); err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{"symbol": symbol, "stored": len(bars)}))
}

// HandleUpsertIndicators handles POST /data/indicators
func (h *Handler) HandleUpsertIndicators(w http.ResponseWriter, r *http.Request) {
	var req IndicatorsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid date format, expected YYYY-MM-DD")
		return
	}
	if len(req.Indicators) == 0 {
		h.writeError(w, http.StatusBadRequest, "no indicators given")
		return
	}
	if err := h.store.UpsertIndicators(r.Context(), date, req.Indicators); err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{"stored": len(req.Indicators)}))
}

// HandleGetContext handles GET /data/context?date=
func (h *Handler) HandleGetContext(w http.ResponseWriter, r *http.Request) {
	date, err := h.dateParam(r.URL.Query().Get("date"), h.now())
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid date")
		return
	}
	econ, err := h.store.Context(r.Context(), date)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, envelope(econ))
}

// HandleSync handles POST /data/sync
func (h *Handler) HandleSync(w http.ResponseWriter, r *http.Request) {
	if h.syncer == nil {
		h.writeError(w, http.StatusServiceUnavailable, "no remote market data source configured")
		return
	}
	var req SyncRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	end, err := h.dateParam(req.End, h.now())
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid end date")
		return
	}
	symbols := req.Symbols
	if len(symbols) == 0 {
		if symbols, err = h.store.Symbols(r.Context()); err != nil {
			h.writeServiceError(w, err)
			return
		}
	}

	res, err := h.syncer.SyncBars(r.Context(), symbols, end)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if _, err := h.syncer.SyncIndicators(r.Context(), end); err != nil {
		h.log.Warn().Err(err).Msg("Indicator sync failed")
	}
	h.writeJSON(w, http.StatusOK, envelope(res))
}

func (h *Handler) dateParam(value string, fallback time.Time) (time.Time, error) {
	if value == "" {
		y, m, d := fallback.UTC().Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	}
	return time.Parse(dateLayout, value)
}

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
		h.log.Error().Err(err).Msg("History request failed")
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

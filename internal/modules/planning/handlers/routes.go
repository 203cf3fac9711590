package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers forecast and optimisation routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/predict", func(r chi.Router) {
		r.Post("/market", h.HandlePredictMarket)
		r.Post("/security", h.HandlePredictSecurity)
		r.Post("/portfolio", h.HandlePredictPortfolio)
	})
	r.Post("/optimize", h.HandleOptimize)
}

package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers model health routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/models", func(r chi.Router) {
		r.Get("/", h.HandleOverview)
		r.Get("/{model}", h.HandleGetModel)
		r.Get("/{model}/history", h.HandleGetHistory)
	})
}

package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all portfolio routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/portfolios", func(r chi.Router) {
		r.Post("/", h.HandleCreate)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.HandleGet)
			r.Get("/summary", h.HandleGetSummary)
			r.Get("/transactions", h.HandleGetTransactions)
			r.Post("/transactions", h.HandleRecordTransaction)
			r.Post("/mark", h.HandleMark) // Mark to market and snapshot
		})
	})
}

package handlers

import "github.com/go-chi/chi/v5"

// RegisterRoutes registers history routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/data", func(r chi.Router) {
		r.Get("/symbols", h.HandleListSymbols)
		r.Get("/bars/{symbol}", h.HandleGetBars)
		r.Post("/bars/{symbol}", h.HandleUpsertBars)
		r.Get("/context", h.HandleGetContext)
		r.Post("/indicators", h.HandleUpsertIndicators)
		r.Post("/sync", h.HandleSync) // Pull missing bars from the remote source
	})
}

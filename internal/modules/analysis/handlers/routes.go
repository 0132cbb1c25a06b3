package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all analysis routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/analysis", func(r chi.Router) {
		r.Get("/universes", h.HandleListUniverses)
		r.Get("/runs", h.HandleListRuns)

		r.Route("/{universe}", func(r chi.Router) {
			r.Post("/run", h.HandleRun)
			r.Get("/components", h.HandleGetComponents)
			r.Get("/residuals", h.HandleGetResiduals)
			r.Get("/screen", h.HandleGetScreen)
			r.Get("/correlations", h.HandleGetCorrelations)
		})
	})
}

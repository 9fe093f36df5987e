package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers scenario catalog routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/scenarios", func(r chi.Router) {
		r.Get("/", h.HandleListScenarios)
		r.Get("/{key}", func(w http.ResponseWriter, r *http.Request) {
			h.HandleGetScenario(w, r, chi.URLParam(r, "key"))
		})
	})
}

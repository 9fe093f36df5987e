package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers stress-test and report-backtest routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/stress-tests", func(r chi.Router) {
		r.Post("/", h.HandleRunStressTest)
		r.Get("/", h.HandleListRuns)
		r.Get("/{id}", func(w http.ResponseWriter, r *http.Request) {
			h.HandleGetRun(w, r, chi.URLParam(r, "id"))
		})
	})

	r.Route("/reports/{ref}/backtests", func(r chi.Router) {
		r.Post("/", func(w http.ResponseWriter, r *http.Request) {
			h.HandleRunBacktest(w, r, chi.URLParam(r, "ref"))
		})
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			h.HandleListBacktests(w, r, chi.URLParam(r, "ref"))
		})
	})
}

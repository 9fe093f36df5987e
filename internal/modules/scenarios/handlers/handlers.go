// Package handlers provides HTTP handlers for the scenario catalog.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/quantstack/stresslab/internal/modules/scenarios"
)

// Handler handles scenario catalog HTTP requests.
type Handler struct {
	catalog *scenarios.Catalog
	log     zerolog.Logger
}

// NewHandler creates a scenario handler.
func NewHandler(catalog *scenarios.Catalog, log zerolog.Logger) *Handler {
	return &Handler{
		catalog: catalog,
		log:     log.With().Str("handler", "scenarios").Logger(),
	}
}

// HandleListScenarios handles GET /api/scenarios.
func (h *Handler) HandleListScenarios(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": h.catalog.List(),
		"metadata": map[string]interface{}{
			"count":     len(h.catalog.Keys()),
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleGetScenario handles GET /api/scenarios/{key}.
func (h *Handler) HandleGetScenario(w http.ResponseWriter, r *http.Request, key string) {
	scenario, err := h.catalog.Get(key)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": scenario,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

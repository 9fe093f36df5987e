// Package handlers provides HTTP handlers for stress-test runs and report
// backtests.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/quantstack/stresslab/internal/domain"
	"github.com/quantstack/stresslab/internal/modules/stresstest"
)

// Handler handles stress-test HTTP requests.
type Handler struct {
	service *stresstest.Service
	log     zerolog.Logger
}

// NewHandler creates a stress-test handler.
func NewHandler(service *stresstest.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "stresstest").Logger(),
	}
}

// stressTestPayload is the POST /api/stress-tests request body.
type stressTestPayload struct {
	Holdings     []domain.Holding `json:"holdings"`
	RiskProfile  string           `json:"risk_profile"`
	ScenarioKeys []string         `json:"scenario_keys"`
	OwnerRef     string           `json:"owner_ref"`
}

// backtestPayload is the POST /api/reports/{ref}/backtests request body.
type backtestPayload struct {
	Holdings    []domain.Holding `json:"holdings"`
	RiskProfile string           `json:"risk_profile"`
	ScenarioKey string           `json:"scenario_key"`
	Direction   string           `json:"direction"`
}

// HandleRunStressTest handles POST /api/stress-tests.
func (h *Handler) HandleRunStressTest(w http.ResponseWriter, r *http.Request) {
	var payload stressTestPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	profile, err := domain.ParseRiskProfile(payload.RiskProfile)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	run, err := h.service.RunStressTest(r.Context(), stresstest.StressTestRequest{
		OwnerRef: payload.OwnerRef,
		Portfolio: domain.Portfolio{
			Holdings:    payload.Holdings,
			RiskProfile: profile,
		},
		ScenarioKeys: payload.ScenarioKeys,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, run)
}

// HandleGetRun handles GET /api/stress-tests/{id}.
func (h *Handler) HandleGetRun(w http.ResponseWriter, r *http.Request, id string) {
	run, err := h.service.GetRun(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(run))
}

// HandleListRuns handles GET /api/stress-tests?limit=N&owner=REF.
func (h *Handler) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "Invalid limit parameter", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	var runs []*stresstest.PortfolioStressTestRun
	var err error
	if owner := r.URL.Query().Get("owner"); owner != "" {
		runs, err = h.service.ListRunsForOwner(r.Context(), owner)
	} else {
		runs, err = h.service.ListRecentRuns(r.Context(), limit)
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	if runs == nil {
		runs = []*stresstest.PortfolioStressTestRun{}
	}

	h.writeJSON(w, http.StatusOK, envelope(runs))
}

// HandleRunBacktest handles POST /api/reports/{ref}/backtests.
func (h *Handler) HandleRunBacktest(w http.ResponseWriter, r *http.Request, reportRef string) {
	var payload backtestPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	direction, err := domain.ParseReportDirection(payload.Direction)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	profile := domain.ProfileModerate
	if payload.RiskProfile != "" {
		profile, err = domain.ParseRiskProfile(payload.RiskProfile)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	bt, err := h.service.RunReportBacktest(r.Context(), stresstest.BacktestRequest{
		ReportRef:   reportRef,
		ScenarioKey: payload.ScenarioKey,
		Direction:   direction,
		Portfolio: domain.Portfolio{
			Holdings:    payload.Holdings,
			RiskProfile: profile,
		},
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, bt)
}

// HandleListBacktests handles GET /api/reports/{ref}/backtests.
func (h *Handler) HandleListBacktests(w http.ResponseWriter, r *http.Request, reportRef string) {
	backtests, err := h.service.ListBacktests(r.Context(), reportRef)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if backtests == nil {
		backtests = []*stresstest.ReportBacktest{}
	}

	h.writeJSON(w, http.StatusOK, envelope(backtests))
}

// writeError maps domain errors onto HTTP statuses. Typed errors carry the
// user-facing detail; anything unrecognized is a 500.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var invalidErr *domain.InvalidPortfolioError
	var unknownErr *domain.UnknownScenarioError
	var notFoundErr *domain.NotFoundError

	switch {
	case errors.As(err, &invalidErr), errors.As(err, &unknownErr):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.As(err, &notFoundErr):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		h.log.Error().Err(err).Msg("Stress test request failed")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func envelope(data interface{}) map[string]interface{} {
	return map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantstack/stresslab/internal/database"
	"github.com/quantstack/stresslab/internal/modules/marketdata"
	"github.com/quantstack/stresslab/internal/modules/recommendations"
	"github.com/quantstack/stresslab/internal/modules/scenarios"
	scenarioshandlers "github.com/quantstack/stresslab/internal/modules/scenarios/handlers"
	"github.com/quantstack/stresslab/internal/modules/scoring"
	"github.com/quantstack/stresslab/internal/modules/simulation"
	"github.com/quantstack/stresslab/internal/modules/stresstest"
	stresstesthandlers "github.com/quantstack/stresslab/internal/modules/stresstest/handlers"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	name := strings.ReplaceAll(t.Name(), "/", "_")
	stressDB, err := database.New(database.Config{
		Path:    "file:server_stress_" + name + "?mode=memory&cache=shared",
		Profile: database.ProfileLedger,
		Name:    "stress",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = stressDB.Close() })
	require.NoError(t, stressDB.Migrate())

	cacheDB, err := database.New(database.Config{
		Path:    "file:server_cache_" + name + "?mode=memory&cache=shared",
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = cacheDB.Close() })
	require.NoError(t, cacheDB.Migrate())

	log := zerolog.Nop()
	catalog := scenarios.NewCatalog(log)
	simulator := simulation.NewSimulator(marketdata.NewStaticSectorProvider(marketdata.DefaultSectorTable()), log)
	service := stresstest.NewService(
		catalog,
		simulator,
		scoring.NewScorer(catalog),
		recommendations.NewEngine(catalog, log),
		stresstest.NewRunRepository(stressDB.Conn(), log),
		stresstest.NewBacktestRepository(stressDB.Conn(), log),
		log,
	)

	return New(Config{
		Log:                log,
		Port:               0,
		DataDir:            t.TempDir(),
		StressDB:           stressDB,
		CacheDB:            cacheDB,
		ScenarioHandlers:   scenarioshandlers.NewHandler(catalog, log),
		StressTestHandlers: stresstesthandlers.NewHandler(service, log),
	})
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestListScenariosEndpoint(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/scenarios", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data []struct {
			Key string `json:"key"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data, 5)
	assert.Equal(t, "2008_crisis", body.Data[0].Key)
}

func TestStressTestEndToEnd(t *testing.T) {
	srv := newTestServer(t)

	payload := `{
		"holdings": [{"ticker": "RELIANCE", "weight": 0.5}, {"ticker": "TCS", "weight": 0.5}],
		"risk_profile": "moderate",
		"scenario_keys": ["covid_2020"]
	}`

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/stress-tests", bytes.NewBufferString(payload))
	req.Header.Set("Content-Type", "application/json")
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var run struct {
		ID           string   `json:"id"`
		OverallScore float64  `json:"overall_score"`
		RiskCategory string   `json:"risk_category"`
		Scenarios    []struct {
			ScenarioKey string `json:"scenario_key"`
		} `json:"scenarios"`
		Recommendations []string `json:"recommendations"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))

	assert.NotEmpty(t, run.ID)
	assert.Less(t, run.OverallScore, 75.0)
	assert.NotEmpty(t, run.RiskCategory)
	require.Len(t, run.Scenarios, 1)
	assert.Equal(t, "covid_2020", run.Scenarios[0].ScenarioKey)
	assert.NotEmpty(t, run.Recommendations)

	// The run is retrievable through the read endpoint
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stress-tests/"+run.ID, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStressTestUnknownScenarioReturns400(t *testing.T) {
	srv := newTestServer(t)

	payload := `{
		"holdings": [{"ticker": "TCS", "weight": 1.0}],
		"risk_profile": "moderate",
		"scenario_keys": ["2008_crisis", "not_a_real_scenario"]
	}`

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/stress-tests", bytes.NewBufferString(payload))
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "not_a_real_scenario")
}

func TestStressTestEmptyPortfolioReturns400(t *testing.T) {
	srv := newTestServer(t)

	payload := `{"holdings": [], "risk_profile": "moderate", "scenario_keys": ["covid_2020"]}`

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/stress-tests", bytes.NewBufferString(payload))
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetUnknownRunReturns404(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stress-tests/no-such-id", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBacktestEndpoint(t *testing.T) {
	srv := newTestServer(t)

	payload := `{
		"holdings": [{"ticker": "RELIANCE", "weight": 0.5}, {"ticker": "TCS", "weight": 0.5}],
		"scenario_key": "covid_2020",
		"direction": "bearish"
	}`

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/reports/report-1/backtests", bytes.NewBufferString(payload))
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var bt struct {
		ReportRef     string  `json:"report_ref"`
		AccuracyScore float64 `json:"accuracy_score"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bt))
	assert.Equal(t, "report-1", bt.ReportRef)
	assert.GreaterOrEqual(t, bt.AccuracyScore, 80.0)

	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/reports/report-1/backtests", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSystemStatusEndpoint(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/system/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body, "data")
}

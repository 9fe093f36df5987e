package simulation

import (
	"errors"
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantstack/stresslab/internal/domain"
	"github.com/quantstack/stresslab/internal/modules/marketdata"
	"github.com/quantstack/stresslab/internal/modules/scenarios"
)

func newTestSimulator() *Simulator {
	return NewSimulator(marketdata.NewStaticSectorProvider(marketdata.DefaultSectorTable()), zerolog.Nop())
}

func covidScenario(t *testing.T) scenarios.MarketScenario {
	t.Helper()
	s, err := scenarios.NewCatalog(zerolog.Nop()).Get("covid_2020")
	require.NoError(t, err)
	return s
}

func twoStockPortfolio() domain.Portfolio {
	return domain.Portfolio{
		Holdings: []domain.Holding{
			{Ticker: "RELIANCE", Weight: 0.5},
			{Ticker: "TCS", Weight: 0.5},
		},
		RiskProfile: domain.ProfileModerate,
	}
}

func TestSimulate_Deterministic(t *testing.T) {
	sim := newTestSimulator()
	scenario := covidScenario(t)
	portfolio := twoStockPortfolio()

	first, err := sim.Simulate(portfolio, scenario, domain.ProfileModerate)
	require.NoError(t, err)
	second, err := sim.Simulate(portfolio, scenario, domain.ProfileModerate)
	require.NoError(t, err)

	assert.Equal(t, first, second, "same inputs must produce identical results")
}

func TestSimulate_JitterDifferentiatesHoldingsInSameSector(t *testing.T) {
	sim := newTestSimulator()
	scenario := covidScenario(t)

	portfolio := domain.Portfolio{
		Holdings: []domain.Holding{
			{Ticker: "TCS", Weight: 0.5},
			{Ticker: "INFY", Weight: 0.5},
		},
	}

	result, err := sim.Simulate(portfolio, scenario, domain.ProfileModerate)
	require.NoError(t, err)

	require.Len(t, result.Holdings, 2)
	assert.Equal(t, result.Holdings[0].Sector, result.Holdings[1].Sector)
	assert.NotEqual(t, result.Holdings[0].ReturnPct, result.Holdings[1].ReturnPct,
		"same-sector holdings should still differ via deterministic jitter")
}

func TestSimulate_SectorOverrideTakesPrecedence(t *testing.T) {
	sim := newTestSimulator()
	scenario := covidScenario(t)

	// INDIGO is travel (-60 override), NOSUCHTICKER takes the blanket -34.
	portfolio := domain.Portfolio{
		Holdings: []domain.Holding{
			{Ticker: "INDIGO", Weight: 0.5},
			{Ticker: "NOSUCHTICKER", Weight: 0.5},
		},
	}

	result, err := sim.Simulate(portfolio, scenario, domain.ProfileModerate)
	require.NoError(t, err)

	travel := result.Holdings[0]
	unknown := result.Holdings[1]

	assert.Equal(t, string(domain.SectorTravel), travel.Sector)
	assert.InDelta(t, -60, travel.ReturnPct, maxJitterPct+0.01)

	assert.Equal(t, "", unknown.Sector)
	assert.InDelta(t, -34, unknown.ReturnPct, maxJitterPct+0.01)
}

func TestSimulate_RiskProfileOrdering(t *testing.T) {
	sim := newTestSimulator()
	scenario := covidScenario(t)
	portfolio := twoStockPortfolio()

	conservative, err := sim.Simulate(portfolio, scenario, domain.ProfileConservative)
	require.NoError(t, err)
	moderate, err := sim.Simulate(portfolio, scenario, domain.ProfileModerate)
	require.NoError(t, err)
	aggressive, err := sim.Simulate(portfolio, scenario, domain.ProfileAggressive)
	require.NoError(t, err)

	lossC := math.Abs(conservative.PortfolioReturnPct)
	lossM := math.Abs(moderate.PortfolioReturnPct)
	lossA := math.Abs(aggressive.PortfolioReturnPct)

	assert.GreaterOrEqual(t, lossA, lossM, "aggressive loss >= moderate")
	assert.GreaterOrEqual(t, lossM, lossC, "moderate loss >= conservative")
}

func TestSimulate_OutputsWithinBounds(t *testing.T) {
	sim := newTestSimulator()
	catalog := scenarios.NewCatalog(zerolog.Nop())
	portfolio := twoStockPortfolio()

	for _, scenario := range catalog.List() {
		for _, profile := range []domain.RiskProfile{domain.ProfileConservative, domain.ProfileModerate, domain.ProfileAggressive} {
			result, err := sim.Simulate(portfolio, scenario, profile)
			require.NoError(t, err, scenario.Key)

			assert.GreaterOrEqual(t, result.PortfolioReturnPct, -100.0)
			assert.LessOrEqual(t, result.PortfolioReturnPct, 1000.0)
			assert.GreaterOrEqual(t, result.RecoveryTimeDays, 0)
			for _, h := range result.Holdings {
				assert.False(t, math.IsNaN(h.ReturnPct), "%s/%s", scenario.Key, h.Ticker)
				assert.GreaterOrEqual(t, h.ReturnPct, -100.0)
				assert.LessOrEqual(t, h.ReturnPct, 1000.0)
			}
		}
	}
}

func TestSimulate_ClampFlagOnExtremeScenario(t *testing.T) {
	sim := newTestSimulator()

	extreme := scenarios.MarketScenario{
		Key:             "total_wipeout",
		Name:            "Total Wipeout",
		MarketImpactPct: -99,
		RecoveryDays:    365,
	}

	// Aggressive multiplier pushes -99 * 1.3 past -100: clamped, flagged.
	result, err := sim.Simulate(twoStockPortfolio(), extreme, domain.ProfileAggressive)
	require.NoError(t, err)

	assert.True(t, result.Clamped, "clamping must be observable on the result")
	for _, h := range result.Holdings {
		assert.GreaterOrEqual(t, h.ReturnPct, -100.0)
	}
}

func TestSimulate_RecoveryFlooredAtHistorical(t *testing.T) {
	sim := newTestSimulator()
	scenario := covidScenario(t)

	// Healthcare-only portfolio loses far less than the -34% market: the
	// recovery floor keeps the estimate at the scenario's historical value.
	portfolio := domain.Portfolio{
		Holdings: []domain.Holding{{Ticker: "SUNPHARMA", Weight: 1.0}},
	}

	result, err := sim.Simulate(portfolio, scenario, domain.ProfileConservative)
	require.NoError(t, err)

	assert.Equal(t, scenario.RecoveryDays, result.RecoveryTimeDays)
}

func TestSimulate_PositiveReturnNeedsNoRecovery(t *testing.T) {
	sim := newTestSimulator()

	// Geopolitical shock rallies energy (+12); a pure-energy book gains.
	geo, err := scenarios.NewCatalog(zerolog.Nop()).Get("geopolitical_shock")
	require.NoError(t, err)

	portfolio := domain.Portfolio{
		Holdings: []domain.Holding{{Ticker: "RELIANCE", Weight: 1.0}},
	}

	result, err := sim.Simulate(portfolio, geo, domain.ProfileModerate)
	require.NoError(t, err)

	if result.PortfolioReturnPct >= 0 {
		assert.Equal(t, 0, result.RecoveryTimeDays)
	}
}

func TestSimulate_EmptyPortfolioRejected(t *testing.T) {
	sim := newTestSimulator()

	_, err := sim.Simulate(domain.Portfolio{}, covidScenario(t), domain.ProfileModerate)

	var invalidErr *domain.InvalidPortfolioError
	require.Error(t, err)
	assert.True(t, errors.As(err, &invalidErr))
}

func TestJitter_BoundedAndStable(t *testing.T) {
	for _, ticker := range []string{"RELIANCE", "TCS", "A", "ZZZZ"} {
		j := jitter(ticker, "covid_2020")
		assert.LessOrEqual(t, math.Abs(j), maxJitterPct, ticker)
		assert.Equal(t, j, jitter(ticker, "covid_2020"), "jitter must be stable")
	}

	// Different scenario key shifts the jitter
	assert.NotEqual(t, jitter("TCS", "covid_2020"), jitter("TCS", "2008_crisis"))
}

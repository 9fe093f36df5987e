package scenarios

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantstack/stresslab/internal/domain"
)

func testCatalog() *Catalog {
	return NewCatalog(zerolog.Nop())
}

func TestCatalogList_StableInsertionOrder(t *testing.T) {
	c := testCatalog()

	first := c.List()
	second := c.List()

	require.NotEmpty(t, first)
	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Key, second[i].Key, "order must be deterministic")
	}
	assert.Equal(t, "2008_crisis", first[0].Key)
}

func TestCatalogGet_KnownScenario(t *testing.T) {
	c := testCatalog()

	s, err := c.Get("covid_2020")
	require.NoError(t, err)

	assert.Equal(t, "COVID-19 Crash", s.Name)
	assert.InDelta(t, -34, s.MarketImpactPct, 0.001)
	assert.Equal(t, 148, s.RecoveryDays)
	assert.True(t, c.Has("covid_2020"))
}

func TestCatalogGet_UnknownScenario(t *testing.T) {
	c := testCatalog()

	_, err := c.Get("not_a_real_scenario")

	var notFound *domain.NotFoundError
	require.Error(t, err)
	assert.True(t, errors.As(err, &notFound))
	assert.Contains(t, err.Error(), "not_a_real_scenario")
	assert.False(t, c.Has("not_a_real_scenario"))
}

func TestCatalogSeeds_ImpactWithinBounds(t *testing.T) {
	for _, s := range testCatalog().List() {
		assert.GreaterOrEqual(t, s.MarketImpactPct, -100.0, s.Key)
		assert.LessOrEqual(t, s.MarketImpactPct, 100.0, s.Key)
		assert.GreaterOrEqual(t, s.RecoveryDays, 0, s.Key)
		for sector := range s.SectorImpacts {
			assert.True(t, domain.ValidSector(sector), "%s: sector %q outside vocabulary", s.Key, sector)
		}
	}
}

func TestScenarioImpactFor_SectorOverridePrecedence(t *testing.T) {
	c := testCatalog()
	s, err := c.Get("2008_crisis")
	require.NoError(t, err)

	// Financials has an explicit override, harsher than the blanket impact
	assert.InDelta(t, -62, s.ImpactFor(domain.SectorFinancials), 0.001)

	// Technology has no override in 2008 - falls back to blanket
	assert.InDelta(t, -45, s.ImpactFor(domain.SectorTechnology), 0.001)

	// Unknown sector always takes the blanket impact
	assert.InDelta(t, -45, s.ImpactFor(domain.SectorUnknown), 0.001)
}

func TestScenarioEffectiveMarketImpact_Inflation(t *testing.T) {
	c := testCatalog()
	s, err := c.Get("inflation_spike")
	require.NoError(t, err)

	// 8% inflation * 1.8 compression = -14.4% effective drag
	assert.InDelta(t, -14.4, s.EffectiveMarketImpact(), 0.001)
}

func TestNewCatalogFromFile_AppendsAndOverrides(t *testing.T) {
	seedPath := filepath.Join(t.TempDir(), "scenarios.json")
	seed := `[
		{"key": "covid_2020", "name": "COVID-19 Crash (revised)", "market_impact_pct": -30, "duration_days": 33, "recovery_days": 148},
		{"key": "rate_shock", "name": "Rapid Rate Hike Cycle", "market_impact_pct": -15, "duration_days": 200, "recovery_days": 365}
	]`
	require.NoError(t, os.WriteFile(seedPath, []byte(seed), 0o644))

	c, err := NewCatalogFromFile(seedPath, zerolog.Nop())
	require.NoError(t, err)

	revised, err := c.Get("covid_2020")
	require.NoError(t, err)
	assert.InDelta(t, -30, revised.MarketImpactPct, 0.001)

	added, err := c.Get("rate_shock")
	require.NoError(t, err)
	assert.Equal(t, "Rapid Rate Hike Cycle", added.Name)

	// Override keeps position, new scenario appends at the end
	keys := c.Keys()
	assert.Equal(t, "covid_2020", keys[1])
	assert.Equal(t, "rate_shock", keys[len(keys)-1])
}

func TestNewCatalogFromFile_RejectsOutOfRangeImpact(t *testing.T) {
	seedPath := filepath.Join(t.TempDir(), "scenarios.json")
	seed := `[{"key": "broken", "name": "Broken", "market_impact_pct": -150}]`
	require.NoError(t, os.WriteFile(seedPath, []byte(seed), 0o644))

	_, err := NewCatalogFromFile(seedPath, zerolog.Nop())
	assert.Error(t, err)
}

package scenarios

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/quantstack/stresslab/internal/domain"
)

// Catalog holds the known stress scenarios in insertion order. It is
// constructed once at startup and read-only afterwards, so concurrent reads
// need no locking.
type Catalog struct {
	order     []string
	scenarios map[string]MarketScenario
	log       zerolog.Logger
}

// NewCatalog creates a catalog seeded with the built-in historical
// scenarios.
func NewCatalog(log zerolog.Logger) *Catalog {
	c := &Catalog{
		scenarios: make(map[string]MarketScenario),
		log:       log.With().Str("component", "scenario_catalog").Logger(),
	}
	for _, s := range defaultScenarios() {
		c.add(s)
	}
	return c
}

// NewCatalogFromFile creates a catalog seeded with the built-in scenarios
// plus any definitions from a JSON seed file. File entries with a key that
// matches a built-in scenario replace it in place (order preserved); new
// keys append.
func NewCatalogFromFile(path string, log zerolog.Logger) (*Catalog, error) {
	c := NewCatalog(log)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario seed file: %w", err)
	}

	var seeds []MarketScenario
	if err := json.Unmarshal(data, &seeds); err != nil {
		return nil, fmt.Errorf("failed to parse scenario seed file: %w", err)
	}

	for _, s := range seeds {
		if err := validateScenario(s); err != nil {
			return nil, fmt.Errorf("invalid scenario %q in seed file: %w", s.Key, err)
		}
		c.add(s)
	}

	c.log.Info().Int("count", len(c.order)).Str("path", path).Msg("Scenario catalog seeded from file")
	return c, nil
}

// List returns all scenarios in insertion order.
func (c *Catalog) List() []MarketScenario {
	result := make([]MarketScenario, 0, len(c.order))
	for _, key := range c.order {
		result = append(result, c.scenarios[key])
	}
	return result
}

// Get returns the scenario for a key, or domain.NotFoundError if unknown.
func (c *Catalog) Get(key string) (MarketScenario, error) {
	s, ok := c.scenarios[key]
	if !ok {
		return MarketScenario{}, &domain.NotFoundError{Entity: "scenario", Key: key}
	}
	return s, nil
}

// Has reports whether a key exists in the catalog.
func (c *Catalog) Has(key string) bool {
	_, ok := c.scenarios[key]
	return ok
}

// Keys returns the scenario keys in insertion order.
func (c *Catalog) Keys() []string {
	keys := make([]string, len(c.order))
	copy(keys, c.order)
	return keys
}

func (c *Catalog) add(s MarketScenario) {
	if _, exists := c.scenarios[s.Key]; !exists {
		c.order = append(c.order, s.Key)
	}
	c.scenarios[s.Key] = s
}

func validateScenario(s MarketScenario) error {
	if s.Key == "" {
		return fmt.Errorf("empty key")
	}
	if s.MarketImpactPct < -100 || s.MarketImpactPct > 100 {
		return fmt.Errorf("market impact %.2f outside [-100, 100]", s.MarketImpactPct)
	}
	for sector := range s.SectorImpacts {
		if !domain.ValidSector(sector) {
			return fmt.Errorf("unknown sector %q in sector impacts", sector)
		}
	}
	if s.RecoveryDays < 0 || s.DurationDays < 0 {
		return fmt.Errorf("negative duration or recovery time")
	}
	return nil
}

// defaultScenarios is the built-in seed set. Adding a scenario here (or via
// the seed file) requires no simulator changes: the engine is data-driven.
func defaultScenarios() []MarketScenario {
	return []MarketScenario{
		{
			Key:             "2008_crisis",
			Name:            "2008 Financial Crisis",
			MarketImpactPct: -45,
			SectorImpacts: map[domain.Sector]float64{
				domain.SectorFinancials: -62,
				domain.SectorRealEstate: -55,
				domain.SectorConsumer:   -38,
				domain.SectorEnergy:     -40,
				domain.SectorUtilities:  -28,
			},
			DurationDays: 517,
			RecoveryDays: 1460,
			Description:  "Global banking collapse triggered by subprime mortgage defaults and credit freeze.",
		},
		{
			Key:             "covid_2020",
			Name:            "COVID-19 Crash",
			MarketImpactPct: -34,
			SectorImpacts: map[domain.Sector]float64{
				domain.SectorTravel:     -60,
				domain.SectorEnergy:     -50,
				domain.SectorFinancials: -40,
				domain.SectorTechnology: -20,
				domain.SectorHealthcare: -12,
			},
			DurationDays: 33,
			RecoveryDays: 148,
			Description:  "Pandemic lockdown shock; fastest bear market on record followed by a V-shaped recovery.",
		},
		{
			Key:             "geopolitical_shock",
			Name:            "Geopolitical / War Shock",
			MarketImpactPct: -18,
			SectorImpacts: map[domain.Sector]float64{
				domain.SectorEnergy:     12,
				domain.SectorMaterials:  -8,
				domain.SectorIndustrial: -22,
				domain.SectorConsumer:   -20,
			},
			DurationDays: 90,
			RecoveryDays: 240,
			Description:  "Regional conflict disrupting supply chains and energy markets; energy names rally.",
		},
		{
			Key:              "inflation_spike",
			Name:             "High-Inflation Environment",
			InflationRatePct: 8,
			SectorImpacts: map[domain.Sector]float64{
				domain.SectorTechnology: -22,
				domain.SectorRealEstate: -18,
				domain.SectorEnergy:     10,
				domain.SectorUtilities:  -6,
			},
			DurationDays: 540,
			RecoveryDays: 720,
			Description:  "Sustained high inflation compressing margins and multiples rather than a one-day crash.",
		},
		{
			Key:             "tech_bubble_burst",
			Name:            "Tech Bubble Burst",
			MarketImpactPct: -38,
			SectorImpacts: map[domain.Sector]float64{
				domain.SectorTechnology: -65,
				domain.SectorFinancials: -25,
				domain.SectorConsumer:   -18,
				domain.SectorUtilities:  -10,
			},
			DurationDays: 929,
			RecoveryDays: 2555,
			Description:  "Deflationary unwind of concentrated growth valuations, dot-com style.",
		},
	}
}

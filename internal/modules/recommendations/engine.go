// Package recommendations derives actionable portfolio guidance from stress
// test outcomes. The engine is a deterministic rule table: the same category,
// profile and results always produce the same advice in the same order.
package recommendations

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/quantstack/stresslab/internal/domain"
	"github.com/quantstack/stresslab/internal/modules/scenarios"
	"github.com/quantstack/stresslab/internal/modules/scoring"
	"github.com/quantstack/stresslab/internal/modules/simulation"
)

// concentrationThreshold is the sector weight above which a concentration
// warning fires when that sector was hit in a very_high scenario.
const concentrationThreshold = 0.40

// Engine produces recommendation text for a completed stress test run.
type Engine struct {
	catalog *scenarios.Catalog
	log     zerolog.Logger
}

// NewEngine creates a recommendation engine backed by the scenario catalog.
func NewEngine(catalog *scenarios.Catalog, log zerolog.Logger) *Engine {
	return &Engine{
		catalog: catalog,
		log:     log.With().Str("component", "recommendations").Logger(),
	}
}

// Recommend builds the ordered recommendation list for a run. The list is
// never empty: even a resilient portfolio gets a confirmation plus a
// rebalancing cadence suggestion.
func (e *Engine) Recommend(
	profile domain.RiskProfile,
	category scoring.RiskCategory,
	results []simulation.Result,
	sectorWeights map[domain.Sector]float64,
) []string {
	var recs []string

	switch category {
	case scoring.CategoryVeryHigh:
		recs = append(recs, "Portfolio shows severe vulnerability to market stress; consider reducing overall equity exposure")
		recs = append(recs, e.defensiveAdvice(profile)...)
	case scoring.CategoryHigh:
		recs = append(recs, "Portfolio shows elevated drawdown risk under historical stress scenarios")
		recs = append(recs, e.defensiveAdvice(profile)...)
	case scoring.CategoryModerate:
		recs = append(recs,
			"Portfolio resilience is acceptable but has room to improve under severe scenarios",
			"Review holdings against your worst-performing scenario and rebalance quarterly")
	default:
		recs = append(recs,
			"Portfolio demonstrates strong resilience across the tested scenarios",
			"Maintain current allocation and rebalance semi-annually to preserve it")
	}

	recs = append(recs, e.concentrationWarnings(results, sectorWeights)...)
	if worst, ok := worstScenario(results); ok && category != scoring.CategoryLow {
		recs = append(recs, fmt.Sprintf(
			"Largest projected drawdown is %.1f%% under the %s scenario; stress that exposure first",
			worst.PortfolioReturnPct, e.scenarioName(worst.ScenarioKey)))
	}

	return recs
}

// defensiveAdvice tailors the de-risking suggestions to the investor's
// stated risk appetite.
func (e *Engine) defensiveAdvice(profile domain.RiskProfile) []string {
	switch profile {
	case domain.ProfileConservative:
		return []string{
			"Shift a portion of equity weight into bonds or high-grade debt funds",
			"Favor established dividend-paying stocks over growth names",
		}
	case domain.ProfileAggressive:
		return []string{
			"Diversify across at least four sectors to blunt single-sector shocks",
			"Set stop-loss levels on the largest positions before the next drawdown",
		}
	default:
		return []string{
			"Add defensive sectors such as healthcare or utilities to the mix",
			"Trim the most volatile positions and redeploy into broad index exposure",
		}
	}
}

// concentrationWarnings flags sectors carrying more than the threshold weight
// that were also hit in a scenario scoring very_high on its own. Sectors are
// emitted in sorted order so the output stays deterministic.
func (e *Engine) concentrationWarnings(results []simulation.Result, sectorWeights map[domain.Sector]float64) []string {
	hit := map[domain.Sector]bool{}
	for _, r := range results {
		if scoring.CategoryFor(r.RiskAdjustedScore) != scoring.CategoryVeryHigh {
			continue
		}
		for _, h := range r.Holdings {
			if h.ReturnPct < 0 && h.Sector != "" {
				hit[domain.Sector(h.Sector)] = true
			}
		}
	}

	var flagged []domain.Sector
	for sector, weight := range sectorWeights {
		if weight > concentrationThreshold && hit[sector] {
			flagged = append(flagged, sector)
		}
	}
	sort.Slice(flagged, func(i, j int) bool { return flagged[i] < flagged[j] })

	warnings := make([]string, 0, len(flagged))
	for _, sector := range flagged {
		warnings = append(warnings, fmt.Sprintf(
			"Concentration risk: %.0f%% of the portfolio sits in %s, which was hit hard in at least one severe scenario",
			sectorWeights[sector]*100, sector))
	}
	return warnings
}

// worstScenario picks the result with the lowest aggregate return.
func worstScenario(results []simulation.Result) (simulation.Result, bool) {
	if len(results) == 0 {
		return simulation.Result{}, false
	}
	worst := results[0]
	for _, r := range results[1:] {
		if r.PortfolioReturnPct < worst.PortfolioReturnPct {
			worst = r
		}
	}
	return worst, true
}

func (e *Engine) scenarioName(key string) string {
	scenario, err := e.catalog.Get(key)
	if err != nil {
		return key
	}
	return scenario.Name
}

// Package scoring converts scenario simulation results into a single 0-100
// resilience score with categorical banding. The scorer is a pure function
// of its inputs: same results, same score, always.
package scoring

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/quantstack/stresslab/internal/modules/scenarios"
	"github.com/quantstack/stresslab/internal/modules/simulation"
)

// RiskCategory is the banded interpretation of an overall score. The band
// boundaries are a contract with the recommendation engine and any UI; they
// must not drift.
type RiskCategory string

const (
	CategoryLow      RiskCategory = "low"
	CategoryModerate RiskCategory = "moderate"
	CategoryHigh     RiskCategory = "high"
	CategoryVeryHigh RiskCategory = "very_high"
)

// Band boundaries, inclusive lower bound: [0,40) very_high, [40,60) high,
// [60,75) moderate, [75,100] low.
const (
	bandHigh     = 40.0
	bandModerate = 60.0
	bandLow      = 75.0
)

// Tunable blend coefficients. Loss magnitude is the dominant term by
// construction: the dispersion adjustment is bounded to ±maxDispersionAdj
// while the loss penalty can span the whole scale.
const (
	// lossPenaltyWeight scales the severity-weighted loss into score points.
	lossPenaltyWeight = 1.25

	// Severity weighting normalizes against the 2008 crisis (-45%); clamped
	// so mild scenarios still register and extreme ones cannot dominate.
	severityReference = 45.0
	severityMin       = 0.4
	severityMax       = 1.5

	// Dispersion adjustment: holdings moving in lockstep signal concentrated
	// risk (penalty); wide dispersion means some holdings hedge others
	// (credit). Centered on a stddev of 10 points of return.
	dispersionCenter = 10.0
	dispersionSlope  = 0.8
	maxDispersionAdj = 5.0
)

// CategoryFor maps a score onto its risk category.
func CategoryFor(score float64) RiskCategory {
	switch {
	case score < bandHigh:
		return CategoryVeryHigh
	case score < bandModerate:
		return CategoryHigh
	case score < bandLow:
		return CategoryModerate
	default:
		return CategoryLow
	}
}

// Scorer computes overall resilience scores. Scenario severity weights come
// from the injected catalog, so the scorer stays data-driven and trivially
// testable with fixture scenarios.
type Scorer struct {
	catalog *scenarios.Catalog
}

// NewScorer creates a scorer backed by the given scenario catalog.
func NewScorer(catalog *scenarios.Catalog) *Scorer {
	return &Scorer{catalog: catalog}
}

// Score reduces one or more simulation results to (overall 0-100 score,
// category). Starts from 100 and subtracts the average severity-weighted
// loss penalty, then applies the bounded dispersion adjustment.
func (s *Scorer) Score(results []simulation.Result) (float64, RiskCategory) {
	if len(results) == 0 {
		return 100, CategoryLow
	}

	totalPenalty := 0.0
	totalDispersion := 0.0

	for _, r := range results {
		totalPenalty += s.lossPenalty(r)
		totalDispersion += dispersionAdjustment(r)
	}

	n := float64(len(results))
	score := 100 - totalPenalty/n + totalDispersion/n

	score = math.Max(0, math.Min(100, score))
	score = math.Round(score*100) / 100

	return score, CategoryFor(score)
}

// lossPenalty is the severity-weighted penalty for one scenario's aggregate
// loss. Gains contribute no penalty.
func (s *Scorer) lossPenalty(r simulation.Result) float64 {
	loss := -r.PortfolioReturnPct
	if loss <= 0 {
		return 0
	}
	return loss * s.severityWeight(r.ScenarioKey) * lossPenaltyWeight
}

// severityWeight weights a scenario's penalty by its historical severity.
// Unknown keys (fixture scenarios in tests) weight neutrally.
func (s *Scorer) severityWeight(key string) float64 {
	scenario, err := s.catalog.Get(key)
	if err != nil {
		return 1.0
	}

	w := math.Abs(scenario.EffectiveMarketImpact()) / severityReference
	return math.Max(severityMin, math.Min(severityMax, w))
}

// dispersionAdjustment converts the spread of per-holding returns into a
// bounded credit or penalty. Needs at least two holdings to be meaningful.
func dispersionAdjustment(r simulation.Result) float64 {
	if len(r.Holdings) < 2 {
		return 0
	}

	returns := make([]float64, len(r.Holdings))
	for i, h := range r.Holdings {
		returns[i] = h.ReturnPct
	}

	sd := stat.StdDev(returns, nil)
	adj := (sd - dispersionCenter) * dispersionSlope
	return math.Max(-maxDispersionAdj, math.Min(maxDispersionAdj, adj))
}

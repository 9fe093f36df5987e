// Package scenarios provides the catalog of historical market stress
// scenarios. Scenarios are static reference data: seeded once at startup,
// immutable afterwards, and safe for concurrent reads without locking.
package scenarios

import "github.com/quantstack/stresslab/internal/domain"

// MarketScenario describes a historical or hypothetical macro-economic shock
// with quantified market and sector impact. All percentage fields are signed;
// negative means decline.
type MarketScenario struct {
	// Key is the stable identifier used on the wire (e.g. "2008_crisis").
	Key  string `json:"key"`
	Name string `json:"name"`

	// MarketImpactPct is the blanket market decline applied to holdings with
	// no sector-specific override. Always within [-100, 100].
	MarketImpactPct float64 `json:"market_impact_pct"`

	// SectorImpacts overrides the blanket impact per sector. Keys are drawn
	// from the fixed sector vocabulary in the domain package.
	SectorImpacts map[domain.Sector]float64 `json:"sector_impacts,omitempty"`

	// InflationRatePct parameterizes sustained-inflation scenarios, which are
	// modeled as margin compression rather than a single-day crash. When set
	// and MarketImpactPct is zero, the simulator derives the impact from it.
	InflationRatePct float64 `json:"inflation_rate_pct,omitempty"`

	DurationDays int `json:"duration_days"`
	RecoveryDays int `json:"recovery_days"`

	Description string `json:"description,omitempty"`
}

// ImpactFor returns the stressed return percentage for a sector, preferring
// the sector-specific override over the blanket market impact. Unknown
// sectors always take the blanket impact.
func (s MarketScenario) ImpactFor(sector domain.Sector) float64 {
	if sector != domain.SectorUnknown {
		if impact, ok := s.SectorImpacts[sector]; ok {
			return impact
		}
	}
	return s.EffectiveMarketImpact()
}

// EffectiveMarketImpact resolves the blanket impact, deriving one from the
// inflation rate for margin-compression scenarios.
func (s MarketScenario) EffectiveMarketImpact() float64 {
	if s.MarketImpactPct == 0 && s.InflationRatePct > 0 {
		return -s.InflationRatePct * inflationCompressionFactor
	}
	return s.MarketImpactPct
}

// inflationCompressionFactor maps an annual inflation rate onto an
// equivalent margin-compression return. 6% inflation ~= -10.8% drag.
const inflationCompressionFactor = 1.8

package simulation

import (
	"fmt"
	"hash/fnv"
	"math"

	"github.com/rs/zerolog"

	"github.com/quantstack/stresslab/internal/domain"
	"github.com/quantstack/stresslab/internal/modules/marketdata"
	"github.com/quantstack/stresslab/internal/modules/scenarios"
)

const (
	// Output bounds for per-holding and aggregate returns (percent).
	minReturnPct = -100.0
	maxReturnPct = 1000.0

	// maxJitterPct bounds the deterministic per-holding perturbation that
	// differentiates holdings within the same sector.
	maxJitterPct = 3.0

	// maxRecoveryScale caps the linear recovery-time scaling at 3x the
	// scenario's historical recovery.
	maxRecoveryScale = 3.0
)

// Simulator projects stressed returns for a portfolio under a scenario.
// It is stateless apart from its collaborators and safe for concurrent use.
type Simulator struct {
	sectors marketdata.SectorProvider
	log     zerolog.Logger
}

// NewSimulator creates a simulator using the given sector provider.
func NewSimulator(sectors marketdata.SectorProvider, log zerolog.Logger) *Simulator {
	return &Simulator{
		sectors: sectors,
		log:     log.With().Str("component", "simulator").Logger(),
	}
}

// Simulate projects per-holding and aggregate stressed returns for a
// normalized portfolio under one scenario.
//
// The pipeline per holding: sector impact (override > blanket) -> risk
// profile multiplier on magnitude -> deterministic jitter -> clamp. The
// same inputs always produce the same outputs; no wall clock or uncontrolled
// randomness is involved.
func (s *Simulator) Simulate(portfolio domain.Portfolio, scenario scenarios.MarketScenario, profile domain.RiskProfile) (Result, error) {
	if err := portfolio.Validate(); err != nil {
		return Result{}, err
	}

	result := Result{
		ScenarioKey: scenario.Key,
		Holdings:    make([]HoldingResult, 0, len(portfolio.Holdings)),
	}

	multiplier := profile.Multiplier()
	aggregate := 0.0

	for _, holding := range portfolio.Holdings {
		sector, err := s.sectors.GetSector(holding.Ticker)
		if err != nil {
			// Lookup failures degrade to the blanket impact, same as an
			// unknown ticker. The simulation itself never does I/O.
			s.log.Warn().Err(err).Str("ticker", holding.Ticker).Msg("Sector lookup failed, using blanket impact")
			sector = domain.SectorUnknown
		}

		base := scenario.ImpactFor(sector)

		// Risk profile scales magnitude, never sign.
		stressed := math.Copysign(math.Abs(base)*multiplier, base)

		// Deterministic idiosyncratic variance seeded by ticker + scenario.
		stressed += jitter(holding.Ticker, scenario.Key)

		clamped, wasClamped := clampReturn(stressed)
		if wasClamped {
			result.Clamped = true
			s.log.Warn().
				Str("ticker", holding.Ticker).
				Str("scenario", scenario.Key).
				Float64("raw_return", stressed).
				Msg("Stressed return clamped to output bounds")
		}

		if err := checkBounds(clamped, holding.Ticker, scenario.Key); err != nil {
			return Result{}, err
		}

		result.Holdings = append(result.Holdings, HoldingResult{
			Ticker:    holding.Ticker,
			Sector:    string(sector),
			Weight:    round4(holding.Weight),
			ReturnPct: round2(clamped),
		})
		aggregate += holding.Weight * clamped
	}

	aggClamped, wasClamped := clampReturn(aggregate)
	if wasClamped {
		result.Clamped = true
	}
	if err := checkBounds(aggClamped, "portfolio", scenario.Key); err != nil {
		return Result{}, err
	}

	result.PortfolioReturnPct = round2(aggClamped)
	result.RiskAdjustedScore = round2(scenarioScore(aggClamped))
	result.RecoveryTimeDays = estimateRecovery(aggClamped, scenario)

	return result, nil
}

// jitter derives a bounded offset in [-maxJitterPct, maxJitterPct] from an
// FNV-1a hash of ticker|scenario. Reproducible by construction.
func jitter(ticker, scenarioKey string) float64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(ticker))
	_, _ = h.Write([]byte{'|'})
	_, _ = h.Write([]byte(scenarioKey))

	// Map the hash onto [0, 1), then center on zero.
	unit := float64(h.Sum64()%100000) / 100000.0
	return (unit*2 - 1) * maxJitterPct
}

// clampReturn bounds a return to [-100, +1000] percent and reports whether
// clamping occurred.
func clampReturn(pct float64) (float64, bool) {
	if pct < minReturnPct {
		return minReturnPct, true
	}
	if pct > maxReturnPct {
		return maxReturnPct, true
	}
	return pct, false
}

// checkBounds is the defensive post-clamp check. A non-finite or
// out-of-bounds value here means a logic bug, surfaced loudly rather than
// silently normalized.
func checkBounds(pct float64, ticker, scenarioKey string) error {
	if math.IsNaN(pct) || math.IsInf(pct, 0) || pct < minReturnPct || pct > maxReturnPct {
		return &domain.SimulationBoundsError{Ticker: ticker, Scenario: scenarioKey, Value: pct}
	}
	return nil
}

// scenarioScore maps an aggregate return onto a 0-100 per-scenario score.
// Zero or positive return = 100; -100% = 0; linear in between.
func scenarioScore(aggReturnPct float64) float64 {
	if aggReturnPct >= 0 {
		return 100
	}
	score := 100 + aggReturnPct // aggReturnPct is negative
	if score < 0 {
		return 0
	}
	return score
}

// estimateRecovery scales the scenario's historical recovery time linearly
// by the ratio of this portfolio's loss to the scenario's historical market
// loss, floored at the historical recovery and capped at maxRecoveryScale.
// Portfolios that gained under the scenario need no recovery.
func estimateRecovery(aggReturnPct float64, scenario scenarios.MarketScenario) int {
	if aggReturnPct >= 0 || scenario.RecoveryDays == 0 {
		if aggReturnPct >= 0 {
			return 0
		}
		return scenario.RecoveryDays
	}

	historicalLoss := math.Abs(scenario.EffectiveMarketImpact())
	if historicalLoss == 0 {
		return scenario.RecoveryDays
	}

	scale := math.Abs(aggReturnPct) / historicalLoss
	if scale < 1 {
		scale = 1 // floor: never recover faster than the market did
	}
	if scale > maxRecoveryScale {
		scale = maxRecoveryScale
	}

	return int(math.Round(float64(scenario.RecoveryDays) * scale))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

// Describe returns a short human-readable summary of a result, used in logs.
func Describe(r Result) string {
	return fmt.Sprintf("%s: portfolio %.2f%% over %d holdings, recovery %dd",
		r.ScenarioKey, r.PortfolioReturnPct, len(r.Holdings), r.RecoveryTimeDays)
}

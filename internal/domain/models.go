// Package domain holds the core types shared across the stress-testing
// modules. The domain layer is pure: no database, HTTP, or logging
// dependencies.
package domain

import (
	"fmt"
	"math"
	"strings"
)

// RiskProfile is the investor-declared risk tolerance. It is always supplied
// by the caller, never inferred.
type RiskProfile string

const (
	ProfileConservative RiskProfile = "conservative"
	ProfileModerate     RiskProfile = "moderate"
	ProfileAggressive   RiskProfile = "aggressive"
)

// Multiplier returns the stress-magnitude multiplier for the profile.
// Aggressive portfolios realize larger swings under stress; conservative
// portfolios dampen them.
func (p RiskProfile) Multiplier() float64 {
	switch p {
	case ProfileConservative:
		return 0.8
	case ProfileAggressive:
		return 1.3
	default:
		return 1.0
	}
}

// ParseRiskProfile validates a profile string from the wire.
func ParseRiskProfile(s string) (RiskProfile, error) {
	switch RiskProfile(strings.ToLower(strings.TrimSpace(s))) {
	case ProfileConservative:
		return ProfileConservative, nil
	case ProfileModerate:
		return ProfileModerate, nil
	case ProfileAggressive:
		return ProfileAggressive, nil
	}
	return "", fmt.Errorf("invalid risk profile %q (want conservative, moderate or aggressive)", s)
}

// Sector is the fixed sector vocabulary used by scenario sector-impact maps
// and the sector lookup provider.
type Sector string

const (
	SectorUnknown    Sector = ""
	SectorFinancials Sector = "financials"
	SectorTechnology Sector = "technology"
	SectorEnergy     Sector = "energy"
	SectorHealthcare Sector = "healthcare"
	SectorConsumer   Sector = "consumer"
	SectorIndustrial Sector = "industrial"
	SectorMaterials  Sector = "materials"
	SectorUtilities  Sector = "utilities"
	SectorRealEstate Sector = "real_estate"
	SectorTravel     Sector = "travel"
)

// KnownSectors lists the sector vocabulary in stable order.
var KnownSectors = []Sector{
	SectorFinancials,
	SectorTechnology,
	SectorEnergy,
	SectorHealthcare,
	SectorConsumer,
	SectorIndustrial,
	SectorMaterials,
	SectorUtilities,
	SectorRealEstate,
	SectorTravel,
}

// ValidSector reports whether s is part of the enumerated vocabulary.
func ValidSector(s Sector) bool {
	for _, known := range KnownSectors {
		if s == known {
			return true
		}
	}
	return false
}

// Holding is a single portfolio position expressed as a weight fraction.
type Holding struct {
	Ticker string  `json:"ticker"`
	Weight float64 `json:"weight"`
}

// Portfolio is an ordered collection of holdings plus the owner's declared
// risk profile. Portfolios are caller-owned input; the engine never persists
// them outside of run snapshots.
type Portfolio struct {
	Holdings    []Holding   `json:"holdings"`
	RiskProfile RiskProfile `json:"risk_profile"`
}

// Validate checks the structural invariants: at least one holding, no
// negative weights, non-zero weight sum, no duplicate tickers.
func (p Portfolio) Validate() error {
	if len(p.Holdings) == 0 {
		return &InvalidPortfolioError{Reason: "portfolio has no holdings"}
	}

	seen := make(map[string]bool, len(p.Holdings))
	sum := 0.0
	for _, h := range p.Holdings {
		if h.Ticker == "" {
			return &InvalidPortfolioError{Reason: "holding has empty ticker"}
		}
		if h.Weight < 0 {
			return &InvalidPortfolioError{
				Reason: fmt.Sprintf("holding %s has negative weight %.4f", h.Ticker, h.Weight),
			}
		}
		if seen[h.Ticker] {
			return &InvalidPortfolioError{
				Reason: fmt.Sprintf("duplicate ticker %s", h.Ticker),
			}
		}
		seen[h.Ticker] = true
		sum += h.Weight
	}

	if sum <= 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		return &InvalidPortfolioError{Reason: "portfolio weights sum to zero"}
	}

	return nil
}

// Normalized returns a copy with weights rescaled to sum to 1.0. Holdings
// order is preserved and no holding is dropped. Validate must pass first;
// Normalized on an invalid portfolio returns the error from Validate.
func (p Portfolio) Normalized() (Portfolio, error) {
	if err := p.Validate(); err != nil {
		return Portfolio{}, err
	}

	sum := 0.0
	for _, h := range p.Holdings {
		sum += h.Weight
	}

	normalized := Portfolio{
		Holdings:    make([]Holding, len(p.Holdings)),
		RiskProfile: p.RiskProfile,
	}
	for i, h := range p.Holdings {
		normalized.Holdings[i] = Holding{Ticker: h.Ticker, Weight: h.Weight / sum}
	}

	return normalized, nil
}

// ReportDirection is a research report's directional claim.
type ReportDirection string

const (
	DirectionBullish ReportDirection = "bullish"
	DirectionBearish ReportDirection = "bearish"
)

// ParseReportDirection validates a direction string from the wire.
func ParseReportDirection(s string) (ReportDirection, error) {
	switch ReportDirection(strings.ToLower(strings.TrimSpace(s))) {
	case DirectionBullish:
		return DirectionBullish, nil
	case DirectionBearish:
		return DirectionBearish, nil
	}
	return "", fmt.Errorf("invalid report direction %q (want bullish or bearish)", s)
}

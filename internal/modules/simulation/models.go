// Package simulation projects portfolio behavior under a stress scenario.
package simulation

// HoldingResult is the projected stressed return for a single holding.
type HoldingResult struct {
	Ticker    string  `json:"ticker"`
	Sector    string  `json:"sector,omitempty"`
	Weight    float64 `json:"weight"`
	ReturnPct float64 `json:"return_pct"`
}

// Result is the outcome of simulating one portfolio under one scenario.
type Result struct {
	ScenarioKey string `json:"scenario_key"`

	// PortfolioReturnPct is the weighted aggregate stressed return.
	PortfolioReturnPct float64 `json:"portfolio_return_pct"`

	// RiskAdjustedScore is a 0-100 per-scenario resilience score (100 = no
	// loss). The overall run score comes from the scorer, which also folds
	// in dispersion; this per-scenario figure is for display breakdowns.
	RiskAdjustedScore float64 `json:"risk_adjusted_score"`

	RecoveryTimeDays int `json:"recovery_time_days"`

	Holdings []HoldingResult `json:"holdings"`

	// Clamped records that at least one computed return was clamped into
	// the output bounds. Clamping is deliberate, but it must stay
	// observable so a logic bug cannot hide behind it.
	Clamped bool `json:"clamped,omitempty"`
}

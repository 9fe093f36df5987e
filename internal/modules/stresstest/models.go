// Package stresstest is the orchestrator tying catalog, simulator, scorer and
// recommendation engine together, and the owner of run persistence.
package stresstest

import (
	"time"

	"github.com/quantstack/stresslab/internal/domain"
	"github.com/quantstack/stresslab/internal/modules/simulation"
)

// StressTestRequest is the input for a full stress-test run.
type StressTestRequest struct {
	// OwnerRef is an opaque reference to the owning user or report. Optional.
	OwnerRef string

	Portfolio domain.Portfolio

	// ScenarioKeys selects the scenarios to test, in order. Empty means
	// every scenario in the catalog.
	ScenarioKeys []string
}

// PortfolioStressTestRun is one immutable stress-test run. The JSON form is
// the wire contract: GET responses return this struct verbatim.
type PortfolioStressTestRun struct {
	ID           string              `json:"id"`
	OwnerRef     string              `json:"owner_ref,omitempty"`
	RiskProfile  domain.RiskProfile  `json:"risk_profile"`
	Holdings     []domain.Holding    `json:"holdings"`
	ScenarioKeys []string            `json:"scenario_keys"`
	OverallScore float64             `json:"overall_score"`
	RiskCategory string              `json:"risk_category"`
	Scenarios    []simulation.Result `json:"scenarios"`

	Recommendations []string  `json:"recommendations"`
	CreatedAt       time.Time `json:"created_at"`
}

// BacktestRequest is the input for backtesting one research report's thesis
// against one historical scenario.
type BacktestRequest struct {
	ReportRef   string
	ScenarioKey string
	Direction   domain.ReportDirection
	Portfolio   domain.Portfolio
}

// ReportBacktest is one immutable report backtest row: how a report's
// directional claim would have fared under a historical scenario.
type ReportBacktest struct {
	ID          string                 `json:"id"`
	ReportRef   string                 `json:"report_ref"`
	ScenarioKey string                 `json:"scenario_key"`
	Direction   domain.ReportDirection `json:"direction"`

	PortfolioReturnPct float64                    `json:"portfolio_return_pct"`
	Holdings           []simulation.HoldingResult `json:"holdings"`
	AccuracyScore      float64                    `json:"accuracy_score"`
	RecoveryTimeDays   int                        `json:"recovery_time_days"`
	CreatedAt          time.Time                  `json:"created_at"`
}

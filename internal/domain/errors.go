package domain

import (
	"fmt"
	"strings"
)

// InvalidPortfolioError signals a structurally invalid portfolio (empty,
// negative weights, zero weight sum). Maps to a 400 at the HTTP layer.
type InvalidPortfolioError struct {
	Reason string
}

func (e *InvalidPortfolioError) Error() string {
	return "invalid portfolio: " + e.Reason
}

// UnknownScenarioError lists every requested scenario key missing from the
// catalog. All bad keys are collected before failing so the caller sees the
// complete set in one round trip.
type UnknownScenarioError struct {
	Keys []string
}

func (e *UnknownScenarioError) Error() string {
	return "unknown scenario keys: " + strings.Join(e.Keys, ", ")
}

// NotFoundError signals a missing entity (scenario, run, backtest).
type NotFoundError struct {
	Entity string
	Key    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.Key)
}

// SimulationBoundsError indicates a computed return escaped the clamp range
// even after clamping. This is a logic bug, not bad input: it must be
// surfaced loudly, never swallowed.
type SimulationBoundsError struct {
	Ticker   string
	Scenario string
	Value    float64
}

func (e *SimulationBoundsError) Error() string {
	return fmt.Sprintf("simulated return %.4f for %s under %s escaped bounds", e.Value, e.Ticker, e.Scenario)
}

// PersistenceError wraps database failures so the web layer can map them
// without parsing text. The orchestrator never retries: stress tests are
// user-initiated and idempotent to re-run.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

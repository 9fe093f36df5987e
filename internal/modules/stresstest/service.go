package stresstest

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/quantstack/stresslab/internal/domain"
	"github.com/quantstack/stresslab/internal/modules/recommendations"
	"github.com/quantstack/stresslab/internal/modules/scenarios"
	"github.com/quantstack/stresslab/internal/modules/scoring"
	"github.com/quantstack/stresslab/internal/modules/simulation"
)

// Accuracy score bases for report backtests. A matched directional claim
// starts at 80 and earns up to 15 more as the simulated magnitude approaches
// the scenario's historical move; a mismatched claim starts at 25 and loses
// up to 15 the more decisively the market moved against it.
const (
	accuracyMatchBase    = 80.0
	accuracyMismatchBase = 25.0
	accuracyMagnitudeMax = 15.0
)

// Service orchestrates stress-test runs and report backtests.
type Service struct {
	catalog      *scenarios.Catalog
	simulator    *simulation.Simulator
	scorer       *scoring.Scorer
	engine       *recommendations.Engine
	runRepo      *RunRepository
	backtestRepo *BacktestRepository
	log          zerolog.Logger
}

// NewService creates the stress-test orchestrator.
func NewService(
	catalog *scenarios.Catalog,
	simulator *simulation.Simulator,
	scorer *scoring.Scorer,
	engine *recommendations.Engine,
	runRepo *RunRepository,
	backtestRepo *BacktestRepository,
	log zerolog.Logger,
) *Service {
	return &Service{
		catalog:      catalog,
		simulator:    simulator,
		scorer:       scorer,
		engine:       engine,
		runRepo:      runRepo,
		backtestRepo: backtestRepo,
		log:          log.With().Str("service", "stresstest").Logger(),
	}
}

// RunStressTest executes the full pipeline: validate and normalize the
// portfolio, resolve every scenario key, simulate each scenario, score,
// recommend, persist, return. Any failure aborts the whole run; nothing
// partial is ever persisted.
func (s *Service) RunStressTest(ctx context.Context, req StressTestRequest) (*PortfolioStressTestRun, error) {
	portfolio, err := req.Portfolio.Normalized()
	if err != nil {
		return nil, err
	}

	keys := req.ScenarioKeys
	if len(keys) == 0 {
		// No explicit selection means the full catalog.
		keys = s.catalog.Keys()
	}

	resolved, err := s.resolveScenarios(keys)
	if err != nil {
		return nil, err
	}

	results, err := s.simulateAll(portfolio, resolved)
	if err != nil {
		return nil, err
	}

	score, category := s.scorer.Score(results)
	recs := s.engine.Recommend(portfolio.RiskProfile, category, results, sectorWeights(results))

	run := &PortfolioStressTestRun{
		ID:              uuid.New().String(),
		OwnerRef:        req.OwnerRef,
		RiskProfile:     portfolio.RiskProfile,
		Holdings:        portfolio.Holdings,
		ScenarioKeys:    keys,
		OverallScore:    score,
		RiskCategory:    string(category),
		Scenarios:       results,
		Recommendations: recs,
		CreatedAt:       time.Now().UTC(),
	}

	if err := s.runRepo.Insert(ctx, run); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("run_id", run.ID).
		Int("scenarios", len(results)).
		Float64("overall_score", score).
		Str("risk_category", string(category)).
		Msg("Stress test run completed")

	return run, nil
}

// RunReportBacktest backtests one report's directional claim against one
// scenario, producing a 0-100 accuracy score instead of a resilience score.
func (s *Service) RunReportBacktest(ctx context.Context, req BacktestRequest) (*ReportBacktest, error) {
	portfolio, err := req.Portfolio.Normalized()
	if err != nil {
		return nil, err
	}

	scenario, err := s.catalog.Get(req.ScenarioKey)
	if err != nil {
		// Consistent with runs: unknown keys surface as UnknownScenarioError.
		return nil, &domain.UnknownScenarioError{Keys: []string{req.ScenarioKey}}
	}

	// Backtests are immutable; reject repeats before doing any work. The
	// unique index still backstops concurrent submissions.
	exists, err := s.backtestRepo.Exists(ctx, req.ReportRef, req.ScenarioKey)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, &domain.PersistenceError{
			Op:  "insert report backtest",
			Err: fmt.Errorf("report %s already has a backtest for scenario %s", req.ReportRef, req.ScenarioKey),
		}
	}

	result, err := s.simulator.Simulate(portfolio, scenario, portfolio.RiskProfile)
	if err != nil {
		return nil, err
	}
	s.log.Debug().Str("report_ref", req.ReportRef).Msg(simulation.Describe(result))

	bt := &ReportBacktest{
		ID:                 uuid.New().String(),
		ReportRef:          req.ReportRef,
		ScenarioKey:        req.ScenarioKey,
		Direction:          req.Direction,
		PortfolioReturnPct: result.PortfolioReturnPct,
		Holdings:           result.Holdings,
		AccuracyScore:      accuracyScore(req.Direction, result.PortfolioReturnPct, scenario),
		RecoveryTimeDays:   result.RecoveryTimeDays,
		CreatedAt:          time.Now().UTC(),
	}

	if err := s.backtestRepo.Insert(ctx, bt); err != nil {
		return nil, err
	}

	return bt, nil
}

// GetRun returns a persisted run by id.
func (s *Service) GetRun(ctx context.Context, id string) (*PortfolioStressTestRun, error) {
	return s.runRepo.GetByID(ctx, id)
}

// ListRecentRuns returns the most recent runs, newest first.
func (s *Service) ListRecentRuns(ctx context.Context, limit int) ([]*PortfolioStressTestRun, error) {
	return s.runRepo.ListRecent(ctx, limit)
}

// ListRunsForOwner returns every run recorded for an owner reference,
// newest first.
func (s *Service) ListRunsForOwner(ctx context.Context, ownerRef string) ([]*PortfolioStressTestRun, error) {
	return s.runRepo.ListByOwner(ctx, ownerRef)
}

// ListBacktests returns all backtests for a report reference.
func (s *Service) ListBacktests(ctx context.Context, reportRef string) ([]*ReportBacktest, error) {
	return s.backtestRepo.ListByReport(ctx, reportRef)
}

// resolveScenarios maps keys to catalog entries in request order. All
// unknown keys are collected into one UnknownScenarioError rather than
// failing on the first.
func (s *Service) resolveScenarios(keys []string) ([]scenarios.MarketScenario, error) {
	resolved := make([]scenarios.MarketScenario, 0, len(keys))
	var unknown []string

	for _, key := range keys {
		scenario, err := s.catalog.Get(key)
		if err != nil {
			unknown = append(unknown, key)
			continue
		}
		resolved = append(resolved, scenario)
	}

	if len(unknown) > 0 {
		return nil, &domain.UnknownScenarioError{Keys: unknown}
	}
	return resolved, nil
}

// simulateAll fans the per-scenario simulations out across goroutines.
// Each simulation is independent and side-effect-free; results land in a
// pre-sized slice so the output order matches the request order.
func (s *Service) simulateAll(portfolio domain.Portfolio, resolved []scenarios.MarketScenario) ([]simulation.Result, error) {
	results := make([]simulation.Result, len(resolved))
	errs := make([]error, len(resolved))

	var wg sync.WaitGroup
	for i, scenario := range resolved {
		wg.Add(1)
		go func(i int, scenario scenarios.MarketScenario) {
			defer wg.Done()
			results[i], errs[i] = s.simulator.Simulate(portfolio, scenario, portfolio.RiskProfile)
		}(i, scenario)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

// sectorWeights derives the per-sector weight distribution from the first
// simulation result. Every result carries the same holdings, so one pass
// suffices and no extra sector lookups are needed.
func sectorWeights(results []simulation.Result) map[domain.Sector]float64 {
	weights := make(map[domain.Sector]float64)
	if len(results) == 0 {
		return weights
	}
	for _, h := range results[0].Holdings {
		weights[domain.Sector(h.Sector)] += h.Weight
	}
	return weights
}

// accuracyScore grades a report's directional claim against the simulated
// outcome. Bearish matches a loss, bullish matches a flat-or-positive
// return; magnitude agreement against the scenario's historical move shifts
// the score within the band. Always within [0, 100].
func accuracyScore(direction domain.ReportDirection, portfolioReturnPct float64, scenario scenarios.MarketScenario) float64 {
	matched := (direction == domain.DirectionBearish && portfolioReturnPct < 0) ||
		(direction == domain.DirectionBullish && portfolioReturnPct >= 0)

	agreement := 0.0
	if historical := math.Abs(scenario.EffectiveMarketImpact()); historical > 0 {
		agreement = math.Min(1, math.Abs(portfolioReturnPct)/historical)
	}

	var score float64
	if matched {
		score = accuracyMatchBase + accuracyMagnitudeMax*agreement
	} else {
		score = accuracyMismatchBase - accuracyMagnitudeMax*agreement
	}

	score = math.Max(0, math.Min(100, score))
	return math.Round(score*100) / 100
}

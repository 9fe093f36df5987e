package scoring

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantstack/stresslab/internal/modules/scenarios"
	"github.com/quantstack/stresslab/internal/modules/simulation"
)

func newTestScorer() *Scorer {
	return NewScorer(scenarios.NewCatalog(zerolog.Nop()))
}

func resultWithLoss(key string, portfolioReturn float64, holdingReturns ...float64) simulation.Result {
	holdings := make([]simulation.HoldingResult, len(holdingReturns))
	for i, r := range holdingReturns {
		holdings[i] = simulation.HoldingResult{Ticker: "H", Weight: 1.0 / float64(len(holdingReturns)), ReturnPct: r}
	}
	return simulation.Result{
		ScenarioKey:        key,
		PortfolioReturnPct: portfolioReturn,
		Holdings:           holdings,
	}
}

func TestCategoryFor_BandBoundaries(t *testing.T) {
	// Inclusive lower bounds - these exact values are a contract
	assert.Equal(t, CategoryVeryHigh, CategoryFor(0))
	assert.Equal(t, CategoryVeryHigh, CategoryFor(39.99))
	assert.Equal(t, CategoryHigh, CategoryFor(40))
	assert.Equal(t, CategoryHigh, CategoryFor(59.99))
	assert.Equal(t, CategoryModerate, CategoryFor(60))
	assert.Equal(t, CategoryModerate, CategoryFor(74.99))
	assert.Equal(t, CategoryLow, CategoryFor(75))
	assert.Equal(t, CategoryLow, CategoryFor(100))
}

func TestScore_NoResults(t *testing.T) {
	score, category := newTestScorer().Score(nil)

	assert.Equal(t, 100.0, score)
	assert.Equal(t, CategoryLow, category)
}

func TestScore_Deterministic(t *testing.T) {
	scorer := newTestScorer()
	results := []simulation.Result{
		resultWithLoss("covid_2020", -35, -47, -23),
		resultWithLoss("2008_crisis", -40, -39, -41),
	}

	score1, cat1 := scorer.Score(results)
	score2, cat2 := scorer.Score(results)

	assert.Equal(t, score1, score2)
	assert.Equal(t, cat1, cat2)
}

func TestScore_MonotoneInLoss(t *testing.T) {
	scorer := newTestScorer()

	// Same dispersion, growing aggregate loss: score must never rise
	prev := 101.0
	for _, loss := range []float64{0, -10, -20, -35, -50, -70, -90} {
		score, _ := scorer.Score([]simulation.Result{
			resultWithLoss("covid_2020", loss, loss-5, loss+5),
		})
		assert.LessOrEqual(t, score, prev, "loss %.0f must not score above smaller loss", loss)
		prev = score
	}
}

func TestScore_SeverityWeighting(t *testing.T) {
	scorer := newTestScorer()

	// Identical loss under a milder scenario penalizes less
	severe, _ := scorer.Score([]simulation.Result{resultWithLoss("2008_crisis", -30, -28, -32)})
	mild, _ := scorer.Score([]simulation.Result{resultWithLoss("geopolitical_shock", -30, -28, -32)})

	assert.Greater(t, mild, severe, "milder scenario should penalize the same loss less")
}

func TestScore_DispersionCredit(t *testing.T) {
	scorer := newTestScorer()

	// Same aggregate loss; lockstep holdings vs widely dispersed holdings
	lockstep, _ := scorer.Score([]simulation.Result{resultWithLoss("covid_2020", -30, -30, -30, -30)})
	dispersed, _ := scorer.Score([]simulation.Result{resultWithLoss("covid_2020", -30, -70, -30, 10)})

	assert.Greater(t, dispersed, lockstep, "dispersion hedging earns a bounded credit")
	// Bounded: raw loss still dominates
	assert.LessOrEqual(t, dispersed-lockstep, 2*maxDispersionAdj+0.01)
}

func TestScore_LossDominatesDispersion(t *testing.T) {
	scorer := newTestScorer()

	// A much larger loss with perfect dispersion must still score below a
	// small loss with lockstep holdings.
	bigLossDispersed, _ := scorer.Score([]simulation.Result{resultWithLoss("covid_2020", -60, -90, -60, -30)})
	smallLossLockstep, _ := scorer.Score([]simulation.Result{resultWithLoss("covid_2020", -5, -5, -5, -5)})

	assert.Less(t, bigLossDispersed, smallLossLockstep)
}

func TestScore_FlooredAtZero(t *testing.T) {
	scorer := newTestScorer()

	score, category := scorer.Score([]simulation.Result{
		resultWithLoss("2008_crisis", -100, -100, -100),
		resultWithLoss("tech_bubble_burst", -100, -100, -100),
	})

	assert.GreaterOrEqual(t, score, 0.0)
	assert.Equal(t, CategoryVeryHigh, category)
}

func TestScore_GainsDoNotPenalize(t *testing.T) {
	scorer := newTestScorer()

	score, category := scorer.Score([]simulation.Result{
		resultWithLoss("geopolitical_shock", 8, 12, 4),
	})

	assert.GreaterOrEqual(t, score, 75.0)
	assert.Equal(t, CategoryLow, category)
}

func TestScore_UnknownScenarioWeightsNeutrally(t *testing.T) {
	scorer := newTestScorer()

	// Fixture scenarios absent from the catalog still score (weight 1.0)
	score, _ := scorer.Score([]simulation.Result{resultWithLoss("fixture_shock", -20, -18, -22)})

	require.Greater(t, score, 0.0)
	assert.Less(t, score, 100.0)
}

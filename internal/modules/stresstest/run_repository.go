package stresstest

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/quantstack/stresslab/internal/database"
	"github.com/quantstack/stresslab/internal/domain"
)

// RunRepository persists stress-test runs in stress.db. Rows are write-once;
// there are no update paths.
type RunRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRunRepository creates a run repository.
func NewRunRepository(db *sql.DB, log zerolog.Logger) *RunRepository {
	return &RunRepository{
		db:  db,
		log: log.With().Str("repository", "stress_test_run").Logger(),
	}
}

// Insert writes a completed run inside a transaction. Failures wrap into
// domain.PersistenceError so the web layer can map them without text parsing.
func (r *RunRepository) Insert(ctx context.Context, run *PortfolioStressTestRun) error {
	holdings, err := json.Marshal(run.Holdings)
	if err != nil {
		return &domain.PersistenceError{Op: "marshal holdings", Err: err}
	}
	scenarioKeys, err := json.Marshal(run.ScenarioKeys)
	if err != nil {
		return &domain.PersistenceError{Op: "marshal scenario keys", Err: err}
	}
	results, err := json.Marshal(run.Scenarios)
	if err != nil {
		return &domain.PersistenceError{Op: "marshal scenario results", Err: err}
	}
	recommendations, err := json.Marshal(run.Recommendations)
	if err != nil {
		return &domain.PersistenceError{Op: "marshal recommendations", Err: err}
	}

	err = database.WithTransaction(r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO stress_test_runs
			(id, owner_ref, risk_profile, holdings, scenario_keys,
			 overall_score, risk_category, scenario_results, recommendations, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			run.ID,
			run.OwnerRef,
			string(run.RiskProfile),
			string(holdings),
			string(scenarioKeys),
			run.OverallScore,
			run.RiskCategory,
			string(results),
			string(recommendations),
			run.CreatedAt.Format(time.RFC3339Nano),
		)
		return err
	})
	if err != nil {
		return &domain.PersistenceError{Op: "insert stress test run", Err: err}
	}

	r.log.Debug().Str("run_id", run.ID).Float64("score", run.OverallScore).Msg("Stress test run persisted")
	return nil
}

// GetByID returns one run, or domain.NotFoundError if the id is unknown.
func (r *RunRepository) GetByID(ctx context.Context, id string) (*PortfolioStressTestRun, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, owner_ref, risk_profile, holdings, scenario_keys,
		       overall_score, risk_category, scenario_results, recommendations, created_at
		FROM stress_test_runs
		WHERE id = ?
	`, id)

	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, &domain.NotFoundError{Entity: "stress test run", Key: id}
	}
	if err != nil {
		return nil, &domain.PersistenceError{Op: "get stress test run", Err: err}
	}
	return run, nil
}

// ListRecent returns the most recent runs, newest first.
func (r *RunRepository) ListRecent(ctx context.Context, limit int) ([]*PortfolioStressTestRun, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, owner_ref, risk_profile, holdings, scenario_keys,
		       overall_score, risk_category, scenario_results, recommendations, created_at
		FROM stress_test_runs
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "list stress test runs", Err: err}
	}
	defer rows.Close()

	return collectRuns(rows)
}

// ListByOwner returns all runs for an owner reference, newest first.
func (r *RunRepository) ListByOwner(ctx context.Context, ownerRef string) ([]*PortfolioStressTestRun, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, owner_ref, risk_profile, holdings, scenario_keys,
		       overall_score, risk_category, scenario_results, recommendations, created_at
		FROM stress_test_runs
		WHERE owner_ref = ?
		ORDER BY created_at DESC
	`, ownerRef)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "list stress test runs by owner", Err: err}
	}
	defer rows.Close()

	return collectRuns(rows)
}

// Count returns the total number of persisted runs.
func (r *RunRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM stress_test_runs").Scan(&n); err != nil {
		return 0, &domain.PersistenceError{Op: "count stress test runs", Err: err}
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*PortfolioStressTestRun, error) {
	var run PortfolioStressTestRun
	var holdings, scenarioKeys, results, recommendations, createdAt string

	err := row.Scan(
		&run.ID,
		&run.OwnerRef,
		&run.RiskProfile,
		&holdings,
		&scenarioKeys,
		&run.OverallScore,
		&run.RiskCategory,
		&results,
		&recommendations,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(holdings), &run.Holdings); err != nil {
		return nil, fmt.Errorf("corrupt holdings column for run %s: %w", run.ID, err)
	}
	if err := json.Unmarshal([]byte(scenarioKeys), &run.ScenarioKeys); err != nil {
		return nil, fmt.Errorf("corrupt scenario_keys column for run %s: %w", run.ID, err)
	}
	if err := json.Unmarshal([]byte(results), &run.Scenarios); err != nil {
		return nil, fmt.Errorf("corrupt scenario_results column for run %s: %w", run.ID, err)
	}
	if err := json.Unmarshal([]byte(recommendations), &run.Recommendations); err != nil {
		return nil, fmt.Errorf("corrupt recommendations column for run %s: %w", run.ID, err)
	}

	run.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("corrupt created_at column for run %s: %w", run.ID, err)
	}

	return &run, nil
}

func collectRuns(rows *sql.Rows) ([]*PortfolioStressTestRun, error) {
	var runs []*PortfolioStressTestRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, &domain.PersistenceError{Op: "scan stress test run", Err: err}
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.PersistenceError{Op: "iterate stress test runs", Err: err}
	}
	return runs, nil
}

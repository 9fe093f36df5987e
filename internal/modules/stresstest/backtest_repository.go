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

// BacktestRepository persists report backtests in stress.db. One row per
// (report, scenario) pair, enforced by a unique index.
type BacktestRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewBacktestRepository creates a backtest repository.
func NewBacktestRepository(db *sql.DB, log zerolog.Logger) *BacktestRepository {
	return &BacktestRepository{
		db:  db,
		log: log.With().Str("repository", "report_backtest").Logger(),
	}
}

// Insert writes one backtest row. A duplicate (report, scenario) pair is a
// constraint violation surfaced as a PersistenceError: backtests are
// immutable and never re-run in place.
func (r *BacktestRepository) Insert(ctx context.Context, bt *ReportBacktest) error {
	holdings, err := json.Marshal(bt.Holdings)
	if err != nil {
		return &domain.PersistenceError{Op: "marshal backtest holdings", Err: err}
	}

	err = database.WithTransaction(r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO report_backtests
			(id, report_ref, scenario_key, direction, portfolio_return,
			 holding_results, accuracy_score, recovery_time_days, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			bt.ID,
			bt.ReportRef,
			bt.ScenarioKey,
			string(bt.Direction),
			bt.PortfolioReturnPct,
			string(holdings),
			bt.AccuracyScore,
			bt.RecoveryTimeDays,
			bt.CreatedAt.Format(time.RFC3339Nano),
		)
		return err
	})
	if err != nil {
		return &domain.PersistenceError{Op: "insert report backtest", Err: err}
	}

	r.log.Debug().
		Str("report_ref", bt.ReportRef).
		Str("scenario", bt.ScenarioKey).
		Float64("accuracy", bt.AccuracyScore).
		Msg("Report backtest persisted")
	return nil
}

// ListByReport returns all backtests for a report reference, newest first.
func (r *BacktestRepository) ListByReport(ctx context.Context, reportRef string) ([]*ReportBacktest, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, report_ref, scenario_key, direction, portfolio_return,
		       holding_results, accuracy_score, recovery_time_days, created_at
		FROM report_backtests
		WHERE report_ref = ?
		ORDER BY created_at DESC
	`, reportRef)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "list report backtests", Err: err}
	}
	defer rows.Close()

	var backtests []*ReportBacktest
	for rows.Next() {
		bt, err := scanBacktest(rows)
		if err != nil {
			return nil, &domain.PersistenceError{Op: "scan report backtest", Err: err}
		}
		backtests = append(backtests, bt)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.PersistenceError{Op: "iterate report backtests", Err: err}
	}
	return backtests, nil
}

// Exists reports whether a (report, scenario) pair already has a backtest.
func (r *BacktestRepository) Exists(ctx context.Context, reportRef, scenarioKey string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM report_backtests WHERE report_ref = ? AND scenario_key = ?",
		reportRef, scenarioKey,
	).Scan(&n)
	if err != nil {
		return false, &domain.PersistenceError{Op: "check report backtest existence", Err: err}
	}
	return n > 0, nil
}

func scanBacktest(row rowScanner) (*ReportBacktest, error) {
	var bt ReportBacktest
	var holdings, createdAt string

	err := row.Scan(
		&bt.ID,
		&bt.ReportRef,
		&bt.ScenarioKey,
		&bt.Direction,
		&bt.PortfolioReturnPct,
		&holdings,
		&bt.AccuracyScore,
		&bt.RecoveryTimeDays,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(holdings), &bt.Holdings); err != nil {
		return nil, fmt.Errorf("corrupt holding_results column for backtest %s: %w", bt.ID, err)
	}

	bt.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("corrupt created_at column for backtest %s: %w", bt.ID, err)
	}

	return &bt, nil
}

package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"price-signal-lab/internal/domain"
	"price-signal-lab/internal/storage"
)

// RunStore implements storage.RunStore using PostgreSQL.
type RunStore struct {
	pool *Pool
}

// NewRunStore creates a new RunStore.
func NewRunStore(pool *Pool) *RunStore {
	return &RunStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RunStore = (*RunStore)(nil)

const runColumns = `
	run_id, created_at, horizon, windows, initial_equity,
	short_window, long_window, long_momentum_min, short_momentum_min, vol_trend_ratio,
	dataset_rows,
	mean_daily, std_daily, sharpe, max_drawdown_abs, median_n_active, trading_days, n_days
`

// Insert adds a new run. Returns ErrDuplicateKey if run_id exists.
func (s *RunStore) Insert(ctx context.Context, run *domain.BacktestRun) error {
	if run == nil || run.RunID == "" {
		return storage.ErrInvalidInput
	}

	windows := make([]int32, len(run.Windows))
	for i, w := range run.Windows {
		windows[i] = int32(w)
	}

	query := `INSERT INTO backtest_runs (` + runColumns + `) VALUES (
		$1, $2, $3, $4, $5,
		$6, $7, $8, $9, $10,
		$11,
		$12, $13, $14, $15, $16, $17, $18
	)`

	_, err := s.pool.Exec(ctx, query,
		run.RunID, run.CreatedAt, run.Horizon, windows, run.InitialEquity,
		run.Rule.ShortWindow, run.Rule.LongWindow, run.Rule.LongMomentumMin, run.Rule.ShortMomentumMin, run.Rule.VolTrendRatio,
		run.DatasetRows,
		run.Score.MeanDaily, run.Score.StdDaily, run.Score.Sharpe, run.Score.MaxDrawdownAbs,
		run.Score.MedianNActive, run.Score.TradingDays, run.Score.NDays,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert backtest run: %w", err)
	}
	return nil
}

// GetByID retrieves a run. Returns ErrNotFound if not exists.
func (s *RunStore) GetByID(ctx context.Context, runID string) (*domain.BacktestRun, error) {
	query := `SELECT ` + runColumns + ` FROM backtest_runs WHERE run_id = $1`

	run, err := scanRun(s.pool.QueryRow(ctx, query, runID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get backtest run: %w", err)
	}
	return run, nil
}

// GetAll retrieves all runs ordered by created_at ASC.
func (s *RunStore) GetAll(ctx context.Context) ([]*domain.BacktestRun, error) {
	query := `SELECT ` + runColumns + ` FROM backtest_runs ORDER BY created_at ASC, run_id ASC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all backtest runs: %w", err)
	}
	defer rows.Close()

	return scanRuns(rows)
}

// rowScanner is satisfied by both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*domain.BacktestRun, error) {
	var (
		run     domain.BacktestRun
		windows []int32
	)
	err := row.Scan(
		&run.RunID, &run.CreatedAt, &run.Horizon, &windows, &run.InitialEquity,
		&run.Rule.ShortWindow, &run.Rule.LongWindow, &run.Rule.LongMomentumMin,
		&run.Rule.ShortMomentumMin, &run.Rule.VolTrendRatio,
		&run.DatasetRows,
		&run.Score.MeanDaily, &run.Score.StdDaily, &run.Score.Sharpe, &run.Score.MaxDrawdownAbs,
		&run.Score.MedianNActive, &run.Score.TradingDays, &run.Score.NDays,
	)
	if err != nil {
		return nil, err
	}
	run.Windows = make([]int, len(windows))
	for i, w := range windows {
		run.Windows[i] = int(w)
	}
	return &run, nil
}

func scanRuns(rows pgx.Rows) ([]*domain.BacktestRun, error) {
	var runs []*domain.BacktestRun

	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan backtest run row: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate backtest run rows: %w", err)
	}

	return runs, nil
}

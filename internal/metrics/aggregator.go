package metrics

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"price-signal-lab/internal/domain"
	"price-signal-lab/internal/storage"
)

// ErrNoDays is returned when a run has no stored portfolio days.
var ErrNoDays = errors.New("no portfolio days available for aggregation")

// Aggregator computes scorecards from stored backtest results.
type Aggregator struct {
	portfolioStore storage.PortfolioStore
	runStore       storage.RunStore
}

// NewAggregator creates a new metrics aggregator.
func NewAggregator(portfolioStore storage.PortfolioStore, runStore storage.RunStore) *Aggregator {
	return &Aggregator{
		portfolioStore: portfolioStore,
		runStore:       runStore,
	}
}

// ComputeScorecard recomputes the final metrics of a run from its stored
// daily series. Returns ErrNoDays if the run has no days.
func (a *Aggregator) ComputeScorecard(ctx context.Context, runID string) (*domain.Scorecard, error) {
	days, err := a.portfolioStore.GetByRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load portfolio days: %w", err)
	}
	if len(days) == 0 {
		return nil, ErrNoDays
	}

	score := FinalMetrics(days)
	return &score, nil
}

// Verify checks that the scorecard stored with a run matches the one
// recomputed from its daily series, within tol.
func (a *Aggregator) Verify(ctx context.Context, runID string, tol float64) error {
	run, err := a.runStore.GetByID(ctx, runID)
	if err != nil {
		return fmt.Errorf("load run %s: %w", runID, err)
	}
	score, err := a.ComputeScorecard(ctx, runID)
	if err != nil {
		return err
	}

	for _, f := range []struct {
		name           string
		stored, actual float64
	}{
		{"mean_daily", run.Score.MeanDaily, score.MeanDaily},
		{"std_daily", run.Score.StdDaily, score.StdDaily},
		{"sharpe", run.Score.Sharpe, score.Sharpe},
		{"max_drawdown_abs", run.Score.MaxDrawdownAbs, score.MaxDrawdownAbs},
		{"median_n_active", run.Score.MedianNActive, score.MedianNActive},
	} {
		if !floatsMatch(f.stored, f.actual, tol) {
			return fmt.Errorf("%w: run %s %s stored %v, recomputed %v",
				domain.ErrValue, runID, f.name, f.stored, f.actual)
		}
	}
	if run.Score.TradingDays != score.TradingDays || run.Score.NDays != score.NDays {
		return fmt.Errorf("%w: run %s day counts stored %d/%d, recomputed %d/%d",
			domain.ErrValue, runID, run.Score.TradingDays, run.Score.NDays, score.TradingDays, score.NDays)
	}
	return nil
}

// Leaderboard returns all stored runs ordered by Sharpe descending.
// Runs with an undefined Sharpe come last; ties break on run_id so the
// order is deterministic.
func (a *Aggregator) Leaderboard(ctx context.Context) ([]*domain.BacktestRun, error) {
	runs, err := a.runStore.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load runs: %w", err)
	}

	sort.SliceStable(runs, func(i, j int) bool {
		si, sj := runs[i].Score.Sharpe, runs[j].Score.Sharpe
		switch {
		case math.IsNaN(si) && math.IsNaN(sj):
			return runs[i].RunID < runs[j].RunID
		case math.IsNaN(si):
			return false
		case math.IsNaN(sj):
			return true
		case si != sj:
			return si > sj
		default:
			return runs[i].RunID < runs[j].RunID
		}
	})
	return runs, nil
}

// floatsMatch treats two NaNs as equal.
func floatsMatch(a, b, tol float64) bool {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.IsNaN(a) && math.IsNaN(b)
	}
	return math.Abs(a-b) <= tol
}

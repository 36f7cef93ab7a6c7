package metrics

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"price-signal-lab/internal/domain"
	"price-signal-lab/internal/storage/memory"
)

func storedDays() []domain.PortfolioDay {
	d := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	days := daysFromReturns([]float64{0.01, 0.03, -0.01, 0.01}, []int{0, 2, 3, 1})
	for i := range days {
		days[i].Date = d.AddDate(0, 0, i)
	}
	days[2].Drawdown = -0.05
	return days
}

func TestAggregator_ComputeScorecard(t *testing.T) {
	ctx := context.Background()
	portfolio := memory.NewPortfolioStore()
	agg := NewAggregator(portfolio, memory.NewRunStore())

	if err := portfolio.InsertBulk(ctx, "run-1", storedDays()); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	score, err := agg.ComputeScorecard(ctx, "run-1")
	if err != nil {
		t.Fatalf("ComputeScorecard failed: %v", err)
	}
	if math.Abs(score.MeanDaily-0.01) > eps {
		t.Errorf("MeanDaily: expected 0.01, got %f", score.MeanDaily)
	}
	if score.NDays != 4 || score.TradingDays != 3 {
		t.Errorf("unexpected counts %+v", score)
	}

	if _, err := agg.ComputeScorecard(ctx, "missing"); !errors.Is(err, ErrNoDays) {
		t.Errorf("expected ErrNoDays, got %v", err)
	}
}

func TestAggregator_Verify(t *testing.T) {
	ctx := context.Background()
	portfolio := memory.NewPortfolioStore()
	runs := memory.NewRunStore()
	agg := NewAggregator(portfolio, runs)

	days := storedDays()
	if err := portfolio.InsertBulk(ctx, "run-1", days); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}
	if err := runs.Insert(ctx, &domain.BacktestRun{RunID: "run-1", Score: FinalMetrics(days)}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := agg.Verify(ctx, "run-1", 1e-12); err != nil {
		t.Errorf("expected matching scorecard, got %v", err)
	}

	tampered := FinalMetrics(days)
	tampered.MaxDrawdownAbs = 0.5
	if err := portfolio.InsertBulk(ctx, "run-2", days); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}
	if err := runs.Insert(ctx, &domain.BacktestRun{RunID: "run-2", Score: tampered}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := agg.Verify(ctx, "run-2", 1e-12); !errors.Is(err, domain.ErrValue) {
		t.Errorf("expected mismatch error, got %v", err)
	}
}

func TestAggregator_Leaderboard(t *testing.T) {
	ctx := context.Background()
	runs := memory.NewRunStore()
	agg := NewAggregator(memory.NewPortfolioStore(), runs)

	for _, r := range []struct {
		id     string
		sharpe float64
	}{
		{"c", math.NaN()},
		{"b", 1.2},
		{"a", 1.2},
		{"d", 2.5},
	} {
		if err := runs.Insert(ctx, &domain.BacktestRun{RunID: r.id, Score: domain.Scorecard{Sharpe: r.sharpe}}); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	board, err := agg.Leaderboard(ctx)
	if err != nil {
		t.Fatalf("Leaderboard failed: %v", err)
	}
	want := []string{"d", "a", "b", "c"}
	for i, id := range want {
		if board[i].RunID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, board[i].RunID)
		}
	}
}

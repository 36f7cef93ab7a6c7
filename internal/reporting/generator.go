package reporting

import (
	"context"
	"fmt"
	"time"

	"price-signal-lab/internal/metrics"
	"price-signal-lab/internal/storage"
)

// Generator produces reports from stored runs.
type Generator struct {
	portfolioStore storage.PortfolioStore
	runStore       storage.RunStore
	aggregator     *metrics.Aggregator
	now            func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(portfolioStore storage.PortfolioStore, runStore storage.RunStore) *Generator {
	return &Generator{
		portfolioStore: portfolioStore,
		runStore:       runStore,
		aggregator:     metrics.NewAggregator(portfolioStore, runStore),
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate builds the report of a stored run, including the leaderboard
// of all stored runs.
func (g *Generator) Generate(ctx context.Context, runID string) (*Report, error) {
	run, err := g.runStore.GetByID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}
	days, err := g.portfolioStore.GetByRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load portfolio of run %s: %w", runID, err)
	}

	r := Build(run, days, g.now())

	runs, err := g.aggregator.Leaderboard(ctx)
	if err != nil {
		return nil, err
	}
	r.Leaderboard = leaderboardRows(runs)
	return r, nil
}

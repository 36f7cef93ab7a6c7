package storage

import (
	"context"
	"time"

	"price-signal-lab/internal/domain"
)

// PriceBarStore provides access to price_bars storage.
type PriceBarStore interface {
	// InsertBulk adds multiple bars atomically.
	// Fails entire batch on duplicate (market, symbol, date).
	InsertBulk(ctx context.Context, bars []domain.PriceBar) error

	// GetBySymbol retrieves all bars for one entity, ordered by date ASC.
	GetBySymbol(ctx context.Context, market, symbol string) ([]domain.PriceBar, error)

	// GetByRange retrieves bars dated within [start, end] (inclusive),
	// ordered by (symbol, date) ASC.
	GetByRange(ctx context.Context, start, end time.Time) ([]domain.PriceBar, error)

	// GetAll retrieves every bar, ordered by (symbol, date) ASC.
	GetAll(ctx context.Context) ([]domain.PriceBar, error)
}

// DatasetStore provides access to dataset_rows storage.
type DatasetStore interface {
	// InsertBulk stores the labeled rows of one run.
	// Returns ErrDuplicateKey if the run already has rows or the batch
	// repeats a (symbol, date) key.
	InsertBulk(ctx context.Context, runID string, horizon int, rows []domain.DatasetRow) error

	// GetByRun retrieves the rows of a run, ordered by (symbol, date) ASC.
	GetByRun(ctx context.Context, runID string) ([]domain.DatasetRow, error)
}

// PortfolioStore provides access to portfolio_days storage.
type PortfolioStore interface {
	// InsertBulk stores the daily portfolio series of one run.
	// Returns ErrDuplicateKey if the run already has days or the batch
	// repeats a date.
	InsertBulk(ctx context.Context, runID string, days []domain.PortfolioDay) error

	// GetByRun retrieves the days of a run, ordered by date ASC.
	GetByRun(ctx context.Context, runID string) ([]domain.PortfolioDay, error)
}

// RunStore provides access to backtest_runs storage.
type RunStore interface {
	// Insert adds a new run. Returns ErrDuplicateKey if run_id exists.
	Insert(ctx context.Context, run *domain.BacktestRun) error

	// GetByID retrieves a run. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, runID string) (*domain.BacktestRun, error)

	// GetAll retrieves all runs ordered by created_at ASC.
	GetAll(ctx context.Context) ([]*domain.BacktestRun, error)
}

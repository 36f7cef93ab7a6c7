package clickhouse

import (
	"context"
	"fmt"

	"price-signal-lab/internal/domain"
	"price-signal-lab/internal/storage"
)

// PortfolioStore implements storage.PortfolioStore using ClickHouse.
type PortfolioStore struct {
	conn *Conn
}

// NewPortfolioStore creates a new PortfolioStore.
func NewPortfolioStore(conn *Conn) *PortfolioStore {
	return &PortfolioStore{conn: conn}
}

// Compile-time interface check.
var _ storage.PortfolioStore = (*PortfolioStore)(nil)

// InsertBulk stores the daily series of one run in a single batch.
func (s *PortfolioStore) InsertBulk(ctx context.Context, runID string, days []domain.PortfolioDay) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}
	if len(days) == 0 {
		return nil
	}

	seen := make(map[int64]struct{}, len(days))
	for _, d := range days {
		if d.NActive < 0 {
			return storage.ErrInvalidInput
		}
		key := domain.Day(d.Date).Unix()
		if _, exists := seen[key]; exists {
			return storage.ErrDuplicateKey
		}
		seen[key] = struct{}{}
	}

	exists, err := runExists(ctx, s.conn, "portfolio_days", runID)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO portfolio_days (
			run_id, date, portfolio_log_return, n_active,
			cum_log, equity, peak, drawdown,
			expanding_mean, expanding_std, sharpe
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, d := range days {
		err = batch.Append(
			runID, domain.Day(d.Date), d.PortfolioLogReturn, uint32(d.NActive),
			d.CumLog, d.Equity, d.Peak, d.Drawdown,
			d.ExpandingMean, d.ExpandingStd, d.Sharpe,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByRun retrieves the days of a run, ordered by date ASC.
func (s *PortfolioStore) GetByRun(ctx context.Context, runID string) ([]domain.PortfolioDay, error) {
	query := `
		SELECT
			date, portfolio_log_return, n_active,
			cum_log, equity, peak, drawdown,
			expanding_mean, expanding_std, sharpe
		FROM portfolio_days
		WHERE run_id = ?
		ORDER BY date ASC
	`

	rows, err := s.conn.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query portfolio days: %w", err)
	}
	defer rows.Close()

	var days []domain.PortfolioDay
	for rows.Next() {
		var (
			d       domain.PortfolioDay
			nActive uint32
		)
		err := rows.Scan(
			&d.Date, &d.PortfolioLogReturn, &nActive,
			&d.CumLog, &d.Equity, &d.Peak, &d.Drawdown,
			&d.ExpandingMean, &d.ExpandingStd, &d.Sharpe,
		)
		if err != nil {
			return nil, fmt.Errorf("scan portfolio day: %w", err)
		}
		d.Date = domain.Day(d.Date)
		d.NActive = int(nActive)
		days = append(days, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate portfolio days: %w", err)
	}
	return days, nil
}

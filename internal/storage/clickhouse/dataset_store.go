package clickhouse

import (
	"context"
	"fmt"
	"time"

	"price-signal-lab/internal/domain"
	"price-signal-lab/internal/storage"
)

// DatasetStore implements storage.DatasetStore using ClickHouse.
type DatasetStore struct {
	conn *Conn
}

// NewDatasetStore creates a new DatasetStore.
func NewDatasetStore(conn *Conn) *DatasetStore {
	return &DatasetStore{conn: conn}
}

// Compile-time interface check.
var _ storage.DatasetStore = (*DatasetStore)(nil)

// InsertBulk stores the rows of one run in a single batch.
func (s *DatasetStore) InsertBulk(ctx context.Context, runID string, horizon int, rows []domain.DatasetRow) error {
	if runID == "" || horizon <= 0 || horizon > 1<<16-1 {
		return storage.ErrInvalidInput
	}
	if len(rows) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		if r.Symbol == "" {
			return storage.ErrInvalidInput
		}
		key := r.Symbol + "|" + r.Date.Format(time.DateOnly)
		if _, exists := seen[key]; exists {
			return storage.ErrDuplicateKey
		}
		seen[key] = struct{}{}
	}

	exists, err := runExists(ctx, s.conn, "dataset_rows", runID)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO dataset_rows (
			run_id, horizon, symbol, market, date,
			open, close, log_return, features, target
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range rows {
		features := r.Features
		if features == nil {
			features = map[string]float64{}
		}
		err = batch.Append(
			runID, uint16(horizon), r.Symbol, r.Market, domain.Day(r.Date),
			r.Open, r.Close, r.LogReturn, features, r.Target,
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

// GetByRun retrieves the rows of a run, ordered by (symbol, date) ASC.
func (s *DatasetStore) GetByRun(ctx context.Context, runID string) ([]domain.DatasetRow, error) {
	query := `
		SELECT symbol, market, date, open, close, log_return, features, target
		FROM dataset_rows
		WHERE run_id = ?
		ORDER BY symbol ASC, date ASC
	`

	rows, err := s.conn.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query dataset rows: %w", err)
	}
	defer rows.Close()

	return scanDatasetRows(rows)
}

func scanDatasetRows(rows chRows) ([]domain.DatasetRow, error) {
	var out []domain.DatasetRow

	for rows.Next() {
		var r domain.DatasetRow
		err := rows.Scan(
			&r.Symbol, &r.Market, &r.Date,
			&r.Open, &r.Close, &r.LogReturn, &r.Features, &r.Target,
		)
		if err != nil {
			return nil, fmt.Errorf("scan dataset row: %w", err)
		}
		r.Date = domain.Day(r.Date)
		out = append(out, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dataset rows: %w", err)
	}
	return out, nil
}

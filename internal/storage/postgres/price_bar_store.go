package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"price-signal-lab/internal/domain"
	"price-signal-lab/internal/storage"
)

// PriceBarStore implements storage.PriceBarStore using PostgreSQL.
type PriceBarStore struct {
	pool *Pool
}

// NewPriceBarStore creates a new PriceBarStore.
func NewPriceBarStore(pool *Pool) *PriceBarStore {
	return &PriceBarStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PriceBarStore = (*PriceBarStore)(nil)

var priceBarColumns = []string{"market", "symbol", "date", "open", "high", "low", "close", "volume"}

// InsertBulk copies all bars in one transaction. Fails entire batch on
// duplicate (market, symbol, date).
func (s *PriceBarStore) InsertBulk(ctx context.Context, bars []domain.PriceBar) error {
	if len(bars) == 0 {
		return nil
	}
	for _, b := range bars {
		if b.Symbol == "" || b.Market == "" || b.Date.IsZero() {
			return storage.ErrInvalidInput
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"price_bars"},
		priceBarColumns,
		pgx.CopyFromSlice(len(bars), func(i int) ([]any, error) {
			b := bars[i]
			return []any{b.Market, b.Symbol, domain.Day(b.Date), b.Open, b.High, b.Low, b.Close, b.Volume}, nil
		}),
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("copy price bars: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetBySymbol retrieves all bars for one entity, ordered by date ASC.
func (s *PriceBarStore) GetBySymbol(ctx context.Context, market, symbol string) ([]domain.PriceBar, error) {
	query := `
		SELECT market, symbol, date, open, high, low, close, volume
		FROM price_bars
		WHERE market = $1 AND symbol = $2
		ORDER BY date ASC
	`

	rows, err := s.pool.Query(ctx, query, market, symbol)
	if err != nil {
		return nil, fmt.Errorf("get price bars by symbol: %w", err)
	}
	defer rows.Close()

	return scanPriceBars(rows)
}

// GetByRange retrieves bars dated within [start, end] (inclusive).
func (s *PriceBarStore) GetByRange(ctx context.Context, start, end time.Time) ([]domain.PriceBar, error) {
	query := `
		SELECT market, symbol, date, open, high, low, close, volume
		FROM price_bars
		WHERE date >= $1 AND date <= $2
		ORDER BY symbol ASC, date ASC, market ASC
	`

	rows, err := s.pool.Query(ctx, query, domain.Day(start), domain.Day(end))
	if err != nil {
		return nil, fmt.Errorf("get price bars by range: %w", err)
	}
	defer rows.Close()

	return scanPriceBars(rows)
}

// GetAll retrieves every bar, ordered by (symbol, date) ASC.
func (s *PriceBarStore) GetAll(ctx context.Context) ([]domain.PriceBar, error) {
	query := `
		SELECT market, symbol, date, open, high, low, close, volume
		FROM price_bars
		ORDER BY symbol ASC, date ASC, market ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all price bars: %w", err)
	}
	defer rows.Close()

	return scanPriceBars(rows)
}

func scanPriceBars(rows pgx.Rows) ([]domain.PriceBar, error) {
	var bars []domain.PriceBar

	for rows.Next() {
		var b domain.PriceBar
		err := rows.Scan(
			&b.Market,
			&b.Symbol,
			&b.Date,
			&b.Open,
			&b.High,
			&b.Low,
			&b.Close,
			&b.Volume,
		)
		if err != nil {
			return nil, fmt.Errorf("scan price bar row: %w", err)
		}
		b.Date = domain.Day(b.Date)
		bars = append(bars, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate price bar rows: %w", err)
	}

	return bars, nil
}

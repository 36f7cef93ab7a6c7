// Package backends opens the stores selected by the storage configuration.
package backends

import (
	"context"
	"fmt"
	"log/slog"

	"price-signal-lab/internal/config"
	"price-signal-lab/internal/storage"
	chstore "price-signal-lab/internal/storage/clickhouse"
	"price-signal-lab/internal/storage/memory"
	"price-signal-lab/internal/storage/migrations"
	pgstore "price-signal-lab/internal/storage/postgres"
)

// Stores holds the configured stores. A nil store means the backend
// serving it is disabled.
type Stores struct {
	Prices     storage.PriceBarStore
	Datasets   storage.DatasetStore
	Portfolios storage.PortfolioStore
	Runs       storage.RunStore

	pool *pgstore.Pool
	conn *chstore.Conn
}

// Open builds the stores for cfg:
//   - use_memory: every store in memory
//   - postgres_dsn: price bars and runs in PostgreSQL
//   - clickhouse_dsn: dataset rows and portfolio days in ClickHouse
//
// Database schemas are migrated on open.
func Open(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (*Stores, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Stores{}

	if cfg.UseMemory {
		s.Prices = memory.NewPriceBarStore()
		s.Datasets = memory.NewDatasetStore()
		s.Portfolios = memory.NewPortfolioStore()
		s.Runs = memory.NewRunStore()
		logger.InfoContext(ctx, "using in-memory storage")
		return s, nil
	}

	if cfg.PostgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		applied, err := migrations.RunPostgresMigrations(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		s.pool = pool
		s.Prices = pgstore.NewPriceBarStore(pool)
		s.Runs = pgstore.NewRunStore(pool)
		logger.InfoContext(ctx, "postgres ready", "migrations", len(applied))
	}

	if cfg.ClickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("migrate clickhouse: %w", err)
		}
		s.conn = conn
		s.Datasets = chstore.NewDatasetStore(conn)
		s.Portfolios = chstore.NewPortfolioStore(conn)
		logger.InfoContext(ctx, "clickhouse ready")
	}

	if s.pool == nil && s.conn == nil {
		logger.WarnContext(ctx, "no storage backend configured, results are written to files only")
	}
	return s, nil
}

// Close releases database connections.
func (s *Stores) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

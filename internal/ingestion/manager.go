package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"price-signal-lab/internal/config"
	"price-signal-lab/internal/domain"
	"price-signal-lab/internal/frame"
	"price-signal-lab/internal/observability"
	"price-signal-lab/internal/storage"
)

// DefaultConcurrency bounds parallel symbol downloads.
const DefaultConcurrency = 4

// Manager fetches a configured universe from a PriceSource, validates the
// combined panel and optionally stores it.
type Manager struct {
	source      PriceSource
	store       storage.PriceBarStore
	concurrency int
	logger      *slog.Logger
}

// Options contains configuration for creating a Manager.
type Options struct {
	Source      PriceSource
	Store       storage.PriceBarStore // optional
	Concurrency int
	Logger      *slog.Logger
}

// NewManager creates a new ingestion manager.
func NewManager(opts Options) *Manager {
	m := &Manager{
		source:      opts.Source,
		store:       opts.Store,
		concurrency: opts.Concurrency,
		logger:      opts.Logger,
	}
	if m.concurrency <= 0 {
		m.concurrency = DefaultConcurrency
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	return m
}

// NewSource builds the PriceSource named by cfg.Source.
func NewSource(cfg config.DataConfig) (PriceSource, error) {
	switch cfg.Source {
	case "stooq":
		opts := []ClientOption{}
		if cfg.Timeout > 0 {
			opts = append(opts, WithTimeout(cfg.Timeout))
		}
		if cfg.RequestsPerSecond > 0 {
			opts = append(opts, WithRateLimit(cfg.RequestsPerSecond))
		}
		return NewStooqClient(cfg.BaseURL, opts...), nil
	default:
		return nil, fmt.Errorf("%w: unknown data source %q", domain.ErrValue, cfg.Source)
	}
}

type fetchJob struct {
	symbol string
	market string
}

// FetchUniverse downloads every symbol of cfg.Universe (us first, then pl)
// over the configured date range, at most Concurrency at a time. The first
// failed symbol cancels the rest. The combined panel is sorted by
// (symbol, date) and passed through ValidatePrices.
func (m *Manager) FetchUniverse(ctx context.Context, cfg *config.Config) (*frame.Frame, error) {
	if m.source == nil {
		return nil, fmt.Errorf("%w: no price source configured", domain.ErrInvalidParameter)
	}

	var jobs []fetchJob
	for _, s := range cfg.Universe.US {
		jobs = append(jobs, fetchJob{symbol: s, market: domain.MarketUS})
	}
	for _, s := range cfg.Universe.PL {
		jobs = append(jobs, fetchJob{symbol: s, market: domain.MarketPL})
	}
	if len(jobs) == 0 {
		return nil, fmt.Errorf("%w: empty universe", domain.ErrValue)
	}

	start, end := cfg.StartDate(), cfg.EndDate()
	results := make([][]domain.PriceBar, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)
	for i, job := range jobs {
		g.Go(func() error {
			t0 := time.Now()
			bars, err := m.source.Fetch(gctx, job.symbol, job.market, start, end)
			observability.RecordSymbolFetched(job.market, len(bars), time.Since(t0).Seconds(), err)
			if err != nil {
				return fmt.Errorf("fetch %s (%s): %w", job.symbol, job.market, err)
			}
			m.logger.DebugContext(gctx, "symbol fetched",
				"symbol", job.symbol,
				"market", job.market,
				"bars", len(bars),
				"duration", time.Since(t0),
			)
			results[i] = bars
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []domain.PriceBar
	for _, bars := range results {
		all = append(all, bars...)
	}
	SortBars(all)

	panel := frame.FromBars(all)
	if err := ValidatePrices(panel); err != nil {
		return nil, err
	}

	m.logger.InfoContext(ctx, "universe fetched",
		"symbols", len(jobs),
		"rows", panel.Len(),
		"start", start.Format(time.DateOnly),
		"end", end.Format(time.DateOnly),
	)
	return panel, nil
}

// Ingest runs FetchUniverse and, when a store is configured, appends the
// bars to it. The panel is returned either way.
func (m *Manager) Ingest(ctx context.Context, cfg *config.Config) (*frame.Frame, error) {
	panel, err := m.FetchUniverse(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if m.store != nil {
		bars, err := frame.ToBars(panel)
		if err != nil {
			return nil, err
		}
		t0 := time.Now()
		err = m.store.InsertBulk(ctx, bars)
		observability.RecordDBQuery("postgres", "insert_price_bars", time.Since(t0).Seconds(), err)
		if err != nil {
			return nil, fmt.Errorf("store price bars: %w", err)
		}
		m.logger.InfoContext(ctx, "price bars stored", "rows", len(bars))
	}

	observability.RecordIngestionSuccess()
	return panel, nil
}

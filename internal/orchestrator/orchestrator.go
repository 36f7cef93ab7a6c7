// Package orchestrator provides E2E pipeline orchestration.
// It coordinates: ingestion → dataset → backtest → storage → reporting
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"price-signal-lab/internal/backtest"
	"price-signal-lab/internal/config"
	"price-signal-lab/internal/dataset"
	"price-signal-lab/internal/domain"
	"price-signal-lab/internal/frame"
	"price-signal-lab/internal/idhash"
	"price-signal-lab/internal/ingestion"
	"price-signal-lab/internal/observability"
	"price-signal-lab/internal/reporting"
	"price-signal-lab/internal/storage"
)

// Orchestrator coordinates the E2E pipeline execution.
type Orchestrator struct {
	// Stores (all optional)
	priceStore     storage.PriceBarStore
	datasetStore   storage.DatasetStore
	portfolioStore storage.PortfolioStore
	runStore       storage.RunStore

	source ingestion.PriceSource

	skipIngestion bool
	skipReports   bool
	logger        *slog.Logger
	now           func() time.Time
}

// Options for creating Orchestrator.
type Options struct {
	// Source downloads prices. Required unless SkipIngestion is set.
	Source ingestion.PriceSource

	// Optional stores; a nil store skips that persistence step.
	PriceStore     storage.PriceBarStore
	DatasetStore   storage.DatasetStore
	PortfolioStore storage.PortfolioStore
	RunStore       storage.RunStore

	SkipIngestion bool // Load prices.parquet from paths.raw_dir instead of fetching
	SkipReports   bool
	Logger        *slog.Logger
	Now           func() time.Time // Injectable clock for deterministic output
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	o := &Orchestrator{
		priceStore:     opts.PriceStore,
		datasetStore:   opts.DatasetStore,
		portfolioStore: opts.PortfolioStore,
		runStore:       opts.RunStore,
		source:         opts.Source,
		skipIngestion:  opts.SkipIngestion,
		skipReports:    opts.SkipReports,
		logger:         opts.Logger,
		now:            opts.Now,
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.now == nil {
		o.now = func() time.Time { return time.Now().UTC() }
	}
	return o
}

// RunResult contains results from orchestrator execution.
type RunResult struct {
	RunID       string
	PanelRows   int
	DatasetRows int
	Days        int
	Score       domain.Scorecard

	// AlreadyStored is set when the run store held this run_id before,
	// in which case nothing was persisted again.
	AlreadyStored bool

	PricesPath  string
	DatasetPath string
	ReportFiles []string
}

// Run executes the full E2E pipeline.
// Phases:
//  1. Fetch (or load) and validate prices
//  2. Derive the run id from the panel and parameters
//  3. Assemble the dataset
//  4. Backtest
//  5. Persist dataset, portfolio and run
//  6. Write reports
func (o *Orchestrator) Run(ctx context.Context, cfg *config.Config) (*RunResult, error) {
	start := time.Now()
	result, err := o.run(ctx, cfg)

	status := "success"
	if err != nil {
		status = "error"
	}
	observability.RecordPipelineRun("total", status, time.Since(start).Seconds())
	return result, err
}

func (o *Orchestrator) run(ctx context.Context, cfg *config.Config) (*RunResult, error) {
	result := &RunResult{}

	// Phase 1: prices
	var panel *frame.Frame
	err := o.phase(ctx, "prices", func() error {
		var err error
		panel, err = o.loadPrices(ctx, cfg, result)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("phase 1 (prices) failed: %w", err)
	}
	result.PanelRows = panel.Len()
	observability.RecordRows("prices", panel.Len())

	// Phase 2: run id
	if result.RunID, err = ComputeRunID(cfg, panel); err != nil {
		return nil, fmt.Errorf("phase 2 (run id) failed: %w", err)
	}
	ctx = observability.WithRunID(ctx, result.RunID)
	o.logger.InfoContext(ctx, "run id derived", "rows", panel.Len())

	// Phase 3: dataset
	var ds *frame.Frame
	err = o.phase(ctx, "dataset", func() error {
		var err error
		if ds, err = dataset.MakeDataset(panel, cfg.Pipeline.Windows, cfg.Pipeline.Horizon); err != nil {
			return err
		}
		result.DatasetPath, err = dataset.SaveDataset(ds, cfg.Paths.ProcessedDir, cfg.Pipeline.Horizon)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("phase 3 (dataset) failed: %w", err)
	}
	result.DatasetRows = ds.Len()
	observability.RecordRows("dataset", ds.Len())

	if err := o.backtest(ctx, cfg, ds, result); err != nil {
		return nil, err
	}
	return result, nil
}

// RunBacktest executes phases 4 to 6 on a prepared dataset under runID.
func (o *Orchestrator) RunBacktest(ctx context.Context, cfg *config.Config, ds *frame.Frame, runID string) (*RunResult, error) {
	start := time.Now()
	result := &RunResult{RunID: runID, DatasetRows: ds.Len()}
	err := o.backtest(observability.WithRunID(ctx, runID), cfg, ds, result)

	status := "success"
	if err != nil {
		status = "error"
	}
	observability.RecordPipelineRun("total", status, time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (o *Orchestrator) backtest(ctx context.Context, cfg *config.Config, ds *frame.Frame, result *RunResult) error {
	rule := cfg.SignalRule()

	// Phase 4: backtest
	var res *backtest.Results
	err := o.phase(ctx, "backtest", func() error {
		var err error
		res, err = backtest.Run(ds, backtest.Options{InitialEquity: cfg.Pipeline.InitialEquity, Rule: rule})
		if errors.Is(err, domain.ErrWeightInvariant) {
			observability.RecordWeightInvariantViolation()
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("phase 4 (backtest) failed: %w", err)
	}
	result.Days = len(res.Days)
	result.Score = res.Score
	observability.RecordRows("portfolio", len(res.Days))

	run := &domain.BacktestRun{
		RunID:         result.RunID,
		CreatedAt:     o.now(),
		Horizon:       cfg.Pipeline.Horizon,
		Windows:       cfg.Pipeline.Windows,
		InitialEquity: cfg.Pipeline.InitialEquity,
		Rule:          rule,
		DatasetRows:   ds.Len(),
		Score:         res.Score,
	}

	// Phase 5: persistence
	err = o.phase(ctx, "store", func() error {
		stored, err := o.store(ctx, run, ds, res.Days)
		result.AlreadyStored = stored
		return err
	})
	if err != nil {
		return fmt.Errorf("phase 5 (store) failed: %w", err)
	}

	// Phase 6: reports
	if o.skipReports {
		o.logger.InfoContext(ctx, "skipping reports")
		return nil
	}
	err = o.phase(ctx, "report", func() error {
		var err error
		result.ReportFiles, err = o.writeReports(ctx, run, res.Days, cfg.Paths.ReportsDir)
		return err
	})
	if err != nil {
		return fmt.Errorf("phase 6 (report) failed: %w", err)
	}

	return nil
}

// ComputeRunID derives the deterministic run id of cfg's parameters over
// the price panel.
func ComputeRunID(cfg *config.Config, panel *frame.Frame) (string, error) {
	bars, err := frame.ToBars(panel)
	if err != nil {
		return "", err
	}
	return idhash.ComputeRunID(idhash.RunParams{
		PanelHash:     idhash.ComputePanelHash(bars),
		Horizon:       cfg.Pipeline.Horizon,
		Windows:       cfg.Pipeline.Windows,
		InitialEquity: cfg.Pipeline.InitialEquity,
		Rule:          cfg.SignalRule(),
	}), nil
}

// phase times fn and records its outcome.
func (o *Orchestrator) phase(ctx context.Context, name string, fn func() error) error {
	start := time.Now()
	err := fn()

	status := "success"
	if err != nil {
		status = "error"
	}
	observability.RecordPipelineRun(name, status, time.Since(start).Seconds())
	o.logger.InfoContext(ctx, "phase finished",
		"phase", name,
		"status", status,
		"duration", time.Since(start),
	)
	return err
}

func (o *Orchestrator) loadPrices(ctx context.Context, cfg *config.Config, result *RunResult) (*frame.Frame, error) {
	if o.skipIngestion {
		result.PricesPath = ingestion.PricesPath(cfg.Paths.RawDir)
		return ingestion.LoadPrices(ctx, cfg.Paths.RawDir)
	}

	m := ingestion.NewManager(ingestion.Options{
		Source:      o.source,
		Store:       o.priceStore,
		Concurrency: cfg.Data.Concurrency,
		Logger:      o.logger,
	})
	panel, err := m.Ingest(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if result.PricesPath, err = ingestion.SavePrices(panel, cfg.Paths.RawDir); err != nil {
		return nil, err
	}
	return panel, nil
}

// store persists the dataset, the daily portfolio and finally the run
// record. A run id already present in the run store is left untouched and
// reported as stored.
func (o *Orchestrator) store(ctx context.Context, run *domain.BacktestRun, ds *frame.Frame, days []domain.PortfolioDay) (bool, error) {
	if o.runStore != nil {
		_, err := o.runStore.GetByID(ctx, run.RunID)
		if err == nil {
			o.logger.InfoContext(ctx, "run already stored, skipping persistence")
			return true, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return false, fmt.Errorf("look up run: %w", err)
		}
	}

	if o.datasetStore != nil {
		rows, err := dataset.ToRows(ds, run.Horizon)
		if err != nil {
			return false, err
		}
		if err := o.datasetStore.InsertBulk(ctx, run.RunID, run.Horizon, rows); err != nil {
			return false, fmt.Errorf("store dataset: %w", err)
		}
		o.logger.InfoContext(ctx, "dataset stored", "rows", len(rows))
	}

	if o.portfolioStore != nil {
		if err := o.portfolioStore.InsertBulk(ctx, run.RunID, days); err != nil {
			return false, fmt.Errorf("store portfolio: %w", err)
		}
		o.logger.InfoContext(ctx, "portfolio stored", "days", len(days))
	}

	if o.runStore != nil {
		err := o.runStore.Insert(ctx, run)
		if errors.Is(err, storage.ErrDuplicateKey) {
			return true, nil
		}
		if err != nil {
			return false, fmt.Errorf("store run: %w", err)
		}
	}
	return false, nil
}

// writeReports builds the run report, with the leaderboard when both
// portfolio and run stores are configured, and writes its files.
func (o *Orchestrator) writeReports(ctx context.Context, run *domain.BacktestRun, days []domain.PortfolioDay, dir string) ([]string, error) {
	var report *reporting.Report
	if o.portfolioStore != nil && o.runStore != nil {
		gen := reporting.NewGenerator(o.portfolioStore, o.runStore).WithClock(o.now)
		var err error
		if report, err = gen.Generate(ctx, run.RunID); err != nil {
			return nil, err
		}
	} else {
		report = reporting.Build(run, days, o.now())
	}

	files, err := reporting.WriteFiles(report, dir)
	if err != nil {
		return nil, err
	}
	observability.RecordReportGenerated()
	o.logger.InfoContext(ctx, "reports written", "files", len(files))
	return files, nil
}

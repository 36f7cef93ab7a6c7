// Package main backtests a saved dataset and writes the portfolio and
// report files, storing the run when databases are configured.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"price-signal-lab/internal/config"
	"price-signal-lab/internal/dataset"
	"price-signal-lab/internal/ingestion"
	"price-signal-lab/internal/observability"
	"price-signal-lab/internal/orchestrator"
	"price-signal-lab/internal/storage/backends"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "configs/base.yaml", "Path to the YAML config")
	horizon := flag.Int("horizon", 0, "Override pipeline.horizon")
	reportsDir := flag.String("reports-dir", "", "Override paths.reports_dir")
	threshold := flag.Float64("long-momentum-min", -1, "Override pipeline.signal.long_momentum_min (negative keeps config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *horizon > 0 {
		cfg.Pipeline.Horizon = *horizon
	}
	if *reportsDir != "" {
		cfg.Paths.ReportsDir = *reportsDir
	}
	if *threshold >= 0 {
		cfg.Pipeline.Signal.LongMomentumMin = *threshold
	}
	logger := observability.NewLogger(os.Stderr, cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The run id is derived from the raw prices the dataset was built from.
	prices, err := ingestion.LoadPrices(ctx, cfg.Paths.RawDir)
	if err != nil {
		logger.Error("load prices", "error", err)
		os.Exit(1)
	}
	runID, err := orchestrator.ComputeRunID(cfg, prices)
	if err != nil {
		logger.Error("compute run id", "error", err)
		os.Exit(1)
	}

	ds, err := dataset.LoadDataset(ctx, cfg.Paths.ProcessedDir, cfg.Pipeline.Horizon)
	if err != nil {
		logger.Error("load dataset", "error", err)
		os.Exit(1)
	}

	stores, err := backends.Open(ctx, cfg.Storage, logger)
	if err != nil {
		logger.Error("open storage", "error", err)
		os.Exit(1)
	}
	defer stores.Close()

	orch := orchestrator.New(orchestrator.Options{
		DatasetStore:   stores.Datasets,
		PortfolioStore: stores.Portfolios,
		RunStore:       stores.Runs,
		SkipIngestion:  true,
		Logger:         logger,
	})
	result, err := orch.RunBacktest(ctx, cfg, ds, runID)
	if err != nil {
		logger.Error("backtest failed", "run_id", runID, "error", err)
		os.Exit(1)
	}

	fmt.Printf("Backtest %s completed:\n", result.RunID)
	fmt.Printf("  Days: %d (trading %d)\n", result.Score.NDays, result.Score.TradingDays)
	fmt.Printf("  Sharpe: %.4f\n", result.Score.Sharpe)
	fmt.Printf("  Max drawdown: %.2f%%\n", result.Score.MaxDrawdownAbs*100)
	for _, f := range result.ReportFiles {
		fmt.Printf("  - %s\n", f)
	}
}

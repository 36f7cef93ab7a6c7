// Package main regenerates reports from stored runs: one run's report
// files, or the leaderboard of every stored run.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"price-signal-lab/internal/config"
	"price-signal-lab/internal/metrics"
	"price-signal-lab/internal/observability"
	"price-signal-lab/internal/reporting"
	"price-signal-lab/internal/storage/backends"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "configs/base.yaml", "Path to the YAML config")
	runID := flag.String("run-id", "", "Run to report on (empty writes the leaderboard only)")
	outputDir := flag.String("output-dir", "", "Override paths.reports_dir")
	verify := flag.Bool("verify", false, "Check stored scorecards against their daily series")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *outputDir != "" {
		cfg.Paths.ReportsDir = *outputDir
	}
	logger := observability.NewLogger(os.Stderr, cfg.Logging)
	ctx := context.Background()

	// Validate storage
	if cfg.Storage.PostgresDSN == "" || cfg.Storage.ClickhouseDSN == "" {
		fmt.Fprintln(os.Stderr, "Error: storage.postgres_dsn and storage.clickhouse_dsn are required")
		os.Exit(1)
	}
	stores, err := backends.Open(ctx, cfg.Storage, logger)
	if err != nil {
		logger.Error("open storage", "error", err)
		os.Exit(1)
	}
	defer stores.Close()

	aggregator := metrics.NewAggregator(stores.Portfolios, stores.Runs)
	runs, err := aggregator.Leaderboard(ctx)
	if err != nil {
		logger.Error("load runs", "error", err)
		os.Exit(1)
	}

	if *verify {
		for _, r := range runs {
			if err := aggregator.Verify(ctx, r.RunID, 1e-9); err != nil {
				logger.Error("scorecard mismatch", "run_id", r.RunID, "error", err)
				os.Exit(1)
			}
		}
		logger.Info("scorecards verified", "runs", len(runs))
	}

	if err := os.MkdirAll(cfg.Paths.ReportsDir, 0o755); err != nil {
		logger.Error("create reports dir", "error", err)
		os.Exit(1)
	}
	path := filepath.Join(cfg.Paths.ReportsDir, "leaderboard.csv")
	if err := os.WriteFile(path, []byte(reporting.RenderScorecardCSV(runs)), 0o644); err != nil {
		logger.Error("write leaderboard", "error", err)
		os.Exit(1)
	}
	fmt.Printf("Leaderboard of %d runs: %s\n", len(runs), path)

	if *runID == "" {
		return
	}
	ctx = observability.WithRunID(ctx, *runID)
	report, err := reporting.NewGenerator(stores.Portfolios, stores.Runs).Generate(ctx, *runID)
	if err != nil {
		logger.ErrorContext(ctx, "generate report", "error", err)
		os.Exit(1)
	}
	files, err := reporting.WriteFiles(report, cfg.Paths.ReportsDir)
	if err != nil {
		logger.ErrorContext(ctx, "write report", "error", err)
		os.Exit(1)
	}
	observability.RecordReportGenerated()
	for _, f := range files {
		fmt.Printf("  - %s\n", f)
	}
}

// Package main builds the labeled dataset from prices.parquet and writes
// dataset_h{horizon}.parquet (and dataset_rows when ClickHouse is configured).
package main

import (
	"context"
	"errors"
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
	"price-signal-lab/internal/storage"
	"price-signal-lab/internal/storage/backends"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "configs/base.yaml", "Path to the YAML config")
	horizon := flag.Int("horizon", 0, "Override pipeline.horizon")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *horizon > 0 {
		cfg.Pipeline.Horizon = *horizon
	}
	logger := observability.NewLogger(os.Stderr, cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	prices, err := ingestion.LoadPrices(ctx, cfg.Paths.RawDir)
	if err != nil {
		logger.Error("load prices", "error", err)
		os.Exit(1)
	}

	ds, err := dataset.MakeDataset(prices, cfg.Pipeline.Windows, cfg.Pipeline.Horizon)
	if err != nil {
		logger.Error("make dataset", "error", err)
		os.Exit(1)
	}
	path, err := dataset.SaveDataset(ds, cfg.Paths.ProcessedDir, cfg.Pipeline.Horizon)
	if err != nil {
		logger.Error("save dataset", "error", err)
		os.Exit(1)
	}
	observability.RecordRows("dataset", ds.Len())
	logger.Info("dataset written",
		"rows", ds.Len(),
		"features", len(dataset.FeatureColumns(ds)),
		"horizon", cfg.Pipeline.Horizon,
		"path", path,
	)

	if cfg.Storage.ClickhouseDSN == "" && !cfg.Storage.UseMemory {
		return
	}
	stores, err := backends.Open(ctx, cfg.Storage, logger)
	if err != nil {
		logger.Error("open storage", "error", err)
		os.Exit(1)
	}
	defer stores.Close()

	runID, err := orchestrator.ComputeRunID(cfg, prices)
	if err != nil {
		logger.Error("compute run id", "error", err)
		os.Exit(1)
	}
	ctx = observability.WithRunID(ctx, runID)

	rows, err := dataset.ToRows(ds, cfg.Pipeline.Horizon)
	if err != nil {
		logger.Error("flatten dataset", "error", err)
		os.Exit(1)
	}
	err = stores.Datasets.InsertBulk(ctx, runID, cfg.Pipeline.Horizon, rows)
	switch {
	case errors.Is(err, storage.ErrDuplicateKey):
		logger.InfoContext(ctx, "dataset already stored")
	case err != nil:
		logger.ErrorContext(ctx, "store dataset", "error", err)
		os.Exit(1)
	default:
		logger.InfoContext(ctx, "dataset stored", "rows", len(rows))
	}
}

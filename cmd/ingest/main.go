// Package main downloads the configured universe, validates it and writes
// prices.parquet (and the price_bars table when Postgres is configured).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"price-signal-lab/internal/config"
	"price-signal-lab/internal/ingestion"
	"price-signal-lab/internal/observability"
	"price-signal-lab/internal/storage/backends"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "configs/base.yaml", "Path to the YAML config")
	rawDir := flag.String("raw-dir", "", "Override paths.raw_dir")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *rawDir != "" {
		cfg.Paths.RawDir = *rawDir
	}
	logger := observability.NewLogger(os.Stderr, cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, err := backends.Open(ctx, cfg.Storage, logger)
	if err != nil {
		logger.Error("open storage", "error", err)
		os.Exit(1)
	}
	defer stores.Close()

	source, err := ingestion.NewSource(cfg.Data)
	if err != nil {
		logger.Error("create source", "error", err)
		os.Exit(1)
	}

	start := time.Now()
	m := ingestion.NewManager(ingestion.Options{
		Source:      source,
		Store:       stores.Prices,
		Concurrency: cfg.Data.Concurrency,
		Logger:      logger,
	})
	panel, err := m.Ingest(ctx, cfg)
	if err != nil {
		observability.RecordPipelineRun("ingest", "error", time.Since(start).Seconds())
		logger.Error("ingestion failed", "error", err)
		os.Exit(1)
	}

	path, err := ingestion.SavePrices(panel, cfg.Paths.RawDir)
	if err != nil {
		logger.Error("save prices", "error", err)
		os.Exit(1)
	}
	observability.RecordPipelineRun("ingest", "success", time.Since(start).Seconds())

	logger.Info("ingestion complete",
		"rows", panel.Len(),
		"path", path,
		"duration", time.Since(start),
	)
}

// Package main provides E2E pipeline entry point.
// Executes: ingestion → dataset → backtest → storage → reporting
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"price-signal-lab/internal/config"
	"price-signal-lab/internal/ingestion"
	"price-signal-lab/internal/observability"
	"price-signal-lab/internal/orchestrator"
	"price-signal-lab/internal/storage/backends"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "configs/base.yaml", "Path to the YAML config")
	skipIngest := flag.Bool("skip-ingest", false, "Reuse prices.parquet from paths.raw_dir instead of downloading")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of databases")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics HTTP address (empty to disable)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *useMemory {
		cfg.Storage.UseMemory = true
	}
	logger := observability.NewLogger(os.Stderr, cfg.Logging)

	// Start metrics server if enabled
	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("ok"))
			})
			srv := &http.Server{Addr: *metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
			logger.Info("starting metrics server", "addr", *metricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server error", "error", err)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, err := backends.Open(ctx, cfg.Storage, logger)
	if err != nil {
		logger.Error("open storage", "error", err)
		os.Exit(1)
	}
	defer stores.Close()

	opts := orchestrator.Options{
		PriceStore:     stores.Prices,
		DatasetStore:   stores.Datasets,
		PortfolioStore: stores.Portfolios,
		RunStore:       stores.Runs,
		SkipIngestion:  *skipIngest,
		Logger:         logger,
	}
	if !*skipIngest {
		if opts.Source, err = ingestion.NewSource(cfg.Data); err != nil {
			logger.Error("create source", "error", err)
			os.Exit(1)
		}
	}

	fmt.Println("=== E2E Pipeline ===")
	result, err := orchestrator.New(opts).Run(ctx, cfg)
	if err != nil {
		logger.Error("pipeline failed", "error", err)
		os.Exit(1)
	}

	fmt.Println("Pipeline completed successfully:")
	fmt.Printf("  Run: %s", result.RunID)
	if result.AlreadyStored {
		fmt.Print(" (already stored)")
	}
	fmt.Println()
	fmt.Printf("  Prices: %d rows (%s)\n", result.PanelRows, result.PricesPath)
	fmt.Printf("  Dataset: %d rows (%s)\n", result.DatasetRows, result.DatasetPath)
	fmt.Printf("  Days: %d (trading %d)\n", result.Score.NDays, result.Score.TradingDays)
	fmt.Printf("  Sharpe: %.4f\n", result.Score.Sharpe)
	fmt.Printf("  Max drawdown: %.2f%%\n", result.Score.MaxDrawdownAbs*100)
	for _, f := range result.ReportFiles {
		fmt.Printf("  - %s\n", f)
	}
}

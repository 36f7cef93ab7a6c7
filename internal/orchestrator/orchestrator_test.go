package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"price-signal-lab/internal/config"
	"price-signal-lab/internal/dataset"
	"price-signal-lab/internal/domain"
	"price-signal-lab/internal/ingestion"
	"price-signal-lab/internal/ingestion/stub"
	"price-signal-lab/internal/storage/memory"
)

const nDays = 40

var fixedNow = time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)

// trendingBars: UP climbs 2% a day, FLAT never moves.
func trendingBars() []domain.PriceBar {
	var bars []domain.PriceBar
	for i := 0; i < nDays; i++ {
		date := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i)
		c := 100 * math.Pow(1.02, float64(i))
		bars = append(bars,
			domain.PriceBar{Symbol: "UP", Date: date, Open: c / 1.005, High: c, Low: c / 1.005, Close: c, Volume: 1000, Market: domain.MarketUS},
			domain.PriceBar{Symbol: "FLAT", Date: date, Open: 50, High: 50, Low: 50, Close: 50, Volume: 500, Market: domain.MarketUS},
		)
	}
	return bars
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Dates.Start = "2024-01-01"
	cfg.Dates.End = "2024-03-31"
	cfg.Universe.US = []string{"UP", "FLAT"}
	dir := t.TempDir()
	cfg.Paths.RawDir = filepath.Join(dir, "raw")
	cfg.Paths.ProcessedDir = filepath.Join(dir, "processed")
	cfg.Paths.ReportsDir = filepath.Join(dir, "reports")
	return &cfg
}

type testStores struct {
	prices    *memory.PriceBarStore
	dataset   *memory.DatasetStore
	portfolio *memory.PortfolioStore
	runs      *memory.RunStore
}

func createTestStores() testStores {
	return testStores{
		prices:    memory.NewPriceBarStore(),
		dataset:   memory.NewDatasetStore(),
		portfolio: memory.NewPortfolioStore(),
		runs:      memory.NewRunStore(),
	}
}

func newOrchestrator(stores testStores, opts Options) *Orchestrator {
	opts.PriceStore = stores.prices
	opts.DatasetStore = stores.dataset
	opts.PortfolioStore = stores.portfolio
	opts.RunStore = stores.runs
	opts.Now = func() time.Time { return fixedNow }
	if opts.Source == nil && !opts.SkipIngestion {
		opts.Source = stub.NewPriceSource(trendingBars())
	}
	return New(opts)
}

func TestOrchestrator_Run_EndToEnd(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	stores := createTestStores()

	var logs bytes.Buffer
	orch := newOrchestrator(stores, Options{
		Logger: slog.New(slog.NewJSONHandler(&logs, nil)),
	})

	result, err := orch.Run(ctx, cfg)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.RunID == "" {
		t.Fatal("expected a run id")
	}
	if result.PanelRows != 2*nDays {
		t.Errorf("expected %d panel rows, got %d", 2*nDays, result.PanelRows)
	}
	// the last date of each symbol has no forward return
	if result.DatasetRows != 2*(nDays-1) {
		t.Errorf("expected %d dataset rows, got %d", 2*(nDays-1), result.DatasetRows)
	}
	if result.Days != nDays-1 {
		t.Errorf("expected %d portfolio days, got %d", nDays-1, result.Days)
	}
	if result.Score.TradingDays == 0 {
		t.Error("expected the trending symbol to trade")
	}
	if result.AlreadyStored {
		t.Error("first run must not be already stored")
	}

	// Stores
	bars, _ := stores.prices.GetAll(ctx)
	if len(bars) != 2*nDays {
		t.Errorf("expected %d stored bars, got %d", 2*nDays, len(bars))
	}
	rows, _ := stores.dataset.GetByRun(ctx, result.RunID)
	if len(rows) != result.DatasetRows {
		t.Errorf("expected %d stored dataset rows, got %d", result.DatasetRows, len(rows))
	}
	days, _ := stores.portfolio.GetByRun(ctx, result.RunID)
	if len(days) != result.Days {
		t.Errorf("expected %d stored days, got %d", result.Days, len(days))
	}
	run, err := stores.runs.GetByID(ctx, result.RunID)
	if err != nil {
		t.Fatalf("run not stored: %v", err)
	}
	if !run.CreatedAt.Equal(fixedNow) || run.DatasetRows != result.DatasetRows {
		t.Errorf("unexpected stored run %+v", run)
	}

	// Files
	for _, p := range append([]string{result.PricesPath, result.DatasetPath}, result.ReportFiles...) {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("missing output %s: %v", p, err)
		}
	}
	if len(result.ReportFiles) != 4 {
		t.Errorf("expected 4 report files, got %d", len(result.ReportFiles))
	}

	if !bytes.Contains(logs.Bytes(), []byte(`"phase":"backtest"`)) {
		t.Error("expected phase logs")
	}
}

func TestOrchestrator_Run_Rerun(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	stores := createTestStores()

	first, err := newOrchestrator(stores, Options{SkipReports: true}).Run(ctx, cfg)
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}

	// Same prices from disk and same parameters map to the same run.
	second, err := newOrchestrator(stores, Options{SkipIngestion: true, SkipReports: true}).Run(ctx, cfg)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if second.RunID != first.RunID {
		t.Errorf("expected run id %s, got %s", first.RunID, second.RunID)
	}
	if !second.AlreadyStored {
		t.Error("expected rerun to find the stored run")
	}

	// A different horizon is a different run.
	cfg.Pipeline.Horizon = 3
	third, err := newOrchestrator(stores, Options{SkipIngestion: true, SkipReports: true}).Run(ctx, cfg)
	if err != nil {
		t.Fatalf("third run failed: %v", err)
	}
	if third.RunID == first.RunID || third.AlreadyStored {
		t.Errorf("expected a new run, got %+v", third)
	}

	all, _ := stores.runs.GetAll(ctx)
	if len(all) != 2 {
		t.Errorf("expected 2 stored runs, got %d", len(all))
	}
}

func TestOrchestrator_Run_WithoutStores(t *testing.T) {
	cfg := testConfig(t)
	orch := New(Options{
		Source: stub.NewPriceSource(trendingBars()),
		Now:    func() time.Time { return fixedNow },
	})

	result, err := orch.Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(result.ReportFiles) != 4 {
		t.Errorf("expected 4 report files, got %d", len(result.ReportFiles))
	}
}

func TestOrchestrator_Run_SourceError(t *testing.T) {
	boom := errors.New("boom")
	stores := createTestStores()
	orch := newOrchestrator(stores, Options{
		Source: stub.NewPriceSource(trendingBars()).FailOn("UP", boom),
	})

	_, err := orch.Run(context.Background(), testConfig(t))
	if !errors.Is(err, boom) {
		t.Fatalf("expected source error, got %v", err)
	}

	all, _ := stores.runs.GetAll(context.Background())
	if len(all) != 0 {
		t.Errorf("expected no stored runs, got %d", len(all))
	}
}

func TestOrchestrator_Run_MissingPricesFile(t *testing.T) {
	orch := newOrchestrator(createTestStores(), Options{SkipIngestion: true})
	if _, err := orch.Run(context.Background(), testConfig(t)); err == nil {
		t.Fatal("expected error for missing prices file")
	}
}

func TestOrchestrator_RunBacktest_FromSavedDataset(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	stores := createTestStores()

	full, err := newOrchestrator(stores, Options{SkipReports: true}).Run(ctx, cfg)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	prices, err := ingestion.LoadPrices(ctx, cfg.Paths.RawDir)
	if err != nil {
		t.Fatalf("LoadPrices failed: %v", err)
	}
	runID, err := ComputeRunID(cfg, prices)
	if err != nil {
		t.Fatalf("ComputeRunID failed: %v", err)
	}
	if runID != full.RunID {
		t.Errorf("expected run id %s, got %s", full.RunID, runID)
	}

	ds, err := dataset.LoadDataset(ctx, cfg.Paths.ProcessedDir, cfg.Pipeline.Horizon)
	if err != nil {
		t.Fatalf("LoadDataset failed: %v", err)
	}

	// fresh stores: the backtest stage alone persists and reports the run
	other := createTestStores()
	result, err := newOrchestrator(other, Options{SkipIngestion: true}).RunBacktest(ctx, cfg, ds, runID)
	if err != nil {
		t.Fatalf("RunBacktest failed: %v", err)
	}
	if result.Days != full.Days || result.Score.TradingDays != full.Score.TradingDays {
		t.Errorf("backtest from file differs: %+v vs %+v", result, full)
	}
	if _, err := other.runs.GetByID(ctx, runID); err != nil {
		t.Errorf("run not stored: %v", err)
	}
	if len(result.ReportFiles) != 4 {
		t.Errorf("expected 4 report files, got %d", len(result.ReportFiles))
	}
}

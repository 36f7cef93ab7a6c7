package memory

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"price-signal-lab/internal/domain"
	"price-signal-lab/internal/storage"
)

func TestPortfolioStore_InsertAndGetByRun(t *testing.T) {
	store := NewPortfolioStore()
	ctx := context.Background()

	d1 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	days := []domain.PortfolioDay{
		{Date: d1.AddDate(0, 0, 1), Equity: 1.01, Sharpe: math.NaN()},
		{Date: d1, Equity: 1, Sharpe: math.NaN()},
	}
	if err := store.InsertBulk(ctx, "run-1", days); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetByRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetByRun failed: %v", err)
	}
	if len(got) != 2 || !got[0].Date.Equal(d1) {
		t.Fatalf("expected days in date order, got %+v", got)
	}
	if !math.IsNaN(got[0].Sharpe) {
		t.Errorf("expected NaN to survive storage, got %v", got[0].Sharpe)
	}

	empty, err := store.GetByRun(ctx, "unknown")
	if err != nil || len(empty) != 0 {
		t.Errorf("expected no days for unknown run, got %v %v", empty, err)
	}
}

func TestPortfolioStore_DuplicateRun(t *testing.T) {
	store := NewPortfolioStore()
	ctx := context.Background()
	day := domain.PortfolioDay{Date: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)}

	if err := store.InsertBulk(ctx, "run-1", []domain.PortfolioDay{day}); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}
	if err := store.InsertBulk(ctx, "run-1", []domain.PortfolioDay{day}); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
	if err := store.InsertBulk(ctx, "run-2", []domain.PortfolioDay{day, day}); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey for repeated date, got %v", err)
	}
}

package clickhouse

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"price-signal-lab/internal/domain"
	"price-signal-lab/internal/storage"
)

func TestPortfolioStore_InsertAndGetByRun(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPortfolioStore(conn)
	ctx := context.Background()

	d := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	days := []domain.PortfolioDay{
		{
			Date: d.AddDate(0, 0, 1), PortfolioLogReturn: math.Log(0.9), NActive: 2,
			CumLog: math.Log(0.9), Equity: 0.9, Peak: 1, Drawdown: -0.1,
			ExpandingMean: math.Log(0.9) / 2, ExpandingStd: 0.07, Sharpe: -15,
		},
		{
			Date: d, PortfolioLogReturn: 0, NActive: 0,
			CumLog: 0, Equity: 1, Peak: 1, Drawdown: 0,
			ExpandingMean: 0, ExpandingStd: math.NaN(), Sharpe: math.NaN(),
		},
	}
	require.NoError(t, store.InsertBulk(ctx, "run-1", days))

	got, err := store.GetByRun(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, d, got[0].Date)
	assert.True(t, math.IsNaN(got[0].Sharpe))
	assert.Equal(t, 2, got[1].NActive)
	assert.InDelta(t, 0.9, got[1].Equity, 1e-12)
	assert.InDelta(t, -0.1, got[1].Drawdown, 1e-12)
}

func TestPortfolioStore_DuplicateRun(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPortfolioStore(conn)
	ctx := context.Background()
	day := domain.PortfolioDay{Date: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), Equity: 1, Peak: 1}

	require.NoError(t, store.InsertBulk(ctx, "run-1", []domain.PortfolioDay{day}))
	assert.ErrorIs(t, store.InsertBulk(ctx, "run-1", []domain.PortfolioDay{day}), storage.ErrDuplicateKey)
	assert.ErrorIs(t, store.InsertBulk(ctx, "run-2", []domain.PortfolioDay{day, day}), storage.ErrDuplicateKey)
}

package dataset

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"price-signal-lab/internal/domain"
	"price-signal-lab/internal/features"
	"price-signal-lab/internal/frame"
	"price-signal-lab/internal/targets"
)

func aaplPanel(t *testing.T) *frame.Frame {
	t.Helper()
	closes := []float64{100, 102, 101, 105, 107, 110}
	bars := make([]domain.PriceBar, len(closes))
	for i, c := range closes {
		bars[i] = domain.PriceBar{
			Symbol: "AAPL",
			Date:   time.Date(2024, 1, 2+i, 0, 0, 0, 0, time.UTC),
			Open:   c,
			High:   c,
			Low:    c,
			Close:  c,
			Volume: 1000,
			Market: domain.MarketUS,
		}
	}
	return frame.FromBars(bars)
}

func TestMakeDataset_SixBars(t *testing.T) {
	ds, err := MakeDataset(aaplPanel(t), []int{1}, 1)
	require.NoError(t, err)

	assert.Equal(t, 5, ds.Len())
	target, err := ds.Floats(targets.TargetColumn(1))
	require.NoError(t, err)
	assert.InDelta(t, math.Log(102.0/100.0), target[0], 1e-12)
	for i, v := range target {
		assert.False(t, math.IsNaN(v), "row %d has no target", i)
	}

	// early rows keep undefined features
	mean, err := ds.Floats(features.MeanColumn(1))
	require.NoError(t, err)
	assert.True(t, math.IsNaN(mean[0]))
	assert.True(t, math.IsNaN(mean[1]))
	assert.InDelta(t, math.Log(102.0/100.0), mean[2], 1e-12)
}

func TestMakeDataset_PropagatesErrors(t *testing.T) {
	_, err := MakeDataset(aaplPanel(t), []int{1}, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)

	f, err := frame.New(frame.StringColumn(domain.ColSymbol, []string{"A"}))
	require.NoError(t, err)
	_, err = MakeDataset(f, []int{1}, 1)
	assert.ErrorIs(t, err, domain.ErrSchema)
}

func TestSaveAndLoadDataset(t *testing.T) {
	dir := t.TempDir()
	ds, err := MakeDataset(aaplPanel(t), []int{1, 2}, 1)
	require.NoError(t, err)

	path, err := SaveDataset(ds, dir, 1)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "dataset_h1.parquet"), path)

	got, err := LoadDataset(context.Background(), dir, 1)
	require.NoError(t, err)
	assert.Equal(t, ds.Columns(), got.Columns())
	assert.Equal(t, ds.Len(), got.Len())

	want, _ := ds.Floats(features.VolatilityColumn(2))
	have, _ := got.Floats(features.VolatilityColumn(2))
	for i := range want {
		if math.IsNaN(want[i]) {
			assert.True(t, math.IsNaN(have[i]))
			continue
		}
		assert.Equal(t, want[i], have[i])
	}
}

func TestMakeDatasetFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prices.parquet")
	require.NoError(t, aaplPanel(t).SaveParquet(path))

	ds, err := MakeDatasetFromFile(context.Background(), path, []int{1}, 2)
	require.NoError(t, err)
	assert.Equal(t, 4, ds.Len())
}

func TestRowsRoundTrip(t *testing.T) {
	ds, err := MakeDataset(aaplPanel(t), []int{1}, 1)
	require.NoError(t, err)

	rows, err := ToRows(ds, 1)
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, "AAPL", rows[0].Symbol)
	assert.Equal(t, domain.MarketUS, rows[0].Market)
	assert.Contains(t, rows[0].Features, features.MeanColumn(1))
	assert.Contains(t, rows[0].Features, features.VolatilityColumn(1))

	back, err := FromRows(rows, 1)
	require.NoError(t, err)
	assert.Equal(t, 5, back.Len())
	assert.Equal(t, []string{features.MeanColumn(1), features.VolatilityColumn(1)}, FeatureColumns(back))

	target, _ := back.Floats(targets.TargetColumn(1))
	assert.InDelta(t, math.Log(102.0/100.0), target[0], 1e-12)
}

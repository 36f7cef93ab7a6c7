// Package dataset assembles the labeled training dataset for one horizon:
// price features, forward target, rows without a target dropped.
package dataset

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"price-signal-lab/internal/domain"
	"price-signal-lab/internal/features"
	"price-signal-lab/internal/frame"
	"price-signal-lab/internal/targets"
)

// FeaturePrefix marks engineered feature columns.
const FeaturePrefix = "px_"

// MakeDataset adds price features for every window, labels the panel with
// the forward log return over horizon and drops rows whose target is
// undefined. Rows with undefined features are kept.
func MakeDataset(f *frame.Frame, windows []int, horizon int) (*frame.Frame, error) {
	withFeatures, err := features.AddPriceFeatures(f, windows)
	if err != nil {
		return nil, fmt.Errorf("add price features: %w", err)
	}
	labeled, err := targets.MakeLogReturnTarget(withFeatures, targets.Options{Horizon: horizon})
	if err != nil {
		return nil, fmt.Errorf("make target: %w", err)
	}
	return labeled.DropMissing(targets.TargetColumn(horizon))
}

// MakeDatasetFromFile loads a persisted price panel and runs MakeDataset.
func MakeDatasetFromFile(ctx context.Context, path string, windows []int, horizon int) (*frame.Frame, error) {
	prices, err := frame.LoadParquet(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("load prices: %w", err)
	}
	return MakeDataset(prices, windows, horizon)
}

// Path returns the file a horizon's dataset is stored in.
func Path(dir string, horizon int) string {
	return filepath.Join(dir, fmt.Sprintf("dataset_h%d.parquet", horizon))
}

// SaveDataset writes the dataset to dir/dataset_h{horizon}.parquet and
// returns the file path.
func SaveDataset(f *frame.Frame, dir string, horizon int) (string, error) {
	path := Path(dir, horizon)
	if err := f.SaveParquet(path); err != nil {
		return "", fmt.Errorf("save dataset: %w", err)
	}
	return path, nil
}

// LoadDataset reads dir/dataset_h{horizon}.parquet.
func LoadDataset(ctx context.Context, dir string, horizon int) (*frame.Frame, error) {
	return frame.LoadParquet(ctx, Path(dir, horizon))
}

// FeatureColumns lists the engineered feature columns of f, sorted.
func FeatureColumns(f *frame.Frame) []string {
	var cols []string
	for _, name := range f.Columns() {
		if strings.HasPrefix(name, FeaturePrefix) {
			cols = append(cols, name)
		}
	}
	sort.Strings(cols)
	return cols
}

// ToRows flattens a dataset frame into rows for storage.
// The market column is optional.
func ToRows(f *frame.Frame, horizon int) ([]domain.DatasetRow, error) {
	target := targets.TargetColumn(horizon)
	if err := f.Require(domain.ColSymbol, domain.ColDate, domain.ColOpen, domain.ColClose,
		features.ColLogReturn, target); err != nil {
		return nil, err
	}

	symbols, err := f.Strings(domain.ColSymbol)
	if err != nil {
		return nil, err
	}
	dates, err := f.Times(domain.ColDate)
	if err != nil {
		return nil, err
	}
	var markets []string
	if f.Has(domain.ColMarket) {
		if markets, err = f.Strings(domain.ColMarket); err != nil {
			return nil, err
		}
	}

	floats := make(map[string][]float64)
	featureCols := FeatureColumns(f)
	for _, name := range append([]string{domain.ColOpen, domain.ColClose, features.ColLogReturn, target}, featureCols...) {
		if floats[name], err = f.Floats(name); err != nil {
			return nil, err
		}
	}

	rows := make([]domain.DatasetRow, f.Len())
	for i := range rows {
		feats := make(map[string]float64, len(featureCols))
		for _, name := range featureCols {
			feats[name] = floats[name][i]
		}
		rows[i] = domain.DatasetRow{
			Symbol:    symbols[i],
			Date:      dates[i],
			Open:      floats[domain.ColOpen][i],
			Close:     floats[domain.ColClose][i],
			LogReturn: floats[features.ColLogReturn][i],
			Features:  feats,
			Target:    floats[target][i],
		}
		if markets != nil {
			rows[i].Market = markets[i]
		}
	}
	return rows, nil
}

// FromRows rebuilds a dataset frame from stored rows. Feature columns are
// the union of the rows' feature keys.
func FromRows(rows []domain.DatasetRow, horizon int) (*frame.Frame, error) {
	n := len(rows)
	symbols := make([]string, n)
	markets := make([]string, n)
	dates := make([]time.Time, n)
	open := make([]float64, n)
	closes := make([]float64, n)
	logRet := make([]float64, n)
	target := make([]float64, n)

	keys := make(map[string]struct{})
	for _, r := range rows {
		for k := range r.Features {
			keys[k] = struct{}{}
		}
	}
	featureCols := make([]string, 0, len(keys))
	for k := range keys {
		featureCols = append(featureCols, k)
	}
	sort.Strings(featureCols)
	feats := make(map[string][]float64, len(featureCols))
	for _, k := range featureCols {
		feats[k] = frame.Missing(n)
	}

	for i, r := range rows {
		symbols[i] = r.Symbol
		markets[i] = r.Market
		dates[i] = r.Date
		open[i] = r.Open
		closes[i] = r.Close
		logRet[i] = r.LogReturn
		target[i] = r.Target
		for k, v := range r.Features {
			feats[k][i] = v
		}
	}

	cols := []frame.Column{
		frame.StringColumn(domain.ColSymbol, symbols),
		frame.TimeColumn(domain.ColDate, dates),
		frame.FloatColumn(domain.ColOpen, open),
		frame.FloatColumn(domain.ColClose, closes),
		frame.StringColumn(domain.ColMarket, markets),
		frame.FloatColumn(features.ColLogReturn, logRet),
	}
	for _, k := range featureCols {
		cols = append(cols, frame.FloatColumn(k, feats[k]))
	}
	cols = append(cols, frame.FloatColumn(targets.TargetColumn(horizon), target))
	return frame.New(cols...)
}

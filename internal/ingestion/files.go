package ingestion

import (
	"context"
	"fmt"
	"path/filepath"

	"price-signal-lab/internal/frame"
)

// PricesFile is the raw panel's file name inside the raw data directory.
const PricesFile = "prices.parquet"

// PricesPath returns dir/prices.parquet.
func PricesPath(dir string) string {
	return filepath.Join(dir, PricesFile)
}

// SavePrices writes a validated panel to dir/prices.parquet, creating dir
// if needed, and returns the file path.
func SavePrices(f *frame.Frame, dir string) (string, error) {
	path := PricesPath(dir)
	if err := f.SaveParquet(path); err != nil {
		return "", fmt.Errorf("save prices: %w", err)
	}
	return path, nil
}

// LoadPrices reads dir/prices.parquet and re-validates it.
func LoadPrices(ctx context.Context, dir string) (*frame.Frame, error) {
	f, err := frame.LoadParquet(ctx, PricesPath(dir))
	if err != nil {
		return nil, fmt.Errorf("load prices: %w", err)
	}
	if err := ValidatePrices(f); err != nil {
		return nil, fmt.Errorf("validate %s: %w", PricesFile, err)
	}
	return f, nil
}

package ingestion

import (
	"context"
	"time"

	"price-signal-lab/internal/domain"
)

// PriceSource fetches daily bars for one entity.
// Implementations return bars for [start, end] (inclusive) with Symbol upper
// case and Market set, or an error when the source has no data.
type PriceSource interface {
	Fetch(ctx context.Context, symbol, market string, start, end time.Time) ([]domain.PriceBar, error)
}

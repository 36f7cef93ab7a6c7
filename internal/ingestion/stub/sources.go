package stub

import (
	"context"
	"fmt"
	"sync"
	"time"

	"price-signal-lab/internal/domain"
)

// PriceSource returns fixed in-memory bars for testing.
// Bars may be given in any order to exercise sorting.
// Implements ingestion.PriceSource.
type PriceSource struct {
	bars []domain.PriceBar
	errs map[string]error

	mu    sync.Mutex
	calls []string
}

// NewPriceSource creates a stub source serving bars.
func NewPriceSource(bars []domain.PriceBar) *PriceSource {
	return &PriceSource{bars: bars, errs: make(map[string]error)}
}

// FailOn makes Fetch return err for symbol.
func (s *PriceSource) FailOn(symbol string, err error) *PriceSource {
	s.errs[symbol] = err
	return s
}

// Fetch returns copies of the bars matching symbol, market and [start, end].
// A symbol without bars yields an error, as a real source would.
func (s *PriceSource) Fetch(ctx context.Context, symbol, market string, start, end time.Time) ([]domain.PriceBar, error) {
	s.mu.Lock()
	s.calls = append(s.calls, market+":"+symbol)
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err, ok := s.errs[symbol]; ok {
		return nil, err
	}

	var result []domain.PriceBar
	for _, b := range s.bars {
		if b.Symbol == symbol && b.Market == market && !b.Date.Before(start) && !b.Date.After(end) {
			result = append(result, b)
		}
	}
	if len(result) == 0 {
		return nil, fmt.Errorf("no data returned for %s", symbol)
	}
	return result, nil
}

// Calls returns "market:symbol" for every Fetch so far.
func (s *PriceSource) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"price-signal-lab/internal/domain"
	"price-signal-lab/internal/storage"
)

// PriceBarStore is an in-memory implementation of storage.PriceBarStore.
type PriceBarStore struct {
	mu   sync.RWMutex
	data map[string]domain.PriceBar // keyed by (market, symbol, date)
}

// NewPriceBarStore creates a new in-memory price bar store.
func NewPriceBarStore() *PriceBarStore {
	return &PriceBarStore{
		data: make(map[string]domain.PriceBar),
	}
}

func barKey(b domain.PriceBar) string {
	return fmt.Sprintf("%s|%s|%s", b.Market, b.Symbol, b.Date.Format(time.DateOnly))
}

// InsertBulk adds multiple bars. Fails entire batch on duplicate.
func (s *PriceBarStore) InsertBulk(_ context.Context, bars []domain.PriceBar) error {
	if len(bars) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(bars))
	for _, b := range bars {
		if b.Symbol == "" || b.Market == "" || b.Date.IsZero() {
			return storage.ErrInvalidInput
		}
		key := barKey(b)
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, b := range bars {
		b.Date = domain.Day(b.Date)
		s.data[barKey(b)] = b
	}
	return nil
}

// GetBySymbol retrieves all bars for one entity, ordered by date ASC.
func (s *PriceBarStore) GetBySymbol(_ context.Context, market, symbol string) ([]domain.PriceBar, error) {
	return s.filter(func(b domain.PriceBar) bool {
		return b.Market == market && b.Symbol == symbol
	}), nil
}

// GetByRange retrieves bars dated within [start, end] (inclusive).
func (s *PriceBarStore) GetByRange(_ context.Context, start, end time.Time) ([]domain.PriceBar, error) {
	start, end = domain.Day(start), domain.Day(end)
	return s.filter(func(b domain.PriceBar) bool {
		return !b.Date.Before(start) && !b.Date.After(end)
	}), nil
}

// GetAll retrieves every bar, ordered by (symbol, date) ASC.
func (s *PriceBarStore) GetAll(_ context.Context) ([]domain.PriceBar, error) {
	return s.filter(func(domain.PriceBar) bool { return true }), nil
}

func (s *PriceBarStore) filter(keep func(domain.PriceBar) bool) []domain.PriceBar {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.PriceBar
	for _, b := range s.data {
		if keep(b) {
			result = append(result, b)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Symbol != result[j].Symbol {
			return result[i].Symbol < result[j].Symbol
		}
		if !result[i].Date.Equal(result[j].Date) {
			return result[i].Date.Before(result[j].Date)
		}
		return result[i].Market < result[j].Market
	})
	return result
}

var _ storage.PriceBarStore = (*PriceBarStore)(nil)

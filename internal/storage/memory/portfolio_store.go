package memory

import (
	"context"
	"sort"
	"sync"

	"price-signal-lab/internal/domain"
	"price-signal-lab/internal/storage"
)

// PortfolioStore is an in-memory implementation of storage.PortfolioStore.
type PortfolioStore struct {
	mu   sync.RWMutex
	data map[string][]domain.PortfolioDay // keyed by run_id
}

// NewPortfolioStore creates a new in-memory portfolio store.
func NewPortfolioStore() *PortfolioStore {
	return &PortfolioStore{
		data: make(map[string][]domain.PortfolioDay),
	}
}

// InsertBulk stores the daily series of one run. Fails entire batch on duplicate.
func (s *PortfolioStore) InsertBulk(_ context.Context, runID string, days []domain.PortfolioDay) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}
	if len(days) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[runID]; exists {
		return storage.ErrDuplicateKey
	}

	seen := make(map[int64]struct{}, len(days))
	for _, d := range days {
		key := d.Date.Unix()
		if _, exists := seen[key]; exists {
			return storage.ErrDuplicateKey
		}
		seen[key] = struct{}{}
	}

	stored := make([]domain.PortfolioDay, len(days))
	copy(stored, days)
	sort.SliceStable(stored, func(i, j int) bool { return stored[i].Date.Before(stored[j].Date) })
	s.data[runID] = stored
	return nil
}

// GetByRun retrieves the days of a run, ordered by date ASC.
func (s *PortfolioStore) GetByRun(_ context.Context, runID string) ([]domain.PortfolioDay, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.PortfolioDay, len(s.data[runID]))
	copy(result, s.data[runID])
	return result, nil
}

var _ storage.PortfolioStore = (*PortfolioStore)(nil)

package memory

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"price-signal-lab/internal/domain"
	"price-signal-lab/internal/storage"
)

// DatasetStore is an in-memory implementation of storage.DatasetStore.
type DatasetStore struct {
	mu   sync.RWMutex
	data map[string][]domain.DatasetRow // keyed by run_id
}

// NewDatasetStore creates a new in-memory dataset store.
func NewDatasetStore() *DatasetStore {
	return &DatasetStore{
		data: make(map[string][]domain.DatasetRow),
	}
}

// InsertBulk stores the rows of one run. Fails entire batch on duplicate.
func (s *DatasetStore) InsertBulk(_ context.Context, runID string, horizon int, rows []domain.DatasetRow) error {
	if runID == "" || horizon <= 0 {
		return storage.ErrInvalidInput
	}
	if len(rows) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[runID]; exists {
		return storage.ErrDuplicateKey
	}

	seen := make(map[string]struct{}, len(rows))
	stored := make([]domain.DatasetRow, 0, len(rows))
	for _, r := range rows {
		if r.Symbol == "" {
			return storage.ErrInvalidInput
		}
		key := r.Symbol + "|" + r.Date.Format(time.DateOnly)
		if _, exists := seen[key]; exists {
			return storage.ErrDuplicateKey
		}
		seen[key] = struct{}{}

		r.Features = maps.Clone(r.Features)
		stored = append(stored, r)
	}

	sort.SliceStable(stored, func(i, j int) bool {
		if stored[i].Symbol != stored[j].Symbol {
			return stored[i].Symbol < stored[j].Symbol
		}
		return stored[i].Date.Before(stored[j].Date)
	})
	s.data[runID] = stored
	return nil
}

// GetByRun retrieves the rows of a run, ordered by (symbol, date) ASC.
func (s *DatasetStore) GetByRun(_ context.Context, runID string) ([]domain.DatasetRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.data[runID]
	result := make([]domain.DatasetRow, len(stored))
	for i, r := range stored {
		r.Features = maps.Clone(r.Features)
		result[i] = r
	}
	return result, nil
}

var _ storage.DatasetStore = (*DatasetStore)(nil)

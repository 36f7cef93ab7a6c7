package ingestion

import (
	"sort"

	"price-signal-lab/internal/domain"
)

// SortBars sorts bars in place by (symbol, date, market) ascending.
// This is the canonical panel order the feature engine expects.
func SortBars(bars []domain.PriceBar) {
	sort.SliceStable(bars, func(i, j int) bool {
		return compareBars(bars[i], bars[j]) < 0
	})
}

// compareBars orders by symbol, then date, then market.
func compareBars(a, b domain.PriceBar) int {
	if a.Symbol != b.Symbol {
		if a.Symbol < b.Symbol {
			return -1
		}
		return 1
	}
	if !a.Date.Equal(b.Date) {
		if a.Date.Before(b.Date) {
			return -1
		}
		return 1
	}
	if a.Market != b.Market {
		if a.Market < b.Market {
			return -1
		}
		return 1
	}
	return 0
}

// IsSorted reports whether bars are in canonical order.
func IsSorted(bars []domain.PriceBar) bool {
	for i := 1; i < len(bars); i++ {
		if compareBars(bars[i-1], bars[i]) > 0 {
			return false
		}
	}
	return true
}

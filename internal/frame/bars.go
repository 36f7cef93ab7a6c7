package frame

import (
	"fmt"
	"math"
	"time"

	"price-signal-lab/internal/domain"
)

// FromBars builds a price panel frame with the canonical column names.
func FromBars(bars []domain.PriceBar) *Frame {
	n := len(bars)
	symbols := make([]string, n)
	dates := make([]time.Time, n)
	open := make([]float64, n)
	high := make([]float64, n)
	low := make([]float64, n)
	closes := make([]float64, n)
	volume := make([]float64, n)
	markets := make([]string, n)

	for i, b := range bars {
		symbols[i] = b.Symbol
		dates[i] = b.Date
		open[i] = b.Open
		high[i] = b.High
		low[i] = b.Low
		closes[i] = b.Close
		volume[i] = float64(b.Volume)
		markets[i] = b.Market
	}

	// Names are unique and lengths equal, New cannot fail.
	f, _ := New(
		StringColumn(domain.ColSymbol, symbols),
		TimeColumn(domain.ColDate, dates),
		FloatColumn(domain.ColOpen, open),
		FloatColumn(domain.ColHigh, high),
		FloatColumn(domain.ColLow, low),
		FloatColumn(domain.ColClose, closes),
		FloatColumn(domain.ColVolume, volume),
		StringColumn(domain.ColMarket, markets),
	)
	return f
}

// ToBars reads the canonical price columns back into bars.
// Missing volume is read as 0.
func ToBars(f *Frame) ([]domain.PriceBar, error) {
	if err := f.Require(domain.ColSymbol, domain.ColDate, domain.ColOpen, domain.ColHigh,
		domain.ColLow, domain.ColClose, domain.ColVolume, domain.ColMarket); err != nil {
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
	markets, err := f.Strings(domain.ColMarket)
	if err != nil {
		return nil, err
	}
	nums := make(map[string][]float64, 5)
	for _, name := range []string{domain.ColOpen, domain.ColHigh, domain.ColLow, domain.ColClose, domain.ColVolume} {
		v, err := f.Floats(name)
		if err != nil {
			return nil, err
		}
		nums[name] = v
	}

	bars := make([]domain.PriceBar, f.Len())
	for i := range bars {
		vol := nums[domain.ColVolume][i]
		if math.IsNaN(vol) {
			vol = 0
		}
		if vol != math.Trunc(vol) {
			return nil, fmt.Errorf("%w: volume %v at row %d is not an integer", domain.ErrType, vol, i)
		}
		bars[i] = domain.PriceBar{
			Symbol: symbols[i],
			Date:   dates[i],
			Open:   nums[domain.ColOpen][i],
			High:   nums[domain.ColHigh][i],
			Low:    nums[domain.ColLow][i],
			Close:  nums[domain.ColClose][i],
			Volume: int64(vol),
			Market: markets[i],
		}
	}
	return bars, nil
}

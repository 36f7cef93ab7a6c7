package ingestion

import (
	"fmt"
	"math"
	"strings"

	"price-signal-lab/internal/domain"
	"price-signal-lab/internal/frame"
)

// PriceColumns is the schema of a raw ingested panel.
var PriceColumns = []string{
	domain.ColDate, domain.ColOpen, domain.ColHigh, domain.ColLow,
	domain.ColClose, domain.ColVolume, domain.ColSymbol, domain.ColMarket,
}

// ValidatePrices checks a raw panel before it is persisted: full OHLCV
// schema, no missing date/open/close, strictly positive prices,
// non-negative volume, a high/low range that contains open and close, and
// unique (date, symbol, market) rows. Every failed check is reported with
// its row count in one ErrInconsistentPrices error.
func ValidatePrices(f *frame.Frame) error {
	if err := f.Require(PriceColumns...); err != nil {
		return err
	}
	for _, col := range []string{domain.ColSymbol, domain.ColMarket} {
		if kind, _ := f.KindOf(col); kind != frame.KindString {
			return fmt.Errorf("%w: column '%s' must be a string", domain.ErrType, col)
		}
	}
	if kind, _ := f.KindOf(domain.ColDate); kind != frame.KindTime {
		return fmt.Errorf("%w: column 'date' must be a date/time", domain.ErrType)
	}

	cols := make(map[string][]float64, 5)
	for _, col := range []string{domain.ColOpen, domain.ColHigh, domain.ColLow, domain.ColClose, domain.ColVolume} {
		v, err := f.Floats(col)
		if err != nil {
			return fmt.Errorf("%w: column '%s' must be numeric", domain.ErrType, col)
		}
		cols[col] = v
	}
	dates, _ := f.Times(domain.ColDate)
	open, high, low, closes, volume := cols[domain.ColOpen], cols[domain.ColHigh], cols[domain.ColLow], cols[domain.ColClose], cols[domain.ColVolume]

	var nulls, highBelowLow, nonPositive, negVolume, highBelowBody, lowAboveBody int
	for i := 0; i < f.Len(); i++ {
		if dates[i].IsZero() || math.IsNaN(open[i]) || math.IsNaN(closes[i]) {
			nulls++
			continue
		}
		if high[i] < low[i] {
			highBelowLow++
		}
		if !(open[i] > 0) || !(high[i] > 0) || !(low[i] > 0) || !(closes[i] > 0) {
			nonPositive++
		}
		if volume[i] < 0 {
			negVolume++
		}
		if high[i] < math.Max(open[i], closes[i]) {
			highBelowBody++
		}
		if low[i] > math.Min(open[i], closes[i]) {
			lowAboveBody++
		}
	}

	dups, err := f.DuplicateKeys(domain.ColDate, domain.ColSymbol, domain.ColMarket)
	if err != nil {
		return err
	}

	var problems []string
	for _, p := range []struct {
		n   int
		msg string
	}{
		{nulls, "price columns contain null values"},
		{highBelowLow, "high is less than low"},
		{nonPositive, "prices are negative or zero"},
		{negVolume, "volume is negative"},
		{highBelowBody, "high is lower than open/close"},
		{lowAboveBody, "low is higher than open/close"},
		{dups, "duplicate (market, symbol, date) rows"},
	} {
		if p.n > 0 {
			problems = append(problems, fmt.Sprintf("%s (%d rows)", p.msg, p.n))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrInconsistentPrices, strings.Join(problems, "; "))
	}
	return nil
}

// Package features computes per-entity price features over a daily panel.
// Every rolling feature at date t only uses information available before t.
package features

import (
	"fmt"

	"price-signal-lab/internal/domain"
	"price-signal-lab/internal/frame"
)

// ColLogReturn is the one-period log return column.
const ColLogReturn = "log_return"

// MeanColumn names the trailing mean feature for a window.
func MeanColumn(window int) string {
	return fmt.Sprintf("px_log_return_mean_%d", window)
}

// VolatilityColumn names the trailing volatility feature for a window.
func VolatilityColumn(window int) string {
	return fmt.Sprintf("px_log_return_volatility_%d", window)
}

// Sort returns the panel stably ordered by (symbol, date). An already
// ordered panel is returned as is.
func Sort(f *frame.Frame) (*frame.Frame, error) {
	sorted, err := f.IsSortedBy(domain.ColSymbol, domain.ColDate)
	if err != nil {
		return nil, err
	}
	if sorted {
		return f, nil
	}
	return f.SortBy(domain.ColSymbol, domain.ColDate)
}

// AddLogReturn appends log_return computed per symbol in row order.
// The frame must already be sorted by (symbol, date).
func AddLogReturn(f *frame.Frame) (*frame.Frame, error) {
	closes, err := f.Floats(domain.ColClose)
	if err != nil {
		return nil, err
	}
	groups, err := f.GroupBy(domain.ColSymbol)
	if err != nil {
		return nil, err
	}
	return f.WithFloats(ColLogReturn, frame.TransformByGroup(groups, closes, LogReturn))
}

// AddRollingMean appends the lagged trailing mean of log_return per symbol.
func AddRollingMean(f *frame.Frame, window, minPeriods int) (*frame.Frame, error) {
	return addRolling(f, MeanColumn(window), window, minPeriods, RollingMean)
}

// AddRollingVolatility appends the lagged trailing population std of
// log_return per symbol.
func AddRollingVolatility(f *frame.Frame, window, minPeriods int) (*frame.Frame, error) {
	return addRolling(f, VolatilityColumn(window), window, minPeriods, RollingVolatility)
}

type rollingFunc func(logRet []float64, window, minPeriods int) ([]float64, error)

func addRolling(f *frame.Frame, name string, window, minPeriods int, fn rollingFunc) (*frame.Frame, error) {
	if err := checkWindow(window, minPeriods); err != nil {
		return nil, err
	}
	logRet, err := f.Floats(ColLogReturn)
	if err != nil {
		return nil, err
	}
	groups, err := f.GroupBy(domain.ColSymbol)
	if err != nil {
		return nil, err
	}

	// Window and min periods were checked above; fn cannot fail per group.
	values := frame.TransformByGroup(groups, logRet, func(seq []float64) []float64 {
		out, _ := fn(seq, window, minPeriods)
		return out
	})
	return f.WithFloats(name, values)
}

// AddPriceFeatures validates and sorts the panel, then appends log_return
// and, for every window, the mean and volatility features with
// min_periods equal to the window.
func AddPriceFeatures(f *frame.Frame, windows []int) (*frame.Frame, error) {
	if err := ValidatePanel(f); err != nil {
		return nil, err
	}
	for _, w := range windows {
		if err := checkWindow(w, w); err != nil {
			return nil, err
		}
	}

	out, err := Sort(f)
	if err != nil {
		return nil, err
	}
	if out, err = AddLogReturn(out); err != nil {
		return nil, err
	}
	for _, w := range windows {
		if out, err = AddRollingMean(out, w, w); err != nil {
			return nil, fmt.Errorf("window %d: %w", w, err)
		}
		if out, err = AddRollingVolatility(out, w, w); err != nil {
			return nil, fmt.Errorf("window %d: %w", w, err)
		}
	}
	return out, nil
}

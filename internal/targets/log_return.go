// Package targets labels a panel with forward-looking returns.
package targets

import (
	"fmt"
	"math"

	"price-signal-lab/internal/domain"
	"price-signal-lab/internal/frame"
)

// Options selects the columns and horizon for MakeLogReturnTarget.
// Empty column names fall back to symbol, date and close.
type Options struct {
	EntityCol string
	DateCol   string
	CloseCol  string
	Horizon   int
}

func (o Options) withDefaults() Options {
	if o.EntityCol == "" {
		o.EntityCol = domain.ColSymbol
	}
	if o.DateCol == "" {
		o.DateCol = domain.ColDate
	}
	if o.CloseCol == "" {
		o.CloseCol = domain.ColClose
	}
	return o
}

// TargetColumn names the forward log return column for a horizon.
func TargetColumn(horizon int) string {
	return fmt.Sprintf("target_log_ret_%dd", horizon)
}

// ForwardLogReturn computes ln(close[t+h] / close[t]) over one entity's
// ordered closes. The last h values are NaN.
func ForwardLogReturn(closes []float64, horizon int) []float64 {
	out := frame.Missing(len(closes))
	for t := 0; t+horizon < len(closes); t++ {
		out[t] = math.Log(closes[t+horizon] / closes[t])
	}
	return out
}

// MakeLogReturnTarget returns the panel sorted by (entity, date) with
// target_log_ret_{h}d appended. The input frame is not modified.
//
// It fails when a column is missing, the (entity, date) key repeats,
// the horizon is not positive, or the target column already exists.
func MakeLogReturnTarget(f *frame.Frame, opts Options) (*frame.Frame, error) {
	opts = opts.withDefaults()

	if err := f.Require(opts.EntityCol, opts.DateCol, opts.CloseCol); err != nil {
		return nil, err
	}
	if opts.Horizon <= 0 {
		return nil, fmt.Errorf("%w: horizon must be greater than 0, got %d", domain.ErrInvalidParameter, opts.Horizon)
	}
	name := TargetColumn(opts.Horizon)
	if f.Has(name) {
		return nil, fmt.Errorf("%w: %s. You can't overwrite this column", domain.ErrColumnExists, name)
	}

	sorted, err := f.SortBy(opts.EntityCol, opts.DateCol)
	if err != nil {
		return nil, err
	}
	dups, err := sorted.DuplicateKeys(opts.EntityCol, opts.DateCol)
	if err != nil {
		return nil, err
	}
	if dups > 0 {
		return nil, fmt.Errorf("%w: (%s, %s) repeats in %d rows", domain.ErrDuplicateKey, opts.EntityCol, opts.DateCol, dups)
	}

	closes, err := sorted.Floats(opts.CloseCol)
	if err != nil {
		return nil, err
	}
	groups, err := sorted.GroupBy(opts.EntityCol)
	if err != nil {
		return nil, err
	}

	target := frame.TransformByGroup(groups, closes, func(seq []float64) []float64 {
		return ForwardLogReturn(seq, opts.Horizon)
	})
	return sorted.WithFloats(name, target)
}

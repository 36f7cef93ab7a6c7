// Package backtest simulates the equal-weight long-only portfolio implied
// by the signal column, one stage per function.
package backtest

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"price-signal-lab/internal/domain"
	"price-signal-lab/internal/frame"
	"price-signal-lab/internal/strategy"
)

// Row-level columns added by the stages, in order.
const (
	ColExecReturn         = "exec_return"
	ColPosition           = "position"
	ColNActive            = "n_active"
	ColWeight             = "weight"
	ColSumOfDailyWeights  = "sum_of_daily_weights"
	ColContribution       = "contribution"
	ColPortfolioLogReturn = "portfolio_log_return"
)

// WeightTolerance is the allowed deviation of a day's weight sum from 0 or 1.
const WeightTolerance = 1e-9

// AddExecReturn appends the return earned by a position held on day t:
// ln(close/open), entering at the open and leaving at the close.
// Every open and close must be positive.
func AddExecReturn(f *frame.Frame) (*frame.Frame, error) {
	open, err := f.Floats(domain.ColOpen)
	if err != nil {
		return nil, err
	}
	closes, err := f.Floats(domain.ColClose)
	if err != nil {
		return nil, err
	}

	badOpen, badClose := 0, 0
	for i := range open {
		if !(open[i] > 0) {
			badOpen++
		}
		if !(closes[i] > 0) {
			badClose++
		}
	}
	if badOpen > 0 || badClose > 0 {
		return nil, fmt.Errorf("%w: open and close must be positive (%d rows with bad open, %d with bad close)",
			domain.ErrInconsistentPrices, badOpen, badClose)
	}

	exec := make([]float64, f.Len())
	for i := range exec {
		exec[i] = math.Log(closes[i] / open[i])
	}
	return f.WithFloats(ColExecReturn, exec)
}

// AddPosition appends the previous row's signal for the same symbol.
// The first row of each symbol has position 0. Rows must be sorted by
// (symbol, date).
func AddPosition(f *frame.Frame) (*frame.Frame, error) {
	signal, err := f.Floats(strategy.ColSignal)
	if err != nil {
		return nil, err
	}
	groups, err := f.GroupBy(domain.ColSymbol)
	if err != nil {
		return nil, err
	}

	position := frame.TransformByGroup(groups, signal, func(seq []float64) []float64 {
		out := make([]float64, len(seq))
		for t := 1; t < len(seq); t++ {
			if !math.IsNaN(seq[t-1]) {
				out[t] = seq[t-1]
			}
		}
		return out
	})
	return f.WithFloats(ColPosition, position)
}

// AddNActive appends the number of open positions on each row's date.
func AddNActive(f *frame.Frame) (*frame.Frame, error) {
	position, err := f.Floats(ColPosition)
	if err != nil {
		return nil, err
	}
	byDate, err := f.GroupBy(domain.ColDate)
	if err != nil {
		return nil, err
	}
	return f.WithFloats(ColNActive, frame.BroadcastByGroup(byDate, position, frame.Sum))
}

// AddWeight appends position / n_active, or 0 on dates with no position.
func AddWeight(f *frame.Frame) (*frame.Frame, error) {
	position, err := f.Floats(ColPosition)
	if err != nil {
		return nil, err
	}
	nActive, err := f.Floats(ColNActive)
	if err != nil {
		return nil, err
	}

	weight := make([]float64, f.Len())
	for i := range weight {
		if nActive[i] > 0 {
			weight[i] = position[i] / nActive[i]
		}
	}
	return f.WithFloats(ColWeight, weight)
}

// AddPortfolioLogReturn checks that every date's weights sum to 1 when
// n_active > 0 and to 0 otherwise, then appends contribution =
// exec_return * weight and the per-date portfolio_log_return.
// A violated weight sum fails with domain.ErrWeightInvariant.
func AddPortfolioLogReturn(f *frame.Frame) (*frame.Frame, error) {
	weight, err := f.Floats(ColWeight)
	if err != nil {
		return nil, err
	}
	nActive, err := f.Floats(ColNActive)
	if err != nil {
		return nil, err
	}
	exec, err := f.Floats(ColExecReturn)
	if err != nil {
		return nil, err
	}
	dates, err := f.Times(domain.ColDate)
	if err != nil {
		return nil, err
	}
	byDate, err := f.GroupBy(domain.ColDate)
	if err != nil {
		return nil, err
	}

	sums := frame.BroadcastByGroup(byDate, weight, frame.Sum)
	if err := checkWeightSums(byDate, sums, nActive, dates); err != nil {
		return nil, err
	}

	contribution := make([]float64, f.Len())
	for i := range contribution {
		contribution[i] = exec[i] * weight[i]
	}

	out, err := f.WithFloats(ColSumOfDailyWeights, sums)
	if err != nil {
		return nil, err
	}
	if out, err = out.WithFloats(ColContribution, contribution); err != nil {
		return nil, err
	}
	return out.WithFloats(ColPortfolioLogReturn, frame.BroadcastByGroup(byDate, contribution, frame.Sum))
}

// checkWeightSums reports up to five offending dates with their deltas.
func checkWeightSums(byDate []frame.Group, sums, nActive []float64, dates []time.Time) error {
	type violation struct {
		date  string
		delta float64
	}
	var bad []violation
	for _, g := range byDate {
		r := g.Rows[0]
		expected := 0.0
		if nActive[r] > 0 {
			expected = 1
		}
		if delta := math.Abs(expected - sums[r]); !(delta <= WeightTolerance) {
			bad = append(bad, violation{date: dates[r].Format("2006-01-02"), delta: delta})
		}
	}
	if len(bad) == 0 {
		return nil
	}

	sort.Slice(bad, func(i, j int) bool { return bad[i].date < bad[j].date })
	parts := make([]string, 0, 5)
	for i, v := range bad {
		if i == 5 {
			parts = append(parts, fmt.Sprintf("and %d more", len(bad)-5))
			break
		}
		parts = append(parts, fmt.Sprintf("%s (delta %.3g)", v.date, v.delta))
	}
	return fmt.Errorf("%w: %s", domain.ErrWeightInvariant, strings.Join(parts, ", "))
}

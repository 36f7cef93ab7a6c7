package metrics

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"price-signal-lab/internal/domain"
)

// TradingDaysPerYear annualises the daily Sharpe ratio.
const TradingDaysPerYear = 252

// AddExpandingStats returns a copy of days with the expanding mean, the
// expanding sample standard deviation (n-1 denominator) of the portfolio
// log return and the annualised Sharpe ratio set on every day.
// Days must be in date order. Sharpe is NaN until the std is positive.
func AddExpandingStats(days []domain.PortfolioDay) []domain.PortfolioDay {
	out := make([]domain.PortfolioDay, len(days))
	copy(out, days)

	seen := make([]float64, 0, len(days))
	for i := range out {
		if r := out[i].PortfolioLogReturn; !math.IsNaN(r) {
			seen = append(seen, r)
		}

		out[i].ExpandingMean = math.NaN()
		out[i].ExpandingStd = math.NaN()
		out[i].Sharpe = math.NaN()

		if len(seen) == 0 {
			continue
		}
		out[i].ExpandingMean = stat.Mean(seen, nil)
		if len(seen) < 2 {
			continue
		}
		_, std := stat.MeanStdDev(seen, nil)
		out[i].ExpandingStd = std
		out[i].Sharpe = computeSharpe(out[i].ExpandingMean, std)
	}
	return out
}

// FinalMetrics summarises a completed backtest.
//
//   - MeanDaily, StdDaily: mean and population std of daily portfolio log return
//   - Sharpe: MeanDaily / StdDaily * sqrt(252), NaN when StdDaily is not positive
//   - MaxDrawdownAbs: largest |drawdown|
//   - MedianNActive: median open positions per day
//   - TradingDays: days with at least one position
//   - NDays: all days
func FinalMetrics(days []domain.PortfolioDay) domain.Scorecard {
	score := domain.Scorecard{
		MeanDaily:      math.NaN(),
		StdDaily:       math.NaN(),
		Sharpe:         math.NaN(),
		MaxDrawdownAbs: math.NaN(),
		MedianNActive:  math.NaN(),
		NDays:          len(days),
	}
	if len(days) == 0 {
		return score
	}

	returns := make([]float64, 0, len(days))
	nActive := make([]float64, 0, len(days))
	for _, d := range days {
		if !math.IsNaN(d.PortfolioLogReturn) {
			returns = append(returns, d.PortfolioLogReturn)
		}
		nActive = append(nActive, float64(d.NActive))
		if d.NActive > 0 {
			score.TradingDays++
		}
	}

	if len(returns) > 0 {
		score.MeanDaily, score.StdDaily = stat.PopMeanStdDev(returns, nil)
		score.Sharpe = computeSharpe(score.MeanDaily, score.StdDaily)
	}
	score.MaxDrawdownAbs = computeMaxDrawdownAbs(days)

	sort.Float64s(nActive)
	score.MedianNActive = computePercentile(nActive, 0.50)

	return score
}

// computeSharpe annualises mean/std; undefined when std is not positive.
func computeSharpe(mean, std float64) float64 {
	if !(std > 0) {
		return math.NaN()
	}
	return mean / std * math.Sqrt(TradingDaysPerYear)
}

// computeMaxDrawdownAbs returns the largest |drawdown|, NaN when no day
// carries one.
func computeMaxDrawdownAbs(days []domain.PortfolioDay) float64 {
	worst := math.NaN()
	for _, d := range days {
		if math.IsNaN(d.Drawdown) {
			continue
		}
		if dd := math.Abs(d.Drawdown); math.IsNaN(worst) || dd > worst {
			worst = dd
		}
	}
	return worst
}

// computePercentile uses linear interpolation.
// sorted must be pre-sorted ASC.
// p is percentile (0.50 = median).
func computePercentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if n == 1 {
		return sorted[0]
	}

	// Index for percentile (0-based, continuous)
	idx := p * float64(n-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

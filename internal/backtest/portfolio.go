package backtest

import (
	"fmt"
	"math"
	"sort"

	"price-signal-lab/internal/domain"
	"price-signal-lab/internal/frame"
)

// CreatePortfolio keeps one row per date (the first seen) and returns the
// daily portfolio series in ascending date order. Equity, drawdown and
// statistics are left NaN for the following stages.
func CreatePortfolio(f *frame.Frame) ([]domain.PortfolioDay, error) {
	if err := f.Require(domain.ColDate, ColPortfolioLogReturn, ColNActive); err != nil {
		return nil, err
	}
	dates, err := f.Times(domain.ColDate)
	if err != nil {
		return nil, err
	}
	ret, err := f.Floats(ColPortfolioLogReturn)
	if err != nil {
		return nil, err
	}
	nActive, err := f.Floats(ColNActive)
	if err != nil {
		return nil, err
	}
	byDate, err := f.GroupBy(domain.ColDate)
	if err != nil {
		return nil, err
	}

	nan := math.NaN()
	days := make([]domain.PortfolioDay, 0, len(byDate))
	for _, g := range byDate {
		r := g.Rows[0]
		days = append(days, domain.PortfolioDay{
			Date:               dates[r],
			PortfolioLogReturn: ret[r],
			NActive:            int(math.Round(nActive[r])),
			CumLog:             nan,
			Equity:             nan,
			Peak:               nan,
			Drawdown:           nan,
			ExpandingMean:      nan,
			ExpandingStd:       nan,
			Sharpe:             nan,
		})
	}

	sort.SliceStable(days, func(i, j int) bool { return days[i].Date.Before(days[j].Date) })
	return days, nil
}

// AddPortfolioEquity sets the cumulative log return and
// equity = initialEquity * exp(cum_log) on a copy of days.
func AddPortfolioEquity(days []domain.PortfolioDay, initialEquity float64) ([]domain.PortfolioDay, error) {
	if !(initialEquity > 0) {
		return nil, fmt.Errorf("%w: initial_equity must be greater than 0, got %v",
			domain.ErrInvalidParameter, initialEquity)
	}

	out := make([]domain.PortfolioDay, len(days))
	copy(out, days)

	cum := 0.0
	for i := range out {
		if r := out[i].PortfolioLogReturn; !math.IsNaN(r) {
			cum += r
		}
		out[i].CumLog = cum
		out[i].Equity = initialEquity * math.Exp(cum)
	}
	return out, nil
}

// AddDrawdown sets the running equity peak and drawdown = equity/peak - 1
// on a copy of days. Days must be in date order.
func AddDrawdown(days []domain.PortfolioDay) []domain.PortfolioDay {
	out := make([]domain.PortfolioDay, len(days))
	copy(out, days)

	peak := math.Inf(-1)
	for i := range out {
		if out[i].Equity > peak {
			peak = out[i].Equity
		}
		out[i].Peak = peak
		out[i].Drawdown = out[i].Equity/peak - 1
	}
	return out
}

package backtest

import (
	"fmt"

	"price-signal-lab/internal/domain"
	"price-signal-lab/internal/features"
	"price-signal-lab/internal/frame"
	"price-signal-lab/internal/metrics"
	"price-signal-lab/internal/strategy"
)

// Options parameterizes a backtest run.
type Options struct {
	InitialEquity float64
	Rule          domain.SignalRule
}

// DefaultOptions starts from equity 1 with the baseline rule.
func DefaultOptions() Options {
	return Options{InitialEquity: 1, Rule: domain.DefaultSignalRule}
}

// Results holds backtest output.
type Results struct {
	// Rows is the row-level frame with signal, position, weight and
	// contribution columns, sorted by (symbol, date).
	Rows *frame.Frame
	// Days is the daily portfolio series in date order.
	Days  []domain.PortfolioDay
	Score domain.Scorecard
}

// RequiredColumns lists the columns Run expects on its input.
func RequiredColumns(rule domain.SignalRule) []string {
	cols := []string{domain.ColSymbol, domain.ColDate, domain.ColClose, domain.ColOpen}
	return append(cols, strategy.RequiredColumns(rule)...)
}

// Run executes the full backtest on a dataset carrying price features:
// signal, position, n_active, weight, portfolio return, daily portfolio,
// equity, drawdown and expanding statistics, then the final scorecard.
// The input frame is not modified.
func Run(f *frame.Frame, opts Options) (*Results, error) {
	if err := f.Require(RequiredColumns(opts.Rule)...); err != nil {
		return nil, err
	}
	if !(opts.InitialEquity > 0) {
		return nil, fmt.Errorf("%w: initial_equity must be greater than 0, got %v",
			domain.ErrInvalidParameter, opts.InitialEquity)
	}

	rows, err := features.Sort(f)
	if err != nil {
		return nil, err
	}

	stages := []struct {
		name string
		fn   func(*frame.Frame) (*frame.Frame, error)
	}{
		{"signal", func(f *frame.Frame) (*frame.Frame, error) { return strategy.AddSignal(f, opts.Rule) }},
		{"exec return", AddExecReturn},
		{"position", AddPosition},
		{"n_active", AddNActive},
		{"weight", AddWeight},
		{"portfolio log return", AddPortfolioLogReturn},
	}
	for _, s := range stages {
		if rows, err = s.fn(rows); err != nil {
			return nil, fmt.Errorf("%s: %w", s.name, err)
		}
	}

	days, err := CreatePortfolio(rows)
	if err != nil {
		return nil, fmt.Errorf("create portfolio: %w", err)
	}
	if days, err = AddPortfolioEquity(days, opts.InitialEquity); err != nil {
		return nil, err
	}
	days = AddDrawdown(days)
	days = metrics.AddExpandingStats(days)

	return &Results{
		Rows:  rows,
		Days:  days,
		Score: metrics.FinalMetrics(days),
	}, nil
}

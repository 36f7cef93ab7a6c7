package domain

import "time"

// PortfolioDay aggregates the portfolio across entities for one date.
// Float fields are NaN when undefined (e.g. Sharpe before the expanding
// standard deviation becomes positive).
type PortfolioDay struct {
	Date               time.Time
	PortfolioLogReturn float64 // sum of exec_return * weight over entities
	NActive            int     // entities holding a position
	CumLog             float64 // cumulative log return through Date
	Equity             float64 // initial_equity * exp(CumLog)
	Peak               float64 // running max of Equity
	Drawdown           float64 // Equity/Peak - 1, <= 0
	ExpandingMean      float64
	ExpandingStd       float64 // sample std (n-1)
	Sharpe             float64 // annualized, NaN when ExpandingStd <= 0
}

// Scorecard summarizes a finished backtest.
type Scorecard struct {
	MeanDaily      float64 // mean daily portfolio log return
	StdDaily       float64 // population std of daily log return
	Sharpe         float64 // NaN when StdDaily <= 0
	MaxDrawdownAbs float64
	MedianNActive  float64
	TradingDays    int // days with NActive > 0
	NDays          int
}

// SignalRule parameterizes the baseline long-only signal.
type SignalRule struct {
	ShortWindow      int     // window of the short momentum mean
	LongWindow       int     // window of the long momentum mean and volatility
	LongMomentumMin  float64 // long mean must exceed this
	ShortMomentumMin float64 // short mean must exceed this
	VolTrendRatio    float64 // long vol must stay below ratio * |long mean|
}

// DefaultSignalRule is the canonical baseline rule.
var DefaultSignalRule = SignalRule{
	ShortWindow:      5,
	LongWindow:       15,
	LongMomentumMin:  0.01,
	ShortMomentumMin: 0,
	VolTrendRatio:    2,
}

// BacktestRun records the parameters and outcome of one pipeline run.
type BacktestRun struct {
	RunID         string
	CreatedAt     time.Time
	Horizon       int
	Windows       []int
	InitialEquity float64
	Rule          SignalRule
	DatasetRows   int
	Score         Scorecard
}

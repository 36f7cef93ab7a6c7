package reporting

import (
	"math"
	"time"

	"price-signal-lab/internal/domain"
)

// Report is the backtest report of one run.
type Report struct {
	GeneratedAt time.Time
	Run         domain.BacktestRun

	Period   PeriodSummary
	Equity   EquitySummary
	Drawdown DrawdownSummary

	DataQuality DataQuality

	// Days is the daily portfolio series in date order.
	Days []domain.PortfolioDay

	// Leaderboard ranks every stored run, best Sharpe first.
	// Empty when the report is built without a run store.
	Leaderboard []LeaderboardRow
}

// PeriodSummary describes the dates covered by the portfolio series.
type PeriodSummary struct {
	Start       time.Time
	End         time.Time
	Days        int
	TradingDays int // days with at least one open position
}

// EquitySummary compares start and end of the equity curve.
type EquitySummary struct {
	Initial        float64
	Final          float64
	TotalLogReturn float64 // cumulative log return on the last day
}

// DrawdownSummary locates the worst drawdown of the run.
type DrawdownSummary struct {
	Worst      float64   // most negative drawdown, 0 when equity never fell
	PeakDate   time.Time // last equity peak before the trough
	TroughDate time.Time
	// RecoveryDate is the first day back at the peak, zero when the
	// drawdown had not recovered by the end of the series.
	RecoveryDate time.Time
	// LongestUnderwater is the longest run of consecutive days below peak.
	LongestUnderwater int
}

// Recovered reports whether equity regained its peak after the trough.
func (d DrawdownSummary) Recovered() bool {
	return !d.RecoveryDate.IsZero()
}

// LeaderboardRow is one ranked run.
type LeaderboardRow struct {
	Rank           int
	RunID          string
	Horizon        int
	Windows        []int
	Sharpe         float64
	MaxDrawdownAbs float64
	TradingDays    int
	NDays          int
}

// Build assembles a report from a run and its daily series. It performs
// no I/O; days must be in date order.
func Build(run *domain.BacktestRun, days []domain.PortfolioDay, generatedAt time.Time) *Report {
	r := &Report{
		GeneratedAt: generatedAt,
		Run:         *run,
		Days:        days,
		Equity: EquitySummary{
			Initial:        run.InitialEquity,
			Final:          math.NaN(),
			TotalLogReturn: math.NaN(),
		},
		DataQuality: CheckSufficiency(run, days),
	}
	if len(days) == 0 {
		return r
	}

	r.Period = PeriodSummary{
		Start: days[0].Date,
		End:   days[len(days)-1].Date,
		Days:  len(days),
	}
	for _, d := range days {
		if d.NActive > 0 {
			r.Period.TradingDays++
		}
	}

	last := days[len(days)-1]
	r.Equity.Final = last.Equity
	r.Equity.TotalLogReturn = last.CumLog
	r.Drawdown = summarizeDrawdown(days)
	return r
}

func summarizeDrawdown(days []domain.PortfolioDay) DrawdownSummary {
	var s DrawdownSummary
	trough := -1
	streak := 0
	for i, d := range days {
		if d.Drawdown < 0 {
			streak++
			s.LongestUnderwater = max(s.LongestUnderwater, streak)
		} else {
			streak = 0
		}
		if d.Drawdown < s.Worst {
			s.Worst = d.Drawdown
			trough = i
		}
	}
	if trough < 0 {
		return s
	}

	s.TroughDate = days[trough].Date
	for i := trough; i >= 0; i-- {
		if days[i].Drawdown >= 0 {
			s.PeakDate = days[i].Date
			break
		}
	}
	for _, d := range days[trough+1:] {
		if d.Drawdown >= 0 {
			s.RecoveryDate = d.Date
			break
		}
	}
	return s
}

func leaderboardRows(runs []*domain.BacktestRun) []LeaderboardRow {
	rows := make([]LeaderboardRow, len(runs))
	for i, run := range runs {
		rows[i] = LeaderboardRow{
			Rank:           i + 1,
			RunID:          run.RunID,
			Horizon:        run.Horizon,
			Windows:        run.Windows,
			Sharpe:         run.Score.Sharpe,
			MaxDrawdownAbs: run.Score.MaxDrawdownAbs,
			TradingDays:    run.Score.TradingDays,
			NDays:          run.Score.NDays,
		}
	}
	return rows
}

package reporting

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"price-signal-lab/internal/domain"
)

// RenderPortfolioCSV renders the daily portfolio series as CSV string.
// Undefined values are left empty.
func RenderPortfolioCSV(days []domain.PortfolioDay) string {
	var sb strings.Builder

	// Header
	sb.WriteString("date,portfolio_log_return,n_active,cum_log,equity,peak,drawdown,")
	sb.WriteString("expanding_mean,expanding_std,sharpe\n")

	// Rows
	for _, d := range days {
		sb.WriteString(fmt.Sprintf("%s,%s,%d,%s,%s,%s,%s,%s,%s,%s\n",
			d.Date.Format(dateLayout),
			csvFloat(d.PortfolioLogReturn),
			d.NActive,
			csvFloat(d.CumLog),
			csvFloat(d.Equity),
			csvFloat(d.Peak),
			csvFloat(d.Drawdown),
			csvFloat(d.ExpandingMean),
			csvFloat(d.ExpandingStd),
			csvFloat(d.Sharpe),
		))
	}

	return sb.String()
}

// RenderScorecardCSV renders one line per run with its parameters and
// final metrics, in the given order.
func RenderScorecardCSV(runs []*domain.BacktestRun) string {
	var sb strings.Builder

	sb.WriteString("run_id,created_at,horizon,windows,initial_equity,dataset_rows,")
	sb.WriteString("mean_daily,std_daily,sharpe,max_drawdown_abs,median_n_active,trading_days,n_days\n")

	for _, r := range runs {
		sb.WriteString(fmt.Sprintf("%s,%s,%d,%s,%s,%d,%s,%s,%s,%s,%s,%d,%d\n",
			r.RunID,
			r.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
			r.Horizon,
			strings.ReplaceAll(joinInts(r.Windows), ", ", ";"),
			csvFloat(r.InitialEquity),
			r.DatasetRows,
			csvFloat(r.Score.MeanDaily),
			csvFloat(r.Score.StdDaily),
			csvFloat(r.Score.Sharpe),
			csvFloat(r.Score.MaxDrawdownAbs),
			csvFloat(r.Score.MedianNActive),
			r.Score.TradingDays,
			r.Score.NDays,
		))
	}

	return sb.String()
}

func csvFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

package reporting

import (
	"fmt"
	"math"

	"github.com/xuri/excelize/v2"
)

// Workbook sheet names.
const (
	SheetScorecard = "Scorecard"
	SheetPortfolio = "Portfolio"
)

var portfolioHeader = []any{
	"date", "portfolio_log_return", "n_active", "cum_log", "equity",
	"peak", "drawdown", "expanding_mean", "expanding_std", "sharpe",
}

// BuildWorkbook renders the report into a workbook with a scorecard sheet
// and the daily portfolio series. The caller closes the returned file.
func BuildWorkbook(r *Report) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetScorecard); err != nil {
		f.Close()
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(SheetPortfolio); err != nil {
		f.Close()
		return nil, fmt.Errorf("create sheet: %w", err)
	}

	if err := writeScorecardSheet(f, r); err != nil {
		f.Close()
		return nil, err
	}
	if err := writePortfolioSheet(f, r); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func writeScorecardSheet(f *excelize.File, r *Report) error {
	s := r.Run.Score
	rows := [][]any{
		{"metric", "value"},
		{"run_id", r.Run.RunID},
		{"horizon", r.Run.Horizon},
		{"windows", joinInts(r.Run.Windows)},
		{"initial_equity", cellFloat(r.Run.InitialEquity)},
		{"dataset_rows", r.Run.DatasetRows},
		{"mean_daily", cellFloat(s.MeanDaily)},
		{"std_daily", cellFloat(s.StdDaily)},
		{"sharpe", cellFloat(s.Sharpe)},
		{"max_drawdown_abs", cellFloat(s.MaxDrawdownAbs)},
		{"median_n_active", cellFloat(s.MedianNActive)},
		{"trading_days", s.TradingDays},
		{"n_days", s.NDays},
		{"final_equity", cellFloat(r.Equity.Final)},
		{"worst_drawdown", cellFloat(r.Drawdown.Worst)},
		{"longest_underwater_days", r.Drawdown.LongestUnderwater},
	}
	return setRows(f, SheetScorecard, rows)
}

func writePortfolioSheet(f *excelize.File, r *Report) error {
	rows := make([][]any, 0, len(r.Days)+1)
	rows = append(rows, portfolioHeader)
	for _, d := range r.Days {
		rows = append(rows, []any{
			d.Date.Format(dateLayout),
			cellFloat(d.PortfolioLogReturn),
			d.NActive,
			cellFloat(d.CumLog),
			cellFloat(d.Equity),
			cellFloat(d.Peak),
			cellFloat(d.Drawdown),
			cellFloat(d.ExpandingMean),
			cellFloat(d.ExpandingStd),
			cellFloat(d.Sharpe),
		})
	}
	return setRows(f, SheetPortfolio, rows)
}

func setRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

// cellFloat leaves undefined values as empty cells.
func cellFloat(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

package reporting

import (
	"fmt"
	"os"
	"path/filepath"

	"price-signal-lab/internal/domain"
)

// Report file names, written under <dir>/<run_id>/.
const (
	MarkdownFile  = "report.md"
	PortfolioFile = "portfolio.csv"
	ScorecardFile = "scorecard.csv"
	WorkbookFile  = "report.xlsx"
)

// WriteFiles writes the Markdown report, the portfolio and scorecard CSVs
// and the workbook for r. It returns the written paths.
func WriteFiles(r *Report, dir string) ([]string, error) {
	out := filepath.Join(dir, r.Run.RunID)
	if err := os.MkdirAll(out, 0o755); err != nil {
		return nil, fmt.Errorf("create report dir: %w", err)
	}

	texts := []struct {
		name    string
		content string
	}{
		{MarkdownFile, RenderMarkdown(r)},
		{PortfolioFile, RenderPortfolioCSV(r.Days)},
		{ScorecardFile, RenderScorecardCSV([]*domain.BacktestRun{&r.Run})},
	}

	var paths []string
	for _, t := range texts {
		path := filepath.Join(out, t.name)
		if err := os.WriteFile(path, []byte(t.content), 0o644); err != nil {
			return nil, fmt.Errorf("write %s: %w", t.name, err)
		}
		paths = append(paths, path)
	}

	wb, err := BuildWorkbook(r)
	if err != nil {
		return nil, err
	}
	defer wb.Close()

	path := filepath.Join(out, WorkbookFile)
	if err := wb.SaveAs(path); err != nil {
		return nil, fmt.Errorf("write %s: %w", WorkbookFile, err)
	}
	return append(paths, path), nil
}

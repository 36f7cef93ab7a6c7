package reporting

import (
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const dateLayout = "2006-01-02"

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	p := message.NewPrinter(language.English)
	var sb strings.Builder

	// Header
	sb.WriteString("# Backtest Report\n\n")
	p.Fprintf(&sb, "Run: `%s`\n\n", r.Run.RunID)
	p.Fprintf(&sb, "Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339))

	// Parameters
	sb.WriteString("## Parameters\n\n")
	sb.WriteString("| Parameter | Value |\n")
	sb.WriteString("|-----------|-------|\n")
	p.Fprintf(&sb, "| Horizon | %d |\n", r.Run.Horizon)
	p.Fprintf(&sb, "| Windows | %s |\n", joinInts(r.Run.Windows))
	p.Fprintf(&sb, "| Initial Equity | %s |\n", formatFloat(p, r.Run.InitialEquity, 2))
	p.Fprintf(&sb, "| Short Window | %d |\n", r.Run.Rule.ShortWindow)
	p.Fprintf(&sb, "| Long Window | %d |\n", r.Run.Rule.LongWindow)
	p.Fprintf(&sb, "| Long Momentum Min | %s |\n", formatFloat(p, r.Run.Rule.LongMomentumMin, 4))
	p.Fprintf(&sb, "| Short Momentum Min | %s |\n", formatFloat(p, r.Run.Rule.ShortMomentumMin, 4))
	p.Fprintf(&sb, "| Vol/Trend Ratio | %s |\n", formatFloat(p, r.Run.Rule.VolTrendRatio, 2))
	p.Fprintf(&sb, "| Dataset Rows | %d |\n", r.Run.DatasetRows)
	sb.WriteString("\n")

	if len(r.Days) == 0 {
		sb.WriteString("No portfolio days available.\n")
		return sb.String()
	}

	// Scorecard
	s := r.Run.Score
	sb.WriteString("## Scorecard\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	p.Fprintf(&sb, "| Period | %s to %s |\n", r.Period.Start.Format(dateLayout), r.Period.End.Format(dateLayout))
	p.Fprintf(&sb, "| Days | %d |\n", s.NDays)
	p.Fprintf(&sb, "| Trading Days | %d |\n", s.TradingDays)
	p.Fprintf(&sb, "| Mean Daily Log Return | %s |\n", formatFloat(p, s.MeanDaily, 6))
	p.Fprintf(&sb, "| Std Daily Log Return | %s |\n", formatFloat(p, s.StdDaily, 6))
	p.Fprintf(&sb, "| Sharpe (annualized) | %s |\n", formatFloat(p, s.Sharpe, 4))
	p.Fprintf(&sb, "| Max Drawdown | %s |\n", formatPercent(p, s.MaxDrawdownAbs))
	p.Fprintf(&sb, "| Median Active Positions | %s |\n", formatFloat(p, s.MedianNActive, 1))
	p.Fprintf(&sb, "| Final Equity | %s |\n", formatFloat(p, r.Equity.Final, 4))
	p.Fprintf(&sb, "| Total Log Return | %s |\n", formatFloat(p, r.Equity.TotalLogReturn, 6))
	sb.WriteString("\n")

	// Data Quality
	sb.WriteString("## Data Quality\n\n")
	sb.WriteString("| Check | Threshold | Actual | Status |\n")
	sb.WriteString("|-------|-----------|--------|--------|\n")
	for _, check := range r.DataQuality.Checks {
		status := "FAIL"
		if check.Pass {
			status = "PASS"
		}
		p.Fprintf(&sb, "| %s | %s | %s | %s |\n", check.Name, check.Threshold, check.Actual, status)
	}
	sb.WriteString("\n")
	if !r.DataQuality.AllPass {
		sb.WriteString("**Some checks failed.** Treat the scorecard as indicative only.\n\n")
	}

	// Drawdown
	d := r.Drawdown
	sb.WriteString("## Drawdown\n\n")
	if d.Worst == 0 {
		sb.WriteString("Equity never fell below its running peak.\n\n")
	} else {
		sb.WriteString("| Metric | Value |\n")
		sb.WriteString("|--------|-------|\n")
		p.Fprintf(&sb, "| Worst Drawdown | %s |\n", formatPercent(p, -d.Worst))
		p.Fprintf(&sb, "| Peak | %s |\n", d.PeakDate.Format(dateLayout))
		p.Fprintf(&sb, "| Trough | %s |\n", d.TroughDate.Format(dateLayout))
		recovery := "not recovered"
		if d.Recovered() {
			recovery = d.RecoveryDate.Format(dateLayout)
		}
		p.Fprintf(&sb, "| Recovery | %s |\n", recovery)
		p.Fprintf(&sb, "| Longest Underwater (days) | %d |\n", d.LongestUnderwater)
		sb.WriteString("\n")
	}

	// Leaderboard
	if len(r.Leaderboard) > 0 {
		sb.WriteString("## Leaderboard\n\n")
		sb.WriteString("| # | Run | Horizon | Windows | Sharpe | MaxDD | Trading Days |\n")
		sb.WriteString("|---|-----|---------|---------|--------|-------|--------------|\n")
		for _, row := range r.Leaderboard {
			marker := ""
			if row.RunID == r.Run.RunID {
				marker = " (this run)"
			}
			p.Fprintf(&sb, "| %d | `%s`%s | %d | %s | %s | %s | %d/%d |\n",
				row.Rank, row.RunID, marker, row.Horizon, joinInts(row.Windows),
				formatFloat(p, row.Sharpe, 4), formatPercent(p, row.MaxDrawdownAbs),
				row.TradingDays, row.NDays)
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// formatFloat prints v with digits decimals and grouped thousands,
// or n/a when v is undefined.
func formatFloat(p *message.Printer, v float64, digits int) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "n/a"
	}
	return p.Sprintf("%.*f", digits, v)
}

func formatPercent(p *message.Printer, v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return p.Sprintf("%.2f%%", v*100)
}

func joinInts(vs []int) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ", ")
}

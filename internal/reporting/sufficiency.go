package reporting

import (
	"fmt"
	"math"

	"price-signal-lab/internal/domain"
)

// MinTradingDays is the trading-day count below which a scorecard is
// flagged as thin.
const MinTradingDays = 20

// SufficiencyCheck represents one data sufficiency criterion.
type SufficiencyCheck struct {
	Name      string
	Threshold string
	Actual    string
	Pass      bool
}

// DataQuality collects the sufficiency checks of a run.
type DataQuality struct {
	Checks  []SufficiencyCheck
	AllPass bool
}

// CheckSufficiency judges whether a run's history is long enough for its
// scorecard to mean anything:
//  1. portfolio days exceed the long signal window (warm-up)
//  2. at least MinTradingDays days held a position
//  3. the daily return std is positive, so Sharpe is defined
//  4. the dataset has at least one row per portfolio day
func CheckSufficiency(run *domain.BacktestRun, days []domain.PortfolioDay) DataQuality {
	q := DataQuality{AllPass: true}
	add := func(c SufficiencyCheck) {
		q.Checks = append(q.Checks, c)
		if !c.Pass {
			q.AllPass = false
		}
	}

	warmup := run.Rule.LongWindow
	add(SufficiencyCheck{
		Name:      "Days beyond signal warm-up",
		Threshold: fmt.Sprintf("> %d", warmup),
		Actual:    fmt.Sprintf("%d", len(days)),
		Pass:      len(days) > warmup,
	})

	trading := 0
	for _, d := range days {
		if d.NActive > 0 {
			trading++
		}
	}
	add(SufficiencyCheck{
		Name:      "Trading days",
		Threshold: fmt.Sprintf(">= %d", MinTradingDays),
		Actual:    fmt.Sprintf("%d", trading),
		Pass:      trading >= MinTradingDays,
	})

	std := run.Score.StdDaily
	actual := "undefined"
	if !math.IsNaN(std) {
		actual = fmt.Sprintf("%.6f", std)
	}
	add(SufficiencyCheck{
		Name:      "Daily return std",
		Threshold: "> 0",
		Actual:    actual,
		Pass:      std > 0,
	})

	add(SufficiencyCheck{
		Name:      "Dataset rows per day",
		Threshold: ">= 1",
		Actual:    fmt.Sprintf("%d/%d", run.DatasetRows, len(days)),
		Pass:      len(days) > 0 && run.DatasetRows >= len(days),
	})

	return q
}

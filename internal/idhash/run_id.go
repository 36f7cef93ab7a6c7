package idhash

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"price-signal-lab/internal/domain"
)

// runNamespace scopes run ids so they never collide with other SHA1 UUIDs.
var runNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("price-signal-lab/backtest-run"))

// RunParams are the inputs that fully determine a backtest run.
type RunParams struct {
	PanelHash     string // ComputePanelHash of the input prices
	Horizon       int
	Windows       []int
	InitialEquity float64
	Rule          domain.SignalRule
}

// ComputeRunID computes a deterministic run_id as a name-based (SHA1) UUID.
// Formula: UUIDv5(ns, panel_hash|horizon|windows|initial_equity|rule...)
// The same prices and parameters always map to the same id.
func ComputeRunID(p RunParams) string {
	windows := make([]string, len(p.Windows))
	for i, w := range p.Windows {
		windows[i] = strconv.Itoa(w)
	}

	data := fmt.Sprintf("%s|%d|%s|%s|%d|%d|%s|%s|%s",
		p.PanelHash,
		p.Horizon,
		strings.Join(windows, ","),
		formatFloat(p.InitialEquity),
		p.Rule.ShortWindow,
		p.Rule.LongWindow,
		formatFloat(p.Rule.LongMomentumMin),
		formatFloat(p.Rule.ShortMomentumMin),
		formatFloat(p.Rule.VolTrendRatio),
	)

	return uuid.NewSHA1(runNamespace, []byte(data)).String()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

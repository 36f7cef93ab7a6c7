// Package strategy turns price features into a binary long signal.
package strategy

import (
	"fmt"
	"math"

	"price-signal-lab/internal/domain"
	"price-signal-lab/internal/features"
	"price-signal-lab/internal/frame"
)

// ColSignal is the signal column: 1 when the rule fires, else 0.
const ColSignal = "signal"

// ValidateRule checks the rule's windows and thresholds.
func ValidateRule(rule domain.SignalRule) error {
	if rule.ShortWindow <= 0 || rule.LongWindow <= 0 {
		return fmt.Errorf("%w: signal windows must be positive, got short=%d long=%d",
			domain.ErrInvalidParameter, rule.ShortWindow, rule.LongWindow)
	}
	if rule.VolTrendRatio <= 0 {
		return fmt.Errorf("%w: vol_trend_ratio must be positive, got %v",
			domain.ErrInvalidParameter, rule.VolTrendRatio)
	}
	return nil
}

// RequiredColumns lists the feature columns a signal frame must carry:
// mean and volatility for both windows. The rule reads the first three.
func RequiredColumns(rule domain.SignalRule) []string {
	return []string{
		features.MeanColumn(rule.LongWindow),
		features.MeanColumn(rule.ShortWindow),
		features.VolatilityColumn(rule.LongWindow),
		features.VolatilityColumn(rule.ShortWindow),
	}
}

// Fires evaluates the rule on one row's features. Any missing input
// means no signal.
func Fires(rule domain.SignalRule, meanLong, meanShort, volLong float64) bool {
	if math.IsNaN(meanLong) || math.IsNaN(meanShort) || math.IsNaN(volLong) {
		return false
	}
	return meanLong > rule.LongMomentumMin &&
		meanShort > rule.ShortMomentumMin &&
		volLong < rule.VolTrendRatio*math.Abs(meanLong)
}

// AddSignal appends the signal column.
func AddSignal(f *frame.Frame, rule domain.SignalRule) (*frame.Frame, error) {
	if err := ValidateRule(rule); err != nil {
		return nil, err
	}
	cols := RequiredColumns(rule)
	if err := f.Require(cols...); err != nil {
		return nil, err
	}

	meanLong, err := f.Floats(cols[0])
	if err != nil {
		return nil, err
	}
	meanShort, err := f.Floats(cols[1])
	if err != nil {
		return nil, err
	}
	volLong, err := f.Floats(cols[2])
	if err != nil {
		return nil, err
	}

	signal := make([]float64, f.Len())
	for i := range signal {
		if Fires(rule, meanLong[i], meanShort[i], volLong[i]) {
			signal[i] = 1
		}
	}
	return f.WithFloats(ColSignal, signal)
}

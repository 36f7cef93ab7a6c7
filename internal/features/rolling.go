package features

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"price-signal-lab/internal/domain"
	"price-signal-lab/internal/frame"
)

// LogReturn computes ln(close[t] / close[t-1]) over one entity's ordered
// closes. The first value is NaN.
func LogReturn(closes []float64) []float64 {
	out := frame.Missing(len(closes))
	for t := 1; t < len(closes); t++ {
		out[t] = math.Log(closes[t] / closes[t-1])
	}
	return out
}

// Lag shifts a sequence forward by one period: out[t] = seq[t-1], out[0] = NaN.
func Lag(seq []float64) []float64 {
	out := frame.Missing(len(seq))
	if len(seq) > 1 {
		copy(out[1:], seq[:len(seq)-1])
	}
	return out
}

// RollingMean is the trailing mean of log returns known before t.
// The series is lagged one period before windowing so the value at t never
// includes the return realized at t. Windows with fewer than minPeriods
// non-missing observations yield NaN.
func RollingMean(logRet []float64, window, minPeriods int) ([]float64, error) {
	return rollingLagged(logRet, window, minPeriods, func(buf []float64) float64 {
		return stat.Mean(buf, nil)
	})
}

// RollingVolatility is the trailing population standard deviation
// (divisor = observation count) of log returns known before t.
func RollingVolatility(logRet []float64, window, minPeriods int) ([]float64, error) {
	return rollingLagged(logRet, window, minPeriods, func(buf []float64) float64 {
		_, std := stat.PopMeanStdDev(buf, nil)
		return std
	})
}

func rollingLagged(logRet []float64, window, minPeriods int, agg func([]float64) float64) ([]float64, error) {
	if err := checkWindow(window, minPeriods); err != nil {
		return nil, err
	}
	lagged := Lag(logRet)

	out := frame.Missing(len(lagged))
	buf := make([]float64, 0, window)
	for t := range lagged {
		start := t - window + 1
		if start < 0 {
			start = 0
		}
		buf = buf[:0]
		for _, v := range lagged[start : t+1] {
			if !math.IsNaN(v) {
				buf = append(buf, v)
			}
		}
		if len(buf) >= minPeriods {
			out[t] = agg(buf)
		}
	}
	return out, nil
}

func checkWindow(window, minPeriods int) error {
	if window <= 0 {
		return fmt.Errorf("%w: window must be greater than 0, got %d", domain.ErrInvalidParameter, window)
	}
	if minPeriods <= 0 || minPeriods > window {
		return fmt.Errorf("%w: min_periods must be in [1, %d], got %d", domain.ErrInvalidParameter, window, minPeriods)
	}
	return nil
}

package features

import (
	"fmt"

	"price-signal-lab/internal/domain"
	"price-signal-lab/internal/frame"
)

// ValidatePanel checks the minimal schema the feature engine needs:
// symbol (text), date (time), open and close (numeric), close > 0.
// It only reads the frame.
func ValidatePanel(f *frame.Frame) error {
	if err := f.Require(domain.ColSymbol, domain.ColDate, domain.ColClose, domain.ColOpen); err != nil {
		return err
	}

	checks := []struct {
		col  string
		kind frame.Kind
		msg  string
	}{
		{domain.ColDate, frame.KindTime, "column 'date' must be a date/time"},
		{domain.ColSymbol, frame.KindString, "column 'symbol' must be a string"},
		{domain.ColOpen, frame.KindFloat, "column 'open' must be numeric"},
		{domain.ColClose, frame.KindFloat, "column 'close' must be numeric"},
	}
	for _, c := range checks {
		if kind, _ := f.KindOf(c.col); kind != c.kind {
			return fmt.Errorf("%w: %s", domain.ErrType, c.msg)
		}
	}

	closes, err := f.Floats(domain.ColClose)
	if err != nil {
		return err
	}
	bad := 0
	for _, c := range closes {
		if !(c > 0) {
			bad++
		}
	}
	if bad > 0 {
		return fmt.Errorf("%w: column 'close' must contain only positive values (%d offending rows)",
			domain.ErrInconsistentPrices, bad)
	}
	return nil
}

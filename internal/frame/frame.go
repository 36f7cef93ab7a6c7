// Package frame provides the immutable column-oriented table the pipeline
// stages exchange. Float columns encode missing values as NaN.
package frame

import (
	"fmt"
	"math"
	"time"

	"price-signal-lab/internal/domain"
)

// Kind is the value type of a column.
type Kind int

// Column kinds.
const (
	KindString Kind = iota + 1
	KindTime
	KindFloat
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindTime:
		return "time"
	case KindFloat:
		return "float"
	default:
		return "unknown"
	}
}

// Column is a named, typed vector. Constructors take ownership of the slice;
// it must not be written afterwards.
type Column struct {
	Name string
	Kind Kind
	str  []string
	tm   []time.Time
	f    []float64
}

// StringColumn creates a text column.
func StringColumn(name string, values []string) Column {
	return Column{Name: name, Kind: KindString, str: values}
}

// TimeColumn creates a date/time column.
func TimeColumn(name string, values []time.Time) Column {
	return Column{Name: name, Kind: KindTime, tm: values}
}

// FloatColumn creates a numeric column. NaN marks a missing value.
func FloatColumn(name string, values []float64) Column {
	return Column{Name: name, Kind: KindFloat, f: values}
}

// Len returns the number of values in the column.
func (c Column) Len() int {
	switch c.Kind {
	case KindString:
		return len(c.str)
	case KindTime:
		return len(c.tm)
	case KindFloat:
		return len(c.f)
	}
	return 0
}

// take returns a new column holding the values at rows, in that order.
func (c Column) take(rows []int) Column {
	out := Column{Name: c.Name, Kind: c.Kind}
	switch c.Kind {
	case KindString:
		out.str = make([]string, len(rows))
		for i, r := range rows {
			out.str[i] = c.str[r]
		}
	case KindTime:
		out.tm = make([]time.Time, len(rows))
		for i, r := range rows {
			out.tm[i] = c.tm[r]
		}
	case KindFloat:
		out.f = make([]float64, len(rows))
		for i, r := range rows {
			out.f[i] = c.f[r]
		}
	}
	return out
}

// Frame is an immutable table of equally long columns.
// Every transformation returns a new Frame; unchanged columns are shared.
type Frame struct {
	n     int
	order []string
	cols  map[string]Column
}

// New builds a frame from columns. Names must be unique and lengths equal.
func New(cols ...Column) (*Frame, error) {
	f := &Frame{cols: make(map[string]Column, len(cols))}
	for i, c := range cols {
		if i == 0 {
			f.n = c.Len()
		}
		if _, exists := f.cols[c.Name]; exists {
			return nil, fmt.Errorf("%w: %s", domain.ErrColumnExists, c.Name)
		}
		if c.Len() != f.n {
			return nil, fmt.Errorf("%w: column %s has %d rows, want %d",
				domain.ErrValue, c.Name, c.Len(), f.n)
		}
		f.order = append(f.order, c.Name)
		f.cols[c.Name] = c
	}
	return f, nil
}

// Len returns the number of rows.
func (f *Frame) Len() int {
	return f.n
}

// Columns returns column names in insertion order.
func (f *Frame) Columns() []string {
	return append([]string(nil), f.order...)
}

// Has reports whether a column exists.
func (f *Frame) Has(name string) bool {
	_, ok := f.cols[name]
	return ok
}

// KindOf returns the kind of a column.
func (f *Frame) KindOf(name string) (Kind, bool) {
	c, ok := f.cols[name]
	return c.Kind, ok
}

// Require fails with a *domain.SchemaError naming every absent column.
func (f *Frame) Require(names ...string) error {
	var missing []string
	for _, name := range names {
		if !f.Has(name) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return domain.NewSchemaError(missing)
	}
	return nil
}

func (f *Frame) typed(name string, kind Kind) (Column, error) {
	c, ok := f.cols[name]
	if !ok {
		return Column{}, domain.NewSchemaError([]string{name})
	}
	if c.Kind != kind {
		return Column{}, fmt.Errorf("%w: column %s must be %s, got %s", domain.ErrType, name, kind, c.Kind)
	}
	return c, nil
}

// Strings returns a text column. The slice is read-only.
func (f *Frame) Strings(name string) ([]string, error) {
	c, err := f.typed(name, KindString)
	return c.str, err
}

// Times returns a date/time column. The slice is read-only.
func (f *Frame) Times(name string) ([]time.Time, error) {
	c, err := f.typed(name, KindTime)
	return c.tm, err
}

// Floats returns a numeric column. The slice is read-only.
func (f *Frame) Floats(name string) ([]float64, error) {
	c, err := f.typed(name, KindFloat)
	return c.f, err
}

// WithColumn returns a frame with c appended. Columns are write-once:
// an existing name fails with domain.ErrColumnExists.
func (f *Frame) WithColumn(c Column) (*Frame, error) {
	if f.Has(c.Name) {
		return nil, fmt.Errorf("%w: %s. You can't overwrite this column", domain.ErrColumnExists, c.Name)
	}
	if c.Len() != f.n && len(f.order) > 0 {
		return nil, fmt.Errorf("%w: column %s has %d rows, want %d",
			domain.ErrValue, c.Name, c.Len(), f.n)
	}
	out := &Frame{
		n:     c.Len(),
		order: append(append([]string(nil), f.order...), c.Name),
		cols:  make(map[string]Column, len(f.cols)+1),
	}
	for k, v := range f.cols {
		out.cols[k] = v
	}
	out.cols[c.Name] = c
	return out, nil
}

// WithFloats is a shorthand for WithColumn(FloatColumn(name, values)).
func (f *Frame) WithFloats(name string, values []float64) (*Frame, error) {
	return f.WithColumn(FloatColumn(name, values))
}

// Take returns the rows at the given positions, in that order.
func (f *Frame) Take(rows []int) *Frame {
	out := &Frame{
		n:     len(rows),
		order: append([]string(nil), f.order...),
		cols:  make(map[string]Column, len(f.cols)),
	}
	for name, c := range f.cols {
		out.cols[name] = c.take(rows)
	}
	return out
}

// Filter keeps the rows for which keep returns true.
func (f *Frame) Filter(keep func(i int) bool) *Frame {
	rows := make([]int, 0, f.n)
	for i := 0; i < f.n; i++ {
		if keep(i) {
			rows = append(rows, i)
		}
	}
	return f.Take(rows)
}

// DropMissing removes rows where the float column is NaN.
func (f *Frame) DropMissing(name string) (*Frame, error) {
	values, err := f.Floats(name)
	if err != nil {
		return nil, err
	}
	return f.Filter(func(i int) bool { return !math.IsNaN(values[i]) }), nil
}

// Missing returns a float slice of length n filled with NaN.
func Missing(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
